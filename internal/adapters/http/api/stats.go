package api

import (
	"net/http"

	"github.com/okian/nearby/internal/domain/types"
)

// StatsProvider defines the interface for getting service statistics.
type StatsProvider interface {
	Stats() types.Stats
	Ready() bool
}

// StatsHandler handles stats requests.
type StatsHandler struct {
	statsProvider StatsProvider
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(statsProvider StatsProvider) *StatsHandler {
	return &StatsHandler{statsProvider: statsProvider}
}

// HandleStats handles GET /stats requests.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, h.statsProvider.Stats())
}

// HandleReady handles GET /readyz: 200 once the initial load is done.
func (h *StatsHandler) HandleReady(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	if !h.statsProvider.Ready() {
		writeJSON(w, http.StatusServiceUnavailable, ackResponse{Status: "loading"})
		return
	}
	writeJSON(w, http.StatusOK, ackResponse{Status: "ready"})
}
