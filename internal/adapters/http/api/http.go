// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"

	json "github.com/goccy/go-json"

	"github.com/okian/nearby/internal/domain/filter"
	"github.com/okian/nearby/internal/domain/geo"
	"github.com/okian/nearby/internal/domain/model"
	"github.com/okian/nearby/internal/domain/types"
	"github.com/okian/nearby/pkg/logger"
)

const maxBodyBytes = 1 << 20

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	ActivityDependencies
	ResolveDependencies
	ChangeDependencies
	StatsProvider
}

// Server wires HTTP routes for the discovery API.
type Server struct {
	healthHandler     *HealthHandler
	statsHandler      *StatsHandler
	activitiesHandler *ActivitiesHandler
	resolveHandler    *ResolveHandler
	changesHandler    *ChangesHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies) *Server {
	return &Server{
		healthHandler:     NewHealthHandler(),
		statsHandler:      NewStatsHandler(deps),
		activitiesHandler: NewActivitiesHandler(deps),
		resolveHandler:    NewResolveHandler(deps),
		changesHandler:    NewChangesHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/readyz", MetricsMiddleware(s.statsHandler.HandleReady, "readyz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/activities", MetricsMiddleware(s.activitiesHandler.HandleSearch, "activities"))
	mux.HandleFunc("/activities/", MetricsMiddleware(s.activitiesHandler.HandleGet, "activity"))
	mux.HandleFunc("/markers", MetricsMiddleware(s.activitiesHandler.HandleMarkers, "markers"))
	mux.HandleFunc("/resolve", MetricsMiddleware(s.resolveHandler.HandleResolve, "resolve"))
	mux.HandleFunc("/changes", MetricsMiddleware(s.changesHandler.HandlePostChange, "changes"))
}

// ActivityDependencies is the read side used by activity and marker routes.
type ActivityDependencies interface {
	DefaultCriteria() filter.Criteria
	DefaultReference() geo.Coordinate
	Search(ctx context.Context, c filter.Criteria, ref geo.Coordinate) (types.Result, error)
	Markers(ctx context.Context, c filter.Criteria, ref geo.Coordinate) ([]types.Marker, uint64, error)
	Activity(ctx context.Context, id string) (model.Activity, error)
	Resolve(ctx context.Context, text string) (geo.Coordinate, error)
}

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError classifies err, logs server-side failures and writes the body.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		logger.Get().Named("api").Error(r.Context(), "request failed",
			logger.String("path", r.URL.Path), logger.Error(err))
	}
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	return dec.Decode(v)
}
