package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/okian/nearby/internal/domain/geo"
)

// ResolveDependencies turns user text into a coordinate.
type ResolveDependencies interface {
	Resolve(ctx context.Context, text string) (geo.Coordinate, error)
}

// ResolveHandler handles resolve requests.
type ResolveHandler struct {
	deps ResolveDependencies
}

// NewResolveHandler creates a new resolve handler.
func NewResolveHandler(deps ResolveDependencies) *ResolveHandler {
	return &ResolveHandler{deps: deps}
}

type resolveRequest struct {
	Text string `json:"text"`
}

// HandleResolve handles POST /resolve {"text": "..."}.
func (h *ResolveHandler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	const op = "api.resolve"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req resolveRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, r, WrapKind(op, ErrBadRequest, errors.New("missing text")))
		return
	}
	c, err := h.deps.Resolve(r.Context(), req.Text)
	if err != nil {
		writeError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, c)
}
