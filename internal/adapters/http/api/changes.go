package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/okian/nearby/internal/domain/model"
)

// ChangeDependencies accepts change deliveries from the webhook path.
type ChangeDependencies interface {
	// Accept queues ev; it reports true when the delivery id was already seen.
	Accept(ctx context.Context, ev model.ChangeEvent) (bool, error)
}

// ChangesHandler handles change webhook requests.
type ChangesHandler struct {
	deps ChangeDependencies
}

// NewChangesHandler creates a new changes handler.
func NewChangesHandler(deps ChangeDependencies) *ChangesHandler {
	return &ChangesHandler{deps: deps}
}

// HandlePostChange handles POST /changes {"operation","row"}. The
// Idempotency-Key header, when set, overrides the body delivery_id.
func (h *ChangesHandler) HandlePostChange(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_change"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var ev model.ChangeEvent
	if err := decodeBody(w, r, &ev); err != nil {
		writeError(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	if strings.TrimSpace(string(ev.Row.ID)) == "" {
		writeError(w, r, WrapKind(op, ErrBadRequest, errors.New("missing row id")))
		return
	}
	if key := strings.TrimSpace(r.Header.Get("Idempotency-Key")); key != "" {
		ev.DeliveryID = key
	}

	dup, err := h.deps.Accept(r.Context(), ev)
	if err != nil {
		writeError(w, r, Wrap(op, err))
		return
	}
	if dup {
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", Duplicate: true})
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted"})
}
