package api

import (
	"net/http"
	"strconv"
	"strings"
)

// ActivitiesHandler serves the filtered feed, map markers and single
// activities.
type ActivitiesHandler struct {
	deps ActivityDependencies
}

// NewActivitiesHandler creates a new activities handler.
func NewActivitiesHandler(deps ActivityDependencies) *ActivitiesHandler {
	return &ActivitiesHandler{deps: deps}
}

// HandleSearch handles GET /activities.
func (h *ActivitiesHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	const op = "api.search"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	c, ref, err := parseQuery(r.Context(), h.deps, r.URL.Query())
	if err != nil {
		writeError(w, r, Wrap(op, err))
		return
	}
	res, err := h.deps.Search(r.Context(), c, ref)
	if err != nil {
		writeError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleMarkers handles GET /markers. The generation is sent in the
// X-Generation header.
func (h *ActivitiesHandler) HandleMarkers(w http.ResponseWriter, r *http.Request) {
	const op = "api.markers"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	c, ref, err := parseQuery(r.Context(), h.deps, r.URL.Query())
	if err != nil {
		writeError(w, r, Wrap(op, err))
		return
	}
	markers, gen, err := h.deps.Markers(r.Context(), c, ref)
	if err != nil {
		writeError(w, r, Wrap(op, err))
		return
	}
	w.Header().Set("X-Generation", strconv.FormatUint(gen, 10))
	writeJSON(w, http.StatusOK, markers)
}

// HandleGet handles GET /activities/{id}.
func (h *ActivitiesHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_activity"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/activities/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, NewKind(op, ErrBadRequest))
		return
	}
	a, err := h.deps.Activity(r.Context(), id)
	if err != nil {
		writeError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, a)
}
