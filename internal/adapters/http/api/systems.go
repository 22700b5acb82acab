package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// SystemsHandler serves the registered period systems.
type SystemsHandler struct {
	deps Dependencies
}

// NewSystemsHandler creates a systems handler.
func NewSystemsHandler(deps Dependencies) *SystemsHandler {
	return &SystemsHandler{deps: deps}
}

// HandleList handles GET /systems.
func (h *SystemsHandler) HandleList(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"systems": h.deps.Systems()})
}

// HandleGet handles GET /systems/{name}.
func (h *SystemsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	info, err := h.deps.System(chi.URLParam(r, "name"))
	if err != nil {
		status, code := statusFor(err)
		writeError(w, r, status, code, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// HandleSequence handles GET /systems/{name}/sequence?from=lord.
func (h *SystemsHandler) HandleSequence(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	from := r.URL.Query().Get("from")
	if from == "" {
		info, err := h.deps.System(name)
		if err != nil {
			status, code := statusFor(err)
			writeError(w, r, status, code, err)
			return
		}
		if len(info.Lords) > 0 {
			from = info.Lords[0].Name
		}
	}
	seq, err := h.deps.Sequence(name, from)
	if err != nil {
		status, code := statusFor(err)
		writeError(w, r, status, code, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"system": name, "from": from, "sequence": seq})
}
