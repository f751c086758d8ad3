package web

import "net/http"

// askAssistant handles POST /api/assistant. The assistant is read-only: it
// summarizes live stock, order and alert data but never mutates anything.
func (h *Handler) askAssistant(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Question string `json:"question"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.Question == "" {
		writeError(w, r, "question is required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	briefing, err := h.svc.AskAssistant(r.Context(), body.Question)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, briefing)
}
