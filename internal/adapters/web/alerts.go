package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/CrewChiefSteve/ccs-operations-sub001/internal/core"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) listAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.svc.ListAlerts(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, alerts)
}

func (h *Handler) createAlert(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Type     string `json:"type"`
		Severity string `json:"severity"`
		Title    string `json:"title"`
		Message  string `json:"message"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.Type == "" || body.Title == "" {
		writeError(w, r, "type and title are required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	alert, err := h.svc.CreateManualAlert(r.Context(), core.ManualAlertInput{
		Type:     body.Type,
		Severity: core.AlertSeverity(body.Severity),
		Title:    body.Title,
		Message:  body.Message,
	})
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, alert)
}

// alertID parses the {id} route parameter. Writes a 400 and returns false on
// a non-numeric id.
func alertID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, "id must be numeric", "BAD_REQUEST", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func (h *Handler) acknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	id, ok := alertID(w, r)
	if !ok {
		return
	}
	alert, err := h.svc.AcknowledgeAlert(r.Context(), id)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, alert)
}

func (h *Handler) resolveAlert(w http.ResponseWriter, r *http.Request) {
	id, ok := alertID(w, r)
	if !ok {
		return
	}
	var body struct {
		Note string `json:"note"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	alert, err := h.svc.ResolveAlert(r.Context(), id, body.Note)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, alert)
}

func (h *Handler) dismissAlert(w http.ResponseWriter, r *http.Request) {
	id, ok := alertID(w, r)
	if !ok {
		return
	}
	alert, err := h.svc.DismissAlert(r.Context(), id)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, alert)
}

func (h *Handler) listTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.svc.ListTasks(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, tasks)
}

func (h *Handler) createTask(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Title       string     `json:"title"`
		Description *string    `json:"description"`
		Priority    string     `json:"priority"`
		DueAt       *time.Time `json:"due_at"`
		SLAHours    *int       `json:"sla_hours"`
		AssignedTo  *string    `json:"assigned_to"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.Title == "" {
		writeError(w, r, "title is required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	input := core.TaskInput{
		Title:       body.Title,
		Description: body.Description,
		Priority:    core.TaskPriority(body.Priority),
		DueAt:       body.DueAt,
		SLAHours:    body.SLAHours,
		AssignedTo:  body.AssignedTo,
	}
	if input.Priority == "" {
		input.Priority = core.PriorityNormal
	}
	task, err := h.svc.CreateTask(r.Context(), input)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, task)
}

func (h *Handler) updateTask(w http.ResponseWriter, r *http.Request) {
	id, ok := alertID(w, r)
	if !ok {
		return
	}
	var body struct {
		Title       *string    `json:"title"`
		Description *string    `json:"description"`
		Status      *string    `json:"status"`
		Priority    *string    `json:"priority"`
		DueAt       *time.Time `json:"due_at"`
		AssignedTo  *string    `json:"assigned_to"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	update := core.TaskUpdate{
		Title:       body.Title,
		Description: body.Description,
		DueAt:       body.DueAt,
		AssignedTo:  body.AssignedTo,
	}
	if body.Status != nil {
		status := core.TaskStatus(*body.Status)
		update.Status = &status
	}
	if body.Priority != nil {
		priority := core.TaskPriority(*body.Priority)
		update.Priority = &priority
	}
	task, err := h.svc.UpdateTask(r.Context(), id, update)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, task)
}

func (h *Handler) runSweep(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.RunSweep(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, result)
}
