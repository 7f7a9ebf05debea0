package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/daybook/internal/model"
	"github.com/dukerupert/daybook/internal/planner"
	ws "github.com/dukerupert/daybook/internal/websocket"
)

var errNotFound = errors.New("not found")

// TemplateSource loads the current recurring templates.
type TemplateSource interface {
	LoadTemplates() ([]model.RecurringTemplate, error)
}

// DayHandler serves day views and applies edit intents. Every mutation goes
// through the planner service, which queues the debounced write and returns
// the regenerated display list; the handler broadcasts the refresh.
type DayHandler struct {
	planner   *planner.Service
	templates TemplateSource
	hub       *ws.Hub
	logger    *slog.Logger
}

func NewDayHandler(p *planner.Service, templates TemplateSource, hub *ws.Hub, logger *slog.Logger) *DayHandler {
	return &DayHandler{planner: p, templates: templates, hub: hub, logger: logger}
}

func (h *DayHandler) loadTemplates(w http.ResponseWriter) ([]model.RecurringTemplate, bool) {
	templates, err := h.templates.LoadTemplates()
	if err != nil {
		h.logger.Error("load templates", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load templates"})
		return nil, false
	}
	return templates, true
}

// Get handles GET /api/days/{day}
func (h *DayHandler) Get(w http.ResponseWriter, r *http.Request) {
	day, err := dayParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	templates, ok := h.loadTemplates(w)
	if !ok {
		return
	}

	view, err := h.planner.Day(day, templates)
	if err != nil {
		h.logger.Error("build day view", "day", day, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to build day view"})
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Week handles GET /api/days/{day}/week
func (h *DayHandler) Week(w http.ResponseWriter, r *http.Request) {
	day, err := dayParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	templates, ok := h.loadTemplates(w)
	if !ok {
		return
	}

	views, err := h.planner.Week(day, templates)
	if err != nil {
		h.logger.Error("build week view", "start", day, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to build week view"})
		return
	}
	writeJSON(w, http.StatusOK, views)
}

// mutate runs one intent and replies with the regenerated day view.
func (h *DayHandler) mutate(w http.ResponseWriter, day string, apply func(*planner.Session) error) {
	templates, ok := h.loadTemplates(w)
	if !ok {
		return
	}

	view, err := h.planner.Mutate(day, templates, apply)
	if errors.Is(err, errNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "activity not found"})
		return
	}
	if err != nil {
		h.logger.Error("apply day mutation", "day", day, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to update day"})
		return
	}

	h.hub.Broadcast(ws.DayUpdated(day))
	writeJSON(w, http.StatusOK, view)
}

type activityRequest struct {
	Title string `json:"title"`
	Time  string `json:"time"`
	Items []struct {
		Text string `json:"text"`
		Done bool   `json:"done"`
	} `json:"items"`
}

type doneRequest struct {
	Done bool `json:"done"`
}

type itemRequest struct {
	Text string `json:"text"`
}

type itemToggleRequest struct {
	Key  string `json:"key"`
	Done bool   `json:"done"`
}

// CreateActivity handles POST /api/days/{day}/activities
func (h *DayHandler) CreateActivity(w http.ResponseWriter, r *http.Request) {
	day, err := dayParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	var req activityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "title is required"})
		return
	}

	h.mutate(w, day, func(sess *planner.Session) error {
		sess.AddOneOff(req.Title, req.Time)
		return nil
	})
}

// UpdateActivity handles PUT /api/days/{day}/activities/{id}
func (h *DayHandler) UpdateActivity(w http.ResponseWriter, r *http.Request) {
	day, err := dayParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	var req activityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "title is required"})
		return
	}

	items := make([]model.ChecklistItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, model.ChecklistItem{Text: it.Text, Done: it.Done})
	}

	id := r.PathValue("id")
	h.mutate(w, day, func(sess *planner.Session) error {
		if !sess.EditOneOff(id, req.Title, req.Time, items) {
			return errNotFound
		}
		return nil
	})
}

// DeleteActivity handles DELETE /api/days/{day}/activities/{id}
func (h *DayHandler) DeleteActivity(w http.ResponseWriter, r *http.Request) {
	day, err := dayParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	id := r.PathValue("id")
	h.mutate(w, day, func(sess *planner.Session) error {
		if !sess.DeleteOneOff(id) {
			return errNotFound
		}
		return nil
	})
}

// ToggleActivity handles POST /api/days/{day}/activities/{id}/toggle
func (h *DayHandler) ToggleActivity(w http.ResponseWriter, r *http.Request) {
	day, err := dayParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	var req doneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	id := r.PathValue("id")
	h.mutate(w, day, func(sess *planner.Session) error {
		if !sess.ToggleOneOff(id, req.Done) {
			return errNotFound
		}
		return nil
	})
}

// AddActivityItem handles POST /api/days/{day}/activities/{id}/items
func (h *DayHandler) AddActivityItem(w http.ResponseWriter, r *http.Request) {
	day, err := dayParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	var req itemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	req.Text = strings.TrimSpace(req.Text)
	if req.Text == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "text is required"})
		return
	}

	id := r.PathValue("id")
	h.mutate(w, day, func(sess *planner.Session) error {
		if !sess.AddOneOffItem(id, req.Text) {
			return errNotFound
		}
		return nil
	})
}

// ToggleActivityItem handles POST /api/days/{day}/activities/{id}/items/{index}/toggle
func (h *DayHandler) ToggleActivityItem(w http.ResponseWriter, r *http.Request) {
	day, err := dayParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	index, err := indexParam(r, "index")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid index"})
		return
	}
	var req doneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	id := r.PathValue("id")
	h.mutate(w, day, func(sess *planner.Session) error {
		if !sess.ToggleOneOffItem(id, index, req.Done) {
			return errNotFound
		}
		return nil
	})
}

// DeleteActivityItem handles DELETE /api/days/{day}/activities/{id}/items/{index}
func (h *DayHandler) DeleteActivityItem(w http.ResponseWriter, r *http.Request) {
	day, err := dayParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	index, err := indexParam(r, "index")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid index"})
		return
	}

	id := r.PathValue("id")
	h.mutate(w, day, func(sess *planner.Session) error {
		if !sess.DeleteOneOffItem(id, index) {
			return errNotFound
		}
		return nil
	})
}

// ToggleInstance handles POST /api/days/{day}/recurring/{templateId}/toggle
func (h *DayHandler) ToggleInstance(w http.ResponseWriter, r *http.Request) {
	day, err := dayParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	var req doneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	templateID := r.PathValue("templateId")
	h.mutate(w, day, func(sess *planner.Session) error {
		sess.ToggleRecurringInstance(templateID, req.Done)
		return nil
	})
}

// ToggleInstanceItem handles POST /api/days/{day}/recurring/{templateId}/items/toggle.
// The item key travels in the body because template item keys may contain
// characters that do not survive a path segment.
func (h *DayHandler) ToggleInstanceItem(w http.ResponseWriter, r *http.Request) {
	day, err := dayParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	var req itemToggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if req.Key == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "key is required"})
		return
	}

	templateID := r.PathValue("templateId")
	h.mutate(w, day, func(sess *planner.Session) error {
		sess.ToggleRecurringItem(templateID, req.Key, req.Done)
		return nil
	})
}

// AddInstanceItem handles POST /api/days/{day}/recurring/{templateId}/items
func (h *DayHandler) AddInstanceItem(w http.ResponseWriter, r *http.Request) {
	day, err := dayParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	var req itemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	req.Text = strings.TrimSpace(req.Text)
	if req.Text == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "text is required"})
		return
	}

	templateID := r.PathValue("templateId")
	h.mutate(w, day, func(sess *planner.Session) error {
		sess.AddAdHocItem(templateID, req.Text)
		return nil
	})
}

// ToggleAdHocItem handles POST /api/days/{day}/recurring/{templateId}/adhoc/{index}/toggle
func (h *DayHandler) ToggleAdHocItem(w http.ResponseWriter, r *http.Request) {
	day, err := dayParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	index, err := indexParam(r, "index")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid index"})
		return
	}
	var req doneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	templateID := r.PathValue("templateId")
	h.mutate(w, day, func(sess *planner.Session) error {
		sess.ToggleAdHocItem(templateID, index, req.Done)
		return nil
	})
}

// DeleteAdHocItem handles DELETE /api/days/{day}/recurring/{templateId}/adhoc/{index}
func (h *DayHandler) DeleteAdHocItem(w http.ResponseWriter, r *http.Request) {
	day, err := dayParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	index, err := indexParam(r, "index")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid index"})
		return
	}

	templateID := r.PathValue("templateId")
	h.mutate(w, day, func(sess *planner.Session) error {
		sess.DeleteAdHocItem(templateID, index)
		return nil
	})
}
