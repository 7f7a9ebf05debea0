package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/dukerupert/daybook/internal/model"
	"github.com/dukerupert/daybook/internal/recurrence"
	"github.com/dukerupert/daybook/internal/store"
	ws "github.com/dukerupert/daybook/internal/websocket"
)

// TemplateHandler manages the recurring templates document. The document is
// rewritten wholesale on every change, so a mutex serializes the
// read-modify-write cycle.
type TemplateHandler struct {
	mu     sync.Mutex
	files  *store.FileStore
	hub    *ws.Hub
	logger *slog.Logger
}

func NewTemplateHandler(files *store.FileStore, hub *ws.Hub, logger *slog.Logger) *TemplateHandler {
	return &TemplateHandler{files: files, hub: hub, logger: logger}
}

type templateRequest struct {
	Title      string           `json:"title"`
	Time       string           `json:"time"`
	Items      []string         `json:"items"`
	Recurrence model.Recurrence `json:"recurrence"`
	StartDate  string           `json:"startDate"`
	EndDate    string           `json:"endDate"`
}

func (req *templateRequest) toTemplate(id string) model.RecurringTemplate {
	items := make([]model.TemplateItem, 0, len(req.Items))
	for _, text := range req.Items {
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		items = append(items, model.TemplateItem{ID: uuid.NewString(), Text: text})
	}
	return model.RecurringTemplate{
		ID:         id,
		Title:      strings.TrimSpace(req.Title),
		Time:       req.Time,
		Items:      items,
		Recurrence: req.Recurrence,
		StartDate:  req.StartDate,
		EndDate:    req.EndDate,
	}
}

// List handles GET /api/templates
func (h *TemplateHandler) List(w http.ResponseWriter, r *http.Request) {
	templates, err := h.files.LoadTemplates()
	if err != nil {
		h.logger.Error("load templates", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load templates"})
		return
	}
	writeJSON(w, http.StatusOK, templates)
}

// Create handles POST /api/templates
func (h *TemplateHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "title is required"})
		return
	}

	tmpl := req.toTemplate(uuid.NewString())
	recurrence.Normalize(&tmpl)
	if err := recurrence.Validate(tmpl); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	templates, err := h.files.LoadTemplates()
	if err != nil {
		h.logger.Error("load templates", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load templates"})
		return
	}
	templates = append(templates, tmpl)
	if err := h.files.SaveTemplates(templates); err != nil {
		h.logger.Error("save templates", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to save templates"})
		return
	}

	h.hub.Broadcast(ws.TemplateChanged("created", tmpl.ID))
	writeJSON(w, http.StatusCreated, tmpl)
}

// Update handles PUT /api/templates/{id}. The template's identity is stable:
// the ID never changes, so day overrides keep pointing at it.
func (h *TemplateHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "title is required"})
		return
	}

	id := r.PathValue("id")
	updated := req.toTemplate(id)
	recurrence.Normalize(&updated)
	if err := recurrence.Validate(updated); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	templates, err := h.files.LoadTemplates()
	if err != nil {
		h.logger.Error("load templates", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load templates"})
		return
	}

	found := false
	for i := range templates {
		if templates[i].ID != id {
			continue
		}
		// Keep existing item IDs where the text survives, so per-day item
		// completion state carries across edits.
		updated.Items = carryItemIDs(templates[i].Items, updated.Items)
		templates[i] = updated
		found = true
		break
	}
	if !found {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "template not found"})
		return
	}

	if err := h.files.SaveTemplates(templates); err != nil {
		h.logger.Error("save templates", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to save templates"})
		return
	}

	h.hub.Broadcast(ws.TemplateChanged("updated", id))
	writeJSON(w, http.StatusOK, updated)
}

// Delete handles DELETE /api/templates/{id}. Per-day overrides referencing
// the template stay in their day records; orphaned overrides are inert.
func (h *TemplateHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	h.mu.Lock()
	defer h.mu.Unlock()

	templates, err := h.files.LoadTemplates()
	if err != nil {
		h.logger.Error("load templates", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load templates"})
		return
	}

	kept := templates[:0]
	found := false
	for _, t := range templates {
		if t.ID == id {
			found = true
			continue
		}
		kept = append(kept, t)
	}
	if !found {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "template not found"})
		return
	}

	if err := h.files.SaveTemplates(kept); err != nil {
		h.logger.Error("save templates", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to save templates"})
		return
	}

	h.hub.Broadcast(ws.TemplateChanged("deleted", id))
	w.WriteHeader(http.StatusNoContent)
}

// carryItemIDs re-uses the old ID for any new item whose text matches an old
// item, falling back to the freshly generated ID.
func carryItemIDs(old, updated []model.TemplateItem) []model.TemplateItem {
	byText := make(map[string]string, len(old))
	for _, it := range old {
		if _, ok := byText[it.Text]; !ok {
			byText[it.Text] = it.ID
		}
	}
	for i := range updated {
		if id, ok := byText[updated[i].Text]; ok && id != "" {
			updated[i].ID = id
			delete(byText, updated[i].Text)
		}
	}
	return updated
}
