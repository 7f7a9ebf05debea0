package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/dukerupert/daybook/internal/database"
	"github.com/dukerupert/daybook/internal/planner"
	"github.com/dukerupert/daybook/internal/store"
	ws "github.com/dukerupert/daybook/internal/websocket"
)

func setupDayHandler(t *testing.T) (*DayHandler, *store.FileStore) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	files, err := store.NewFileStore(t.TempDir(), logger)
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}

	cache := store.NewOverrideCacheStore(db)
	writer := store.NewWriter(files, cache, time.Millisecond, logger)
	t.Cleanup(writer.Close)

	svc := planner.NewService(files, cache, writer, logger)
	hub := ws.NewHub(logger)
	return NewDayHandler(svc, files, hub, logger), files
}

// do routes a request through a mux with the day routes registered, so path
// values resolve the same way they do in production.
func doDay(t *testing.T, h *DayHandler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/days/{day}", h.Get)
	mux.HandleFunc("GET /api/days/{day}/week", h.Week)
	mux.HandleFunc("POST /api/days/{day}/activities", h.CreateActivity)
	mux.HandleFunc("PUT /api/days/{day}/activities/{id}", h.UpdateActivity)
	mux.HandleFunc("DELETE /api/days/{day}/activities/{id}", h.DeleteActivity)
	mux.HandleFunc("POST /api/days/{day}/activities/{id}/toggle", h.ToggleActivity)
	mux.HandleFunc("POST /api/days/{day}/activities/{id}/items", h.AddActivityItem)
	mux.HandleFunc("POST /api/days/{day}/recurring/{templateId}/toggle", h.ToggleInstance)

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decodeView(t *testing.T, rec *httptest.ResponseRecorder) planner.DayView {
	t.Helper()
	var view planner.DayView
	if err := json.NewDecoder(rec.Body).Decode(&view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	return view
}

func TestGetEmptyDay(t *testing.T) {
	h, _ := setupDayHandler(t)

	rec := doDay(t, h, "GET", "/api/days/2025-01-15", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	view := decodeView(t, rec)
	if view.Day != "2025-01-15" {
		t.Errorf("day = %q", view.Day)
	}
	if len(view.Activities) != 0 {
		t.Errorf("expected empty day, got %d activities", len(view.Activities))
	}
}

func TestGetInvalidDayKey(t *testing.T) {
	h, _ := setupDayHandler(t)

	rec := doDay(t, h, "GET", "/api/days/january-15", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestCreateAndToggleActivity(t *testing.T) {
	h, _ := setupDayHandler(t)

	rec := doDay(t, h, "POST", "/api/days/2025-01-15/activities", `{"title":"Standup","time":"09:00"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body.String())
	}
	view := decodeView(t, rec)
	if len(view.Activities) != 1 {
		t.Fatalf("expected 1 activity, got %d", len(view.Activities))
	}
	act := view.Activities[0]
	if act.Title != "Standup" || act.Time != "09:00" || act.Done {
		t.Errorf("activity = %+v", act)
	}

	rec = doDay(t, h, "POST", "/api/days/2025-01-15/activities/"+act.ID+"/toggle", `{"done":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("toggle status = %d, body %s", rec.Code, rec.Body.String())
	}
	view = decodeView(t, rec)
	if !view.Activities[0].Done {
		t.Error("expected activity done after toggle")
	}
}

func TestCreateActivityRequiresTitle(t *testing.T) {
	h, _ := setupDayHandler(t)

	rec := doDay(t, h, "POST", "/api/days/2025-01-15/activities", `{"title":"   "}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestToggleMissingActivity(t *testing.T) {
	h, _ := setupDayHandler(t)

	rec := doDay(t, h, "POST", "/api/days/2025-01-15/activities/nope/toggle", `{"done":true}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestToggleRecurringInstance(t *testing.T) {
	h, files := setupDayHandler(t)

	doc := `[{"id":"tmpl-1","title":"Gym","time":"18:00","recurrence":{"type":"daily","interval":1}}]`
	if err := os.WriteFile(files.DataDir()+"/templates.json", []byte(doc), 0o644); err != nil {
		t.Fatalf("seed templates: %v", err)
	}

	rec := doDay(t, h, "POST", "/api/days/2025-01-15/recurring/tmpl-1/toggle", `{"done":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	view := decodeView(t, rec)
	if len(view.Activities) != 1 {
		t.Fatalf("expected 1 activity, got %d", len(view.Activities))
	}
	inst := view.Activities[0]
	if !inst.IsRecurring || inst.TemplateID != "tmpl-1" || !inst.Done {
		t.Errorf("instance = %+v", inst)
	}
}

func TestWeekSpansSevenDays(t *testing.T) {
	h, _ := setupDayHandler(t)

	rec := doDay(t, h, "GET", "/api/days/2025-01-13/week", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var views []planner.DayView
	if err := json.NewDecoder(rec.Body).Decode(&views); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(views) != 7 {
		t.Fatalf("expected 7 day views, got %d", len(views))
	}
	if views[0].Day != "2025-01-13" || views[6].Day != "2025-01-19" {
		t.Errorf("range = %s .. %s", views[0].Day, views[6].Day)
	}
}
