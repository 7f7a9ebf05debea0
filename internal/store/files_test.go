package store

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/dukerupert/daybook/internal/model"
)

func setupFileStore(t *testing.T) *FileStore {
	t.Helper()
	fs, err := NewFileStore(t.TempDir(), slog.New(slog.NewTextHandler(os.Stderr, nil)))
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	return fs
}

func TestReadDayMissing(t *testing.T) {
	fs := setupFileStore(t)

	text, err := fs.ReadDay("2025-01-15")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if text != "" {
		t.Errorf("expected empty text for absent day, got %q", text)
	}
}

func TestWriteDayRoundTrip(t *testing.T) {
	fs := setupFileStore(t)

	record := "# 2025-01-15\n\nActivity: 09:00 | Standup\n- [x] prep notes\n"
	if err := fs.WriteDay("2025-01-15", record); err != nil {
		t.Fatalf("write: %v", err)
	}

	text, err := fs.ReadDay("2025-01-15")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if text != record {
		t.Errorf("read back %q, want %q", text, record)
	}
}

func TestWriteDayOverwrites(t *testing.T) {
	fs := setupFileStore(t)

	if err := fs.WriteDay("2025-01-15", "first"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := fs.WriteDay("2025-01-15", "second"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	text, err := fs.ReadDay("2025-01-15")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if text != "second" {
		t.Errorf("expected full overwrite, got %q", text)
	}

	// No temp file left behind.
	entries, err := os.ReadDir(filepath.Join(fs.DataDir(), daysDirName))
	if err != nil {
		t.Fatalf("read days dir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected 1 file in days dir, got %d", len(entries))
	}
}

func TestLoadTemplatesMissing(t *testing.T) {
	fs := setupFileStore(t)

	templates, err := fs.LoadTemplates()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if templates == nil || len(templates) != 0 {
		t.Errorf("expected empty list, got %v", templates)
	}
}

func TestLoadTemplatesCorruptResetsToEmpty(t *testing.T) {
	fs := setupFileStore(t)

	if err := os.WriteFile(fs.templatesPath(), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write corrupt doc: %v", err)
	}

	templates, err := fs.LoadTemplates()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(templates) != 0 {
		t.Errorf("expected empty list from corrupt doc, got %v", templates)
	}
}

func TestSaveTemplatesRoundTrip(t *testing.T) {
	fs := setupFileStore(t)

	want := []model.RecurringTemplate{
		{
			ID:    "tmpl-1",
			Title: "Morning routine",
			Time:  "07:00",
			Recurrence: model.Recurrence{
				Type:       model.RecurWeekly,
				Interval:   1,
				DaysOfWeek: []int{1, 3, 5},
			},
			Items: []model.TemplateItem{{ID: "i1", Text: "stretch"}},
		},
	}
	if err := fs.SaveTemplates(want); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := fs.LoadTemplates()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 template, got %d", len(got))
	}
	if got[0].ID != "tmpl-1" || got[0].Title != "Morning routine" {
		t.Errorf("template mismatch: %+v", got[0])
	}
	if got[0].Recurrence.Type != model.RecurWeekly || len(got[0].Recurrence.DaysOfWeek) != 3 {
		t.Errorf("recurrence mismatch: %+v", got[0].Recurrence)
	}
}

func TestLoadTemplatesNormalizesLegacyShape(t *testing.T) {
	fs := setupFileStore(t)

	legacy := `[
	  {
	    "id": "tmpl-legacy",
	    "title": "Trash night",
	    "type": "weekly",
	    "dayOfWeek": 4
	  }
	]`
	if err := os.WriteFile(fs.templatesPath(), []byte(legacy), 0o644); err != nil {
		t.Fatalf("write legacy doc: %v", err)
	}

	got, err := fs.LoadTemplates()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 template, got %d", len(got))
	}
	r := got[0].Recurrence
	if r.Type != model.RecurWeekly {
		t.Errorf("type = %q, want weekly", r.Type)
	}
	if r.Interval != 1 {
		t.Errorf("interval = %d, want 1", r.Interval)
	}
	if len(r.DaysOfWeek) != 1 || r.DaysOfWeek[0] != 4 {
		t.Errorf("daysOfWeek = %v, want [4]", r.DaysOfWeek)
	}
}
