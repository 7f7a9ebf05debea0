package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dukerupert/daybook/internal/model"
	"github.com/dukerupert/daybook/internal/recurrence"
)

const (
	daysDirName       = "days"
	templatesFileName = "templates.json"
)

// FileStore owns the plain-text day records and the recurring templates
// document under the data directory. Day files are read and rewritten whole;
// the templates document is read wholesale and rewritten wholesale on CRUD.
type FileStore struct {
	dataDir string
	logger  *slog.Logger
}

func NewFileStore(dataDir string, logger *slog.Logger) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Join(dataDir, daysDirName), 0o755); err != nil {
		return nil, fmt.Errorf("create days dir: %w", err)
	}
	return &FileStore{dataDir: dataDir, logger: logger}, nil
}

// DataDir returns the root directory, for backup snapshots.
func (f *FileStore) DataDir() string {
	return f.dataDir
}

func (f *FileStore) dayPath(dayKey string) string {
	return filepath.Join(f.dataDir, daysDirName, dayKey+".txt")
}

// ReadDay returns the raw text of a day record. An absent day reads as "".
func (f *FileStore) ReadDay(dayKey string) (string, error) {
	data, err := os.ReadFile(f.dayPath(dayKey))
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read day %s: %w", dayKey, err)
	}
	return string(data), nil
}

// WriteDay fully overwrites a day record. The write goes through a temp file
// and rename so a crash never leaves a half-written record.
func (f *FileStore) WriteDay(dayKey, text string) error {
	path := f.dayPath(dayKey)
	tmp := path + ".tmp"

	if err := os.WriteFile(tmp, []byte(text), 0o644); err != nil {
		return fmt.Errorf("write day %s: %w", dayKey, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename day %s: %w", dayKey, err)
	}
	return nil
}

func (f *FileStore) templatesPath() string {
	return filepath.Join(f.dataDir, templatesFileName)
}

// LoadTemplates reads the templates document. A missing or corrupt document
// resets to an empty list rather than failing; legacy recurrence shapes are
// normalized on the way in.
func (f *FileStore) LoadTemplates() ([]model.RecurringTemplate, error) {
	data, err := os.ReadFile(f.templatesPath())
	if os.IsNotExist(err) {
		return []model.RecurringTemplate{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read templates: %w", err)
	}

	var templates []model.RecurringTemplate
	if err := json.Unmarshal(data, &templates); err != nil {
		f.logger.Warn("templates document corrupt, resetting to empty list", "error", err)
		return []model.RecurringTemplate{}, nil
	}

	for i := range templates {
		recurrence.Normalize(&templates[i])
	}
	return templates, nil
}

// SaveTemplates rewrites the templates document wholesale.
func (f *FileStore) SaveTemplates(templates []model.RecurringTemplate) error {
	if templates == nil {
		templates = []model.RecurringTemplate{}
	}
	data, err := json.MarshalIndent(templates, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal templates: %w", err)
	}

	path := f.templatesPath()
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write templates: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename templates: %w", err)
	}
	return nil
}
