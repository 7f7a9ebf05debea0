package backup

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Restore extracts a local archive back over the data directory. Day record
// files and the templates document are replaced; the live database files are
// skipped, and the override cache is dropped instead so the restored day
// records become authoritative again.
func (m *Manager) Restore(ctx context.Context, filename string) error {
	if filename == "" || filename != filepath.Base(filename) {
		return fmt.Errorf("invalid archive name %q", filename)
	}

	archivePath := filepath.Join(m.cfg.LocalDir, filename)
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		name := filepath.ToSlash(f.Name)
		if strings.Contains(name, "..") || strings.HasPrefix(name, "/") {
			return fmt.Errorf("archive entry %q escapes data dir", f.Name)
		}
		if isDatabaseFile(name) {
			continue
		}

		dest := filepath.Join(m.cfg.DataDir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return fmt.Errorf("restore %s: %w", name, err)
		}
		if err := extractFile(f, dest); err != nil {
			return fmt.Errorf("restore %s: %w", name, err)
		}
	}

	// Cached override rows may describe the pre-restore day records.
	if m.db != nil {
		if _, err := m.db.ExecContext(ctx, `DELETE FROM day_overrides`); err != nil {
			return fmt.Errorf("drop override cache: %w", err)
		}
	}

	m.logger.Info("restore completed", "file", filename)
	return nil
}

func isDatabaseFile(name string) bool {
	return strings.HasSuffix(name, ".db") || strings.HasSuffix(name, "-wal") || strings.HasSuffix(name, "-shm")
}

func extractFile(f *zip.File, dest string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, rc)
	return err
}
