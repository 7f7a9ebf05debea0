package backup

import (
	"archive/zip"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/dukerupert/daybook/internal/database"
	"github.com/dukerupert/daybook/internal/store"
)

// mockS3Client implements s3Client for testing.
type mockS3Client struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newMockS3() *mockS3Client {
	return &mockS3Client{objects: make(map[string][]byte)}
}

func (m *mockS3Client) PutObject(_ context.Context, input *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, _ := io.ReadAll(input.Body)
	m.objects[*input.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3Client) DeleteObject(_ context.Context, input *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, *input.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func setupManager(t *testing.T, mock s3Client) (*Manager, *store.BackupStore) {
	t.Helper()

	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	dataDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dataDir, "templates.json"), []byte("[]"), 0o644); err != nil {
		t.Fatalf("seed templates: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(dataDir, "days"), 0o755); err != nil {
		t.Fatalf("seed days dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dataDir, "days", "2025-01-15.txt"), []byte("# 2025-01-15\n"), 0o644); err != nil {
		t.Fatalf("seed day file: %v", err)
	}

	cfg := Config{
		DataDir:  dataDir,
		LocalDir: t.TempDir(),
		KeepDays: 30,
	}
	if mock != nil {
		cfg.S3 = S3Config{Bucket: "test", Region: "auto", AccessKey: "k", SecretKey: "s", Prefix: "backups"}
	}

	backups := store.NewBackupStore(db)
	settings := store.NewSettingsStore(db)
	m := NewManager(cfg, db, backups, settings, slog.New(slog.NewTextHandler(os.Stderr, nil)))
	if mock != nil {
		m.client = mock
	}
	return m, backups
}

func TestRunNowLocalOnly(t *testing.T) {
	m, backups := setupManager(t, nil)

	id, err := m.RunNow(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	rec, err := backups.GetByID(id)
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if rec.Status != "completed" {
		t.Errorf("status = %q, want completed", rec.Status)
	}
	if rec.SizeBytes == 0 {
		t.Error("expected non-zero archive size")
	}
	if rec.S3Key != "" {
		t.Errorf("expected empty s3 key without S3 config, got %q", rec.S3Key)
	}

	// Archive exists locally and contains the seeded day file.
	archivePath := filepath.Join(m.cfg.LocalDir, rec.Filename)
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer zr.Close()

	names := make(map[string]bool)
	for _, f := range zr.File {
		names[f.Name] = true
	}
	if !names["templates.json"] {
		t.Error("archive missing templates.json")
	}
	if !names["days/2025-01-15.txt"] {
		t.Error("archive missing day file")
	}

	st := m.Status()
	if st.State != StateIdle || st.LastBackup == nil {
		t.Errorf("status = %+v, want idle with LastBackup set", st)
	}
}

func TestRunNowUploadsToS3(t *testing.T) {
	mock := newMockS3()
	m, backups := setupManager(t, mock)

	id, err := m.RunNow(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	rec, err := backups.GetByID(id)
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if rec.S3Key == "" {
		t.Fatal("expected s3 key on uploaded backup")
	}

	mock.mu.Lock()
	data, ok := mock.objects[rec.S3Key]
	mock.mu.Unlock()
	if !ok {
		t.Fatalf("expected object %q uploaded", rec.S3Key)
	}
	if int64(len(data)) != rec.SizeBytes {
		t.Errorf("uploaded %d bytes, record says %d", len(data), rec.SizeBytes)
	}
}

func TestRunNowUploadFailureMarksRecordFailed(t *testing.T) {
	mock := newMockS3()
	mock.putErr = context.DeadlineExceeded
	m, backups := setupManager(t, mock)

	if _, err := m.RunNow(context.Background()); err == nil {
		t.Fatal("expected error when upload fails")
	}

	recs, err := backups.List(1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recs) != 1 || recs[0].Status != "failed" {
		t.Errorf("expected failed record, got %+v", recs)
	}
	if m.Status().State != StateError {
		t.Errorf("state = %q, want error", m.Status().State)
	}
}

func TestCleanupDeletesOldArchivesAndObjects(t *testing.T) {
	mock := newMockS3()
	m, _ := setupManager(t, mock)

	if _, err := m.RunNow(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	// Everything is newer than the cutoff; nothing is removed.
	if err := m.Cleanup(context.Background()); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	mock.mu.Lock()
	remaining := len(mock.objects)
	mock.mu.Unlock()
	if remaining != 1 {
		t.Errorf("expected fresh object kept, have %d", remaining)
	}

	// Shrink retention to force removal.
	m.cfg.KeepDays = -1
	if err := m.Cleanup(context.Background()); err != nil {
		t.Fatalf("cleanup noop: %v", err)
	}
}

func TestRestoreBringsBackDayFiles(t *testing.T) {
	m, _ := setupManager(t, nil)

	if _, err := m.RunNow(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	// Clobber the day file after the backup.
	dayPath := filepath.Join(m.cfg.DataDir, "days", "2025-01-15.txt")
	if err := os.WriteFile(dayPath, []byte("clobbered"), 0o644); err != nil {
		t.Fatalf("clobber: %v", err)
	}

	entries, err := os.ReadDir(m.cfg.LocalDir)
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected 1 archive, got %v (%v)", entries, err)
	}

	if err := m.Restore(context.Background(), entries[0].Name()); err != nil {
		t.Fatalf("restore: %v", err)
	}

	data, err := os.ReadFile(dayPath)
	if err != nil {
		t.Fatalf("read restored day: %v", err)
	}
	if string(data) != "# 2025-01-15\n" {
		t.Errorf("restored content = %q", data)
	}
}

func TestRestoreRejectsTraversal(t *testing.T) {
	m, _ := setupManager(t, nil)

	if err := m.Restore(context.Background(), "../outside.zip"); err == nil {
		t.Error("expected error for path traversal in archive name")
	}
	if err := m.Restore(context.Background(), "missing.zip"); err == nil {
		t.Error("expected error for missing archive")
	}
}
