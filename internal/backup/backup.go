package backup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/robfig/cron/v3"

	"github.com/dukerupert/daybook/internal/model"
	"github.com/dukerupert/daybook/internal/store"
)

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Config holds S3-compatible storage configuration. An empty bucket or
// missing keys disables uploads; local snapshots still run.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	Prefix    string
	AccessKey string
	SecretKey string
}

// Config holds backup manager configuration.
type Config struct {
	S3       S3Config
	DataDir  string
	LocalDir string // snapshot directory, outside DataDir
	KeepDays int
}

// State represents the backup manager state.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StateError   State = "error"
)

// Status holds the current backup manager status.
type Status struct {
	State      State      `json:"state"`
	LastBackup *time.Time `json:"last_backup,omitempty"`
	Error      string     `json:"error,omitempty"`
	InProgress bool       `json:"in_progress"`
	S3Enabled  bool       `json:"s3_enabled"`
}

// Manager snapshots the whole data directory (day files, templates document,
// override cache database) into a zip archive on a cron schedule, keeps a
// bounded local history, and optionally uploads each archive to S3.
type Manager struct {
	mu     sync.RWMutex
	cfg    Config
	status Status

	db       *sql.DB
	backups  *store.BackupStore
	settings *store.SettingsStore
	client   s3Client
	logger   *slog.Logger

	cron *cron.Cron
}

// NewManager creates a backup manager.
func NewManager(cfg Config, db *sql.DB, backups *store.BackupStore, settings *store.SettingsStore, logger *slog.Logger) *Manager {
	m := &Manager{
		cfg:      cfg,
		db:       db,
		backups:  backups,
		settings: settings,
		logger:   logger.With("component", "backup"),
		status:   Status{State: StateIdle},
	}
	if cfg.S3.Bucket != "" && cfg.S3.AccessKey != "" && cfg.S3.SecretKey != "" {
		m.client = newS3Client(cfg.S3)
		m.status.S3Enabled = true
	}
	return m
}

func newS3Client(cfg S3Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

// Start schedules backups with the given cron expression.
func (m *Manager) Start(ctx context.Context, schedule string) error {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		if _, err := m.RunNow(ctx); err != nil {
			m.logger.Error("scheduled backup failed", "error", err)
		}
		if err := m.Cleanup(ctx); err != nil {
			m.logger.Error("backup cleanup failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule backup: %w", err)
	}

	m.mu.Lock()
	m.cron = c
	m.mu.Unlock()
	c.Start()
	return nil
}

// Stop halts the schedule and waits for a running job to finish.
func (m *Manager) Stop() {
	m.mu.RLock()
	c := m.cron
	m.mu.RUnlock()
	if c != nil {
		<-c.Stop().Done()
	}
}

// Status returns the current backup status.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Manager) setStatus(s Status) {
	m.mu.Lock()
	s.S3Enabled = m.client != nil
	if s.LastBackup == nil {
		s.LastBackup = m.status.LastBackup
	}
	m.status = s
	m.mu.Unlock()
}

// RunNow snapshots the data directory immediately and returns the backup
// record ID.
func (m *Manager) RunNow(ctx context.Context) (int64, error) {
	m.setStatus(Status{State: StateRunning, InProgress: true})

	id, err := m.run(ctx)
	if err != nil {
		m.setStatus(Status{State: StateError, Error: err.Error()})
		return 0, err
	}

	now := time.Now().UTC()
	m.setStatus(Status{State: StateIdle, LastBackup: &now})
	if m.settings != nil {
		if err := m.settings.Set(store.SettingLastBackupAt, now.Format(time.RFC3339)); err != nil {
			m.logger.Warn("record last backup time", "error", err)
		}
	}
	return id, nil
}

func (m *Manager) run(ctx context.Context) (int64, error) {
	if err := os.MkdirAll(m.cfg.LocalDir, 0o755); err != nil {
		return 0, fmt.Errorf("create backup dir: %w", err)
	}

	timestamp := time.Now().UTC().Format("2006-01-02T150405Z")
	filename := fmt.Sprintf("daybook-%s.zip", timestamp)

	var s3Key string
	if m.client != nil {
		s3Key = strings.TrimPrefix(filepath.ToSlash(filepath.Join(m.cfg.S3.Prefix, filename)), "/")
	}

	rec, err := m.backups.Create(filename, s3Key)
	if err != nil {
		return 0, fmt.Errorf("create backup record: %w", err)
	}

	// Checkpoint the WAL so the database file inside the archive is complete.
	if m.db != nil {
		if _, err := m.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
			m.backups.UpdateStatus(rec.ID, model.BackupStatusFailed, err.Error())
			return 0, fmt.Errorf("wal checkpoint: %w", err)
		}
	}

	archivePath := filepath.Join(m.cfg.LocalDir, filename)
	size, err := zipDataDir(m.cfg.DataDir, archivePath)
	if err != nil {
		m.backups.UpdateStatus(rec.ID, model.BackupStatusFailed, err.Error())
		return 0, err
	}

	if m.client != nil {
		if err := m.upload(ctx, rec.ID, archivePath, s3Key, size); err != nil {
			m.backups.UpdateStatus(rec.ID, model.BackupStatusFailed, err.Error())
			return 0, err
		}
	}

	if err := m.backups.UpdateCompleted(rec.ID, size); err != nil {
		return 0, fmt.Errorf("mark backup completed: %w", err)
	}
	m.logger.Info("backup completed", "file", filename, "bytes", size, "uploaded", m.client != nil)
	return rec.ID, nil
}

func (m *Manager) upload(ctx context.Context, id int64, archivePath, s3Key string, size int64) error {
	m.backups.UpdateStatus(id, model.BackupStatusUploading, "")

	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(m.cfg.S3.Bucket),
		Key:           aws.String(s3Key),
		Body:          f,
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return fmt.Errorf("upload to s3: %w", err)
	}
	return nil
}

// Cleanup removes local archives and backup rows older than the retention
// window, deleting the matching S3 objects for rows that were uploaded.
func (m *Manager) Cleanup(ctx context.Context) error {
	if m.cfg.KeepDays <= 0 {
		return nil
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -m.cfg.KeepDays)

	keys, err := m.backups.DeleteOlderThan(cutoff)
	if err != nil {
		return fmt.Errorf("prune backup rows: %w", err)
	}
	if m.client != nil {
		for _, key := range keys {
			if _, err := m.client.DeleteObject(ctx, &s3.DeleteObjectInput{
				Bucket: aws.String(m.cfg.S3.Bucket),
				Key:    aws.String(key),
			}); err != nil {
				m.logger.Warn("delete s3 object", "key", key, "error", err)
			}
		}
	}

	entries, err := os.ReadDir(m.cfg.LocalDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read backup dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".zip") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().UTC().Before(cutoff) {
			if err := os.Remove(filepath.Join(m.cfg.LocalDir, e.Name())); err != nil {
				m.logger.Warn("remove old archive", "file", e.Name(), "error", err)
			}
		}
	}
	return nil
}
