package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

const (
	DefaultConfigFileName = "config.toml"
	DefaultDataDir        = "data"
	DefaultDBName         = "daybook.db"
)

type Server struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

type Logging struct {
	Level  string `toml:"level"`  // debug, info, warn, error
	Format string `toml:"format"` // text or json
}

type Planner struct {
	// WriteDebounceMS is how long edits to a day coalesce before the day
	// file and override cache row are rewritten.
	WriteDebounceMS int `toml:"write_debounce_ms"`
	// ReminderLeadMinutes is how far ahead of a timed activity the
	// reminder push fires.
	ReminderLeadMinutes int `toml:"reminder_lead_minutes"`
}

type Push struct {
	Enabled         bool   `toml:"enabled"`
	VAPIDPublicKey  string `toml:"vapid_public_key"`
	VAPIDPrivateKey string `toml:"vapid_private_key"`
	Subscriber      string `toml:"subscriber"` // mailto: contact for the push service
}

type Backup struct {
	Enabled   bool   `toml:"enabled"`
	Schedule  string `toml:"schedule"` // cron expression
	Dir       string `toml:"dir"`      // local snapshot directory
	KeepDays  int    `toml:"keep_days"`
	S3Bucket  string `toml:"s3_bucket"`
	S3Region  string `toml:"s3_region"`
	S3Prefix  string `toml:"s3_prefix"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	Endpoint  string `toml:"endpoint"` // for S3-compatible stores
}

type Config struct {
	DataDir string  `toml:"data_dir"`
	DBPath  string  `toml:"db_path"`
	Server  Server  `toml:"server"`
	Logging Logging `toml:"logging"`
	Planner Planner `toml:"planner"`
	Push    Push    `toml:"push"`
	Backup  Backup  `toml:"backup"`
}

// WriteDebounce returns the debounce window as a duration.
func (c Config) WriteDebounce() time.Duration {
	return time.Duration(c.Planner.WriteDebounceMS) * time.Millisecond
}

// ReminderLead returns the reminder lead time as a duration.
func (c Config) ReminderLead() time.Duration {
	return time.Duration(c.Planner.ReminderLeadMinutes) * time.Minute
}

// LoadOrCreate reads the config file, writing the defaults first if it does
// not exist yet. An existing file is unmarshaled into a zero Config so that
// defaults derived from other fields (db_path from data_dir) see what the
// file actually set.
func LoadOrCreate(path string) (Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		cfg := defaultConfig()
		if err := write(path, cfg); err != nil {
			return cfg, err
		}
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return defaultConfig(), err
	}
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return defaultConfig(), fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&cfg)
	return cfg, nil
}

func write(path string, cfg Config) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func applyDefaults(cfg *Config) {
	if cfg.DataDir == "" {
		cfg.DataDir = DefaultDataDir
	}
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(cfg.DataDir, DefaultDBName)
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Planner.WriteDebounceMS <= 0 {
		cfg.Planner.WriteDebounceMS = 500
	}
	if cfg.Planner.ReminderLeadMinutes <= 0 {
		cfg.Planner.ReminderLeadMinutes = 10
	}
	if cfg.Backup.Schedule == "" {
		cfg.Backup.Schedule = "0 3 * * *"
	}
	if cfg.Backup.Dir == "" {
		cfg.Backup.Dir = "backups"
	}
	if cfg.Backup.KeepDays <= 0 {
		cfg.Backup.KeepDays = 30
	}
}

func defaultConfig() Config {
	var cfg Config
	applyDefaults(&cfg)
	return cfg
}
