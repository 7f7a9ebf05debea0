package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dukerupert/daybook/internal/model"
)

// OverrideCacheStore persists the JSON-serialized override map per day. It is
// a read-through cache in front of the override blocks embedded in the day
// record text; both are rewritten from the same in-memory state on every
// flush, so they cannot diverge.
type OverrideCacheStore struct {
	db *sql.DB
}

func NewOverrideCacheStore(db *sql.DB) *OverrideCacheStore {
	return &OverrideCacheStore{db: db}
}

// Get returns the cached override map for a day, or (nil, nil) on a miss.
// A corrupt row reads as a miss; the day record text is the fallback.
func (s *OverrideCacheStore) Get(dayKey string) (model.OverrideMap, error) {
	var data string
	err := s.db.QueryRow(`SELECT data FROM day_overrides WHERE day_key = ?`, dayKey).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get day overrides: %w", err)
	}

	var m model.OverrideMap
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		return nil, nil
	}
	return m, nil
}

// Put replaces the day's cached override map wholesale.
func (s *OverrideCacheStore) Put(dayKey string, overrides model.OverrideMap) error {
	data, err := json.Marshal(overrides)
	if err != nil {
		return fmt.Errorf("marshal day overrides: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO day_overrides (day_key, data, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(day_key) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		dayKey, string(data), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("put day overrides: %w", err)
	}
	return nil
}

// Delete removes a day's cache entry.
func (s *OverrideCacheStore) Delete(dayKey string) error {
	if _, err := s.db.Exec(`DELETE FROM day_overrides WHERE day_key = ?`, dayKey); err != nil {
		return fmt.Errorf("delete day overrides: %w", err)
	}
	return nil
}
