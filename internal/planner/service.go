package planner

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/dukerupert/daybook/internal/datemath"
	"github.com/dukerupert/daybook/internal/model"
	"github.com/dukerupert/daybook/internal/record"
)

// DayFiles reads stored day records. An absent day reads as empty text.
type DayFiles interface {
	ReadDay(dayKey string) (string, error)
}

// OverrideCache is the read-through cache in front of the override state also
// embedded in the day record text. A miss returns (nil, nil).
type OverrideCache interface {
	Get(dayKey string) (model.OverrideMap, error)
}

// DayWriter accepts debounced persistence requests. A newer request for the
// same day supersedes a pending one.
type DayWriter interface {
	Enqueue(dayKey, text string, overrides model.OverrideMap)
}

// Service orchestrates day reads and edits. A day's session is loaded from
// disk on first access and stays resident after that: in-memory state is the
// source of truth, and the debounced writer only ever receives snapshots of
// it. Reading the file again would hand back whatever the last flush wrote,
// losing edits still inside the debounce window and reassigning one-off
// activity IDs mid-conversation.
type Service struct {
	mu       sync.Mutex
	files    DayFiles
	cache    OverrideCache
	writer   DayWriter
	logger   *slog.Logger
	sessions map[string]*Session
}

func NewService(files DayFiles, cache OverrideCache, writer DayWriter, logger *slog.Logger) *Service {
	return &Service{
		files:    files,
		cache:    cache,
		writer:   writer,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// DayView is one day's merged display list.
type DayView struct {
	Day        string                  `json:"day"`
	Activities []model.DisplayActivity `json:"activities"`
}

// Day builds the merged display list for one day.
func (s *Service) Day(dayKey string, templates []model.RecurringTemplate) (DayView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.session(dayKey)
	if err != nil {
		return DayView{}, err
	}
	return DayView{Day: dayKey, Activities: sess.Display(templates)}, nil
}

// Week builds seven consecutive day views starting at startKey. Each day is
// an independent read+merge pass; no state is shared between them.
func (s *Service) Week(startKey string, templates []model.RecurringTemplate) ([]DayView, error) {
	start, err := datemath.ParseDayKey(startKey)
	if err != nil {
		return nil, err
	}

	views := make([]DayView, 0, 7)
	for i := 0; i < 7; i++ {
		key := datemath.FormatDayKey(start.AddDate(0, 0, i))
		view, err := s.Day(key, templates)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, nil
}

// Mutate applies one intent to the day's session, queues persistence of the
// full serialized record, and returns the regenerated display list.
func (s *Service) Mutate(dayKey string, templates []model.RecurringTemplate, apply func(*Session) error) (DayView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.session(dayKey)
	if err != nil {
		return DayView{}, err
	}

	if err := apply(sess); err != nil {
		return DayView{}, err
	}

	overrides := sess.Overrides()
	text := record.Serialize(dayKey, sess.Activities(), overrides)
	s.writer.Enqueue(dayKey, text, overrides)

	return DayView{Day: dayKey, Activities: sess.Display(templates)}, nil
}

// Forget drops any resident sessions so the next access reloads from disk.
// Used after a restore replaces the day files underneath the service.
func (s *Service) Forget() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = make(map[string]*Session)
}

// session returns the resident session for a day, loading it from the day
// file and override cache on first access. Callers hold s.mu.
func (s *Service) session(dayKey string) (*Session, error) {
	if sess, ok := s.sessions[dayKey]; ok {
		return sess, nil
	}

	day, err := datemath.ParseDayKey(dayKey)
	if err != nil {
		return nil, err
	}

	text, err := s.files.ReadDay(dayKey)
	if err != nil {
		return nil, fmt.Errorf("read day %s: %w", dayKey, err)
	}
	parsed := record.Parse(text)

	overrides := parsed.Overrides
	if cached, err := s.cache.Get(dayKey); err != nil {
		s.logger.Warn("override cache read failed, using day record", "day", dayKey, "error", err)
	} else if cached != nil {
		overrides = cached
	}

	sess := NewSession(day, dayKey, parsed.Activities, overrides)
	s.sessions[dayKey] = sess
	return sess, nil
}
