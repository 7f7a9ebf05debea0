package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukerupert/daybook/internal/datemath"
	"github.com/dukerupert/daybook/internal/model"
	"github.com/dukerupert/daybook/internal/planner"
)

// DayViewer builds the merged display list for a day.
type DayViewer interface {
	Day(dayKey string, templates []model.RecurringTemplate) (planner.DayView, error)
}

// TemplateSource loads the current recurring templates.
type TemplateSource interface {
	LoadTemplates() ([]model.RecurringTemplate, error)
}

// SubscriptionStore lists subscriptions and drops expired ones.
type SubscriptionStore interface {
	List() ([]model.PushSubscription, error)
	DeleteByEndpoint(endpoint string) error
}

// Scheduler checks today's merged view once a minute and pushes a reminder
// for each timed, not yet completed activity entering the lead window.
type Scheduler struct {
	service  *Service
	subs     SubscriptionStore
	planner  DayViewer
	tmpls    TemplateSource
	lead     time.Duration
	interval time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	sent   map[string]struct{}
	cancel context.CancelFunc
	done   chan struct{}
}

func NewScheduler(svc *Service, subs SubscriptionStore, planner DayViewer, tmpls TemplateSource, lead time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		service:  svc,
		subs:     subs,
		planner:  planner,
		tmpls:    tmpls,
		lead:     lead,
		interval: time.Minute,
		logger:   logger.With("component", "reminders"),
		sent:     make(map[string]struct{}),
	}
}

// Start begins the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.tick(time.Now())
			}
		}
	}()
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (s *Scheduler) tick(now time.Time) {
	dayKey := datemath.FormatDayKey(now)

	templates, err := s.tmpls.LoadTemplates()
	if err != nil {
		s.logger.Error("load templates", "error", err)
		return
	}
	view, err := s.planner.Day(dayKey, templates)
	if err != nil {
		s.logger.Error("build day view", "day", dayKey, "error", err)
		return
	}

	due := DueReminders(view.Activities, now, s.lead)
	if len(due) == 0 {
		return
	}

	subs, err := s.subs.List()
	if err != nil {
		s.logger.Error("list subscriptions", "error", err)
		return
	}
	if len(subs) == 0 {
		return
	}

	for _, act := range due {
		key := reminderKey(dayKey, act)
		if s.alreadySent(key) {
			continue
		}
		s.markSent(key)

		payload := Payload{
			Title: "Daybook",
			Body:  fmt.Sprintf("%s at %s", act.Title, act.Time),
			URL:   "/",
			Tag:   key,
		}
		for i := range subs {
			if err := s.service.Send(&subs[i], payload); err != nil {
				if errors.Is(err, ErrExpired) {
					if derr := s.subs.DeleteByEndpoint(subs[i].Endpoint); derr != nil {
						s.logger.Error("drop expired subscription", "error", derr)
					}
					continue
				}
				s.logger.Error("send reminder", "error", err)
			}
		}
	}

	s.prune(dayKey)
}

// DueReminders picks the activities whose start time falls inside the lead
// window (now, now+lead]. Untimed, malformed, and already completed
// activities never remind.
func DueReminders(activities []model.DisplayActivity, now time.Time, lead time.Duration) []model.DisplayActivity {
	var due []model.DisplayActivity
	day := datemath.StartOfDay(now)

	for _, act := range activities {
		if act.Done || act.Time == "" {
			continue
		}
		start, err := time.ParseInLocation("15:04", act.Time, time.Local)
		if err != nil {
			continue
		}
		at := day.Add(time.Duration(start.Hour())*time.Hour + time.Duration(start.Minute())*time.Minute)
		if at.After(now) && !at.After(now.Add(lead)) {
			due = append(due, act)
		}
	}
	return due
}

// reminderKey identifies an activity across render cycles. One-off activity
// IDs only live as long as the day's resident session, so recurring instances
// key on the template ID and one-offs on title plus time.
func reminderKey(dayKey string, act model.DisplayActivity) string {
	if act.IsRecurring {
		return dayKey + "|" + act.TemplateID
	}
	return dayKey + "|" + act.Title + "|" + act.Time
}

func (s *Scheduler) alreadySent(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sent[key]
	return ok
}

func (s *Scheduler) markSent(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent[key] = struct{}{}
}

// prune drops dedupe entries from previous days.
func (s *Scheduler) prune(todayKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prefix := todayKey + "|"
	for key := range s.sent {
		if len(key) < len(prefix) || key[:len(prefix)] != prefix {
			delete(s.sent, key)
		}
	}
}
