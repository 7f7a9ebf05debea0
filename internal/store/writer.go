package store

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukerupert/daybook/internal/model"
)

// pendingWrite holds the latest snapshot queued for a day. A newer Enqueue
// replaces the snapshot in place, so at most one flush per day is pending.
type pendingWrite struct {
	timer     *time.Timer
	text      string
	overrides model.OverrideMap
}

// Writer coalesces rapid edits to the same day into a single write. Each
// flush rewrites the whole day file and the override cache row from the
// snapshot captured at enqueue time.
type Writer struct {
	files  *FileStore
	cache  *OverrideCacheStore
	delay  time.Duration
	logger *slog.Logger

	// onError, when set, is called after a failed flush so the caller can
	// surface the failure. The snapshot is not retried.
	onError func(dayKey string, err error)

	mu      sync.Mutex
	pending map[string]*pendingWrite
	closed  bool
}

func NewWriter(files *FileStore, cache *OverrideCacheStore, delay time.Duration, logger *slog.Logger) *Writer {
	return &Writer{
		files:   files,
		cache:   cache,
		delay:   delay,
		logger:  logger.With("component", "writer"),
		pending: make(map[string]*pendingWrite),
	}
}

// OnError registers a callback for failed flushes. Must be set before the
// first Enqueue.
func (w *Writer) OnError(fn func(dayKey string, err error)) {
	w.onError = fn
}

// Enqueue schedules a write of the given day. If a flush for the same day is
// already pending, its snapshot is replaced and the debounce window restarts.
func (w *Writer) Enqueue(dayKey, text string, overrides model.OverrideMap) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		// Late enqueue after shutdown: write synchronously rather than drop.
		go w.write(dayKey, text, overrides.Clone())
		return
	}

	if p, ok := w.pending[dayKey]; ok {
		p.text = text
		p.overrides = overrides.Clone()
		p.timer.Reset(w.delay)
		return
	}

	p := &pendingWrite{text: text, overrides: overrides.Clone()}
	p.timer = time.AfterFunc(w.delay, func() { w.flush(dayKey) })
	w.pending[dayKey] = p
}

func (w *Writer) flush(dayKey string) {
	w.mu.Lock()
	p, ok := w.pending[dayKey]
	if !ok {
		w.mu.Unlock()
		return
	}
	delete(w.pending, dayKey)
	w.mu.Unlock()

	w.write(dayKey, p.text, p.overrides)
}

func (w *Writer) write(dayKey, text string, overrides model.OverrideMap) {
	if err := w.persist(dayKey, text, overrides); err != nil {
		w.logger.Error("flush failed", "day", dayKey, "error", err)
		if w.onError != nil {
			w.onError(dayKey, err)
		}
		return
	}
	w.logger.Debug("flushed day", "day", dayKey)
}

func (w *Writer) persist(dayKey, text string, overrides model.OverrideMap) error {
	if err := w.files.WriteDay(dayKey, text); err != nil {
		return err
	}
	if w.cache == nil {
		return nil
	}
	if len(overrides) == 0 {
		if err := w.cache.Delete(dayKey); err != nil {
			return fmt.Errorf("clear override cache: %w", err)
		}
		return nil
	}
	if err := w.cache.Put(dayKey, overrides); err != nil {
		return fmt.Errorf("update override cache: %w", err)
	}
	return nil
}

// Flush writes every pending day immediately.
func (w *Writer) Flush() {
	w.mu.Lock()
	drained := w.pending
	w.pending = make(map[string]*pendingWrite)
	w.mu.Unlock()

	for dayKey, p := range drained {
		p.timer.Stop()
		w.write(dayKey, p.text, p.overrides)
	}
}

// Close flushes all pending writes and rejects the debounce path for any
// writes enqueued afterwards.
func (w *Writer) Close() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	w.Flush()
}
