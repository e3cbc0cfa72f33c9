package storage

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/planet0104/keyboard-counter/pkg/counter"
)

// DefaultSaveInterval is used when NewSaver gets a non-positive interval.
const DefaultSaveInterval = 60 * time.Second

// Snapshotter supplies the state to persist. *counter.Counter satisfies it.
type Snapshotter interface {
	Snapshot() counter.State
}

// SaverStats reports how the saver has fared so far.
type SaverStats struct {
	Saves    uint64    `json:"saves"`
	Failures uint64    `json:"failures"`
	LastSave time.Time `json:"last_save,omitzero"`
	LastErr  string    `json:"last_error,omitempty"`
}

// Saver writes snapshots to a Store on a timer, on request, and once more
// when it stops. Failed writes are logged and dropped; the next snapshot
// supersedes them.
type Saver struct {
	store    *Store
	src      Snapshotter
	interval time.Duration
	logger   *slog.Logger

	requests chan struct{}
	writeMu  sync.Mutex

	saves    atomic.Uint64
	failures atomic.Uint64

	mu       sync.Mutex
	lastSave time.Time
	lastErr  string
}

// NewSaver creates a saver for src. A nil logger uses slog.Default().
func NewSaver(store *Store, src Snapshotter, interval time.Duration, logger *slog.Logger) *Saver {
	if interval <= 0 {
		interval = DefaultSaveInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Saver{
		store:    store,
		src:      src,
		interval: interval,
		logger:   logger,
		requests: make(chan struct{}, 1),
	}
}

// Run saves every interval and on each Request until ctx is done, then
// performs a final save. It always returns nil.
func (s *Saver) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = s.SaveNow()
			return nil
		case <-ticker.C:
			_ = s.SaveNow()
		case <-s.requests:
			_ = s.SaveNow()
		}
	}
}

// Request asks Run to save soon. It never blocks; requests made while one
// is already pending are merged.
func (s *Saver) Request() {
	select {
	case s.requests <- struct{}{}:
	default:
	}
}

// SaveNow snapshots the source and writes it synchronously. The error is
// also logged and recorded in Stats.
func (s *Saver) SaveNow() error {
	state := s.src.Snapshot()

	s.writeMu.Lock()
	err := s.store.Save(state)
	s.writeMu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.failures.Add(1)
		s.lastErr = err.Error()
		s.logger.Error("save failed", "path", s.store.Path(), "error", err)
		return err
	}
	s.saves.Add(1)
	s.lastSave = time.Now()
	s.lastErr = ""
	s.logger.Debug("state saved", "path", s.store.Path())
	return nil
}

// Stats returns a copy of the saver counters.
func (s *Saver) Stats() SaverStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SaverStats{
		Saves:    s.saves.Load(),
		Failures: s.failures.Load(),
		LastSave: s.lastSave,
		LastErr:  s.lastErr,
	}
}
