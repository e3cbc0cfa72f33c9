// Package daemon runs the background counter: it owns the aggregate, feeds
// it from the configured sources, persists it, and answers local clients
// over a Unix socket.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/planet0104/keyboard-counter/pkg/config"
	"github.com/planet0104/keyboard-counter/pkg/counter"
	"github.com/planet0104/keyboard-counter/pkg/input"
	"github.com/planet0104/keyboard-counter/pkg/source"
	"github.com/planet0104/keyboard-counter/pkg/storage"
)

// Options configure a Daemon.
type Options struct {
	Config  *config.Config
	Logger  *slog.Logger
	Sources []source.Source
	Version string
	// Clock replaces time.Now for event timestamps.
	Clock func() time.Time
}

// Daemon wires the counter to its sources, saver, health file and IPC
// server.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	sources []source.Source
	version string
	now     func() time.Time

	id        string
	startedAt time.Time
	firstRun  bool

	counter *counter.Counter
	store   *storage.Store
	saver   *storage.Saver

	quit     chan struct{}
	quitOnce sync.Once
}

// New restores the persisted state, or starts fresh when there is none, and
// prepares every component. Nothing runs until Run.
func New(opts Options) (*Daemon, error) {
	if opts.Config == nil {
		return nil, errors.New("daemon: config is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}

	path := opts.Config.General.StoragePath
	if path == "" {
		p, err := storage.DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	store := storage.NewStore(path, logger.With("component", "storage"))

	state, ok := store.Load()
	if !ok {
		state = counter.NewState(now())
	}

	d := &Daemon{
		cfg:       opts.Config,
		logger:    logger,
		sources:   opts.Sources,
		version:   opts.Version,
		now:       now,
		id:        uuid.NewString(),
		startedAt: now(),
		firstRun:  state.Empty(),
		counter:   counter.New(state, counter.WithClock(now)),
		store:     store,
		quit:      make(chan struct{}),
	}
	d.saver = storage.NewSaver(store, d.counter, opts.Config.General.SaveInterval.Duration, logger.With("component", "saver"))
	return d, nil
}

// Counter returns the aggregate the daemon owns.
func (d *Daemon) Counter() *counter.Counter { return d.counter }

// Saver returns the daemon's persistence worker.
func (d *Daemon) Saver() *storage.Saver { return d.saver }

// Stop asks Run to return. It is safe to call more than once.
func (d *Daemon) Stop() {
	d.quitOnce.Do(func() { close(d.quit) })
}

// Run blocks until ctx is cancelled, Stop is called, or a component fails.
// The state is saved one final time before it returns.
func (d *Daemon) Run(ctx context.Context) error {
	if d.cfg.Daemon.PIDFile != "" {
		pid := NewPIDFile(d.cfg.Daemon.PIDFile)
		if err := pid.Acquire(); err != nil {
			return err
		}
		defer func() {
			if err := pid.Release(); err != nil {
				d.logger.Warn("release pid file", "error", err)
			}
		}()
	}

	ipc := NewIPCServer(d.cfg.Daemon.SocketPath, d, d.logger.With("component", "ipc"))
	if err := ipc.Listen(); err != nil {
		return err
	}

	if d.firstRun {
		d.logger.Info("no previous counts, starting fresh", "storage", d.store.Path())
	}
	d.logger.Info("daemon started",
		"id", d.id,
		"pid", os.Getpid(),
		"socket", d.cfg.Daemon.SocketPath,
		"sources", len(d.sources),
	)

	g, gctx := errgroup.WithContext(ctx)
	gctx, cancel := context.WithCancel(gctx)
	defer cancel()

	g.Go(func() error {
		select {
		case <-gctx.Done():
		case <-d.quit:
			d.logger.Info("stop requested")
			cancel()
		}
		return nil
	})
	g.Go(func() error { return d.saver.Run(gctx) })
	g.Go(func() error { return ipc.Serve(gctx) })
	g.Go(func() error { return d.healthLoop(gctx) })
	g.Go(func() error {
		err := source.Fanout(gctx, d.counter.Receive, d.sources...)
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("daemon: source: %w", err)
		}
		d.logger.Debug("sources finished")
		return nil
	})

	err := g.Wait()
	d.writeHealth()
	d.logger.Info("daemon stopped", "events", d.counter.Received())
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (d *Daemon) healthLoop(ctx context.Context) error {
	if d.cfg.Daemon.HealthFile == "" {
		return nil
	}
	interval := d.cfg.Daemon.HealthInterval.Duration
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	d.writeHealth()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			d.writeHealth()
		}
	}
}

func (d *Daemon) writeHealth() {
	if d.cfg.Daemon.HealthFile == "" {
		return
	}
	if err := WriteHealthFile(d.cfg.Daemon.HealthFile, d.Health()); err != nil {
		d.logger.Warn("write health file", "error", err)
	}
}

// Health reports the daemon's current status.
func (d *Daemon) Health() HealthStatus {
	now := d.now()
	return HealthStatus{
		InstanceID:     d.id,
		PID:            os.Getpid(),
		Version:        d.version,
		StartedAt:      d.startedAt,
		UpdatedAt:      now,
		Uptime:         now.Sub(d.startedAt).Round(time.Second).String(),
		EventsReceived: d.counter.Received(),
		FirstRun:       d.firstRun,
		StoragePath:    d.store.Path(),
		Saver:          d.saver.Stats(),
	}
}

// Stats is the STATS reply.
type Stats struct {
	Since    time.Time            `json:"since"`
	Today    bool                 `json:"today"`
	Counters []counter.LabelCount `json:"counters"`
}

// Status is the reply of commands that only acknowledge.
type Status struct {
	Status string `json:"status"`
	Path   string `json:"path,omitempty"`
}

// HandleCommand implements IPCHandler.
func (d *Daemon) HandleCommand(_ context.Context, cmd, arg string) (any, error) {
	switch cmd {
	case "STATS":
		snap := d.counter.Snapshot()
		if strings.EqualFold(arg, "today") {
			return Stats{Since: snap.Since(), Today: true, Counters: snap.TodayViewAt(d.now())}, nil
		}
		return Stats{Since: snap.Since(), Counters: snap.View()}, nil

	case "CLEAR":
		d.counter.Clear()
		d.saver.Request()
		d.logger.Info("counters cleared")
		return Status{Status: "cleared"}, nil

	case "SAVE":
		if err := d.saver.SaveNow(); err != nil {
			return nil, err
		}
		return Status{Status: "saved", Path: d.store.Path()}, nil

	case "HEALTH":
		return d.Health(), nil

	case "EVENT":
		ev, err := input.Decode([]byte(arg))
		if err != nil {
			return nil, err
		}
		d.counter.Receive(ev)
		return Status{Status: "ok"}, nil

	case "QUIT":
		d.Stop()
		return Status{Status: "stopping"}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, cmd)
	}
}
