// keyboard-counter counts keystrokes, shortcuts and mouse activity.
//
// A background daemon receives input events, classifies them into a fixed
// set of counters, and saves the totals periodically so they survive
// restarts. The same binary queries or controls a running daemon over its
// Unix socket, or reads the saved totals directly when none is running.
//
// Usage:
//
//	keyboard-counter [flags]
//
// Flags:
//
//	-config string   Path to configuration file (default: ~/.config/keyboard-counter/config.toml)
//	-daemon          Run the background counter
//	-replay string   Replay JSON-encoded events from a file ("-" for stdin)
//
// Replayed lines may carry "at", the capture time in Unix milliseconds.
// Without -daemon the recorded times drive double-click and debounce
// decisions; lines without one are stamped as they are read. A running
// daemon stamps every replayed event on arrival, since it shares the
// counter with live input.
//	-stats           Print the cumulative counters
//	-today           Print today's counters
//	-clear           Reset every counter to zero
//	-save            Ask the running daemon to save now
//	-health          Print daemon health
//	-format string   Output format: table, json or yaml
//	-verbose         Enable verbose logging
//	-version         Print version and exit
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/planet0104/keyboard-counter/pkg/config"
	"github.com/planet0104/keyboard-counter/pkg/counter"
	"github.com/planet0104/keyboard-counter/pkg/daemon"
	"github.com/planet0104/keyboard-counter/pkg/logging"
	"github.com/planet0104/keyboard-counter/pkg/report"
	"github.com/planet0104/keyboard-counter/pkg/source"
	"github.com/planet0104/keyboard-counter/pkg/storage"
)

var (
	version = "0.1.0"
	commit  = "dev"
	date    = "unknown"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to configuration file")
		runDaemon   = flag.Bool("daemon", false, "Run the background counter")
		replayPath  = flag.String("replay", "", "Replay JSON-encoded events from a file (\"-\" for stdin)")
		showStats   = flag.Bool("stats", false, "Print the cumulative counters")
		showToday   = flag.Bool("today", false, "Print today's counters")
		doClear     = flag.Bool("clear", false, "Reset every counter to zero")
		doSave      = flag.Bool("save", false, "Ask the running daemon to save now")
		showHealth  = flag.Bool("health", false, "Print daemon health")
		format      = flag.String("format", "", "Output format: table, json or yaml")
		verbose     = flag.Bool("verbose", false, "Enable verbose logging")
		showVersion = flag.Bool("version", false, "Print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("keyboard-counter %s (%s) built %s\n", version, commit, date)
		os.Exit(0)
	}

	var (
		cfg *config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = config.LoadFromFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *verbose {
		cfg.General.LogLevel = "debug"
	}
	if *replayPath != "" {
		cfg.Sources.ReplayPath = *replayPath
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logFile := ""
	if *runDaemon {
		logFile = cfg.General.LogFile
	}
	logger, closer, err := logging.New(logging.Options{
		Level:  cfg.General.LogLevel,
		Format: cfg.General.LogFormat,
		File:   logFile,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	defer closer.Close()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	out := outputFormat(*format, cfg.Report.Format, os.Stdout)
	client := daemon.NewIPCClient(cfg.Daemon.SocketPath)

	switch {
	case *runDaemon:
		err = runDaemonMode(ctx, cfg, logger)
	case *doClear:
		err = clearCounters(client, cfg, logger)
	case *doSave:
		err = client.Call("SAVE", nil)
	case *showHealth:
		err = printHealth(os.Stdout, client, cfg)
	case cfg.Sources.ReplayPath != "" && !*showStats && !*showToday:
		err = replayOffline(ctx, cfg, logger, os.Stdout, out)
	default:
		today := *showToday || (cfg.Report.Today && !*showStats)
		err = printStats(os.Stdout, client, cfg, logger, out, today)
	}
	if err != nil {
		logger.Error("command failed", "error", err)
		stop()
		closer.Close()
		os.Exit(1)
	}
}

// outputFormat picks the -format flag, then the config value, then table
// for terminals and json for pipes.
func outputFormat(flagValue, configValue string, stdout *os.File) report.Format {
	for _, v := range []string{flagValue, configValue} {
		if v == "" {
			continue
		}
		if f, err := report.ParseFormat(v); err == nil {
			return f
		}
	}
	if isatty.IsTerminal(stdout.Fd()) || isatty.IsCygwinTerminal(stdout.Fd()) {
		return report.FormatTable
	}
	return report.FormatJSON
}

func runDaemonMode(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	var sources []source.Source
	if cfg.Sources.ReplayPath != "" {
		rc, err := source.OpenReplay(cfg.Sources.ReplayPath)
		if err != nil {
			return err
		}
		defer rc.Close()
		sources = append(sources, source.NewJSONLines(rc, logger.With("component", "replay")))
	}

	d, err := daemon.New(daemon.Options{
		Config:  cfg,
		Logger:  logger,
		Sources: sources,
		Version: version,
	})
	if err != nil {
		return err
	}
	logger.Info("starting keyboard-counter daemon",
		"save_interval", cfg.General.SaveInterval.Duration,
		"replay", cfg.Sources.ReplayPath,
	)
	return d.Run(ctx)
}

func openStore(cfg *config.Config, logger *slog.Logger) (*storage.Store, error) {
	path := cfg.General.StoragePath
	if path == "" {
		p, err := storage.DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	return storage.NewStore(path, logger), nil
}

// daemonUnavailable reports whether err means nobody is listening.
func daemonUnavailable(err error) bool {
	return errors.Is(err, os.ErrNotExist) || errors.Is(err, syscall.ECONNREFUSED)
}

// printStats asks the daemon for its live counters and falls back to the
// saved state when no daemon is running.
func printStats(w io.Writer, client *daemon.IPCClient, cfg *config.Config, logger *slog.Logger, f report.Format, today bool) error {
	cmd := "STATS"
	if today {
		cmd = "STATS today"
	}

	var stats daemon.Stats
	err := client.Call(cmd, &stats)
	if err != nil {
		if !daemonUnavailable(err) {
			return err
		}
		logger.Debug("daemon not reachable, reading saved state", "error", err)
		st, err := openStore(cfg, logger)
		if err != nil {
			return err
		}
		state, ok := st.Load()
		if !ok {
			state = counter.NewState(time.Now())
		}
		stats = daemon.Stats{Since: state.Since(), Today: today, Counters: state.View()}
		if today {
			stats.Counters = state.TodayViewAt(time.Now())
		}
	}

	title := "All time"
	if stats.Today {
		title = "Today"
	}
	return report.Render(w, stats.Counters, report.Options{
		Format:  f,
		Columns: cfg.Report.Columns,
		Title:   title,
		Since:   stats.Since,
	})
}

// clearCounters resets the daemon's counters, or the saved state when no
// daemon is running.
func clearCounters(client *daemon.IPCClient, cfg *config.Config, logger *slog.Logger) error {
	err := client.Call("CLEAR", nil)
	if err == nil || !daemonUnavailable(err) {
		return err
	}

	st, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	state, ok := st.Load()
	if !ok {
		state = counter.NewState(time.Now())
	}
	state.Clear()
	return st.Save(state)
}

func printHealth(w io.Writer, client *daemon.IPCClient, cfg *config.Config) error {
	var status daemon.HealthStatus
	if err := client.Call("HEALTH", &status); err != nil {
		if !daemonUnavailable(err) || cfg.Daemon.HealthFile == "" {
			return err
		}
		// Last status written before the daemon went away.
		if status, err = daemon.ReadHealthFile(cfg.Daemon.HealthFile); err != nil {
			return err
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(status)
}

// replayOffline feeds a replay file into the saved state without a daemon
// and prints the result.
func replayOffline(ctx context.Context, cfg *config.Config, logger *slog.Logger, w io.Writer, f report.Format) error {
	st, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	state, ok := st.Load()
	if !ok {
		state = counter.NewState(time.Now())
	}
	clock := source.NewReplayClock(time.Now)
	c := counter.New(state, counter.WithClock(clock.Now))

	rc, err := source.OpenReplay(cfg.Sources.ReplayPath)
	if err != nil {
		return err
	}
	defer rc.Close()

	src := source.NewJSONLines(rc, logger)
	src.SetClock(clock)
	if err := src.Run(ctx, c.Receive); err != nil {
		return err
	}
	logger.Info("replay finished", "events", src.Emitted(), "skipped", src.Skipped())

	snap := c.Snapshot()
	if err := st.Save(snap); err != nil {
		return err
	}
	return report.Render(w, snap.View(), report.Options{
		Format:  f,
		Columns: cfg.Report.Columns,
		Title:   "All time",
		Since:   snap.Since(),
	})
}
