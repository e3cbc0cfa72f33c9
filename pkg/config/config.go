package config

import (
	"errors"
	"fmt"
	"strings"
)

// Config is the top-level configuration.
type Config struct {
	General GeneralConfig `toml:"general"`
	Daemon  DaemonConfig  `toml:"daemon"`
	Report  ReportConfig  `toml:"report"`
	Sources SourcesConfig `toml:"sources"`
}

// GeneralConfig holds persistence and logging settings.
type GeneralConfig struct {
	// StoragePath is the state file. Empty means storage.DefaultPath().
	StoragePath  string   `toml:"storage_path"`
	SaveInterval Duration `toml:"save_interval"`
	LogLevel     string   `toml:"log_level"`
	LogFormat    string   `toml:"log_format"`
	// LogFile, when set, receives a copy of every log line.
	LogFile string `toml:"log_file"`
}

// DaemonConfig holds the background process settings.
type DaemonConfig struct {
	PIDFile        string   `toml:"pid_file"`
	SocketPath     string   `toml:"socket_path"`
	HealthFile     string   `toml:"health_file"`
	HealthInterval Duration `toml:"health_interval"`
}

// ReportConfig controls the stats printout.
type ReportConfig struct {
	Format  string `toml:"format"`
	Columns int    `toml:"columns"`
	Today   bool   `toml:"today"`
}

// SourcesConfig selects the event sources started by the daemon.
type SourcesConfig struct {
	// ReplayPath is a file of JSON-encoded events, "-" for stdin.
	ReplayPath string `toml:"replay_path"`
}

var (
	validLevels  = []string{"debug", "info", "warn", "error"}
	validLogFmts = []string{"text", "json"}
	validReports = []string{"table", "json", "yaml"}
)

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error

	if c.General.SaveInterval.Duration <= 0 {
		errs = append(errs, errors.New("general.save_interval must be positive"))
	}
	if !oneOf(c.General.LogLevel, validLevels) {
		errs = append(errs, fmt.Errorf("general.log_level %q must be one of %s", c.General.LogLevel, strings.Join(validLevels, ", ")))
	}
	if !oneOf(c.General.LogFormat, validLogFmts) {
		errs = append(errs, fmt.Errorf("general.log_format %q must be one of %s", c.General.LogFormat, strings.Join(validLogFmts, ", ")))
	}
	if c.Daemon.SocketPath == "" {
		errs = append(errs, errors.New("daemon.socket_path is required"))
	}
	if c.Daemon.HealthInterval.Duration <= 0 {
		errs = append(errs, errors.New("daemon.health_interval must be positive"))
	}
	if c.Report.Format != "" && !oneOf(c.Report.Format, validReports) {
		errs = append(errs, fmt.Errorf("report.format %q must be one of %s", c.Report.Format, strings.Join(validReports, ", ")))
	}
	if c.Report.Columns < 1 {
		errs = append(errs, fmt.Errorf("report.columns must be at least 1, got %d", c.Report.Columns))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

func oneOf(v string, allowed []string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
