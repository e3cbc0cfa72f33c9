// Package config loads keyboard-counter settings from TOML.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Duration wraps time.Duration. In TOML it is either a Go duration string
// such as "30s" or "5m", or a bare integer number of seconds.
type Duration struct {
	time.Duration
}

// UnmarshalTOML implements toml.Unmarshaler.
func (d *Duration) UnmarshalTOML(v any) error {
	switch v := v.(type) {
	case string:
		return d.UnmarshalText([]byte(v))
	case int64:
		if v < 0 {
			return fmt.Errorf("negative duration %d not allowed", v)
		}
		d.Duration = time.Duration(v) * time.Second
		return nil
	default:
		return fmt.Errorf("duration must be a string or integer seconds, got %T", v)
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	if s == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	if parsed < 0 {
		return fmt.Errorf("negative duration %q not allowed", s)
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}
