package daemon

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/planet0104/keyboard-counter/pkg/storage"
)

// HealthStatus is written to the health file and returned by HEALTH.
type HealthStatus struct {
	InstanceID     string             `json:"instance_id"`
	PID            int                `json:"pid"`
	Version        string             `json:"version"`
	StartedAt      time.Time          `json:"started_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
	Uptime         string             `json:"uptime"`
	EventsReceived uint64             `json:"events_received"`
	FirstRun       bool               `json:"first_run"`
	StoragePath    string             `json:"storage_path"`
	Saver          storage.SaverStats `json:"saver"`
}

// WriteHealthFile writes status as indented JSON to path. The content goes
// to a temporary file first and is renamed into place.
func WriteHealthFile(path string, status HealthStatus) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create health directory: %w", err)
	}

	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal health status: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp health file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename health file: %w", err)
	}
	return nil
}

// ReadHealthFile reads and parses the health status JSON from path.
func ReadHealthFile(path string) (HealthStatus, error) {
	var status HealthStatus
	data, err := os.ReadFile(path)
	if err != nil {
		return status, fmt.Errorf("read health file: %w", err)
	}
	if err := json.Unmarshal(data, &status); err != nil {
		return status, fmt.Errorf("unmarshal health file: %w", err)
	}
	return status, nil
}
