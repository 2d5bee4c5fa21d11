package baseline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Snapshot is the full configuration-key space captured at one point in time.
type Snapshot struct {
	CapturedAt time.Time         `json:"captured_at"`
	Hostname   string            `json:"hostname,omitempty"`
	Values     map[string]string `json:"values"`
}

// NewSnapshot copies values into a snapshot stamped with the current time.
func NewSnapshot(values map[string]string) *Snapshot {
	copied := make(map[string]string, len(values))
	for k, v := range values {
		copied[k] = v
	}
	hostname, _ := os.Hostname()
	return &Snapshot{
		CapturedAt: time.Now().UTC(),
		Hostname:   hostname,
		Values:     copied,
	}
}

// Load reads a snapshot file.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading baseline: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parsing baseline %s: %w", path, err)
	}
	if snap.Values == nil {
		snap.Values = make(map[string]string)
	}
	return &snap, nil
}

// Save writes the snapshot to path, creating parent directories.
func (s *Snapshot) Save(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding baseline: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating baseline directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing baseline: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing baseline: %w", err)
	}
	return nil
}

// Diff compares live against the snapshot.
func (s *Snapshot) Diff(live map[string]string, ignore *Matcher) Report {
	return Diff(s.Values, live, ignore)
}
