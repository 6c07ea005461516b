// Package settings holds user-tunable preferences in a JSON file, separate
// from the operator config. Missing keys fall back to defaults so upgrades
// never lose values.
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/msgpilot/msgpilot/logger"
)

// Settings are the user preferences surfaced in the UI.
type Settings struct {
	// AssistantName is the name the assistant uses for itself.
	AssistantName string `json:"assistant_name"`
	// Timezone is the IANA zone used to display scheduled times. Empty means
	// the system local zone.
	Timezone string `json:"timezone"`
}

// Defaults returns the baseline settings.
func Defaults() Settings {
	return Settings{
		AssistantName: "Pilot",
		Timezone:      "",
	}
}

// Manager reads and writes the settings file.
type Manager struct {
	mu   sync.Mutex
	path string
}

// NewManager creates a settings manager storing at dir/settings.json.
func NewManager(dir string) *Manager {
	return &Manager{path: filepath.Join(dir, "settings.json")}
}

// Get loads settings from disk, merged over defaults. An unreadable file
// falls back to defaults rather than failing.
func (m *Manager) Get() Settings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadLocked()
}

// Update applies a partial update and writes the result to disk. Empty
// fields in patch leave the stored value unchanged.
func (m *Manager) Update(patch Settings) (Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current := m.loadLocked()
	if patch.AssistantName != "" {
		current.AssistantName = patch.AssistantName
	}
	if patch.Timezone != "" {
		if _, err := time.LoadLocation(patch.Timezone); err != nil {
			return current, fmt.Errorf("unknown timezone %q", patch.Timezone)
		}
		current.Timezone = patch.Timezone
	}

	data, err := json.MarshalIndent(current, "", "  ")
	if err != nil {
		return current, err
	}
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return current, err
	}
	if err := os.WriteFile(m.path, data, 0o644); err != nil {
		return current, err
	}
	return current, nil
}

// Location resolves the display timezone, falling back to the system local
// zone.
func (m *Manager) Location() *time.Location {
	s := m.Get()
	if s.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		logger.Warn("invalid timezone in settings, using local", "timezone", s.Timezone)
		return time.Local
	}
	return loc
}

func (m *Manager) loadLocked() Settings {
	merged := Defaults()
	data, err := os.ReadFile(m.path)
	if err != nil {
		return merged
	}
	if err := json.Unmarshal(data, &merged); err != nil {
		logger.Warn("settings file unreadable, using defaults", "path", m.path, "error", err)
		return Defaults()
	}
	if merged.AssistantName == "" {
		merged.AssistantName = Defaults().AssistantName
	}
	return merged
}
