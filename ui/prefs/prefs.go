// Package prefs persists viewer settings between runs.
package prefs

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const prefsFile = "viewer.json"

// Values are the remembered viewer settings. Zero values mean "not set".
type Values struct {
	Speed        float64 `json:"speed,omitempty"`
	FlipX        *bool   `json:"flip_x,omitempty"`
	ViewMode     string  `json:"view_mode,omitempty"`
	WindowWidth  float32 `json:"window_width,omitempty"`
	WindowHeight float32 `json:"window_height,omitempty"`
}

// Prefs guards Values and their file.
type Prefs struct {
	mu     sync.RWMutex
	values Values
	path   string
}

// DefaultDir is ~/.config/falcomplot, or the platform equivalent.
func DefaultDir() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(configDir, "falcomplot")
}

// Load reads preferences from dir. A missing or unreadable file yields empty
// preferences that will be written to dir on Save.
func Load(dir string) *Prefs {
	p := &Prefs{path: filepath.Join(dir, prefsFile)}
	data, err := os.ReadFile(p.path)
	if err != nil {
		return p
	}
	_ = json.Unmarshal(data, &p.values)
	return p
}

// Values returns a copy of the current settings.
func (p *Prefs) Values() Values {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.values
}

// Update mutates the settings in place.
func (p *Prefs) Update(f func(v *Values)) {
	p.mu.Lock()
	f(&p.values)
	p.mu.Unlock()
}

// Save writes preferences to disk.
func (p *Prefs) Save() error {
	if p.path == "" {
		return errors.New("prefs: no path")
	}
	p.mu.RLock()
	data, err := json.MarshalIndent(p.values, "", "  ")
	p.mu.RUnlock()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return fmt.Errorf("prefs: %w", err)
	}
	return os.WriteFile(p.path, data, 0o644)
}
