// Package prefs persists dashboard preferences between runs in
// ~/.config/otadash/prefs.toml.
package prefs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog/log"

	"github.com/sidewalk-ota/otadash/internal/config"
)

// Prefs holds user preferences.
type Prefs struct {
	Theme string `toml:"theme"`
	// View is the view shown at startup.
	View string `toml:"view"`
}

const (
	defaultPrefsPath = "~/.config/otadash/prefs.toml"
	defaultTheme     = "Nightfox"
	defaultView      = "devices"
)

// DefaultPath returns the default preferences file path.
func DefaultPath() string {
	return defaultPrefsPath
}

// Load reads preferences from path. Preferences are never fatal: a missing,
// unreadable or malformed file yields defaults and a warning in the log.
func Load(path string) Prefs {
	p := Prefs{Theme: defaultTheme, View: defaultView}

	resolved, err := resolvePath(path)
	if err != nil {
		log.Warn().Err(err).Msg("resolve prefs path")
		return p
	}
	data, err := os.ReadFile(resolved)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return p
	case err != nil:
		log.Warn().Err(err).Str("path", resolved).Msg("read prefs")
		return p
	}

	var stored Prefs
	if err := toml.Unmarshal(data, &stored); err != nil {
		log.Warn().Err(err).Str("path", resolved).Msg("parse prefs")
		return p
	}
	if v := strings.TrimSpace(stored.Theme); v != "" {
		p.Theme = v
	}
	if v := strings.TrimSpace(stored.View); v != "" {
		p.View = strings.ToLower(v)
	}
	return p
}

// Save writes preferences to path through a temp file, creating directories
// as needed.
func Save(path string, p Prefs) error {
	resolved, err := resolvePath(path)
	if err != nil {
		return fmt.Errorf("resolve prefs path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return fmt.Errorf("create prefs dir: %w", err)
	}
	data, err := toml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal prefs: %w", err)
	}
	tmp := resolved + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write prefs: %w", err)
	}
	if err := os.Rename(tmp, resolved); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace prefs: %w", err)
	}
	return nil
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		path = defaultPrefsPath
	}
	return config.ExpandPath(path)
}
