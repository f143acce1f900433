package tui

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// sourcesTabKey names the sources screen in a session. It can never clash
// with a mode argument.
const sourcesTabKey = "@sources"

// Session is the UI state kept between runs: the active tab and the scroll
// position of every tab. Keys are Mode.Arg values, or sourcesTabKey. An
// empty Active selects the first tab.
type Session struct {
	Active string            `json:"active"`
	Lists  map[string][]byte `json:"lists"`
}

// LoadSession reads the session at path. A missing file is an empty session.
// A session naming an unknown tab is rejected as a whole.
func LoadSession(path string) (Session, error) {
	s := Session{Lists: map[string][]byte{}}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return s, fmt.Errorf("reading session: %w", err)
	}

	var loaded Session
	if err := json.Unmarshal(data, &loaded); err != nil {
		return s, fmt.Errorf("decoding session: %w", err)
	}
	if err := checkTabKey(loaded.Active); err != nil {
		return s, err
	}
	for key := range loaded.Lists {
		if err := checkTabKey(key); err != nil {
			return s, err
		}
	}
	if loaded.Lists == nil {
		loaded.Lists = map[string][]byte{}
	}
	return loaded, nil
}

func checkTabKey(key string) error {
	if key == sourcesTabKey || key == "" {
		return nil
	}
	if _, err := ModeFromArgs(key); err != nil {
		return fmt.Errorf("session: %w", err)
	}
	return nil
}

func SaveSession(path string, s Session) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating session dir: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
