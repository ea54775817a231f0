package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// UserSettings are the preferences a user can change at runtime
type UserSettings struct {
	DownloadLocation string `json:"downloadLocation"`
}

// Settings persists UserSettings to a JSON file and falls back to the
// configured download directory when nothing was saved.
type Settings struct {
	mu       sync.RWMutex
	path     string
	fallback string
	current  UserSettings
}

func defaultSettingsPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".mediaserver-settings.json"
	}
	return filepath.Join(homeDir, ".mediaserver-settings.json")
}

// LoadSettings reads path if it exists. A missing or unreadable file leaves
// the defaults in place.
func LoadSettings(path, fallbackDownloadDir string) *Settings {
	s := &Settings{path: path, fallback: fallbackDownloadDir}

	data, err := os.ReadFile(path)
	if err != nil {
		return s
	}
	var saved UserSettings
	if err := json.Unmarshal(data, &saved); err != nil {
		return s
	}
	s.current = saved
	return s
}

// DownloadDir returns the effective download directory
func (s *Settings) DownloadDir() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current.DownloadLocation != "" {
		return s.current.DownloadLocation
	}
	return s.fallback
}

// Current returns the effective settings
func (s *Settings) Current() UserSettings {
	return UserSettings{DownloadLocation: s.DownloadDir()}
}

// Update validates and persists new settings
func (s *Settings) Update(next UserSettings) error {
	if err := ValidateDirectory(next.DownloadLocation); err != nil {
		return err
	}

	data, err := json.MarshalIndent(next, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create settings directory: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	s.current = next
	return nil
}

// ValidateDirectory makes sure path exists (creating it if needed) and is writable
func ValidateDirectory(path string) error {
	if path == "" {
		return errors.New("path is empty")
	}
	info, err := os.Stat(path)
	switch {
	case os.IsNotExist(err):
		if err := os.MkdirAll(path, 0o755); err != nil {
			return err
		}
	case err != nil:
		return err
	case !info.IsDir():
		return fmt.Errorf("%s is not a directory", path)
	}

	probe := filepath.Join(path, ".mediaserver-write-test")
	file, err := os.Create(probe)
	if err != nil {
		return err
	}
	file.Close()
	return os.Remove(probe)
}
