package config

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
)

// UserConfig holds the small set of persisted UI preference flags. Absent
// keys fall back to defaults; there is no schema versioning.
type UserConfig struct {
	Theme            string `json:"theme"`
	HasSeenWelcome   bool   `json:"has_seen_welcome"`
	HasProvidedEmail bool   `json:"has_provided_email"`
	SyncIntervalMins int    `json:"sync_interval_minutes"`
}

const (
	ThemeSystem = "system"
	ThemeLight  = "light"
	ThemeDark   = "dark"
)

func userConfigFilePath(configDir string) string {
	return filepath.Join(configDir, "preferences.json")
}

// LoadUserConfig reads preferences from the config directory, returning
// defaults when the file doesn't exist yet.
func LoadUserConfig(configDir string) (*UserConfig, error) {
	return loadUserConfig(userConfigFilePath(configDir))
}

func loadUserConfig(path string) (*UserConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return defaultUserConfig(), nil
		}
		return nil, errors.WithStack(err)
	}

	userConfig := defaultUserConfig()
	if err := json.Unmarshal(data, userConfig); err != nil {
		return nil, errors.WithStack(err)
	}
	if userConfig.Theme == "" {
		userConfig.Theme = ThemeSystem
	}

	return userConfig, nil
}

func defaultUserConfig() *UserConfig {
	return &UserConfig{
		Theme:            ThemeSystem,
		SyncIntervalMins: 60,
	}
}

// SaveUserConfig writes preferences back to the config directory.
func SaveUserConfig(userConfig *UserConfig, configDir string) error {
	return saveUserConfig(userConfig, userConfigFilePath(configDir))
}

func saveUserConfig(userConfig *UserConfig, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.WithStack(err)
	}

	data, err := json.MarshalIndent(userConfig, "", "  ")
	if err != nil {
		return errors.WithStack(err)
	}

	err = os.WriteFile(path, data, 0644) //nolint:gosec
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}
