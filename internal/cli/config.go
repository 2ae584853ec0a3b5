package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tailscale/hujson"
)

// Config holds tool configuration options.
type Config struct {
	// Superblock is the default superblock image path, used when a
	// command is not given one explicitly.
	Superblock string `json:"superblock,omitempty"`
}

// ConfigFileName is the project-local config file name.
const ConfigFileName = ".cowfs.json"

var errConfigInvalid = errors.New("invalid config file")

// globalConfigPath returns the global config path:
// $XDG_CONFIG_HOME/cowfs/config.json, falling back to
// ~/.config/cowfs/config.json. Empty if neither can be determined.
func globalConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "cowfs", "config.json")
	}

	home, err := os.UserHomeDir()
	if err == nil {
		return filepath.Join(home, ".config", "cowfs", "config.json")
	}

	return ""
}

// LoadConfig loads configuration with the following precedence (highest
// wins): defaults, global user config, project config in workDir, then
// the explicit file at configPath if non-empty.
func LoadConfig(workDir, configPath string) (Config, error) {
	var cfg Config

	if global := globalConfigPath(); global != "" {
		if err := mergeConfigFile(&cfg, global, false); err != nil {
			return Config{}, err
		}
	}

	if err := mergeConfigFile(&cfg, filepath.Join(workDir, ConfigFileName), false); err != nil {
		return Config{}, err
	}

	if configPath != "" {
		if err := mergeConfigFile(&cfg, configPath, true); err != nil {
			return Config{}, err
		}
	}

	return cfg, nil
}

// mergeConfigFile layers one HuJSON config file into cfg. A missing file
// is an error only when the path was requested explicitly.
func mergeConfigFile(cfg *Config, path string, required bool) error {
	data, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		if os.IsNotExist(err) && !required {
			return nil
		}

		return fmt.Errorf("reading config %q: %w", path, err)
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return fmt.Errorf("%w %q: %v", errConfigInvalid, path, err)
	}

	var layer Config
	if err := json.Unmarshal(standardized, &layer); err != nil {
		return fmt.Errorf("%w %q: %v", errConfigInvalid, path, err)
	}

	if layer.Superblock != "" {
		cfg.Superblock = layer.Superblock
	}

	return nil
}
