// Package config persists the CLI's sync settings in ~/.tokgraph.yaml.
package config

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Config holds the CLI configuration.
type Config struct {
	Server   string `yaml:"server"`
	APIKey   string `yaml:"api_key"`
	DeviceID string `yaml:"device_id"`
}

func configPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".tokgraph.yaml"), nil
}

// Load reads the configuration from disk. A missing file yields an empty
// config, not an error.
func Load() (*Config, error) {
	path, err := configPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the configuration to disk, assigning a stable device ID on
// first save. The device ID must never change afterwards or the server
// would treat this machine as a new contributor.
func Save(cfg *Config) error {
	if cfg.DeviceID == "" {
		cfg.DeviceID = uuid.NewString()
	}

	path, err := configPath()
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
