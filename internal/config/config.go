// Package config loads the client configuration file that selects the
// storage backend.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Backend names the persistence mode of the client.
type Backend string

const (
	BackendLocal  Backend = "local"
	BackendRemote Backend = "remote"
)

// Config is the on-disk client configuration.
type Config struct {
	Backend Backend `yaml:"backend"`
	API     struct {
		BaseURL string `yaml:"base_url"`
	} `yaml:"api"`
	Data struct {
		Path string `yaml:"path"`
	} `yaml:"data"`
}

// Default returns the configuration used when no file exists: local
// storage in the user's data directory.
func Default() Config {
	var cfg Config
	cfg.Backend = BackendLocal
	cfg.Data.Path = defaultDataPath()
	return cfg
}

// Load reads path, falling back to Default when the file is missing.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return Config{}, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks backend selection and its required settings.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendLocal:
		if c.Data.Path == "" {
			return errors.New("config: data.path is required for the local backend")
		}
	case BackendRemote:
		if c.API.BaseURL == "" {
			return errors.New("config: api.base_url is required for the remote backend")
		}
	default:
		return fmt.Errorf("config: unknown backend %q", c.Backend)
	}
	return nil
}

// DefaultPath is where the CLI looks for its configuration.
func DefaultPath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "goalboard", "config.yaml")
	}
	return "goalboard.yaml"
}

func defaultDataPath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "goalboard", "goalboard.db")
	}
	return "goalboard.db"
}
