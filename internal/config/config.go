// Configuration loading.

// Package config loads the trackshow configuration from config.yaml and the
// optional .env file in the data directory.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	appName  = "trackshow"
	fileName = "config.yaml"
	envFile  = ".env"
)

// Config is the persisted configuration.
type Config struct {
	// DataDir holds the record store, the asset database and the history.
	DataDir string `yaml:"data_dir"`
	// LogLevel is one of debug, info, warn or error.
	LogLevel string `yaml:"log_level"`
	// LogFile, when set, receives a copy of the logs with rotation.
	LogFile string `yaml:"log_file,omitempty"`
	// History records every record store write as a git commit.
	History bool `yaml:"history"`
	// AssetDB is the asset database name, without extension.
	AssetDB string `yaml:"asset_db"`
}

// DefaultDir returns the directory holding config.yaml.
func DefaultDir() string {
	return filepath.Join(xdg.ConfigHome, appName)
}

// Default returns the configuration written on first run.
func Default() Config {
	return Config{
		DataDir:  filepath.Join(xdg.DataHome, appName),
		LogLevel: "info",
		AssetDB:  "trackshow-images",
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return errors.New("data_dir is required")
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level %q must be one of debug, info, warn, error", c.LogLevel)
	}
	if c.AssetDB == "" {
		return errors.New("asset_db is required")
	}
	if strings.ContainsAny(c.AssetDB, `/\`) {
		return fmt.Errorf("asset_db %q must not contain a path separator", c.AssetDB)
	}
	return nil
}

// Load reads dir/config.yaml, creating it with defaults when it doesn't
// exist.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, fileName)
	cfg := Default()
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is built from the config dir
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read %s: %w", fileName, err)
		}
		if err := cfg.Save(dir); err != nil {
			return nil, err
		}
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", fileName, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", fileName, err)
	}
	return &cfg, nil
}

// Save writes the configuration to dir/config.yaml.
func (c *Config) Save(dir string) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:gosec // G301: config directory
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, fileName), data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", fileName, err)
	}
	return nil
}

// ReadEnv returns the variables of the .env file in dataDir. A missing file
// yields an empty map.
func ReadEnv(dataDir string) (map[string]string, error) {
	env, err := godotenv.Read(filepath.Join(dataDir, envFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", envFile, err)
	}
	return env, nil
}

// ApplyEnv overrides fields with the TRACKSHOW_* variables present in env.
func (c *Config) ApplyEnv(env map[string]string) error {
	if v := env["TRACKSHOW_LOG_LEVEL"]; v != "" {
		c.LogLevel = v
	}
	if v := env["TRACKSHOW_LOG_FILE"]; v != "" {
		c.LogFile = v
	}
	if v := env["TRACKSHOW_HISTORY"]; v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("TRACKSHOW_HISTORY: %w", err)
		}
		c.History = b
	}
	return c.Validate()
}
