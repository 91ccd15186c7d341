// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	pgerrors "github.com/tombee/tmp-postgres/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Removal policy values accepted in the config file.
const (
	RemoveAsk    = "ask"
	RemoveAlways = "always"
	RemoveNever  = "never"
)

// PGDirEnv names the environment variable pointing at a PostgreSQL
// installation whose bin/ directory holds initdb, postgres, createdb and psql.
const PGDirEnv = "PG_DIR"

// Environment variables overriding the remove and shutdown_timeout keys.
const (
	RemoveEnv          = "TMP_POSTGRES_REMOVE"
	ShutdownTimeoutEnv = "TMP_POSTGRES_SHUTDOWN_TIMEOUT"
)

// Config holds the user defaults for tmp-postgres.
type Config struct {
	// PGDir is the PostgreSQL installation directory. Empty means PATH lookup.
	PGDir string `yaml:"pg_dir,omitempty"`

	// Silent suppresses forwarding of initdb/postgres/createdb output.
	Silent bool `yaml:"silent,omitempty"`

	// Remove is the directory removal policy: ask, always or never.
	Remove string `yaml:"remove,omitempty"`

	// VerifyConnection pings the server over its socket before the
	// controlling activity starts.
	VerifyConnection bool `yaml:"verify_connection,omitempty"`

	// ShutdownTimeout bounds how long children get to exit before SIGKILL.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout,omitempty"`

	Log LogConfig `yaml:"log,omitempty"`

	// Settings are extra postgresql.conf entries appended on initialization.
	Settings map[string]string `yaml:"settings,omitempty"`
}

// LogConfig configures the diagnostic logger.
type LogConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

// Setting is a single postgresql.conf key/value pair.
type Setting struct {
	Key   string
	Value string
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Remove:          RemoveAsk,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Load reads configuration from path, then applies environment overrides.
// An empty path means the default location; a missing file there is not an
// error. An explicitly named file must exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		p, err := ConfigPath()
		if err == nil {
			path = p
		}
	}

	if path != "" {
		if err := cfg.loadFromFile(path); err != nil {
			if explicit || !errors.Is(err, os.ErrNotExist) {
				return nil, &pgerrors.ConfigError{
					Key:    "config_file",
					Reason: fmt.Sprintf("failed to load from %s", path),
					Cause:  err,
				}
			}
		}
	}

	cfg.applyDefaults()
	if err := cfg.loadFromEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFromFile loads configuration from a YAML file.
func (c *Config) loadFromFile(path string) error {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	return nil
}

// applyDefaults fills in zero values left by a minimal file.
func (c *Config) applyDefaults() {
	if c.Remove == "" {
		c.Remove = RemoveAsk
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
	c.Remove = strings.ToLower(c.Remove)
}

// loadFromEnv loads configuration from environment variables.
func (c *Config) loadFromEnv() error {
	if val := os.Getenv(PGDirEnv); val != "" {
		c.PGDir = val
	}
	if val := os.Getenv(RemoveEnv); val != "" {
		c.Remove = strings.ToLower(val)
	}
	if val := os.Getenv(ShutdownTimeoutEnv); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			return &pgerrors.ConfigError{
				Key:    ShutdownTimeoutEnv,
				Reason: fmt.Sprintf("must be a duration such as 10s, got %q", val),
				Cause:  err,
			}
		}
		c.ShutdownTimeout = d
	}
	return nil
}

// Validate checks the configuration for values the runner cannot use.
func (c *Config) Validate() error {
	switch c.Remove {
	case RemoveAsk, RemoveAlways, RemoveNever:
	default:
		return &pgerrors.ConfigError{
			Key:    "remove",
			Reason: fmt.Sprintf("must be one of [ask, always, never], got %q", c.Remove),
		}
	}

	if c.ShutdownTimeout < 0 {
		return &pgerrors.ConfigError{
			Key:    "shutdown_timeout",
			Reason: fmt.Sprintf("must be positive, got %v", c.ShutdownTimeout),
		}
	}

	if c.Log.Level != "" {
		validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true}
		if !validLevels[strings.ToLower(c.Log.Level)] {
			return &pgerrors.ConfigError{
				Key:    "log.level",
				Reason: fmt.Sprintf("must be one of [debug, info, warn, error], got %q", c.Log.Level),
			}
		}
	}
	if c.Log.Format != "" {
		switch strings.ToLower(c.Log.Format) {
		case "json", "text":
		default:
			return &pgerrors.ConfigError{
				Key:    "log.format",
				Reason: fmt.Sprintf("must be one of [json, text], got %q", c.Log.Format),
			}
		}
	}

	for key, value := range c.Settings {
		if key == "" || strings.ContainsAny(key, "= \t\n#'") {
			return &pgerrors.ConfigError{
				Key:    "settings",
				Reason: fmt.Sprintf("invalid setting name %q", key),
			}
		}
		if strings.ContainsAny(value, "\n\r") {
			return &pgerrors.ConfigError{
				Key:    "settings." + key,
				Reason: "value must be a single line",
			}
		}
	}

	return nil
}

// ExtraSettings returns Settings as a slice sorted by key, so the appended
// postgresql.conf lines are stable across runs.
func (c *Config) ExtraSettings() []Setting {
	keys := make([]string, 0, len(c.Settings))
	for k := range c.Settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]Setting, 0, len(keys))
	for _, k := range keys {
		out = append(out, Setting{Key: k, Value: c.Settings[k]})
	}
	return out
}
