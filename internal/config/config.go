package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const envPrefix = "DAYGRID_"

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen" json:"listen"`

	// DBPath is the SQLite database file.
	DBPath string `yaml:"db_path" json:"db_path"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// LogFormat is one of text, pretty, json.
	LogFormat string `yaml:"log_format" json:"log_format"`

	// Timezone is the IANA zone days are laid out in (e.g. "America/Chicago").
	Timezone string `yaml:"timezone" json:"timezone"`

	// Engine holds the scheduling engine defaults. Runtime overrides live in
	// the settings table, see SettingsSource.
	Engine Engine `yaml:"engine" json:"engine"`
}

func Default() *Config {
	return &Config{
		Listen:    ":8080",
		DBPath:    "daygrid.db",
		LogLevel:  "info",
		LogFormat: "text",
		Timezone:  "UTC",
		Engine:    DefaultEngine(),
	}
}

// Normalize fills in missing values so partially-filled files still work.
func (c *Config) Normalize() {
	d := Default()
	if c.Listen == "" {
		c.Listen = d.Listen
	}
	if c.DBPath == "" {
		c.DBPath = d.DBPath
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	switch c.LogFormat {
	case "text", "pretty", "json":
	default:
		c.LogFormat = d.LogFormat
	}
	if c.Timezone == "" {
		c.Timezone = d.Timezone
	}
	c.Engine = c.Engine.Normalized()
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Load builds the configuration from, in increasing precedence: defaults, the
// YAML file at path (optional; a missing file is not an error), a .env file in
// the working directory, and DAYGRID_* environment variables.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			slog.Info("config file not found, using defaults", "path", path)
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	cfg.Normalize()
	if err := cfg.Engine.Validate(); err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	str := map[string]*string{
		"LISTEN":     &c.Listen,
		"DB_PATH":    &c.DBPath,
		"LOG_LEVEL":  &c.LogLevel,
		"LOG_FORMAT": &c.LogFormat,
		"TIMEZONE":   &c.Timezone,
	}
	for name, dst := range str {
		if v := getenv(envPrefix + name); v != "" {
			*dst = v
		}
	}
	if port := getenv(envPrefix + "PORT"); port != "" && getenv(envPrefix+"LISTEN") == "" {
		c.Listen = ":" + port
	}

	overrides := make(map[string]string)
	for _, key := range EngineKeys {
		if v := getenv(envPrefix + strings.ToUpper(key)); v != "" {
			overrides[key] = v
		}
	}
	e, err := c.Engine.Apply(overrides)
	if err != nil {
		return fmt.Errorf("environment: %w", err)
	}
	c.Engine = e
	return nil
}

// Save writes cfg as YAML to path atomically with 0600 permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".daygrid-config-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close config: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return fmt.Errorf("chmod config: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}

func parseBool(key, v string) (bool, error) {
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return false, fmt.Errorf("%s: invalid boolean %q", key, v)
	}
	return b, nil
}
