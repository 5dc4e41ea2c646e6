// Package config loads the service configuration: a YAML file created with
// defaults on first run, then HOLIDAYS_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "HOLIDAYS_"

// Config is the top-level service configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen"`
	// DataDir holds the SQLite database.
	DataDir string `yaml:"data_dir"`
	// StaticDir is served at / when set.
	StaticDir string `yaml:"static_dir"`

	LogLevel   string `yaml:"log_level"`
	AppVersion string `yaml:"app_version"`

	// Timezone is the IANA zone "today" is computed in.
	Timezone string `yaml:"timezone"`

	// DefaultRegions seeds the region selection on first start.
	DefaultRegions []string `yaml:"default_regions"`
	// MinimumRegions is how many regions must stay selected.
	MinimumRegions int `yaml:"minimum_regions"`

	// RolloverCron schedules the focus-year check (robfig/cron, seconds optional).
	RolloverCron string `yaml:"rollover_cron"`
	// Workers bounds concurrent rule evaluation during a rebuild.
	Workers int `yaml:"workers"`
	// FetchTimeoutSeconds bounds ICS feed downloads.
	FetchTimeoutSeconds int `yaml:"fetch_timeout_seconds"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:              ":8099",
		DataDir:             "/data",
		StaticDir:           "./static",
		LogLevel:            "info",
		AppVersion:          "dev",
		Timezone:            "Local",
		DefaultRegions:      []string{"SE"},
		MinimumRegions:      1,
		RolloverCron:        "@daily",
		Workers:             4,
		FetchTimeoutSeconds: 30,
	}
}

// Normalize fills zero values with defaults so partial files still work.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.DataDir == "" {
		c.DataDir = def.DataDir
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.AppVersion == "" {
		c.AppVersion = def.AppVersion
	}
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	if c.DefaultRegions == nil {
		c.DefaultRegions = def.DefaultRegions
	}
	for i, code := range c.DefaultRegions {
		c.DefaultRegions[i] = strings.ToUpper(strings.TrimSpace(code))
	}
	if c.MinimumRegions < 0 {
		c.MinimumRegions = 0
	}
	if c.RolloverCron == "" {
		c.RolloverCron = def.RolloverCron
	}
	if c.Workers <= 0 {
		c.Workers = def.Workers
	}
	if c.FetchTimeoutSeconds <= 0 {
		c.FetchTimeoutSeconds = def.FetchTimeoutSeconds
	}
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// DatabasePath is the SQLite file inside DataDir.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "holidays.db")
}

// FetchTimeout is FetchTimeoutSeconds as a duration.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSeconds) * time.Second
}

// Load reads the YAML file at path. A missing file is created with the
// defaults, which are then returned.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg := DefaultConfig()
		if err := Save(path, cfg); err != nil {
			return cfg, err
		}
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	cfg.Normalize()
	return &cfg, nil
}

// Save writes cfg to path atomically with 0600 permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}
	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".holidays-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// LoadEnvFile loads KEY=VALUE pairs from a .env file into the process
// environment without overwriting variables already set. A missing file is
// not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides fields from HOLIDAYS_* variables looked up with getenv
// (os.Getenv in production).
func (c *Config) ApplyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(EnvPrefix + key)); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v := strings.TrimSpace(getenv(EnvPrefix + key))
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s%s: %q is not an integer", EnvPrefix, key, v)
		}
		*dst = n
		return nil
	}

	str("LISTEN", &c.Listen)
	str("DATA_DIR", &c.DataDir)
	str("STATIC_DIR", &c.StaticDir)
	str("LOG_LEVEL", &c.LogLevel)
	str("APP_VERSION", &c.AppVersion)
	str("TIMEZONE", &c.Timezone)
	str("ROLLOVER_CRON", &c.RolloverCron)
	if v := getenv(EnvPrefix + "DEFAULT_REGIONS"); strings.TrimSpace(v) != "" {
		c.DefaultRegions = nil
		for _, code := range strings.Split(v, ",") {
			if code = strings.TrimSpace(code); code != "" {
				c.DefaultRegions = append(c.DefaultRegions, code)
			}
		}
	}
	for key, dst := range map[string]*int{
		"MINIMUM_REGIONS":       &c.MinimumRegions,
		"WORKERS":               &c.Workers,
		"FETCH_TIMEOUT_SECONDS": &c.FetchTimeoutSeconds,
	} {
		if err := num(key, dst); err != nil {
			return err
		}
	}
	c.Normalize()
	return nil
}
