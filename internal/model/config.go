package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DefaultAPIBaseURL is used when neither an explicit base URL nor a backend
// origin is configured.
const DefaultAPIBaseURL = "http://localhost:8000/api"

// envPrefix scopes environment overrides, e.g. AGRI_API_BASE_URL.
const envPrefix = "AGRI"

// APIConfig holds the REST backend settings.
type APIConfig struct {
	// BaseURL is the explicit API root including the /api suffix.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// Origin is the backend origin without /api. Used to derive BaseURL
	// when BaseURL is empty.
	Origin string `mapstructure:"origin" yaml:"origin"`

	// TimeoutSec bounds every request.
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec"`

	// RatePerSec limits outbound requests. Zero disables the limit.
	RatePerSec float64 `mapstructure:"rate_per_sec" yaml:"rate_per_sec"`
}

// NotificationsConfig holds the unread-count polling settings.
type NotificationsConfig struct {
	PollIntervalSec int `mapstructure:"poll_interval_sec" yaml:"poll_interval_sec"`
}

// CacheConfig holds the local notification cache settings.
type CacheConfig struct {
	// Path is the sqlite database file. Empty disables the cache.
	Path string `mapstructure:"path" yaml:"path"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`

	// File receives log output. The terminal UI always logs to a file.
	File string `mapstructure:"file" yaml:"file"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	API           APIConfig           `mapstructure:"api" yaml:"api"`
	Notifications NotificationsConfig `mapstructure:"notifications" yaml:"notifications"`
	Cache         CacheConfig         `mapstructure:"cache" yaml:"cache"`
	Log           LogConfig           `mapstructure:"log" yaml:"log"`
}

// ResolvedBaseURL returns the API root for this configuration.
func (c *AppConfig) ResolvedBaseURL() string {
	return ResolveBaseURL(c.API.BaseURL, c.API.Origin)
}

// Timeout returns the request timeout as a duration.
func (c *AppConfig) Timeout() time.Duration {
	return time.Duration(c.API.TimeoutSec) * time.Second
}

// PollInterval returns the unread-count poll interval as a duration.
func (c *AppConfig) PollInterval() time.Duration {
	return time.Duration(c.Notifications.PollIntervalSec) * time.Second
}

// ResolveBaseURL picks the API root: the explicit value first, then the
// backend origin with /api appended, then DefaultAPIBaseURL. Trailing
// slashes are trimmed.
func ResolveBaseURL(explicit, origin string) string {
	if v := strings.TrimSpace(explicit); v != "" {
		return strings.TrimRight(v, "/")
	}
	if v := strings.TrimSpace(origin); v != "" {
		return strings.TrimRight(v, "/") + "/api"
	}
	return DefaultAPIBaseURL
}

// ConfigDir returns ~/.config/agri, falling back to the working directory.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "agri")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/agri/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		API: APIConfig{
			TimeoutSec: 60,
		},
		Notifications: NotificationsConfig{
			PollIntervalSec: 30,
		},
		Cache: CacheConfig{
			Path: filepath.Join(ConfigDir(), "cache.db"),
		},
		Log: LogConfig{
			Level: "info",
			File:  filepath.Join(ConfigDir(), "agri.log"),
		},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// A .env file in the working directory and AGRI_* environment variables
// override file values. A missing file yields the defaults.
func LoadConfig(path string) (*AppConfig, error) {
	// Missing .env is the common case.
	_ = godotenv.Load()

	defaults := defaultAppConfig()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("api.base_url", "")
	v.SetDefault("api.origin", "")
	v.SetDefault("api.timeout_sec", defaults.API.TimeoutSec)
	v.SetDefault("api.rate_per_sec", 0)
	v.SetDefault("notifications.poll_interval_sec", defaults.Notifications.PollIntervalSec)
	v.SetDefault("cache.path", defaults.Cache.Path)
	v.SetDefault("log.level", defaults.Log.Level)
	v.SetDefault("log.file", defaults.Log.File)

	if err := v.ReadInConfig(); err != nil {
		var pathErr *os.PathError
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &pathErr) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.API.TimeoutSec <= 0 {
		cfg.API.TimeoutSec = defaults.API.TimeoutSec
	}
	if cfg.Notifications.PollIntervalSec <= 0 {
		cfg.Notifications.PollIntervalSec = defaults.Notifications.PollIntervalSec
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("api", cfg.API)
	v.Set("notifications", cfg.Notifications)
	v.Set("cache", cfg.Cache)
	v.Set("log", cfg.Log)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
