// Package config loads daemon configuration from a YAML/TOML file and the
// environment, with hot reload for the settings that are safe to change at
// runtime.
package config

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config carries the daemon's settings.
type Config struct {
	// APIBaseURL is the REST backend, e.g. http://localhost:3001.
	APIBaseURL string `mapstructure:"api_base_url"`

	// HealthTimeout bounds the health probe round trip.
	HealthTimeout time.Duration `mapstructure:"health_timeout"`

	// MonitorInterval is the integrity monitor's cycle period.
	MonitorInterval time.Duration `mapstructure:"monitor_interval"`

	// AutoFix enables the monitor's repair pass.
	AutoFix bool `mapstructure:"auto_fix"`

	// LiveAddr is the listen address for the live-update feed.
	LiveAddr string `mapstructure:"live_addr"`

	// CachePath is the snapshot database location.
	CachePath string `mapstructure:"cache_path"`

	// PrefsPath is the view-preferences file location.
	PrefsPath string `mapstructure:"prefs_path"`

	// LogFile, when set, routes daemon logs there with rotation.
	LogFile string `mapstructure:"log_file"`

	// Actor is recorded on mutations as created_by/updated_by.
	Actor string `mapstructure:"actor"`
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		APIBaseURL:      "http://localhost:3001",
		HealthTimeout:   5 * time.Second,
		MonitorInterval: 30 * time.Second,
		AutoFix:         true,
		LiveAddr:        ":8787",
		CachePath:       ".todo/snapshot.db",
		PrefsPath:       ".todo/prefs.toml",
		Actor:           "local",
	}
}

// Loader owns the viper instance so reloads and watches share one view of
// the file.
type Loader struct {
	v      *viper.Viper
	logger *log.Logger

	mu      sync.RWMutex
	current Config
}

// NewLoader builds a loader for the given config file path. An empty path
// uses defaults plus environment only. Environment variables use the TODO_
// prefix (TODO_API_BASE_URL and so on).
func NewLoader(path string, logger *log.Logger) (*Loader, error) {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("api_base_url", defaults.APIBaseURL)
	v.SetDefault("health_timeout", defaults.HealthTimeout)
	v.SetDefault("monitor_interval", defaults.MonitorInterval)
	v.SetDefault("auto_fix", defaults.AutoFix)
	v.SetDefault("live_addr", defaults.LiveAddr)
	v.SetDefault("cache_path", defaults.CachePath)
	v.SetDefault("prefs_path", defaults.PrefsPath)
	v.SetDefault("log_file", defaults.LogFile)
	v.SetDefault("actor", defaults.Actor)

	v.SetEnvPrefix("TODO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	l := &Loader{v: v, logger: logger}
	cfg, err := l.unmarshal()
	if err != nil {
		return nil, err
	}
	l.current = cfg
	return l, nil
}

func (l *Loader) unmarshal() (Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Current returns the most recently loaded configuration.
func (l *Loader) Current() Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// Watch re-reads the file whenever it changes and invokes onChange with the
// new configuration. Settings that cannot be applied live (listen address,
// cache path) require a restart; the callback decides what to honor.
func (l *Loader) Watch(onChange func(Config)) {
	l.v.OnConfigChange(func(ev fsnotify.Event) {
		cfg, err := l.unmarshal()
		if err != nil {
			if l.logger != nil {
				l.logger.Printf("Ignoring config change %s: %v", ev.Name, err)
			}
			return
		}
		l.mu.Lock()
		l.current = cfg
		l.mu.Unlock()
		if l.logger != nil {
			l.logger.Printf("Config reloaded from %s", ev.Name)
		}
		if onChange != nil {
			onChange(cfg)
		}
	})
	l.v.WatchConfig()
}

// Validate rejects settings the daemon cannot run with.
func (c *Config) Validate() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("api_base_url must not be empty")
	}
	if c.HealthTimeout <= 0 {
		return fmt.Errorf("health_timeout must be positive")
	}
	if c.MonitorInterval <= 0 {
		return fmt.Errorf("monitor_interval must be positive")
	}
	return nil
}
