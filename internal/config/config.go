package config

import (
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	// Global settings
	Format  string `mapstructure:"format" yaml:"format" json:"format"`
	Level   string `mapstructure:"level" yaml:"level" json:"level"`
	Quiet   bool   `mapstructure:"quiet" yaml:"quiet" json:"quiet"`
	Verbose bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	Server   ServerConfig   `mapstructure:"server" yaml:"server" json:"server"`
	Store    StoreConfig    `mapstructure:"store" yaml:"store" json:"store"`
	Tracker  TrackerConfig  `mapstructure:"tracker" yaml:"tracker" json:"tracker"`
	Reporter ReporterConfig `mapstructure:"reporter" yaml:"reporter" json:"reporter"`
	Settings SettingsConfig `mapstructure:"settings" yaml:"settings" json:"settings"`
	Site     SiteConfig     `mapstructure:"site" yaml:"site" json:"site"`
}

// ServerConfig controls the WebSocket endpoint contexts connect to.
type ServerConfig struct {
	Host           string   `mapstructure:"host" yaml:"host" json:"host"`
	Port           int      `mapstructure:"port" yaml:"port" json:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins" json:"allowed_origins"`
}

// StoreConfig selects where session state is persisted.
type StoreConfig struct {
	Backend string `mapstructure:"backend" yaml:"backend" json:"backend"` // file, sqlite, memory
	Path    string `mapstructure:"path" yaml:"path" json:"path"`          // empty = under the state dir
}

// TrackerConfig tunes the session tracker.
type TrackerConfig struct {
	CoalesceWindow time.Duration `mapstructure:"coalesce_window" yaml:"coalesce_window" json:"coalesce_window"`
}

// ReporterConfig tunes per-context activity reporting.
type ReporterConfig struct {
	IdleTimeout  time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout" json:"idle_timeout"`
	Debounce     time.Duration `mapstructure:"debounce" yaml:"debounce" json:"debounce"`
	TickInterval time.Duration `mapstructure:"tick_interval" yaml:"tick_interval" json:"tick_interval"`
}

// SettingsConfig seeds user settings when none have been persisted yet.
type SettingsConfig struct {
	ThresholdSeconds int  `mapstructure:"threshold_seconds" yaml:"threshold_seconds" json:"threshold_seconds"`
	Enabled          bool `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
}

// SiteConfig describes how tracked pages are recognized.
type SiteConfig struct {
	Hosts        []string `mapstructure:"hosts" yaml:"hosts" json:"hosts"`
	PathPrefixes []string `mapstructure:"path_prefixes" yaml:"path_prefixes" json:"path_prefixes"`
	Generator    string   `mapstructure:"generator" yaml:"generator" json:"generator"`
	Markers      []string `mapstructure:"markers" yaml:"markers" json:"markers"`
	MinSignals   int      `mapstructure:"min_signals" yaml:"min_signals" json:"min_signals"`
}

// Default returns a Config with default values
func Default() *Config {
	return &Config{
		Format:  "auto",
		Level:   "info",
		Quiet:   false,
		Verbose: false,
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8787,
		},
		Store: StoreConfig{
			Backend: "file",
		},
		Tracker: TrackerConfig{
			CoalesceWindow: time.Second,
		},
		Reporter: ReporterConfig{
			IdleTimeout:  60 * time.Second,
			Debounce:     200 * time.Millisecond,
			TickInterval: time.Second,
		},
		Settings: SettingsConfig{
			ThresholdSeconds: 900,
			Enabled:          true,
		},
		Site: SiteConfig{
			Hosts:        []string{"*.substack.com"},
			PathPrefixes: []string{"/p/"},
			Generator:    "Substack",
			Markers:      []string{"post-content", "comments-section"},
			MinSignals:   2,
		},
	}
}

// Load loads configuration from files and environment
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("readtime")
	v.SetConfigType("yaml")

	// Config paths, lowest precedence first
	v.AddConfigPath("/etc/readtime/")
	if configDir, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(filepath.Join(configDir, "readtime"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home)
	}
	v.AddConfigPath(".")

	// Environment variables
	v.SetEnvPrefix("READTIME")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.BindEnv("format", "READTIME_FORMAT")
	v.BindEnv("level", "READTIME_LEVEL")
	v.BindEnv("verbose", "READTIME_VERBOSE")
	v.BindEnv("server.port", "READTIME_PORT")
	v.BindEnv("store.backend", "READTIME_STORE")
	v.BindEnv("store.path", "READTIME_STORE_PATH")

	cfg := Default()
	setDefaults(v, cfg)

	// Try to read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		// Fall back to a dotfile in home or cwd
		v.SetConfigName(".readtime")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, err
			}
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromFile loads configuration from a specific file
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ConfigFile returns the path to the config file that was loaded
func ConfigFile() string {
	for _, name := range []string{"readtime", ".readtime"} {
		v := viper.New()
		v.SetConfigName(name)
		v.SetConfigType("yaml")
		if configDir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(configDir, "readtime"))
		}
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")

		if err := v.ReadInConfig(); err == nil {
			return v.ConfigFileUsed()
		}
	}
	return ""
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("format", cfg.Format)
	v.SetDefault("level", cfg.Level)
	v.SetDefault("quiet", cfg.Quiet)
	v.SetDefault("verbose", cfg.Verbose)
	v.SetDefault("server.host", cfg.Server.Host)
	v.SetDefault("server.port", cfg.Server.Port)
	v.SetDefault("server.allowed_origins", cfg.Server.AllowedOrigins)
	v.SetDefault("store.backend", cfg.Store.Backend)
	v.SetDefault("store.path", cfg.Store.Path)
	v.SetDefault("tracker.coalesce_window", cfg.Tracker.CoalesceWindow)
	v.SetDefault("reporter.idle_timeout", cfg.Reporter.IdleTimeout)
	v.SetDefault("reporter.debounce", cfg.Reporter.Debounce)
	v.SetDefault("reporter.tick_interval", cfg.Reporter.TickInterval)
	v.SetDefault("settings.threshold_seconds", cfg.Settings.ThresholdSeconds)
	v.SetDefault("settings.enabled", cfg.Settings.Enabled)
	v.SetDefault("site.hosts", cfg.Site.Hosts)
	v.SetDefault("site.path_prefixes", cfg.Site.PathPrefixes)
	v.SetDefault("site.generator", cfg.Site.Generator)
	v.SetDefault("site.markers", cfg.Site.Markers)
	v.SetDefault("site.min_signals", cfg.Site.MinSignals)
}

// Addr returns host:port for the server.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}
