package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete inflow configuration
type Config struct {
	Watch    WatchConfig    `mapstructure:"watch"`
	Receiver ReceiverConfig `mapstructure:"receiver"`
	Download DownloadConfig `mapstructure:"download"`
	TUI      TUIConfig      `mapstructure:"tui"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// WatchConfig controls directory watching behavior
type WatchConfig struct {
	// PollIntervalMs is how often the watched directory is listed (in milliseconds)
	PollIntervalMs int `mapstructure:"poll_interval_ms"`
	// StableRounds is the number of consecutive polls with an unchanged
	// file count before a transfer is considered finished
	StableRounds int `mapstructure:"stable_rounds"`
	// RetryCeiling is the number of consecutive failed polls tolerated
	// before the watcher gives up
	RetryCeiling int `mapstructure:"retry_ceiling"`
	// FilePattern is an optional regular expression; only matching file
	// names are counted
	FilePattern string `mapstructure:"file_pattern"`
	// NotifyNudge enables the fsnotify trigger that forces an immediate
	// poll when the directory changes
	NotifyNudge bool `mapstructure:"notify_nudge"`
}

// ReceiverConfig controls the DICOM receiver
type ReceiverConfig struct {
	// Port is the incoming DICOM port storescp listens on (default: 11112)
	Port int `mapstructure:"port"`
	// AETitle is the application entity title announced to DICOM peers
	AETitle string `mapstructure:"ae_title"`
	// StoreSCPBinary overrides the storescp executable name or path
	StoreSCPBinary string `mapstructure:"storescp_binary"`
}

// DownloadConfig controls the sample data downloader
type DownloadConfig struct {
	// CacheDir is where downloaded files land.
	// If empty, defaults to <config dir>/cache.
	CacheDir string `mapstructure:"cache_dir"`
	// TimeoutMinutes bounds a single download (0 = the built-in default)
	TimeoutMinutes int `mapstructure:"timeout_minutes"`
}

// TUIConfig controls the terminal status display
type TUIConfig struct {
	// Enabled controls whether the watch command renders the status panel
	// (when false, events are printed as plain lines)
	Enabled bool `mapstructure:"enabled"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Enabled controls whether file logging is enabled (default: true)
	Enabled bool `mapstructure:"enabled"`
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level"`
	// Dir is the log directory. If empty, defaults to <config dir>/logs.
	Dir string `mapstructure:"dir"`
}

// PollInterval returns the poll interval as a time.Duration
func (w *WatchConfig) PollInterval() time.Duration {
	return time.Duration(w.PollIntervalMs) * time.Millisecond
}

// Timeout returns the download timeout as a time.Duration (0 means the
// downloader's built-in default)
func (d *DownloadConfig) Timeout() time.Duration {
	return time.Duration(d.TimeoutMinutes) * time.Minute
}

// ResolveCacheDir returns the download cache directory, falling back to
// <config dir>/cache when unset.
func (d *DownloadConfig) ResolveCacheDir() string {
	if d.CacheDir != "" {
		return d.CacheDir
	}
	return filepath.Join(ConfigDir(), "cache")
}

// ResolveDir returns the log directory, falling back to <config dir>/logs
// when unset.
func (l *LoggingConfig) ResolveDir() string {
	if !l.Enabled {
		return ""
	}
	if l.Dir != "" {
		return l.Dir
	}
	return filepath.Join(ConfigDir(), "logs")
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Watch: WatchConfig{
			PollIntervalMs: 1000,
			StableRounds:   5,
			RetryCeiling:   3,
			FilePattern:    "",
			NotifyNudge:    false,
		},
		Receiver: ReceiverConfig{
			Port:           11112,
			AETitle:        "INFLOW",
			StoreSCPBinary: "",
		},
		Download: DownloadConfig{
			CacheDir:       "", // Empty means use default: <config dir>/cache
			TimeoutMinutes: 30,
		},
		TUI: TUIConfig{
			Enabled: true,
		},
		Logging: LoggingConfig{
			Enabled: true,
			Level:   "info",
			Dir:     "", // Empty means use default: <config dir>/logs
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Watch defaults
	viper.SetDefault("watch.poll_interval_ms", defaults.Watch.PollIntervalMs)
	viper.SetDefault("watch.stable_rounds", defaults.Watch.StableRounds)
	viper.SetDefault("watch.retry_ceiling", defaults.Watch.RetryCeiling)
	viper.SetDefault("watch.file_pattern", defaults.Watch.FilePattern)
	viper.SetDefault("watch.notify_nudge", defaults.Watch.NotifyNudge)

	// Receiver defaults
	viper.SetDefault("receiver.port", defaults.Receiver.Port)
	viper.SetDefault("receiver.ae_title", defaults.Receiver.AETitle)
	viper.SetDefault("receiver.storescp_binary", defaults.Receiver.StoreSCPBinary)

	// Download defaults
	viper.SetDefault("download.cache_dir", defaults.Download.CacheDir)
	viper.SetDefault("download.timeout_minutes", defaults.Download.TimeoutMinutes)

	// TUI defaults
	viper.SetDefault("tui.enabled", defaults.TUI.Enabled)

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Validate the configuration
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "inflow")
	}
	// Fall back to ~/.config/inflow
	home, err := os.UserHomeDir()
	if err != nil {
		return ".inflow"
	}
	return filepath.Join(home, ".config", "inflow")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
