package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/Iron-Ham/forge/internal/logging"
)

// FileName is the base name of the forge config file.
const FileName = "forge.config.yaml"

// Config represents the complete forge configuration
type Config struct {
	// Taskfile is the path of the task file (default: "forge.yaml")
	Taskfile string        `mapstructure:"taskfile" yaml:"taskfile"`
	Run      RunConfig     `mapstructure:"run" yaml:"run"`
	Watch    WatchConfig   `mapstructure:"watch" yaml:"watch"`
	Logging  LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Metrics  MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
	Output   OutputConfig  `mapstructure:"output" yaml:"output"`
}

// RunConfig controls task execution
type RunConfig struct {
	// MaxParallel bounds concurrently running actions (0 = unbounded)
	MaxParallel int `mapstructure:"max_parallel" yaml:"max_parallel"`
	// TaskTimeout limits each action, e.g. "5m" (empty = no limit)
	TaskTimeout string `mapstructure:"task_timeout" yaml:"task_timeout"`
}

// WatchConfig controls forge watch
type WatchConfig struct {
	// DebounceMs is how long a burst of file events settles before bindings
	// are checked (default: 50)
	DebounceMs int `mapstructure:"debounce_ms" yaml:"debounce_ms"`
	// Ignore lists glob patterns for paths that never trigger a binding
	Ignore []string `mapstructure:"ignore" yaml:"ignore"`
	// RunOnStart runs every binding's tasks once before watching (default: true)
	RunOnStart bool `mapstructure:"run_on_start" yaml:"run_on_start"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level" yaml:"level"`
	// Dir holds forge.log. Empty logs to stderr.
	Dir string `mapstructure:"dir" yaml:"dir"`
	// MaxSizeMB is the maximum log file size in megabytes before rotation (default: 10)
	MaxSizeMB int `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	// MaxBackups is the number of backup log files to keep (default: 3)
	MaxBackups int `mapstructure:"max_backups" yaml:"max_backups"`
}

// MetricsConfig controls the Prometheus endpoint of forge watch
type MetricsConfig struct {
	// Addr is the listen address, e.g. ":9464". Empty disables metrics.
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// OutputConfig controls terminal output
type OutputConfig struct {
	// Color is "auto", "always" or "never" (default: "auto")
	Color string `mapstructure:"color" yaml:"color"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Taskfile: "forge.yaml",
		Run: RunConfig{
			MaxParallel: 0,
			TaskTimeout: "",
		},
		Watch: WatchConfig{
			DebounceMs: 50,
			Ignore:     []string{".git", "node_modules", ".DS_Store", "*.swp", "*~", ".#*"},
			RunOnStart: true,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Dir:        "",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Output: OutputConfig{
			Color: "auto",
		},
	}
}

// Timeout returns the per-task timeout as a time.Duration (0 means none).
// Validate rejects unparseable values, so errors are ignored here.
func (c *RunConfig) Timeout() time.Duration {
	if c.TaskTimeout == "" {
		return 0
	}
	d, _ := time.ParseDuration(c.TaskTimeout)
	return d
}

// Debounce returns the debounce window as a time.Duration
func (c *WatchConfig) Debounce() time.Duration {
	return time.Duration(c.DebounceMs) * time.Millisecond
}

// Rotation returns the log rotation settings
func (c *LoggingConfig) Rotation() logging.Rotation {
	return logging.Rotation{MaxSizeMB: c.MaxSizeMB, MaxBackups: c.MaxBackups}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("taskfile", defaults.Taskfile)

	// Run defaults
	viper.SetDefault("run.max_parallel", defaults.Run.MaxParallel)
	viper.SetDefault("run.task_timeout", defaults.Run.TaskTimeout)

	// Watch defaults
	viper.SetDefault("watch.debounce_ms", defaults.Watch.DebounceMs)
	viper.SetDefault("watch.ignore", defaults.Watch.Ignore)
	viper.SetDefault("watch.run_on_start", defaults.Watch.RunOnStart)

	// Logging defaults
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)

	viper.SetDefault("metrics.addr", defaults.Metrics.Addr)
	viper.SetDefault("output.color", defaults.Output.Color)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

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
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "forge")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".forge"
	}
	return filepath.Join(home, ".config", "forge")
}

// ConfigFile returns the path to the user-level config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), FileName)
}
