package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Taskfile != "forge.yaml" {
		t.Errorf("Taskfile = %q, want %q", cfg.Taskfile, "forge.yaml")
	}
	if cfg.Run.MaxParallel != 0 {
		t.Errorf("Run.MaxParallel = %d, want 0", cfg.Run.MaxParallel)
	}
	if cfg.Watch.DebounceMs != 50 {
		t.Errorf("Watch.DebounceMs = %d, want 50", cfg.Watch.DebounceMs)
	}
	if !cfg.Watch.RunOnStart {
		t.Error("Watch.RunOnStart should default to true")
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "info")
	}
	if cfg.Output.Color != "auto" {
		t.Errorf("Output.Color = %q, want %q", cfg.Output.Color, "auto")
	}
}

func TestRunConfig_Timeout(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"", 0},
		{"30s", 30 * time.Second},
		{"5m", 5 * time.Minute},
		{"nonsense", 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			c := RunConfig{TaskTimeout: tt.in}
			if got := c.Timeout(); got != tt.want {
				t.Errorf("Timeout() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWatchConfig_Debounce(t *testing.T) {
	c := WatchConfig{DebounceMs: 120}
	if got := c.Debounce(); got != 120*time.Millisecond {
		t.Errorf("Debounce() = %v", got)
	}
}

func TestLoggingConfig_Rotation(t *testing.T) {
	c := LoggingConfig{MaxSizeMB: 4, MaxBackups: 2}
	r := c.Rotation()
	if r.MaxSizeMB != 4 || r.MaxBackups != 2 {
		t.Errorf("Rotation() = %+v", r)
	}
}

func TestConfigDir(t *testing.T) {
	t.Run("with XDG_CONFIG_HOME", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "/custom/config")
		if got, want := ConfigDir(), "/custom/config/forge"; got != want {
			t.Errorf("ConfigDir() = %q, want %q", got, want)
		}
	})

	t.Run("without XDG_CONFIG_HOME", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "")
		home, _ := os.UserHomeDir()
		if got, want := ConfigDir(), filepath.Join(home, ".config", "forge"); got != want {
			t.Errorf("ConfigDir() = %q, want %q", got, want)
		}
	})
}

func TestConfigFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	if got, want := ConfigFile(), "/custom/config/forge/forge.config.yaml"; got != want {
		t.Errorf("ConfigFile() = %q, want %q", got, want)
	}
}

func TestGet(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	SetDefaults()

	cfg := Get()
	if cfg == nil {
		t.Fatal("Get() returned nil")
	}
	if cfg.Taskfile != "forge.yaml" {
		t.Errorf("Get().Taskfile = %q", cfg.Taskfile)
	}
	if len(cfg.Watch.Ignore) == 0 {
		t.Error("Get().Watch.Ignore should carry the default ignore list")
	}
}

func TestLoad_FromFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	SetDefaults()

	path := filepath.Join(t.TempDir(), FileName)
	content := `
taskfile: build/tasks.yaml
run:
  max_parallel: 4
  task_timeout: 2m
watch:
  debounce_ms: 200
logging:
  level: debug
metrics:
  addr: ":9464"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		t.Fatalf("ReadInConfig: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Taskfile != "build/tasks.yaml" {
		t.Errorf("Taskfile = %q", cfg.Taskfile)
	}
	if cfg.Run.MaxParallel != 4 || cfg.Run.Timeout() != 2*time.Minute {
		t.Errorf("Run = %+v", cfg.Run)
	}
	if cfg.Watch.Debounce() != 200*time.Millisecond {
		t.Errorf("Watch.Debounce() = %v", cfg.Watch.Debounce())
	}
	// Unset keys keep their defaults.
	if !cfg.Watch.RunOnStart || cfg.Output.Color != "auto" {
		t.Errorf("defaults lost: watch=%+v output=%+v", cfg.Watch, cfg.Output)
	}
	if cfg.Metrics.Addr != ":9464" {
		t.Errorf("Metrics.Addr = %q", cfg.Metrics.Addr)
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	SetDefaults()
	viper.Set("run.max_parallel", -1)
	viper.Set("output.color", "rainbow")

	_, err := Load()
	if err == nil {
		t.Fatal("Load() should fail on invalid values")
	}
	verrs, ok := err.(ValidationErrors)
	if !ok {
		t.Fatalf("error type = %T, want ValidationErrors", err)
	}
	if len(verrs) != 2 {
		t.Errorf("got %d errors, want 2: %v", len(verrs), verrs)
	}
}
