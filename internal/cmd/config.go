package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/forge/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or modify forge configuration",
	Long: `View or modify forge configuration.

Without arguments, displays the current configuration.
Use subcommands to modify settings or create a config file.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in the user's config file.

Keys use dot notation, e.g.:
  forge config set run.max_parallel 4
  forge config set watch.debounce_ms 100
  forge config set output.color never

Valid keys:
  taskfile             - Task file path
  run.max_parallel     - Maximum concurrent tasks (0 = unbounded)
  run.task_timeout     - Per-task time limit, e.g. 5m
  watch.debounce_ms    - Quiet period before file changes trigger bindings
  watch.run_on_start   - Run every binding once before watching (true/false)
  logging.level        - debug, info, warn, error
  logging.dir          - Directory for forge.log (empty = stderr)
  logging.max_size_mb  - Log size before rotation (0 = never rotate)
  logging.max_backups  - Rotated log files to keep
  metrics.addr         - Prometheus listen address for forge watch
  output.color         - auto, always, never`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long:  `Create a default config file at ~/.config/forge/forge.config.yaml with all available options.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
}

// settableKeys maps each key accepted by config set to its value type.
var settableKeys = map[string]string{
	"taskfile":            "string",
	"run.max_parallel":    "int",
	"run.task_timeout":    "string",
	"watch.debounce_ms":   "int",
	"watch.run_on_start":  "bool",
	"logging.level":       "string",
	"logging.dir":         "string",
	"logging.max_size_mb": "int",
	"logging.max_backups": "int",
	"metrics.addr":        "string",
	"output.color":        "string",
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "# Config file: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintln(out, "# Config file: (none - using defaults)")
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}
	_, err = out.Write(data)
	return err
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key := args[0]
	value := args[1]

	keyType, ok := settableKeys[key]
	if !ok {
		return fmt.Errorf("unknown configuration key: %s\nRun 'forge config set --help' to see valid keys", key)
	}

	var typedValue any
	switch keyType {
	case "string":
		typedValue = value
	case "bool":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid value for %s: expected true or false", key)
		}
		typedValue = b
	case "int":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for %s: expected integer", key)
		}
		typedValue = n
	}

	previous := viper.Get(key)
	viper.Set(key, typedValue)
	if _, err := config.Load(); err != nil {
		viper.Set(key, previous)
		return err
	}

	configDir := config.ConfigDir()
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	configFile := config.ConfigFile()
	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %v\n", key, typedValue)
	fmt.Fprintf(cmd.OutOrStdout(), "Config saved to %s\n", configFile)
	return nil
}

const configTemplate = `# forge configuration

# Task file, relative to the working directory
taskfile: forge.yaml

run:
  # Maximum number of tasks running at once (0 = unbounded)
  max_parallel: 0
  # Per-task time limit, e.g. 5m (empty = no limit)
  task_timeout: ""

watch:
  # Quiet period after the last file event before bindings are checked
  debounce_ms: 50
  # Paths whose name matches any of these globs never trigger a binding
  ignore: [".git", "node_modules", ".DS_Store", "*.swp", "*~", ".#*"]
  # Run every binding once before watching
  run_on_start: true

logging:
  # debug, info, warn, error
  level: info
  # Directory for forge.log (empty = stderr)
  dir: ""
  # Rotate forge.log at this size (0 = never)
  max_size_mb: 10
  max_backups: 3

metrics:
  # Serve Prometheus metrics from forge watch, e.g. ":9464"
  addr: ""

output:
  # auto, always, never
  color: auto
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configDir := config.ConfigDir()
	configFile := config.ConfigFile()

	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("config file already exists at %s\nUse 'forge config set' to modify values", configFile)
	}
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(configFile, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created config file at %s\n", configFile)
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "Active config: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintf(out, "Default path: %s (not created)\n", config.ConfigFile())
	}

	fmt.Fprintln(out, "\nSearch paths:")
	fmt.Fprintf(out, "  1. %s\n", config.ConfigFile())
	fmt.Fprintf(out, "  2. $HOME/.config/forge/%s\n", config.FileName)
	fmt.Fprintf(out, "  3. ./%s (current directory)\n", config.FileName)
	fmt.Fprintln(out, "\nEnvironment variables: FORGE_* (e.g., FORGE_RUN_MAX_PARALLEL)")

	return nil
}
