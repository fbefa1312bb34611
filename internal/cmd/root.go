package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/Iron-Ham/forge/internal/config"
	"github.com/Iron-Ham/forge/internal/errors"
	"github.com/Iron-Ham/forge/internal/event"
	"github.com/Iron-Ham/forge/internal/executor"
	"github.com/Iron-Ham/forge/internal/logging"
	"github.com/Iron-Ham/forge/internal/report"
	"github.com/Iron-Ham/forge/internal/taskfile"
	"github.com/Iron-Ham/forge/internal/taskgraph"
)

var rootCmd = &cobra.Command{
	Use:   "forge",
	Short: "Task-graph build orchestrator",
	Long: `forge runs named tasks declared in a task file (forge.yaml), always
running a task's dependencies first and independent tasks in parallel.
forge watch re-runs tasks when matching files change.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext runs the root command with ctx, which is cancelled on
// SIGINT by the caller.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// flagBinding ties a viper key to a command flag.
type flagBinding struct {
	key  string
	cmd  *cobra.Command
	flag string
}

var flagBindings []flagBinding

// bindFlag registers a flag to be bound to key each time config is
// initialized.
func bindFlag(key string, cmd *cobra.Command, flag string) {
	flagBindings = append(flagBindings, flagBinding{key: key, cmd: cmd, flag: flag})
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/forge/forge.config.yaml)")
	rootCmd.PersistentFlags().StringP("taskfile", "f", "", "task file (default is forge.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	bindFlag("config", rootCmd, "config")
	bindFlag("taskfile", rootCmd, "taskfile")
	bindFlag("logging.level", rootCmd, "log-level")
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	for _, b := range flagBindings {
		flags := b.cmd.Flags()
		if b.cmd == rootCmd {
			flags = b.cmd.PersistentFlags()
		}
		_ = viper.BindPFlag(b.key, flags.Lookup(b.flag))
	}

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName(strings.TrimSuffix(config.FileName, ".yaml"))
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath("$HOME/.config/forge")
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("FORGE")
	// e.g., FORGE_RUN_MAX_PARALLEL for run.max_parallel
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}

// exitError carries a process exit code out of a command. A nil err means
// the command already reported the problem.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	return fmt.Sprintf("exit status %d", e.code)
}

func (e *exitError) Unwrap() error { return e.err }

// ExitCode maps an error returned by Execute to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return report.ExitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, errors.ErrRunCancelled):
		return report.ExitCancelled
	case errors.IsGraphError(err),
		errors.Is(err, errors.ErrTaskfileInvalid),
		errors.Is(err, errors.ErrInvalidInput):
		return report.ExitUsage
	default:
		return report.ExitFailed
	}
}

// Silent reports whether err was already printed by the command.
func Silent(err error) bool {
	var ee *exitError
	return errors.As(err, &ee) && ee.err == nil
}

// PrintError reports err to the user unless the command already did.
// Errors forge does not classify get a pointer to the debug log.
func PrintError(w io.Writer, err error) {
	if err == nil || Silent(err) {
		return
	}
	_, _ = fmt.Fprintf(w, "Error: %v\n", err)
	if !errors.IsUserFacing(err) && ExitCode(err) == report.ExitFailed {
		_, _ = fmt.Fprintln(w, "Run with --log-level debug for details.")
	}
}

// logError logs err at the level its severity calls for.
func logError(logger *logging.Logger, msg string, err error, args ...any) {
	args = append(args, "error", err.Error())
	switch errors.GetSeverity(err) {
	case errors.SeverityCritical, errors.SeverityError:
		logger.Error(msg, args...)
	case errors.SeverityWarning:
		logger.Warn(msg, args...)
	default:
		logger.Debug(msg, args...)
	}
}

// session is the state shared by commands that load a task file.
type session struct {
	cfg    *config.Config
	logger *logging.Logger
	file   *taskfile.File
	reg    *taskgraph.Registry
	bus    *event.Bus
	color  bool
}

// newSession loads config and the task file. Task command output goes to
// stdout and stderr.
func newSession(cmd *cobra.Command, stdout, stderr io.Writer) (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, &exitError{code: report.ExitUsage, err: fmt.Errorf("invalid configuration: %w", err)}
	}

	logger, err := logging.NewLogger(cfg.Logging.Dir, logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Rotation())
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	file, err := taskfile.Load(cfg.Taskfile)
	if err != nil {
		_ = logger.Close()
		return nil, err
	}
	shell := taskfile.NewShell(file.Dir(), stdout, stderr, logger)
	reg, err := file.Registry(shell)
	if err != nil {
		_ = logger.Close()
		return nil, err
	}
	logger.Debug("task file loaded", "path", file.Path, "tasks", reg.Len(), "bindings", len(file.Watch))

	return &session{
		cfg:    cfg,
		logger: logger,
		file:   file,
		reg:    reg,
		bus:    event.NewBus(logger),
		color:  useColor(cmd.OutOrStdout(), cfg.Output.Color),
	}, nil
}

func (s *session) executor() *executor.Executor {
	return executor.New(s.bus, s.logger, executor.Options{
		MaxParallel: s.cfg.Run.MaxParallel,
		TaskTimeout: s.cfg.Run.Timeout(),
	})
}

func (s *session) close() {
	s.bus.Clear()
	_ = s.logger.Close()
}

// useColor resolves output.color for w. "auto" enables color only on a
// terminal and honors NO_COLOR.
func useColor(w io.Writer, mode string) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	}
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
