// Command forge runs task graphs declared in forge.yaml.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Iron-Ham/forge/internal/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := cmd.ExecuteContext(ctx)
	cmd.PrintError(os.Stderr, err)
	stop()
	os.Exit(cmd.ExitCode(err))
}
