// File: cmd/taintscan/main.go
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/xkilldash9x/taintscan/cmd"
	"github.com/xkilldash9x/taintscan/internal/observability"
)

// Define function variables for dependency injection/mocking in tests.
var (
	execute = cmd.Execute
	// Allows mocking os.Exit in tests.
	osExit = os.Exit
)

var stderr io.Writer = os.Stderr

// main is the entry point of the application.
func main() {
	defer handlePanic()

	// Set up a context that listens for interrupt signals (SIGINT, SIGTERM) for graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := execute(ctx)
	stop()
	osExit(cmd.ExitCode(err))
}

// handlePanic reports a crash outside the analysis workers, which recover on
// their own, and exits non-zero.
func handlePanic() {
	if r := recover(); r != nil {
		observability.Sync()
		fmt.Fprintf(stderr, "taintscan crashed: %v\n\n%s", r, debug.Stack())
		osExit(1)
	}
}
