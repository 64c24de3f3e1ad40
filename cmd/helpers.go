package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/term"

	"github.com/firefly-engineering/basebox/internal/app"
	"github.com/firefly-engineering/basebox/internal/tui"
)

// current returns the application context.
func current() *app.App {
	return app.Default
}

// interactive reports whether stdin and stderr are terminals, so a prompt
// can be shown.
var interactive = func() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stderr.Fd()))
}

// confirm asks a yes/no question on the terminal.
var confirm = func(question string) (bool, error) {
	return tui.Confirm(question, os.Stdin, os.Stderr)
}

// signalContext returns a context cancelled on SIGINT or SIGTERM, so an
// interrupted build still tears its machine down.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
