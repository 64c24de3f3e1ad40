package main

import (
	"os"
	"strconv"
	"strings"

	"github.com/firefly-engineering/basebox/cmd"
	"github.com/firefly-engineering/basebox/internal/errors"
	"github.com/firefly-engineering/basebox/internal/logging"
)

func main() {
	if err := cmd.Execute(); err != nil {
		report(err)
		os.Exit(errors.GetExitCode(err))
	}
}

// report prints err with the details that tell the user what to fix.
func report(err error) {
	var tcErr *errors.ToolchainError
	var trErr *errors.TransitionError
	switch {
	case errors.As(err, &tcErr):
		status := "could not be started"
		if tcErr.ExitStatus >= 0 {
			status = "exited with status " + strconv.Itoa(tcErr.ExitStatus)
		}
		logging.UserError("Command failed: %s", tcErr.CommandLine())
		logging.UserError("  %s", status)
		if stderr := strings.TrimSpace(tcErr.Stderr); stderr != "" {
			for _, line := range strings.Split(stderr, "\n") {
				logging.UserError("  %s", line)
			}
		}
	case errors.As(err, &trErr):
		logging.UserError("Cannot %s while the machine is %s", trErr.Operation, trErr.State)
	default:
		logging.UserError("%v", err)
	}
}
