// Package toolchain runs single invocations of the virtualization
// command-line tools (vagrant, VBoxManage) and classifies their failures.
package toolchain

import (
	"context"
	"time"

	"github.com/firefly-engineering/basebox/internal/errors"
	"github.com/firefly-engineering/basebox/internal/logging"
	"github.com/firefly-engineering/basebox/internal/system"
)

// DefaultVagrantLog is the VAGRANT_LOG level used when none is configured.
const DefaultVagrantLog = "error"

// CommandResult records one finished toolchain invocation.
type CommandResult struct {
	Argv     []string
	Dir      string
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// Runner is the interface the lifecycle layers depend on.
type Runner interface {
	Run(ctx context.Context, dir string, argv ...string) (*CommandResult, error)
}

// Invoker runs toolchain commands through a system.CommandExecutor.
type Invoker struct {
	exec       system.CommandExecutor
	vagrantLog string
	extraEnv   []string
}

// Option configures an Invoker.
type Option func(*Invoker)

// WithVagrantLog sets the VAGRANT_LOG level passed to every command.
func WithVagrantLog(level string) Option {
	return func(i *Invoker) {
		if level != "" {
			i.vagrantLog = level
		}
	}
}

// WithEnv appends KEY=VALUE entries to every command's environment.
func WithEnv(env ...string) Option {
	return func(i *Invoker) {
		i.extraEnv = append(i.extraEnv, env...)
	}
}

// New creates an Invoker. A nil executor means system.DefaultExecutor().
func New(exec system.CommandExecutor, opts ...Option) *Invoker {
	if exec == nil {
		exec = system.DefaultExecutor()
	}
	i := &Invoker{exec: exec, vagrantLog: DefaultVagrantLog}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Env returns the environment entries added to every command.
func (i *Invoker) Env() []string {
	env := []string{
		"VAGRANT_LOG=" + i.vagrantLog,
		"VAGRANT_CHECKPOINT_DISABLE=1",
	}
	return append(env, i.extraEnv...)
}

// Run executes argv in dir, exactly once, and waits for it to exit.
// A non-zero exit or a failure to start returns *errors.ToolchainError
// together with the partial result.
func (i *Invoker) Run(ctx context.Context, dir string, argv ...string) (*CommandResult, error) {
	if len(argv) == 0 {
		return nil, errors.ValidationError("empty toolchain command")
	}

	logging.Debug("running toolchain command", "argv", argv, "dir", dir)

	start := time.Now()
	res, err := i.exec.Run(ctx, system.Command{
		Name: argv[0],
		Args: argv[1:],
		Dir:  dir,
		Env:  i.Env(),
	})
	result := &CommandResult{
		Argv:     argv,
		Dir:      dir,
		ExitCode: res.ExitCode,
		Stdout:   string(res.Stdout),
		Stderr:   string(res.Stderr),
		Duration: time.Since(start),
	}

	if err != nil {
		logging.Debug("toolchain command did not run", "argv", argv, "error", err)
		return result, &errors.ToolchainError{
			Command:    argv,
			Dir:        dir,
			ExitStatus: -1,
			Stderr:     result.Stderr,
			Cause:      err,
		}
	}
	if result.ExitCode != 0 {
		logging.Debug("toolchain command failed", "argv", argv, "exit", result.ExitCode, "duration", result.Duration)
		return result, &errors.ToolchainError{
			Command:    argv,
			Dir:        dir,
			ExitStatus: result.ExitCode,
			Stderr:     result.Stderr,
		}
	}

	logging.Debug("toolchain command finished", "argv", argv, "duration", result.Duration)
	return result, nil
}
