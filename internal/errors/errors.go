package errors

import (
	"errors"
	"fmt"
	"strings"

	shellquote "github.com/kballard/go-shellquote"
)

// Exit codes for basebox
const (
	ExitSuccess          = 0
	ExitGeneralError     = 1
	ExitConfigError      = 2
	ExitSetupFailed      = 3
	ExitToolchainFailed  = 4
	ExitInvalidLifecycle = 5
	ExitPackageConflict  = 6
	ExitRemoteFailed     = 7
)

// exitCoder is implemented by every error type in this package.
type exitCoder interface {
	ExitCode() int
}

// BaseboxError is the base error type for basebox
type BaseboxError struct {
	Code    int
	Message string
	Cause   error
}

func (e *BaseboxError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *BaseboxError) Unwrap() error {
	return e.Cause
}

// ExitCode returns the exit code for this error
func (e *BaseboxError) ExitCode() int {
	return e.Code
}

// New creates a new BaseboxError
func New(code int, message string) *BaseboxError {
	return &BaseboxError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with a BaseboxError
func Wrap(code int, message string, cause error) *BaseboxError {
	return &BaseboxError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// SetupError reports that an environment's working directory or
// configuration could not be created.
type SetupError struct {
	Message string
	Cause   error
}

func (e *SetupError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("environment setup failed: %s: %v", e.Message, e.Cause)
	}
	return "environment setup failed: " + e.Message
}

func (e *SetupError) Unwrap() error { return e.Cause }

// ExitCode implements exitCoder.
func (e *SetupError) ExitCode() int { return ExitSetupFailed }

// ToolchainError reports a toolchain command that exited non-zero or could
// not be started. ExitStatus is -1 when the process never ran.
type ToolchainError struct {
	Command    []string
	Dir        string
	ExitStatus int
	Stderr     string
	Cause      error
}

func (e *ToolchainError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "command %q failed", e.CommandLine())
	if e.ExitStatus >= 0 {
		fmt.Fprintf(&b, " with exit status %d", e.ExitStatus)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	if msg := strings.TrimSpace(e.Stderr); msg != "" {
		fmt.Fprintf(&b, ": %s", msg)
	}
	return b.String()
}

func (e *ToolchainError) Unwrap() error { return e.Cause }

// ExitCode implements exitCoder.
func (e *ToolchainError) ExitCode() int { return ExitToolchainFailed }

// CommandLine renders Command as a shell-quoted string.
func (e *ToolchainError) CommandLine() string {
	return shellquote.Join(e.Command...)
}

// TransitionError reports a lifecycle operation that is illegal in the
// machine's current state.
type TransitionError struct {
	Operation string
	State     string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s: machine is %s", e.Operation, e.State)
}

// ExitCode implements exitCoder.
func (e *TransitionError) ExitCode() int { return ExitInvalidLifecycle }

// PackageConflictError reports that a package target already exists and
// overwriting was not requested.
type PackageConflictError struct {
	// Target is the box name or output file that already exists.
	Target string
}

func (e *PackageConflictError) Error() string {
	return fmt.Sprintf("package target %q already exists (use overwrite to replace it)", e.Target)
}

// ExitCode implements exitCoder.
func (e *PackageConflictError) ExitCode() int { return ExitPackageConflict }

// Common error constructors

// Setup returns a SetupError.
func Setup(message string, cause error) *SetupError {
	return &SetupError{Message: message, Cause: cause}
}

// InvalidTransition returns a TransitionError for op attempted in state.
func InvalidTransition(op string, state fmt.Stringer) *TransitionError {
	return &TransitionError{Operation: op, State: state.String()}
}

// PackageConflict returns a PackageConflictError for target.
func PackageConflict(target string) *PackageConflictError {
	return &PackageConflictError{Target: target}
}

// ConfigError returns an error for configuration issues
func ConfigError(message string, cause error) *BaseboxError {
	return Wrap(ExitConfigError, message, cause)
}

// RemoteError returns an error for remote session failures
func RemoteError(message string, cause error) *BaseboxError {
	return Wrap(ExitRemoteFailed, message, cause)
}

// ValidationError returns an error for input validation failures
func ValidationError(message string) *BaseboxError {
	return New(ExitGeneralError, message)
}

// GetExitCode extracts the exit code from an error
func GetExitCode(err error) int {
	var coder exitCoder
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	return ExitGeneralError
}

// Is checks if an error is of a specific type
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target any) bool {
	return errors.As(err, target)
}
