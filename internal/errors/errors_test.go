package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

type fakeState string

func (s fakeState) String() string { return string(s) }

func TestBaseboxError_Error(t *testing.T) {
	tests := []struct {
		name    string
		err     *BaseboxError
		wantMsg string
	}{
		{
			name:    "without cause",
			err:     New(ExitGeneralError, "something went wrong"),
			wantMsg: "something went wrong",
		},
		{
			name:    "with cause",
			err:     Wrap(ExitGeneralError, "operation failed", fmt.Errorf("underlying error")),
			wantMsg: "operation failed: underlying error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestBaseboxError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("root cause")
	err := Wrap(ExitGeneralError, "wrapped", cause)

	if unwrapped := err.Unwrap(); unwrapped != cause {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, cause)
	}

	errNoCause := New(ExitGeneralError, "no cause")
	if unwrapped := errNoCause.Unwrap(); unwrapped != nil {
		t.Errorf("Unwrap() = %v, want nil", unwrapped)
	}
}

func TestToolchainError(t *testing.T) {
	err := &ToolchainError{
		Command:    []string{"vagrant", "box", "add", "--name", "my box", "precise64.box"},
		ExitStatus: 1,
		Stderr:     "box already exists\n",
	}

	msg := err.Error()
	for _, want := range []string{
		`vagrant box add --name 'my box' precise64.box`,
		"exit status 1",
		"box already exists",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, should contain %q", msg, want)
		}
	}

	if err.ExitCode() != ExitToolchainFailed {
		t.Errorf("ExitCode() = %d, want %d", err.ExitCode(), ExitToolchainFailed)
	}
}

func TestToolchainError_NotStarted(t *testing.T) {
	cause := fmt.Errorf("executable file not found in $PATH")
	err := &ToolchainError{Command: []string{"vagrant", "up"}, ExitStatus: -1, Cause: cause}

	if strings.Contains(err.Error(), "exit status") {
		t.Errorf("Error() = %q, should not report an exit status", err.Error())
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the start failure")
	}
}

func TestTransitionError(t *testing.T) {
	err := InvalidTransition("halt", fakeState("halted"))

	if got, want := err.Error(), "cannot halt: machine is halted"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if err.ExitCode() != ExitInvalidLifecycle {
		t.Errorf("ExitCode() = %d, want %d", err.ExitCode(), ExitInvalidLifecycle)
	}
}

func TestSetupError(t *testing.T) {
	cause := fmt.Errorf("permission denied")
	err := Setup("failed to create working directory", cause)

	if !strings.Contains(err.Error(), "permission denied") {
		t.Errorf("Error() = %q, should include cause", err.Error())
	}
	if err.Unwrap() != cause {
		t.Errorf("Unwrap() = %v, want %v", err.Unwrap(), cause)
	}
}

func TestPackageConflict(t *testing.T) {
	err := PackageConflict("sample")

	if err.Target != "sample" {
		t.Errorf("Target = %q, want %q", err.Target, "sample")
	}
	if !strings.Contains(err.Error(), `"sample"`) {
		t.Errorf("Error() = %q, should name the target", err.Error())
	}
}

func TestConfigError(t *testing.T) {
	cause := fmt.Errorf("invalid toml")
	err := ConfigError("failed to parse config", cause)

	if err.Code != ExitConfigError {
		t.Errorf("Code = %d, want %d", err.Code, ExitConfigError)
	}

	if err.Cause != cause {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
}

func TestRemoteError(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := RemoteError("failed to connect", cause)

	if err.Code != ExitRemoteFailed {
		t.Errorf("Code = %d, want %d", err.Code, ExitRemoteFailed)
	}
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{
			name:     "BaseboxError",
			err:      ConfigError("bad", nil),
			wantCode: ExitConfigError,
		},
		{
			name:     "wrapped toolchain error",
			err:      fmt.Errorf("outer: %w", &ToolchainError{Command: []string{"vagrant", "up"}, ExitStatus: 1}),
			wantCode: ExitToolchainFailed,
		},
		{
			name:     "setup error",
			err:      Setup("no dir", nil),
			wantCode: ExitSetupFailed,
		},
		{
			name:     "transition error",
			err:      InvalidTransition("up", fakeState("packaged")),
			wantCode: ExitInvalidLifecycle,
		},
		{
			name:     "package conflict",
			err:      PackageConflict("base"),
			wantCode: ExitPackageConflict,
		},
		{
			name:     "regular error",
			err:      fmt.Errorf("some error"),
			wantCode: ExitGeneralError,
		},
		{
			name:     "nil error",
			err:      nil,
			wantCode: ExitGeneralError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetExitCode(tt.err); got != tt.wantCode {
				t.Errorf("GetExitCode() = %d, want %d", got, tt.wantCode)
			}
		})
	}
}

func TestAs(t *testing.T) {
	wrapped := fmt.Errorf("wrapped: %w", PackageConflict("sample"))

	var target *PackageConflictError
	if !As(wrapped, &target) {
		t.Fatal("As() should return true for wrapped PackageConflictError")
	}

	if target.Target != "sample" {
		t.Errorf("target.Target = %q, want %q", target.Target, "sample")
	}

	regularErr := fmt.Errorf("regular error")
	if As(regularErr, &target) {
		t.Error("As() should return false for a plain error")
	}
}

func TestErrorChaining(t *testing.T) {
	root := fmt.Errorf("root cause")
	middle := Wrap(ExitConfigError, "config error", root)
	outer := fmt.Errorf("operation failed: %w", middle)

	if !Is(outer, root) {
		t.Error("Is should find root cause")
	}

	var baseboxErr *BaseboxError
	if !errors.As(outer, &baseboxErr) {
		t.Error("errors.As should find BaseboxError")
	}

	if baseboxErr.Code != ExitConfigError {
		t.Errorf("Code = %d, want %d", baseboxErr.Code, ExitConfigError)
	}
}
