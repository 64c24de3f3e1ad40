// Package logging provides logging utilities for basebox.
//
// This package provides two categories of output:
//   - Debug logging: Structured logs for debugging (via slog)
//   - User output: Formatted messages for end users
//
// # Debug Logging
//
// Debug logs are written using slog. Text output is rendered by
// charmbracelet/log, JSON output by slog's JSON handler:
//
//	logging.Debug("running toolchain command", "argv", argv, "dir", dir)
//	logging.Warn("teardown failed", "env", id, "error", err)
//
// # User Output
//
// User-facing messages are styled with lipgloss:
//
//	logging.UserInfo("Installing temporary box %s...", name)
//	logging.UserSuccess("Installed box %s", name)
//	logging.UserWarning("Removing existing box %s", name)
//	logging.UserError("Build failed: %v", err)
//
// Output destinations:
//   - UserInfo, UserSuccess: UserOut (stdout)
//   - UserWarning, UserError: UserErr (stderr)
package logging
