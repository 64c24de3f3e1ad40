package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
)

// User-facing output functions with status prefixes.
// These write to stdout/stderr directly for CLI output,
// separate from the structured debug logging.

var (
	// UserOut receives info and success lines.
	UserOut io.Writer = os.Stdout

	// UserErr receives warning and error lines.
	UserErr io.Writer = os.Stderr
)

var (
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
)

// UserInfo prints an info message to stdout.
func UserInfo(format string, args ...interface{}) {
	fmt.Fprintln(UserOut, infoStyle.Render("ℹ "+fmt.Sprintf(format, args...)))
}

// UserSuccess prints a success message to stdout.
func UserSuccess(format string, args ...interface{}) {
	fmt.Fprintln(UserOut, successStyle.Render("✓ "+fmt.Sprintf(format, args...)))
}

// UserWarning prints a warning message to stderr.
func UserWarning(format string, args ...interface{}) {
	fmt.Fprintln(UserErr, warningStyle.Render("⚠ "+fmt.Sprintf(format, args...)))
}

// UserError prints an error message to stderr.
func UserError(format string, args ...interface{}) {
	fmt.Fprintln(UserErr, errorStyle.Render("✗ "+fmt.Sprintf(format, args...)))
}
