// Package tui provides terminal user interface components for basebox.
//
// This package uses the Bubble Tea framework for the few interactive
// moments of a build.
//
// # Confirmation
//
// Confirm asks a yes/no question, used before replacing an installed box:
//
//	ok, err := tui.Confirm("Box web already exists. Replace it?", os.Stdin, os.Stderr)
//
// # Box Picker
//
// The picker lists installed boxes with their last build and allows
// removing one:
//
//	result, err := tui.RunPicker(boxes)
//	if result.Action == tui.ActionRemove {
//	    // vagrant box remove result.Box
//	}
//
// SimpleList renders the same information for non-interactive output.
//
// # Dependencies
//
// Uses the Charm libraries:
//   - github.com/charmbracelet/bubbletea - TUI framework
//   - github.com/charmbracelet/bubbles - UI components
//   - github.com/charmbracelet/lipgloss - Styling
package tui
