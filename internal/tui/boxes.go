package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/firefly-engineering/basebox/internal/audit"
)

// Action represents the action to take after picker selection
type Action int

const (
	ActionNone Action = iota
	ActionRemove
	ActionQuit
)

// BoxInfo is one installed box and the last journal entry for it.
type BoxInfo struct {
	Name string
	Last *audit.Event
}

// PickerResult holds the result of the picker
type PickerResult struct {
	Action Action
	Box    string
}

type boxItem struct {
	info BoxInfo
}

func (i boxItem) Title() string {
	return i.info.Name
}

func (i boxItem) Description() string {
	return describe(i.info)
}

func (i boxItem) FilterValue() string {
	return i.info.Name
}

func describe(info BoxInfo) string {
	if info.Last == nil {
		return "○ not built by basebox"
	}

	icon := "●"
	switch info.Last.Type {
	case audit.EventSuccess:
		icon = "✓"
	case audit.EventFailure:
		icon = "✗"
	}

	desc := fmt.Sprintf("%s %s %s", icon, info.Last.Type, info.Last.Timestamp.Format("2006-01-02 15:04"))
	if info.Last.Base != "" {
		desc += " | from " + truncate(info.Last.Base, 40)
	}
	return desc
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen+3:]
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			MarginBottom(1)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			MarginTop(1)

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)
)

// Model is the bubbletea model for the box picker
type Model struct {
	list     list.Model
	result   PickerResult
	quitting bool
}

// NewPicker creates a picker over the installed boxes.
func NewPicker(boxes []BoxInfo) Model {
	items := make([]list.Item, len(boxes))
	for i, b := range boxes {
		items[i] = boxItem{info: b}
	}

	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = selectedStyle
	delegate.Styles.SelectedDesc = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

	l := list.New(items, delegate, 80, 20)
	l.Title = "basebox - Installed Boxes"
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.Styles.Title = titleStyle

	return Model{list: l}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.list.SetSize(msg.Width, msg.Height-4)
		return m, nil

	case tea.KeyMsg:
		if m.list.FilterState() == list.Filtering {
			break
		}

		switch msg.String() {
		case "d":
			if item, ok := m.list.SelectedItem().(boxItem); ok {
				m.result = PickerResult{Action: ActionRemove, Box: item.info.Name}
				m.quitting = true
				return m, tea.Quit
			}

		case "q", "esc":
			m.result = PickerResult{Action: ActionQuit}
			m.quitting = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	help := helpStyle.Render("[d] Remove  [/] Filter  [q] Quit")
	return m.list.View() + "\n" + help
}

// Result returns the picker result
func (m Model) Result() PickerResult {
	return m.result
}

// RunPicker runs the interactive box picker
func RunPicker(boxes []BoxInfo) (PickerResult, error) {
	if len(boxes) == 0 {
		return PickerResult{Action: ActionQuit}, nil
	}

	p := tea.NewProgram(NewPicker(boxes), tea.WithAltScreen())
	finalModel, err := p.Run()
	if err != nil {
		return PickerResult{}, err
	}

	return finalModel.(Model).Result(), nil
}

// SimpleList renders the boxes for non-interactive output.
func SimpleList(boxes []BoxInfo) string {
	var sb strings.Builder

	if len(boxes) == 0 {
		sb.WriteString("No boxes installed.\n")
		sb.WriteString("Build one with: basebox build --name <name> --run <command>\n")
		return sb.String()
	}

	width := 0
	for _, b := range boxes {
		width = max(width, len(b.Name))
	}
	for _, b := range boxes {
		sb.WriteString(fmt.Sprintf("%-*s  %s\n", width, b.Name, describe(b)))
	}
	return sb.String()
}
