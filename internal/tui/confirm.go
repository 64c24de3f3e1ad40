package tui

import (
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	promptStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214"))

	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)

// ConfirmModel is a yes/no question answered with a line of input.
// Anything but y or yes is a no.
type ConfirmModel struct {
	question  string
	input     textinput.Model
	answered  bool
	confirmed bool
}

// NewConfirm creates a confirmation prompt for question.
func NewConfirm(question string) ConfirmModel {
	ti := textinput.New()
	ti.Placeholder = "n"
	ti.CharLimit = 3
	ti.Width = 4
	ti.Prompt = ""
	ti.Focus()

	return ConfirmModel{question: question, input: ti}
}

func (m ConfirmModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m ConfirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.Type {
		case tea.KeyEnter:
			m.answered = true
			m.confirmed = isYes(m.input.Value())
			return m, tea.Quit
		case tea.KeyEsc, tea.KeyCtrlC:
			m.answered = true
			m.confirmed = false
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m ConfirmModel) View() string {
	if m.answered {
		answer := "no"
		if m.confirmed {
			answer = "yes"
		}
		return promptStyle.Render(m.question) + " " + answer + "\n"
	}
	return promptStyle.Render(m.question) + " " + hintStyle.Render("[y/N]") + " " + m.input.View()
}

// Confirmed reports whether the question was answered yes.
func (m ConfirmModel) Confirmed() bool {
	return m.confirmed
}

func isYes(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "y", "yes":
		return true
	}
	return false
}

// Confirm asks question on out, reading keys from in.
func Confirm(question string, in io.Reader, out io.Writer) (bool, error) {
	p := tea.NewProgram(NewConfirm(question), tea.WithInput(in), tea.WithOutput(out))

	finalModel, err := p.Run()
	if err != nil {
		return false, err
	}
	return finalModel.(ConfirmModel).Confirmed(), nil
}
