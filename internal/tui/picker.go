package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/firefly-engineering/hutch/internal/workspace"
)

// Action represents the action to take after picker selection
type Action int

const (
	ActionNone Action = iota
	ActionEnter
	ActionStop
	ActionRemove
	ActionQuit
)

// PickerResult holds the result of the picker
type PickerResult struct {
	Action    Action
	Workspace string
}

// workspaceItem implements list.Item for workspace display
type workspaceItem struct {
	summary workspace.Summary
}

func (i workspaceItem) Title() string {
	return i.summary.Name
}

func (i workspaceItem) Description() string {
	desc := fmt.Sprintf("%s %s | %s", stateIcon(i.summary.State), i.summary.State, i.summary.Image)
	if i.summary.Sidecars > 0 {
		desc += fmt.Sprintf(" | %d sidecars", i.summary.Sidecars)
	}
	return desc
}

func (i workspaceItem) FilterValue() string {
	return i.summary.Name
}

func stateIcon(s workspace.State) string {
	switch s {
	case workspace.StateRunning:
		return "✓"
	case workspace.StatePartial:
		return "⚠"
	default:
		return "●"
	}
}

// Styles
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

// Model is the bubbletea model for the workspace picker
type Model struct {
	list     list.Model
	result   PickerResult
	quitting bool
}

// NewPicker creates a new workspace picker
func NewPicker(summaries []workspace.Summary) Model {
	l := list.New(buildGroupedItems(summaries), newGroupedDelegate(), 80, 20)
	l.Title = "hutch - Select Workspace"
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.Styles.Title = titleStyle
	skipHeaders(&l, 1)

	return Model{list: l}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) selected() (workspaceItem, bool) {
	item, ok := m.list.SelectedItem().(workspaceItem)
	return item, ok
}

func (m Model) choose(action Action) (tea.Model, tea.Cmd) {
	item, ok := m.selected()
	if !ok {
		return m, nil
	}
	m.result = PickerResult{Action: action, Workspace: item.summary.Name}
	m.quitting = true
	return m, tea.Quit
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
		case "enter":
			return m.choose(ActionEnter)
		case "s":
			return m.choose(ActionStop)
		case "d":
			return m.choose(ActionRemove)
		case "q", "esc", "ctrl+c":
			m.result = PickerResult{Action: ActionQuit}
			m.quitting = true
			return m, tea.Quit
		}

		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		skipHeaders(&m.list, navigationDirection(msg))
		return m, cmd
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	help := helpStyle.Render("[enter] Enter  [s] Stop  [d] Remove  [/] Filter  [q] Quit")

	return m.list.View() + "\n" + help
}

// Result returns the picker result
func (m Model) Result() PickerResult {
	return m.result
}

// RunPicker runs the interactive workspace picker
func RunPicker(summaries []workspace.Summary) (PickerResult, error) {
	if len(summaries) == 0 {
		return PickerResult{Action: ActionQuit}, nil
	}

	p := tea.NewProgram(NewPicker(summaries), tea.WithAltScreen())

	finalModel, err := p.Run()
	if err != nil {
		return PickerResult{}, err
	}

	return finalModel.(Model).Result(), nil
}

// SimplePicker renders a plain listing for non-interactive terminals.
func SimplePicker(summaries []workspace.Summary) string {
	var sb strings.Builder

	sb.WriteString("hutch - Workspaces\n")
	sb.WriteString(strings.Repeat("─", 60) + "\n\n")

	if len(summaries) == 0 {
		sb.WriteString("No workspaces found.\n")
		sb.WriteString("Create one with: hutch new <name>\n")
		return sb.String()
	}

	for i, s := range summaries {
		sb.WriteString(fmt.Sprintf("%d. %s %s (%s)\n", i+1, stateIcon(s.State), s.Name, s.Image))
		if s.Origin != "" {
			sb.WriteString(fmt.Sprintf("   Config: %s\n", shortenGroupKey(s.Origin)))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}
