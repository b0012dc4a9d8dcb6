// Package labeledspinner renders a titled spinner above a checklist of steps.
package labeledspinner

import (
	"slices"
	"strings"

	"github.com/alkime/voicepost/internal/tui/style"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

const (
	markDone    = "✓"
	markActive  = "›"
	markPending = "·"
)

// Model shows which step of a multi-step job is running. Steps before the
// active one render as done.
type Model struct {
	Spinner spinner.Model
	Title   string
	Help    string

	steps  []string
	active int
}

// New creates a spinner with no active step.
func New(s spinner.Spinner, title, help string, steps ...string) Model {
	sp := spinner.New()
	sp.Spinner = s

	return Model{
		Spinner: sp,
		Title:   title,
		Help:    help,
		steps:   slices.Clone(steps),
		active:  -1,
	}
}

// Init starts the spinner.
func (ls Model) Init() tea.Cmd {
	return ls.Spinner.Tick
}

// Update advances the spinner animation.
func (ls Model) Update(teaMsg tea.Msg) (Model, tea.Cmd) {
	if tickMsg, ok := teaMsg.(spinner.TickMsg); ok {
		var cmd tea.Cmd
		ls.Spinner, cmd = ls.Spinner.Update(tickMsg)

		return ls, cmd
	}

	return ls, nil
}

// Activate marks step as running. An unknown step is appended. Steps never
// move backwards.
func (ls Model) Activate(step string) Model {
	i := slices.Index(ls.steps, step)
	if i < 0 {
		ls.steps = append(slices.Clone(ls.steps), step)
		i = len(ls.steps) - 1
	}

	ls.active = max(ls.active, i)

	return ls
}

// Active returns the running step, or "" before the first Activate.
func (ls Model) Active() string {
	if ls.active < 0 {
		return ""
	}

	return ls.steps[ls.active]
}

// View renders the title, the checklist and the help line.
func (ls Model) View() string {
	var sb strings.Builder

	sb.WriteString(ls.Spinner.View())
	sb.WriteString(" ")
	sb.WriteString(style.Title.Render(ls.Title))
	sb.WriteString("\n\n")

	for i, step := range ls.steps {
		switch {
		case i < ls.active:
			sb.WriteString(style.Success.Render(markDone + " " + step))
		case i == ls.active:
			sb.WriteString(style.Title.Render(markActive + " " + step))
		default:
			sb.WriteString(style.Muted.Render(markPending + " " + step))
		}

		sb.WriteString("\n")
	}

	if ls.Help != "" {
		sb.WriteString("\n")
		sb.WriteString(style.Help.Render(ls.Help))
	}

	return sb.String()
}
