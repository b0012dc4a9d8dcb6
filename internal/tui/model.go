// Package tui is the terminal front end of the voice CLI: record a memo,
// follow its processing, then read the post.
package tui

import (
	"context"
	"strings"

	"github.com/alkime/voicepost/internal/tui/components/phases"
	"github.com/alkime/voicepost/internal/tui/post"
	"github.com/alkime/voicepost/internal/tui/process"
	"github.com/alkime/voicepost/internal/tui/record"
	"github.com/alkime/voicepost/internal/tui/style"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

const (
	phaseRecord  = "Recording"
	phaseProcess = "Processing"
	phasePost    = "Post"
)

// Config wires the TUI to the recorder and the pipeline.
type Config struct {
	// Cancel aborts in-flight work when the user quits.
	Cancel   context.CancelFunc
	Controls record.Controls
	Start    process.StartFunc
	Load     process.LoadFunc
}

// Outcome is what the session ended with, read after the program exits.
type Outcome struct {
	Cancelled bool
	Post      *process.FinishedMsg
}

type model struct {
	config  Config
	keys    KeyMap
	phases  phases.Model
	outcome *Outcome
}

// New creates the TUI model. outcome is filled in as the session ends.
func New(ctx context.Context, config Config, outcome *Outcome) tea.Model {
	return &model{
		config: config,
		keys:   DefaultKeyMap(),
		phases: phases.New([]phases.Phase{
			phases.NewPhase(phaseRecord, record.New(config.Controls)),
			phases.NewPhase(phaseProcess, process.New(ctx, config.Start, config.Load)),
			phases.NewPhase(phasePost, post.New(76, 16)),
		}),
		outcome: outcome,
	}
}

// Init returns the initial command.
func (m *model) Init() tea.Cmd {
	return m.phases.Init()
}

// Update routes phase results and global keys, then delegates to the phases
// container.
func (m *model) Update(teaMsg tea.Msg) (tea.Model, tea.Cmd) {
	var handoff tea.Cmd

	switch typedMsg := teaMsg.(type) {
	case tea.KeyMsg:
		if cmd, handled := m.handleKey(typedMsg); handled {
			return m, cmd
		}

	case record.CancelledMsg:
		m.outcome.Cancelled = true
		return m, m.quit()

	case record.StoppedMsg:
		if typedMsg.Err == nil {
			handoff = advance(process.StartMsg{Audio: typedMsg.Audio})
		}

	case process.FinishedMsg:
		m.outcome.Post = &typedMsg

		if typedMsg.Err == nil {
			handoff = advance(post.ShowMsg{Post: typedMsg.Post})
		}
	}

	updatedPhases, cmd := m.phases.Update(teaMsg)
	m.phases = updatedPhases.(phases.Model) //nolint:forcetypeassert // phases.Model always returns phases.Model

	return m, tea.Batch(cmd, handoff)
}

func (m *model) handleKey(km tea.KeyMsg) (tea.Cmd, bool) {
	switch {
	case key.Matches(km, m.keys.ForceQuit):
		m.outcome.Cancelled = !m.phases.Last()
		return m.quit(), true

	case key.Matches(km, m.keys.Quit):
		// q is only a quit key once nothing is recording or running.
		if m.phases.Last() || m.failed() {
			return m.quit(), true
		}
	}

	return nil, false
}

func (m *model) failed() bool {
	return m.outcome.Post != nil && m.outcome.Post.Err != nil
}

func (m *model) quit() tea.Cmd {
	if m.config.Cancel != nil {
		m.config.Cancel()
	}

	return tea.Quit
}

func advance(then tea.Msg) tea.Cmd {
	return func() tea.Msg { return phases.NextPhaseMsg{Then: then} }
}

// View renders the current UI.
func (m *model) View() string {
	var sb strings.Builder

	sb.WriteString(style.Subtitle.Render("voicepost · " + m.phases.CurrentPhaseName()))
	sb.WriteString("\n\n")
	sb.WriteString(m.phases.View())
	sb.WriteString("\n")

	return sb.String()
}
