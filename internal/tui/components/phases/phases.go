// Package phases steps a bubbletea program through a fixed sequence of
// screens, such as record, process and review.
package phases

import (
	tea "github.com/charmbracelet/bubbletea"
)

// NextPhaseMsg signals the phases container to advance to the next phase.
// Then, when set, is delivered to the new phase right after its Init.
type NextPhaseMsg struct {
	Then tea.Msg
}

// Phase is one named step of a sequential flow.
type Phase struct {
	Name string
	mdl  tea.Model
}

func (p Phase) Init() tea.Cmd {
	return p.mdl.Init()
}

func (p Phase) Update(msg tea.Msg) (Phase, tea.Cmd) {
	updatedMdl, cmd := p.mdl.Update(msg)
	p.mdl = updatedMdl
	return p, cmd
}

func (p Phase) View() string {
	return p.mdl.View()
}

// NewPhase wraps mdl under a display name.
func NewPhase(name string, mdl tea.Model) Phase {
	return Phase{
		Name: name,
		mdl:  mdl,
	}
}

// Model runs phases one at a time, forwarding messages to the current one.
type Model struct {
	phases []Phase
	curr   int
}

// New starts at the first of phases, which must not be empty.
func New(phases []Phase) Model {
	return Model{phases: phases}
}

// Last reports whether the current phase is the final one.
func (m Model) Last() bool {
	return m.curr == len(m.phases)-1
}

func (m Model) currentPhase() Phase {
	return m.phases[m.curr]
}

func (m Model) Init() tea.Cmd {
	return m.currentPhase().Init()
}

func (m Model) Update(teaMsg tea.Msg) (tea.Model, tea.Cmd) {
	if next, ok := teaMsg.(NextPhaseMsg); ok {
		if m.curr >= len(m.phases)-1 {
			return m, nil
		}
		m.curr++
		initCmd := m.currentPhase().Init()
		if next.Then == nil {
			return m, initCmd
		}

		ph, cmd := m.currentPhase().Update(next.Then)
		m.phases[m.curr] = ph

		return m, tea.Batch(initCmd, cmd)
	}

	ph, cmd := m.currentPhase().Update(teaMsg)
	m.phases[m.curr] = ph

	return m, cmd
}

func (m Model) View() string {
	return m.currentPhase().View()
}

// CurrentPhaseName returns the name of the current phase.
func (m Model) CurrentPhaseName() string {
	return m.currentPhase().Name
}
