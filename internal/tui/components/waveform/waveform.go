// Package waveform draws live microphone amplitude as a bar graph.
package waveform

import (
	"math"
	"strings"
	"time"

	"github.com/alkime/voicepost/internal/tui/style"
	"github.com/alkime/voicepost/pkg/uictl"
	tea "github.com/charmbracelet/bubbletea"
)

// blocks are the eighth-height fills a cell can show, empty first.
var blocks = []rune(" ▁▂▃▄▅▆▇█")

const (
	stepsPerRow = 8
	fullScale   = 32767.0
	frameRate   = 50 * time.Millisecond
)

// TickMsg triggers a redraw.
type TickMsg struct{}

// Model draws the most recent samples as columns, oldest on the left. While
// paused the last frame stays on screen, dimmed.
type Model struct {
	levels uictl.Levels[int16]
	width  int
	height int
	paused bool
	frozen []int
}

// New creates a waveform width columns wide and height rows tall.
func New(levels uictl.Levels[int16], width, height int) Model {
	return Model{
		levels: levels,
		width:  max(width, 1),
		height: max(height, 1),
	}
}

// Init starts the redraw ticks.
func (m Model) Init() tea.Cmd {
	return tick()
}

// Update keeps the redraw ticks going.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if _, ok := msg.(TickMsg); ok {
		return m, tick()
	}

	return m, nil
}

// SetPaused freezes or releases the display.
func (m Model) SetPaused(paused bool) Model {
	if paused && !m.paused {
		m.frozen = m.columns(m.read())
	}

	m.paused = paused

	return m
}

// SetWidth resizes the graph.
func (m Model) SetWidth(width int) Model {
	m.width = max(width, 1)
	m.frozen = nil

	return m
}

// View renders the graph.
func (m Model) View() string {
	if m.paused && m.frozen != nil {
		return style.Muted.Render(m.draw(m.frozen))
	}

	samples := m.read()
	if len(samples) == 0 {
		return style.Muted.Render(m.baseline())
	}

	return style.Progress.Render(m.draw(m.columns(samples)))
}

func (m Model) read() []int16 {
	if m.levels == nil {
		return nil
	}

	return m.levels.Read()
}

// columns reduces samples to one fill level per column, 0..height*8.
func (m Model) columns(samples []int16) []int {
	cols := make([]int, m.width)
	bucket := max(1, len(samples)/m.width)
	top := m.height * stepsPerRow

	for c := range cols {
		start := c * bucket
		if start >= len(samples) {
			break
		}

		cols[c] = scale(peak(samples[start:min(start+bucket, len(samples))]), top)
	}

	return cols
}

func (m Model) draw(cols []int) string {
	rows := make([]string, m.height)

	for r := range rows {
		floor := (m.height - 1 - r) * stepsPerRow

		var line strings.Builder

		for _, level := range cols {
			fill := min(max(level-floor, 0), stepsPerRow)
			line.WriteRune(blocks[fill])
		}

		rows[r] = line.String()
	}

	return strings.Join(rows, "\n")
}

func (m Model) baseline() string {
	rows := make([]string, m.height)
	for r := range rows {
		rows[r] = strings.Repeat(" ", m.width)
	}

	rows[m.height-1] = strings.Repeat(string(blocks[1]), m.width)

	return strings.Join(rows, "\n")
}

func tick() tea.Cmd {
	return tea.Tick(frameRate, func(time.Time) tea.Msg {
		return TickMsg{}
	})
}

// peak returns the largest absolute amplitude in samples.
func peak(samples []int16) int {
	var p int

	for _, s := range samples {
		v := int(s)
		if v < 0 {
			v = -v
		}

		p = max(p, v)
	}

	return min(p, int(fullScale))
}

// scale maps an amplitude onto 0..top on a square-root curve so quiet
// speech still moves the bars.
func scale(amp, top int) int {
	if amp <= 0 {
		return 0
	}

	return min(int(math.Sqrt(float64(amp)/fullScale)*float64(top)), top)
}
