// Package record provides the TUI phase that captures a voice memo.
package record

import (
	"fmt"
	"strings"
	"time"

	"github.com/alkime/voicepost/internal/domain"
	"github.com/alkime/voicepost/internal/tui/components/waveform"
	"github.com/alkime/voicepost/internal/tui/style"
	"github.com/alkime/voicepost/pkg/uictl"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// StoppedMsg carries the finished recording, or the reason there is none.
type StoppedMsg struct {
	Audio *domain.AudioBuffer
	Err   error
	// Limit is set when the maximum duration ended the recording.
	Limit bool
}

// CancelledMsg reports that the user discarded the recording.
type CancelledMsg struct{}

// Controls connect the phase to a recorder.
type Controls struct {
	// Capture reads true while audio is being captured. Toggle pauses or
	// resumes.
	Capture uictl.Knob
	// Elapsed reads recorded time; its cap is the maximum duration, 0 for
	// none.
	Elapsed uictl.CappedDial[time.Duration]
	Levels  uictl.Levels[int16]
	// Peak reads recent input amplitude in 0..1. Optional.
	Peak    uictl.Dial[float64]
	Stop    func() (*domain.AudioBuffer, error)
	Cancel  func()
}

// maxWidth caps the waveform and progress bar on wide terminals.
const maxWidth = 72

// silentPeak is the amplitude below which live input counts as no signal.
const silentPeak = 0.002

// Model is the record phase.
type Model struct {
	keys     KeyMap
	help     help.Model
	controls Controls
	spinner  spinner.Model
	wave     waveform.Model
	progress progress.Model
	stopping bool
	err      error
}

// New creates the record phase over controls.
func New(controls Controls) *Model {
	s := spinner.New()
	s.Spinner = spinner.Points

	return &Model{
		keys:     DefaultKeyMap(),
		help:     help.New(),
		controls: controls,
		spinner:  s,
		wave:     waveform.New(controls.Levels, 48, 3),
		progress: progress.New(
			progress.WithDefaultGradient(),
			progress.WithWidth(48),
			progress.WithoutPercentage(),
		),
	}
}

// Init starts the spinner and the waveform refresh.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.wave.Init())
}

// Update handles key presses and redraw ticks.
func (m *Model) Update(teaMsg tea.Msg) (tea.Model, tea.Cmd) {
	switch typedMsg := teaMsg.(type) {
	case tea.KeyMsg:
		return m, m.handleKey(typedMsg)

	case tea.WindowSizeMsg:
		width := min(max(typedMsg.Width-4, 16), maxWidth)
		m.wave = m.wave.SetWidth(width)
		m.progress.Width = width

	case waveform.TickMsg:
		var cmd tea.Cmd
		m.wave, cmd = m.wave.SetPaused(!m.IsRecording()).Update(typedMsg)

		if m.limitReached() && !m.stopping && m.err == nil {
			m.stopping = true
			return m, tea.Batch(cmd, m.stop(true))
		}

		return m, cmd

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(typedMsg)

		return m, cmd

	case StoppedMsg:
		m.stopping = false
		m.err = typedMsg.Err
	}

	return m, nil
}

func (m *Model) handleKey(km tea.KeyMsg) tea.Cmd {
	if m.stopping {
		return nil
	}

	switch {
	case key.Matches(km, m.keys.Toggle):
		if m.err == nil {
			m.controls.Capture.Toggle()
		}

	case key.Matches(km, m.keys.Stop):
		if m.err == nil {
			m.stopping = true
			return m.stop(false)
		}

	case key.Matches(km, m.keys.Cancel):
		if m.controls.Cancel != nil {
			m.controls.Cancel()
		}

		return func() tea.Msg { return CancelledMsg{} }
	}

	return nil
}

func (m *Model) stop(limit bool) tea.Cmd {
	stop := m.controls.Stop

	return func() tea.Msg {
		audio, err := stop()
		return StoppedMsg{Audio: audio, Err: err, Limit: limit}
	}
}

func (m *Model) limitReached() bool {
	elapsed, limit := m.controls.Elapsed.Cap()
	return limit > 0 && elapsed >= limit
}

// View renders the record phase.
func (m *Model) View() string {
	var sb strings.Builder

	elapsed, limit := m.controls.Elapsed.Cap()

	switch {
	case m.err != nil:
		sb.WriteString(style.Error.Render("Recording failed: " + m.err.Error()))
	case m.stopping:
		sb.WriteString(m.spinner.View())
		sb.WriteString(" ")
		sb.WriteString(style.Title.Render("Finishing recording"))
	case m.IsRecording():
		sb.WriteString(m.spinner.View())
		sb.WriteString(" ")
		sb.WriteString(style.Title.Render("Recording"))
	default:
		sb.WriteString(style.Warning.Render("Paused"))
	}

	sb.WriteString(" ")
	sb.WriteString(style.Subtitle.Render(FormatElapsed(elapsed, limit)))
	sb.WriteString("\n\n")

	sb.WriteString(m.wave.View())
	sb.WriteString("\n")

	if m.IsRecording() && m.controls.Peak != nil && m.controls.Peak.Read() < silentPeak {
		sb.WriteString(style.Warning.Render("No input detected. Check that the microphone is unmuted."))
		sb.WriteString("\n")
	}

	if limit > 0 {
		sb.WriteString(m.progress.ViewAs(min(float64(elapsed)/float64(limit), 1)))
		sb.WriteString("\n")
	}

	sb.WriteString("\n")

	if m.err != nil {
		sb.WriteString(m.help.ShortHelpView([]key.Binding{m.keys.Cancel}))
	} else {
		sb.WriteString(m.help.View(m.keys))
	}

	return sb.String()
}

// IsRecording reports whether audio is being captured.
func (m *Model) IsRecording() bool {
	return m.controls.Capture.Read()
}

// FormatElapsed renders elapsed time as m:ss, with the limit when set.
func FormatElapsed(elapsed, limit time.Duration) string {
	if limit <= 0 {
		return clock(elapsed)
	}

	return fmt.Sprintf("%s / %s", clock(elapsed), clock(limit))
}

func clock(d time.Duration) string {
	d = d.Truncate(time.Second)
	return fmt.Sprintf("%d:%02d", int(d/time.Minute), int(d%time.Minute/time.Second))
}
