// Package process provides the TUI phase that follows a pipeline run from
// upload to the stored post.
package process

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/alkime/voicepost/internal/domain"
	"github.com/alkime/voicepost/internal/pipeline"
	"github.com/alkime/voicepost/internal/tui/components/labeledspinner"
	"github.com/alkime/voicepost/internal/tui/style"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
)

// StartFunc launches a run for audio and returns its event stream.
type StartFunc func(ctx context.Context, audio *domain.AudioBuffer) (<-chan pipeline.Event, error)

// LoadFunc fetches the post a finished run produced.
type LoadFunc func(ctx context.Context, postID uuid.UUID) (*domain.Post, error)

// StartMsg hands the phase the audio to process.
type StartMsg struct {
	Audio *domain.AudioBuffer
}

// EventMsg wraps one pipeline event.
type EventMsg struct {
	Event pipeline.Event
}

// FinishedMsg reports the end of the run: the stored post or the failure.
type FinishedMsg struct {
	Post *domain.Post
	Err  error
}

const loadingLabel = "Loading post"

var errStreamClosed = errors.New("event stream closed before the run finished")

// Model is the processing phase.
type Model struct {
	ctx      context.Context
	start    StartFunc
	load     LoadFunc
	events   <-chan pipeline.Event
	spinner  labeledspinner.Model
	progress progress.Model
	stage    pipeline.Stage
	percent  int
	err      error
	finished bool
}

// New creates the processing phase. ctx bounds the run and the post lookup.
func New(ctx context.Context, start StartFunc, load LoadFunc) *Model {
	return &Model{
		ctx:   ctx,
		start: start,
		load:  load,
		spinner: labeledspinner.New(
			spinner.Dot,
			"Processing recording...",
			"Press ctrl+c to abort",
			StageLabel(pipeline.StageUpload),
			StageLabel(pipeline.StageTranscribe),
			StageLabel(pipeline.StageGenerate),
			loadingLabel,
		),
		progress: progress.New(
			progress.WithDefaultGradient(),
			progress.WithWidth(48),
		),
	}
}

// Init starts the spinner. Work begins on StartMsg.
func (m *Model) Init() tea.Cmd {
	return m.spinner.Init()
}

// Update tracks run progress.
func (m *Model) Update(teaMsg tea.Msg) (tea.Model, tea.Cmd) {
	switch typedMsg := teaMsg.(type) {
	case StartMsg:
		events, err := m.start(m.ctx, typedMsg.Audio)
		if err != nil {
			return m, finished(nil, err)
		}

		m.events = events
		m.spinner = m.spinner.Activate(StageLabel(pipeline.StageUpload))

		return m, m.next()

	case EventMsg:
		return m, m.handleEvent(typedMsg.Event)

	case FinishedMsg:
		m.finished = true
		m.err = typedMsg.Err

		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(typedMsg)

		return m, cmd
	}

	return m, nil
}

func (m *Model) handleEvent(ev pipeline.Event) tea.Cmd {
	m.percent = ev.Progress

	switch ev.Kind {
	case pipeline.EventProgress:
		m.stage = ev.Stage
		m.spinner = m.spinner.Activate(StageLabel(ev.Stage))

		return m.next()

	case pipeline.EventFailed:
		return finished(nil, fmt.Errorf("%s", ev.Error))

	case pipeline.EventDone:
		if ev.PostID == nil {
			return finished(nil, errors.New("run finished without a post"))
		}

		m.spinner = m.spinner.Activate(loadingLabel)

		return m.loadPost(*ev.PostID)
	}

	return m.next()
}

func (m *Model) next() tea.Cmd {
	events, ctx := m.events, m.ctx

	return func() tea.Msg {
		select {
		case ev, ok := <-events:
			if !ok {
				return FinishedMsg{Err: errStreamClosed}
			}

			return EventMsg{Event: ev}
		case <-ctx.Done():
			return FinishedMsg{Err: ctx.Err()}
		}
	}
}

func (m *Model) loadPost(id uuid.UUID) tea.Cmd {
	load, ctx := m.load, m.ctx

	return func() tea.Msg {
		post, err := load(ctx, id)
		return FinishedMsg{Post: post, Err: err}
	}
}

func finished(post *domain.Post, err error) tea.Cmd {
	return func() tea.Msg { return FinishedMsg{Post: post, Err: err} }
}

// View renders the phase.
func (m *Model) View() string {
	var sb strings.Builder

	if m.finished && m.err != nil {
		sb.WriteString(style.Error.Render("Processing failed: " + m.err.Error()))
		sb.WriteString("\n\n")
		sb.WriteString(style.Help.Render("Press q to quit"))

		return sb.String()
	}

	sb.WriteString(m.spinner.View())
	sb.WriteString("\n\n")
	sb.WriteString(m.progress.ViewAs(float64(m.percent) / 100))

	return sb.String()
}

// Err returns the failure that ended the run, if any.
func (m *Model) Err() error {
	return m.err
}

// StageLabel describes what a stage is doing.
func StageLabel(s pipeline.Stage) string {
	switch s {
	case pipeline.StageUpload:
		return "Uploading audio"
	case pipeline.StageTranscribe:
		return "Transcribing"
	case pipeline.StageGenerate:
		return "Writing the post"
	default:
		return string(s)
	}
}
