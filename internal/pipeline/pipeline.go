// Package pipeline runs upload, transcription and generation for one
// recording in strict order and reports progress as a stream of events.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alkime/voicepost/internal/domain"
	"github.com/alkime/voicepost/internal/generation"
	"github.com/alkime/voicepost/internal/store"
	"github.com/alkime/voicepost/internal/transcription"
	"github.com/alkime/voicepost/internal/upload"
	"github.com/google/uuid"
)

// Stage names one step of a run.
type Stage string

const (
	StageUpload     Stage = "upload"
	StageTranscribe Stage = "transcribe"
	StageGenerate   Stage = "generate"
)

// Progress is a display-only projection of the active stage.
func (s Stage) Progress() int {
	switch s {
	case StageUpload:
		return 10
	case StageTranscribe:
		return 40
	case StageGenerate:
		return 75
	default:
		return 0
	}
}

// ProgressDone is reported with the final event of a successful run.
const ProgressDone = 100

var (
	// ErrCancelled is returned for runs stopped by Cancel and for any write
	// attempted after cancellation.
	ErrCancelled = errors.New("pipeline run cancelled")
	// ErrPersistence covers recording writes made by the orchestrator itself.
	ErrPersistence = errors.New("failed to persist recording")
	// ErrInvalidDraft is returned by Start for drafts that cannot be run.
	ErrInvalidDraft = errors.New("invalid recording draft")
)

// StageError annotates a failure with the stage it happened in.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// EventKind distinguishes progress from terminal events.
type EventKind string

const (
	EventProgress EventKind = "progress"
	EventDone     EventKind = "done"
	EventFailed   EventKind = "failed"
)

// Event is one entry in a run's event stream. A stream always ends with
// exactly one done or failed event.
type Event struct {
	RunID       uuid.UUID  `json:"runId"`
	RecordingID uuid.UUID  `json:"recordingId"`
	Kind        EventKind  `json:"kind"`
	Stage       Stage      `json:"stage,omitempty"`
	Progress    int        `json:"progress"`
	PostID      *uuid.UUID `json:"postId,omitempty"`
	Error       string     `json:"error,omitempty"`
	At          time.Time  `json:"at"`
}

// Terminal reports whether e ends its stream.
func (e Event) Terminal() bool {
	return e.Kind == EventDone || e.Kind == EventFailed
}

// Draft is a finished capture waiting to be processed.
type Draft struct {
	OwnerID  string
	Title    string
	Duration int
	Audio    *domain.AudioBuffer
	Platform domain.Platform
}

// Result is the outcome of a successful run.
type Result struct {
	RecordingID      uuid.UUID
	PostID           uuid.UUID
	AudioURL         string
	TranscriptSource transcription.Source
	Outcome          string
}

// Uploader makes audio durable.
type Uploader interface {
	Upload(ctx context.Context, buf *domain.AudioBuffer, ownerID string) (*upload.Result, error)
}

// Transcriber stores a transcript on a recording.
type Transcriber interface {
	Transcribe(ctx context.Context, ref transcription.AudioRef, recordingID uuid.UUID) (*transcription.Result, error)
}

// Generator stores a draft post for a recording.
type Generator interface {
	Generate(ctx context.Context, recordingID uuid.UUID, ownerID string, platform domain.Platform) (*generation.Result, error)
}

// TranscriberFactory builds a Transcriber that persists through recs.
type TranscriberFactory func(recs store.Recordings) Transcriber

// GeneratorFactory builds a Generator that persists through recs and posts.
type GeneratorFactory func(recs store.Recordings, posts store.Posts) Generator
