// Package domain holds the persisted entities shared by the pipeline stages,
// the store and the HTTP/TUI surfaces.
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RecordingStatus is the lifecycle marker of a Recording.
type RecordingStatus string

const (
	// StatusPending is set when the recording is first persisted.
	StatusPending RecordingStatus = "pending"
	// StatusProcessing means the audio is durable and awaits transcription.
	StatusProcessing RecordingStatus = "processing"
	// StatusTranscribing means a transcription attempt is running.
	StatusTranscribing RecordingStatus = "transcribing"
	// StatusGenerating means the transcript is stored and a post is being generated.
	StatusGenerating RecordingStatus = "generating"
	// StatusCompleted means a post was generated from the transcript.
	StatusCompleted RecordingStatus = "completed"
	// StatusFailed is reserved for manual edits; the pipeline never writes it.
	StatusFailed RecordingStatus = "failed"
)

// AllRecordingStatuses lists every known status in lifecycle order.
func AllRecordingStatuses() []RecordingStatus {
	return []RecordingStatus{
		StatusPending,
		StatusProcessing,
		StatusTranscribing,
		StatusGenerating,
		StatusCompleted,
		StatusFailed,
	}
}

// Valid reports whether s is a known status.
func (s RecordingStatus) Valid() bool {
	for _, known := range AllRecordingStatuses() {
		if s == known {
			return true
		}
	}

	return false
}

// ParseRecordingStatus converts a stored string into a RecordingStatus.
func ParseRecordingStatus(raw string) (RecordingStatus, error) {
	s := RecordingStatus(raw)
	if !s.Valid() {
		return "", fmt.Errorf("%w: recording status %q", ErrInvalid, raw)
	}

	return s, nil
}

// Recording is one capture session and the state of its processing.
type Recording struct {
	ID         uuid.UUID       `json:"id"`
	OwnerID    string          `json:"ownerId"`
	Title      string          `json:"title"`
	Duration   int             `json:"duration"`
	AudioURL   *string         `json:"audioUrl,omitempty"`
	Status     RecordingStatus `json:"status"`
	Transcript *string         `json:"transcript,omitempty"`
	Version    int             `json:"version"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// DefaultTitle is used when a recording is saved without a title.
func DefaultTitle(at time.Time) string {
	return "Recording " + at.Format("2006-01-02 15:04")
}

// Validate checks the invariants every persisted recording must hold.
func (r *Recording) Validate() error {
	if r.OwnerID == "" {
		return fmt.Errorf("%w: recording owner is required", ErrInvalid)
	}

	if r.Duration < 0 {
		return fmt.Errorf("%w: recording duration must not be negative", ErrInvalid)
	}

	if !r.Status.Valid() {
		return fmt.Errorf("%w: recording status %q", ErrInvalid, r.Status)
	}

	if r.Status == StatusCompleted && r.Transcript == nil && r.AudioURL != nil {
		return fmt.Errorf("%w: completed recording with audio must have a transcript", ErrInvalid)
	}

	return nil
}

// HasTranscript reports whether a non-empty transcript is stored.
func (r *Recording) HasTranscript() bool {
	return r.Transcript != nil && strings.TrimSpace(*r.Transcript) != ""
}

// Clone returns a deep copy so callers can mutate it without aliasing.
func (r *Recording) Clone() *Recording {
	if r == nil {
		return nil
	}

	cp := *r
	if r.AudioURL != nil {
		u := *r.AudioURL
		cp.AudioURL = &u
	}

	if r.Transcript != nil {
		t := *r.Transcript
		cp.Transcript = &t
	}

	return &cp
}
