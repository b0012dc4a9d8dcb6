// Package transcription turns a stored recording into transcript text.
package transcription

import (
	"context"
	"errors"
	"net/url"
	"time"
)

// JobStatus is the provider-side state of a transcription job.
type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobError      JobStatus = "error"
)

// Job is one poll result.
type Job struct {
	ID     string
	Status JobStatus
	Text   string
	Error  string
}

// Provider is a speech-to-text backend with an asynchronous job API.
type Provider interface {
	Name() string
	// Configured reports whether a credential is present. An unconfigured
	// provider is never called.
	Configured() bool
	// Ingest uploads raw audio and returns a URL the provider can read.
	Ingest(ctx context.Context, data []byte) (string, error)
	SubmitJob(ctx context.Context, audioURL, languageHint string) (string, error)
	PollJob(ctx context.Context, jobID string) (*Job, error)
}

// Forgetter is implemented by providers that keep per-job state locally.
// Forget releases a job that will not be polled again.
type Forgetter interface {
	Forget(jobID string)
}

var (
	errNotConfigured = errors.New("transcription provider not configured")
	errNoAudio       = errors.New("audio reference has neither a reachable URL nor bytes")
	errJobFailed     = errors.New("transcription job failed")
	errPollTimeout   = errors.New("transcription polling timed out")
	errEmptyText     = errors.New("transcription returned empty text")
)

// AudioRef points at the audio to transcribe. URL is preferred when the
// provider can fetch it; otherwise Data is ingested first.
type AudioRef struct {
	URL  string
	Data []byte
}

// ProviderAccessible reports whether URL is an http(s) location a remote
// provider can fetch.
func (r AudioRef) ProviderAccessible() bool {
	if r.URL == "" {
		return false
	}

	u, err := url.Parse(r.URL)
	if err != nil {
		return false
	}

	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// PollPolicy bounds how long a job is polled.
type PollPolicy struct {
	MaxAttempts int
	Interval    time.Duration
	// Sleep waits between polls. It must return early with ctx.Err() when
	// ctx is done.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultPollPolicy polls every 10 seconds, 60 times.
func DefaultPollPolicy() PollPolicy {
	return PollPolicy{
		MaxAttempts: 60,
		Interval:    10 * time.Second,
		Sleep:       SleepContext,
	}
}

func (p PollPolicy) withDefaults() PollPolicy {
	def := DefaultPollPolicy()

	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}

	if p.Sleep == nil {
		p.Sleep = def.Sleep
	}

	return p
}

// SleepContext sleeps for d or until ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
