package transcription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alkime/voicepost/internal/domain"
	"github.com/alkime/voicepost/internal/store"
	"github.com/google/uuid"
)

// ErrPersistence is the only error Transcribe reports for a finished
// attempt: the transcript could not be saved.
var ErrPersistence = errors.New("failed to persist transcript")

// DefaultLanguage is the language hint sent with every job.
const DefaultLanguage = "en"

// Source says which path produced a transcript.
type Source string

const (
	SourceProvider Source = "provider"
	SourceFallback Source = "fallback"
)

// Result is a persisted transcript.
type Result struct {
	Text   string
	Source Source
	JobID  string
	// FallbackReason is set when Source is SourceFallback.
	FallbackReason string
}

// Stage runs one transcription attempt per call and stores the outcome on
// the recording. Provider problems of any kind degrade to MockTranscript.
type Stage struct {
	provider Provider
	recs     store.Recordings
	policy   PollPolicy
	language string
	logger   *slog.Logger
}

// NewStage creates a transcription stage. provider may be nil, which always
// selects the fallback transcript.
func NewStage(provider Provider, recs store.Recordings, policy PollPolicy, logger *slog.Logger) *Stage {
	if logger == nil {
		logger = slog.Default()
	}

	return &Stage{
		provider: provider,
		recs:     recs,
		policy:   policy.withDefaults(),
		language: DefaultLanguage,
		logger:   logger,
	}
}

// Transcribe produces a transcript for ref and writes it to the recording
// exactly once. It returns ErrPersistence if that write fails, or ctx.Err()
// if ctx is cancelled before a transcript is chosen.
func (s *Stage) Transcribe(ctx context.Context, ref AudioRef, recordingID uuid.UUID) (*Result, error) {
	logger := s.logger.With("recording_id", recordingID)

	res := &Result{Source: SourceProvider}

	text, jobID, err := s.attempt(ctx, ref, logger)
	res.JobID = jobID

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		logger.Warn("transcription unavailable, using fallback transcript", "reason", err)

		text = MockTranscript
		res.Source = SourceFallback
		res.FallbackReason = err.Error()
	}

	res.Text = text

	if err := s.persist(ctx, recordingID, text); err != nil {
		return nil, err
	}

	logger.Info("transcript saved", "source", res.Source, "job_id", jobID, "chars", len(text))

	return res, nil
}

func (s *Stage) attempt(ctx context.Context, ref AudioRef, logger *slog.Logger) (string, string, error) {
	if s.provider == nil || !s.provider.Configured() {
		return "", "", errNotConfigured
	}

	audioURL := ref.URL

	if !ref.ProviderAccessible() {
		if len(ref.Data) == 0 {
			return "", "", errNoAudio
		}

		ingested, err := s.provider.Ingest(ctx, ref.Data)
		if err != nil {
			return "", "", fmt.Errorf("ingest audio: %w", err)
		}

		audioURL = ingested
	}

	jobID, err := s.provider.SubmitJob(ctx, audioURL, s.language)
	if err != nil {
		return "", "", fmt.Errorf("submit job: %w", err)
	}

	logger.Debug("transcription job submitted", "provider", s.provider.Name(), "job_id", jobID)

	if f, ok := s.provider.(Forgetter); ok {
		defer f.Forget(jobID)
	}

	for attempt := 1; attempt <= s.policy.MaxAttempts; attempt++ {
		if err := s.policy.Sleep(ctx, s.policy.Interval); err != nil {
			return "", jobID, err
		}

		job, err := s.provider.PollJob(ctx, jobID)
		if err != nil {
			return "", jobID, fmt.Errorf("poll job: %w", err)
		}

		switch job.Status {
		case JobCompleted:
			if strings.TrimSpace(job.Text) == "" {
				return "", jobID, errEmptyText
			}

			return job.Text, jobID, nil

		case JobError:
			return "", jobID, fmt.Errorf("%w: %s", errJobFailed, job.Error)

		case JobQueued, JobProcessing:
			logger.Debug("transcription pending", "job_id", jobID, "status", job.Status, "attempt", attempt)

		default:
			return "", jobID, fmt.Errorf("%w: unknown status %q", errJobFailed, job.Status)
		}
	}

	return "", jobID, fmt.Errorf("%w after %d attempts", errPollTimeout, s.policy.MaxAttempts)
}

func (s *Stage) persist(ctx context.Context, recordingID uuid.UUID, text string) error {
	rec, err := s.recs.GetRecording(ctx, recordingID)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	rec.Transcript = &text

	switch rec.Status {
	case domain.StatusPending, domain.StatusProcessing, domain.StatusTranscribing:
		rec.Status = domain.StatusGenerating
	}

	if err := s.recs.UpdateRecording(ctx, rec); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	return nil
}
