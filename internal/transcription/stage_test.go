package transcription_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alkime/voicepost/internal/domain"
	"github.com/alkime/voicepost/internal/store"
	"github.com/alkime/voicepost/internal/transcription"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// scriptedProvider returns poll results in order, repeating the last one.
type scriptedProvider struct {
	configured bool
	ingestErr  error
	submitErr  error
	polls      []*transcription.Job
	pollErr    error

	ingested  atomic.Int32
	submitted atomic.Int32
	polled    atomic.Int32
	lastURL   atomic.Value
}

func (p *scriptedProvider) Name() string     { return "scripted" }
func (p *scriptedProvider) Configured() bool { return p.configured }

func (p *scriptedProvider) Ingest(_ context.Context, _ []byte) (string, error) {
	p.ingested.Add(1)
	if p.ingestErr != nil {
		return "", p.ingestErr
	}

	return "https://provider.example/upload/1", nil
}

func (p *scriptedProvider) SubmitJob(_ context.Context, audioURL, _ string) (string, error) {
	p.submitted.Add(1)
	p.lastURL.Store(audioURL)

	if p.submitErr != nil {
		return "", p.submitErr
	}

	return "job-1", nil
}

func (p *scriptedProvider) PollJob(_ context.Context, _ string) (*transcription.Job, error) {
	n := int(p.polled.Add(1))
	if p.pollErr != nil {
		return nil, p.pollErr
	}

	idx := min(n-1, len(p.polls)-1)

	return p.polls[idx], nil
}

// forgettingProvider records which jobs the stage released.
type forgettingProvider struct {
	*scriptedProvider

	mu        sync.Mutex
	forgotten []string
}

func (p *forgettingProvider) Forget(jobID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.forgotten = append(p.forgotten, jobID)
}

func (p *forgettingProvider) released() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.forgotten
}

// countingStore counts recording updates.
type countingStore struct {
	store.Store
	updates   atomic.Int32
	updateErr error
}

func (s *countingStore) UpdateRecording(ctx context.Context, rec *domain.Recording) error {
	s.updates.Add(1)
	if s.updateErr != nil {
		return s.updateErr
	}

	return s.Store.UpdateRecording(ctx, rec)
}

func noSleep() transcription.PollPolicy {
	return transcription.PollPolicy{
		MaxAttempts: 5,
		Interval:    time.Second,
		Sleep:       func(ctx context.Context, _ time.Duration) error { return ctx.Err() },
	}
}

func seedRecording(t *testing.T, st store.Store) *domain.Recording {
	t.Helper()

	audioURL := "https://cdn.example/recordings/u1/a.mp3"
	rec := &domain.Recording{
		OwnerID:  "u1",
		Title:    "Voice note",
		Duration: 5,
		AudioURL: &audioURL,
		Status:   domain.StatusTranscribing,
	}
	require.NoError(t, st.CreateRecording(context.Background(), rec))

	return rec
}

func TestStage_ProviderTranscript(t *testing.T) {
	t.Parallel()

	st := &countingStore{Store: store.NewMemoryStore()}
	rec := seedRecording(t, st)

	provider := &scriptedProvider{
		configured: true,
		polls: []*transcription.Job{
			{ID: "job-1", Status: transcription.JobQueued},
			{ID: "job-1", Status: transcription.JobProcessing},
			{ID: "job-1", Status: transcription.JobCompleted, Text: "real words"},
		},
	}

	stage := transcription.NewStage(provider, st, noSleep(), testLogger())

	res, err := stage.Transcribe(context.Background(),
		transcription.AudioRef{URL: *rec.AudioURL}, rec.ID)
	require.NoError(t, err)

	assert.Equal(t, "real words", res.Text)
	assert.Equal(t, transcription.SourceProvider, res.Source)
	assert.Equal(t, "job-1", res.JobID)
	assert.EqualValues(t, 0, provider.ingested.Load())
	assert.EqualValues(t, 3, provider.polled.Load())
	assert.Equal(t, *rec.AudioURL, provider.lastURL.Load())
	assert.EqualValues(t, 1, st.updates.Load())

	got, err := st.GetRecording(context.Background(), rec.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Transcript)
	assert.Equal(t, "real words", *got.Transcript)
	assert.Equal(t, domain.StatusGenerating, got.Status)
}

func TestStage_IngestsLocalAudio(t *testing.T) {
	t.Parallel()

	st := store.NewMemoryStore()
	rec := seedRecording(t, st)

	provider := &scriptedProvider{
		configured: true,
		polls:      []*transcription.Job{{Status: transcription.JobCompleted, Text: "hello"}},
	}

	stage := transcription.NewStage(provider, st, noSleep(), testLogger())

	res, err := stage.Transcribe(context.Background(),
		transcription.AudioRef{URL: "file:///tmp/a.mp3", Data: []byte("mp3")}, rec.ID)
	require.NoError(t, err)

	assert.Equal(t, "hello", res.Text)
	assert.EqualValues(t, 1, provider.ingested.Load())
	assert.Equal(t, "https://provider.example/upload/1", provider.lastURL.Load())
}

func TestStage_FallbackPaths(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		provider transcription.Provider
		ref      transcription.AudioRef
	}{
		{
			name:     "no provider",
			provider: nil,
			ref:      transcription.AudioRef{URL: "https://cdn.example/a.mp3"},
		},
		{
			name:     "missing credential",
			provider: &scriptedProvider{configured: false},
			ref:      transcription.AudioRef{URL: "https://cdn.example/a.mp3"},
		},
		{
			name:     "ingest fails",
			provider: &scriptedProvider{configured: true, ingestErr: errors.New("503")},
			ref:      transcription.AudioRef{Data: []byte("mp3")},
		},
		{
			name:     "no audio at all",
			provider: &scriptedProvider{configured: true},
			ref:      transcription.AudioRef{},
		},
		{
			name:     "submit fails",
			provider: &scriptedProvider{configured: true, submitErr: errors.New("400 bad request")},
			ref:      transcription.AudioRef{URL: "https://cdn.example/a.mp3"},
		},
		{
			name:     "poll fails",
			provider: &scriptedProvider{configured: true, pollErr: errors.New("connection reset")},
			ref:      transcription.AudioRef{URL: "https://cdn.example/a.mp3"},
		},
		{
			name: "job error",
			provider: &scriptedProvider{configured: true, polls: []*transcription.Job{
				{Status: transcription.JobError, Error: "unsupported codec"},
			}},
			ref: transcription.AudioRef{URL: "https://cdn.example/a.mp3"},
		},
		{
			name: "poll timeout",
			provider: &scriptedProvider{configured: true, polls: []*transcription.Job{
				{Status: transcription.JobProcessing},
			}},
			ref: transcription.AudioRef{URL: "https://cdn.example/a.mp3"},
		},
		{
			name: "empty text",
			provider: &scriptedProvider{configured: true, polls: []*transcription.Job{
				{Status: transcription.JobCompleted, Text: "  "},
			}},
			ref: transcription.AudioRef{URL: "https://cdn.example/a.mp3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			st := &countingStore{Store: store.NewMemoryStore()}
			rec := seedRecording(t, st)

			stage := transcription.NewStage(tt.provider, st, noSleep(), testLogger())

			res, err := stage.Transcribe(context.Background(), tt.ref, rec.ID)
			require.NoError(t, err)

			assert.Equal(t, transcription.MockTranscript, res.Text)
			assert.Equal(t, transcription.SourceFallback, res.Source)
			assert.NotEmpty(t, res.FallbackReason)
			assert.EqualValues(t, 1, st.updates.Load())

			got, err := st.GetRecording(context.Background(), rec.ID)
			require.NoError(t, err)
			require.NotNil(t, got.Transcript)
			assert.Equal(t, transcription.MockTranscript, *got.Transcript)
		})
	}
}

func TestStage_FallbackIsDeterministic(t *testing.T) {
	t.Parallel()

	var texts []string

	for range 2 {
		st := store.NewMemoryStore()
		rec := seedRecording(t, st)

		stage := transcription.NewStage(nil, st, noSleep(), testLogger())
		res, err := stage.Transcribe(context.Background(), transcription.AudioRef{}, rec.ID)
		require.NoError(t, err)

		texts = append(texts, res.Text)
	}

	assert.Equal(t, texts[0], texts[1])
	assert.Contains(t, texts[0], "effective leadership")
}

func TestStage_PollTimeoutUsesMaxAttempts(t *testing.T) {
	t.Parallel()

	st := store.NewMemoryStore()
	rec := seedRecording(t, st)

	var slept []time.Duration

	policy := transcription.PollPolicy{
		MaxAttempts: 3,
		Interval:    10 * time.Second,
		Sleep: func(_ context.Context, d time.Duration) error {
			slept = append(slept, d)
			return nil
		},
	}

	provider := &scriptedProvider{configured: true, polls: []*transcription.Job{
		{Status: transcription.JobQueued},
	}}

	stage := transcription.NewStage(provider, st, policy, testLogger())

	res, err := stage.Transcribe(context.Background(),
		transcription.AudioRef{URL: "https://cdn.example/a.mp3"}, rec.ID)
	require.NoError(t, err)

	assert.Equal(t, transcription.SourceFallback, res.Source)
	assert.Contains(t, res.FallbackReason, "timed out")
	assert.EqualValues(t, 3, provider.polled.Load())
	assert.Equal(t, []time.Duration{10 * time.Second, 10 * time.Second, 10 * time.Second}, slept)
}

func TestStage_ReleasesJobs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		polls  []*transcription.Job
		cancel bool
	}{
		{"after poll timeout", []*transcription.Job{{Status: transcription.JobProcessing}}, false},
		{"after completion", []*transcription.Job{{Status: transcription.JobCompleted, Text: "hi"}}, false},
		{"after cancellation", []*transcription.Job{{Status: transcription.JobQueued}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			st := store.NewMemoryStore()
			rec := seedRecording(t, st)

			provider := &forgettingProvider{
				scriptedProvider: &scriptedProvider{configured: true, polls: tt.polls},
			}

			ctx, cancel := context.WithCancel(context.Background())
			t.Cleanup(cancel)

			policy := noSleep()
			if tt.cancel {
				policy.Sleep = func(ctx context.Context, _ time.Duration) error {
					cancel()
					return ctx.Err()
				}
			}

			stage := transcription.NewStage(provider, st, policy, testLogger())
			_, _ = stage.Transcribe(ctx, transcription.AudioRef{URL: "https://cdn.example/a.mp3"}, rec.ID)

			assert.Equal(t, []string{"job-1"}, provider.released())
		})
	}
}

func TestStage_PersistenceError(t *testing.T) {
	t.Parallel()

	t.Run("update fails", func(t *testing.T) {
		t.Parallel()

		st := &countingStore{Store: store.NewMemoryStore(), updateErr: errors.New("disk full")}
		rec := seedRecording(t, st)

		stage := transcription.NewStage(nil, st, noSleep(), testLogger())

		res, err := stage.Transcribe(context.Background(), transcription.AudioRef{}, rec.ID)
		require.ErrorIs(t, err, transcription.ErrPersistence)
		assert.Nil(t, res)
		assert.EqualValues(t, 1, st.updates.Load())
	})

	t.Run("recording missing", func(t *testing.T) {
		t.Parallel()

		stage := transcription.NewStage(nil, store.NewMemoryStore(), noSleep(), testLogger())

		_, err := stage.Transcribe(context.Background(), transcription.AudioRef{}, uuid.New())
		require.ErrorIs(t, err, transcription.ErrPersistence)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestStage_Cancelled(t *testing.T) {
	t.Parallel()

	st := &countingStore{Store: store.NewMemoryStore()}
	rec := seedRecording(t, st)

	ctx, cancel := context.WithCancel(context.Background())

	provider := &scriptedProvider{configured: true, polls: []*transcription.Job{
		{Status: transcription.JobProcessing},
	}}

	policy := transcription.PollPolicy{
		MaxAttempts: 10,
		Interval:    time.Second,
		Sleep: func(ctx context.Context, _ time.Duration) error {
			cancel()
			return ctx.Err()
		},
	}

	stage := transcription.NewStage(provider, st, policy, testLogger())

	res, err := stage.Transcribe(ctx, transcription.AudioRef{URL: "https://cdn.example/a.mp3"}, rec.ID)
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, res)
	assert.EqualValues(t, 0, st.updates.Load())

	got, err := st.GetRecording(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Transcript)
}

func TestAudioRef_ProviderAccessible(t *testing.T) {
	t.Parallel()

	tests := []struct {
		url  string
		want bool
	}{
		{"https://cdn.example/a.mp3", true},
		{"http://localhost:9000/bucket/a.mp3", true},
		{"file:///tmp/a.mp3", false},
		{"data:audio/mpeg;base64,AAAA", false},
		{"blob:http://localhost/123", false},
		{"", false},
		{"https://", false},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, transcription.AudioRef{URL: tt.url}.ProviderAccessible())
		})
	}
}

func TestSleepContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := transcription.SleepContext(ctx, time.Hour)
	require.ErrorIs(t, err, context.Canceled)

	require.NoError(t, transcription.SleepContext(context.Background(), time.Millisecond))
}
