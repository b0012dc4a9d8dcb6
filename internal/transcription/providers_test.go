package transcription_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alkime/voicepost/internal/store"
	"github.com/alkime/voicepost/internal/transcription"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAssemblyAIServer(t *testing.T, polls []string) (*httptest.Server, func() []string) {
	t.Helper()

	var (
		mu        sync.Mutex
		calls     []string
		pollCount int
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()

		calls = append(calls, r.Method+" "+r.URL.Path)

		if r.Header.Get("Authorization") != "aai-key" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"error":"bad key"}`)

			return
		}

		w.Header().Set("Content-Type", "application/json")

		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v2/upload":
			assert.Equal(t, "application/octet-stream", r.Header.Get("Content-Type"))
			body, _ := io.ReadAll(r.Body)
			assert.Equal(t, "mp3-bytes", string(body))
			_, _ = io.WriteString(w, `{"upload_url":"https://cdn.assemblyai.test/u/1"}`)

		case r.Method == http.MethodPost && r.URL.Path == "/v2/transcript":
			var req map[string]string
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "https://cdn.assemblyai.test/u/1", req["audio_url"])
			assert.Equal(t, "en", req["language_code"])
			_, _ = io.WriteString(w, `{"id":"tx-1","status":"queued"}`)

		case r.Method == http.MethodGet && r.URL.Path == "/v2/transcript/tx-1":
			status := polls[min(pollCount, len(polls)-1)]
			pollCount++

			switch status {
			case "completed":
				_, _ = io.WriteString(w, `{"id":"tx-1","status":"completed","text":"hello from assembly"}`)
			case "error":
				_, _ = io.WriteString(w, `{"id":"tx-1","status":"error","text":null,"error":"audio too short"}`)
			default:
				_, _ = io.WriteString(w, `{"id":"tx-1","status":"`+status+`","text":null}`)
			}

		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)

	return srv, func() []string {
		mu.Lock()
		defer mu.Unlock()

		return append([]string(nil), calls...)
	}
}

func TestAssemblyAI_FullFlow(t *testing.T) {
	t.Parallel()

	srv, calls := newAssemblyAIServer(t, []string{"queued", "processing", "completed"})
	provider := transcription.NewAssemblyAI("aai-key", srv.URL, srv.Client())

	st := store.NewMemoryStore()
	rec := seedRecording(t, st)

	stage := transcription.NewStage(provider, st, noSleep(), testLogger())

	res, err := stage.Transcribe(context.Background(),
		transcription.AudioRef{Data: []byte("mp3-bytes")}, rec.ID)
	require.NoError(t, err)

	assert.Equal(t, "hello from assembly", res.Text)
	assert.Equal(t, transcription.SourceProvider, res.Source)
	assert.Equal(t, "tx-1", res.JobID)
	assert.Equal(t, []string{
		"POST /v2/upload",
		"POST /v2/transcript",
		"GET /v2/transcript/tx-1",
		"GET /v2/transcript/tx-1",
		"GET /v2/transcript/tx-1",
	}, calls())
}

func TestAssemblyAI_JobError(t *testing.T) {
	t.Parallel()

	srv, _ := newAssemblyAIServer(t, []string{"error"})
	provider := transcription.NewAssemblyAI("aai-key", srv.URL, srv.Client())

	job, err := provider.PollJob(context.Background(), "tx-1")
	require.NoError(t, err)
	assert.Equal(t, transcription.JobError, job.Status)
	assert.Equal(t, "audio too short", job.Error)
	assert.Empty(t, job.Text)
}

func TestAssemblyAI_BadKey(t *testing.T) {
	t.Parallel()

	srv, _ := newAssemblyAIServer(t, []string{"completed"})
	provider := transcription.NewAssemblyAI("wrong", srv.URL, srv.Client())

	_, err := provider.SubmitJob(context.Background(), "https://cdn.example/a.mp3", "en")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
	assert.Contains(t, err.Error(), "bad key")
}

func TestAssemblyAI_Configured(t *testing.T) {
	t.Parallel()

	assert.False(t, transcription.NewAssemblyAI("", "", nil).Configured())
	assert.True(t, transcription.NewAssemblyAI("k", "", nil).Configured())
	assert.Equal(t, "assemblyai", transcription.NewAssemblyAI("k", "", nil).Name())
}

func TestWhisper_JobLifecycle(t *testing.T) {
	t.Parallel()

	var gotFile atomic.Bool

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/transcriptions" {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		assert.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "whisper-1", r.FormValue("model"))
		assert.Equal(t, "en", r.FormValue("language"))

		_, header, err := r.FormFile("file")
		if assert.NoError(t, err) {
			gotFile.Store(true)
			assert.Equal(t, "recording.mp3", header.Filename)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"text":"whispered words"}`)
	}))
	t.Cleanup(srv.Close)

	provider := transcription.NewWhisper("sk-test", srv.Client(), testLogger(),
		whisperBaseURL(srv.URL))

	ctx := context.Background()

	ref, err := provider.Ingest(ctx, []byte("mp3-bytes"))
	require.NoError(t, err)

	jobID, err := provider.SubmitJob(ctx, ref, "en")
	require.NoError(t, err)

	var job *transcription.Job

	require.Eventually(t, func() bool {
		got, pollErr := provider.PollJob(ctx, jobID)
		if pollErr != nil {
			return false
		}

		job = got

		return job.Status == transcription.JobCompleted || job.Status == transcription.JobError
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, transcription.JobCompleted, job.Status, job.Error)
	assert.Equal(t, "whispered words", job.Text)
	assert.True(t, gotFile.Load())

	_, err = provider.PollJob(ctx, jobID)
	require.Error(t, err, "terminal jobs are removed after they are reported")
}

func TestWhisper_FetchFailure(t *testing.T) {
	t.Parallel()

	audio := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	t.Cleanup(audio.Close)

	provider := transcription.NewWhisper("sk-test", audio.Client(), testLogger(),
		whisperBaseURL(audio.URL))

	ctx := context.Background()

	jobID, err := provider.SubmitJob(ctx, audio.URL+"/a.mp3", "en")
	require.NoError(t, err)

	var job *transcription.Job

	require.Eventually(t, func() bool {
		got, pollErr := provider.PollJob(ctx, jobID)
		if pollErr != nil {
			return false
		}

		job = got

		return job.Status == transcription.JobError
	}, 5*time.Second, 10*time.Millisecond)

	assert.Contains(t, job.Error, "status 403")
}

func TestWhisper_UnknownJob(t *testing.T) {
	t.Parallel()

	provider := transcription.NewWhisper("", nil, testLogger())
	assert.False(t, provider.Configured())

	_, err := provider.PollJob(context.Background(), "nope")
	require.Error(t, err)
}

func TestWhisper_AbandonedJobIsReleased(t *testing.T) {
	t.Parallel()

	reached := make(chan struct{})
	aborted := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		close(reached)
		<-r.Context().Done()
		close(aborted)
	}))
	t.Cleanup(srv.Close)

	provider := transcription.NewWhisper("sk-test", srv.Client(), testLogger(), whisperBaseURL(srv.URL))

	st := store.NewMemoryStore()
	rec := seedRecording(t, st)

	// Polls only start once the upload is in flight, so the job is still
	// processing when the stage gives up.
	policy := transcription.PollPolicy{
		MaxAttempts: 2,
		Interval:    time.Millisecond,
		Sleep: func(ctx context.Context, _ time.Duration) error {
			select {
			case <-reached:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	}

	stage := transcription.NewStage(provider, st, policy, testLogger())

	res, err := stage.Transcribe(context.Background(), transcription.AudioRef{Data: []byte("mp3")}, rec.ID)
	require.NoError(t, err)
	require.Equal(t, transcription.SourceFallback, res.Source)

	select {
	case <-aborted:
	case <-time.After(5 * time.Second):
		t.Fatal("whisper request kept running after the stage gave up")
	}

	_, err = provider.PollJob(context.Background(), res.JobID)
	require.ErrorContains(t, err, "unknown job", "the job table no longer holds the abandoned job")
}

func TestWhisper_NoAutomaticRetry(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	provider := transcription.NewWhisper("sk-test", srv.Client(), testLogger(), whisperBaseURL(srv.URL))

	ctx := context.Background()

	ref, err := provider.Ingest(ctx, []byte("mp3"))
	require.NoError(t, err)

	jobID, err := provider.SubmitJob(ctx, ref, "")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		job, pollErr := provider.PollJob(ctx, jobID)
		return pollErr == nil && job.Status == transcription.JobError
	}, 5*time.Second, 10*time.Millisecond)

	assert.EqualValues(t, 1, calls.Load())
}

func TestWhisper_ForgetUnknownJob(t *testing.T) {
	t.Parallel()

	provider := transcription.NewWhisper("sk-test", nil, testLogger())
	assert.NotPanics(t, func() { provider.Forget("missing") })
}
