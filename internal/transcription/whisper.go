package transcription

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const blobScheme = "whisper-blob://"

// maxFetchBytes caps audio downloaded from a URL before it is sent to
// Whisper, which rejects files above 25MB.
const maxFetchBytes = 25 << 20

// Whisper adapts the synchronous OpenAI transcription endpoint to the job
// API. Each submitted job runs in its own goroutine and is polled from an
// in-process table.
type Whisper struct {
	client     openai.Client
	configured bool
	http       *http.Client
	logger     *slog.Logger

	mu    sync.Mutex
	blobs map[string][]byte
	jobs  map[string]*whisperJob
}

type whisperJob struct {
	Job
	cancel context.CancelFunc
}

// NewWhisper creates a Whisper provider. opts are passed to the OpenAI
// client after the API key.
func NewWhisper(apiKey string, httpClient *http.Client, logger *slog.Logger, opts ...option.RequestOption) *Whisper {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	if logger == nil {
		logger = slog.Default()
	}

	// A failed call is reported once; the stage decides what happens next.
	clientOpts := append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}, opts...)

	return &Whisper{
		client:     openai.NewClient(clientOpts...),
		configured: apiKey != "",
		http:       httpClient,
		logger:     logger,
		blobs:      make(map[string][]byte),
		jobs:       make(map[string]*whisperJob),
	}
}

func (w *Whisper) Name() string { return "whisper" }

func (w *Whisper) Configured() bool { return w.configured }

// Ingest keeps data in memory and returns a handle only this provider
// understands.
func (w *Whisper) Ingest(_ context.Context, data []byte) (string, error) {
	id := uuid.NewString()

	w.mu.Lock()
	w.blobs[id] = data
	w.mu.Unlock()

	return blobScheme + id, nil
}

// SubmitJob starts transcription bound to ctx. Cancelling ctx or calling
// Forget aborts the job.
func (w *Whisper) SubmitJob(ctx context.Context, audioURL, languageHint string) (string, error) {
	id := uuid.NewString()
	jobCtx, cancel := context.WithCancel(ctx)

	w.mu.Lock()
	w.jobs[id] = &whisperJob{Job: Job{ID: id, Status: JobQueued}, cancel: cancel}
	w.mu.Unlock()

	go w.run(jobCtx, id, audioURL, languageHint)

	return id, nil
}

// Forget drops jobID from the table and stops its transcription if it is
// still running. Unknown ids are ignored.
func (w *Whisper) Forget(jobID string) {
	w.mu.Lock()
	job, ok := w.jobs[jobID]
	delete(w.jobs, jobID)
	w.mu.Unlock()

	if ok {
		job.cancel()
	}
}

func (w *Whisper) PollJob(_ context.Context, jobID string) (*Job, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	job, ok := w.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("whisper: unknown job %q", jobID)
	}

	out := job.Job
	if out.Status == JobCompleted || out.Status == JobError {
		delete(w.jobs, jobID)
		job.cancel()
	}

	return &out, nil
}

func (w *Whisper) run(ctx context.Context, id, audioURL, language string) {
	w.setJob(id, func(j *Job) { j.Status = JobProcessing })

	text, err := w.transcribe(ctx, audioURL, language)
	if err != nil {
		w.logger.Debug("whisper job failed", "job_id", id, "error", err)
		w.setJob(id, func(j *Job) {
			j.Status = JobError
			j.Error = err.Error()
		})

		return
	}

	w.setJob(id, func(j *Job) {
		j.Status = JobCompleted
		j.Text = text
	})
}

func (w *Whisper) transcribe(ctx context.Context, audioURL, language string) (string, error) {
	data, err := w.load(ctx, audioURL)
	if err != nil {
		return "", err
	}

	params := openai.AudioTranscriptionNewParams{
		File:  &namedReader{Reader: bytes.NewReader(data), name: "recording.mp3"},
		Model: openai.AudioModelWhisper1,
	}
	if language != "" {
		params.Language = openai.String(language)
	}

	resp, err := w.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("whisper transcription: %w", err)
	}

	return resp.Text, nil
}

func (w *Whisper) load(ctx context.Context, audioURL string) ([]byte, error) {
	if id, ok := strings.CutPrefix(audioURL, blobScheme); ok {
		w.mu.Lock()
		data, found := w.blobs[id]
		delete(w.blobs, id)
		w.mu.Unlock()

		if !found {
			return nil, fmt.Errorf("whisper: unknown blob %q", id)
		}

		return data, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, audioURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build audio request: %w", err)
	}

	resp, err := w.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch audio: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch audio: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}

	if len(data) > maxFetchBytes {
		return nil, fmt.Errorf("audio exceeds %d bytes", maxFetchBytes)
	}

	return data, nil
}

func (w *Whisper) setJob(id string, fn func(*Job)) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if job, ok := w.jobs[id]; ok {
		fn(&job.Job)
	}
}

// namedReader gives the multipart encoder a filename so the API can infer
// the audio format.
type namedReader struct {
	io.Reader
	name string
}

func (n *namedReader) Name() string        { return n.name }
func (n *namedReader) ContentType() string { return "audio/mpeg" }
