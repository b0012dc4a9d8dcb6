package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alkime/voicepost/internal/domain"
	"github.com/alkime/voicepost/internal/store"
	"github.com/alkime/voicepost/internal/transcription"
	"github.com/alkime/voicepost/internal/upload"
	"github.com/alkime/voicepost/pkg/channels"
)

// DefaultEventTimeout bounds how long a slow subscriber can hold up the
// event stream before an event is dropped for it.
const DefaultEventTimeout = time.Second

// Orchestrator sequences the stages of a run.
type Orchestrator struct {
	store          store.Store
	uploader       Uploader
	newTranscriber TranscriberFactory
	newGenerator   GeneratorFactory
	runs           *Registry
	logger         *slog.Logger

	// EventTimeout is the per-subscriber send timeout.
	EventTimeout time.Duration

	now func() time.Time
}

// New creates an orchestrator. Stages are built per run from the factories
// so every stage writes through that run's cancellation guard.
func New(
	st store.Store,
	uploader Uploader,
	transcriber TranscriberFactory,
	generator GeneratorFactory,
	logger *slog.Logger,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator{
		store:          st,
		uploader:       uploader,
		newTranscriber: transcriber,
		newGenerator:   generator,
		runs:           NewRegistry(),
		logger:         logger,
		EventTimeout:   DefaultEventTimeout,
		now:            time.Now,
	}
}

// Runs returns the registry of runs started by this orchestrator.
func (o *Orchestrator) Runs() *Registry {
	return o.runs
}

// Run starts a run and waits for it. Cancelling ctx cancels the run.
func (o *Orchestrator) Run(ctx context.Context, draft Draft, subscribers ...chan<- Event) (*Result, error) {
	run, err := o.Start(ctx, draft, subscribers...)
	if err != nil {
		return nil, err
	}

	return run.Wait(context.Background())
}

// Start persists the recording and processes it in the background. The run
// is derived from ctx: cancelling ctx cancels the run. Subscribers receive
// every event up to and including the terminal one; they are not closed.
func (o *Orchestrator) Start(ctx context.Context, draft Draft, subscribers ...chan<- Event) (*Run, error) {
	if draft.OwnerID == "" {
		return nil, &StageError{Stage: StageUpload, Err: upload.ErrAuthRequired}
	}

	if draft.Audio == nil || draft.Audio.Len() == 0 {
		return nil, fmt.Errorf("%w: no audio", ErrInvalidDraft)
	}

	platform, err := domain.ParsePlatform(string(draft.Platform))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDraft, err)
	}

	draft.Platform = platform

	title := strings.TrimSpace(draft.Title)
	if title == "" {
		title = domain.DefaultTitle(o.now())
	}

	rec := &domain.Recording{
		OwnerID:  draft.OwnerID,
		Title:    title,
		Duration: max(draft.Duration, draft.Audio.Duration, 0),
		Status:   domain.StatusPending,
	}

	events, err := o.openStream(subscribers)
	if err != nil {
		return nil, err
	}

	if err := o.store.CreateRecording(ctx, rec); err != nil {
		events.close()
		return nil, &StageError{Stage: StageUpload, Err: fmt.Errorf("%w: %w", ErrPersistence, err)}
	}

	runCtx, cancel := context.WithCancel(ctx)
	run := newRun(rec.ID, draft.OwnerID, cancel, o.now())
	o.runs.add(run)

	logger := o.logger.With("run_id", run.ID, "recording_id", rec.ID)
	logger.Info("pipeline started", "owner_id", draft.OwnerID, "bytes", draft.Audio.Len())

	go o.execute(runCtx, run, rec, draft, events, logger)

	return run, nil
}

func (o *Orchestrator) execute(
	ctx context.Context,
	run *Run,
	rec *domain.Recording,
	draft Draft,
	events *eventStream,
	logger *slog.Logger,
) {
	guard := newGuardedStore(o.store, ctx)

	emit := func(ev Event) {
		ev.RunID = run.ID
		ev.RecordingID = rec.ID
		ev.At = o.now()
		events.send(ev)
	}

	enter := func(stage Stage) {
		run.advance(stage)
		logger.Debug("stage started", "stage", stage)
		emit(Event{Kind: EventProgress, Stage: stage, Progress: stage.Progress()})
	}

	fail := func(stage Stage, err error) {
		state := RunFailed
		if errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled) || ctx.Err() != nil {
			state = RunCancelled
			err = fmt.Errorf("%w: %w", ErrCancelled, err)
		}

		stageErr := &StageError{Stage: stage, Err: err}
		logger.Warn("pipeline stopped", "stage", stage, "state", state, "error", err)

		emit(Event{Kind: EventFailed, Stage: stage, Progress: stage.Progress(), Error: stageErr.Error()})
		events.close()
		run.finish(state, nil, stageErr, o.now())
	}

	// stageDone reports a cancellation that landed while the stage's call
	// was in flight.
	stageDone := func(stage Stage) bool {
		if ctx.Err() != nil {
			fail(stage, ErrCancelled)
			return false
		}

		return true
	}

	enter(StageUpload)

	uploaded, err := o.uploader.Upload(ctx, draft.Audio, draft.OwnerID)
	if err != nil {
		fail(StageUpload, err)
		return
	}

	if !stageDone(StageUpload) {
		return
	}

	if err := o.setRecording(ctx, guard, rec, func(r *domain.Recording) {
		r.AudioURL = &uploaded.DurableURL
		r.Status = domain.StatusProcessing
	}); err != nil {
		fail(StageUpload, err)
		return
	}

	enter(StageTranscribe)

	if err := o.setRecording(ctx, guard, rec, func(r *domain.Recording) {
		r.Status = domain.StatusTranscribing
	}); err != nil {
		fail(StageTranscribe, err)
		return
	}

	ref := transcription.AudioRef{URL: uploaded.DurableURL, Data: draft.Audio.Data}

	transcript, err := o.newTranscriber(guard).Transcribe(ctx, ref, rec.ID)
	if err != nil {
		fail(StageTranscribe, err)
		return
	}

	if !stageDone(StageTranscribe) {
		return
	}

	enter(StageGenerate)

	generated, err := o.newGenerator(guard, guard).Generate(ctx, rec.ID, draft.OwnerID, draft.Platform)
	if err != nil {
		fail(StageGenerate, err)
		return
	}

	if !stageDone(StageGenerate) {
		return
	}

	if err := o.setRecording(ctx, guard, rec, func(r *domain.Recording) {
		r.Status = domain.StatusCompleted
	}); err != nil {
		fail(StageGenerate, err)
		return
	}

	res := &Result{
		RecordingID:      rec.ID,
		PostID:           generated.PostID,
		AudioURL:         uploaded.DurableURL,
		TranscriptSource: transcript.Source,
		Outcome:          string(generated.Outcome),
	}

	logger.Info("pipeline finished",
		"post_id", res.PostID,
		"transcript_source", res.TranscriptSource,
		"outcome", res.Outcome)

	postID := res.PostID
	emit(Event{Kind: EventDone, Stage: StageGenerate, Progress: ProgressDone, PostID: &postID})
	events.close()
	run.finish(RunDone, res, nil, o.now())
}

// setRecording applies fn to the latest stored copy of the recording and
// writes it back under the version check.
func (o *Orchestrator) setRecording(
	ctx context.Context,
	st store.Store,
	rec *domain.Recording,
	fn func(*domain.Recording),
) error {
	current, err := st.GetRecording(ctx, rec.ID)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	fn(current)

	if err := st.UpdateRecording(ctx, current); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	*rec = *current

	return nil
}

// eventStream fans run events out to subscribers through a Broadcaster.
type eventStream struct {
	broadcaster *channels.Broadcaster[Event]
}

func (o *Orchestrator) openStream(subscribers []chan<- Event) (*eventStream, error) {
	if len(subscribers) == 0 {
		return &eventStream{}, nil
	}

	b := channels.NewBroadcaster[Event]()

	for _, ch := range subscribers {
		if err := b.Subscribe(ch, o.EventTimeout); err != nil {
			return nil, fmt.Errorf("subscribe to run events: %w", err)
		}
	}

	if err := b.Start(len(subscribers) * 2); err != nil {
		return nil, fmt.Errorf("start run events: %w", err)
	}

	return &eventStream{broadcaster: b}, nil
}

func (s *eventStream) send(ev Event) {
	if s.broadcaster != nil {
		_ = s.broadcaster.Publish(ev)
	}
}

// close flushes pending events to subscribers and stops the broadcaster.
func (s *eventStream) close() {
	if s.broadcaster != nil {
		s.broadcaster.Close()
	}
}
