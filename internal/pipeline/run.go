package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RunState is the lifecycle of a Run.
type RunState string

const (
	RunRunning   RunState = "running"
	RunDone      RunState = "done"
	RunFailed    RunState = "failed"
	RunCancelled RunState = "cancelled"
)

// Snapshot is a point-in-time view of a run.
type Snapshot struct {
	RunID       uuid.UUID  `json:"runId"`
	RecordingID uuid.UUID  `json:"recordingId"`
	OwnerID     string     `json:"ownerId"`
	State       RunState   `json:"state"`
	Stage       Stage      `json:"stage,omitempty"`
	Progress    int        `json:"progress"`
	PostID      *uuid.UUID `json:"postId,omitempty"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"startedAt"`
	FinishedAt  *time.Time `json:"finishedAt,omitempty"`
}

// Run is one in-flight or finished pipeline execution.
type Run struct {
	ID uuid.UUID

	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	snap   Snapshot
	result *Result
	err    error
}

func newRun(recordingID uuid.UUID, ownerID string, cancel context.CancelFunc, now time.Time) *Run {
	id := uuid.New()

	return &Run{
		ID:     id,
		cancel: cancel,
		done:   make(chan struct{}),
		snap: Snapshot{
			RunID:       id,
			RecordingID: recordingID,
			OwnerID:     ownerID,
			State:       RunRunning,
			StartedAt:   now,
		},
	}
}

// Cancel asks the run to stop. Results that arrive afterwards are not
// persisted. Safe to call more than once and after the run finished.
func (r *Run) Cancel() {
	r.cancel()
}

// Done is closed when the run has finished and its event stream is drained.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the run finishes or ctx is done.
func (r *Run) Wait(ctx context.Context) (*Result, error) {
	select {
	case <-r.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return r.result, r.err
}

// Snapshot returns the current state of the run.
func (r *Run) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := r.snap
	if snap.PostID != nil {
		id := *snap.PostID
		snap.PostID = &id
	}

	return snap
}

func (r *Run) advance(stage Stage) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.snap.Stage = stage
	r.snap.Progress = stage.Progress()
}

func (r *Run) finish(state RunState, res *Result, err error, now time.Time) {
	r.mu.Lock()

	r.snap.State = state
	r.snap.FinishedAt = &now
	r.result = res
	r.err = err

	if res != nil {
		postID := res.PostID
		r.snap.PostID = &postID
		r.snap.Progress = ProgressDone
	}

	if err != nil {
		r.snap.Error = err.Error()
	}

	r.mu.Unlock()

	r.cancel()
	close(r.done)
}
