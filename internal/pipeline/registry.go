package pipeline

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Registry tracks runs by id so they can be inspected or cancelled from
// outside the goroutine that started them.
type Registry struct {
	mu   sync.RWMutex
	runs map[uuid.UUID]*Run
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{runs: make(map[uuid.UUID]*Run)}
}

func (r *Registry) add(run *Run) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.runs[run.ID] = run
}

// Get returns the run with id.
func (r *Registry) Get(id uuid.UUID) (*Run, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	run, ok := r.runs[id]

	return run, ok
}

// List returns snapshots of ownerID's runs, newest first.
func (r *Registry) List(ownerID string) []Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Snapshot

	for _, run := range r.runs {
		snap := run.Snapshot()
		if snap.OwnerID == ownerID {
			out = append(out, snap)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})

	return out
}

// Prune forgets runs that finished before cutoff and returns how many were
// removed. Running runs are always kept.
func (r *Registry) Prune(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0

	for id, run := range r.runs {
		snap := run.Snapshot()
		if snap.FinishedAt != nil && snap.FinishedAt.Before(cutoff) {
			delete(r.runs, id)
			removed++
		}
	}

	return removed
}

// Len returns the number of tracked runs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.runs)
}
