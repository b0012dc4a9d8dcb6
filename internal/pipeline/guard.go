package pipeline

import (
	"context"

	"github.com/alkime/voicepost/internal/domain"
	"github.com/alkime/voicepost/internal/store"
)

// guardedStore refuses writes once its run is cancelled so late stage
// results are dropped instead of applied.
type guardedStore struct {
	store.Store
	run context.Context
}

func newGuardedStore(st store.Store, run context.Context) *guardedStore {
	return &guardedStore{Store: st, run: run}
}

func (g *guardedStore) check() error {
	if g.run.Err() != nil {
		return ErrCancelled
	}

	return nil
}

func (g *guardedStore) CreateRecording(ctx context.Context, rec *domain.Recording) error {
	if err := g.check(); err != nil {
		return err
	}

	return g.Store.CreateRecording(ctx, rec)
}

func (g *guardedStore) UpdateRecording(ctx context.Context, rec *domain.Recording) error {
	if err := g.check(); err != nil {
		return err
	}

	return g.Store.UpdateRecording(ctx, rec)
}

func (g *guardedStore) CreatePost(ctx context.Context, post *domain.Post) error {
	if err := g.check(); err != nil {
		return err
	}

	return g.Store.CreatePost(ctx, post)
}
