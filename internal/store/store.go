// Package store persists recordings and posts.
//
// Recording updates are optimistic: the caller's Version must match the
// stored one, otherwise the update fails with domain.ErrConflict and nothing
// is written. A successful update bumps Version on the caller's copy.
package store

import (
	"context"
	"fmt"

	"github.com/alkime/voicepost/internal/domain"
	"github.com/google/uuid"
)

// Recordings persists Recording entities.
type Recordings interface {
	CreateRecording(ctx context.Context, rec *domain.Recording) error
	GetRecording(ctx context.Context, id uuid.UUID) (*domain.Recording, error)
	UpdateRecording(ctx context.Context, rec *domain.Recording) error
}

// Posts persists Post entities.
type Posts interface {
	CreatePost(ctx context.Context, post *domain.Post) error
	GetPost(ctx context.Context, id uuid.UUID) (*domain.Post, error)
	ListPostsByRecording(ctx context.Context, ownerID string, recordingID uuid.UUID) ([]*domain.Post, error)
}

// Store is the full persistence surface used by the pipeline.
type Store interface {
	Recordings
	Posts
}

// GetOwnedRecording loads a recording and hides it from anyone but its owner.
func GetOwnedRecording(ctx context.Context, recs Recordings, ownerID string, id uuid.UUID) (*domain.Recording, error) {
	rec, err := recs.GetRecording(ctx, id)
	if err != nil {
		return nil, err
	}

	if rec.OwnerID != ownerID {
		return nil, fmt.Errorf("recording %s: %w", id, domain.ErrNotFound)
	}

	return rec, nil
}

// GetOwnedPost loads a post and hides it from anyone but its owner.
func GetOwnedPost(ctx context.Context, posts Posts, ownerID string, id uuid.UUID) (*domain.Post, error) {
	post, err := posts.GetPost(ctx, id)
	if err != nil {
		return nil, err
	}

	if post.OwnerID != ownerID {
		return nil, fmt.Errorf("post %s: %w", id, domain.ErrNotFound)
	}

	return post, nil
}
