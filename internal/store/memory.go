package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/alkime/voicepost/internal/domain"
	"github.com/google/uuid"
)

// MemoryStore is an in-process Store. Values are copied on the way in and
// out so callers never share state with the map.
type MemoryStore struct {
	mu         sync.RWMutex
	recordings map[uuid.UUID]*domain.Recording
	posts      map[uuid.UUID]*domain.Post
	now        func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		recordings: make(map[uuid.UUID]*domain.Recording),
		posts:      make(map[uuid.UUID]*domain.Post),
		now:        time.Now,
	}
}

func (s *MemoryStore) CreateRecording(_ context.Context, rec *domain.Recording) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}

	if _, exists := s.recordings[rec.ID]; exists {
		return fmt.Errorf("recording %s already exists: %w", rec.ID, domain.ErrConflict)
	}

	now := s.now().UTC()
	rec.Version = 1
	rec.CreatedAt = now
	rec.UpdatedAt = now

	s.recordings[rec.ID] = rec.Clone()

	return nil
}

func (s *MemoryStore) GetRecording(_ context.Context, id uuid.UUID) (*domain.Recording, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.recordings[id]
	if !ok {
		return nil, fmt.Errorf("recording %s: %w", id, domain.ErrNotFound)
	}

	return rec.Clone(), nil
}

func (s *MemoryStore) UpdateRecording(_ context.Context, rec *domain.Recording) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.recordings[rec.ID]
	if !ok {
		return fmt.Errorf("recording %s: %w", rec.ID, domain.ErrNotFound)
	}

	if current.Version != rec.Version {
		return fmt.Errorf("recording %s at version %d, have %d: %w",
			rec.ID, current.Version, rec.Version, domain.ErrConflict)
	}

	rec.Version++
	rec.UpdatedAt = s.now().UTC()
	rec.CreatedAt = current.CreatedAt
	rec.OwnerID = current.OwnerID

	s.recordings[rec.ID] = rec.Clone()

	return nil
}

func (s *MemoryStore) CreatePost(_ context.Context, post *domain.Post) error {
	if err := post.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if post.ID == uuid.Nil {
		post.ID = uuid.New()
	}

	if _, exists := s.posts[post.ID]; exists {
		return fmt.Errorf("post %s already exists: %w", post.ID, domain.ErrConflict)
	}

	now := s.now().UTC()
	post.CreatedAt = now
	post.UpdatedAt = now

	s.posts[post.ID] = post.Clone()

	return nil
}

func (s *MemoryStore) GetPost(_ context.Context, id uuid.UUID) (*domain.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	post, ok := s.posts[id]
	if !ok {
		return nil, fmt.Errorf("post %s: %w", id, domain.ErrNotFound)
	}

	return post.Clone(), nil
}

func (s *MemoryStore) ListPostsByRecording(
	_ context.Context,
	ownerID string,
	recordingID uuid.UUID,
) ([]*domain.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Post

	for _, post := range s.posts {
		if post.OwnerID != ownerID || post.RecordingID == nil || *post.RecordingID != recordingID {
			continue
		}

		out = append(out, post.Clone())
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	return out, nil
}
