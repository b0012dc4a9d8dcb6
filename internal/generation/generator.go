package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alkime/voicepost/internal/content"
	"github.com/alkime/voicepost/internal/domain"
	"github.com/alkime/voicepost/internal/store"
	"github.com/google/uuid"
)

// Result describes a persisted draft post.
type Result struct {
	PostID  uuid.UUID
	Outcome content.Outcome
	Post    *domain.Post
}

// Generator creates one draft post per successful Generate call.
type Generator struct {
	provider Provider
	recs     store.Recordings
	posts    store.Posts
	opts     Options
	logger   *slog.Logger
}

// NewGenerator creates a generator. provider may be nil, in which case every
// call fails with ErrProviderAuth.
func NewGenerator(provider Provider, recs store.Recordings, posts store.Posts, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}

	opts := DefaultOptions()
	opts.System = content.SystemPrompt

	return &Generator{
		provider: provider,
		recs:     recs,
		posts:    posts,
		opts:     opts,
		logger:   logger,
	}
}

// Generate writes a draft post for the recording's transcript. It never
// modifies the recording.
func (g *Generator) Generate(
	ctx context.Context,
	recordingID uuid.UUID,
	ownerID string,
	platform domain.Platform,
) (*Result, error) {
	if platform == "" {
		platform = domain.PlatformLinkedIn
	}

	logger := g.logger.With("recording_id", recordingID, "platform", platform)

	rec, err := store.GetOwnedRecording(ctx, g.recs, ownerID, recordingID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: %w", ErrRecordingNotFound, err)
		}

		return nil, fmt.Errorf("%w: load recording: %w", ErrPersistence, err)
	}

	if !rec.HasTranscript() {
		return nil, fmt.Errorf("%w: recording %s", ErrTranscriptMissing, recordingID)
	}

	if g.provider == nil || !g.provider.Configured() {
		return nil, fmt.Errorf("%w: no API key configured", ErrProviderAuth)
	}

	transcript := *rec.Transcript

	logger.Debug("requesting post", "provider", g.provider.Name(), "transcript_chars", len(transcript))

	raw, err := g.provider.Complete(ctx, content.PostPrompt(transcript), g.opts)
	if err != nil {
		if kind := classify(err); kind != nil {
			logger.Warn("generation provider rejected request", "error", err)
			return nil, kind
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		logger.Warn("generation provider unreachable, using transcript heuristic", "error", err)

		raw = ""
	}

	fields, outcome := content.Parse(raw, transcript)

	post := &domain.Post{
		OwnerID:      rec.OwnerID,
		Platform:     platform,
		Hook:         fields.Hook,
		Body:         fields.Body,
		CallToAction: fields.CallToAction,
		Hashtags:     fields.Hashtags,
		Content:      content.Flatten(fields),
		Status:       domain.PostDraft,
		RecordingID:  &rec.ID,
	}

	if err := g.posts.CreatePost(ctx, post); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	logger.Info("post generated", "post_id", post.ID, "outcome", outcome)

	return &Result{PostID: post.ID, Outcome: outcome, Post: post}, nil
}
