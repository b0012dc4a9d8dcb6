package store

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/alkime/voicepost/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore is a Store backed by a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresPool opens and pings a pgx pool for dsn.
func NewPostgresPool(ctx context.Context, dsn string, logger *slog.Logger) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pgx config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logger.Info("PostgreSQL connection pool established",
		"host", cfg.ConnConfig.Host,
		"database", cfg.ConnConfig.Database,
	)

	return pool, nil
}

// NewPostgresStore wraps an open pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate runs the embedded SQL migrations in file name order.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		sql, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		if _, err := s.pool.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("execute migration %s: %w", name, err)
		}
	}

	return nil
}

const recordingColumns = `id, owner_id, title, duration, audio_url, status, transcript, version, created_at, updated_at`

func (s *PostgresStore) CreateRecording(ctx context.Context, rec *domain.Recording) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}

	const q = `INSERT INTO recordings (id, owner_id, title, duration, audio_url, status, transcript, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 1)
		RETURNING version, created_at, updated_at`

	err := s.pool.QueryRow(ctx, q,
		rec.ID, rec.OwnerID, rec.Title, rec.Duration, rec.AudioURL, string(rec.Status), rec.Transcript,
	).Scan(&rec.Version, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert recording: %w", err)
	}

	return nil
}

func (s *PostgresStore) GetRecording(ctx context.Context, id uuid.UUID) (*domain.Recording, error) {
	q := `SELECT ` + recordingColumns + ` FROM recordings WHERE id = $1`

	rec, err := scanRecording(s.pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("recording %s: %w", id, domain.ErrNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("select recording: %w", err)
	}

	return rec, nil
}

func (s *PostgresStore) UpdateRecording(ctx context.Context, rec *domain.Recording) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	const q = `UPDATE recordings
		SET title = $1, duration = $2, audio_url = $3, status = $4, transcript = $5,
			version = version + 1, updated_at = NOW()
		WHERE id = $6 AND version = $7
		RETURNING version, updated_at`

	err := s.pool.QueryRow(ctx, q,
		rec.Title, rec.Duration, rec.AudioURL, string(rec.Status), rec.Transcript, rec.ID, rec.Version,
	).Scan(&rec.Version, &rec.UpdatedAt)
	if err == nil {
		return nil
	}

	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("update recording: %w", err)
	}

	// Nothing matched: either the row is gone or someone else bumped it.
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM recordings WHERE id = $1)`, rec.ID).
		Scan(&exists); err != nil {
		return fmt.Errorf("check recording: %w", err)
	}

	if !exists {
		return fmt.Errorf("recording %s: %w", rec.ID, domain.ErrNotFound)
	}

	return fmt.Errorf("recording %s at version %d: %w", rec.ID, rec.Version, domain.ErrConflict)
}

const postColumns = `id, owner_id, platform, hook, body, call_to_action, hashtags, content, status, recording_id, created_at, updated_at`

func (s *PostgresStore) CreatePost(ctx context.Context, post *domain.Post) error {
	if err := post.Validate(); err != nil {
		return err
	}

	if post.ID == uuid.Nil {
		post.ID = uuid.New()
	}

	const q = `INSERT INTO posts (id, owner_id, platform, hook, body, call_to_action, hashtags, content, status, recording_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at`

	err := s.pool.QueryRow(ctx, q,
		post.ID, post.OwnerID, string(post.Platform), post.Hook, post.Body, post.CallToAction,
		post.Hashtags, post.Content, string(post.Status), post.RecordingID,
	).Scan(&post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert post: %w", err)
	}

	return nil
}

func (s *PostgresStore) GetPost(ctx context.Context, id uuid.UUID) (*domain.Post, error) {
	q := `SELECT ` + postColumns + ` FROM posts WHERE id = $1`

	post, err := scanPost(s.pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("post %s: %w", id, domain.ErrNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("select post: %w", err)
	}

	return post, nil
}

func (s *PostgresStore) ListPostsByRecording(
	ctx context.Context,
	ownerID string,
	recordingID uuid.UUID,
) ([]*domain.Post, error) {
	q := `SELECT ` + postColumns + ` FROM posts
		WHERE owner_id = $1 AND recording_id = $2
		ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, q, ownerID, recordingID)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	var out []*domain.Post

	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}

		out = append(out, post)
	}

	return out, rows.Err()
}

func scanRecording(row pgx.Row) (*domain.Recording, error) {
	var (
		rec    domain.Recording
		status string
	)

	err := row.Scan(&rec.ID, &rec.OwnerID, &rec.Title, &rec.Duration, &rec.AudioURL,
		&status, &rec.Transcript, &rec.Version, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}

	rec.Status, err = domain.ParseRecordingStatus(status)
	if err != nil {
		return nil, err
	}

	return &rec, nil
}

func scanPost(row pgx.Row) (*domain.Post, error) {
	var (
		post             domain.Post
		platform, status string
	)

	err := row.Scan(&post.ID, &post.OwnerID, &platform, &post.Hook, &post.Body, &post.CallToAction,
		&post.Hashtags, &post.Content, &status, &post.RecordingID, &post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		return nil, err
	}

	post.Platform = domain.Platform(platform)
	post.Status = domain.PostStatus(status)

	return &post, nil
}
