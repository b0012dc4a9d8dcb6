// Package upload moves a finished recording into durable blob storage.
package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alkime/voicepost/internal/domain"
)

var (
	// ErrAuthRequired is returned when no owner is attached to the upload.
	ErrAuthRequired = errors.New("authentication required")
	// ErrDestinationUnavailable is returned when no write location could be obtained.
	ErrDestinationUnavailable = errors.New("upload destination unavailable")
	// ErrTransferFailed is returned when the bytes could not be written.
	ErrTransferFailed = errors.New("upload transfer failed")
)

// WriteLocation is a time-boxed place to write one object.
type WriteLocation struct {
	WriteURL  string
	PublicURL string
	Key       string
	ExpiresAt time.Time
}

// Destination hands out write locations and accepts bytes for them.
type Destination interface {
	RequestWriteLocation(ctx context.Context, ownerID, fileName string) (*WriteLocation, error)
	WriteBytes(ctx context.Context, writeURL string, data []byte, contentType string) error
}

// Result describes a stored recording.
type Result struct {
	DurableURL string
	Key        string
	Size       int
}

// Uploader stores audio buffers through a Destination. It never retries and
// never cleans up a partially written object.
type Uploader struct {
	dest     Destination
	maxBytes int64
	logger   *slog.Logger
}

// NewUploader creates an Uploader. maxBytes <= 0 disables the size check.
func NewUploader(dest Destination, maxBytes int64, logger *slog.Logger) *Uploader {
	if logger == nil {
		logger = slog.Default()
	}

	return &Uploader{dest: dest, maxBytes: maxBytes, logger: logger}
}

// Upload stores buf under ownerID and returns its durable URL.
func (u *Uploader) Upload(ctx context.Context, buf *domain.AudioBuffer, ownerID string) (*Result, error) {
	if ownerID == "" {
		return nil, ErrAuthRequired
	}

	if buf.Len() == 0 {
		return nil, fmt.Errorf("%w: empty audio buffer", ErrTransferFailed)
	}

	if u.maxBytes > 0 && int64(buf.Len()) > u.maxBytes {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrTransferFailed, buf.Len(), u.maxBytes)
	}

	loc, err := u.dest.RequestWriteLocation(ctx, ownerID, buf.FileName)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDestinationUnavailable, err)
	}

	if err := u.dest.WriteBytes(ctx, loc.WriteURL, buf.Data, buf.ContentType); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}

	u.logger.Info("recording uploaded",
		"owner_id", ownerID,
		"key", loc.Key,
		"bytes", buf.Len(),
	)

	return &Result{
		DurableURL: loc.PublicURL,
		Key:        loc.Key,
		Size:       buf.Len(),
	}, nil
}
