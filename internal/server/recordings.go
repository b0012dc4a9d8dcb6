package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/alkime/voicepost/internal/domain"
	"github.com/alkime/voicepost/internal/generation"
	"github.com/alkime/voicepost/internal/pipeline"
	"github.com/alkime/voicepost/internal/store"
	"github.com/alkime/voicepost/internal/upload"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// handleCreateRecording starts a pipeline run for an uploaded audio file.
// The run outlives the request. By default its events are streamed back as
// server-sent events; clients asking for JSON get the run id instead.
func (s *Server) handleCreateRecording(c *gin.Context) {
	owner := ownerID(c)

	file, header, err := c.Request.FormFile("audio")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart field \"audio\" is required"})
		return
	}
	defer file.Close()

	data, err := s.readAudio(file)
	if err != nil {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
		return
	}

	duration := 0
	if raw := c.PostForm("duration"); raw != "" {
		duration, err = strconv.Atoi(raw)
		if err != nil || duration < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "duration must be a non-negative integer"})
			return
		}
	}

	draft := pipeline.Draft{
		OwnerID:  owner,
		Title:    c.PostForm("title"),
		Duration: duration,
		Platform: domain.Platform(c.PostForm("platform")),
		Audio: &domain.AudioBuffer{
			Data:        data,
			ContentType: audioContentType(header),
			FileName:    filepath.Base(header.Filename),
			Duration:    duration,
		},
	}

	events := make(chan pipeline.Event, max(s.config.RunEventBuffer, 4))

	run, err := s.deps.Pipeline.Start(context.WithoutCancel(c.Request.Context()), draft, events)
	if err != nil {
		status, msg := startErrorStatus(err)
		c.JSON(status, gin.H{"error": msg})

		return
	}

	snap := run.Snapshot()

	if strings.Contains(c.GetHeader("Accept"), gin.MIMEJSON) {
		c.JSON(http.StatusAccepted, gin.H{
			"runId":       snap.RunID,
			"recordingId": snap.RecordingID,
		})

		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")

	c.Header("Content-Type", "text/event-stream")
	c.Status(http.StatusOK)

	for {
		select {
		case ev := <-events:
			c.SSEvent(string(ev.Kind), ev)
			c.Writer.Flush()

			if ev.Terminal() {
				return
			}

		case <-c.Request.Context().Done():
			s.logger.Debug("event stream client left", "run_id", snap.RunID)
			return
		}
	}
}

func (s *Server) readAudio(file multipart.File) ([]byte, error) {
	limit := s.config.MaxUploadBytes

	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}

	if int64(len(data)) > limit {
		return nil, fmt.Errorf("audio exceeds %d bytes", limit)
	}

	return data, nil
}

func audioContentType(header *multipart.FileHeader) string {
	if ct := header.Header.Get("Content-Type"); ct != "" && ct != "application/octet-stream" {
		return ct
	}

	switch strings.ToLower(filepath.Ext(header.Filename)) {
	case ".wav":
		return "audio/wav"
	case ".webm":
		return "audio/webm"
	case ".m4a":
		return "audio/mp4"
	default:
		return "audio/mpeg"
	}
}

func startErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, upload.ErrAuthRequired):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, pipeline.ErrInvalidDraft):
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusInternalServerError, "failed to start processing"
	}
}

func (s *Server) handleGetRecording(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	rec, err := store.GetOwnedRecording(c.Request.Context(), s.deps.Store, ownerID(c), id)
	if err != nil {
		s.storeError(c, err)
		return
	}

	c.JSON(http.StatusOK, rec)
}

func (s *Server) handleListPosts(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()

	if _, err := store.GetOwnedRecording(ctx, s.deps.Store, ownerID(c), id); err != nil {
		s.storeError(c, err)
		return
	}

	posts, err := s.deps.Store.ListPostsByRecording(ctx, ownerID(c), id)
	if err != nil {
		s.storeError(c, err)
		return
	}

	if posts == nil {
		posts = []*domain.Post{}
	}

	c.JSON(http.StatusOK, gin.H{"posts": posts})
}

type generateRequest struct {
	Platform string `json:"platform"`
}

// handleGeneratePost regenerates a post from a stored transcript.
func (s *Server) handleGeneratePost(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req generateRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
			return
		}
	}

	platform, err := domain.ParsePlatform(req.Platform)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := s.deps.Generator.Generate(c.Request.Context(), id, ownerID(c), platform)
	if err != nil {
		status := generationErrorStatus(err)
		s.logger.Warn("post generation failed", "recording_id", id, "status", status, "error", err)
		c.JSON(status, gin.H{"error": err.Error()})

		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"postId":  res.PostID,
		"outcome": res.Outcome,
		"post":    res.Post,
	})
}

func generationErrorStatus(err error) int {
	switch {
	case errors.Is(err, generation.ErrRecordingNotFound):
		return http.StatusNotFound
	case errors.Is(err, generation.ErrTranscriptMissing):
		return http.StatusConflict
	case errors.Is(err, generation.ErrProviderRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, generation.ErrProviderServer), errors.Is(err, generation.ErrProviderHTTP):
		return http.StatusBadGateway
	case errors.Is(err, generation.ErrProviderAuth):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleListRuns(c *gin.Context) {
	runs := s.deps.Pipeline.Runs().List(ownerID(c))
	if runs == nil {
		runs = []pipeline.Snapshot{}
	}

	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (s *Server) handleGetRun(c *gin.Context) {
	run, ok := s.ownedRun(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, run.Snapshot())
}

func (s *Server) handleCancelRun(c *gin.Context) {
	run, ok := s.ownedRun(c)
	if !ok {
		return
	}

	run.Cancel()
	c.Status(http.StatusNoContent)
}

func (s *Server) ownedRun(c *gin.Context) (*pipeline.Run, bool) {
	id, ok := parseID(c)
	if !ok {
		return nil, false
	}

	run, found := s.deps.Pipeline.Runs().Get(id)
	if !found || run.Snapshot().OwnerID != ownerID(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return nil, false
	}

	return run, true
}

func (s *Server) storeError(c *gin.Context, err error) {
	if errors.Is(err, domain.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	s.logger.Error("store request failed", "path", c.FullPath(), "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return uuid.Nil, false
	}

	return id, true
}
