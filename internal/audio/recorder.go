package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alkime/voicepost/internal/domain"
)

var (
	// ErrEmptyRecording is returned by Stop when no audio bytes were captured.
	ErrEmptyRecording = errors.New("no audio data recorded")
	// ErrInvalidState is returned when Start is called on a busy recorder.
	ErrInvalidState = errors.New("recorder is not idle")
)

// State is the recorder's position in its lifecycle.
type State int

const (
	StateIdle State = iota
	StateRecording
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StatePaused:
		return "paused"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Capturer is the part of Device the Recorder drives.
type Capturer interface {
	CaptureInto(ctx context.Context, dataC chan DataPacket) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Dealloc(ctx context.Context)
}

// EncodeFunc turns raw S16LE mono PCM into the bytes handed to upload.
type EncodeFunc func(ctx context.Context, pcm []byte, sampleRate int) ([]byte, error)

// RecorderConfig configures a Recorder. Zero fields take defaults.
type RecorderConfig struct {
	SampleRate int
	// ChunkInterval is how often pending packets are sealed into a chunk.
	ChunkInterval time.Duration
	// LevelsCapacity is the number of recent samples kept for visualization.
	LevelsCapacity int

	Encode      EncodeFunc
	ContentType string
	FileExt     string

	Now func() time.Time
}

func (c RecorderConfig) withDefaults() RecorderConfig {
	if c.SampleRate == 0 {
		c.SampleRate = DefaultSampleRate
	}

	if c.ChunkInterval == 0 {
		c.ChunkInterval = time.Second
	}

	if c.LevelsCapacity == 0 {
		c.LevelsCapacity = c.SampleRate
	}

	if c.Encode == nil {
		c.Encode = EncodeMP3
		c.ContentType = "audio/mpeg"
		c.FileExt = ".mp3"
	}

	if c.ContentType == "" {
		c.ContentType = "application/octet-stream"
	}

	if c.Now == nil {
		c.Now = time.Now
	}

	return c
}

// Recorder turns a capture device into an idle/recording/paused state
// machine that yields one in-memory AudioBuffer per session.
//
// Elapsed time is measured against the clock at each start/resume and frozen
// on pause, so paused intervals never count. The recorder has no notion of a
// maximum duration; callers enforce their own ceiling.
type Recorder struct {
	cfg RecorderConfig
	dev Capturer

	mu          sync.Mutex
	state       State
	sess        *session
	accumulated time.Duration
	segStart    time.Time
	last        *domain.AudioBuffer
	lastErr     error

	captured atomic.Int64
	levels   atomic.Pointer[SampleRingBuffer]
}

// NewRecorder creates an idle recorder over dev.
func NewRecorder(dev Capturer, cfg RecorderConfig) *Recorder {
	cfg = cfg.withDefaults()

	r := &Recorder{cfg: cfg, dev: dev}
	r.levels.Store(NewSampleRingBuffer(cfg.LevelsCapacity))

	return r
}

// State returns the current state.
func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.state
}

// Elapsed returns recorded time so far, excluding pauses.
func (r *Recorder) Elapsed() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.elapsedLocked()
}

func (r *Recorder) elapsedLocked() time.Duration {
	if r.state == StateRecording {
		return r.accumulated + r.cfg.Now().Sub(r.segStart)
	}

	return r.accumulated
}

// BytesCaptured returns raw PCM bytes received in the current session.
func (r *Recorder) BytesCaptured() int64 {
	return r.captured.Load()
}

// ReadSamples returns up to n of the most recent samples for visualization.
func (r *Recorder) ReadSamples(n int) []int16 {
	return r.levels.Load().ReadSamples(n)
}

// Level returns the peak amplitude of the newest n samples, scaled to 0..1.
func (r *Recorder) Level(n int) float64 {
	return r.levels.Load().Peak(n)
}

// Start acquires the device and begins a new session. It fails with
// ErrInvalidState unless the recorder is idle, and with ErrPermissionDenied
// or ErrUnsupportedPlatform when the device cannot be opened.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateIdle {
		return fmt.Errorf("%w: start while %s", ErrInvalidState, r.state)
	}

	dataC := make(chan DataPacket, 64)

	if err := r.dev.CaptureInto(ctx, dataC); err != nil {
		return fmt.Errorf("failed to acquire capture device: %w", err)
	}

	if err := r.dev.Start(ctx); err != nil {
		r.dev.Dealloc(ctx)
		return fmt.Errorf("failed to start capture device: %w", err)
	}

	r.accumulated = 0
	r.segStart = r.cfg.Now()
	r.last = nil
	r.lastErr = nil
	r.captured.Store(0)
	r.levels.Store(NewSampleRingBuffer(r.cfg.LevelsCapacity))

	r.sess = newSession(dataC, r.cfg.ChunkInterval, r.onPacket)
	r.state = StateRecording

	slog.Debug("recorder started", "sample_rate", r.cfg.SampleRate)

	return nil
}

// Pause stops the device and freezes elapsed time. No-op unless recording.
func (r *Recorder) Pause(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateRecording {
		return nil
	}

	if err := r.dev.Stop(ctx); err != nil {
		return fmt.Errorf("failed to pause capture device: %w", err)
	}

	r.accumulated += r.cfg.Now().Sub(r.segStart)
	r.state = StatePaused

	return nil
}

// Resume restarts the device. Elapsed time continues from its frozen value.
// No-op unless paused.
func (r *Recorder) Resume(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StatePaused {
		return nil
	}

	if err := r.dev.Start(ctx); err != nil {
		return fmt.Errorf("failed to resume capture device: %w", err)
	}

	r.segStart = r.cfg.Now()
	r.state = StateRecording

	return nil
}

// Stop ends the session, releases the device and returns the finished
// buffer. Calling Stop while idle repeats the previous session's outcome,
// buffer or error. A session that captured nothing yields ErrEmptyRecording.
func (r *Recorder) Stop(ctx context.Context) (*domain.AudioBuffer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateIdle {
		return r.last, r.lastErr
	}

	elapsed := r.elapsedLocked()
	pcm := r.releaseLocked(ctx)
	r.accumulated = elapsed

	if len(pcm) == 0 {
		r.lastErr = ErrEmptyRecording
		return nil, r.lastErr
	}

	data, err := r.cfg.Encode(ctx, pcm, r.cfg.SampleRate)
	if err != nil {
		r.lastErr = fmt.Errorf("failed to encode recording: %w", err)
		return nil, r.lastErr
	}

	now := r.cfg.Now()
	r.last = &domain.AudioBuffer{
		Data:        data,
		ContentType: r.cfg.ContentType,
		FileName:    fmt.Sprintf("recording-%d%s", now.Unix(), r.cfg.FileExt),
		Duration:    int(elapsed / time.Second),
	}

	slog.Debug("recorder stopped",
		"pcm_bytes", len(pcm),
		"pcm_duration", EncoderConfig{SampleRate: r.cfg.SampleRate}.PCMDuration(int64(len(pcm))),
		"encoded_bytes", len(data),
		"duration_s", r.last.Duration,
	)

	return r.last, nil
}

// Cancel ends the session and discards captured audio. Safe to call in any
// state and any number of times.
func (r *Recorder) Cancel(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateIdle {
		return
	}

	r.accumulated = r.elapsedLocked()
	_ = r.releaseLocked(ctx)
	r.last = nil
	r.lastErr = nil
}

// Close releases the device if a session is still open.
func (r *Recorder) Close() {
	r.Cancel(context.Background())
}

// releaseLocked stops the device, drains the collector and deallocates the
// device exactly once for the session. Returns the captured PCM.
func (r *Recorder) releaseLocked(ctx context.Context) []byte {
	if err := r.dev.Stop(ctx); err != nil {
		slog.Warn("failed to stop capture device", "error", err)
	}

	pcm := r.sess.finish()
	r.dev.Dealloc(ctx)

	r.sess = nil
	r.state = StateIdle

	return pcm
}

func (r *Recorder) onPacket(pkt DataPacket) {
	r.captured.Add(int64(len(pkt)))
	r.levels.Load().Write(BytesToInt16(pkt))
}

// session collects device packets into fixed-interval chunks.
type session struct {
	dataC    chan DataPacket
	cancel   context.CancelFunc
	done     chan struct{}
	onPacket func(DataPacket)

	pending []byte
	chunks  [][]byte
}

func newSession(dataC chan DataPacket, interval time.Duration, onPacket func(DataPacket)) *session {
	ctx, cancel := context.WithCancel(context.Background())

	s := &session{
		dataC:    dataC,
		cancel:   cancel,
		done:     make(chan struct{}),
		onPacket: onPacket,
	}

	go s.collect(ctx, interval)

	return s
}

func (s *session) collect(ctx context.Context, interval time.Duration) {
	defer close(s.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case pkt := <-s.dataC:
			s.add(pkt)

		case <-ticker.C:
			s.seal()

		case <-ctx.Done():
			// Device is stopped by now; take whatever is still buffered.
			for {
				select {
				case pkt := <-s.dataC:
					s.add(pkt)
				default:
					s.seal()
					return
				}
			}
		}
	}
}

func (s *session) add(pkt DataPacket) {
	if len(pkt) == 0 {
		return
	}

	s.pending = append(s.pending, pkt...)
	s.onPacket(pkt)
}

func (s *session) seal() {
	if len(s.pending) == 0 {
		return
	}

	s.chunks = append(s.chunks, s.pending)
	s.pending = nil
}

// finish stops the collector and joins all chunks.
func (s *session) finish() []byte {
	s.cancel()
	<-s.done

	return bytes.Join(s.chunks, nil)
}
