package audio_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alkime/voicepost/internal/audio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCapturer stands in for the malgo device.
type fakeCapturer struct {
	mu       sync.Mutex
	dataC    chan audio.DataPacket
	started  bool
	starts   int
	stops    int
	deallocs int

	captureErr error
	startErr   error
}

func (f *fakeCapturer) CaptureInto(_ context.Context, dataC chan audio.DataPacket) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.captureErr != nil {
		return f.captureErr
	}

	f.dataC = dataC

	return nil
}

func (f *fakeCapturer) Start(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.startErr != nil {
		return f.startErr
	}

	f.started = true
	f.starts++

	return nil
}

func (f *fakeCapturer) Stop(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.started = false
	f.stops++

	return nil
}

func (f *fakeCapturer) Dealloc(_ context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.deallocs++
	f.dataC = nil
}

func (f *fakeCapturer) feed(t *testing.T, pkt audio.DataPacket) {
	t.Helper()

	f.mu.Lock()
	dataC := f.dataC
	f.mu.Unlock()

	require.NotNil(t, dataC, "feed before capture")
	dataC <- pkt
}

func (f *fakeCapturer) deallocCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.deallocs
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

func rawEncode(_ context.Context, pcm []byte, _ int) ([]byte, error) {
	return pcm, nil
}

func newTestRecorder() (*audio.Recorder, *fakeCapturer, *fakeClock) {
	dev := &fakeCapturer{}
	clock := newFakeClock()

	rec := audio.NewRecorder(dev, audio.RecorderConfig{
		ChunkInterval: 10 * time.Millisecond,
		Encode:        rawEncode,
		ContentType:   "audio/L16",
		FileExt:       ".pcm",
		Now:           clock.Now,
	})

	return rec, dev, clock
}

func TestRecorder_StartStop(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	rec, dev, clock := newTestRecorder()

	require.Equal(t, audio.StateIdle, rec.State())
	require.NoError(t, rec.Start(ctx))
	require.Equal(t, audio.StateRecording, rec.State())

	dev.feed(t, []byte{1, 0, 2, 0})
	dev.feed(t, []byte{3, 0})
	clock.Advance(3 * time.Second)

	buf, err := rec.Stop(ctx)
	require.NoError(t, err)
	require.NotNil(t, buf)

	assert.Equal(t, []byte{1, 0, 2, 0, 3, 0}, buf.Data)
	assert.Equal(t, "audio/L16", buf.ContentType)
	assert.Equal(t, 3, buf.Duration)
	assert.Contains(t, buf.FileName, ".pcm")
	assert.Equal(t, audio.StateIdle, rec.State())
	assert.Equal(t, 1, dev.deallocCount())
}

func TestRecorder_StartWhileBusy(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	rec, _, _ := newTestRecorder()

	require.NoError(t, rec.Start(ctx))
	require.ErrorIs(t, rec.Start(ctx), audio.ErrInvalidState)

	require.NoError(t, rec.Pause(ctx))
	require.ErrorIs(t, rec.Start(ctx), audio.ErrInvalidState)

	rec.Cancel(ctx)
}

func TestRecorder_ElapsedExcludesPauses(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	rec, dev, clock := newTestRecorder()

	require.NoError(t, rec.Start(ctx))
	dev.feed(t, []byte{0, 0})
	clock.Advance(2 * time.Second)

	require.NoError(t, rec.Pause(ctx))
	assert.Equal(t, audio.StatePaused, rec.State())
	clock.Advance(10 * time.Second)
	assert.Equal(t, 2*time.Second, rec.Elapsed())

	require.NoError(t, rec.Resume(ctx))
	clock.Advance(3 * time.Second)
	assert.Equal(t, 5*time.Second, rec.Elapsed())

	buf, err := rec.Stop(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, buf.Duration)

	// Frozen after stop.
	clock.Advance(time.Minute)
	assert.Equal(t, 5*time.Second, rec.Elapsed())
}

func TestRecorder_ZeroTimePauseResume(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	rec, _, clock := newTestRecorder()

	require.NoError(t, rec.Start(ctx))
	clock.Advance(1500 * time.Millisecond)

	before := rec.Elapsed()

	require.NoError(t, rec.Pause(ctx))
	require.NoError(t, rec.Resume(ctx))

	assert.Equal(t, before, rec.Elapsed())

	rec.Cancel(ctx)
}

func TestRecorder_PauseResumeNoops(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	rec, dev, _ := newTestRecorder()

	// Idle: both are no-ops.
	require.NoError(t, rec.Pause(ctx))
	require.NoError(t, rec.Resume(ctx))
	assert.Equal(t, audio.StateIdle, rec.State())

	require.NoError(t, rec.Start(ctx))

	// Resume while recording does nothing.
	require.NoError(t, rec.Resume(ctx))
	assert.Equal(t, 1, dev.starts)

	require.NoError(t, rec.Pause(ctx))
	require.NoError(t, rec.Pause(ctx))
	assert.Equal(t, 1, dev.stops)
	assert.Equal(t, audio.StatePaused, rec.State())

	rec.Cancel(ctx)
}

func TestRecorder_IdempotentTeardown(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	rec, dev, _ := newTestRecorder()

	require.NoError(t, rec.Start(ctx))
	dev.feed(t, []byte{9, 9})

	first, err := rec.Stop(ctx)
	require.NoError(t, err)

	second, err := rec.Stop(ctx)
	require.NoError(t, err)
	assert.Same(t, first, second)

	rec.Cancel(ctx)
	rec.Close()

	assert.Equal(t, 1, dev.deallocCount())
	assert.Equal(t, audio.StateIdle, rec.State())
}

func TestRecorder_EmptyRecording(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	rec, dev, _ := newTestRecorder()

	require.NoError(t, rec.Start(ctx))

	buf, err := rec.Stop(ctx)
	require.ErrorIs(t, err, audio.ErrEmptyRecording)
	assert.Nil(t, buf)
	assert.Equal(t, 1, dev.deallocCount())

	buf, err = rec.Stop(ctx)
	require.ErrorIs(t, err, audio.ErrEmptyRecording, "idle stop repeats the empty outcome")
	assert.Nil(t, buf)
}

func TestRecorder_CancelDiscards(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	rec, dev, _ := newTestRecorder()

	require.NoError(t, rec.Start(ctx))
	dev.feed(t, []byte{1, 2, 3, 4})

	rec.Cancel(ctx)
	rec.Cancel(ctx)

	assert.Equal(t, audio.StateIdle, rec.State())
	assert.Equal(t, 1, dev.deallocCount())

	buf, err := rec.Stop(ctx)
	require.NoError(t, err)
	assert.Nil(t, buf)

	// A fresh session works after cancel.
	require.NoError(t, rec.Start(ctx))
	assert.Equal(t, time.Duration(0), rec.Elapsed())
	rec.Cancel(ctx)
	assert.Equal(t, 2, dev.deallocCount())
}

func TestRecorder_DeviceErrors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("capture fails", func(t *testing.T) {
		t.Parallel()

		rec, dev, _ := newTestRecorder()
		dev.captureErr = fmt.Errorf("init: %w", audio.ErrUnsupportedPlatform)

		err := rec.Start(ctx)
		require.ErrorIs(t, err, audio.ErrUnsupportedPlatform)
		assert.Equal(t, audio.StateIdle, rec.State())
		assert.Equal(t, 0, dev.deallocCount())
	})

	t.Run("start fails", func(t *testing.T) {
		t.Parallel()

		rec, dev, _ := newTestRecorder()
		dev.startErr = fmt.Errorf("start: %w", audio.ErrPermissionDenied)

		err := rec.Start(ctx)
		require.ErrorIs(t, err, audio.ErrPermissionDenied)
		assert.Equal(t, audio.StateIdle, rec.State())
		assert.Equal(t, 1, dev.deallocCount(), "device must be released on start failure")
	})

	t.Run("encode fails", func(t *testing.T) {
		t.Parallel()

		dev := &fakeCapturer{}
		rec := audio.NewRecorder(dev, audio.RecorderConfig{
			Encode: func(context.Context, []byte, int) ([]byte, error) {
				return nil, errors.New("boom")
			},
		})

		require.NoError(t, rec.Start(ctx))
		dev.feed(t, []byte{1, 1})

		_, err := rec.Stop(ctx)
		require.ErrorContains(t, err, "boom")
		assert.Equal(t, audio.StateIdle, rec.State())
		assert.Equal(t, 1, dev.deallocCount())

		buf, err := rec.Stop(ctx)
		require.ErrorContains(t, err, "boom")
		assert.Nil(t, buf)
	})
}

func TestRecorder_Sequences(t *testing.T) {
	t.Parallel()

	type step struct {
		op      string
		advance time.Duration
	}

	tests := []struct {
		name    string
		steps   []step
		elapsed time.Duration
	}{
		{
			name:    "record then stop",
			steps:   []step{{"start", 0}, {"wait", 4 * time.Second}, {"stop", 0}},
			elapsed: 4 * time.Second,
		},
		{
			name: "two pauses",
			steps: []step{
				{"start", 0}, {"wait", time.Second},
				{"pause", 0}, {"wait", 5 * time.Second}, {"resume", 0},
				{"wait", 2 * time.Second},
				{"pause", 0}, {"wait", 7 * time.Second}, {"resume", 0},
				{"wait", 3 * time.Second}, {"stop", 0},
			},
			elapsed: 6 * time.Second,
		},
		{
			name:    "stop while paused",
			steps:   []step{{"start", 0}, {"wait", 2 * time.Second}, {"pause", 0}, {"wait", time.Hour}, {"stop", 0}},
			elapsed: 2 * time.Second,
		},
		{
			name:    "cancel while recording",
			steps:   []step{{"start", 0}, {"wait", 2 * time.Second}, {"cancel", 0}},
			elapsed: 2 * time.Second,
		},
		{
			name:    "cancel while paused",
			steps:   []step{{"start", 0}, {"pause", 0}, {"wait", time.Minute}, {"cancel", 0}, {"stop", 0}},
			elapsed: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			rec, dev, clock := newTestRecorder()

			for _, s := range tt.steps {
				switch s.op {
				case "start":
					require.NoError(t, rec.Start(ctx))
					dev.feed(t, bytes.Repeat([]byte{0}, 32))
				case "pause":
					require.NoError(t, rec.Pause(ctx))
				case "resume":
					require.NoError(t, rec.Resume(ctx))
				case "wait":
					clock.Advance(s.advance)
				case "stop":
					_, err := rec.Stop(ctx)
					require.NoError(t, err)
				case "cancel":
					rec.Cancel(ctx)
				}
			}

			assert.Equal(t, audio.StateIdle, rec.State())
			assert.Equal(t, tt.elapsed, rec.Elapsed())
			assert.Equal(t, 1, dev.deallocCount())
		})
	}
}

func TestRecorder_LevelsAndBytes(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	rec, dev, _ := newTestRecorder()

	require.NoError(t, rec.Start(ctx))
	dev.feed(t, []byte{0x01, 0x00, 0x02, 0x00})

	require.Eventually(t, func() bool {
		return rec.BytesCaptured() == 4
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, []int16{1, 2}, rec.ReadSamples(10))
	assert.InDelta(t, 2.0/32767, rec.Level(10), 1e-9)

	rec.Cancel(ctx)
}

func TestRecorder_SilenceEncodesToMP3(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dev := &fakeCapturer{}
	clock := newFakeClock()
	rec := audio.NewRecorder(dev, audio.RecorderConfig{Now: clock.Now})

	require.NoError(t, rec.Start(ctx))

	// 5 seconds of 16kHz mono silence in 100ms packets.
	packet := make([]byte, audio.DefaultSampleRate/10*2)
	for range 50 {
		dev.feed(t, packet)
	}
	clock.Advance(5 * time.Second)

	buf, err := rec.Stop(ctx)
	require.NoError(t, err)
	assert.Equal(t, "audio/mpeg", buf.ContentType)
	assert.Equal(t, 5, buf.Duration)
	assert.NotEmpty(t, buf.Data)
}
