package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/alkime/voicepost/internal/audio"
	"github.com/alkime/voicepost/internal/domain"
	"github.com/alkime/voicepost/internal/tui/record"
)

// levelWindow is about 50ms of samples at the default rate.
const levelWindow = audio.DefaultSampleRate / 20

func recordingControls(ctx context.Context, recorder *audio.Recorder, maxDuration time.Duration) record.Controls {
	return record.Controls{
		Capture: recorderKnob{ctx: ctx, recorder: recorder},
		Elapsed: elapsedDial{recorder: recorder, limit: maxDuration},
		Levels:  recorderLevels{recorder: recorder},
		Peak:    recorderPeak{recorder: recorder},
		Stop: func() (*domain.AudioBuffer, error) {
			return recorder.Stop(ctx)
		},
		Cancel: func() {
			recorder.Cancel(ctx)
		},
	}
}

// recorderKnob reads true while the recorder captures; toggling pauses or
// resumes.
type recorderKnob struct {
	ctx      context.Context
	recorder *audio.Recorder
}

func (k recorderKnob) Read() bool {
	return k.recorder.State() == audio.StateRecording
}

func (k recorderKnob) On() {
	if err := k.recorder.Resume(k.ctx); err != nil {
		slog.Error("resume recording failed", "error", err)
	}
}

func (k recorderKnob) Off() {
	if err := k.recorder.Pause(k.ctx); err != nil {
		slog.Error("pause recording failed", "error", err)
	}
}

func (k recorderKnob) Toggle() {
	if k.Read() {
		k.Off()
	} else {
		k.On()
	}
}

type elapsedDial struct {
	recorder *audio.Recorder
	limit    time.Duration
}

func (d elapsedDial) Read() time.Duration {
	return d.recorder.Elapsed()
}

func (d elapsedDial) Cap() (time.Duration, time.Duration) {
	return d.Read(), d.limit
}

// recorderLevels implements uictl.Levels[int16] for the waveform.
type recorderLevels struct {
	recorder *audio.Recorder
}

func (l recorderLevels) Read() []int16 {
	return l.recorder.ReadSamples(levelWindow)
}

type recorderPeak struct {
	recorder *audio.Recorder
}

func (p recorderPeak) Read() float64 {
	return p.recorder.Level(levelWindow)
}
