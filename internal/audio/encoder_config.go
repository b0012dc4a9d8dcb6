package audio

import (
	"errors"
	"time"
)

const (
	// DefaultChunkBytes is 2048 mono samples, 128ms at 16kHz.
	DefaultChunkBytes = 4096
	// DefaultSampleRate is 16kHz, the native sample rate for Whisper.
	DefaultSampleRate = 16000
	// DefaultChannels is mono (1 channel).
	DefaultChannels = 1
	// bytesPerSample is the width of one S16LE sample.
	bytesPerSample = 2
)

// EncoderConfig configures the MP3 encoder used to shrink recordings before
// upload.
type EncoderConfig struct {
	// SampleRate is the audio sample rate in Hz.
	SampleRate int

	// Channels is the number of audio channels (default: 1 for mono).
	// Mono input is widened to stereo before it reaches shine.
	Channels int

	// ChunkBytes is how much PCM is handed to shine per call.
	ChunkBytes int
}

// Validate returns an error if the config is invalid.
func (c EncoderConfig) Validate() error {
	if c.SampleRate <= 0 {
		return errors.New("sample rate must be positive")
	}

	if c.Channels != 1 {
		return errors.New("only mono (1 channel) is supported")
	}

	if c.ChunkBytes < bytesPerSample {
		return errors.New("chunk must hold at least one sample")
	}

	return nil
}

// WithDefaults returns a config with default values applied to zero fields.
func (c EncoderConfig) WithDefaults() EncoderConfig {
	if c.SampleRate == 0 {
		c.SampleRate = DefaultSampleRate
	}

	if c.Channels == 0 {
		c.Channels = DefaultChannels
	}

	if c.ChunkBytes == 0 {
		c.ChunkBytes = DefaultChunkBytes
	}

	return c
}

// PCMDuration converts a count of raw PCM bytes at this config's rate and
// channel count into playback time.
func (c EncoderConfig) PCMDuration(pcmBytes int64) time.Duration {
	c = c.WithDefaults()

	perSecond := int64(c.SampleRate * c.Channels * bytesPerSample)
	if perSecond <= 0 || pcmBytes <= 0 {
		return 0
	}

	return time.Duration(pcmBytes) * time.Second / time.Duration(perSecond)
}
