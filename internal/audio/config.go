package audio

import (
	"github.com/gen2brain/malgo"
)

// DeviceConfig selects the capture format handed to malgo.
type DeviceConfig struct {
	Format           malgo.FormatType
	CaptureChannels  int
	PlaybackChannels int
	SampleRate       int
}

// DefaultDeviceConfig captures signed 16-bit mono PCM at DefaultSampleRate,
// the layout the MP3 encoder and the transcription providers expect.
func DefaultDeviceConfig() *DeviceConfig {
	return &DeviceConfig{
		Format:          malgo.FormatS16,
		CaptureChannels: DefaultChannels,
		SampleRate:      DefaultSampleRate,
	}
}
