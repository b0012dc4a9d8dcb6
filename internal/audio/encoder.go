package audio

import (
	"bytes"
	"context"
	"fmt"

	mp3encoder "github.com/braheezy/shine-mp3/pkg/mp3"
)

// Encoder turns a finished S16LE mono capture into MP3 before upload.
type Encoder struct {
	config EncoderConfig
}

// NewEncoder validates config after filling in defaults.
func NewEncoder(config EncoderConfig) (*Encoder, error) {
	config = config.WithDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid encoder config: %w", err)
	}

	return &Encoder{config: config}, nil
}

// Encode compresses pcm chunk by chunk, checking ctx between chunks. Empty
// input yields empty output.
func (e *Encoder) Encode(ctx context.Context, pcm []byte) ([]byte, error) {
	if len(pcm) < bytesPerSample {
		return nil, nil
	}

	// shine mishandles mono input, so samples are fed as L=R stereo.
	enc := mp3encoder.NewEncoder(e.config.SampleRate, 2)
	out := bytes.NewBuffer(make([]byte, 0, len(pcm)/8))

	for chunk := range chunks(pcm, e.config.ChunkBytes) {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("encode cancelled: %w", err)
		}

		if err := enc.Write(out, stereo(BytesToInt16(chunk))); err != nil {
			return nil, fmt.Errorf("encode mp3: %w", err)
		}
	}

	return out.Bytes(), nil
}

// EncodeMP3 encodes pcm at sampleRate with default chunking. It matches
// EncodeFunc.
func EncodeMP3(ctx context.Context, pcm []byte, sampleRate int) ([]byte, error) {
	enc, err := NewEncoder(EncoderConfig{SampleRate: sampleRate})
	if err != nil {
		return nil, err
	}

	return enc.Encode(ctx, pcm)
}

// chunks splits pcm on sample boundaries. A trailing odd byte is dropped.
func chunks(pcm []byte, size int) func(yield func([]byte) bool) {
	size -= size % bytesPerSample
	size = max(size, bytesPerSample)
	usable := len(pcm) - len(pcm)%bytesPerSample

	return func(yield func([]byte) bool) {
		for start := 0; start < usable; start += size {
			if !yield(pcm[start:min(start+size, usable)]) {
				return
			}
		}
	}
}

func stereo(mono []int16) []int16 {
	out := make([]int16, len(mono)*2)
	for i, s := range mono {
		out[2*i] = s
		out[2*i+1] = s
	}

	return out
}
