package domain

// AudioBuffer is a finished, in-memory recording ready for upload.
type AudioBuffer struct {
	Data        []byte
	ContentType string
	FileName    string
	// Duration is the recorded time in whole seconds, pauses excluded.
	Duration int
}

// Len returns the number of encoded bytes.
func (b *AudioBuffer) Len() int {
	if b == nil {
		return 0
	}

	return len(b.Data)
}
