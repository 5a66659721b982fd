// Package wav converts between base64 PCM payloads, decoded sample buffers
// and canonical 16-bit PCM WAV streams.
package wav

import (
	"errors"
	"fmt"
	"math"
)

// WAV format constants.
const (
	// HeaderSize is the size of a canonical WAV file header in bytes.
	HeaderSize = 44

	// FormatPCM is the audio format code for uncompressed PCM.
	FormatPCM = 1

	// BitsPerSample is the only bit depth this package reads or writes.
	BitsPerSample = 16

	bytesPerSample = BitsPerSample / 8
	fmtChunkSize   = 16
)

// Speech API output format.
const (
	// GeminiSampleRate is the sample rate of Gemini TTS audio (24000 Hz).
	GeminiSampleRate = 24000

	// GeminiChannels is the channel count of Gemini TTS audio (mono).
	GeminiChannels = 1
)

// DecodeError reports a payload that is not valid base64.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return "wav: invalid base64 payload: " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// FormatError reports sample data whose shape does not match its declared
// layout, such as a byte count that is not a whole number of frames.
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string {
	return "wav: " + e.Reason
}

// Kind names the class of a transcoding error: "decode" for a DecodeError,
// "format" for a FormatError and "" for anything else.
func Kind(err error) string {
	var de *DecodeError
	var fe *FormatError
	switch {
	case errors.As(err, &de):
		return "decode"
	case errors.As(err, &fe):
		return "format"
	default:
		return ""
	}
}

func formatErrorf(format string, args ...any) *FormatError {
	return &FormatError{Reason: fmt.Sprintf(format, args...)}
}

// Buffer is a decoded, immutable multi-channel sample buffer. Samples are
// normalized floats in [-1.0, 1.0].
type Buffer struct {
	sampleRate int
	channels   [][]float32
}

// NewBuffer builds a Buffer from per-channel samples. The slices are copied.
// Every channel must have the same length.
func NewBuffer(sampleRate int, channels [][]float32) (*Buffer, error) {
	if err := checkLayout(sampleRate, len(channels)); err != nil {
		return nil, err
	}
	frames := len(channels[0])
	data := make([][]float32, len(channels))
	for i, ch := range channels {
		if len(ch) != frames {
			return nil, formatErrorf("channel %d has %d samples, channel 0 has %d", i, len(ch), frames)
		}
		data[i] = append([]float32(nil), ch...)
	}
	return &Buffer{sampleRate: sampleRate, channels: data}, nil
}

// SampleRate returns the sample rate in Hz.
func (b *Buffer) SampleRate() int { return b.sampleRate }

// NumChannels returns the number of channels.
func (b *Buffer) NumChannels() int { return len(b.channels) }

// Len returns the number of frames (samples per channel).
func (b *Buffer) Len() int {
	if len(b.channels) == 0 {
		return 0
	}
	return len(b.channels[0])
}

// Duration returns the playback length of the buffer.
func (b *Buffer) Duration() float64 {
	if b.sampleRate == 0 {
		return 0
	}
	return float64(b.Len()) / float64(b.sampleRate)
}

// ChannelData returns a copy of the samples for channel i.
func (b *Buffer) ChannelData(i int) []float32 {
	return append([]float32(nil), b.channels[i]...)
}

// Interleaved returns the samples in frame order, one sample per channel per
// frame, as expected by most playback devices.
func (b *Buffer) Interleaved() []float32 {
	n := len(b.channels)
	out := make([]float32, b.Len()*n)
	for c, ch := range b.channels {
		for i, s := range ch {
			out[i*n+c] = s
		}
	}
	return out
}

// checkLayout validates a sample rate and channel count against what the
// WAV header fields can represent.
func checkLayout(sampleRate, channels int) error {
	if channels < 1 {
		return formatErrorf("channel count must be at least 1, got %d", channels)
	}
	if channels > math.MaxUint16 {
		return formatErrorf("channel count %d exceeds %d", channels, math.MaxUint16)
	}
	if sampleRate <= 0 {
		return formatErrorf("sample rate must be positive, got %d", sampleRate)
	}
	if uint64(sampleRate)*uint64(channels)*bytesPerSample > math.MaxUint32 {
		return formatErrorf("byte rate for %d Hz x %d channels overflows", sampleRate, channels)
	}
	return nil
}
