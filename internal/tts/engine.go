package tts

import (
	"context"
	"errors"

	"github.com/dgnsrekt/riser-voice/internal/wav"
)

var (
	// ErrEmptyText is returned when a request has no text to speak.
	ErrEmptyText = errors.New("empty text")
	// ErrSynthesisFailed is returned when TTS synthesis fails.
	ErrSynthesisFailed = errors.New("TTS synthesis failed")
	// ErrEmptySynthesis is returned when the engine answers without audio.
	ErrEmptySynthesis = errors.New("synthesis empty")
)

// SynthesizeRequest contains parameters for TTS synthesis.
type SynthesizeRequest struct {
	Text     string
	Voice    string
	Language string
}

// AudioResult represents synthesized audio output.
type AudioResult struct {
	// PCM contains raw signed 16-bit little-endian interleaved samples.
	PCM []byte
	// SampleRate is the audio sample rate in Hz.
	SampleRate int
	// Channels is the number of audio channels.
	Channels int
}

// Decode converts the raw PCM into a sample buffer.
func (a *AudioResult) Decode() (*wav.Buffer, error) {
	return wav.DecodePCM(a.PCM, a.SampleRate, a.Channels)
}

// Engine is the interface for text-to-speech synthesis.
type Engine interface {
	// Synthesize converts text to audio.
	Synthesize(ctx context.Context, req SynthesizeRequest) (*AudioResult, error)
	// Name returns the engine identifier.
	Name() string
}
