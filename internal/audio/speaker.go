package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// speakerPollInterval is how often a playing clip is checked for completion.
const speakerPollInterval = 10 * time.Millisecond

var (
	// ErrFormatMismatch is returned for a clip whose rate or channel count
	// differs from the format the output device was opened with.
	ErrFormatMismatch = errors.New("clip format does not match speaker")
	// ErrSpeakerClosed is returned by Play after Close.
	ErrSpeakerClosed = errors.New("speaker closed")
)

// player is the subset of *oto.Player the speaker drives.
type player interface {
	Play()
	Pause()
	IsPlaying() bool
	Close() error
}

// device opens players for one fixed output format.
type device interface {
	NewPlayer(r io.Reader) player
}

// openFunc opens a device for the given format.
type openFunc func(sampleRate, channels int) (device, error)

// Speaker plays clips on the local audio output. The device is opened on the
// first clip and keeps that clip's format for the life of the process, since
// oto allows one context per process. Only one clip plays at a time; a clip
// started while another is playing stops the earlier one.
type Speaker struct {
	open   openFunc
	logger *slog.Logger

	mu         sync.Mutex
	dev        device
	sampleRate int
	channels   int
	current    player
	closed     bool
}

// NewSpeaker creates a speaker backed by oto.
func NewSpeaker(logger *slog.Logger) *Speaker {
	return &Speaker{open: openOto, logger: logger}
}

// Name returns the sink identifier.
func (s *Speaker) Name() string {
	return "speaker"
}

// Play blocks until the clip has played or ctx is done.
func (s *Speaker) Play(ctx context.Context, clip *Clip) error {
	if clip == nil || clip.Buffer == nil {
		return fmt.Errorf("%w: nil clip", ErrConversionFailed)
	}
	if clip.Buffer.Len() == 0 {
		return nil
	}

	p, err := s.start(clip)
	if err != nil {
		return err
	}
	defer s.finish(p)

	ticker := time.NewTicker(speakerPollInterval)
	defer ticker.Stop()

	for p.IsPlaying() {
		select {
		case <-ctx.Done():
			p.Pause()
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

func (s *Speaker) start(clip *Clip) (player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSpeakerClosed
	}

	rate, channels := clip.Buffer.SampleRate(), clip.Buffer.NumChannels()
	if s.dev == nil {
		dev, err := s.open(rate, channels)
		if err != nil {
			return nil, err
		}
		s.dev, s.sampleRate, s.channels = dev, rate, channels
		s.logger.Info("speaker opened", "sample_rate", rate, "channels", channels)
	}
	if rate != s.sampleRate || channels != s.channels {
		return nil, fmt.Errorf("%w: clip is %d Hz x %d, speaker is %d Hz x %d",
			ErrFormatMismatch, rate, channels, s.sampleRate, s.channels)
	}

	if s.current != nil {
		s.current.Pause()
		s.current.Close()
	}

	p := s.dev.NewPlayer(bytes.NewReader(Float32LE(clip.Buffer.Interleaved())))
	s.current = p
	p.Play()

	s.logger.Debug("speaker playing", "clip_id", clip.ID, "duration", clip.Duration())
	return p, nil
}

func (s *Speaker) finish(p player) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == p {
		s.current = nil
		if err := p.Close(); err != nil {
			s.logger.Warn("failed to close player", "error", err)
		}
	}
}

// Close stops any playing clip. The device itself stays open.
func (s *Speaker) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	if s.current == nil {
		return nil
	}
	s.current.Pause()
	err := s.current.Close()
	s.current = nil
	return err
}

// Float32LE encodes samples as little-endian IEEE 754 floats, the layout of
// oto.FormatFloat32LE.
func Float32LE(samples []float32) []byte {
	out := make([]byte, len(samples)*4)
	for i, v := range samples {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

type otoDevice struct {
	ctx *oto.Context
}

func (d otoDevice) NewPlayer(r io.Reader) player {
	return d.ctx.NewPlayer(r)
}

func openOto(sampleRate, channels int) (device, error) {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatFloat32LE,
	})
	if err != nil {
		return nil, fmt.Errorf("open audio output: %w", err)
	}
	<-ready
	return otoDevice{ctx: ctx}, nil
}
