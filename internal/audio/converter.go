package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
)

const (
	// DiscordSampleRate is the required sample rate for Discord voice.
	DiscordSampleRate = 48000
	// DiscordChannels is the required number of channels for Discord voice.
	DiscordChannels = 2
	// DiscordFrameSize is the number of samples per channel in one 20ms frame.
	DiscordFrameSize = 960
	// DiscordFrameBytes is the size of one frame of s16le stereo PCM.
	DiscordFrameBytes = DiscordFrameSize * DiscordChannels * 2
)

var (
	// ErrFFmpegNotFound is returned when ffmpeg is not installed.
	ErrFFmpegNotFound = errors.New("ffmpeg not found in PATH")
	// ErrConversionFailed is returned when ffmpeg conversion fails.
	ErrConversionFailed = errors.New("audio conversion failed")
	// ErrEmptyInput is returned when there is nothing to convert.
	ErrEmptyInput = errors.New("empty input data")
)

// Converter resamples WAV streams with ffmpeg.
type Converter struct {
	ffmpegPath string
}

// NewConverter locates ffmpeg on PATH.
func NewConverter() (*Converter, error) {
	path, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, ErrFFmpegNotFound
	}
	return &Converter{ffmpegPath: path}, nil
}

// NewConverterWithPath creates a converter with a specific ffmpeg path.
func NewConverterWithPath(path string) *Converter {
	return &Converter{ffmpegPath: path}
}

// Resample converts a WAV stream to raw s16le PCM at the given rate and
// channel count.
func (c *Converter) Resample(ctx context.Context, wavData []byte, sampleRate, channels int) ([]byte, error) {
	if len(wavData) == 0 {
		return nil, ErrEmptyInput
	}

	args := []string{
		"-loglevel", "error",
		"-f", "wav",
		"-i", "pipe:0",
		"-ar", strconv.Itoa(sampleRate),
		"-ac", strconv.Itoa(channels),
		"-f", "s16le",
		"pipe:1",
	}

	cmd := exec.CommandContext(ctx, c.ffmpegPath, args...)
	cmd.Stdin = bytes.NewReader(wavData)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v: %s", ErrConversionFailed, err, bytes.TrimSpace(stderr.Bytes()))
	}

	return stdout.Bytes(), nil
}

// ToDiscordPCM converts a WAV stream to 48 kHz stereo s16le PCM.
func (c *Converter) ToDiscordPCM(ctx context.Context, wavData []byte) ([]byte, error) {
	return c.Resample(ctx, wavData, DiscordSampleRate, DiscordChannels)
}
