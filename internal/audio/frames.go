package audio

import (
	"encoding/binary"
	"io"
)

// FrameReader splits s16le PCM into fixed-size frames of int16 samples.
// A trailing partial frame is padded with silence.
type FrameReader struct {
	data      []byte
	frameSize int
	offset    int
}

// NewFrameReader reads frames of frameSamples interleaved samples.
func NewFrameReader(pcm []byte, frameSamples int) *FrameReader {
	return &FrameReader{data: pcm, frameSize: frameSamples}
}

// NewDiscordFrameReader reads 20ms frames of 48 kHz stereo PCM.
func NewDiscordFrameReader(pcm []byte) *FrameReader {
	return NewFrameReader(pcm, DiscordFrameSize*DiscordChannels)
}

// ReadFrame returns the next frame, or io.EOF when the data is exhausted.
func (r *FrameReader) ReadFrame() ([]int16, error) {
	// An odd trailing byte cannot form a sample.
	if len(r.data)-r.offset < 2 {
		return nil, io.EOF
	}

	frame := make([]int16, r.frameSize)
	for i := range frame {
		if r.offset+2 > len(r.data) {
			break
		}
		frame[i] = int16(binary.LittleEndian.Uint16(r.data[r.offset:]))
		r.offset += 2
	}
	return frame, nil
}

// Frames returns the number of frames left, counting a padded partial frame.
func (r *FrameReader) Frames() int {
	samples := (len(r.data) - r.offset) / 2
	return (samples + r.frameSize - 1) / r.frameSize
}

// Reset rewinds the reader to the first frame.
func (r *FrameReader) Reset() {
	r.offset = 0
}
