package wav

import (
	"math"
)

// Encode serializes a Buffer as a canonical RIFF/WAVE stream: a 44-byte
// header followed by interleaved signed 16-bit little-endian PCM. A buffer
// with zero frames yields a header-only stream.
func Encode(buf *Buffer) ([]byte, error) {
	if buf == nil {
		return nil, formatErrorf("nil buffer")
	}
	channels := len(buf.channels)
	if err := checkLayout(buf.sampleRate, channels); err != nil {
		return nil, err
	}
	frames := len(buf.channels[0])
	for i, ch := range buf.channels {
		if len(ch) != frames {
			return nil, formatErrorf("channel %d has %d samples, channel 0 has %d", i, len(ch), frames)
		}
	}

	size := uint64(frames)*uint64(channels)*bytesPerSample + HeaderSize
	if size > math.MaxUint32 {
		return nil, formatErrorf("%d frames x %d channels does not fit in a WAV stream", frames, channels)
	}

	w := &writer{buf: make([]byte, size)}
	w.header(buf.sampleRate, channels, uint32(size))
	for i := 0; i < frames; i++ {
		for _, ch := range buf.channels {
			w.putInt16(quantize(ch[i]))
		}
	}

	return w.buf, nil
}

// quantize maps a float sample to int16. Samples are clamped to [-1, 1];
// negatives scale by 32768 and non-negatives by 32767. Non-negative products
// are rounded up so a value that came from DecodePCM maps back to its
// original integer. A side effect is that any positive value below 1/32767,
// even 1e-9, encodes as 1 rather than 0.
func quantize(s float32) int16 {
	v := float64(s)
	switch {
	case math.IsNaN(v):
		return 0
	case v > 1:
		v = 1
	case v < -1:
		v = -1
	}
	if v < 0 {
		return int16(v * 32768)
	}
	return int16(math.Ceil(v * 32767))
}

// writer is a little-endian cursor over a preallocated output slice.
type writer struct {
	buf []byte
	pos int
}

func (w *writer) header(sampleRate, channels int, size uint32) {
	w.putTag("RIFF")
	w.putUint32(size - 8)
	w.putTag("WAVE")

	w.putTag("fmt ")
	w.putUint32(fmtChunkSize)
	w.putUint16(FormatPCM)
	w.putUint16(uint16(channels))
	w.putUint32(uint32(sampleRate))
	w.putUint32(uint32(sampleRate * bytesPerSample * channels))
	w.putUint16(uint16(bytesPerSample * channels))
	w.putUint16(BitsPerSample)

	w.putTag("data")
	w.putUint32(size - HeaderSize)
}

func (w *writer) putTag(tag string) {
	w.pos += copy(w.buf[w.pos:w.pos+4], tag)
}

func (w *writer) putUint16(v uint16) {
	PutLE16(w.buf[w.pos:], v)
	w.pos += 2
}

func (w *writer) putUint32(v uint32) {
	PutLE32(w.buf[w.pos:], v)
	w.pos += 4
}

func (w *writer) putInt16(v int16) {
	w.putUint16(uint16(v))
}

// PutLE16 writes a uint16 value in little-endian format to a byte slice.
func PutLE16(b []byte, v uint16) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
}

// PutLE32 writes a uint32 value in little-endian format to a byte slice.
func PutLE32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}
