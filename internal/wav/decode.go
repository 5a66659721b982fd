package wav

import (
	"encoding/base64"
	"encoding/binary"
	"strings"
)

// Decode turns a base64 payload of interleaved signed 16-bit little-endian
// PCM into a Buffer. ASCII whitespace in the payload is ignored.
func Decode(payload string, sampleRate, channels int) (*Buffer, error) {
	raw, err := base64.StdEncoding.DecodeString(stripSpace(payload))
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	return DecodePCM(raw, sampleRate, channels)
}

// DecodePCM de-interleaves raw signed 16-bit little-endian PCM into a Buffer,
// normalizing each sample by 1/32768. The byte length must be a whole number
// of frames; the data is never truncated or padded.
func DecodePCM(pcm []byte, sampleRate, channels int) (*Buffer, error) {
	if err := checkLayout(sampleRate, channels); err != nil {
		return nil, err
	}

	frameBytes := bytesPerSample * channels
	if len(pcm)%frameBytes != 0 {
		return nil, formatErrorf("%d bytes is not a multiple of the %d-byte frame size", len(pcm), frameBytes)
	}

	frames := len(pcm) / frameBytes
	data := make([][]float32, channels)
	for c := range data {
		data[c] = make([]float32, frames)
	}

	for i := 0; i < frames; i++ {
		for c := 0; c < channels; c++ {
			off := (i*channels + c) * bytesPerSample
			s := int16(binary.LittleEndian.Uint16(pcm[off:]))
			data[c][i] = float32(s) / 32768.0
		}
	}

	return &Buffer{sampleRate: sampleRate, channels: data}, nil
}

func stripSpace(s string) string {
	if !strings.ContainsAny(s, " \t\n\r\f") {
		return s
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r', '\f':
			return -1
		}
		return r
	}, s)
}
