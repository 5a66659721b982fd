package wav

import (
	"encoding/binary"
)

// Parse reads a 16-bit PCM WAV stream back into a Buffer. Chunks other than
// "fmt " and "data" are skipped.
func Parse(data []byte) (*Buffer, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, formatErrorf("not a RIFF/WAVE stream")
	}

	var (
		channels   int
		sampleRate int
		haveFormat bool
	)

	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4:]))
		body := pos + 8
		if size < 0 || body+size > len(data) {
			return nil, formatErrorf("chunk %q overruns the stream", id)
		}

		switch id {
		case "fmt ":
			if size < fmtChunkSize {
				return nil, formatErrorf("fmt chunk is %d bytes", size)
			}
			format := binary.LittleEndian.Uint16(data[body:])
			bits := binary.LittleEndian.Uint16(data[body+14:])
			if format != FormatPCM {
				return nil, formatErrorf("unsupported audio format %d", format)
			}
			if bits != BitsPerSample {
				return nil, formatErrorf("unsupported bit depth %d", bits)
			}
			channels = int(binary.LittleEndian.Uint16(data[body+2:]))
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4:]))
			haveFormat = true
		case "data":
			if !haveFormat {
				return nil, formatErrorf("data chunk before fmt chunk")
			}
			return DecodePCM(data[body:body+size], sampleRate, channels)
		}

		// Chunks are word aligned.
		pos = body + size + size%2
	}

	return nil, formatErrorf("missing data chunk")
}
