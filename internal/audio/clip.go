// Package audio holds the playable clip type and the local playback and
// format conversion helpers shared by the output sinks.
package audio

import (
	"time"

	"github.com/dgnsrekt/riser-voice/internal/wav"
)

// Clip is one rendered voice line, ready for playback.
type Clip struct {
	// ID is the history id of the generation, or empty when unrecorded.
	ID     string
	Buffer *wav.Buffer
	// WAV is the canonical encoding of Buffer.
	WAV []byte
}

// Duration returns the playback length of the clip.
func (c *Clip) Duration() time.Duration {
	if c == nil || c.Buffer == nil {
		return 0
	}
	return time.Duration(c.Buffer.Duration() * float64(time.Second))
}
