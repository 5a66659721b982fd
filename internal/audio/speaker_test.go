package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"log/slog"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/dgnsrekt/riser-voice/internal/wav"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakePlayer drains its reader on Play and reports playing until done.
type fakePlayer struct {
	mu      sync.Mutex
	r       io.Reader
	data    []byte
	playing bool
	hold    bool
	closed  bool
	paused  bool
}

func (p *fakePlayer) Play() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.data, _ = io.ReadAll(p.r)
	p.playing = p.hold
}

func (p *fakePlayer) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playing = false
	p.paused = true
}

func (p *fakePlayer) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

func (p *fakePlayer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playing = false
	p.closed = true
	return nil
}

type fakeDevice struct {
	mu      sync.Mutex
	hold    bool
	players []*fakePlayer
}

func (d *fakeDevice) NewPlayer(r io.Reader) player {
	d.mu.Lock()
	defer d.mu.Unlock()
	p := &fakePlayer{r: r, hold: d.hold}
	d.players = append(d.players, p)
	return p
}

func (d *fakeDevice) last() *fakePlayer {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.players) == 0 {
		return nil
	}
	return d.players[len(d.players)-1]
}

func newTestSpeaker(dev *fakeDevice) (*Speaker, *int) {
	opens := 0
	s := NewSpeaker(testLogger())
	s.open = func(sampleRate, channels int) (device, error) {
		opens++
		return dev, nil
	}
	return s, &opens
}

func testClip(t *testing.T, rate int, channels ...[]float32) *Clip {
	t.Helper()
	buf, err := wav.NewBuffer(rate, channels)
	if err != nil {
		t.Fatalf("NewBuffer() error = %v", err)
	}
	return &Clip{ID: "clip", Buffer: buf}
}

func TestSpeaker_Play(t *testing.T) {
	dev := &fakeDevice{}
	s, opens := newTestSpeaker(dev)

	clip := testClip(t, 24000, []float32{0, 0.5}, []float32{-0.5, 1})
	if err := s.Play(context.Background(), clip); err != nil {
		t.Fatalf("Play() error = %v", err)
	}

	p := dev.last()
	if p == nil {
		t.Fatal("no player created")
	}
	if len(p.data) != 16 {
		t.Fatalf("player got %d bytes, want 16", len(p.data))
	}
	want := []float32{0, -0.5, 0.5, 1}
	for i, w := range want {
		got := math.Float32frombits(binary.LittleEndian.Uint32(p.data[i*4:]))
		if got != w {
			t.Errorf("sample %d = %v, want %v", i, got, w)
		}
	}
	if !p.closed {
		t.Error("player not closed after playback")
	}

	if err := s.Play(context.Background(), clip); err != nil {
		t.Fatalf("second Play() error = %v", err)
	}
	if *opens != 1 {
		t.Errorf("device opened %d times, want 1", *opens)
	}
}

func TestSpeaker_FormatMismatch(t *testing.T) {
	s, _ := newTestSpeaker(&fakeDevice{})

	if err := s.Play(context.Background(), testClip(t, 24000, []float32{0})); err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	err := s.Play(context.Background(), testClip(t, 22050, []float32{0}))
	if !errors.Is(err, ErrFormatMismatch) {
		t.Errorf("Play() error = %v, want ErrFormatMismatch", err)
	}
}

func TestSpeaker_Cancel(t *testing.T) {
	dev := &fakeDevice{hold: true}
	s, _ := newTestSpeaker(dev)

	clip := testClip(t, 24000, []float32{0, 0, 0})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Play(ctx, clip)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Play() error = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Play() did not return after cancel")
	}

	if p := dev.last(); !p.paused || !p.closed {
		t.Errorf("player paused=%v closed=%v, want both", p.paused, p.closed)
	}
}

func TestSpeaker_EmptyAndClosed(t *testing.T) {
	dev := &fakeDevice{}
	s, opens := newTestSpeaker(dev)

	if err := s.Play(context.Background(), testClip(t, 24000, []float32{})); err != nil {
		t.Errorf("Play(empty) error = %v", err)
	}
	if *opens != 0 {
		t.Error("empty clip opened the device")
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	err := s.Play(context.Background(), testClip(t, 24000, []float32{0}))
	if !errors.Is(err, ErrSpeakerClosed) {
		t.Errorf("Play() after Close error = %v, want ErrSpeakerClosed", err)
	}
}

func TestFloat32LE(t *testing.T) {
	got := Float32LE([]float32{1, -0.5})
	want := []byte{0x00, 0x00, 0x80, 0x3F, 0x00, 0x00, 0x00, 0xBF}
	if string(got) != string(want) {
		t.Errorf("Float32LE() = % x, want % x", got, want)
	}
}

func TestClip_Duration(t *testing.T) {
	clip := testClip(t, 24000, make([]float32, 12000))
	if clip.Duration() != 500*time.Millisecond {
		t.Errorf("Duration() = %v, want 500ms", clip.Duration())
	}
	var nilClip *Clip
	if nilClip.Duration() != 0 {
		t.Error("nil clip Duration() != 0")
	}
}
