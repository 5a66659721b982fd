package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/dgnsrekt/riser-voice/internal/wav"
)

func TestSayText(t *testing.T) {
	got, err := sayText(strings.NewReader("  from stdin\n"), []string{"-"})
	if err != nil {
		t.Fatalf("sayText() error = %v", err)
	}
	if got != "from stdin" {
		t.Errorf("sayText(-) = %q, want %q", got, "from stdin")
	}

	got, err = sayText(nil, []string{"[laugh]", "Believe", "it!"})
	if err != nil {
		t.Fatalf("sayText() error = %v", err)
	}
	if got != "[laugh] Believe it!" {
		t.Errorf("sayText(args) = %q", got)
	}
}

func TestTranscode(t *testing.T) {
	data, err := transcode("AAAA\nQA==", 24000, 1)
	if err != nil {
		t.Fatalf("transcode() error = %v", err)
	}
	if len(data) != wav.HeaderSize+4 {
		t.Errorf("transcode() = %d bytes, want %d", len(data), wav.HeaderSize+4)
	}
	if !bytes.HasPrefix(data, []byte("RIFF")) {
		t.Error("missing RIFF tag")
	}

	if _, err := transcode("AAAA", 24000, 1); wav.Kind(err) != "format" {
		t.Errorf("odd byte count: Kind = %q, want format", wav.Kind(err))
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"exactly ten", 11, "exactly ten"},
		{"this is far too long", 8, "this is…"},
		{"あいうえおかきく", 4, "あいう…"},
	}

	for _, tt := range tests {
		if got := truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestShortID(t *testing.T) {
	if got := shortID("0123456789abcdef"); got != "01234567" {
		t.Errorf("shortID() = %q", got)
	}
	if got := shortID("abc"); got != "abc" {
		t.Errorf("shortID(short) = %q", got)
	}
}
