package tts

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// mockEngine is a test implementation of Engine.
type mockEngine struct {
	name string
}

func (m *mockEngine) Name() string {
	return m.name
}

func (m *mockEngine) Synthesize(ctx context.Context, req SynthesizeRequest) (*AudioResult, error) {
	return &AudioResult{
		PCM:        []byte{0x00, 0x00, 0x00, 0x40},
		SampleRate: 24000,
		Channels:   1,
	}, nil
}

func TestRegistry_Register(t *testing.T) {
	reg := NewRegistry()
	engine := &mockEngine{name: "test"}

	err := reg.Register(engine)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Verify engine is registered
	got, err := reg.Get("test")
	if err != nil {
		t.Fatalf("failed to get engine: %v", err)
	}
	if got.Name() != "test" {
		t.Errorf("expected name 'test', got '%s'", got.Name())
	}
}

func TestRegistry_RegisterDuplicate(t *testing.T) {
	reg := NewRegistry()
	engine := &mockEngine{name: "test"}

	if err := reg.Register(engine); err != nil {
		t.Fatalf("first register failed: %v", err)
	}

	err := reg.Register(engine)
	if !errors.Is(err, ErrEngineExists) {
		t.Errorf("expected ErrEngineExists, got %v", err)
	}
}

func TestRegistry_GetNotFound(t *testing.T) {
	reg := NewRegistry()

	_, err := reg.Get("nonexistent")
	if !errors.Is(err, ErrEngineNotFound) {
		t.Errorf("expected ErrEngineNotFound, got %v", err)
	}
}

func TestRegistry_Default(t *testing.T) {
	reg := NewRegistry()

	// No default initially
	_, err := reg.Default()
	if !errors.Is(err, ErrEngineNotFound) {
		t.Errorf("expected ErrEngineNotFound for empty registry, got %v", err)
	}

	// First engine becomes default
	engine1 := &mockEngine{name: "first"}
	if err := reg.Register(engine1); err != nil {
		t.Fatalf("failed to register: %v", err)
	}

	def, err := reg.Default()
	if err != nil {
		t.Fatalf("failed to get default: %v", err)
	}
	if def.Name() != "first" {
		t.Errorf("expected default 'first', got '%s'", def.Name())
	}

	// Second engine doesn't change default
	engine2 := &mockEngine{name: "second"}
	if err := reg.Register(engine2); err != nil {
		t.Fatalf("failed to register second: %v", err)
	}

	def, err = reg.Default()
	if err != nil {
		t.Fatalf("failed to get default after second register: %v", err)
	}
	if def.Name() != "first" {
		t.Errorf("expected default still 'first', got '%s'", def.Name())
	}
}

func TestRegistry_SetDefault(t *testing.T) {
	reg := NewRegistry()

	engine1 := &mockEngine{name: "first"}
	engine2 := &mockEngine{name: "second"}

	reg.Register(engine1)
	reg.Register(engine2)

	// Change default
	err := reg.SetDefault("second")
	if err != nil {
		t.Fatalf("failed to set default: %v", err)
	}

	def, err := reg.Default()
	if err != nil {
		t.Fatalf("failed to get default: %v", err)
	}
	if def.Name() != "second" {
		t.Errorf("expected default 'second', got '%s'", def.Name())
	}
}

func TestRegistry_SetDefaultNotFound(t *testing.T) {
	reg := NewRegistry()

	err := reg.SetDefault("nonexistent")
	if !errors.Is(err, ErrEngineNotFound) {
		t.Errorf("expected ErrEngineNotFound, got %v", err)
	}
}

func TestRegistry_List(t *testing.T) {
	reg := NewRegistry()

	// Empty list
	names := reg.List()
	if len(names) != 0 {
		t.Errorf("expected empty list, got %v", names)
	}

	// Add engines
	reg.Register(&mockEngine{name: "alpha"})
	reg.Register(&mockEngine{name: "beta"})
	reg.Register(&mockEngine{name: "gamma"})

	names = reg.List()
	if len(names) != 3 {
		t.Errorf("expected 3 engines, got %d", len(names))
	}

	for i, expected := range []string{"alpha", "beta", "gamma"} {
		if names[i] != expected {
			t.Errorf("names[%d] = %s, want %s", i, names[i], expected)
		}
	}
}

func TestRegistry_Resolve(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&mockEngine{name: "gemini"})
	reg.Register(&mockEngine{name: "piper"})

	got, err := reg.Resolve("")
	if err != nil {
		t.Fatalf("Resolve(\"\") error = %v", err)
	}
	if got.Name() != "gemini" {
		t.Errorf("Resolve(\"\") = %s, want gemini", got.Name())
	}

	got, err = reg.Resolve("piper")
	if err != nil {
		t.Fatalf("Resolve(piper) error = %v", err)
	}
	if got.Name() != "piper" {
		t.Errorf("Resolve(piper) = %s, want piper", got.Name())
	}

	if _, err := reg.Resolve("espeak"); !errors.Is(err, ErrEngineNotFound) {
		t.Errorf("Resolve(espeak) error = %v, want ErrEngineNotFound", err)
	}
}

func TestRegistry_ErrorsNameEngine(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&mockEngine{name: "gemini"})

	if err := reg.Register(&mockEngine{name: "gemini"}); err == nil || !strings.Contains(err.Error(), "gemini") {
		t.Errorf("Register(gemini) twice error = %v, want it to name gemini", err)
	}
	if err := reg.SetDefault("piper"); err == nil || !strings.Contains(err.Error(), "piper") {
		t.Errorf("SetDefault(piper) error = %v, want it to name piper", err)
	}
}

func TestAudioResult_Decode(t *testing.T) {
	result, _ := (&mockEngine{name: "mock"}).Synthesize(context.Background(), SynthesizeRequest{Text: "hi"})

	buf, err := result.Decode()
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if buf.Len() != 2 {
		t.Errorf("Len() = %d, want 2", buf.Len())
	}
	if got := buf.ChannelData(0)[1]; got != 0.5 {
		t.Errorf("sample 1 = %v, want 0.5", got)
	}

	bad := &AudioResult{PCM: []byte{1, 2, 3}, SampleRate: 24000, Channels: 1}
	if _, err := bad.Decode(); err == nil {
		t.Error("Decode() expected error for odd byte count")
	}
}
