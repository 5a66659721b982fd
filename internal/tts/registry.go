package tts

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrEngineNotFound is returned when an engine is not registered.
	ErrEngineNotFound = errors.New("TTS engine not found")
	// ErrEngineExists is returned when trying to register a duplicate engine.
	ErrEngineExists = errors.New("TTS engine already registered")
)

// Registry holds the synthesis backends the service can route a request to,
// keyed by Engine.Name ("gemini", "piper"). Requests that name no engine use
// the default, which serve sets from TTS_ENGINE.
type Registry struct {
	mu      sync.RWMutex
	engines map[string]Engine
	def     string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		engines: make(map[string]Engine),
	}
}

// Register adds an engine under its name. The first engine registered
// becomes the default until SetDefault picks another.
func (r *Registry) Register(engine Engine) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := engine.Name()
	if _, exists := r.engines[name]; exists {
		return fmt.Errorf("%w: %s", ErrEngineExists, name)
	}

	r.engines[name] = engine
	if r.def == "" {
		r.def = name
	}
	return nil
}

// Get returns the engine registered as name.
func (r *Registry) Get(name string) (Engine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	engine, exists := r.engines[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrEngineNotFound, name)
	}
	return engine, nil
}

// Default returns the engine used when a request names none.
func (r *Registry) Default() (Engine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.def == "" {
		return nil, fmt.Errorf("%w: no engines registered", ErrEngineNotFound)
	}
	return r.engines[r.def], nil
}

// SetDefault makes name the default engine. It fails when the engine did not
// register, e.g. TTS_ENGINE=piper without a PIPER_MODEL.
func (r *Registry) SetDefault(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.engines[name]; !exists {
		return fmt.Errorf("%w: %s", ErrEngineNotFound, name)
	}
	r.def = name
	return nil
}

// Resolve returns the engine a request asked for, or the default when the
// request left the engine empty.
func (r *Registry) Resolve(name string) (Engine, error) {
	if name == "" {
		return r.Default()
	}
	return r.Get(name)
}

// List returns the registered engine names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.engines))
	for name := range r.engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
