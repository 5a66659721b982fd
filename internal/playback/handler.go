// Package playback renders speech jobs into clips and delivers them to the
// configured output sinks.
package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dgnsrekt/riser-voice/internal/audio"
	"github.com/dgnsrekt/riser-voice/internal/cache"
	"github.com/dgnsrekt/riser-voice/internal/history"
	"github.com/dgnsrekt/riser-voice/internal/metrics"
	"github.com/dgnsrekt/riser-voice/internal/queue"
	"github.com/dgnsrekt/riser-voice/internal/tts"
	"github.com/dgnsrekt/riser-voice/internal/wav"
)

var (
	// ErrNoTTSEngine is returned when no TTS engine is available.
	ErrNoTTSEngine = errors.New("no TTS engine available")
	// ErrSynthesisFailed is returned when the engine could not produce audio.
	ErrSynthesisFailed = errors.New("synthesis failed")
	// ErrTranscodeFailed is returned when engine output cannot be turned into
	// a WAV stream.
	ErrTranscodeFailed = errors.New("transcode failed")
	// ErrClipNotCached is returned when a history item has no stored audio.
	ErrClipNotCached = errors.New("clip not cached")
)

// Sink is an audio output.
type Sink interface {
	Name() string
	// Play blocks until the clip has been delivered or ctx is done.
	Play(ctx context.Context, clip *audio.Clip) error
}

// RenderRequest describes a line to synthesize.
type RenderRequest struct {
	Text     string
	Voice    string
	Language string
	// Engine selects a registered engine; empty means the default.
	Engine string
}

// Options configures a Handler. Every field is optional.
type Options struct {
	History *history.Store
	Cache   *cache.Disk
	Sinks   []Sink
	Metrics *metrics.Metrics
	// SynthTimeout bounds each engine call; zero means no bound.
	SynthTimeout time.Duration
}

// Handler processes speech jobs.
type Handler struct {
	registry *tts.Registry
	history  *history.Store
	cache    *cache.Disk
	sinks    []Sink
	metrics  *metrics.Metrics
	timeout  time.Duration
	logger   *slog.Logger
}

// NewHandler creates a new playback handler.
func NewHandler(registry *tts.Registry, opts Options, logger *slog.Logger) *Handler {
	m := opts.Metrics
	if m == nil {
		m = metrics.New()
	}
	return &Handler{
		registry: registry,
		history:  opts.History,
		cache:    opts.Cache,
		sinks:    opts.Sinks,
		metrics:  m,
		timeout:  opts.SynthTimeout,
		logger:   logger,
	}
}

// Sinks returns the names of the configured outputs.
func (h *Handler) Sinks() []string {
	names := make([]string, len(h.sinks))
	for i, s := range h.sinks {
		names[i] = s.Name()
	}
	return names
}

// Handle renders a job and plays it on every sink. A job with a ClipID
// replays that cached clip instead of synthesizing.
// This is the function passed to queue.SetPlaybackHandler.
func (h *Handler) Handle(ctx context.Context, job *queue.SpeakJob) error {
	if job.ClipID != "" {
		h.logger.Info("replaying cached clip", "job_id", job.ID, "clip_id", job.ClipID)
		return h.Replay(ctx, job.ClipID)
	}

	h.logger.Info("processing speech job",
		"job_id", job.ID,
		"text_length", len(job.Text),
		"voice", job.Voice,
		"language", job.Language,
	)

	clip, err := h.Render(ctx, RenderRequest{
		Text:     job.Text,
		Voice:    job.Voice,
		Language: job.Language,
	})
	if err != nil {
		return err
	}

	if err := h.Play(ctx, clip); err != nil {
		if errors.Is(err, context.Canceled) {
			h.logger.Info("playback interrupted", "job_id", job.ID)
		}
		return err
	}

	h.logger.Info("speech playback complete", "job_id", job.ID, "clip_id", clip.ID)
	return nil
}

// Render synthesizes a line, transcodes it to WAV and records it in the
// history and clip cache. It does not play the clip.
func (h *Handler) Render(ctx context.Context, req RenderRequest) (*audio.Clip, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, tts.ErrEmptyText
	}

	engine, err := h.registry.Resolve(req.Engine)
	if err != nil {
		return nil, errors.Join(ErrNoTTSEngine, err)
	}

	result, err := h.synthesize(ctx, engine, req)
	if err != nil {
		return nil, err
	}

	buf, err := result.Decode()
	if err != nil {
		h.metrics.TranscodeErrors.WithLabelValues(wav.Kind(err)).Inc()
		h.logger.Error("decode failed", "engine", engine.Name(), "bytes", len(result.PCM), "error", err)
		return nil, errors.Join(ErrTranscodeFailed, err)
	}

	data, err := wav.Encode(buf)
	if err != nil {
		h.metrics.TranscodeErrors.WithLabelValues(wav.Kind(err)).Inc()
		h.logger.Error("encode failed", "engine", engine.Name(), "error", err)
		return nil, errors.Join(ErrTranscodeFailed, err)
	}

	clip := &audio.Clip{Buffer: buf, WAV: data}
	h.metrics.AudioSeconds.Observe(buf.Duration())
	h.record(clip, req)

	h.logger.Debug("clip rendered",
		"clip_id", clip.ID,
		"sample_rate", buf.SampleRate(),
		"frames", buf.Len(),
		"wav_bytes", len(data),
	)
	return clip, nil
}

func (h *Handler) synthesize(ctx context.Context, engine tts.Engine, req RenderRequest) (*tts.AudioResult, error) {
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	name := engine.Name()
	h.metrics.SynthesisRequests.WithLabelValues(name, req.Voice, req.Language).Inc()
	h.logger.Debug("synthesizing speech", "engine", name)

	start := time.Now()
	result, err := engine.Synthesize(ctx, tts.SynthesizeRequest{
		Text:     req.Text,
		Voice:    req.Voice,
		Language: req.Language,
	})
	h.metrics.SynthesisDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())

	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		h.metrics.SynthesisFailures.WithLabelValues(name).Inc()
		h.logger.Error("TTS synthesis failed", "engine", name, "error", err)
		return nil, errors.Join(ErrSynthesisFailed, err)
	}
	return result, nil
}

// record adds the generation to history and stores its audio under the new
// history id. Clips whose history entries were trimmed are dropped from the
// cache. Failures here are logged and do not fail the render.
func (h *Handler) record(clip *audio.Clip, req RenderRequest) {
	if h.history == nil {
		return
	}

	item, err := h.history.Add(strings.TrimSpace(req.Text), req.Voice, req.Language)
	if err != nil {
		h.logger.Warn("failed to save history", "error", err)
		return
	}
	clip.ID = item.ID
	h.metrics.HistorySize.Set(float64(h.history.Len()))

	if h.cache == nil {
		return
	}
	if err := h.cache.Put(item.ID, clip.WAV); err != nil {
		h.logger.Warn("failed to cache clip", "clip_id", item.ID, "error", err)
	}
	h.pruneCache()
}

// pruneCache deletes cached clips that no longer have a history entry.
func (h *Handler) pruneCache() {
	items := h.history.List()
	live := make(map[string]struct{}, len(items))
	for _, it := range items {
		live[it.ID] = struct{}{}
	}
	for _, key := range h.cache.Keys() {
		if _, ok := live[key]; ok {
			continue
		}
		if err := h.cache.Delete(key); err != nil {
			h.logger.Warn("failed to drop trimmed clip", "clip_id", key, "error", err)
		}
	}
}

// Play delivers a clip to every sink concurrently and waits for all of them.
func (h *Handler) Play(ctx context.Context, clip *audio.Clip) error {
	if len(h.sinks) == 0 {
		h.logger.Debug("no sinks configured, dropping clip", "clip_id", clip.ID)
		return nil
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, sink := range h.sinks {
		wg.Add(1)
		go func(sink Sink) {
			defer wg.Done()
			if err := sink.Play(ctx, clip); err != nil {
				if !errors.Is(err, context.Canceled) {
					h.logger.Error("sink playback failed", "sink", sink.Name(), "clip_id", clip.ID, "error", err)
				}
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", sink.Name(), err))
				mu.Unlock()
			}
		}(sink)
	}
	wg.Wait()

	return errors.Join(errs...)
}

// Cached returns the stored clip for a history id.
func (h *Handler) Cached(id string) (*audio.Clip, error) {
	if h.cache == nil {
		return nil, ErrClipNotCached
	}

	data, ok := h.cache.Get(id)
	if !ok {
		h.metrics.CacheMisses.Inc()
		return nil, ErrClipNotCached
	}
	h.metrics.CacheHits.Inc()

	buf, err := wav.Parse(data)
	if err != nil {
		h.logger.Warn("dropping unreadable cached clip", "clip_id", id, "error", err)
		h.cache.Delete(id)
		return nil, errors.Join(ErrClipNotCached, err)
	}
	return &audio.Clip{ID: id, Buffer: buf, WAV: data}, nil
}

// Replay plays a cached history clip on every sink.
func (h *Handler) Replay(ctx context.Context, id string) error {
	clip, err := h.Cached(id)
	if err != nil {
		return err
	}
	return h.Play(ctx, clip)
}

// Forget removes a history item and its cached clip.
func (h *Handler) Forget(id string) error {
	if h.history == nil {
		return history.ErrNotFound
	}
	if err := h.history.Delete(id); err != nil {
		return err
	}
	if h.cache != nil {
		if err := h.cache.Delete(id); err != nil {
			h.logger.Warn("failed to delete cached clip", "clip_id", id, "error", err)
		}
	}
	h.metrics.HistorySize.Set(float64(h.history.Len()))
	return nil
}

// ForgetAll clears the history and the clip cache.
func (h *Handler) ForgetAll() error {
	if h.history == nil {
		return nil
	}
	if err := h.history.Clear(); err != nil {
		return err
	}
	if h.cache != nil {
		if err := h.cache.Clear(); err != nil {
			h.logger.Warn("failed to clear clip cache", "error", err)
		}
	}
	h.metrics.HistorySize.Set(0)
	return nil
}

// HasClip reports whether audio is stored for a history id.
func (h *Handler) HasClip(id string) bool {
	return h.cache != nil && h.cache.Contains(id)
}

// History returns the recorded generations, newest first.
func (h *Handler) History() []history.Item {
	if h.history == nil {
		return nil
	}
	return h.history.List()
}
