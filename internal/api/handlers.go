package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dgnsrekt/riser-voice/internal/history"
	"github.com/dgnsrekt/riser-voice/internal/playback"
	"github.com/dgnsrekt/riser-voice/internal/queue"
	"github.com/dgnsrekt/riser-voice/internal/tts"
	"github.com/dgnsrekt/riser-voice/internal/wav"
)

const (
	maxJSONBody      = 1 << 20
	maxTranscodeBody = 64 << 20
)

// SpeakRequest represents the request body for /v1/speak.
type SpeakRequest struct {
	Text      string `json:"text"`
	Voice     string `json:"voice,omitempty"`
	Language  string `json:"language,omitempty"`
	Interrupt bool   `json:"interrupt,omitempty"`
	TTLMS     int    `json:"ttl_ms,omitempty"`
	DedupeKey string `json:"dedupe_key,omitempty"`
}

// SpeakResponse represents the response body for /v1/speak.
type SpeakResponse struct {
	JobID   string `json:"job_id"`
	Message string `json:"message"`
}

// SynthesizeRequest represents the request body for /v1/synthesize.
type SynthesizeRequest struct {
	Text     string `json:"text"`
	Voice    string `json:"voice,omitempty"`
	Language string `json:"language,omitempty"`
}

// TranscodeRequest represents the request body for /v1/transcode.
type TranscodeRequest struct {
	AudioBase64 string `json:"audio_base64"`
	SampleRate  int    `json:"sample_rate,omitempty"`
	Channels    int    `json:"channels,omitempty"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
	// Kind is "decode" or "format" for transcoding failures.
	Kind string `json:"kind,omitempty"`
}

// HealthResponse represents the response body for /v1/healthz.
type HealthResponse struct {
	Status string       `json:"status"`
	Queue  *queue.Stats `json:"queue,omitempty"`
	Sinks  []string     `json:"sinks,omitempty"`
}

// VoicesResponse represents the response body for /v1/voices.
type VoicesResponse struct {
	Voices          []tts.Voice    `json:"voices"`
	Languages       []tts.Language `json:"languages"`
	CueTags         []string       `json:"cue_tags"`
	DefaultVoice    string         `json:"default_voice"`
	DefaultLanguage string         `json:"default_language"`
}

// HistoryItem is a history entry as served by the API.
type HistoryItem struct {
	history.Item
	Cached bool `json:"cached"`
}

// HistoryResponse represents the response body for GET /v1/history.
type HistoryResponse struct {
	Items []HistoryItem `json:"items"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, limit int64, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.logger.Warn("failed to decode request", "path", r.URL.Path, "error", err)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// line validates a script with its voice and language, filling defaults.
// It returns a client-facing message when the input is rejected.
func (s *Server) line(text, voice, language string) (string, string, string, string) {
	if strings.TrimSpace(text) == "" {
		return "", "", "", "text is required"
	}
	if utf8.RuneCountInString(text) > s.cfg.MaxTextLength {
		s.logger.Warn("text exceeds max length", "length", utf8.RuneCountInString(text), "max", s.cfg.MaxTextLength)
		return "", "", "", "text exceeds maximum length"
	}

	if voice == "" {
		voice = s.cfg.DefaultVoice
	}
	if language == "" {
		language = s.cfg.DefaultLanguage
	}
	if _, ok := tts.LookupVoice(voice); !ok {
		return "", "", "", fmt.Sprintf("unknown voice %q", voice)
	}
	if _, ok := tts.LookupLanguage(language); !ok {
		return "", "", "", fmt.Sprintf("unknown language %q", language)
	}
	return text, voice, language, ""
}

// handleHealthz handles GET /v1/healthz requests.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok"}
	if s.queue != nil {
		stats := s.queue.Stats()
		resp.Queue = &stats
	}
	if s.playback != nil {
		resp.Sinks = s.playback.Sinks()
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleVoices handles GET /v1/voices requests.
func (s *Server) handleVoices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, VoicesResponse{
		Voices:          tts.Voices,
		Languages:       tts.Languages,
		CueTags:         tts.CueTags,
		DefaultVoice:    s.cfg.DefaultVoice,
		DefaultLanguage: s.cfg.DefaultLanguage,
	})
}

// handleSpeak handles POST /v1/speak requests.
func (s *Server) handleSpeak(w http.ResponseWriter, r *http.Request) {
	var req SpeakRequest
	if !s.decode(w, r, maxJSONBody, &req) {
		return
	}

	text, voice, language, msg := s.line(req.Text, req.Voice, req.Language)
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	if req.TTLMS < 0 {
		writeError(w, http.StatusBadRequest, "ttl_ms must be non-negative")
		return
	}

	ttl := s.cfg.DefaultTTL
	if req.TTLMS > 0 {
		ttl = time.Duration(req.TTLMS) * time.Millisecond
	}

	if s.queue == nil {
		writeError(w, http.StatusServiceUnavailable, "playback is not configured")
		return
	}

	job := queue.NewSpeakJob(queue.Request{
		Text:      text,
		Voice:     voice,
		Language:  language,
		Interrupt: req.Interrupt,
		TTL:       ttl,
		DedupeKey: req.DedupeKey,
	})

	if err := s.queue.Enqueue(job); err != nil {
		switch {
		case errors.Is(err, queue.ErrQueueFull):
			writeError(w, http.StatusServiceUnavailable, "queue is full")
		case errors.Is(err, queue.ErrDuplicateJob):
			writeError(w, http.StatusConflict, "duplicate job")
		default:
			s.logger.Error("failed to enqueue job", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to enqueue job")
		}
		return
	}

	s.logger.Info("speak request enqueued",
		"job_id", job.ID,
		"text_length", len(text),
		"voice", voice,
		"language", language,
		"interrupt", req.Interrupt,
		"ttl_ms", req.TTLMS,
		"dedupe_key", req.DedupeKey,
	)

	writeJSON(w, http.StatusAccepted, SpeakResponse{
		JobID:   job.ID,
		Message: "job enqueued",
	})
}

// handleInterrupt handles POST /v1/interrupt requests.
func (s *Server) handleInterrupt(w http.ResponseWriter, r *http.Request) {
	if s.queue == nil {
		writeError(w, http.StatusServiceUnavailable, "playback is not configured")
		return
	}
	s.queue.Interrupt()
	w.WriteHeader(http.StatusNoContent)
}

// handleSynthesize handles POST /v1/synthesize requests. The response body
// is the rendered WAV stream.
func (s *Server) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	var req SynthesizeRequest
	if !s.decode(w, r, maxJSONBody, &req) {
		return
	}

	text, voice, language, msg := s.line(req.Text, req.Voice, req.Language)
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	if s.playback == nil {
		writeError(w, http.StatusServiceUnavailable, "no TTS engine available")
		return
	}

	clip, err := s.playback.Render(r.Context(), playback.RenderRequest{
		Text:     text,
		Voice:    voice,
		Language: language,
	})
	if err != nil {
		s.writeRenderError(w, err)
		return
	}

	s.logger.Info("synthesized clip", "clip_id", clip.ID, "voice", voice, "language", language, "bytes", len(clip.WAV))

	if clip.ID != "" {
		w.Header().Set("X-History-Id", clip.ID)
	}
	writeWAV(w, clip.ID, clip.WAV)
}

func (s *Server) writeRenderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, tts.ErrEmptyText):
		writeError(w, http.StatusBadRequest, "text is required")
	case errors.Is(err, playback.ErrNoTTSEngine):
		writeError(w, http.StatusServiceUnavailable, "no TTS engine available")
	case errors.Is(err, playback.ErrTranscodeFailed):
		writeJSON(w, http.StatusBadGateway, ErrorResponse{Error: "engine returned unusable audio", Kind: wav.Kind(err)})
	case errors.Is(err, tts.ErrEmptySynthesis):
		writeError(w, http.StatusBadGateway, "Synthesis empty")
	case errors.Is(err, playback.ErrSynthesisFailed):
		s.logger.Error("synthesis failed", "error", err)
		writeError(w, http.StatusBadGateway, "synthesis failed")
	default:
		s.logger.Error("render failed", "error", err)
		writeError(w, http.StatusInternalServerError, "render failed")
	}
}

// handleTranscode handles POST /v1/transcode requests.
func (s *Server) handleTranscode(w http.ResponseWriter, r *http.Request) {
	var req TranscodeRequest
	if !s.decode(w, r, maxTranscodeBody, &req) {
		return
	}

	rate, channels := req.SampleRate, req.Channels
	if rate == 0 {
		rate = wav.GeminiSampleRate
	}
	if channels == 0 {
		channels = wav.GeminiChannels
	}

	buf, err := wav.Decode(req.AudioBase64, rate, channels)
	if err == nil {
		var data []byte
		if data, err = wav.Encode(buf); err == nil {
			writeWAV(w, "", data)
			return
		}
	}

	kind := wav.Kind(err)
	s.metrics.TranscodeErrors.WithLabelValues(kind).Inc()
	s.logger.Warn("transcode rejected", "kind", kind, "error", err)
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error(), Kind: kind})
}

func writeWAV(w http.ResponseWriter, id string, data []byte) {
	name := "riser_voice.wav"
	if len(id) >= 8 {
		name = "riser_voice_" + id[:8] + ".wav"
	}
	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", fmt.Sprint(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// handleHistoryList handles GET /v1/history requests.
func (s *Server) handleHistoryList(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, "history is disabled")
		return
	}

	resp := HistoryResponse{Items: []HistoryItem{}}
	for _, item := range s.history.List() {
		resp.Items = append(resp.Items, HistoryItem{
			Item:   item,
			Cached: s.playback != nil && s.playback.HasClip(item.ID),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleHistoryClear handles DELETE /v1/history requests.
func (s *Server) handleHistoryClear(w http.ResponseWriter, r *http.Request) {
	if s.playback == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err := s.playback.ForgetAll(); err != nil {
		s.logger.Error("failed to clear history", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to clear history")
		return
	}
	s.logger.Info("history cleared")
	w.WriteHeader(http.StatusNoContent)
}

// handleHistoryDelete handles DELETE /v1/history/{id} requests.
func (s *Server) handleHistoryDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if s.playback == nil {
		writeError(w, http.StatusNotFound, "history item not found")
		return
	}

	err := s.playback.Forget(id)
	switch {
	case errors.Is(err, history.ErrNotFound):
		writeError(w, http.StatusNotFound, "history item not found")
	case err != nil:
		s.logger.Error("failed to delete history item", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete history item")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleHistoryAudio handles GET /v1/history/{id}/audio requests.
func (s *Server) handleHistoryAudio(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if s.playback == nil {
		writeError(w, http.StatusNotFound, "audio not cached")
		return
	}

	clip, err := s.playback.Cached(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "audio not cached")
		return
	}
	writeWAV(w, id, clip.WAV)
}

// handleHistoryReplay handles POST /v1/history/{id}/replay requests. The
// cached clip is queued like any other line, so it never overlaps playback
// and /v1/interrupt stops it.
func (s *Server) handleHistoryReplay(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if s.playback == nil || !s.playback.HasClip(id) {
		writeError(w, http.StatusNotFound, "audio not cached")
		return
	}
	if s.queue == nil {
		writeError(w, http.StatusServiceUnavailable, "playback is not configured")
		return
	}

	job := queue.NewSpeakJob(queue.Request{ClipID: id, TTL: s.cfg.DefaultTTL})
	if err := s.queue.Enqueue(job); err != nil {
		if errors.Is(err, queue.ErrQueueFull) {
			writeError(w, http.StatusServiceUnavailable, "queue is full")
			return
		}
		s.logger.Error("failed to enqueue replay", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to enqueue job")
		return
	}

	s.logger.Info("replay enqueued", "job_id", job.ID, "clip_id", id)
	writeJSON(w, http.StatusAccepted, SpeakResponse{
		JobID:   job.ID,
		Message: "replay enqueued",
	})
}
