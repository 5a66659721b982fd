package tts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"strconv"
	"strings"

	"google.golang.org/genai"

	"github.com/dgnsrekt/riser-voice/internal/wav"
)

// DefaultGeminiModel is the Gemini speech generation model.
const DefaultGeminiModel = "gemini-2.5-flash-preview-tts"

var (
	// ErrNoAPIKey is returned when no Gemini API key is configured.
	ErrNoAPIKey = errors.New("no Gemini API key configured")
	// ErrUnsupportedAudio is returned for inline audio that is not raw PCM.
	ErrUnsupportedAudio = errors.New("unsupported audio encoding")
)

// GeminiConfig holds configuration for the Gemini TTS engine.
type GeminiConfig struct {
	APIKey string
	Model  string
	// SampleRate is assumed when the response MIME type carries no rate.
	SampleRate int
}

// contentGenerator is the subset of genai.Models the engine calls.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiEngine implements the Engine interface on the Gemini speech model.
type GeminiEngine struct {
	config GeminiConfig
	models contentGenerator
	logger *slog.Logger
}

// NewGeminiEngine creates a Gemini engine backed by the Gemini Developer API.
func NewGeminiEngine(ctx context.Context, cfg GeminiConfig, logger *slog.Logger) (*GeminiEngine, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return newGeminiEngine(cfg, client.Models, logger), nil
}

func newGeminiEngine(cfg GeminiConfig, models contentGenerator, logger *slog.Logger) *GeminiEngine {
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiModel
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = wav.GeminiSampleRate
	}
	return &GeminiEngine{config: cfg, models: models, logger: logger}
}

// Name returns the engine identifier.
func (g *GeminiEngine) Name() string {
	return "gemini"
}

// Synthesize performs the script with the requested prebuilt voice.
func (g *GeminiEngine) Synthesize(ctx context.Context, req SynthesizeRequest) (*AudioResult, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, ErrEmptyText
	}

	voice := req.Voice
	if voice == "" {
		voice = Voices[0].ID
	}

	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{string(genai.ModalityAudio)},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: voice},
			},
		},
	}

	prompt := BuildPrompt(req.Text, voice, req.Language)

	g.logger.Debug("requesting gemini speech",
		"model", g.config.Model,
		"voice", voice,
		"language", req.Language,
		"text_length", len(req.Text),
	)

	resp, err := g.models.GenerateContent(ctx, g.config.Model, genai.Text(prompt), config)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrSynthesisFailed, err)
	}

	blob := inlineAudio(resp)
	if blob == nil || len(blob.Data) == 0 {
		return nil, ErrEmptySynthesis
	}

	rate, err := pcmRate(blob.MIMEType, g.config.SampleRate)
	if err != nil {
		return nil, err
	}

	g.logger.Debug("gemini synthesis complete",
		"mime_type", blob.MIMEType,
		"bytes", len(blob.Data),
	)

	return &AudioResult{
		PCM:        blob.Data,
		SampleRate: rate,
		Channels:   wav.GeminiChannels,
	}, nil
}

// inlineAudio returns the first inline data part of the first candidate.
func inlineAudio(resp *genai.GenerateContentResponse) *genai.Blob {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil
	}
	content := resp.Candidates[0].Content
	if content == nil {
		return nil
	}
	for _, part := range content.Parts {
		if part != nil && part.InlineData != nil {
			return part.InlineData
		}
	}
	return nil
}

// pcmRate extracts the sample rate from an "audio/L16;rate=24000" style MIME
// type. An empty MIME type or missing rate yields fallback.
func pcmRate(mimeType string, fallback int) (int, error) {
	if mimeType == "" {
		return fallback, nil
	}
	mediaType, params, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedAudio, mimeType)
	}
	switch mediaType {
	case "audio/l16", "audio/pcm":
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedAudio, mediaType)
	}
	if r, ok := params["rate"]; ok {
		rate, err := strconv.Atoi(r)
		if err != nil || rate <= 0 {
			return 0, fmt.Errorf("%w: bad rate %q", ErrUnsupportedAudio, r)
		}
		return rate, nil
	}
	return fallback, nil
}
