package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
)

// Piper writes raw 16-bit mono PCM with --output-raw, at the rate named in
// the model's .onnx.json file. PiperSampleRate is used when that file is
// missing or has no rate (medium and high voices are 22050 Hz).
const (
	PiperSampleRate = 22050
	PiperChannels   = 1
)

var (
	// ErrPiperNotFound is returned when the piper binary is not found.
	ErrPiperNotFound = errors.New("piper binary not found")
	// ErrNoModelSpecified is returned when no model is configured.
	ErrNoModelSpecified = errors.New("no piper model specified")
)

// PiperConfig holds configuration for the Piper TTS engine.
type PiperConfig struct {
	// BinaryPath is the path to the piper executable.
	BinaryPath string
	// ModelPath is the path to the ONNX model file.
	ModelPath string
	// Speakers maps catalog voice ids to piper speaker ids for
	// multi-speaker models. Voices without an entry use the model default.
	Speakers map[string]string
	// SampleRate overrides the rate read from the model config.
	SampleRate int
}

// piperModelConfig is the part of <model>.onnx.json the engine reads.
type piperModelConfig struct {
	Audio struct {
		SampleRate int `json:"sample_rate"`
	} `json:"audio"`
}

// PiperEngine implements the Engine interface using local Piper TTS.
type PiperEngine struct {
	config PiperConfig
	logger *slog.Logger
}

// NewPiperEngine creates a new Piper TTS engine.
func NewPiperEngine(cfg PiperConfig, logger *slog.Logger) (*PiperEngine, error) {
	if cfg.BinaryPath == "" {
		cfg.BinaryPath = "piper"
	}

	path, err := exec.LookPath(cfg.BinaryPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrPiperNotFound, cfg.BinaryPath)
	}
	cfg.BinaryPath = path

	if cfg.ModelPath == "" {
		return nil, ErrNoModelSpecified
	}

	if cfg.SampleRate <= 0 {
		rate, err := modelSampleRate(cfg.ModelPath)
		if err != nil {
			logger.Warn("failed to read piper model config, assuming default rate",
				"model", cfg.ModelPath,
				"sample_rate", PiperSampleRate,
				"error", err,
			)
			rate = PiperSampleRate
		}
		cfg.SampleRate = rate
	}

	return &PiperEngine{
		config: cfg,
		logger: logger,
	}, nil
}

// modelSampleRate reads audio.sample_rate from the config file piper keeps
// next to the model.
func modelSampleRate(modelPath string) (int, error) {
	data, err := os.ReadFile(modelPath + ".json")
	if err != nil {
		return 0, err
	}
	var cfg piperModelConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return 0, fmt.Errorf("parse %s.json: %w", modelPath, err)
	}
	if cfg.Audio.SampleRate <= 0 {
		return 0, fmt.Errorf("%s.json has no audio.sample_rate", modelPath)
	}
	return cfg.Audio.SampleRate, nil
}

// Name returns the engine identifier.
func (p *PiperEngine) Name() string {
	return "piper"
}

// Synthesize converts text to audio using Piper. Piper has no notion of
// language instructions, so req.Language is ignored.
func (p *PiperEngine) Synthesize(ctx context.Context, req SynthesizeRequest) (*AudioResult, error) {
	if req.Text == "" {
		return nil, ErrEmptyText
	}

	args := []string{
		"--model", p.config.ModelPath,
		"--output-raw",
	}
	if speaker, ok := p.config.Speakers[req.Voice]; ok {
		args = append(args, "--speaker", speaker)
	}

	p.logger.Debug("running piper",
		"binary", p.config.BinaryPath,
		"model", p.config.ModelPath,
		"voice", req.Voice,
		"text_length", len(req.Text),
	)

	cmd := exec.CommandContext(ctx, p.config.BinaryPath, args...)
	cmd.Stdin = bytes.NewReader([]byte(req.Text))

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		p.logger.Error("piper failed",
			"error", err,
			"stderr", stderr.String(),
		)
		return nil, fmt.Errorf("%w: %v", ErrSynthesisFailed, err)
	}

	raw := stdout.Bytes()
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: no audio output", ErrSynthesisFailed)
	}

	p.logger.Debug("piper synthesis complete", "output_bytes", len(raw))

	return &AudioResult{
		PCM:        raw,
		SampleRate: p.config.SampleRate,
		Channels:   PiperChannels,
	}, nil
}
