package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration.
type Config struct {
	// TTS settings
	TTSEngine       string        `env:"TTS_ENGINE" envDefault:"gemini"`
	GeminiAPIKey    string        `env:"GEMINI_API_KEY"`
	APIKey          string        `env:"API_KEY"`
	GeminiModel     string        `env:"GEMINI_MODEL" envDefault:"gemini-2.5-flash-preview-tts"`
	PiperPath       string        `env:"PIPER_PATH" envDefault:"piper"`
	PiperModel      string        `env:"PIPER_MODEL"`
	DefaultVoice    string        `env:"DEFAULT_VOICE" envDefault:"Kore"`
	DefaultLanguage string        `env:"DEFAULT_LANGUAGE" envDefault:"en"`
	SampleRate      int           `env:"SAMPLE_RATE" envDefault:"24000"`
	SynthTimeout    time.Duration `env:"SYNTH_TIMEOUT" envDefault:"60s"`

	// Piper speaker id per catalog voice, e.g. "Kore:0,Charon:1".
	PiperSpeakers map[string]string `env:"PIPER_SPEAKERS"`

	// HTTP settings
	HTTPPort    int    `env:"HTTP_PORT" envDefault:"8080"`
	BearerToken string `env:"BEARER_TOKEN"`

	// Behavior settings
	MaxTextLength int           `env:"MAX_TEXT_LENGTH" envDefault:"1000"`
	QueueCapacity int           `env:"QUEUE_CAPACITY" envDefault:"100"`
	DefaultTTL    time.Duration `env:"DEFAULT_TTL" envDefault:"30s"`
	AutoLeaveIdle time.Duration `env:"AUTO_LEAVE_IDLE" envDefault:"5m"`

	// History and clip cache
	HistoryPath           string `env:"HISTORY_PATH" envDefault:"riser_tts_history.json"`
	HistoryLimit          int    `env:"HISTORY_LIMIT" envDefault:"50"`
	CacheDir              string `env:"CACHE_DIR" envDefault:".riser-cache"`
	CacheMaxBytes         int64  `env:"CACHE_MAX_BYTES" envDefault:"67108864"`
	CacheCompressionLevel int    `env:"CACHE_COMPRESSION_LEVEL" envDefault:"3"`

	// Playback sinks
	SpeakerEnabled        bool   `env:"SPEAKER_ENABLED" envDefault:"false"`
	DiscordToken          string `env:"DISCORD_TOKEN"`
	GuildID               string `env:"GUILD_ID"`
	DefaultVoiceChannelID string `env:"DEFAULT_VOICE_CHANNEL_ID"`

	// Logging settings
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
}

// Load reads configuration from environment variables with sane defaults.
func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// GeminiKey returns the Gemini API key, preferring GEMINI_API_KEY over the
// generic API_KEY.
func (c *Config) GeminiKey() string {
	if c.GeminiAPIKey != "" {
		return c.GeminiAPIKey
	}
	return c.APIKey
}

// AuthDisabled returns true if bearer token authentication is disabled.
func (c *Config) AuthDisabled() bool {
	return c.BearerToken == ""
}

// DiscordEnabled reports whether all Discord voice settings are present.
func (c *Config) DiscordEnabled() bool {
	return c.DiscordToken != "" && c.GuildID != "" && c.DefaultVoiceChannelID != ""
}

// Validate checks that configuration values are in range.
func (c *Config) Validate() error {
	validEngines := map[string]bool{"gemini": true, "piper": true}
	if !validEngines[c.TTSEngine] {
		return errors.New("TTS_ENGINE must be one of: gemini, piper")
	}

	if c.SampleRate < 1 {
		return errors.New("SAMPLE_RATE must be positive")
	}

	if c.SynthTimeout <= 0 {
		return errors.New("SYNTH_TIMEOUT must be positive")
	}

	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return errors.New("HTTP_PORT must be between 1 and 65535")
	}

	if c.MaxTextLength < 1 {
		return errors.New("MAX_TEXT_LENGTH must be at least 1")
	}

	if c.QueueCapacity < 1 {
		return errors.New("QUEUE_CAPACITY must be at least 1")
	}

	if c.AutoLeaveIdle < 0 {
		return errors.New("AUTO_LEAVE_IDLE must be non-negative")
	}

	if c.DefaultTTL < 0 {
		return errors.New("DEFAULT_TTL must be non-negative")
	}

	if c.HistoryLimit < 1 {
		return errors.New("HISTORY_LIMIT must be at least 1")
	}

	if c.CacheMaxBytes < 0 {
		return errors.New("CACHE_MAX_BYTES must be non-negative")
	}

	if c.CacheCompressionLevel < 0 || c.CacheCompressionLevel > 22 {
		return errors.New("CACHE_COMPRESSION_LEVEL must be between 0 and 22")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.LogLevel] {
		return errors.New("LOG_LEVEL must be one of: debug, info, warn, error")
	}

	validLogFormats := map[string]bool{"text": true, "json": true}
	if !validLogFormats[c.LogFormat] {
		return errors.New("LOG_FORMAT must be one of: text, json")
	}

	return nil
}
