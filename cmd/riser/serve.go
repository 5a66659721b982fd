package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dgnsrekt/riser-voice/internal/api"
	"github.com/dgnsrekt/riser-voice/internal/audio"
	"github.com/dgnsrekt/riser-voice/internal/cache"
	"github.com/dgnsrekt/riser-voice/internal/config"
	"github.com/dgnsrekt/riser-voice/internal/discord"
	"github.com/dgnsrekt/riser-voice/internal/history"
	"github.com/dgnsrekt/riser-voice/internal/metrics"
	"github.com/dgnsrekt/riser-voice/internal/playback"
	"github.com/dgnsrekt/riser-voice/internal/queue"
	"github.com/dgnsrekt/riser-voice/internal/tts"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the speech HTTP server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		return serve(cmd.Context(), cfg, logger)
	},
}

func serve(parent context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("starting riser", "version", Version)

	// Warn if bearer token auth is disabled
	if cfg.AuthDisabled() {
		logger.Warn("HTTP bearer authentication is disabled (BEARER_TOKEN is empty)")
	}

	// Log loaded configuration (without sensitive values)
	logger.Info("configuration loaded",
		"log_level", cfg.LogLevel,
		"log_format", cfg.LogFormat,
		"http_port", cfg.HTTPPort,
		"tts_engine", cfg.TTSEngine,
		"default_voice", cfg.DefaultVoice,
		"default_language", cfg.DefaultLanguage,
		"auto_leave_idle", cfg.AutoLeaveIdle,
		"max_text_length", cfg.MaxTextLength,
		"queue_capacity", cfg.QueueCapacity,
		"speaker", cfg.SpeakerEnabled,
		"discord", cfg.DiscordEnabled(),
	)

	// Setup graceful shutdown
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	registry := newRegistry(ctx, cfg, logger)
	store, clips, err := openStores(cfg, logger)
	if err != nil {
		return err
	}
	if clips != nil {
		defer clips.Close()
	}
	m.HistorySize.Set(float64(store.Len()))

	var sinks []playback.Sink

	if cfg.SpeakerEnabled {
		speaker := audio.NewSpeaker(logger)
		defer speaker.Close()
		sinks = append(sinks, speaker)
		logger.Info("local speaker output enabled")
	}

	// Initialize Discord voice manager
	var voiceManager *discord.VoiceManager
	if cfg.DiscordEnabled() {
		converter, err := audio.NewConverter()
		if err != nil {
			return fmt.Errorf("discord output needs ffmpeg: %w", err)
		}

		voiceManager, err = discord.NewVoiceManager(
			cfg.DiscordToken,
			cfg.GuildID,
			cfg.DefaultVoiceChannelID,
			converter,
			logger,
		)
		if err != nil {
			return fmt.Errorf("failed to create voice manager: %w", err)
		}

		if err := voiceManager.Open(); err != nil {
			return fmt.Errorf("failed to open Discord session: %w", err)
		}
		defer voiceManager.Close()
		sinks = append(sinks, voiceManager)
		logger.Info("Discord session opened")
	} else {
		logger.Info("Discord credentials not configured, voice channel output disabled")
	}

	if len(sinks) == 0 {
		logger.Warn("no playback outputs configured, /v1/speak will only render and record")
	}

	handler := playback.NewHandler(registry, playback.Options{
		History:      store,
		Cache:        clips,
		Sinks:        sinks,
		Metrics:      m,
		SynthTimeout: cfg.SynthTimeout,
	}, logger)

	// Create and start the speech queue
	speechQueue := queue.NewQueue(cfg.QueueCapacity, cfg.AutoLeaveIdle, logger)
	speechQueue.SetPlaybackHandler(handler.Handle)
	speechQueue.SetDepthObserver(func(depth int) {
		m.QueueDepth.Set(float64(depth))
	})

	// Set idle callback to disconnect from voice
	speechQueue.SetIdleCallback(func() {
		if voiceManager != nil && voiceManager.IsConnected() {
			logger.Info("queue idle, disconnecting from voice channel")
			if err := voiceManager.Disconnect(); err != nil {
				logger.Error("failed to disconnect from voice", "error", err)
			}
		}
	})

	// Set shutdown callback to disconnect from voice during graceful shutdown
	speechQueue.SetShutdownCallback(func() {
		if voiceManager != nil && voiceManager.IsConnected() {
			if err := voiceManager.Disconnect(); err != nil {
				logger.Error("failed to disconnect from voice during shutdown", "error", err)
			} else {
				logger.Info("disconnected from voice channel during shutdown")
			}
		}
	})

	speechQueue.Start()
	defer speechQueue.Stop()

	// Create and start HTTP server
	server := api.New(cfg, logger, api.Deps{
		Queue:    speechQueue,
		Playback: handler,
		History:  store,
		Metrics:  m,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	// Wait for shutdown signal
	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// newRegistry registers every engine the configuration allows and makes
// TTS_ENGINE the default. Engines that cannot start are logged and skipped.
func newRegistry(ctx context.Context, cfg *config.Config, logger *slog.Logger) *tts.Registry {
	registry := tts.NewRegistry()

	if key := cfg.GeminiKey(); key != "" {
		engine, err := tts.NewGeminiEngine(ctx, tts.GeminiConfig{
			APIKey:     key,
			Model:      cfg.GeminiModel,
			SampleRate: cfg.SampleRate,
		}, logger)
		if err != nil {
			logger.Warn("failed to initialize Gemini TTS", "error", err)
		} else if err := registry.Register(engine); err != nil {
			logger.Warn("failed to register Gemini TTS", "error", err)
		} else {
			logger.Info("Gemini TTS engine registered", "model", cfg.GeminiModel)
		}
	}

	if cfg.PiperModel != "" {
		engine, err := tts.NewPiperEngine(tts.PiperConfig{
			BinaryPath: cfg.PiperPath,
			ModelPath:  cfg.PiperModel,
			Speakers:   cfg.PiperSpeakers,
		}, logger)
		if err != nil {
			logger.Warn("failed to initialize Piper TTS", "error", err)
		} else if err := registry.Register(engine); err != nil {
			logger.Warn("failed to register Piper TTS", "error", err)
		} else {
			logger.Info("Piper TTS engine registered", "model", cfg.PiperModel)
		}
	}

	if err := registry.SetDefault(cfg.TTSEngine); err != nil {
		if len(registry.List()) == 0 {
			logger.Warn("no TTS engine configured, synthesis requests will fail", "engine", cfg.TTSEngine)
		} else {
			logger.Warn("configured TTS engine unavailable, using fallback", "engine", cfg.TTSEngine, "available", registry.List())
		}
	}

	return registry
}

// openStores opens the history file and, when CACHE_MAX_BYTES is positive,
// the clip cache.
func openStores(cfg *config.Config, logger *slog.Logger) (*history.Store, *cache.Disk, error) {
	store, err := history.Open(cfg.HistoryPath, cfg.HistoryLimit, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open history: %w", err)
	}

	if cfg.CacheMaxBytes == 0 {
		logger.Info("clip cache disabled")
		return store, nil, nil
	}

	clips, err := cache.Open(cfg.CacheDir, cfg.CacheMaxBytes, cfg.CacheCompressionLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open clip cache: %w", err)
	}
	stats := clips.Stats()
	logger.Info("clip cache opened", "dir", cfg.CacheDir, "items", stats.Items, "size", stats.Size)
	return store, clips, nil
}
