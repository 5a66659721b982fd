// Package discord delivers rendered clips to a Discord voice channel.
package discord

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"layeh.com/gopus"

	"github.com/dgnsrekt/riser-voice/internal/audio"
)

const (
	// voiceConnectTimeout is the maximum time to wait for voice connection readiness.
	voiceConnectTimeout = 10 * time.Second
	// voiceConnectPollInterval is the polling interval while waiting for connection.
	voiceConnectPollInterval = 100 * time.Millisecond
	// frameDuration is the duration of one Discord audio frame (20ms).
	frameDuration = 20 * time.Millisecond
	// maxOpusDataBytes is the maximum size of an encoded Opus frame.
	maxOpusDataBytes = 4000
)

var (
	// ErrNotConnected is returned when trying to send audio while not connected.
	ErrNotConnected = errors.New("not connected to voice channel")
	// ErrConnectionFailed is returned when voice connection fails.
	ErrConnectionFailed = errors.New("failed to connect to voice channel")
)

// frameEncoder is satisfied by *gopus.Encoder.
type frameEncoder interface {
	Encode(pcm []int16, frameSize, maxDataBytes int) ([]byte, error)
}

// VoiceManager owns the bot session and its single voice connection. It is a
// playback sink: Play joins the channel on demand and streams the clip.
type VoiceManager struct {
	mu              sync.Mutex
	sendMu          sync.Mutex // one stream at a time through encoder
	session         *discordgo.Session
	voiceConnection *discordgo.VoiceConnection
	guildID         string
	channelID       string
	converter       *audio.Converter
	encoder         frameEncoder
	logger          *slog.Logger
}

// NewVoiceManager creates a voice manager for one guild channel.
func NewVoiceManager(token, guildID, channelID string, converter *audio.Converter, logger *slog.Logger) (*VoiceManager, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}

	encoder, err := gopus.NewEncoder(audio.DiscordSampleRate, audio.DiscordChannels, gopus.Voip)
	if err != nil {
		return nil, fmt.Errorf("create opus encoder: %w", err)
	}

	return &VoiceManager{
		session:   session,
		guildID:   guildID,
		channelID: channelID,
		converter: converter,
		encoder:   encoder,
		logger:    logger,
	}, nil
}

// Name returns the sink identifier.
func (vm *VoiceManager) Name() string {
	return "discord"
}

// Open opens the Discord gateway session.
func (vm *VoiceManager) Open() error {
	return vm.session.Open()
}

// Close leaves voice and closes the session.
func (vm *VoiceManager) Close() error {
	vm.Disconnect()
	return vm.session.Close()
}

// Connect joins the configured voice channel if not already joined.
func (vm *VoiceManager) Connect(ctx context.Context) error {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	if vm.voiceConnection != nil {
		return nil
	}

	vm.logger.Info("connecting to voice channel", "guild_id", vm.guildID, "channel_id", vm.channelID)

	// Deafened: the bot only speaks.
	vc, err := vm.session.ChannelVoiceJoin(vm.guildID, vm.channelID, false, true)
	if err != nil {
		return errors.Join(ErrConnectionFailed, err)
	}

	// discordgo exposes readiness as a bool, so poll until the deadline.
	deadline := time.Now().Add(voiceConnectTimeout)
	for !vc.Ready {
		if ctx.Err() != nil {
			vc.Disconnect()
			return ctx.Err()
		}
		if time.Now().After(deadline) {
			vc.Disconnect()
			return ErrConnectionFailed
		}
		time.Sleep(voiceConnectPollInterval)
	}

	vm.voiceConnection = vc
	vm.logger.Info("connected to voice channel")
	return nil
}

// Disconnect leaves the voice channel. It is called when the queue goes idle.
func (vm *VoiceManager) Disconnect() error {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	if vm.voiceConnection == nil {
		return nil
	}

	vm.logger.Info("disconnecting from voice channel")
	err := vm.voiceConnection.Disconnect()
	vm.voiceConnection = nil
	return err
}

// IsConnected reports whether the bot is in the voice channel.
func (vm *VoiceManager) IsConnected() bool {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.voiceConnection != nil
}

// Play resamples the clip to 48 kHz stereo and streams it to the channel.
func (vm *VoiceManager) Play(ctx context.Context, clip *audio.Clip) error {
	if clip == nil || len(clip.WAV) == 0 {
		return audio.ErrEmptyInput
	}

	pcm, err := vm.converter.ToDiscordPCM(ctx, clip.WAV)
	if err != nil {
		return err
	}

	if err := vm.Connect(ctx); err != nil {
		return err
	}

	vm.logger.Debug("sending clip to voice channel", "clip_id", clip.ID, "pcm_bytes", len(pcm))
	return vm.SendAudio(ctx, pcm)
}

// SendAudio streams 48 kHz stereo s16le PCM to the voice channel. Concurrent
// calls are serialized.
func (vm *VoiceManager) SendAudio(ctx context.Context, pcm []byte) error {
	vm.sendMu.Lock()
	defer vm.sendMu.Unlock()

	vm.mu.Lock()
	vc := vm.voiceConnection
	vm.mu.Unlock()

	if vc == nil {
		return ErrNotConnected
	}

	if err := vc.Speaking(true); err != nil {
		vm.logger.Error("failed to set speaking state", "error", err)
	}
	defer func() {
		if err := vc.Speaking(false); err != nil {
			vm.logger.Error("failed to clear speaking state", "error", err)
		}
	}()

	return sendFrames(ctx, audio.NewDiscordFrameReader(pcm), vm.encoder, vc.OpusSend, frameDuration, vm.logger)
}

// sendFrames opus-encodes each frame and sends one per tick.
func sendFrames(ctx context.Context, frames *audio.FrameReader, enc frameEncoder, out chan<- []byte, tick time.Duration, logger *slog.Logger) error {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		frame, err := frames.ReadFrame()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		opus, err := enc.Encode(frame, audio.DiscordFrameSize, maxOpusDataBytes)
		if err != nil {
			logger.Error("opus encoding failed", "error", err)
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case out <- opus:
		}
	}
}
