package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dgnsrekt/riser-voice/internal/audio"
	"github.com/dgnsrekt/riser-voice/internal/client"
	"github.com/dgnsrekt/riser-voice/internal/playback"
	"github.com/dgnsrekt/riser-voice/internal/tts"
)

var (
	sayVoice     string
	sayLanguage  string
	sayOut       string
	sayPlay      bool
	sayInterrupt bool
	sayDedupe    bool

	sayCmd = &cobra.Command{
		Use:   "say TEXT...",
		Short: "Perform a line of dialogue",
		Long: `Perform a line of dialogue.

Without --server the line is rendered in-process with the configured engine,
recorded in the local history and written to --out and/or played on the local
speaker. With --server, --out downloads the rendered clip and --play queues
the line on the server's outputs. Use "-" to read the text from stdin.`,
		Example: `  riser say --voice Charon "[serious] The real battle starts now."
  riser say --language ja --out line.wav "Believe it!"
  echo "Hmph." | riser say --server http://localhost:8080 --play -`,
		Args: cobra.MinimumNArgs(1),
		RunE: runSay,
	}
)

func init() {
	sayCmd.Flags().StringVarP(&sayVoice, "voice", "v", "", "voice id (default DEFAULT_VOICE)")
	sayCmd.Flags().StringVarP(&sayLanguage, "language", "l", "", "performance language (default DEFAULT_LANGUAGE)")
	sayCmd.Flags().StringVarP(&sayOut, "out", "o", "", "write the WAV clip to this file")
	sayCmd.Flags().BoolVarP(&sayPlay, "play", "p", false, "play the clip")
	sayCmd.Flags().BoolVar(&sayInterrupt, "interrupt", false, "with --server --play, cut off whatever is playing")
	sayCmd.Flags().BoolVar(&sayDedupe, "dedupe", false, "with --server --play, drop the line if the same text is already queued")
}

func runSay(cmd *cobra.Command, args []string) error {
	text, err := sayText(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}
	if !sayPlay && sayOut == "" {
		sayPlay = serverURL != ""
		if !sayPlay {
			sayOut = "riser_voice.wav"
		}
	}

	if c := remote(); c != nil {
		return sayRemote(cmd, c, text)
	}
	return sayLocal(cmd, text)
}

func sayText(stdin io.Reader, args []string) (string, error) {
	if len(args) == 1 && args[0] == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	return strings.Join(args, " "), nil
}

func sayRemote(cmd *cobra.Command, c *client.Client, text string) error {
	ctx := cmd.Context()

	if sayOut != "" {
		clip, err := c.Synthesize(ctx, client.SynthesizeRequest{Text: text, Voice: sayVoice, Language: sayLanguage})
		if err != nil {
			return err
		}
		if err := os.WriteFile(sayOut, clip.WAV, 0o644); err != nil {
			return fmt.Errorf("failed to write clip: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (history %s)\n", sayOut, clip.HistoryID)
	}

	if sayPlay {
		req := client.SpeakRequest{
			Text:      text,
			Voice:     sayVoice,
			Language:  sayLanguage,
			Interrupt: sayInterrupt,
		}
		if sayDedupe {
			req.DedupeKey = client.DedupeKey(text)
		}
		resp, err := c.Speak(ctx, req)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "queued job %s\n", resp.JobID)
	}
	return nil
}

func sayLocal(cmd *cobra.Command, text string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	voice, language := sayVoice, sayLanguage
	if voice == "" {
		voice = cfg.DefaultVoice
	}
	if language == "" {
		language = cfg.DefaultLanguage
	}
	if _, ok := tts.LookupVoice(voice); !ok {
		return fmt.Errorf("unknown voice %q", voice)
	}
	if _, ok := tts.LookupLanguage(language); !ok {
		return fmt.Errorf("unknown language %q", language)
	}

	store, clips, err := openStores(cfg, logger)
	if err != nil {
		return err
	}
	if clips != nil {
		defer clips.Close()
	}

	var sinks []playback.Sink
	if sayPlay {
		speaker := audio.NewSpeaker(logger)
		defer speaker.Close()
		sinks = append(sinks, speaker)
	}

	handler := playback.NewHandler(newRegistry(ctx, cfg, logger), playback.Options{
		History:      store,
		Cache:        clips,
		Sinks:        sinks,
		SynthTimeout: cfg.SynthTimeout,
	}, logger)

	clip, err := handler.Render(ctx, playback.RenderRequest{Text: text, Voice: voice, Language: language})
	if err != nil {
		return err
	}

	if sayOut != "" {
		if err := os.WriteFile(sayOut, clip.WAV, 0o644); err != nil {
			return fmt.Errorf("failed to write clip: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%s)\n", sayOut, clip.Duration().Round(time.Millisecond))
	}

	if sayPlay {
		if err := handler.Play(ctx, clip); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	}
	return nil
}
