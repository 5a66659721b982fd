package main

import (
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/dgnsrekt/riser-voice/internal/client"
	"github.com/dgnsrekt/riser-voice/internal/wav"
)

var (
	transcodeRate     int
	transcodeChannels int
	transcodeOut      string

	transcodeCmd = &cobra.Command{
		Use:   "transcode [FILE]",
		Short: "Wrap base64 PCM in a WAV stream",
		Long: `Read a base64 payload of signed 16-bit little-endian PCM from FILE or stdin
and write it as a WAV stream. Whitespace in the payload is ignored.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runTranscode,
	}
)

func init() {
	transcodeCmd.Flags().IntVarP(&transcodeRate, "rate", "r", wav.GeminiSampleRate, "sample rate in Hz")
	transcodeCmd.Flags().IntVarP(&transcodeChannels, "channels", "c", wav.GeminiChannels, "interleaved channel count")
	transcodeCmd.Flags().StringVarP(&transcodeOut, "out", "o", "-", `output file, "-" for stdout`)
}

func runTranscode(cmd *cobra.Command, args []string) error {
	in := cmd.InOrStdin()
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open input: %w", err)
		}
		defer f.Close()
		in = f
	}

	payload, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	var data []byte
	if c := remote(); c != nil {
		data, err = c.Transcode(cmd.Context(), client.TranscodeRequest{
			AudioBase64: string(payload),
			SampleRate:  transcodeRate,
			Channels:    transcodeChannels,
		})
	} else {
		data, err = transcode(string(payload), transcodeRate, transcodeChannels)
	}
	if err != nil {
		return err
	}

	if transcodeOut == "-" {
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(transcodeOut, data, 0o644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s (%s)\n", transcodeOut, humanize.Bytes(uint64(len(data))))
	return nil
}

func transcode(payload string, rate, channels int) ([]byte, error) {
	buf, err := wav.Decode(payload, rate, channels)
	if err != nil {
		return nil, err
	}
	return wav.Encode(buf)
}
