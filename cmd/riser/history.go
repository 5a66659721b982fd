package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/dgnsrekt/riser-voice/internal/client"
	"github.com/dgnsrekt/riser-voice/internal/playback"
	"github.com/dgnsrekt/riser-voice/internal/tts"
)

const historyTextWidth = 48

var (
	historyOut string

	historyCmd = &cobra.Command{
		Use:   "history",
		Short: "Inspect past generations",
		Args:  cobra.NoArgs,
		RunE:  runHistoryList,
	}

	historyListCmd = &cobra.Command{
		Use:   "list",
		Short: "List past generations, newest first",
		Args:  cobra.NoArgs,
		RunE:  runHistoryList,
	}

	historyDeleteCmd = &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a generation and its audio",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if c := remote(); c != nil {
				return c.DeleteHistory(cmd.Context(), args[0])
			}
			return withLocalHistory(func(h *playback.Handler) error {
				return h.Forget(args[0])
			})
		},
	}

	historyClearCmd = &cobra.Command{
		Use:   "clear",
		Short: "Delete every generation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if c := remote(); c != nil {
				return c.ClearHistory(cmd.Context())
			}
			return withLocalHistory(func(h *playback.Handler) error {
				return h.ForgetAll()
			})
		},
	}

	historyAudioCmd = &cobra.Command{
		Use:   "audio ID",
		Short: "Export the cached clip of a generation",
		Args:  cobra.ExactArgs(1),
		RunE:  runHistoryAudio,
	}

	historyReplayCmd = &cobra.Command{
		Use:   "replay ID",
		Short: "Play a cached generation on the server's outputs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := remote()
			if c == nil {
				return fmt.Errorf("replay needs --server")
			}
			return c.Replay(cmd.Context(), args[0])
		},
	}
)

func init() {
	historyAudioCmd.Flags().StringVarP(&historyOut, "out", "o", "", "output file (default riser_voice_<id>.wav)")
	historyCmd.AddCommand(historyListCmd, historyDeleteCmd, historyClearCmd, historyAudioCmd, historyReplayCmd)
}

func runHistoryList(cmd *cobra.Command, _ []string) error {
	items, err := loadHistory(cmd.Context())
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no history")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tWHEN\tVOICE\tLANG\tAUDIO\tTEXT")
	for _, item := range items {
		audio := "-"
		if item.Cached {
			audio = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			item.ID,
			humanize.Time(item.Time()),
			item.Voice,
			item.Language,
			audio,
			truncate(item.Text, historyTextWidth),
		)
	}
	return w.Flush()
}

func loadHistory(ctx context.Context) ([]client.HistoryItem, error) {
	if c := remote(); c != nil {
		return c.History(ctx)
	}

	var items []client.HistoryItem
	err := withLocalHistory(func(h *playback.Handler) error {
		for _, item := range h.History() {
			items = append(items, client.HistoryItem{
				ID:        item.ID,
				Text:      item.Text,
				Timestamp: item.Timestamp,
				Voice:     item.Voice,
				Language:  item.Language,
				Cached:    h.HasClip(item.ID),
			})
		}
		return nil
	})
	return items, err
}

func runHistoryAudio(cmd *cobra.Command, args []string) error {
	id := args[0]
	out := historyOut
	if out == "" {
		out = "riser_voice_" + shortID(id) + ".wav"
	}

	var data []byte
	if c := remote(); c != nil {
		clip, err := c.HistoryAudio(cmd.Context(), id)
		if err != nil {
			return err
		}
		data = clip.WAV
	} else {
		err := withLocalHistory(func(h *playback.Handler) error {
			clip, err := h.Cached(id)
			if err != nil {
				return err
			}
			data = clip.WAV
			return nil
		})
		if err != nil {
			return err
		}
	}

	if err := os.WriteFile(out, data, 0o644); err != nil {
		return fmt.Errorf("failed to write clip: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%s)\n", out, humanize.Bytes(uint64(len(data))))
	return nil
}

// withLocalHistory opens the configured history and clip cache for fn.
func withLocalHistory(fn func(h *playback.Handler) error) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	store, clips, err := openStores(cfg, logger)
	if err != nil {
		return err
	}
	if clips != nil {
		defer clips.Close()
	}
	return fn(playback.NewHandler(tts.NewRegistry(), playback.Options{History: store, Cache: clips}, logger))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}
