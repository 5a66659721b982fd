package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dgnsrekt/riser-voice/internal/client"
	"github.com/dgnsrekt/riser-voice/internal/tts"
)

var voicesCmd = &cobra.Command{
	Use:   "voices",
	Short: "List voices, languages and cue tags",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		catalog, err := loadCatalog(cmd)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "VOICE\tNAME\tDESCRIPTION")
		for _, v := range catalog.Voices {
			id := v.ID
			if id == catalog.DefaultVoice {
				id += "*"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", id, v.Name, v.Description)
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, "LANGUAGE\tNAME\tDESCRIPTION")
		for _, l := range catalog.Languages {
			id := l.ID
			if id == catalog.DefaultLanguage {
				id += "*"
			}
			fmt.Fprintf(w, "%s\t%s %s\t%s\n", id, l.Flag, l.Name, l.Description)
		}
		if err := w.Flush(); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "\ncue tags: %v\n", catalog.CueTags)
		return nil
	},
}

func loadCatalog(cmd *cobra.Command) (*client.Catalog, error) {
	if c := remote(); c != nil {
		return c.Voices(cmd.Context())
	}

	cfg, _, err := loadConfig()
	if err != nil {
		return nil, err
	}
	catalog := &client.Catalog{
		CueTags:         tts.CueTags,
		DefaultVoice:    cfg.DefaultVoice,
		DefaultLanguage: cfg.DefaultLanguage,
	}
	for _, v := range tts.Voices {
		catalog.Voices = append(catalog.Voices, client.Voice(v))
	}
	for _, l := range tts.Languages {
		catalog.Languages = append(catalog.Languages, client.Language(l))
	}
	return catalog, nil
}
