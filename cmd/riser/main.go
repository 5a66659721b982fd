// Package main provides the riser command: the speech server and its
// companion client commands.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dgnsrekt/riser-voice/internal/client"
	"github.com/dgnsrekt/riser-voice/internal/config"
	"github.com/dgnsrekt/riser-voice/internal/logging"
)

// Version as provided by the build.
var Version = ""

var (
	serverURL   string
	serverToken string

	rootCmd = &cobra.Command{
		Use:           "riser",
		Short:         "Anime voice-over speech server",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "riser:", err)
		os.Exit(1)
	}
}

func init() {
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version

	rootCmd.PersistentFlags().StringVar(&serverURL, "server", os.Getenv("RISER_SERVER"), "talk to a running riser server at this URL instead of working locally")
	rootCmd.PersistentFlags().StringVar(&serverToken, "token", os.Getenv("BEARER_TOKEN"), "bearer token for --server")

	rootCmd.AddCommand(serveCmd, sayCmd, transcodeCmd, historyCmd, voicesCmd)
}

// loadConfig reads the environment configuration and builds the logger.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, logging.New(cfg.LogLevel, cfg.LogFormat), nil
}

// remote returns a client when --server is set.
func remote() *client.Client {
	if serverURL == "" {
		return nil
	}
	return client.New(serverURL, serverToken, logging.New("warn", "text"))
}
