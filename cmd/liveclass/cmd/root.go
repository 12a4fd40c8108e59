package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"liveclass/internal/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "liveclass",
	Short: "Live class coordination service",
	Long: `liveclass runs the realtime core of a live-class platform: the live
session registry, the websocket hub, access grants and session history.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv(config.EnvPrefix+"CONFIG_FILE"),
		"Path to a JSON config file (overrides environment)")
}
