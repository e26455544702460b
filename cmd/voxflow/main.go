// Package main is the CLI entry point for VoxFlow, an AI voice-call
// orchestration engine. It connects a telephony carrier (Twilio) to
// OpenAI speech and dialogue models and manages the lifecycle of every
// active call.
//
// # Basic Usage
//
// Start the server:
//
//	voxflow serve --config voxflow.yaml
//
// Place an outbound call through a running server:
//
//	voxflow call --contact contact-123 --campaign campaign-7
//
// List active call sessions:
//
//	voxflow sessions
//
// # Environment Variables
//
//   - VOXFLOW_CONFIG: Path to configuration file (default: voxflow.yaml)
//   - OPENAI_API_KEY: OpenAI API key, referenced from the config file
//   - TWILIO_ACCOUNT_SID / TWILIO_AUTH_TOKEN: Twilio credentials
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Build information, populated by ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "voxflow",
		Short: "AI voice-call orchestration engine",
		Long: `VoxFlow orchestrates AI-driven phone calls: it answers carrier
webhooks, streams call audio through speech recognition, generates
replies with a dialogue model, and speaks them back to the caller.`,
		SilenceUsage: true,
	}

	configPath := os.Getenv("VOXFLOW_CONFIG")
	if configPath == "" {
		configPath = "voxflow.yaml"
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", configPath, "path to configuration file")

	rootCmd.AddCommand(newServeCmd(&configPath))
	rootCmd.AddCommand(newCallCmd())
	rootCmd.AddCommand(newSessionsCmd())
	rootCmd.AddCommand(newVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("voxflow %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}
