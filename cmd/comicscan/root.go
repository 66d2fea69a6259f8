// Package main provides the entry point for the comicscan CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for comicscan.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "comicscan",
		Short: "Analyze comic article images with a vision model",
		Long: `comicscan crawls a comic article (including its pagination and, optionally,
the following episodes of a serial), filters out decorative images, and runs
each comic panel through a vision model to extract characters, events, and
quotes. The per-image facts are aggregated into a narrative summary, and
low-confidence extractions can be escalated to a stronger model tier.

An Anthropic API key is required: set ANTHROPIC_API_KEY or pass --api-key.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	// Add subcommands
	cmd.AddCommand(NewScanCmd())
	cmd.AddCommand(NewModelsCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
