package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nao1215/comicscan/internal/analysis"
	"github.com/nao1215/comicscan/internal/config"
)

// NewModelsCmd creates the models command.
func NewModelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List the models available to the configured API key",
		Long: `Models lists the analysis models available to the configured API key,
newest first. Use the listed identifiers with the scan command's --model,
--fallback-model, and --summary-model flags.`,
		Args: cobra.NoArgs,
		RunE: runModelsCmd,
	}

	cmd.Flags().String("api-key", "",
		"Analysis service API key (default: ANTHROPIC_API_KEY)")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Request timeout")

	return cmd
}

// runModelsCmd executes the models command.
func runModelsCmd(cmd *cobra.Command, _ []string) error {
	apiKey, err := cmd.Flags().GetString("api-key")
	if err != nil {
		return err
	}
	if apiKey == "" {
		apiKey = os.Getenv(config.EnvAPIKey)
	}
	if apiKey == "" {
		return config.ErrNoAPIKey
	}

	timeout, err := cmd.Flags().GetDuration("timeout")
	if err != nil {
		return err
	}

	client := analysis.NewClient(apiKey, analysis.WithTimeout(timeout))

	// Discovery is best effort; a failure logs a warning and lists nothing.
	models := client.ListModels(cmd.Context())

	out := cmd.OutOrStdout()
	if len(models) == 0 {
		fmt.Fprintln(out, "No models available (check the API key and network)")
		return nil
	}

	fmt.Fprintf(out, "%-40s %-30s %s\n", "ID", "NAME", "CREATED")
	for _, m := range models {
		fmt.Fprintf(out, "%-40s %-30s %s\n", m.ID, m.DisplayName, m.CreatedAt)
	}

	return nil
}
