// Package cmd contains all the CLI commands for the application,
// built using the Cobra library.
package cmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/con-solidation/internal/config"
	"github.com/con-solidation/internal/gateway"
	"github.com/con-solidation/internal/usecase"
	"github.com/spf13/cobra"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Aggregates repository activity and prints a markdown health digest",
	Long: `Aggregates issue/PR/comment activity across the configured repositories
and organizations and prints a markdown health digest to standard output.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		// Get the verbose flag from the root command to set up the logger.
		verbose, _ := cmd.InheritedFlags().GetBool("verbose")
		logger := log.New(io.Discard, "", log.LstdFlags) // Default: discard all logs.
		if verbose {
			logger.SetOutput(os.Stderr) // If verbose, log to standard error.
		}

		configPath, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
			os.Exit(1)
		}

		env, err := config.LoadEnv()
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error: GITHUB_TOKEN environment variable is not set.")
			os.Exit(1)
		}

		// Inject dependencies and run the main business logic.
		githubGateway, err := gateway.NewGitHubGateway(env.GitHubToken, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create GitHub gateway: %v\n", err)
			os.Exit(1)
		}
		consolidator := usecase.NewConsolidator(githubGateway, cfg, logger)

		since := usecase.Since(cfg, time.Now())
		report, err := consolidator.Run(ctx, since)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to consolidate activity: %v\n", err)
			os.Exit(1)
		}

		// Print the digest to standard output.
		fmt.Print(usecase.NewRenderer().ToMarkdown(report))
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().StringP("config", "c", "solidation.yaml", "Read configuration from the given file")
}
