// Package cmd implements the tsagent CLI.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/tsagent/internal/config"
)

var (
	cfgPath string
	verbose bool
)

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tsagent",
		Short: "Interactive agent for time-series analysis and forecasting",
		Long: `tsagent turns natural-language requests about a tabular time series
into generated analysis/forecasting code, executes it in a persistent
per-session runtime, and repairs it on failure.

Start without arguments for the interactive REPL:

  tsagent
  > analyze sales.csv sales_amount store_id
  > forecast the next 10 timesteps
  > fix write results to csv`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging()
		},
		Run: func(cmd *cobra.Command, args []string) {
			runRepl()
		},
	}

	cmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file path (default ~/.tsagent/config.yaml)")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	cmd.Flags().StringVarP(&resumeSession, "session", "s", "", "resume a persisted session by ID")

	cmd.AddCommand(modelsCmd())
	cmd.AddCommand(sessionsCmd())

	return cmd
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func setupLogging() {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func resolveConfigPath() string {
	if cfgPath != "" {
		return cfgPath
	}
	return config.DefaultPath()
}

func loadConfig() *config.Config {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}
