package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/tsagent/internal/providers"
)

type modelEntry struct {
	Model  string `json:"model"`
	Status string `json:"status"`
}

func modelsCmd() *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List models available at the configured endpoint",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig()
			client := providers.NewClient(
				cfg.Model.Endpoint(),
				time.Duration(cfg.Model.TimeoutSeconds)*time.Second,
				providers.RetryConfig{MaxRetries: 1, BaseDelay: time.Second, MaxDelay: 2 * time.Second},
				cfg.Model.Temperature,
			)

			names, err := client.ListModels(context.Background())
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error listing models: %v\n", err)
				os.Exit(1)
			}

			entries := make([]modelEntry, 0, len(names))
			for _, n := range names {
				status := "available"
				if n == cfg.Model.Name {
					status = "configured"
				}
				entries = append(entries, modelEntry{Model: n, Status: status})
			}

			if jsonOutput {
				data, _ := json.MarshalIndent(entries, "", "  ")
				fmt.Println(string(data))
				return
			}

			tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintf(tw, "MODEL\tSTATUS\n")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\n", e.Model, e.Status)
			}
			tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}
