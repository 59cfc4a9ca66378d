package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/solaudit/solaudit/pkg/config"
	"github.com/solaudit/solaudit/pkg/intel"
	"github.com/solaudit/solaudit/pkg/registry"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show resolved tools, external services, and configuration",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.LoadConfig()
		if err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			return
		}
		logger := newLogger(cfg)

		keyState := "not set"
		if cfg.GetAPIKey(cfg.SelectedProvider) != "" {
			keyState = "set"
		}
		fmt.Printf("Advisor:    %s (%s), api key %s\n", cfg.SelectedProvider, cfg.SelectedModel, keyState)
		fmt.Printf("Tools root: %s\n", cfg.ToolsRoot)
		if dbPath, err := cfg.HistoryDBPath(); err == nil {
			fmt.Printf("History:    %s\n", dbPath)
		}

		fmt.Println("\nAnalyzers:")
		resolver := registry.NewResolver(cfg.ToolsRoot, logger)
		for _, d := range resolver.Tools() {
			cands, err := resolver.Resolve(d.Name)
			if err != nil {
				fmt.Printf("  %-12s missing\n", d.Name)
				continue
			}
			fmt.Printf("  %-12s %s (%s)\n", d.Name, cands[0].Program, cands[0].Confidence)
		}

		fmt.Println("\nAnalysis services:")
		client := intel.NewClient(intel.Config{
			IntentEndpoint: cfg.Intel.IntentEndpoint,
			EmbedEndpoint:  cfg.Intel.EmbedEndpoint,
		}, logger)
		for _, s := range client.Status(cmd.Context()) {
			state := "unreachable"
			if s.Reachable {
				state = "ok"
			}
			endpoint := s.Endpoint
			if endpoint == "" {
				endpoint = "not configured"
				state = "disabled"
			}
			fmt.Printf("  %-12s %-12s %s\n", s.Name, state, endpoint)
		}
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
