package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/solaudit/solaudit/pkg/advisor"
	"github.com/solaudit/solaudit/pkg/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration (providers, models, keys, paths)",
}

var setKeyCmd = &cobra.Command{
	Use:   "set-key",
	Short: "Manually set API key for a provider",
	Run: func(cmd *cobra.Command, args []string) {
		provider, _ := cmd.Flags().GetString("provider")
		key, _ := cmd.Flags().GetString("key")

		if provider == "" || key == "" {
			fmt.Println("Error: --provider and --key are required")
			return
		}

		cfg, err := config.LoadConfig()
		if err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			return
		}

		cfg.SetAPIKey(strings.ToLower(provider), key)
		if err := config.SaveConfig(cfg); err != nil {
			fmt.Printf("Error saving config: %v\n", err)
			return
		}
		fmt.Printf("API key saved for provider: %s\n", provider)
	},
}

var setModelCmd = &cobra.Command{
	Use:   "set-model",
	Short: "Manually set the active provider and model",
	Run: func(cmd *cobra.Command, args []string) {
		provider, _ := cmd.Flags().GetString("provider")
		model, _ := cmd.Flags().GetString("model")

		cfg, err := config.LoadConfig()
		if err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			return
		}

		if provider != "" {
			cfg.SelectedProvider = strings.ToLower(provider)
		}
		if model != "" {
			cfg.SelectedModel = model
		}

		if err := config.SaveConfig(cfg); err != nil {
			fmt.Printf("Error saving config: %v\n", err)
			return
		}
		fmt.Printf("Active configuration updated: Provider=%s, Model=%s\n", cfg.SelectedProvider, cfg.SelectedModel)
	},
}

var listModelsCmd = &cobra.Command{
	Use:   "list-models",
	Short: "List available models from the configured provider",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.LoadConfig()
		if err != nil {
			fmt.Println("Error loading config:", err)
			return
		}

		provider := cfg.SelectedProvider
		if provider == "" {
			fmt.Println("No provider selected. Please run 'solaudit config setup'.")
			return
		}
		apiKey := cfg.GetAPIKey(provider)
		if apiKey == "" {
			fmt.Printf("No API key found for %s.\n", provider)
			return
		}

		fmt.Printf("Fetching models for %s...\n", provider)
		ctx := cmd.Context()
		p, err := advisor.NewProvider(ctx, provider, apiKey, "")
		if err != nil {
			fmt.Println("Error initializing provider:", err)
			return
		}
		defer p.Close()

		models, err := p.ListModels(ctx)
		if err != nil {
			fmt.Println("Error fetching models:", err)
			return
		}

		fmt.Printf("\nAvailable Models (%s):\n", provider)
		for _, m := range models {
			mark := " "
			if m == cfg.SelectedModel {
				mark = "*"
			}
			fmt.Printf("%s %s\n", mark, m)
		}
	},
}

var showConfigCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.LoadConfig()
		if err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			return
		}

		path, _ := config.GetConfigPath()
		fmt.Printf("Config file:     %s\n", path)
		fmt.Printf("Provider:        %s\n", cfg.SelectedProvider)
		fmt.Printf("Model:           %s\n", cfg.SelectedModel)
		fmt.Printf("Tools root:      %s\n", cfg.ToolsRoot)
		fmt.Printf("Concurrency:     %d\n", cfg.Concurrency)
		fmt.Printf("Rules file:      %s\n", orDefault(cfg.RulesPath, "built-in defaults"))
		fmt.Printf("Allowed roots:   %s\n", orDefault(strings.Join(cfg.AllowedRoots, ", "), "current directory"))
		fmt.Printf("Intent service:  %s\n", cfg.Intel.IntentEndpoint)
		fmt.Printf("Embed service:   %s\n", cfg.Intel.EmbedEndpoint)
		if dbPath, err := cfg.HistoryDBPath(); err == nil {
			fmt.Printf("History:         %s\n", dbPath)
		}
	},
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func init() {
	setKeyCmd.Flags().StringP("provider", "p", "", "Provider (gemini, openai, anthropic)")
	setKeyCmd.Flags().StringP("key", "k", "", "API Key")

	setModelCmd.Flags().StringP("provider", "p", "", "Provider (gemini, openai, anthropic)")
	setModelCmd.Flags().StringP("model", "m", "", "Model name")

	configCmd.AddCommand(setKeyCmd)
	configCmd.AddCommand(setModelCmd)
	configCmd.AddCommand(listModelsCmd)
	configCmd.AddCommand(showConfigCmd)
	rootCmd.AddCommand(configCmd)
}
