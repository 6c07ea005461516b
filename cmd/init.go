package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/msgpilot/msgpilot/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Non-interactive setup: generate the config file",
	Long: `Generate config.yaml without interactive prompts.
An existing config is never overwritten.

Examples:
  msgpilot init --api-key sk-xxx
  msgpilot init --provider anthropic --model claude-sonnet-4-5 --api-key sk-xxx
  msgpilot init --api-key sk-xxx --bridge-url http://localhost:3010`,
	RunE: runInit,
}

var (
	initProvider  string
	initModel     string
	initAPIKey    string
	initAPIBase   string
	initBridgeURL string
)

func init() {
	initCmd.Flags().StringVar(&initProvider, "provider", "openai", "LLM provider name")
	initCmd.Flags().StringVar(&initModel, "model", "", "Model name (defaults to the provider's default)")
	initCmd.Flags().StringVar(&initAPIKey, "api-key", "", "Provider API key (required)")
	initCmd.Flags().StringVar(&initAPIBase, "api-base", "", "Custom API base URL (optional)")
	initCmd.Flags().StringVar(&initBridgeURL, "bridge-url", "", "Delivery bridge URL (optional)")
	rootCmd.AddCommand(initCmd)
}

func runInit(_ *cobra.Command, _ []string) error {
	apiKey := strings.TrimSpace(initAPIKey)
	if apiKey == "" {
		return fmt.Errorf("--api-key is required")
	}

	cfg := config.DefaultConfig()
	cfg.Provider.Name = initProvider
	cfg.Provider.APIKey = apiKey
	if initModel != "" {
		cfg.Provider.Model = initModel
	}
	if initAPIBase != "" {
		cfg.Provider.APIBase = initAPIBase
	}
	if initBridgeURL != "" {
		cfg.Bridge.URL = initBridgeURL
	}

	configPath, err := config.ConfigPath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(configPath); err == nil {
		fmt.Println("Config already exists, skipping:", configPath)
		return nil
	}
	if err := cfg.Save(); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	fmt.Println("Config created:", configPath)
	return nil
}
