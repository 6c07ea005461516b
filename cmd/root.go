// Package cmd provides CLI commands.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/msgpilot/msgpilot/config"
	"github.com/msgpilot/msgpilot/logger"
	"github.com/msgpilot/msgpilot/provider"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	logLevelOverride string
)

// rootCmd is the root command.
var rootCmd = &cobra.Command{
	Use:     "msgpilot",
	Short:   "msgpilot - a personal messaging assistant",
	Long:    buildRootLong(),
	Version: Version,
}

func buildRootLong() string {
	var sb strings.Builder
	sb.WriteString("msgpilot is a personal messaging assistant. It answers questions about\n")
	sb.WriteString("your message history and can send or schedule messages on your behalf\n")
	sb.WriteString("through an external delivery bridge.\n\n")
	sb.WriteString("Supported providers:\n")
	for _, name := range provider.SupportedProviders() {
		sb.WriteString(fmt.Sprintf("  - %s\n", name))
	}
	sb.WriteString("\nGet started with: msgpilot init --api-key sk-xxx")
	return sb.String()
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVar(&logLevelOverride, "log-level", "", "Override log level for this run (debug, info, warn, error)")
	rootCmd.PersistentPreRunE = applyRuntimeLogOverrides
}

func applyRuntimeLogOverrides(cmd *cobra.Command, args []string) error {
	if logLevelOverride == "" {
		return nil
	}

	level := strings.ToLower(strings.TrimSpace(logLevelOverride))
	switch level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid --log-level: %q (use debug, info, warn, error)", logLevelOverride)
	}

	cfg, err := config.Load()
	if err != nil {
		cfg = config.DefaultConfig()
	}
	cfg.Logging.Level = level

	dir, err := config.ConfigDir()
	if err != nil {
		return err
	}
	return logger.Init(logger.Config{
		Enabled: cfg.LogEnabled(),
		Level:   cfg.Logging.Level,
		Stdout:  cfg.Logging.Stdout,
		File:    cfg.Logging.File,
	}, dir)
}
