package main

import (
	"fmt"
	"os"

	"github.com/boddenberg/telecom-support-go/internal/config"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "support",
	Short: "Telecom customer support assistant",
	Long: `support runs the conversational support workflow: intent classification,
customer lookup, escalation and reply generation over a shared account store.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		envFile, _ := cmd.Flags().GetString("env-file")
		// Missing .env is normal outside local development.
		_ = config.LoadDotEnv(envFile)
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("env-file", ".env", "Path to a .env file loaded before the environment")
	rootCmd.PersistentFlags().String("log-level", "", "Overrides LOG_LEVEL")
}

// loadConfig reads the environment and applies persistent flag overrides.
func loadConfig(cmd *cobra.Command) *config.Config {
	cfg := config.Load()
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.LogLevel = level
	}
	return cfg
}
