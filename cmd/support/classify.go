package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/boddenberg/telecom-support-go/internal/domain"
	"github.com/boddenberg/telecom-support-go/internal/infra/observability"

	"github.com/spf13/cobra"
)

var classifyCmd = &cobra.Command{
	Use:   "classify [message]",
	Short: "Classify a message and decide escalation",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig(cmd)
		logger := observability.NewLogger(cfg.LogLevel)
		defer func() { _ = logger.Sync() }()

		a, err := newApp(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		message := strings.Join(args, " ")
		customerID, _ := cmd.Flags().GetString("customer")

		intent := a.intents.Classify(cmd.Context(), message)
		out := struct {
			Intent     domain.IntentResult      `json:"intent"`
			Escalation *domain.EscalationResult `json:"escalation,omitempty"`
		}{Intent: intent}

		if escalate, _ := cmd.Flags().GetBool("escalate"); escalate {
			esc := a.escalations.Decide(cmd.Context(), customerID, intent.Category, intent.Urgency)
			out.Escalation = &esc
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(classifyCmd)
	classifyCmd.Flags().StringP("customer", "c", "", "Customer ID used for the escalation decision")
	classifyCmd.Flags().Bool("escalate", true, "Also run the escalation decision")
}
