package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/boddenberg/telecom-support-go/internal/domain"
	"github.com/boddenberg/telecom-support-go/internal/infra/observability"
	"github.com/boddenberg/telecom-support-go/internal/service"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
)

const declinedPayload = `{"success":false,"message":"Customer declined the action"}`

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the assistant in the terminal",
	Long: `Starts an interactive session against the in-process workflow. Proposed account
changes are shown for confirmation before they are applied.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig(cmd)
		if level, _ := cmd.Flags().GetString("log-level"); level == "" {
			cfg.LogLevel = "error"
		}
		logger := observability.NewLogger(cfg.LogLevel)
		defer func() { _ = logger.Sync() }()

		a, err := newApp(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		plain, _ := cmd.Flags().GetBool("plain")
		render := newRenderer(plain)

		return runChat(cmd.Context(), a, os.Stdin, cmd.OutOrStdout(), render)
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().Bool("plain", false, "Print replies without markdown rendering")
}

// newRenderer returns a markdown renderer for replies. It falls back to the
// raw text when glamour cannot be initialised.
func newRenderer(plain bool) func(string) string {
	if plain {
		return func(s string) string { return s + "\n" }
	}
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err != nil {
		return func(s string) string { return s + "\n" }
	}
	return func(s string) string {
		out, err := r.Render(s)
		if err != nil {
			return s + "\n"
		}
		return out
	}
}

func runChat(ctx context.Context, a *app, in io.Reader, out io.Writer, render func(string) string) error {
	state := a.sessions.Create()
	defer a.sessions.End(state.SessionID)

	fmt.Fprintln(out, "Telecom support. Type your message, or \"exit\" to quit.")
	scanner := bufio.NewScanner(in)
	prompt := func() bool {
		fmt.Fprint(out, "> ")
		return scanner.Scan()
	}

	for prompt() {
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		turn := a.workflow.Run(ctx, state, line)
		for turn.Outcome == observability.TurnPendingActions {
			results := confirmActions(turn.Pending, scanner, out)
			next, err := a.workflow.Resume(ctx, state, results)
			if err != nil {
				return err
			}
			turn = next
		}
		printTurn(out, state, turn, render)
	}
	return scanner.Err()
}

// confirmActions asks about each pending action. Confirmed actions get no
// result so the workflow executes them; declined ones are answered here.
func confirmActions(pending []domain.ToolCall, scanner *bufio.Scanner, out io.Writer) []service.ActionResult {
	var results []service.ActionResult
	for _, call := range pending {
		fmt.Fprintf(out, "Apply %s %v? [y/N] ", call.Name, call.Arguments)
		answer := ""
		if scanner.Scan() {
			answer = strings.ToLower(strings.TrimSpace(scanner.Text()))
		}
		if answer != "y" && answer != "yes" {
			results = append(results, service.ActionResult{ToolCallID: call.ID, Content: declinedPayload})
		}
	}
	return results
}

func printTurn(out io.Writer, state *domain.ConversationState, turn *service.TurnResult, render func(string) string) {
	if state.Intent != nil {
		fmt.Fprintf(out, "[intent: %s, urgency: %s]\n", state.Intent.Category, state.Intent.Urgency)
	}
	if esc := state.Escalation; esc != nil && esc.Required {
		fmt.Fprintf(out, "[escalated to %s, ticket %s, priority %d]\n", esc.AssignedTo, esc.TicketID, esc.Priority)
	}
	fmt.Fprint(out, render(turn.Reply))
	if state.Reply != nil && len(state.Reply.SuggestedActions) > 0 {
		fmt.Fprintln(out, "Suggestions:")
		for _, s := range state.Reply.SuggestedActions {
			fmt.Fprintf(out, "  - %s\n", s)
		}
	}
}
