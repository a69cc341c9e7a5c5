package service

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/boddenberg/telecom-support-go/internal/domain"
	"github.com/boddenberg/telecom-support-go/internal/infra/observability"
	"github.com/boddenberg/telecom-support-go/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// DefaultMaxToolSteps bounds chat→tool_exec cycles per turn.
const DefaultMaxToolSteps = 12

const (
	chatFailureReply  = "I'm here to help! Could you please provide more details about your issue?"
	supersededPayload = `{"success":false,"message":"Action was not performed"}`
	stepLimitPayload  = `{"error":"tool step limit reached"}`
)

type route int

const (
	routeEnd route = iota
	routeToolExec
	routePending
)

// TurnResult is what a caller sees after a turn reaches end.
type TurnResult struct {
	Reply   string            `json:"reply"`
	Pending []domain.ToolCall `json:"pendingActions,omitempty"`
	Outcome string            `json:"outcome"`
	Steps   int               `json:"steps"`
}

// ActionResult is a caller-supplied result for a pending external action.
type ActionResult struct {
	ToolCallID string `json:"toolCallId"`
	Content    string `json:"content"`
}

// Workflow runs conversation turns: chat, tool execution, result merging,
// repeated until the model stops calling internal tools.
type Workflow struct {
	chat     port.ChatModel
	tools    *SupportTools
	accounts *AccountStateStore
	tickets  port.TicketPublisher
	maxSteps int
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewWorkflow creates the orchestrator. maxSteps <= 0 uses DefaultMaxToolSteps.
func NewWorkflow(
	chat port.ChatModel,
	tools *SupportTools,
	accounts *AccountStateStore,
	tickets port.TicketPublisher,
	maxSteps int,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *Workflow {
	if maxSteps <= 0 {
		maxSteps = DefaultMaxToolSteps
	}
	return &Workflow{
		chat:     chat,
		tools:    tools,
		accounts: accounts,
		tickets:  tickets,
		maxSteps: maxSteps,
		metrics:  metrics,
		logger:   logger,
	}
}

// Run processes one inbound customer message.
func (w *Workflow) Run(ctx context.Context, state *domain.ConversationState, message string) *TurnResult {
	ctx, span := tracer.Start(ctx, "Workflow.Run")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", state.SessionID))

	w.settlePending(state)
	domain.StateUpdate{AppendMessages: []domain.Message{{Role: domain.RoleHuman, Content: message}}}.Apply(state)
	w.syncCustomers(state)
	w.identifyCustomer(state, message)

	result := w.loop(ctx, state)
	span.SetAttributes(attribute.String("turn.outcome", result.Outcome))
	return result
}

// Resume answers the pending tool calls of the last model message and
// continues the conversation. External calls without a supplied result are
// executed against the account store.
func (w *Workflow) Resume(ctx context.Context, state *domain.ConversationState, results []ActionResult) (*TurnResult, error) {
	ctx, span := tracer.Start(ctx, "Workflow.Resume")
	defer span.End()

	pending := unansweredCalls(state)
	if len(pending) == 0 {
		return nil, &domain.ErrValidation{Field: "actions", Message: "no pending actions in this session"}
	}

	supplied := make(map[string]string, len(results))
	for _, r := range results {
		supplied[r.ToolCallID] = r.Content
	}

	since := len(state.Messages)
	var answers []domain.Message
	for _, call := range pending {
		switch KindOf(call.Name) {
		case ToolExternal:
			if content, ok := supplied[call.ID]; ok {
				w.metrics.IncrToolExecution(call.Name, string(ToolExternal))
				answers = append(answers, domain.Message{
					Role: domain.RoleTool, Content: content, ToolName: call.Name, ToolCallID: call.ID,
				})
				continue
			}
			answers = append(answers, w.tools.ExecuteExternal(ctx, call))
		default:
			answers = append(answers, w.tools.ExecuteInternal(ctx, state, call))
		}
	}
	domain.StateUpdate{AppendMessages: answers}.Apply(state)
	w.syncCustomers(state)
	w.processResults(ctx, state, since)

	return w.loop(ctx, state), nil
}

// PendingActions lists the external calls awaiting the caller.
func PendingActions(state *domain.ConversationState) []domain.ToolCall {
	var out []domain.ToolCall
	for _, c := range unansweredCalls(state) {
		if KindOf(c.Name) == ToolExternal {
			out = append(out, c)
		}
	}
	return out
}

func (w *Workflow) loop(ctx context.Context, state *domain.ConversationState) *TurnResult {
	steps := 0
	for {
		msg, err := w.chatStep(ctx, state)
		if err != nil {
			w.logger.Error("chat model failed, ending turn",
				zap.String("session_id", state.SessionID),
				zap.Error(err),
			)
			appendAI(state, chatFailureReply)
			return w.finish(observability.TurnError, chatFailureReply, nil, steps)
		}

		switch routeOf(msg.ToolCalls) {
		case routeEnd:
			return w.finish(observability.TurnComplete, replyText(msg, state), nil, steps)

		case routePending:
			var pending []domain.ToolCall
			for _, c := range msg.ToolCalls {
				if KindOf(c.Name) == ToolExternal {
					pending = append(pending, c)
				}
			}
			return w.finish(observability.TurnPendingActions, msg.Content, pending, steps)

		case routeToolExec:
			if steps >= w.maxSteps {
				w.logger.Warn("tool step limit reached",
					zap.String("session_id", state.SessionID),
					zap.Int("steps", steps),
				)
				w.abandonCalls(state, msg.ToolCalls)
				reply := chatFailureReply
				if state.Reply != nil && state.Reply.Message != "" {
					reply = state.Reply.Message
				}
				appendAI(state, reply)
				return w.finish(observability.TurnStepLimit, reply, nil, steps)
			}
			steps++
			since := len(state.Messages)
			w.execTools(ctx, state, msg.ToolCalls)
			w.processResults(ctx, state, since)
		}
	}
}

func (w *Workflow) finish(outcome, reply string, pending []domain.ToolCall, steps int) *TurnResult {
	w.metrics.IncrTurn(outcome)
	return &TurnResult{Reply: reply, Pending: pending, Outcome: outcome, Steps: steps}
}

// chatStep invokes the model with every tool bound and appends its message.
func (w *Workflow) chatStep(ctx context.Context, state *domain.ConversationState) (*domain.Message, error) {
	ctx, span := tracer.Start(ctx, "Workflow.chat")
	defer span.End()

	start := time.Now()
	msg, err := w.chat.Chat(ctx, systemPrompt(state), state.Messages, w.tools.Specs())
	if err != nil {
		w.metrics.RecordDecision("chat", observability.PathFallback, time.Since(start))
		span.RecordError(err)
		return nil, err
	}
	w.metrics.RecordDecision("chat", observability.PathModel, time.Since(start))

	out := *msg
	out.Role = domain.RoleAI
	out.ToolCalls = slices.Clone(msg.ToolCalls)
	for i := range out.ToolCalls {
		if out.ToolCalls[i].ID == "" {
			out.ToolCalls[i].ID = "call_" + uuid.NewString()
		}
	}
	domain.StateUpdate{AppendMessages: []domain.Message{out}}.Apply(state)
	return &out, nil
}

// execTools runs every internal call of one model message, in order.
func (w *Workflow) execTools(ctx context.Context, state *domain.ConversationState, calls []domain.ToolCall) {
	results := make([]domain.Message, 0, len(calls))
	for _, call := range calls {
		results = append(results, w.tools.ExecuteInternal(ctx, state, call))
	}
	domain.StateUpdate{AppendMessages: results}.Apply(state)
}

// processResults merges every tool result appended since index since.
func (w *Workflow) processResults(ctx context.Context, state *domain.ConversationState, since int) {
	results := slices.Clone(state.Messages[since:])
	for _, m := range results {
		if m.Role != domain.RoleTool {
			continue
		}
		update, err := w.parseToolResult(m, state)
		if err != nil {
			w.logger.Warn("ignoring tool result",
				zap.String("session_id", state.SessionID),
				zap.String("tool", m.ToolName),
				zap.Error(err),
			)
			continue
		}
		update.Apply(state)
		if update.Escalation != nil {
			w.onEscalation(ctx, state)
		}
	}
}

func (w *Workflow) parseToolResult(m domain.Message, state *domain.ConversationState) (domain.StateUpdate, error) {
	var update domain.StateUpdate
	switch m.ToolName {
	case ToolClassifyIntent:
		var r domain.IntentResult
		if err := decodeToolPayload(m.Content, m.ToolName, &r); err != nil {
			return update, err
		}
		update.Intent = &r
	case ToolLookupCustomer:
		var r LookupResult
		if err := json.Unmarshal([]byte(m.Content), &r); err != nil {
			return update, &domain.ErrParse{What: m.ToolName, Err: err}
		}
		if r.CustomerID == "" {
			return update, &domain.ErrParse{What: m.ToolName, Err: fmt.Errorf("missing customerId")}
		}
		update.CurrentCustomer = &domain.CurrentCustomer{ID: r.CustomerID, Found: r.Found, Data: r.Data}
	case ToolCheckEscalation:
		var r domain.EscalationResult
		if err := decodeToolPayload(m.Content, m.ToolName, &r); err != nil {
			return update, err
		}
		update.Escalation = &r
	case ToolGenerateReply:
		var r domain.ReplyResult
		if err := decodeToolPayload(m.Content, m.ToolName, &r); err != nil {
			return update, err
		}
		update.Reply = &r
	default:
		if KindOf(m.ToolName) != ToolExternal {
			return update, fmt.Errorf("unknown tool %q", m.ToolName)
		}
		var r MutationResult
		if err := json.Unmarshal([]byte(m.Content), &r); err != nil {
			return update, &domain.ErrParse{What: m.ToolName, Err: err}
		}
		if r.Success && r.Customer != nil && state.CurrentCustomer.ID == r.Customer.CustomerID {
			if c, ok := w.accounts.GetByCustomerID(r.Customer.CustomerID); ok {
				update.CurrentCustomer = &domain.CurrentCustomer{ID: c.CustomerID, Found: true, Data: c}
			}
		}
	}
	return update, nil
}

// onEscalation announces a minted ticket, publishes it and flags the account.
func (w *Workflow) onEscalation(ctx context.Context, state *domain.ConversationState) {
	esc := state.Escalation
	if esc == nil || !esc.Required || esc.TicketID == "" {
		return
	}

	team := string(esc.AssignedTo)
	if team == "" {
		team = "support"
	}
	appendAI(state, fmt.Sprintf("I've created a priority ticket (%s). Our %s team will contact you shortly. %s",
		esc.TicketID, team, esc.Reason))

	ticket := domain.Ticket{
		TicketID:   esc.TicketID,
		SessionID:  state.SessionID,
		AssignedTo: esc.AssignedTo,
		Priority:   esc.Priority,
		Reason:     esc.Reason,
	}
	if state.Intent != nil {
		ticket.Intent = string(state.Intent.Category)
	}
	if state.CurrentCustomer.Found {
		ticket.CustomerID = state.CurrentCustomer.ID
	}

	w.metrics.IncrEscalation(team)
	if err := w.tickets.PublishTicket(ctx, ticket); err != nil {
		w.metrics.IncrExternalError("tickets")
		w.logger.Error("failed to publish ticket",
			zap.String("session_id", state.SessionID),
			zap.String("ticket_id", ticket.TicketID),
			zap.Error(err),
		)
	}

	if ticket.CustomerID != "" && w.accounts.SetStatus(ctx, ticket.CustomerID, domain.StatusEscalated) {
		w.syncCustomers(state)
	}
}

// settlePending answers calls left open by an earlier turn so the transcript
// stays well formed when the customer moves on without confirming.
func (w *Workflow) settlePending(state *domain.ConversationState) {
	w.abandonCallsWith(state, unansweredCalls(state), supersededPayload)
}

func (w *Workflow) abandonCalls(state *domain.ConversationState, calls []domain.ToolCall) {
	w.abandonCallsWith(state, calls, stepLimitPayload)
}

func (w *Workflow) abandonCallsWith(state *domain.ConversationState, calls []domain.ToolCall, payload string) {
	if len(calls) == 0 {
		return
	}
	msgs := make([]domain.Message, 0, len(calls))
	for _, c := range calls {
		msgs = append(msgs, domain.Message{Role: domain.RoleTool, Content: payload, ToolName: c.Name, ToolCallID: c.ID})
	}
	domain.StateUpdate{AppendMessages: msgs}.Apply(state)
}

func (w *Workflow) syncCustomers(state *domain.ConversationState) {
	domain.StateUpdate{Customers: w.accounts.Customers()}.Apply(state)
}

// identifyCustomer looks up the first customer id in message, if any.
func (w *Workflow) identifyCustomer(state *domain.ConversationState, message string) {
	id, ok := ExtractCustomerID(message)
	if !ok {
		return
	}
	c, found := FindCustomer(state.Customers, id)
	domain.StateUpdate{CurrentCustomer: &domain.CurrentCustomer{ID: id, Found: found, Data: c}}.Apply(state)
	w.logger.Debug("customer identified from message",
		zap.String("session_id", state.SessionID),
		zap.String("customer_id", id),
		zap.Bool("found", found),
	)
}

func routeOf(calls []domain.ToolCall) route {
	if len(calls) == 0 {
		return routeEnd
	}
	for _, c := range calls {
		if KindOf(c.Name) == ToolExternal {
			return routePending
		}
	}
	return routeToolExec
}

// unansweredCalls returns the tool calls of the latest model message that
// have no tool result yet.
func unansweredCalls(state *domain.ConversationState) []domain.ToolCall {
	for i := len(state.Messages) - 1; i >= 0; i-- {
		m := state.Messages[i]
		if m.Role != domain.RoleAI || len(m.ToolCalls) == 0 {
			continue
		}
		answered := make(map[string]bool)
		for _, later := range state.Messages[i+1:] {
			if later.Role == domain.RoleTool {
				answered[later.ToolCallID] = true
			}
		}
		var open []domain.ToolCall
		for _, c := range m.ToolCalls {
			if !answered[c.ID] {
				open = append(open, c)
			}
		}
		return open
	}
	return nil
}

func decodeToolPayload(content, what string, out any) error {
	if err := json.Unmarshal([]byte(content), out); err != nil {
		return &domain.ErrParse{What: what, Err: err}
	}
	if err := domain.Validate(out); err != nil {
		return &domain.ErrParse{What: what, Err: err}
	}
	return nil
}

func appendAI(state *domain.ConversationState, text string) {
	domain.StateUpdate{AppendMessages: []domain.Message{{Role: domain.RoleAI, Content: text}}}.Apply(state)
}

func replyText(msg *domain.Message, state *domain.ConversationState) string {
	if strings.TrimSpace(msg.Content) != "" {
		return msg.Content
	}
	if state.Reply != nil {
		return state.Reply.Message
	}
	return ""
}

func systemPrompt(state *domain.ConversationState) string {
	var b strings.Builder
	b.WriteString(`You are a telecom customer support assistant.

For every new customer message:
1. Call classifyIntent with the message.
2. If the customer gives an ID (format 1234-ABCDE) that is not loaded yet, call lookupCustomer.
3. Call checkEscalation with the customer ID, intent and urgency.
4. Call generateReply, then answer the customer using its message.

Account changes: call calculateServiceCost first, tell the customer the price impact, and only call
addAddonToCustomer, removeAddonFromCustomer or updateCustomerSettings after they confirm.

CURRENT CONTEXT:
`)
	switch {
	case state.CurrentCustomer.Found && state.CurrentCustomer.Data != nil:
		b.WriteString(CustomerContext(state.CurrentCustomer.Data))
	case state.CurrentCustomer.ID != "":
		fmt.Fprintf(&b, "Customer ID %s was not found.", state.CurrentCustomer.ID)
	default:
		b.WriteString("Customer not identified yet.")
	}
	if state.Intent != nil {
		fmt.Fprintf(&b, "\nIntent: %s (urgency %s)", state.Intent.Category, state.Intent.Urgency)
	}
	if state.Escalation != nil && state.Escalation.Required {
		fmt.Fprintf(&b, "\nEscalated: ticket %s assigned to %s", state.Escalation.TicketID, state.Escalation.AssignedTo)
	}
	return b.String()
}
