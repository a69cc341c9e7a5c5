package service

import (
	"context"

	"github.com/boddenberg/telecom-support-go/internal/domain"
	"github.com/boddenberg/telecom-support-go/internal/port"

	"github.com/google/uuid"
)

// GuidedChatModel is the chat model used when no inference backend is
// configured. It walks the internal tools in a fixed order (classify,
// escalate, reply) and answers with the generated reply.
type GuidedChatModel struct{}

// Chat picks the next tool from the results already in history.
func (GuidedChatModel) Chat(_ context.Context, _ string, history []domain.Message, _ []port.ToolSpec) (*domain.Message, error) {
	last := -1
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == domain.RoleHuman {
			last = i
			break
		}
	}
	if last < 0 {
		return &domain.Message{Role: domain.RoleAI, Content: chatFailureReply}, nil
	}
	message := history[last].Content

	var (
		intent     *domain.IntentResult
		escalation *domain.EscalationResult
		reply      *domain.ReplyResult
	)
	for _, m := range history[last+1:] {
		if m.Role != domain.RoleTool {
			continue
		}
		var err error
		switch m.ToolName {
		case ToolClassifyIntent:
			intent = new(domain.IntentResult)
			err = decodeToolPayload(m.Content, "intent result", intent)
		case ToolCheckEscalation:
			escalation = new(domain.EscalationResult)
			err = decodeToolPayload(m.Content, "escalation result", escalation)
		case ToolGenerateReply:
			reply = new(domain.ReplyResult)
			err = decodeToolPayload(m.Content, "reply result", reply)
		}
		// Tool failures are not retried.
		if err != nil {
			return &domain.Message{Role: domain.RoleAI, Content: chatFailureReply}, nil
		}
	}

	customerID := latestCustomerID(history[:last+1])

	switch {
	case intent == nil:
		return toolCallMessage(ToolClassifyIntent, map[string]any{"message": message}), nil
	case escalation == nil:
		return toolCallMessage(ToolCheckEscalation, map[string]any{
			"customerId": customerID,
			"intent":     string(intent.Category),
			"urgency":    string(intent.Urgency),
		}), nil
	case reply == nil:
		return toolCallMessage(ToolGenerateReply, map[string]any{
			"customerId": customerID,
			"intent":     string(intent.Category),
			"message":    message,
		}), nil
	}

	content := reply.Message
	if content == "" {
		content = chatFailureReply
	}
	return &domain.Message{Role: domain.RoleAI, Content: content}, nil
}

// latestCustomerID returns the most recent customer id mentioned by the
// customer in this conversation.
func latestCustomerID(history []domain.Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role != domain.RoleHuman {
			continue
		}
		if id, ok := ExtractCustomerID(history[i].Content); ok {
			return id
		}
	}
	return ""
}

func toolCallMessage(name string, args map[string]any) *domain.Message {
	return &domain.Message{
		Role: domain.RoleAI,
		ToolCalls: []domain.ToolCall{{
			ID:        "call_" + uuid.NewString(),
			Name:      name,
			Arguments: args,
		}},
	}
}
