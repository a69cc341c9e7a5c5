package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/boddenberg/telecom-support-go/internal/domain"
	"github.com/boddenberg/telecom-support-go/internal/infra/observability"
	"github.com/boddenberg/telecom-support-go/internal/port"

	"go.uber.org/zap"
)

var (
	wrappedReplyActions  = []string{"View account details", "Speak to specialist", "Explore options"}
	fallbackReplyActions = []string{"View account", "Contact specialist"}
)

const anonymousReply = "I'd be happy to help! Could you provide your Customer ID so I can give you personalized assistance?"

const replyInstructions = `YOUR TASK:
1. Respond naturally and conversationally.
2. Reference the customer's actual plan and amounts when relevant.
3. If churn risk is HIGH, offer retention incentives.
4. Offer 2-4 follow-up actions.
5. For billing issues break down the charges; for cancellations acknowledge tenure and mention
   retention discounts; for service issues show empathy and offer immediate help.
6. Before changing a service, quote the price impact from calculateServiceCost and wait for
   the customer to confirm.

Reply with JSON only:
{"message": "your reply", "suggestedActions": ["Action 1", "Action 2"]}`

// ReplyGenerator writes the customer-facing answer.
type ReplyGenerator struct {
	llm       port.Completer
	customers port.CustomerFinder
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// NewReplyGenerator creates a generator. llm may be nil.
func NewReplyGenerator(llm port.Completer, customers port.CustomerFinder, metrics *observability.Metrics, logger *zap.Logger) *ReplyGenerator {
	return &ReplyGenerator{llm: llm, customers: customers, metrics: metrics, logger: logger}
}

// Generate never fails. Non-JSON model text is passed through as the message.
func (g *ReplyGenerator) Generate(ctx context.Context, customerID string, intent domain.IntentCategory, message string) domain.ReplyResult {
	ctx, span := tracer.Start(ctx, "ReplyGenerator.Generate")
	defer span.End()

	var customer *domain.CustomerRecord
	if customerID != "" {
		if c, ok := g.customers.FindByID(ctx, customerID); ok {
			customer = c
		}
	}

	start := time.Now()
	raw, err := g.invoke(ctx, customer, intent, message)
	if err != nil {
		g.logger.Warn("reply generation falling back to template",
			zap.String("customer_id", customerID),
			zap.Error(err),
		)
		g.metrics.RecordDecision("reply", observability.PathFallback, time.Since(start))
		return TemplateReply(customer, intent)
	}
	g.metrics.RecordDecision("reply", observability.PathModel, time.Since(start))

	var reply domain.ReplyResult
	if err := domain.DecodeModelJSON(raw, "reply", &reply); err != nil {
		return domain.ReplyResult{
			Message:          raw,
			SuggestedActions: append([]string(nil), wrappedReplyActions...),
		}
	}
	if reply.SuggestedActions == nil {
		reply.SuggestedActions = []string{}
	}
	return reply
}

func (g *ReplyGenerator) invoke(ctx context.Context, customer *domain.CustomerRecord, intent domain.IntentCategory, message string) (string, error) {
	if g.llm == nil {
		return "", errNoModel
	}

	var b strings.Builder
	b.WriteString("You are a professional telecom customer support agent.\n\nCUSTOMER CONTEXT:\n")
	if customer != nil {
		b.WriteString(CustomerContext(customer))
		fmt.Fprintf(&b, "\n- Streaming TV: %s\n- Streaming Movies: %s\n- Device Protection: %s\n- Tech Support: %s",
			customer.StreamingTV, customer.StreamingMovies, customer.DeviceProtection, customer.TechSupport)
	} else {
		b.WriteString("Customer not identified yet - ask for the Customer ID")
	}
	fmt.Fprintf(&b, "\n\nDETECTED INTENT: %s\nUSER MESSAGE: %q\n\n%s", intent, message, replyInstructions)

	return g.llm.Invoke(ctx, []port.PromptMessage{
		{Role: "system", Text: b.String()},
		{Role: "user", Text: message},
	})
}

// TemplateReply is the deterministic reply used when the model call fails.
func TemplateReply(customer *domain.CustomerRecord, intent domain.IntentCategory) domain.ReplyResult {
	msg := anonymousReply
	if customer != nil {
		msg = fmt.Sprintf("I understand your %s concern. I can see you're on our %s service at $%s/month. Let me help you with this.",
			strings.ReplaceAll(string(intent), "_", " "),
			customer.InternetService,
			formatAmount(customer.MonthlyCharges),
		)
	}
	return domain.ReplyResult{
		Message:          msg,
		SuggestedActions: append([]string(nil), fallbackReplyActions...),
	}
}
