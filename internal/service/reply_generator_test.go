package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/boddenberg/telecom-support-go/internal/domain"
	"github.com/boddenberg/telecom-support-go/internal/infra/observability"
	"github.com/boddenberg/telecom-support-go/internal/service"
)

func newReplyGenerator(llm *mockCompleter) *service.ReplyGenerator {
	customer := domain.CustomerRecord{CustomerID: "9237-HQITU", InternetService: domain.InternetFiber, MonthlyCharges: 70.7, Churn: domain.Yes}
	return service.NewReplyGenerator(llm, staticFinder{"9237-HQITU": customer}, observability.NewMetrics(), zap.NewNop())
}

func TestGenerate_ModelJSON(t *testing.T) {
	llm := &mockCompleter{replies: []string{`{"message": "Your bill is $70.70.", "suggestedActions": ["Review charges"]}`}}

	got := newReplyGenerator(llm).Generate(context.Background(), "9237-HQITU", domain.IntentBillingIssue, "why so high?")

	assert.Equal(t, "Your bill is $70.70.", got.Message)
	assert.Equal(t, []string{"Review charges"}, got.SuggestedActions)
	assert.Contains(t, llm.prompts[0][0].Text, "HIGH (at risk of leaving)")
}

func TestGenerate_PlainTextIsWrapped(t *testing.T) {
	llm := &mockCompleter{replies: []string{"Sure, let me look into that."}}

	got := newReplyGenerator(llm).Generate(context.Background(), "", domain.IntentGeneralInquiry, "hi")

	assert.Equal(t, "Sure, let me look into that.", got.Message)
	assert.Equal(t, []string{"View account details", "Speak to specialist", "Explore options"}, got.SuggestedActions)
}

func TestGenerate_FailureUsesTemplate(t *testing.T) {
	llm := &mockCompleter{err: errors.New("unavailable")}
	g := newReplyGenerator(llm)

	known := g.Generate(context.Background(), "9237-HQITU", domain.IntentBillingIssue, "why so high?")
	assert.Equal(t,
		"I understand your billing issue concern. I can see you're on our Fiber optic service at $70.7/month. Let me help you with this.",
		known.Message)
	assert.Equal(t, []string{"View account", "Contact specialist"}, known.SuggestedActions)

	anonymous := g.Generate(context.Background(), "", domain.IntentBillingIssue, "why so high?")
	assert.Equal(t,
		"I'd be happy to help! Could you provide your Customer ID so I can give you personalized assistance?",
		anonymous.Message)
}
