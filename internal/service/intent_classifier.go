package service

import (
	"context"
	"strings"
	"time"

	"github.com/boddenberg/telecom-support-go/internal/domain"
	"github.com/boddenberg/telecom-support-go/internal/infra/observability"
	"github.com/boddenberg/telecom-support-go/internal/port"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const intentSystemPrompt = `You classify customer messages for a telecom support desk.

CATEGORIES:
1. billing_issue - charges, invoices, pricing, refunds, discounts
2. service_outage - internet or phone down, slow, disconnected
3. cancellation - cancel, terminate or stop the service
4. tech_support - setup, configuration, installation, technical problems
5. upgrade_request - faster internet, better plan, fiber
6. payment_issue - failed payments, declined cards, autopay problems
7. general_inquiry - greetings, general questions, information requests

URGENCY:
- high: outages, cancellations, payment failures, or any urgent wording
- medium: billing issues, tech support, complex problems
- low: general inquiries and simple questions

Reply with JSON only:
{"category": "<one of the 7 categories>", "urgency": "low|medium|high", "confidence": 0.0-1.0, "keywords": ["matched", "words"]}

EXAMPLES:
"My internet has been down for 3 hours!" -> {"category": "service_outage", "urgency": "high", "confidence": 0.95, "keywords": ["internet", "down"]}
"What discounts can you offer?" -> {"category": "billing_issue", "urgency": "medium", "confidence": 0.85, "keywords": ["discounts"]}
"I want to cancel my subscription" -> {"category": "cancellation", "urgency": "high", "confidence": 0.98, "keywords": ["cancel", "subscription"]}`

type intentRule struct {
	category domain.IntentCategory
	triggers []string
}

// intentRules is scanned in order; ties keep the earlier category.
var intentRules = []intentRule{
	{domain.IntentBillingIssue, []string{"bill", "charge", "payment", "invoice", "expensive", "cost", "price", "refund", "discount"}},
	{domain.IntentServiceOutage, []string{"not working", "down", "outage", "slow", "disconnected", "no internet", "connection"}},
	{domain.IntentCancellation, []string{"cancel", "terminate", "stop service", "end subscription", "quit"}},
	{domain.IntentTechSupport, []string{"help", "support", "issue", "problem", "error", "configure", "setup", "install"}},
	{domain.IntentUpgradeRequest, []string{"upgrade", "faster", "better plan", "fiber", "premium", "more speed"}},
	{domain.IntentPaymentIssue, []string{"payment failed", "can't pay", "declined", "payment error", "autopay"}},
	{domain.IntentGeneralInquiry, []string{"hello", "hi", "info", "question", "how", "what", "when", "where"}},
}

var baseUrgency = map[domain.IntentCategory]domain.Urgency{
	domain.IntentServiceOutage: domain.UrgencyHigh,
	domain.IntentCancellation:  domain.UrgencyHigh,
	domain.IntentPaymentIssue:  domain.UrgencyHigh,
	domain.IntentBillingIssue:  domain.UrgencyMedium,
	domain.IntentTechSupport:   domain.UrgencyMedium,
}

var urgentKeywords = []string{"urgent", "emergency", "immediately", "asap", "critical", "now"}

// IntentClassifier maps a message to an intent, asking the model first and
// scoring keywords when the model is unavailable or unusable.
type IntentClassifier struct {
	llm     port.Completer
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewIntentClassifier creates a classifier. llm may be nil, in which case
// only the keyword scorer runs.
func NewIntentClassifier(llm port.Completer, metrics *observability.Metrics, logger *zap.Logger) *IntentClassifier {
	return &IntentClassifier{llm: llm, metrics: metrics, logger: logger}
}

// Classify never fails.
func (c *IntentClassifier) Classify(ctx context.Context, message string) domain.IntentResult {
	ctx, span := tracer.Start(ctx, "IntentClassifier.Classify")
	defer span.End()

	start := time.Now()
	result, err := c.classifyWithModel(ctx, message)
	path := observability.PathModel
	if err != nil {
		c.logger.Warn("intent classification falling back to keywords", zap.Error(err))
		result = ClassifyByKeywords(message)
		path = observability.PathFallback
	}
	c.metrics.RecordDecision("intent", path, time.Since(start))

	span.SetAttributes(
		attribute.String("intent.category", string(result.Category)),
		attribute.String("intent.urgency", string(result.Urgency)),
		attribute.String("decision.path", path),
	)
	return result
}

func (c *IntentClassifier) classifyWithModel(ctx context.Context, message string) (domain.IntentResult, error) {
	var result domain.IntentResult
	if c.llm == nil {
		return result, errNoModel
	}

	raw, err := c.llm.Invoke(ctx, []port.PromptMessage{
		{Role: "system", Text: intentSystemPrompt},
		{Role: "user", Text: message},
	})
	if err != nil {
		return result, err
	}
	if err := domain.DecodeModelJSON(raw, "intent", &result); err != nil {
		return result, err
	}
	if result.Keywords == nil {
		result.Keywords = []string{}
	}
	return result, nil
}

// ClassifyByKeywords is the deterministic classifier.
func ClassifyByKeywords(message string) domain.IntentResult {
	lower := strings.ToLower(message)

	best := domain.IntentGeneralInquiry
	matched := []string{}
	for _, rule := range intentRules {
		var hits []string
		for _, t := range rule.triggers {
			if strings.Contains(lower, t) {
				hits = append(hits, t)
			}
		}
		if len(hits) > len(matched) {
			best = rule.category
			matched = hits
		}
	}

	urgency, ok := baseUrgency[best]
	if !ok {
		urgency = domain.UrgencyLow
	}
	for _, k := range urgentKeywords {
		if strings.Contains(lower, k) {
			urgency = domain.UrgencyHigh
			break
		}
	}

	confidence := 0.6
	if n := len(matched); n > 0 {
		confidence = min(0.5+0.15*float64(n), 0.95)
	}

	return domain.IntentResult{
		Category:   best,
		Urgency:    urgency,
		Confidence: confidence,
		Keywords:   matched,
	}
}
