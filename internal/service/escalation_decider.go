package service

import (
	"context"
	"fmt"
	"time"

	"github.com/boddenberg/telecom-support-go/internal/domain"
	"github.com/boddenberg/telecom-support-go/internal/infra/observability"
	"github.com/boddenberg/telecom-support-go/internal/port"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	reasonHighUrgency    = "High urgency issue detected"
	reasonChurn          = "Customer at risk of churn"
	reasonChurnFirst     = "Customer at risk of churn - retention priority"
	reasonSenior         = "Senior citizen"
	reasonSeniorFirst    = "Senior citizen requiring special assistance"
	reasonHighValue      = "High-value customer"
	reasonHighValueFirst = "High-value customer - priority handling"
	reasonAIFirst        = "High urgency tech issue - offering AI suggestions first before escalation"
	reasonCancel         = "Cancellation request"
	reasonCancelFirst    = "Cancellation request - requires retention team"
	reasonNoEscalation   = "No escalation needed - can be handled by AI assistant"
)

const escalationRules = `ESCALATION RULES:
1. Always escalate when:
   - churn risk is HIGH (the customer may leave)
   - the intent is cancellation (retention specialist needed)
   - urgency is high
   - the customer is a senior citizen
   - the customer is high value (tenure over 50 months or charges over $80)
2. Suggest AI help first when urgency is high, churn risk is low and the intent is
   service_outage, tech_support or internet_issue: return "required": false and
   "suggestAiFirst": true.
3. Departments: billing and payment issues go to "billing"; cancellation goes to
   "retention" with priority 1; outages and tech support go to "tech".
4. Priority: 1 for churn risk with any complaint, cancellations and outages; 2 for senior
   citizens, high-value customers and billing disputes; 3 for general inquiries and simple
   tech support.

Reply with JSON only:
{"required": true|false, "reason": "why", "assignedTo": "billing|tech|retention", "priority": 1|2|3, "suggestAiFirst": true|false}

EXAMPLES:
Churn=Yes, intent=billing_issue -> {"required": true, "reason": "Customer at risk of churn with billing complaint - retention priority", "assignedTo": "retention", "priority": 1, "suggestAiFirst": false}
Churn=No, intent=general_inquiry, urgency=low -> {"required": false, "reason": "Simple inquiry, AI can handle", "assignedTo": "tech", "priority": 3, "suggestAiFirst": false}
Churn=No, intent=internet_issue, urgency=high -> {"required": false, "reason": "High urgency tech issue but customer stable - offer AI suggestions first", "assignedTo": "tech", "priority": 2, "suggestAiFirst": true}`

var aiFirstIntents = map[domain.IntentCategory]bool{
	domain.IntentServiceOutage: true,
	domain.IntentTechSupport:   true,
	domain.IntentInternetIssue: true,
}

// EscalationDecider decides whether a case goes to a human team.
type EscalationDecider struct {
	llm       port.Completer
	customers port.CustomerFinder
	tickets   port.IDGenerator
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// NewEscalationDecider creates a decider. llm may be nil.
func NewEscalationDecider(
	llm port.Completer,
	customers port.CustomerFinder,
	tickets port.IDGenerator,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *EscalationDecider {
	return &EscalationDecider{
		llm:       llm,
		customers: customers,
		tickets:   tickets,
		metrics:   metrics,
		logger:    logger,
	}
}

// Decide never fails. A ticket id is present iff the result is required.
func (d *EscalationDecider) Decide(ctx context.Context, customerID string, intent domain.IntentCategory, urgency domain.Urgency) domain.EscalationResult {
	ctx, span := tracer.Start(ctx, "EscalationDecider.Decide")
	defer span.End()

	var customer *domain.CustomerRecord
	if customerID != "" {
		if c, ok := d.customers.FindByID(ctx, customerID); ok {
			customer = c
		}
	}

	start := time.Now()
	result, err := d.decideWithModel(ctx, customer, intent, urgency)
	path := observability.PathModel
	if err != nil {
		d.logger.Warn("escalation falling back to rules",
			zap.String("customer_id", customerID),
			zap.String("intent", string(intent)),
			zap.Error(err),
		)
		result = DecideByRules(customer, intent, urgency)
		path = observability.PathFallback
	}
	d.metrics.RecordDecision("escalation", path, time.Since(start))

	result.TicketID = ""
	if result.Required {
		result.TicketID = d.tickets.Next()
	}

	span.SetAttributes(
		attribute.Bool("escalation.required", result.Required),
		attribute.Int("escalation.priority", result.Priority),
		attribute.String("decision.path", path),
	)
	return result
}

func (d *EscalationDecider) decideWithModel(ctx context.Context, customer *domain.CustomerRecord, intent domain.IntentCategory, urgency domain.Urgency) (domain.EscalationResult, error) {
	var result domain.EscalationResult
	if d.llm == nil {
		return result, errNoModel
	}

	profile := "No customer data available"
	if customer != nil {
		profile = CustomerContext(customer)
	}
	system := fmt.Sprintf("You decide whether telecom support cases need a human agent.\n\n%s\n\nCURRENT ISSUE:\n- Intent: %s\n- Urgency: %s\n\n%s",
		profile, intent, urgency, escalationRules)

	raw, err := d.llm.Invoke(ctx, []port.PromptMessage{
		{Role: "system", Text: system},
		{Role: "user", Text: fmt.Sprintf("Should this %s case with %s urgency be escalated?", intent, urgency)},
	})
	if err != nil {
		return result, err
	}
	if err := domain.DecodeModelJSON(raw, "escalation", &result); err != nil {
		return result, err
	}
	return result, nil
}

// DecideByRules is the deterministic rule table. Rules run in a fixed order
// and later rules may override earlier ones. No ticket is minted here.
func DecideByRules(customer *domain.CustomerRecord, intent domain.IntentCategory, urgency domain.Urgency) domain.EscalationResult {
	r := domain.EscalationResult{
		AssignedTo: domain.DeptTech,
		Priority:   3,
	}

	appendReason := func(short, first string) {
		if r.Reason == "" {
			r.Reason = first
			return
		}
		r.Reason += "; " + short
	}
	tighten := func(p int) {
		if r.Priority > p {
			r.Priority = p
		}
	}

	if urgency == domain.UrgencyHigh {
		r.Required = true
		r.Priority = 1
		r.Reason = reasonHighUrgency
	}

	if customer != nil {
		if customer.IsChurnRisk() {
			r.Required = true
			r.AssignedTo = domain.DeptRetention
			r.Priority = 1
			appendReason(reasonChurn, reasonChurnFirst)
		}
		if customer.IsSenior() {
			r.Required = true
			tighten(2)
			appendReason(reasonSenior, reasonSeniorFirst)
		}
		if customer.Tenure > 50 || customer.MonthlyCharges > 80 {
			r.Required = true
			tighten(2)
			appendReason(reasonHighValue, reasonHighValueFirst)
		}
		if urgency == domain.UrgencyHigh && customer.Churn == domain.No && aiFirstIntents[intent] {
			r.Required = false
			r.SuggestAIFirst = true
			r.Priority = 2
			r.Reason = reasonAIFirst
		}
	}

	switch intent {
	case domain.IntentBillingIssue, domain.IntentPaymentIssue:
		r.AssignedTo = domain.DeptBilling
	case domain.IntentCancellation:
		r.AssignedTo = domain.DeptRetention
		r.Required = true
		r.Priority = 1
		appendReason(reasonCancel, reasonCancelFirst)
	case domain.IntentServiceOutage, domain.IntentTechSupport:
		r.AssignedTo = domain.DeptTech
	}

	if r.Reason == "" {
		r.Reason = reasonNoEscalation
	}
	return r
}
