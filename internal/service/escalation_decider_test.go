package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/boddenberg/telecom-support-go/internal/domain"
	"github.com/boddenberg/telecom-support-go/internal/infra/idgen"
	"github.com/boddenberg/telecom-support-go/internal/infra/observability"
	"github.com/boddenberg/telecom-support-go/internal/service"
)

func TestDecideByRules(t *testing.T) {
	tests := []struct {
		name     string
		customer *domain.CustomerRecord
		intent   domain.IntentCategory
		urgency  domain.Urgency
		want     domain.EscalationResult
	}{
		{
			name:     "churn risk is never loosened by senior rule",
			customer: &domain.CustomerRecord{Churn: domain.Yes, SeniorCitizen: "1", Tenure: 10, MonthlyCharges: 40},
			intent:   domain.IntentGeneralInquiry,
			urgency:  domain.UrgencyLow,
			want: domain.EscalationResult{
				Required:   true,
				Reason:     "Customer at risk of churn - retention priority; Senior citizen",
				AssignedTo: domain.DeptRetention,
				Priority:   1,
			},
		},
		{
			name:     "high urgency tech issue on stable customer offers AI first",
			customer: &domain.CustomerRecord{Churn: domain.No, Tenure: 5, MonthlyCharges: 30},
			intent:   domain.IntentInternetIssue,
			urgency:  domain.UrgencyHigh,
			want: domain.EscalationResult{
				Required:       false,
				Reason:         "High urgency tech issue - offering AI suggestions first before escalation",
				AssignedTo:     domain.DeptTech,
				Priority:       2,
				SuggestAIFirst: true,
			},
		},
		{
			name:     "AI first discards earlier reasons",
			customer: &domain.CustomerRecord{Churn: domain.No, SeniorCitizen: "1", Tenure: 70, MonthlyCharges: 95},
			intent:   domain.IntentServiceOutage,
			urgency:  domain.UrgencyHigh,
			want: domain.EscalationResult{
				Required:       false,
				Reason:         "High urgency tech issue - offering AI suggestions first before escalation",
				AssignedTo:     domain.DeptTech,
				Priority:       2,
				SuggestAIFirst: true,
			},
		},
		{
			name:    "high urgency without customer",
			intent:  domain.IntentBillingIssue,
			urgency: domain.UrgencyHigh,
			want: domain.EscalationResult{
				Required:   true,
				Reason:     "High urgency issue detected",
				AssignedTo: domain.DeptBilling,
				Priority:   1,
			},
		},
		{
			name:    "high urgency outage without customer stays escalated",
			intent:  domain.IntentServiceOutage,
			urgency: domain.UrgencyHigh,
			want: domain.EscalationResult{
				Required:   true,
				Reason:     "High urgency issue detected",
				AssignedTo: domain.DeptTech,
				Priority:   1,
			},
		},
		{
			name:    "cancellation forces retention",
			intent:  domain.IntentCancellation,
			urgency: domain.UrgencyLow,
			want: domain.EscalationResult{
				Required:   true,
				Reason:     "Cancellation request - requires retention team",
				AssignedTo: domain.DeptRetention,
				Priority:   1,
			},
		},
		{
			name:     "cancellation appends to existing reasons",
			customer: &domain.CustomerRecord{Churn: domain.Yes, Tenure: 2, MonthlyCharges: 53.85},
			intent:   domain.IntentCancellation,
			urgency:  domain.UrgencyHigh,
			want: domain.EscalationResult{
				Required:   true,
				Reason:     "High urgency issue detected; Customer at risk of churn; Cancellation request",
				AssignedTo: domain.DeptRetention,
				Priority:   1,
			},
		},
		{
			name:     "high value customer tightens priority",
			customer: &domain.CustomerRecord{Churn: domain.No, Tenure: 60, MonthlyCharges: 40},
			intent:   domain.IntentPaymentIssue,
			urgency:  domain.UrgencyMedium,
			want: domain.EscalationResult{
				Required:   true,
				Reason:     "High-value customer - priority handling",
				AssignedTo: domain.DeptBilling,
				Priority:   2,
			},
		},
		{
			name:    "nothing to escalate",
			intent:  domain.IntentGeneralInquiry,
			urgency: domain.UrgencyLow,
			want: domain.EscalationResult{
				Required:   false,
				Reason:     "No escalation needed - can be handled by AI assistant",
				AssignedTo: domain.DeptTech,
				Priority:   3,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := service.DecideByRules(tt.customer, tt.intent, tt.urgency)
			assert.Equal(t, tt.want, got)
		})
	}
}

func newDecider(llm *mockCompleter, finder staticFinder) *service.EscalationDecider {
	var d *service.EscalationDecider
	if llm == nil {
		d = service.NewEscalationDecider(nil, finder, idgen.NewSequence("TKT-1", "TKT-2"), observability.NewMetrics(), zap.NewNop())
	} else {
		d = service.NewEscalationDecider(llm, finder, idgen.NewSequence("TKT-1", "TKT-2"), observability.NewMetrics(), zap.NewNop())
	}
	return d
}

func TestDecide_FallbackMintsTicketOnlyWhenRequired(t *testing.T) {
	finder := staticFinder{"3668-QPYBK": customerFixtures()[1]}
	d := newDecider(nil, finder)

	got := d.Decide(context.Background(), "3668-QPYBK", domain.IntentBillingIssue, domain.UrgencyLow)
	assert.True(t, got.Required)
	assert.Equal(t, domain.DeptRetention, got.AssignedTo)
	assert.Equal(t, "TKT-1", got.TicketID)

	got = d.Decide(context.Background(), "", domain.IntentGeneralInquiry, domain.UrgencyLow)
	assert.False(t, got.Required)
	assert.Empty(t, got.TicketID)
}

func TestDecide_UnknownCustomerIsAbsent(t *testing.T) {
	d := newDecider(nil, staticFinder{})

	got := d.Decide(context.Background(), "0000-ZZZZZ", domain.IntentTechSupport, domain.UrgencyMedium)
	assert.Equal(t, service.DecideByRules(nil, domain.IntentTechSupport, domain.UrgencyMedium).Reason, got.Reason)
	assert.False(t, got.Required)
}

func TestDecide_ModelPath(t *testing.T) {
	finder := staticFinder{"7590-VHVEG": customerFixtures()[0]}

	t.Run("required gets a ticket", func(t *testing.T) {
		llm := &mockCompleter{replies: []string{`{"required": true, "reason": "Billing dispute", "assignedTo": "billing", "priority": 2}`}}
		got := newDecider(llm, finder).Decide(context.Background(), "7590-VHVEG", domain.IntentBillingIssue, domain.UrgencyMedium)

		assert.True(t, got.Required)
		assert.Equal(t, "Billing dispute", got.Reason)
		assert.Equal(t, domain.DeptBilling, got.AssignedTo)
		assert.Equal(t, 2, got.Priority)
		assert.Equal(t, "TKT-1", got.TicketID)

		system := llm.prompts[0][0].Text
		assert.Contains(t, system, "Customer ID: 7590-VHVEG")
		assert.Contains(t, system, "Intent: billing_issue")
	})

	t.Run("not required never carries a ticket", func(t *testing.T) {
		llm := &mockCompleter{replies: []string{`{"required": false, "reason": "AI can handle", "ticketId": "TKT-X", "priority": 3}`}}
		got := newDecider(llm, finder).Decide(context.Background(), "7590-VHVEG", domain.IntentGeneralInquiry, domain.UrgencyLow)

		assert.False(t, got.Required)
		assert.Empty(t, got.TicketID)
	})

	t.Run("invalid priority falls back to rules", func(t *testing.T) {
		llm := &mockCompleter{replies: []string{`{"required": true, "reason": "x", "priority": 7}`}}
		got := newDecider(llm, finder).Decide(context.Background(), "", domain.IntentCancellation, domain.UrgencyLow)

		assert.Equal(t, "Cancellation request - requires retention team", got.Reason)
		assert.Equal(t, "TKT-1", got.TicketID)
	})

	t.Run("model error falls back to rules", func(t *testing.T) {
		llm := &mockCompleter{err: errors.New("timeout")}
		got := newDecider(llm, finder).Decide(context.Background(), "", domain.IntentBillingIssue, domain.UrgencyHigh)

		assert.Equal(t, "High urgency issue detected", got.Reason)
		assert.Equal(t, 1, got.Priority)
	})
}
