package domain

// ============================================================
// Intent classification
// ============================================================

// IntentCategory is one of the seven support intents.
type IntentCategory string

const (
	IntentBillingIssue   IntentCategory = "billing_issue"
	IntentServiceOutage  IntentCategory = "service_outage"
	IntentCancellation   IntentCategory = "cancellation"
	IntentTechSupport    IntentCategory = "tech_support"
	IntentUpgradeRequest IntentCategory = "upgrade_request"
	IntentPaymentIssue   IntentCategory = "payment_issue"
	IntentGeneralInquiry IntentCategory = "general_inquiry"

	// IntentInternetIssue is not produced by the classifier but the
	// escalation rules accept it as a tech-type intent.
	IntentInternetIssue IntentCategory = "internet_issue"
)

// Urgency of an inbound message.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// IntentResult is the classifier output.
type IntentResult struct {
	Category   IntentCategory `json:"category" validate:"required,oneof=billing_issue service_outage cancellation tech_support upgrade_request payment_issue general_inquiry"`
	Urgency    Urgency        `json:"urgency" validate:"required,oneof=low medium high"`
	Confidence float64        `json:"confidence" validate:"gte=0,lte=1"`
	Keywords   []string       `json:"keywords"`
}

// ============================================================
// Escalation
// ============================================================

// Department that receives an escalated ticket.
type Department string

const (
	DeptBilling   Department = "billing"
	DeptTech      Department = "tech"
	DeptRetention Department = "retention"
)

// EscalationResult is the escalation verdict. TicketID is set iff Required.
type EscalationResult struct {
	Required       bool       `json:"required"`
	Reason         string     `json:"reason"`
	TicketID       string     `json:"ticketId,omitempty"`
	AssignedTo     Department `json:"assignedTo,omitempty" validate:"omitempty,oneof=billing tech retention"`
	Priority       int        `json:"priority" validate:"oneof=1 2 3"`
	SuggestAIFirst bool       `json:"suggestAiFirst"`
}

// ============================================================
// Reply
// ============================================================

// ReplyResult is the generated answer plus follow-up suggestions.
type ReplyResult struct {
	Message          string   `json:"message" validate:"required"`
	SuggestedActions []string `json:"suggestedActions"`
}

// ============================================================
// Conversation
// ============================================================

// Role of a transcript message.
type Role string

const (
	RoleHuman Role = "human"
	RoleAI    Role = "ai"
	RoleTool  Role = "tool"
)

// ToolCall is a model request to run a named tool.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// Message is one transcript entry. ToolCalls is only set on AI messages;
// ToolName and ToolCallID only on tool results.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolName   string     `json:"toolName,omitempty"`
	ToolCallID string     `json:"toolCallId,omitempty"`
	ToolCalls  []ToolCall `json:"toolCalls,omitempty"`
}

// CurrentCustomer records the outcome of the latest lookup.
type CurrentCustomer struct {
	ID    string          `json:"id"`
	Found bool            `json:"found"`
	Data  *CustomerRecord `json:"data"`
}

// ConversationState is the per-session record mutated by the workflow.
type ConversationState struct {
	SessionID       string            `json:"sessionId"`
	Messages        []Message         `json:"messages"`
	Customers       []CustomerRecord  `json:"customers"`
	CurrentCustomer CurrentCustomer   `json:"currentCustomer"`
	Intent          *IntentResult     `json:"intent"`
	Escalation      *EscalationResult `json:"escalation"`
	Reply           *ReplyResult      `json:"reply"`
}

// NewConversationState returns the empty session defaults.
func NewConversationState(sessionID string) *ConversationState {
	return &ConversationState{
		SessionID: sessionID,
		Messages:  []Message{},
		Customers: []CustomerRecord{},
	}
}

// LastHumanMessage returns the most recent human message text.
func (s *ConversationState) LastHumanMessage() (string, bool) {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleHuman {
			return s.Messages[i].Content, true
		}
	}
	return "", false
}

// StateUpdate carries the fields a single node owns. Nil means "not touched";
// a non-nil field replaces the state field wholesale.
type StateUpdate struct {
	AppendMessages  []Message
	Customers       []CustomerRecord
	CurrentCustomer *CurrentCustomer
	Intent          *IntentResult
	Escalation      *EscalationResult
	Reply           *ReplyResult
}

// Apply merges u into s with last-writer-wins per field.
func (u StateUpdate) Apply(s *ConversationState) {
	if len(u.AppendMessages) > 0 {
		s.Messages = append(s.Messages, u.AppendMessages...)
	}
	if u.Customers != nil {
		s.Customers = u.Customers
	}
	if u.CurrentCustomer != nil {
		s.CurrentCustomer = *u.CurrentCustomer
	}
	if u.Intent != nil {
		s.Intent = u.Intent
	}
	if u.Escalation != nil {
		s.Escalation = u.Escalation
	}
	if u.Reply != nil {
		s.Reply = u.Reply
	}
}

// Ticket is the event emitted when a case is escalated.
type Ticket struct {
	TicketID   string     `json:"ticketId"`
	SessionID  string     `json:"sessionId,omitempty"`
	CustomerID string     `json:"customerId,omitempty"`
	Intent     string     `json:"intent"`
	AssignedTo Department `json:"assignedTo"`
	Priority   int        `json:"priority"`
	Reason     string     `json:"reason"`
}
