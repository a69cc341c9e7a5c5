package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/boddenberg/telecom-support-go/internal/domain"
	"github.com/boddenberg/telecom-support-go/internal/infra/observability"
	"github.com/boddenberg/telecom-support-go/internal/port"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"
)

// ToolKind routes a tool call: internal tools run inside the turn, external
// actions end the turn and wait for the caller.
type ToolKind string

const (
	ToolNone     ToolKind = "none"
	ToolInternal ToolKind = "internal"
	ToolExternal ToolKind = "external"
)

// Internal tools.
const (
	ToolClassifyIntent  = "classifyIntent"
	ToolLookupCustomer  = "lookupCustomer"
	ToolCheckEscalation = "checkEscalation"
	ToolGenerateReply   = "generateReply"
)

// External account actions.
const (
	ActionAddAddon       = "addAddonToCustomer"
	ActionRemoveAddon    = "removeAddonFromCustomer"
	ActionUpdateSettings = "updateCustomerSettings"
	ActionCalculateCost  = "calculateServiceCost"
)

const (
	addonParamDescription  = "One of PhoneService, MultipleLines, OnlineSecurity, OnlineBackup, DeviceProtection, TechSupport, StreamingTV, StreamingMovies"
	customerIDParamSummary = "The customer ID, e.g. 7590-VHVEG"
)

var toolKinds = map[string]ToolKind{
	ToolClassifyIntent:   ToolInternal,
	ToolLookupCustomer:   ToolInternal,
	ToolCheckEscalation:  ToolInternal,
	ToolGenerateReply:    ToolInternal,
	ActionAddAddon:       ToolExternal,
	ActionRemoveAddon:    ToolExternal,
	ActionUpdateSettings: ToolExternal,
	ActionCalculateCost:  ToolExternal,
}

// KindOf looks a tool name up in the routing table.
func KindOf(name string) ToolKind {
	if k, ok := toolKinds[name]; ok {
		return k
	}
	return ToolNone
}

type classifyArgs struct {
	Message string `mapstructure:"message"`
}

type lookupArgs struct {
	CustomerID string `mapstructure:"customerId"`
}

type escalationArgs struct {
	CustomerID string `mapstructure:"customerId"`
	Intent     string `mapstructure:"intent"`
	Urgency    string `mapstructure:"urgency"`
}

type replyArgs struct {
	CustomerID string `mapstructure:"customerId"`
	Intent     string `mapstructure:"intent"`
	Message    string `mapstructure:"message"`
}

type addonArgs struct {
	CustomerID string `mapstructure:"customerID"`
	AddonName  string `mapstructure:"addonName"`
}

type settingsArgs struct {
	CustomerID string `mapstructure:"customerID"`
	Setting    string `mapstructure:"setting"`
	Value      string `mapstructure:"value"`
}

type costArgs struct {
	CustomerID  string `mapstructure:"customerID"`
	ServiceName string `mapstructure:"serviceName"`
	Action      string `mapstructure:"action"`
}

// LookupResult is the lookupCustomer tool payload.
type LookupResult struct {
	CustomerID string                 `json:"customerId"`
	Found      bool                   `json:"found"`
	Data       *domain.CustomerRecord `json:"data"`
}

type toolError struct {
	Error string `json:"error"`
}

// SupportTools executes the tools the chat model may call.
type SupportTools struct {
	intents     *IntentClassifier
	escalations *EscalationDecider
	replies     *ReplyGenerator
	actions     *AccountActions
	metrics     *observability.Metrics
	logger      *zap.Logger
}

// NewSupportTools wires the decision components and the account actions.
func NewSupportTools(
	intents *IntentClassifier,
	escalations *EscalationDecider,
	replies *ReplyGenerator,
	actions *AccountActions,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *SupportTools {
	return &SupportTools{
		intents:     intents,
		escalations: escalations,
		replies:     replies,
		actions:     actions,
		metrics:     metrics,
		logger:      logger,
	}
}

// Specs lists every tool bound to the chat model.
func (t *SupportTools) Specs() []port.ToolSpec {
	str := func(desc string) map[string]any {
		return map[string]any{"type": "string", "description": desc}
	}
	object := func(props map[string]any, required ...string) map[string]any {
		return map[string]any{"type": "object", "properties": props, "required": required}
	}

	return []port.ToolSpec{
		{
			Name:        ToolClassifyIntent,
			Description: "Classify the customer's intent and urgency from their message.",
			Parameters:  object(map[string]any{"message": str("The customer's message to classify")}, "message"),
		},
		{
			Name:        ToolLookupCustomer,
			Description: "Look up a customer's account by customer ID.",
			Parameters:  object(map[string]any{"customerId": str(customerIDParamSummary)}, "customerId"),
		},
		{
			Name:        ToolCheckEscalation,
			Description: "Decide whether the issue should be escalated to a human team, based on urgency, customer profile and intent.",
			Parameters: object(map[string]any{
				"customerId": str("The customer ID if known"),
				"intent":     str("The classified intent category"),
				"urgency":    map[string]any{"type": "string", "enum": []string{"low", "medium", "high"}},
			}, "intent", "urgency"),
		},
		{
			Name:        ToolGenerateReply,
			Description: "Generate a personalized reply from the customer's account and intent.",
			Parameters: object(map[string]any{
				"customerId": str("The customer ID if known"),
				"intent":     str("The classified intent category"),
				"message":    str("The customer's original message"),
			}, "intent", "message"),
		},
		{
			Name:        ActionAddAddon,
			Description: "Add an add-on service to a customer's account. Quote the price with calculateServiceCost and get confirmation first.",
			Parameters: object(map[string]any{
				"customerID": str(customerIDParamSummary),
				"addonName":  str(addonParamDescription),
			}, "customerID", "addonName"),
		},
		{
			Name:        ActionRemoveAddon,
			Description: "Remove an add-on service from a customer's account.",
			Parameters: object(map[string]any{
				"customerID": str(customerIDParamSummary),
				"addonName":  str(addonParamDescription),
			}, "customerID", "addonName"),
		},
		{
			Name:        ActionUpdateSettings,
			Description: "Change InternetService (DSL or Fiber optic), PaperlessBilling (Yes/No) or Partner (Yes/No).",
			Parameters: object(map[string]any{
				"customerID": str(customerIDParamSummary),
				"setting":    map[string]any{"type": "string", "enum": validSettings},
				"value":      str("The new value"),
			}, "customerID", "setting", "value"),
		},
		{
			Name:        ActionCalculateCost,
			Description: "Preview how adding or removing a service changes the monthly bill.",
			Parameters: object(map[string]any{
				"customerID":  str(customerIDParamSummary),
				"serviceName": str(addonParamDescription),
				"action":      map[string]any{"type": "string", "enum": []string{"add", "remove"}},
			}, "customerID", "serviceName", "action"),
		},
	}
}

// ExecuteInternal runs an internal tool against the session state and returns
// the tool-result message. Failures are reported in the payload.
func (t *SupportTools) ExecuteInternal(ctx context.Context, state *domain.ConversationState, call domain.ToolCall) domain.Message {
	ctx, span := tracer.Start(ctx, "SupportTools."+call.Name)
	defer span.End()

	t.metrics.IncrToolExecution(call.Name, string(ToolInternal))

	var payload any
	var err error
	switch call.Name {
	case ToolClassifyIntent:
		var args classifyArgs
		if err = decodeArgs(call.Arguments, &args); err == nil {
			if args.Message == "" {
				args.Message, _ = state.LastHumanMessage()
			}
			payload = t.intents.Classify(ctx, args.Message)
		}
	case ToolLookupCustomer:
		var args lookupArgs
		if err = decodeArgs(call.Arguments, &args); err == nil {
			c, found := FindCustomer(state.Customers, args.CustomerID)
			payload = LookupResult{CustomerID: args.CustomerID, Found: found, Data: c}
		}
	case ToolCheckEscalation:
		var args escalationArgs
		if err = decodeArgs(call.Arguments, &args); err == nil {
			customerID := orCurrentCustomer(args.CustomerID, state)
			intent, urgency := domain.IntentCategory(args.Intent), domain.Urgency(args.Urgency)
			if state.Intent != nil {
				if intent == "" {
					intent = state.Intent.Category
				}
				if urgency == "" {
					urgency = state.Intent.Urgency
				}
			}
			payload = t.escalations.Decide(ctx, customerID, intent, urgency)
		}
	case ToolGenerateReply:
		var args replyArgs
		if err = decodeArgs(call.Arguments, &args); err == nil {
			intent := domain.IntentCategory(args.Intent)
			if intent == "" {
				intent = domain.IntentGeneralInquiry
				if state.Intent != nil {
					intent = state.Intent.Category
				}
			}
			if args.Message == "" {
				args.Message, _ = state.LastHumanMessage()
			}
			payload = t.replies.Generate(ctx, orCurrentCustomer(args.CustomerID, state), intent, args.Message)
		}
	default:
		err = fmt.Errorf("unknown tool %q", call.Name)
	}

	if err != nil {
		span.RecordError(err)
		t.logger.Warn("tool execution failed",
			zap.String("session_id", state.SessionID),
			zap.String("tool", call.Name),
			zap.Error(err),
		)
		payload = toolError{Error: err.Error()}
	}
	return toolMessage(call, payload)
}

// ExecuteExternal runs an account action.
func (t *SupportTools) ExecuteExternal(ctx context.Context, call domain.ToolCall) domain.Message {
	ctx, span := tracer.Start(ctx, "SupportTools."+call.Name)
	defer span.End()

	t.metrics.IncrToolExecution(call.Name, string(ToolExternal))

	var result MutationResult
	switch call.Name {
	case ActionAddAddon, ActionRemoveAddon:
		var args addonArgs
		if err := decodeArgs(call.Arguments, &args); err != nil {
			result = failed("Invalid arguments: %v", err)
			break
		}
		if call.Name == ActionAddAddon {
			result = t.actions.AddAddonToCustomer(ctx, args.CustomerID, args.AddonName)
		} else {
			result = t.actions.RemoveAddonFromCustomer(ctx, args.CustomerID, args.AddonName)
		}
	case ActionUpdateSettings:
		var args settingsArgs
		if err := decodeArgs(call.Arguments, &args); err != nil {
			result = failed("Invalid arguments: %v", err)
			break
		}
		result = t.actions.UpdateCustomerSettings(ctx, args.CustomerID, args.Setting, args.Value)
	case ActionCalculateCost:
		var args costArgs
		if err := decodeArgs(call.Arguments, &args); err != nil {
			result = failed("Invalid arguments: %v", err)
			break
		}
		result = t.actions.CalculateServiceCost(ctx, args.CustomerID, args.ServiceName, args.Action)
	default:
		result = failed("Unknown action %s", call.Name)
	}

	if !result.Success {
		t.logger.Info("account action rejected",
			zap.String("tool", call.Name),
			zap.String("message", result.Message),
		)
	}
	return toolMessage(call, result)
}

func orCurrentCustomer(id string, state *domain.ConversationState) string {
	if id == "" && state.CurrentCustomer.Found {
		return state.CurrentCustomer.ID
	}
	return id
}

func decodeArgs(args map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(args); err != nil {
		return &domain.ErrValidation{Field: "arguments", Message: err.Error()}
	}
	return nil
}

func toolMessage(call domain.ToolCall, payload any) domain.Message {
	data, err := json.Marshal(payload)
	if err != nil {
		data, _ = json.Marshal(toolError{Error: err.Error()})
	}
	return domain.Message{
		Role:       domain.RoleTool,
		Content:    string(data),
		ToolName:   call.Name,
		ToolCallID: call.ID,
	}
}
