package handler

import (
	"net/http"

	"github.com/boddenberg/telecom-support-go/internal/domain"
	"github.com/boddenberg/telecom-support-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Conversation: /v1/chat
// ============================================================

type chatRequest struct {
	Message string `json:"message"`
}

type resumeRequest struct {
	Results []service.ActionResult `json:"results"`
}

// chatResponse is the session view returned after every turn.
type chatResponse struct {
	SessionID       string                   `json:"sessionId"`
	Reply           string                   `json:"reply,omitempty"`
	Outcome         string                   `json:"outcome,omitempty"`
	PendingActions  []domain.ToolCall        `json:"pendingActions"`
	Messages        []domain.Message         `json:"messages"`
	CurrentCustomer domain.CurrentCustomer   `json:"currentCustomer"`
	Intent          *domain.IntentResult     `json:"intent"`
	Escalation      *domain.EscalationResult `json:"escalation"`
	Suggestions     []string                 `json:"suggestedActions,omitempty"`
}

func newChatResponse(state *domain.ConversationState, turn *service.TurnResult) chatResponse {
	resp := chatResponse{
		SessionID:       state.SessionID,
		PendingActions:  service.PendingActions(state),
		Messages:        state.Messages,
		CurrentCustomer: state.CurrentCustomer,
		Intent:          state.Intent,
		Escalation:      state.Escalation,
	}
	if resp.PendingActions == nil {
		resp.PendingActions = []domain.ToolCall{}
	}
	if state.Reply != nil {
		resp.Suggestions = state.Reply.SuggestedActions
	}
	if turn != nil {
		resp.Reply = turn.Reply
		resp.Outcome = turn.Outcome
	}
	return resp
}

// createSessionHandler starts a session and, when a message is supplied,
// runs its first turn.
func createSessionHandler(deps Deps, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/chat")
		defer span.End()

		var req chatRequest
		if err := decodeBody(r, &req, true); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		state := deps.Sessions.Create()
		span.SetAttributes(attribute.String("session.id", state.SessionID))

		unlock := deps.Sessions.Lock(state.SessionID)
		defer unlock()

		if req.Message == "" {
			writeJSON(w, http.StatusCreated, newChatResponse(state, nil))
			return
		}

		turn := deps.Workflow.Run(ctx, state, req.Message)
		deps.Sessions.Save(state)
		writeJSON(w, http.StatusCreated, newChatResponse(state, turn))
	}
}

func getSessionHandler(deps Deps, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "sessionId")

		// A running turn owns the state until it returns.
		unlock := deps.Sessions.Lock(id)
		defer unlock()

		state, ok := deps.Sessions.Get(id)
		if !ok {
			handleServiceError(w, &domain.ErrNotFound{Resource: "session", ID: id}, logger)
			return
		}
		writeJSON(w, http.StatusOK, newChatResponse(state, nil))
	}
}

// chatTurnHandler runs one turn: POST /v1/chat/{sessionId} {message}.
func chatTurnHandler(deps Deps, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/chat/{sessionId}")
		defer span.End()

		id := chi.URLParam(r, "sessionId")
		span.SetAttributes(attribute.String("session.id", id))

		var req chatRequest
		if err := decodeBody(r, &req, false); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if req.Message == "" {
			writeError(w, http.StatusBadRequest, "message is required")
			return
		}

		unlock := deps.Sessions.Lock(id)
		defer unlock()

		state, ok := deps.Sessions.Get(id)
		if !ok {
			handleServiceError(w, &domain.ErrNotFound{Resource: "session", ID: id}, logger)
			return
		}

		turn := deps.Workflow.Run(ctx, state, req.Message)
		deps.Sessions.Save(state)
		writeJSON(w, http.StatusOK, newChatResponse(state, turn))
	}
}

// resumeActionsHandler answers the pending account actions of a session and
// continues the turn. Actions without a supplied result are executed.
func resumeActionsHandler(deps Deps, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/chat/{sessionId}/actions")
		defer span.End()

		id := chi.URLParam(r, "sessionId")
		span.SetAttributes(attribute.String("session.id", id))

		var req resumeRequest
		if err := decodeBody(r, &req, true); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		unlock := deps.Sessions.Lock(id)
		defer unlock()

		state, ok := deps.Sessions.Get(id)
		if !ok {
			handleServiceError(w, &domain.ErrNotFound{Resource: "session", ID: id}, logger)
			return
		}

		turn, err := deps.Workflow.Resume(ctx, state, req.Results)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		deps.Sessions.Save(state)
		writeJSON(w, http.StatusOK, newChatResponse(state, turn))
	}
}

func endSessionHandler(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deps.Sessions.End(chi.URLParam(r, "sessionId"))
		w.WriteHeader(http.StatusNoContent)
	}
}
