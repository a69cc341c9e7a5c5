package handler

import (
	"net/http"

	"github.com/boddenberg/telecom-support-go/internal/domain"
)

// ============================================================
// Decisions: /v1/classify, /v1/escalation
// ============================================================

type classifyRequest struct {
	Message string `json:"message"`
}

type escalationRequest struct {
	CustomerID string                `json:"customerId"`
	Intent     domain.IntentCategory `json:"intent"`
	Urgency    domain.Urgency        `json:"urgency"`
}

func classifyHandler(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/classify")
		defer span.End()

		var req classifyRequest
		if err := decodeBody(r, &req, false); err != nil || req.Message == "" {
			writeError(w, http.StatusBadRequest, "message is required")
			return
		}
		writeJSON(w, http.StatusOK, deps.Intents.Classify(ctx, req.Message))
	}
}

func escalationHandler(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/escalation")
		defer span.End()

		var req escalationRequest
		if err := decodeBody(r, &req, false); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Intent == "" {
			req.Intent = domain.IntentGeneralInquiry
		}
		switch req.Urgency {
		case domain.UrgencyLow, domain.UrgencyMedium, domain.UrgencyHigh:
		case "":
			req.Urgency = domain.UrgencyLow
		default:
			writeError(w, http.StatusBadRequest, "urgency must be low, medium or high")
			return
		}
		writeJSON(w, http.StatusOK, deps.Escalations.Decide(ctx, req.CustomerID, req.Intent, req.Urgency))
	}
}
