package domain

// ============================================================
// Health & Metrics API Responses
// ============================================================

// HealthStatus is returned by GET /readyz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded, unhealthy
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth is the probe result for one dependency.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	LatencyMs   int64  `json:"latencyMs"`
	Error       string `json:"error,omitempty"`
	LastChecked string `json:"lastChecked"`
}

// AgentMetrics is returned by GET /v1/metrics/agent.
type AgentMetrics struct {
	TotalTurns           int64            `json:"totalTurns"`
	PendingActionTurns   int64            `json:"pendingActionTurns"`
	ErrorRate            float64          `json:"errorRate"`
	FallbackRate         float64          `json:"fallbackRate"`
	FallbackByDecision   map[string]int64 `json:"fallbackByDecision"`
	AvgDecisionLatencyMs float64          `json:"avgDecisionLatencyMs"`
	ToolExecutions       int64            `json:"toolExecutions"`
	Escalations          int64            `json:"escalations"`
	Reconciliations      int64            `json:"reconciliations"`
	SessionCacheHitRate  float64          `json:"sessionCacheHitRate"`
	Period               string           `json:"period"`
}

// ============================================================
// Generic API Response wrappers
// ============================================================

// ListResponse wraps list results.
type ListResponse[T any] struct {
	Data  []T `json:"data"`
	Total int `json:"total"`
}

// SuccessResponse wraps a successful single-entity response.
type SuccessResponse struct {
	Message string `json:"message"`
	ID      string `json:"id,omitempty"`
}
