package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/boddenberg/telecom-support-go/internal/domain"
	"github.com/boddenberg/telecom-support-go/internal/infra/observability"
	"github.com/boddenberg/telecom-support-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// Probe checks one dependency for /healthz.
type Probe func(ctx context.Context) error

// Deps bundles what the HTTP API serves. Nil components disable their routes'
// behaviour; the operational endpoints always work.
type Deps struct {
	Workflow    *service.Workflow
	Sessions    *service.Sessions
	Accounts    *service.AccountStateStore
	Lookup      *service.CustomerLookup
	Actions     *service.AccountActions
	Intents     *service.IntentClassifier
	Escalations *service.EscalationDecider
	Probes      map[string]Probe
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(deps Deps, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.TracingMiddleware)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(deps.Probes))
	r.Get("/readyz", readyzHandler(deps.Accounts))
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {

		// Conversation turns
		r.Post("/chat", createSessionHandler(deps, logger))
		r.Route("/chat/{sessionId}", func(r chi.Router) {
			r.Get("/", getSessionHandler(deps, logger))
			r.Post("/", chatTurnHandler(deps, logger))
			r.Delete("/", endSessionHandler(deps))
			r.Post("/actions", resumeActionsHandler(deps, logger))
		})

		// Customer accounts
		r.Get("/customers", listCustomersHandler(deps))
		r.Post("/customers", createCustomerHandler(deps, logger))
		r.Route("/customers/{customerID}", func(r chi.Router) {
			r.Get("/", getCustomerHandler(deps, logger))
			r.Patch("/", updateCustomerHandler(deps, logger))
			r.Delete("/", deleteCustomerHandler(deps, logger))
			r.Post("/addons/{addon}", addonHandler(deps, true))
			r.Delete("/addons/{addon}", addonHandler(deps, false))
			r.Put("/settings/{setting}", settingsHandler(deps))
			r.Get("/pricing", pricingHandler(deps, logger))
			r.Get("/pricing/preview", pricingPreviewHandler(deps))
		})

		// Decisions
		r.Post("/classify", classifyHandler(deps))
		r.Post("/escalation", escalationHandler(deps))

		// Metrics snapshot
		r.Get("/metrics/agent", agentMetricsHandler(metrics))
	})

	return r
}

// ============================================================
// Probes
// ============================================================

func healthzHandler(probes map[string]Probe) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "support-api", Status: "healthy", LastChecked: now},
		}
		for name, probe := range probes {
			start := time.Now()
			err := probe(r.Context())
			h := domain.ServiceHealth{
				Name:        name,
				Status:      "healthy",
				LatencyMs:   time.Since(start).Milliseconds(),
				LastChecked: now,
			}
			if err != nil {
				h.Status = "degraded"
				h.Error = err.Error()
			}
			services = append(services, h)
		}

		overall := "healthy"
		for _, s := range services {
			if s.Status != "healthy" {
				overall = "degraded"
				break
			}
		}
		writeJSON(w, http.StatusOK, domain.HealthStatus{Status: overall, Services: services})
	}
}

func readyzHandler(accounts *service.AccountStateStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{"status": "ready"}
		if accounts != nil {
			resp["customers"] = len(accounts.Customers())
			resp["pendingSync"] = accounts.HasOverlay()
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func agentMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.GetAgentSnapshot())
	}
}
