package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/boddenberg/telecom-support-go/internal/config"
	"github.com/boddenberg/telecom-support-go/internal/domain"
	"github.com/boddenberg/telecom-support-go/internal/handler"
	"github.com/boddenberg/telecom-support-go/internal/infra/accounts"
	"github.com/boddenberg/telecom-support-go/internal/infra/cache"
	"github.com/boddenberg/telecom-support-go/internal/infra/events"
	"github.com/boddenberg/telecom-support-go/internal/infra/idgen"
	"github.com/boddenberg/telecom-support-go/internal/infra/llm"
	"github.com/boddenberg/telecom-support-go/internal/infra/observability"
	"github.com/boddenberg/telecom-support-go/internal/infra/resilience"
	"github.com/boddenberg/telecom-support-go/internal/infra/seed"
	"github.com/boddenberg/telecom-support-go/internal/port"
	"github.com/boddenberg/telecom-support-go/internal/service"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// app is the wired service graph shared by every subcommand.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *observability.Metrics

	accounts    *service.AccountStateStore
	lookup      *service.CustomerLookup
	intents     *service.IntentClassifier
	escalations *service.EscalationDecider
	replies     *service.ReplyGenerator
	actions     *service.AccountActions
	workflow    *service.Workflow
	sessions    *service.Sessions

	probes  map[string]handler.Probe
	closers []func() error
}

// newApp builds the graph: seed, account store, inference, ticket sink,
// decisions and the workflow. The account store is synced before returning.
func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{
		cfg:     cfg,
		logger:  logger,
		metrics: observability.NewMetrics(),
		probes:  map[string]handler.Probe{},
	}

	// --- Customers ---
	customers, err := seed.LoadFile(cfg.CustomersSeedFile)
	if err != nil {
		return nil, err
	}
	remote, err := a.accountStore(ctx, customers)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.accounts = service.NewAccountStateStore(remote, idgen.NewCustomerIDs(), a.metrics, logger)
	if err := a.accounts.Sync(ctx); err != nil {
		a.Close()
		return nil, err
	}
	a.lookup = service.NewCustomerLookup(a.accounts)

	// --- Inference ---
	chat, completer := a.models(ctx)

	// --- Tickets ---
	resCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	var tickets port.TicketPublisher
	if len(cfg.KafkaBrokers) > 0 {
		kp := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTicketsTopic, resCfg, logger)
		a.closers = append(a.closers, kp.Close)
		tickets = kp
		logger.Info("publishing tickets to kafka",
			zap.Strings("brokers", cfg.KafkaBrokers),
			zap.String("topic", cfg.KafkaTicketsTopic),
		)
	} else {
		tickets = events.NewLogPublisher(logger)
	}

	// --- Services ---
	a.intents = service.NewIntentClassifier(completer, a.metrics, logger)
	a.escalations = service.NewEscalationDecider(completer, a.lookup, idgen.NewTickets(), a.metrics, logger)
	a.replies = service.NewReplyGenerator(completer, a.lookup, a.metrics, logger)
	a.actions = service.NewAccountActions(a.accounts, logger)
	tools := service.NewSupportTools(a.intents, a.escalations, a.replies, a.actions, a.metrics, logger)
	a.workflow = service.NewWorkflow(chat, tools, a.accounts, tickets, cfg.MaxToolSteps, a.metrics, logger)

	sessionCache := cache.New[*domain.ConversationState](cfg.SessionTTL)
	a.closers = append(a.closers, func() error { sessionCache.Close(); return nil })
	a.sessions = service.NewSessions(sessionCache, idgen.Sessions{}, a.metrics)

	return a, nil
}

// accountStore picks Redis when configured, seeding an empty key, and the
// in-memory store otherwise.
func (a *app) accountStore(ctx context.Context, customers []domain.CustomerRecord) (port.AuthoritativeStore, error) {
	if a.cfg.RedisAddr == "" {
		a.logger.Info("using in-memory customer store", zap.Int("customers", len(customers)))
		return accounts.NewMemoryStore(customers), nil
	}

	store := accounts.NewRedisStore(a.cfg.RedisAddr, a.cfg.RedisPassword, a.cfg.RedisDB, a.logger,
		accounts.WithKey(a.cfg.RedisKey))
	a.closers = append(a.closers, store.Close)
	a.probes["redis"] = store.Ping

	existing, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("redis customer store: %w", err)
	}
	if len(existing) == 0 {
		if err := store.Save(ctx, customers); err != nil {
			return nil, fmt.Errorf("seed redis customer store: %w", err)
		}
		a.logger.Info("seeded redis customer store", zap.Int("customers", len(customers)))
	}
	a.logger.Info("using redis customer store",
		zap.String("addr", a.cfg.RedisAddr),
		zap.String("key", a.cfg.RedisKey),
	)
	return store, nil
}

// models selects the chat model and the decision completer for the
// configured provider. A nil completer sends every decision down the rule
// path; without a chat backend the guided model drives the tools.
func (a *app) models(ctx context.Context) (port.ChatModel, port.Completer) {
	cfg := a.cfg

	var limiter *rate.Limiter
	if cfg.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1)
	}
	resCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	openAI := func() *llm.OpenAIClient {
		return llm.NewOpenAIClient(
			&http.Client{Timeout: cfg.LLMTimeout},
			llm.OpenAIConfig{
				BaseURL:       cfg.LLMBaseURL,
				APIKey:        cfg.LLMAPIKey,
				ChatModel:     cfg.LLMChatModel,
				DecisionModel: cfg.LLMDecisionModel,
			},
			resilience.NewCircuitBreaker("llm"),
			resCfg,
			limiter,
		)
	}

	switch cfg.LLMProvider {
	case config.ProviderOpenAI:
		if cfg.LLMAPIKey == "" {
			a.logger.Warn("LLM_API_KEY not set, decisions use the rule engines")
			return service.GuidedChatModel{}, nil
		}
		client := openAI()
		a.logger.Info("using openai-compatible inference",
			zap.String("base_url", cfg.LLMBaseURL),
			zap.String("chat_model", cfg.LLMChatModel),
		)
		return client, client

	case config.ProviderGemini:
		gemini, err := llm.NewGeminiCompleter(ctx, llm.GeminiConfig{
			APIKey:  cfg.GeminiAPIKey,
			Model:   cfg.GeminiModel,
			BaseURL: cfg.GeminiBaseURL,
		}, resilience.NewCircuitBreaker("gemini"))
		if err != nil {
			a.logger.Warn("gemini unavailable, decisions use the rule engines", zap.Error(err))
			return service.GuidedChatModel{}, nil
		}
		a.logger.Info("using gemini for decisions", zap.String("model", cfg.GeminiModel))
		if cfg.LLMAPIKey != "" {
			return openAI(), gemini
		}
		return service.GuidedChatModel{}, gemini

	case config.ProviderNone:
		a.logger.Info("inference disabled, decisions use the rule engines")
		return service.GuidedChatModel{}, nil

	default:
		a.logger.Warn("unknown LLM_PROVIDER, decisions use the rule engines", zap.String("provider", cfg.LLMProvider))
		return service.GuidedChatModel{}, nil
	}
}

// deps exposes the graph to the HTTP router.
func (a *app) deps() handler.Deps {
	return handler.Deps{
		Workflow:    a.workflow,
		Sessions:    a.sessions,
		Accounts:    a.accounts,
		Lookup:      a.lookup,
		Actions:     a.actions,
		Intents:     a.intents,
		Escalations: a.escalations,
		Probes:      a.probes,
	}
}

// Close releases every adapter in reverse order of creation.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
