package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/boddenberg/telecom-support-go/internal/handler"
	"github.com/boddenberg/telecom-support-go/internal/infra/observability"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long:  `Starts the support API: chat sessions, customer accounts, decisions and operational endpoints.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig(cmd)
		if port, _ := cmd.Flags().GetInt("port"); port != 0 {
			cfg.Port = port
		}

		logger := observability.NewLogger(cfg.LogLevel)
		defer func() { _ = logger.Sync() }()

		logger.Info("configuration loaded",
			zap.Int("port", cfg.Port),
			zap.String("log_level", cfg.LogLevel),
			zap.String("llm_provider", cfg.LLMProvider),
			zap.Duration("llm_timeout", cfg.LLMTimeout),
			zap.Int("max_retries", cfg.MaxRetries),
			zap.Int("max_tool_steps", cfg.MaxToolSteps),
			zap.Duration("session_ttl", cfg.SessionTTL),
			zap.Bool("redis", cfg.RedisAddr != ""),
			zap.Bool("kafka", len(cfg.KafkaBrokers) > 0),
		)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		// --- Tracing ---
		shutdownTracer, err := observability.InitTracer(ctx, cfg.OTLPEndpoint, "telecom-support")
		if err != nil {
			return fmt.Errorf("init tracer: %w", err)
		}
		defer func() { _ = shutdownTracer(context.Background()) }()

		// --- Services ---
		a, err := newApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := a.Close(); err != nil {
				logger.Warn("closing adapters", zap.Error(err))
			}
		}()

		srv := &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      handler.NewRouter(a.deps(), a.metrics, logger),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 2 * cfg.LLMTimeout,
			IdleTimeout:  60 * time.Second,
		}

		g, gCtx := errgroup.WithContext(ctx)

		g.Go(func() error {
			logger.Info("server starting", zap.Int("port", cfg.Port))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server failed: %w", err)
			}
			return nil
		})

		// Reconcile the account overlay whenever the shared store publishes.
		g.Go(func() error {
			if err := a.accounts.Watch(gCtx); err != nil {
				logger.Warn("account watch stopped", zap.Error(err))
			}
			return nil
		})

		g.Go(func() error {
			<-gCtx.Done()
			logger.Info("server shutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})

		if err := g.Wait(); err != nil {
			return err
		}
		logger.Info("server stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntP("port", "p", 0, "Port to listen on (overrides PORT)")
}
