package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/zapcontext/retrieval-engine/internal/adapters/http"
	"github.com/zapcontext/retrieval-engine/internal/bootstrap"
	"github.com/zapcontext/retrieval-engine/internal/config"
	"github.com/zapcontext/retrieval-engine/internal/observability/logging"
)

func main() {
	cfg := config.Load()
	if cfg.TuningPath != "" {
		tuning, err := config.LoadTuning(cfg.TuningPath)
		if err != nil {
			log.Fatalf("load tuning overlay: %v", err)
		}
		cfg = tuning.Apply(cfg)
	}

	logger := logging.NewJSONLogger("retrieval-api", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	if app.Queue != nil {
		go func() {
			err := app.Queue.SubscribeKnowledgeUpdated(ctx, func(ctx context.Context, tenantID string) error {
				removed, err := app.Retriever.InvalidateCache(ctx, tenantID, "")
				if err != nil {
					return err
				}
				logger.Info("cache_invalidated_by_event", "tenant_id", tenantID, "removed", removed)
				return nil
			})
			if err != nil {
				logger.Error("knowledge_updated_subscription_failed", "error", err)
			}
		}()
	}

	router := httpadapter.NewRouter(
		app.Retriever,
		app.Retriever,
		app.Metrics,
		cfg.RateLimitPerTenant,
		cfg.RateLimitBurst,
	).Handler()
	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("api_listening", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("api server error: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api_shutdown_error", "error", err)
	}
}
