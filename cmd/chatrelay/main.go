package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/antoniostano/chatrelay/internal/chat"
	"github.com/antoniostano/chatrelay/internal/config"
	"github.com/antoniostano/chatrelay/internal/engine"
	"github.com/antoniostano/chatrelay/internal/extractor"
	"github.com/antoniostano/chatrelay/internal/httpapi"
	"github.com/antoniostano/chatrelay/internal/observability"
	"github.com/antoniostano/chatrelay/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Debug)
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer logger.Sync()

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	st, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("store init failed", zap.Error(err))
	}
	defer st.Close()
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set, using in-memory store")
	}

	// A missing credential disables completion routes instead of refusing
	// to start: the CRUD surface stays usable either way.
	var eng engine.Engine
	if cfg.OpenAIAPIKey != "" {
		eng = engine.NewOpenAI(engine.Config{
			APIKey:      cfg.OpenAIAPIKey,
			BaseURL:     cfg.OpenAIBaseURL,
			ChatModel:   cfg.ChatModel,
			VisionModel: cfg.VisionModel,
		})
	} else {
		logger.Warn("OPENAI_API_KEY not set, completion routes disabled")
	}

	ext := extractor.New(eng, st, metrics, logger)
	pool := extractor.NewPool(ext, cfg.ExtractorWorkers, cfg.ExtractorQueueSize, logger)

	orchestrator := chat.NewOrchestrator(st, eng, pool, metrics, logger)

	api := httpapi.New(cfg, st, orchestrator, eng, metrics, logger)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	go func() {
		logger.Info("server listening", zap.String("addr", cfg.BindAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen error", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
		_ = httpServer.Close()
	}

	// Drain queued extraction jobs once no new turns can arrive.
	pool.Close()

	logger.Info("shutdown complete")
}
