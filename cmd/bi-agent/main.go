// cmd/bi-agent/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"bi-agent/internal/api"
	"bi-agent/internal/common/camunda"
	"bi-agent/internal/common/config"
	"bi-agent/internal/common/gemini"
	"bi-agent/internal/common/logger"
	"bi-agent/internal/common/observability"
	"bi-agent/internal/datasource"
	"bi-agent/internal/orchestrator"
	"bi-agent/internal/resolver"

	abq "bi-agent/internal/workers/ai-conversation/answer-business-question"
	rbi "bi-agent/internal/workers/ai-conversation/resolve-business-intent"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("info", "console")
		bootLog.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("starting bi-agent",
		zap.String("environment", cfg.App.Environment),
		zap.String("backend", cfg.Data.Backend),
		zap.Bool("camunda", cfg.Camunda.Enabled),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	// --- Data backend ---
	backend, err := datasource.Open(cfg, log)
	if err != nil {
		zapLog.Fatal("data backend init failed", zap.Error(err))
	}
	defer func() {
		if err := backend.Close(); err != nil {
			zapLog.Error("closing data backend", zap.Error(err))
		}
	}()

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := backend.Ping(pingCtx); err != nil {
		// the server still starts; /ready reports the failure
		zapLog.Warn("data backend not reachable yet", zap.Error(err))
	}
	pingCancel()

	// --- Core components ---
	llm := gemini.NewClient(gemini.Config{
		BaseURL: cfg.APIs.GenAI.BaseURL,
		APIKey:  cfg.APIs.GenAI.APIKey,
		Model:   cfg.APIs.GenAI.Model,
		Timeout: config.GetDuration(cfg.APIs.GenAI.Timeout),
	})
	if err := llm.CheckConfigured(); err != nil {
		zapLog.Warn("LLM intent parsing unavailable, rule parser will answer", zap.Error(err))
	}

	intentResolver := resolver.New(log, resolver.NewLLMStrategy(llm))
	orch := orchestrator.New(intentResolver, backend.Source, log, orchestrator.WithObservability(obs))

	// --- HTTP surface ---
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      api.NewServer(orch, backend, log).Handler(),
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Zeebe workers ---
	var (
		zeebe   *camunda.Client
		workers []*camunda.Worker
	)
	if cfg.Camunda.Enabled {
		connectCtx, connectCancel := context.WithTimeout(context.Background(), 2*time.Minute)
		zeebe, err = camunda.NewClient(connectCtx, camunda.ConfigFrom(cfg.Camunda))
		connectCancel()
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		zapLog.Info("Zeebe client connected", zap.String("gateway", cfg.Camunda.BrokerAddress))

		abqCfg := config.GetWorkerConfig(cfg, abq.TaskType)
		abqHandler := abq.NewHandler(
			abq.LoadConfig(abqCfg),
			orch, obs, &answerBusinessQuestionLoggerAdapter{log},
		)
		workers = append(workers, camunda.StartWorker(zeebe.Zeebe(), abq.TaskType, abqCfg, abqHandler, log))

		rbiCfg := config.GetWorkerConfig(cfg, rbi.TaskType)
		rbiHandler := rbi.NewHandler(
			rbi.LoadConfig(rbiCfg),
			intentResolver, &resolveBusinessIntentLoggerAdapter{log},
		)
		workers = append(workers, camunda.StartWorker(zeebe.Zeebe(), rbi.TaskType, rbiCfg, rbiHandler, log))
	}

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("HTTP server shutdown", zap.Error(err))
	}

	for _, w := range workers {
		w.Stop()
	}
	if zeebe != nil {
		if err := zeebe.Close(); err != nil {
			zapLog.Error("closing Zeebe client", zap.Error(err))
		}
	}

	zapLog.Info("bi-agent stopped")
}

// Logger adapters for workers that declare their own Logger interfaces.
type answerBusinessQuestionLoggerAdapter struct {
	logger.Logger
}

func (a *answerBusinessQuestionLoggerAdapter) With(fields map[string]interface{}) abq.Logger {
	return &answerBusinessQuestionLoggerAdapter{a.Logger.With(fields)}
}

type resolveBusinessIntentLoggerAdapter struct {
	logger.Logger
}

func (a *resolveBusinessIntentLoggerAdapter) With(fields map[string]interface{}) rbi.Logger {
	return &resolveBusinessIntentLoggerAdapter{a.Logger.With(fields)}
}
