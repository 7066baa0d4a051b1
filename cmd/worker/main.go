package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/kirillkom/dpr-analyzer/internal/bootstrap"
	"github.com/kirillkom/dpr-analyzer/internal/config"
	"github.com/kirillkom/dpr-analyzer/internal/observability/logging"
	"github.com/kirillkom/dpr-analyzer/internal/observability/metrics"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger := logging.NewJSONLogger("worker", cfg.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics("worker")
	go func() {
		metricsServer := &http.Server{
			Addr:    ":" + cfg.WorkerMetricsPort,
			Handler: workerMetrics.Handler(),
		}
		logger.Info("worker metrics listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("worker metrics server error", "error", err)
		}
	}()

	analyzeTimeout := time.Duration(cfg.AnalyzeTimeoutSeconds) * time.Second

	logger.Info("worker subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeAnalyzeRequested(ctx, func(handlerCtx context.Context, documentID string) error {
		analyzeCtx, cancel := context.WithTimeout(handlerCtx, analyzeTimeout)
		defer cancel()

		workerMetrics.StartDocument()
		start := time.Now()
		doc, err := app.AnalyzeUC.Analyze(analyzeCtx, documentID)
		workerMetrics.FinishDocument("worker", time.Since(start), err)
		if err != nil {
			logger.Error("analysis failed", "document_id", documentID, "error", err)
			return err
		}
		workerMetrics.ObserveQueueLag("worker", start.Sub(doc.CreatedAt))
		logger.Info("analysis finished", "document_id", documentID, "status", doc.Status)
		return nil
	})
	if err != nil {
		log.Fatalf("worker subscribe error: %v", err)
	}
}
