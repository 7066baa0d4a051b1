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

	httpadapter "github.com/kirillkom/dpr-analyzer/internal/adapters/http"
	"github.com/kirillkom/dpr-analyzer/internal/bootstrap"
	"github.com/kirillkom/dpr-analyzer/internal/config"
	"github.com/kirillkom/dpr-analyzer/internal/observability/logging"
	"github.com/kirillkom/dpr-analyzer/internal/observability/metrics"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger := logging.NewJSONLogger("api", cfg.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	httpMetrics := metrics.NewHTTPServerMetrics("api")

	// Interrupted analyses are re-dispatched off the serving path so a
	// slow queue never delays startup.
	go func() {
		dispatched, err := app.Recovery.Run(ctx)
		if err != nil {
			logger.Error("startup recovery sweep failed", "error", err)
			return
		}
		httpMetrics.RecordRecoveryDispatch("api", dispatched)
	}()

	router := httpadapter.NewRouter(
		cfg,
		httpMetrics,
		app.IntakeUC,
		app.AnalyzeUC,
		app.ChatUC,
		app.ComparisonUC,
		app.CompareUC,
		app.ComplianceUC,
		app.Documents,
		app.Projects,
	)
	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("api listening", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("api server error: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api shutdown error", "error", err)
	}
}
