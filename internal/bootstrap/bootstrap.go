package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/dpr-analyzer/internal/config"
	"github.com/kirillkom/dpr-analyzer/internal/core/ports"
	"github.com/kirillkom/dpr-analyzer/internal/core/usecase"
	"github.com/kirillkom/dpr-analyzer/internal/infrastructure/llm/gemini"
	"github.com/kirillkom/dpr-analyzer/internal/infrastructure/pdfinfo"
	"github.com/kirillkom/dpr-analyzer/internal/infrastructure/queue/nats"
	"github.com/kirillkom/dpr-analyzer/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/dpr-analyzer/internal/infrastructure/resilience"
	"github.com/kirillkom/dpr-analyzer/internal/infrastructure/session"
	"github.com/kirillkom/dpr-analyzer/internal/infrastructure/storage/localfs"
)

type App struct {
	Config config.Config

	Queue     ports.MessageQueue
	Documents ports.DocumentRepository
	Projects  ports.ProjectRepository

	IntakeUC     ports.DocumentIntake
	AnalyzeUC    ports.DocumentAnalyzer
	ChatUC       ports.DocumentChat
	ComparisonUC ports.ComparisonService
	CompareUC    ports.ProjectComparer
	ComplianceUC ports.ComplianceService
	Recovery     *usecase.RecoveryCoordinator

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	documents := postgres.NewDocumentRepository(db)
	projects := postgres.NewProjectRepository(db)
	comparisons := postgres.NewComparisonRepository(db)
	transcripts := postgres.NewTranscriptRepository(db)

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init source storage: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig(), logger)
	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	gateway := gemini.New(gemini.Config{
		BaseURL:      cfg.GeminiBaseURL,
		APIKey:       cfg.GeminiAPIKey,
		Model:        cfg.GeminiModel,
		PollInterval: time.Duration(cfg.GeminiPollIntervalMS) * time.Millisecond,
		MaxPolls:     cfg.GeminiMaxPolls,
		Timeout:      time.Duration(cfg.GeminiTimeoutSeconds) * time.Second,
	}, executor)

	inspector := pdfinfo.New()

	// Separate caches keep document chat sessions and comparison chat
	// sessions from colliding on shared ids.
	documentSessions := session.NewCache()
	comparisonSessions := session.NewCache()

	analyzeUC := usecase.NewAnalyzeDocumentUseCase(documents, projects, storage, gateway, documentSessions)
	intakeUC := usecase.NewUploadDocumentUseCase(documents, projects, storage, gateway, inspector, analyzeUC, documentSessions, comparisonSessions)
	chatUC := usecase.NewChatUseCase(documents, transcripts, storage, gateway, documentSessions)
	comparisonUC := usecase.NewComparisonUseCase(comparisons, documents, transcripts, storage, gateway, comparisonSessions)
	compareUC := usecase.NewCompareProjectUseCase(projects, documents, gateway)
	complianceUC := usecase.NewComplianceUseCase(projects, documents, logger)
	recovery := usecase.NewRecoveryCoordinator(documents, queue, logger)

	return &App{
		Config: cfg,

		Queue:     queue,
		Documents: documents,
		Projects:  projects,

		IntakeUC:     intakeUC,
		AnalyzeUC:    analyzeUC,
		ChatUC:       chatUC,
		ComparisonUC: comparisonUC,
		CompareUC:    compareUC,
		ComplianceUC: complianceUC,
		Recovery:     recovery,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
