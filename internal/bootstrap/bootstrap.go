package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/docflow/docflow/internal/config"
	"github.com/docflow/docflow/internal/core/pipeline"
	"github.com/docflow/docflow/internal/core/ports"
	"github.com/docflow/docflow/internal/core/usecase"
	"github.com/docflow/docflow/internal/infrastructure/bus/nats"
	"github.com/docflow/docflow/internal/infrastructure/extractor"
	"github.com/docflow/docflow/internal/infrastructure/llm/groq"
	"github.com/docflow/docflow/internal/infrastructure/notify/lognotify"
	"github.com/docflow/docflow/internal/infrastructure/repository/postgres"
	"github.com/docflow/docflow/internal/infrastructure/resilience"
	"github.com/docflow/docflow/internal/infrastructure/storage/localfs"
	"github.com/docflow/docflow/internal/observability/metrics"
)

type App struct {
	Config config.Config

	Repo ports.DocumentRepository
	Bus  ports.EventBus

	UploadUC ports.DocumentUploader
	ReviewUC ports.DocumentReviewer

	Router          *pipeline.Router
	PipelineMetrics *metrics.PipelineMetrics

	closeFn func()
}

// New wires every process-lifetime handle once; stages and usecases receive
// them by injection and never construct clients per call.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewDocumentRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	eventBus, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSPrefix, logger, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init event bus: %w", err)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init upload storage: %w", err)
	}
	textExtractor := extractor.New(storage)

	analyzer := groq.NewAnalyzer(groq.New(groq.Config{
		BaseURL:           cfg.GroqAPIURL,
		APIKey:            cfg.GroqAPIKey,
		Model:             cfg.GroqModel,
		Temperature:       cfg.GroqTemperature,
		MaxTokens:         cfg.GroqMaxTokens,
		RequestsPerSecond: cfg.GroqRateRPS,
		Executor:          executor,
	}))

	pipelineMetrics := metrics.NewPipelineMetrics("worker")
	aiTimeout := time.Duration(cfg.AITimeoutSeconds) * time.Second
	emitter := pipeline.NewEmitter(eventBus)

	router := pipeline.NewRouter(eventBus, logger, pipelineMetrics)
	router.Register(
		pipeline.NewSaveStage(repo, logger),
		pipeline.NewClassifyStage(repo, analyzer, emitter, logger, aiTimeout),
		pipeline.NewSummarizeStage(repo, analyzer, emitter, logger, aiTimeout),
		pipeline.NewRiskScoreStage(repo, analyzer, logger, pipelineMetrics, cfg.RiskReviewThreshold, aiTimeout),
		pipeline.NewNotifyStage(lognotify.New(logger), logger),
	)

	uploadUC := usecase.NewUploadDocumentUseCase(storage, textExtractor, eventBus)
	reviewUC := usecase.NewReviewDocumentUseCase(repo, eventBus)

	return &App{
		Config: cfg,

		Repo: repo,
		Bus:  eventBus,

		UploadUC: uploadUC,
		ReviewUC: reviewUC,

		Router:          router,
		PipelineMetrics: pipelineMetrics,

		closeFn: func() {
			eventBus.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
