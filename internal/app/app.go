package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scriptor/internal/common"
	"github.com/ternarybob/scriptor/internal/handlers"
	"github.com/ternarybob/scriptor/internal/httpclient"
	"github.com/ternarybob/scriptor/internal/interfaces"
	"github.com/ternarybob/scriptor/internal/pipeline"
	"github.com/ternarybob/scriptor/internal/pipeline/stages"
	"github.com/ternarybob/scriptor/internal/services/citations"
	"github.com/ternarybob/scriptor/internal/services/embeddings"
	"github.com/ternarybob/scriptor/internal/services/events"
	"github.com/ternarybob/scriptor/internal/services/images"
	"github.com/ternarybob/scriptor/internal/services/jobs"
	"github.com/ternarybob/scriptor/internal/services/llm"
	"github.com/ternarybob/scriptor/internal/services/render"
	"github.com/ternarybob/scriptor/internal/services/sitemap"
	badgerstore "github.com/ternarybob/scriptor/internal/storage/badger"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	DB           *badgerstore.BadgerDB
	JobStorage   interfaces.JobStorage
	ArticleStore interfaces.ArticleStore

	EventService   interfaces.EventService
	SitemapService interfaces.SitemapService
	Generator      interfaces.Generator
	Reviewer       interfaces.Generator

	Executor   *PipelineExecutor
	JobManager *jobs.Manager

	APIHandler   *handlers.APIHandler
	WriteHandler *handlers.WriteHandler
	JobHandler   *handlers.JobHandler
	WSHandler    *handlers.WebSocketHandler

	logWriter *handlers.WebSocketWriter
}

// New wires every component from the loaded configuration
func New(config *common.Config) (*App, error) {
	logger := common.InitLogger(config)

	db, err := badgerstore.NewBadgerDB(logger, &config.Storage.Badger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	jobStorage := badgerstore.NewJobStorage(db, logger)
	embeddingClient := embeddings.NewClient(&config.Embeddings, logger)
	articleStore := badgerstore.NewArticleStorage(db, embeddingClient, &config.Storage.Filesystem, logger)

	eventService := events.NewService(logger)
	sitemapService := sitemap.NewService(&config.Sitemap, logger)

	generator, err := llm.NewGenerator(config, logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize generator: %w", err)
	}
	reviewer := llm.NewReviewer(config, generator, logger)

	imageService := newImageService(config, generator, logger)

	prober := httpclient.NewProber(common.Duration(config.Citations.ValidationTimeout, 5*time.Second))
	validator := citations.NewValidator(
		prober,
		config.Citations.MaxConcurrent,
		common.Duration(config.Citations.PerHostDelay, 200*time.Millisecond),
		logger,
	)
	finder := citations.NewFinder(generator, config.Citations.ForbiddenDomains, logger)
	engine := citations.NewEngine(validator, finder, config.Citations.AuthorityDomains, logger)

	renderer := render.NewRenderer(logger)
	breakers := pipeline.NewBreakerRegistry()

	executor := NewPipelineExecutor(
		[]pipeline.Stage{
			stages.NewFetchStage(sitemapService, logger),
			stages.NewPromptStage(logger),
			stages.NewGenerateStage(generator, breakers, logger),
			stages.NewExtractStage(generator, logger),
		},
		[]pipeline.Stage{
			stages.NewCitationStage(engine, logger),
			stages.NewLinksStage(sitemapService, prober, logger),
			stages.NewTOCStage(logger),
			stages.NewMetadataStage(logger),
			stages.NewFAQStage(logger),
			stages.NewImageStage(imageService, breakers, logger),
		},
		[]pipeline.Stage{
			stages.NewCleanupStage(renderer, validator, logger),
			stages.NewReviewStage(reviewer, logger),
			stages.NewStoreStage(renderer, articleStore, logger),
		},
		logger,
	)

	notifier := jobs.NewNotifier(common.Duration(config.Webhook.Timeout, 30*time.Second), logger)
	manager := jobs.NewManager(jobStorage, executor, eventService, notifier, &config.Jobs, logger)

	wsHandler := handlers.NewWebSocketHandler(eventService, logger, &config.WebSocket)

	// Stream logs to connected WebSocket clients through arbor's context channel
	logWriter := handlers.NewWebSocketWriter(wsHandler, &config.WebSocket)
	logWriter.Start()
	logger.SetChannel("context", logWriter.Channel())

	return &App{
		Config:         config,
		Logger:         logger,
		DB:             db,
		JobStorage:     jobStorage,
		ArticleStore:   articleStore,
		EventService:   eventService,
		SitemapService: sitemapService,
		Generator:      generator,
		Reviewer:       reviewer,
		Executor:       executor,
		JobManager:     manager,
		APIHandler:     handlers.NewAPIHandler(),
		WriteHandler:   handlers.NewWriteHandler(manager, executor, logger),
		JobHandler:     handlers.NewJobHandler(jobStorage, manager, logger),
		WSHandler:      wsHandler,
		logWriter:      logWriter,
	}, nil
}

// Start launches the background job scheduler
func (a *App) Start() {
	a.JobManager.Start()
}

// Close stops the scheduler and releases storage
func (a *App) Close(ctx context.Context) error {
	a.JobManager.Stop(ctx)
	a.logWriter.Close()
	if err := a.DB.Close(); err != nil {
		return fmt.Errorf("failed to close storage: %w", err)
	}
	return nil
}

// newImageService shares the Gemini API client with image generation when
// the primary generator is Gemini; other providers degrade to placeholders.
func newImageService(config *common.Config, generator interfaces.Generator, logger arbor.ILogger) interfaces.ImageGenerator {
	if gemini, ok := generator.(*llm.GeminiService); ok {
		return images.NewService(config, gemini.Client(), logger)
	}
	logger.Warn().Str("provider", generator.Name()).Msg("Image generation degraded to placeholders, no Gemini client")
	return images.NewService(config, nil, logger)
}
