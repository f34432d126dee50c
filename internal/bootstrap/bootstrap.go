package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/document-qa/internal/config"
	"github.com/kirillkom/document-qa/internal/core/domain"
	"github.com/kirillkom/document-qa/internal/core/ports"
	"github.com/kirillkom/document-qa/internal/core/usecase"
	"github.com/kirillkom/document-qa/internal/infrastructure/chunking"
	"github.com/kirillkom/document-qa/internal/infrastructure/embedding/hashing"
	"github.com/kirillkom/document-qa/internal/infrastructure/index"
	"github.com/kirillkom/document-qa/internal/infrastructure/llm/langchain"
	"github.com/kirillkom/document-qa/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/document-qa/internal/infrastructure/loader"
	"github.com/kirillkom/document-qa/internal/infrastructure/loader/docx"
	"github.com/kirillkom/document-qa/internal/infrastructure/loader/pdf"
	"github.com/kirillkom/document-qa/internal/infrastructure/loader/plaintext"
	"github.com/kirillkom/document-qa/internal/infrastructure/queue/inline"
	"github.com/kirillkom/document-qa/internal/infrastructure/queue/nats"
	"github.com/kirillkom/document-qa/internal/infrastructure/repository/filestore"
	"github.com/kirillkom/document-qa/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/document-qa/internal/infrastructure/resilience"
	sessionmemory "github.com/kirillkom/document-qa/internal/infrastructure/session/memory"
	sessionredis "github.com/kirillkom/document-qa/internal/infrastructure/session/redis"
	"github.com/kirillkom/document-qa/internal/infrastructure/storage/localfs"
	vectormemory "github.com/kirillkom/document-qa/internal/infrastructure/vector/memory"
	"github.com/kirillkom/document-qa/internal/infrastructure/vector/qdrant"
	"github.com/kirillkom/document-qa/internal/observability/metrics"
)

const (
	sessionKeyPrefix = "docqa:session:"
	queueDrainTime   = 30 * time.Second
)

type App struct {
	Config config.Config

	Queue      ports.MessageQueue
	Repo       ports.DocumentRepository
	IngestUC   ports.DocumentIngestor
	ProcessUC  ports.DocumentProcessor
	Documents  ports.DocumentManager
	SummaryUC  ports.DocumentSummarizer
	QueryUC    ports.DocumentQueryService
	Metrics    *metrics.HTTPServerMetrics
	Processing *metrics.PipelineMetrics

	closers []func()
}

// New wires every backend selected by cfg. With an in-process queue the
// pipeline is subscribed here; in nats mode the worker subscribes itself.
func New(ctx context.Context, cfg config.Config, service string) (*App, error) {
	app := &App{Config: cfg}
	if err := app.build(ctx, cfg, service); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func (a *App) build(ctx context.Context, cfg config.Config, service string) error {
	a.Metrics = metrics.NewHTTPServerMetrics(service)
	reg := a.Metrics.Registerer()
	a.Processing = metrics.NewPipelineMetrics(service, reg)
	hooks := metrics.NewResilienceMetrics(service, reg)

	indexExec := resilience.NewExecutor(resilience.DefaultConfig()).WithHooks(hooks)
	generationExec := resilience.NewExecutor(resilience.GenerationConfig()).WithHooks(hooks)

	repo, err := a.newRepository(ctx, cfg)
	if err != nil {
		return err
	}
	a.Repo = repo

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return fmt.Errorf("init object storage: %w", err)
	}

	sessions, err := a.newSessions(ctx, cfg)
	if err != nil {
		return err
	}

	embedder, err := newEmbedder(cfg, indexExec)
	if err != nil {
		return err
	}
	var store ports.VectorStore
	switch cfg.VectorBackend {
	case config.BackendMemory:
		store = vectormemory.New()
	default:
		store = qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, qdrant.WithExecutor(indexExec))
	}
	indexProvider := index.NewProvider(embedder, store, cfg.VectorBackend)

	generator, err := newGenerator(cfg, generationExec)
	if err != nil {
		return err
	}

	docLoader := loader.New(storage, map[domain.Format]loader.FormatLoader{
		domain.FormatPDF:  pdf.New(),
		domain.FormatDOCX: docx.New(),
		domain.FormatText: plaintext.New(),
	}, loader.WithMaxSize(cfg.MaxUploadBytes))
	chunker := chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)

	process := usecase.NewProcessDocumentUseCase(repo, docLoader, chunker, indexProvider, sessions, a.Processing)
	resolver := usecase.NewSessionResolver(repo, sessions, process)

	queue, err := a.newQueue(ctx, cfg, process)
	if err != nil {
		return err
	}
	a.Queue = queue

	a.ProcessUC = process
	a.IngestUC = usecase.NewIngestDocumentUseCase(repo, storage, queue)
	a.Documents = usecase.NewDocumentsUseCase(repo, storage, sessions, indexProvider)
	a.SummaryUC = usecase.NewSummaryUseCase(repo, resolver, generator)
	a.QueryUC = usecase.NewQueryUseCase(resolver, indexProvider, generator, cfg.RAGTopK)

	slog.Info("bootstrap_completed",
		"service", service,
		"metadata_backend", cfg.MetadataBackend,
		"session_backend", cfg.SessionBackend,
		"vector_backend", cfg.VectorBackend,
		"embedder_backend", cfg.EmbedderBackend,
		"generation_backend", cfg.GenerationBackend,
		"processing_mode", cfg.ProcessingMode,
	)
	return nil
}

func (a *App) newRepository(ctx context.Context, cfg config.Config) (ports.DocumentRepository, error) {
	if cfg.MetadataBackend != config.BackendPostgres {
		repo, err := filestore.NewDocumentRepository(cfg.MetadataPath)
		if err != nil {
			return nil, fmt.Errorf("init metadata store: %w", err)
		}
		return repo, nil
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	a.closers = append(a.closers, func() { _ = db.Close() })

	repo := postgres.NewDocumentRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return repo, nil
}

func (a *App) newSessions(ctx context.Context, cfg config.Config) (ports.SessionRegistry, error) {
	if cfg.SessionBackend != config.BackendRedis {
		return sessionmemory.NewRegistry(), nil
	}

	registry, err := sessionredis.New(sessionredis.Options{
		Addr:      cfg.RedisAddr,
		Password:  cfg.RedisPassword,
		DB:        cfg.RedisDB,
		KeyPrefix: sessionKeyPrefix,
		TTL:       time.Duration(cfg.SessionTTLSeconds) * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("init session registry: %w", err)
	}
	a.closers = append(a.closers, func() { _ = registry.Close() })

	if err := registry.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return registry, nil
}

func (a *App) newQueue(ctx context.Context, cfg config.Config, process ports.DocumentProcessor) (ports.MessageQueue, error) {
	timeout := time.Duration(cfg.ProcessingTimeoutSeconds) * time.Second

	if cfg.ProcessingMode == config.ProcessingNATS {
		queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			ResilienceExecutor: resilience.NewExecutor(resilience.DefaultConfig()),
			HandlerTimeout:     timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("init message queue: %w", err)
		}
		a.closers = append(a.closers, queue.Close)
		return queue, nil
	}

	queue, err := inline.New(inline.Options{
		Sync:           cfg.ProcessingMode == config.ProcessingSync,
		Workers:        cfg.ProcessingWorkers,
		MaxPending:     cfg.ProcessingMaxPending,
		HandlerTimeout: timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("init processing pool: %w", err)
	}
	a.closers = append(a.closers, func() {
		if err := queue.Close(queueDrainTime); err != nil {
			slog.Warn("processing_pool_drain_timeout", "running", queue.Running(), "error", err)
		}
	})

	if err := queue.SubscribeDocumentIngested(ctx, process.ProcessByID); err != nil {
		return nil, fmt.Errorf("subscribe processing pipeline: %w", err)
	}
	return queue, nil
}

func newEmbedder(cfg config.Config, executor *resilience.Executor) (ports.Embedder, error) {
	switch cfg.EmbedderBackend {
	case config.BackendHashing:
		return hashing.New(cfg.EmbeddingDimensions), nil
	case config.BackendLangchain:
		models, err := langchain.NewModels(langchainConfig(cfg))
		if err != nil {
			return nil, fmt.Errorf("init langchain embedder: %w", err)
		}
		embedder, err := langchain.NewEmbedder(models.Embedder, executor)
		if err != nil {
			return nil, fmt.Errorf("init langchain embedder: %w", err)
		}
		return embedder, nil
	default:
		client := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, ollama.WithExecutor(executor))
		return ollama.NewEmbedder(client), nil
	}
}

func newGenerator(cfg config.Config, executor *resilience.Executor) (ports.GenerationProvider, error) {
	if cfg.GenerationBackend == config.BackendLangchain {
		models, err := langchain.NewModels(langchainConfig(cfg))
		if err != nil {
			return nil, fmt.Errorf("init langchain generator: %w", err)
		}
		return langchain.NewGenerator(models.LLM, executor), nil
	}
	client := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, ollama.WithExecutor(executor))
	return ollama.NewGenerator(client, cfg.SummaryBatchChars), nil
}

func langchainConfig(cfg config.Config) langchain.ProviderConfig {
	if cfg.LangchainProvider == langchain.ProviderOpenAI {
		return langchain.ProviderConfig{
			Provider:   langchain.ProviderOpenAI,
			ServerURL:  cfg.OpenAIBaseURL,
			APIKey:     cfg.OpenAIAPIKey,
			GenModel:   cfg.OpenAIModel,
			EmbedModel: cfg.OpenAIEmbedModel,
		}
	}
	return langchain.ProviderConfig{
		Provider:   langchain.ProviderOllama,
		ServerURL:  cfg.OllamaURL,
		GenModel:   cfg.OllamaGenModel,
		EmbedModel: cfg.OllamaEmbedModel,
	}
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
