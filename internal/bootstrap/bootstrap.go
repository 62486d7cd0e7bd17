package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/lovdata-assistant/internal/config"
	"github.com/kirillkom/lovdata-assistant/internal/core/ports"
	"github.com/kirillkom/lovdata-assistant/internal/core/usecase"
	"github.com/kirillkom/lovdata-assistant/internal/infrastructure/archive"
	"github.com/kirillkom/lovdata-assistant/internal/infrastructure/chunking"
	"github.com/kirillkom/lovdata-assistant/internal/infrastructure/embedcache"
	"github.com/kirillkom/lovdata-assistant/internal/infrastructure/extractor/lovdata"
	"github.com/kirillkom/lovdata-assistant/internal/infrastructure/llm/claude"
	"github.com/kirillkom/lovdata-assistant/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/lovdata-assistant/internal/infrastructure/queue/nats"
	"github.com/kirillkom/lovdata-assistant/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/lovdata-assistant/internal/infrastructure/rerank/crossencoder"
	"github.com/kirillkom/lovdata-assistant/internal/infrastructure/resilience"
	"github.com/kirillkom/lovdata-assistant/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/lovdata-assistant/internal/infrastructure/vector/qdrant"
	"github.com/kirillkom/lovdata-assistant/internal/infrastructure/websearch/serper"
	"github.com/kirillkom/lovdata-assistant/internal/observability/metrics"
)

type Options struct {
	// Service labels retrieval metrics.
	Service string
	// WithQueue connects to NATS. Without it uploads are not available.
	WithQueue bool
	// MetricsRegisterer receives search and agent collectors; nil keeps them unexported.
	MetricsRegisterer prometheus.Registerer
}

type App struct {
	Config config.Config

	Executor *resilience.Executor
	Storage  ports.ObjectStorage
	Queue    ports.MessageQueue
	Repo     *postgres.DocumentRepository

	IngestUC    *usecase.IngestArchiveUseCase
	ProcessUC   *usecase.ProcessArchiveUseCase
	SearchUC    *usecase.HybridSearchUseCase
	QueryUC     *usecase.QueryUseCase
	AssistantUC *usecase.AgentUseCase

	// HealthChecks probe the stateful dependencies by name.
	HealthChecks map[string]func(context.Context) error

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.Service == "" {
		opts.Service = "lovdata"
	}

	executor := resilience.NewExecutor(resilienceConfig(cfg))

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewDocumentRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	var queue *nats.Queue
	if opts.WithQueue {
		queue, err = nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			HandlerTimeout:     cfg.WorkerHandlerTimeout,
			ResilienceExecutor: executor,
		})
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init message queue: %w", err)
		}
	}

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, ollama.Options{
		ChatModel:          cfg.OllamaChatModel,
		Timeout:            cfg.OllamaTimeout,
		ResilienceExecutor: executor,
	})
	embedder := embedcache.New(ollama.NewEmbedder(ollamaClient), cfg.EmbedCacheSize)
	generator := ollama.NewGenerator(ollamaClient)

	vectorDB := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, qdrant.Options{
		APIKey:             cfg.QdrantAPIKey,
		ResilienceExecutor: executor,
	})

	chunker, err := chunking.NewSplitter(chunking.Options{
		ChunkSize:          cfg.ChunkSize,
		OverlapSize:        cfg.ChunkOverlap,
		PreserveParagraphs: true,
		ExtractMetadata:    true,
	})
	if err != nil {
		closeAll(db, queue)
		return nil, fmt.Errorf("init chunker: %w", err)
	}

	expander, err := usecase.DefaultQueryExpander()
	if err != nil {
		closeAll(db, queue)
		return nil, fmt.Errorf("load legal vocabulary: %w", err)
	}

	rerankProvider, err := newRerankProvider(cfg, executor)
	if err != nil {
		closeAll(db, queue)
		return nil, err
	}

	reasoner, err := newReasoner(cfg, ollamaClient, executor)
	if err != nil {
		closeAll(db, queue)
		return nil, err
	}

	web, err := newWebSearcher(cfg, executor)
	if err != nil {
		closeAll(db, queue)
		return nil, err
	}

	retrievalMetrics := metrics.NewRetrievalMetrics(opts.Service, opts.MetricsRegisterer)

	searchUC := usecase.NewHybridSearchUseCase(
		repo,
		vectorDB,
		embedder,
		expander,
		usecase.NewReranker(rerankProvider, cfg.RerankTimeout),
		retrievalMetrics,
		usecase.SearchOptions{
			CandidateLimit:  cfg.SearchCandidateLimit,
			RRFK:            cfg.SearchRRFK,
			BranchTimeout:   cfg.SearchBranchTimeout,
			DefaultPageSize: cfg.SearchDefaultPageSize,
			MaxPageSize:     cfg.SearchMaxPageSize,
		},
	)
	queryUC := usecase.NewQueryUseCase(searchUC, generator)
	assistantUC := usecase.NewAgentUseCase(searchUC, reasoner, web, queryUC, retrievalMetrics, cfg.AgentLimits())

	processUC := usecase.NewProcessArchiveUseCase(
		storage,
		archive.NewReader(archive.Options{
			MaxMemberBytes:  cfg.ArchiveMaxMemberBytes,
			MaxArchiveBytes: cfg.ArchiveMaxBytes,
		}),
		lovdata.NewExtractor(),
		chunker,
		embedder,
		repo,
		vectorDB,
		usecase.ProcessOptions{
			EmbedMaxChars:  cfg.EmbedMaxChars,
			EmbedBatchSize: cfg.EmbedBatchSize,
		},
	)

	app := &App{
		Config:      cfg,
		Executor:    executor,
		Storage:     storage,
		Repo:        repo,
		ProcessUC:   processUC,
		SearchUC:    searchUC,
		QueryUC:     queryUC,
		AssistantUC: assistantUC,
		HealthChecks: map[string]func(context.Context) error{
			"postgres": repo.Ping,
			"qdrant":   vectorDB.Ping,
			"ollama":   ollamaClient.Ping,
		},
		closeFn: func() { closeAll(db, queue) },
	}
	if queue != nil {
		app.Queue = queue
		app.IngestUC = usecase.NewIngestArchiveUseCase(storage, queue)
	}

	slog.Info("app_initialized",
		"reasoner", reasonerName(reasoner),
		"web_fallback", web != nil,
		"reranker", fmt.Sprintf("%T", rerankProvider),
		"queue", queue != nil,
	)
	return app, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func resilienceConfig(cfg config.Config) resilience.Config {
	rc := resilience.DefaultConfig()
	if cfg.ResilienceRetryMaxAttempts > 0 {
		rc.RetryMaxAttempts = cfg.ResilienceRetryMaxAttempts
	}
	rc.BreakerEnabled = cfg.ResilienceBreakerEnabled
	if cfg.ResilienceBreakerFailureRatio > 0 {
		rc.BreakerFailureRatio = cfg.ResilienceBreakerFailureRatio
	}
	return rc
}

// newRerankProvider prefers the cross-encoder service and falls back to the
// offline token-overlap scorer.
func newRerankProvider(cfg config.Config, executor *resilience.Executor) (ports.RerankProvider, error) {
	if cfg.RerankURL == "" {
		return usecase.NewLexicalRerankProvider(), nil
	}
	client, err := crossencoder.New(crossencoder.Config{
		BaseURL:            cfg.RerankURL,
		Model:              cfg.RerankModel,
		APIKey:             cfg.RerankAPIKey,
		Timeout:            cfg.RerankTimeout,
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init cross-encoder: %w", err)
	}
	return client, nil
}

// newReasoner returns nil when the assistant should run in direct mode.
func newReasoner(cfg config.Config, ollamaClient *ollama.Client, executor *resilience.Executor) (ports.Reasoner, error) {
	provider := cfg.ReasonerProvider
	if provider == config.ReasonerAuto {
		provider = config.ReasonerOllama
		if cfg.AnthropicAPIKey != "" {
			provider = config.ReasonerClaude
		}
	}
	switch provider {
	case config.ReasonerClaude:
		reasoner, err := claude.NewReasoner(claude.Config{
			APIKey:             cfg.AnthropicAPIKey,
			Model:              cfg.AnthropicModel,
			MaxTokens:          int64(cfg.AnthropicMaxTokens),
			BaseURL:            cfg.AnthropicBaseURL,
			ResilienceExecutor: executor,
		})
		if err != nil {
			return nil, fmt.Errorf("init claude reasoner: %w", err)
		}
		return reasoner, nil
	case config.ReasonerOllama:
		return ollama.NewReasoner(ollamaClient), nil
	default:
		return nil, nil
	}
}

func newWebSearcher(cfg config.Config, executor *resilience.Executor) (ports.WebSearcher, error) {
	if cfg.SerperAPIKey == "" {
		return nil, nil
	}
	client, err := serper.New(serper.Config{
		APIKey:             cfg.SerperAPIKey,
		BaseURL:            cfg.SerperBaseURL,
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init web search: %w", err)
	}
	return client, nil
}

func reasonerName(r ports.Reasoner) string {
	switch r.(type) {
	case nil:
		return "none"
	case *claude.Reasoner:
		return "claude"
	case *ollama.Reasoner:
		return "ollama"
	default:
		return fmt.Sprintf("%T", r)
	}
}

type closer interface{ Close() error }

func closeAll(db closer, queue *nats.Queue) {
	if queue != nil {
		queue.Close()
	}
	if db != nil {
		_ = db.Close()
	}
}
