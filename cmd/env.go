package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/eventscope/internal/config"
	"github.com/sells-group/eventscope/internal/queue"
	"github.com/sells-group/eventscope/internal/rag"
	"github.com/sells-group/eventscope/internal/scrape"
	"github.com/sells-group/eventscope/internal/store"
	"github.com/sells-group/eventscope/pkg/browser"
	"github.com/sells-group/eventscope/pkg/llm"
	"github.com/sells-group/eventscope/pkg/openai"
	"github.com/sells-group/eventscope/pkg/pinecone"
)

// appEnv holds the wired subsystems shared by the commands.
type appEnv struct {
	Store    store.Store
	Broker   queue.Broker
	Registry *scrape.Registry
	Pipeline *rag.Pipeline
	Workers  *queue.WorkerPool
}

// initEnv builds the application from configuration. The RAG pipeline is
// only wired when embedding and vector index credentials are present;
// without them events are scraped and stored but not indexed.
func initEnv(ctx context.Context) (*appEnv, error) {
	st, err := initStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, err
	}

	broker, err := initBroker(ctx, cfg)
	if err != nil {
		st.Close()
		return nil, err
	}

	chrome := browser.NewChromeClient(
		browser.WithUserAgent(cfg.Browser.UserAgent),
		browser.WithNavTimeout(cfg.Browser.NavTimeout),
		browser.WithWaitTimeout(cfg.Browser.WaitTimeout),
	)
	registry := scrape.NewRegistry(
		scrape.NewEventbrite(chrome),
		scrape.NewMeetup(chrome),
		scrape.NewLuma(chrome),
	)

	pipeline := initPipeline(cfg, st)

	var ingester queue.Ingester
	if pipeline != nil {
		ingester = pipeline
	}
	workers := queue.NewWorkerPool(broker, registry, st, ingester, queue.WorkerOptions{
		Concurrency:      cfg.Queue.Concurrency,
		ScrapeRetries:    cfg.Scrape.MaxRetries,
		ScrapeRetryDelay: cfg.Scrape.RetryDelay,
		FailOnIndexError: cfg.Queue.FailOnIndexError,
	})

	return &appEnv{
		Store:    st,
		Broker:   broker,
		Registry: registry,
		Pipeline: pipeline,
		Workers:  workers,
	}, nil
}

func (e *appEnv) Close() {
	if err := e.Broker.Close(); err != nil {
		zap.L().Warn("close broker", zap.Error(err))
	}
	if err := e.Store.Close(); err != nil {
		zap.L().Warn("close store", zap.Error(err))
	}
}

func initStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	case "sqlite", "":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func initBroker(ctx context.Context, cfg *config.Config) (queue.Broker, error) {
	switch cfg.Queue.Broker {
	case "redis":
		return queue.NewRedis(ctx, cfg.Queue.RedisAddr, cfg.Queue.RedisPassword, cfg.Queue.MaxAttempts)
	case "memory", "":
		return queue.NewMemory(cfg.Queue.MaxAttempts), nil
	default:
		return nil, eris.Errorf("unknown queue broker %q", cfg.Queue.Broker)
	}
}

func initPipeline(cfg *config.Config, st store.Store) *rag.Pipeline {
	if cfg.OpenAI.Key == "" || cfg.Pinecone.Key == "" || cfg.Pinecone.IndexHost == "" {
		zap.L().Warn("rag pipeline disabled: embedding or vector index credentials missing")
		return nil
	}

	embedder := openai.NewClient(cfg.OpenAI.Key,
		openai.WithBaseURL(cfg.OpenAI.BaseURL),
		openai.WithModel(cfg.OpenAI.EmbeddingModel),
		openai.WithRateLimit(cfg.OpenAI.RatePerSecond),
		openai.WithConcurrency(cfg.RAG.EmbedConcurrency),
	)
	index := pinecone.NewClient(cfg.Pinecone.Key, cfg.Pinecone.IndexHost,
		pinecone.WithNamespace(cfg.Pinecone.Namespace),
	)

	var keyword rag.KeywordSearcher
	if cfg.RAG.HybridSearch {
		keyword = rag.NewStoreSearcher(st)
	}

	var reranker rag.Reranker
	var generator rag.Generator
	if cfg.Anthropic.Key != "" {
		client := llm.NewClient(cfg.Anthropic.Key)
		generator = llm.NewGenerator(client, cfg.Anthropic.AnswerModel)
		if cfg.RAG.Rerank {
			reranker = llm.NewReranker(client, cfg.Anthropic.RerankModel)
		}
	}

	return rag.NewPipeline(embedder, index, keyword, reranker, generator, rag.Options{
		ChunkSize:    cfg.RAG.ChunkSize,
		ChunkOverlap: cfg.RAG.ChunkOverlap,
		TopK:         cfg.RAG.RetrievalTopK,
		HybridSearch: cfg.RAG.HybridSearch,
	})
}
