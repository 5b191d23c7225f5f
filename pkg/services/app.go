// Package services assembles the application from its configured parts.
package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/velesio/docsapi/pkg/chunking"
	"github.com/velesio/docsapi/pkg/config"
	"github.com/velesio/docsapi/pkg/embeddings"
	"github.com/velesio/docsapi/pkg/ingestion"
	"github.com/velesio/docsapi/pkg/llm"
	"github.com/velesio/docsapi/pkg/objstore"
	"github.com/velesio/docsapi/pkg/persistence"
	"github.com/velesio/docsapi/pkg/qa"
	"github.com/velesio/docsapi/pkg/quiz"
	"github.com/velesio/docsapi/pkg/retrieval"
	"github.com/velesio/docsapi/pkg/vectorstore"
)

// App holds the wired application services.
type App struct {
	Ingestion *ingestion.Service
	QA        *qa.Generator
	Tests     *quiz.Generator
	Grader    *quiz.Grader

	store *persistence.Store
	cache *embeddings.RedisCache
}

// New wires every service from the configuration. The Redis cache is
// optional; without it embeddings are computed on every call.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	var cache embeddings.Cache
	var redisCache *embeddings.RedisCache
	if cfg.RedisAddr != "" {
		var err error
		redisCache, err = embeddings.NewRedisCache(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.CacheTTL, logger)
		if err != nil {
			return nil, fmt.Errorf("connecting embedding cache: %w", err)
		}
		cache = redisCache
	}

	embedder := embeddings.NewService(embeddings.Config{
		APIURL: cfg.LLMAPIURL,
		APIKey: cfg.LLMAPIKey,
		Model:  cfg.EmbeddingModel,
	}, cache, logger)

	vectors, err := vectorstore.NewManager(vectorstore.Config{
		Host:   cfg.WeaviateHost,
		Scheme: cfg.WeaviateScheme,
		APIKey: cfg.WeaviateAPIKey,
	}, embedder, logger)
	if err != nil {
		return nil, fmt.Errorf("connecting vector store: %w", err)
	}

	documents, err := objstore.New(ctx, objstore.Config{
		Endpoint:  cfg.S3Endpoint,
		Region:    cfg.S3Region,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		Bucket:    cfg.S3Bucket,
		RootPath:  cfg.S3RootPath,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("connecting object store: %w", err)
	}

	store, err := persistence.Open(cfg.SQLitePath, logger)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	completer := llm.NewClient(llm.Config{
		APIURL:    cfg.LLMAPIURL,
		APIKey:    cfg.LLMAPIKey,
		Model:     cfg.LLMModel,
		MaxTokens: cfg.LLMMaxTokens,
	}, logger)

	chunker := chunking.NewChunker(cfg.Chunking, logger)
	retriever := retrieval.NewHybridRetriever(vectors, embedder, cfg.Retrieval, logger)

	return &App{
		Ingestion: ingestion.NewService(documents, chunker, vectors, logger),
		QA:        qa.NewGenerator(retriever, completer, store, cfg.LLMTemperature, logger),
		Tests:     quiz.NewGenerator(vectors, completer, store, cfg.LLMTemperature, logger),
		Grader:    quiz.NewGrader(store, cfg.DedupScope, logger),
		store:     store,
		cache:     redisCache,
	}, nil
}

// Close releases the app's persistent connections.
func (a *App) Close() error {
	if a.cache != nil {
		a.cache.Close()
	}
	return a.store.Close()
}
