// Package embeddings generates vector embeddings through an OpenAI-compatible
// endpoint, with an optional Redis cache keyed by content hash.
package embeddings

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"

	"github.com/velesio/docsapi/pkg/apperrors"
)

// Config holds the embedding model settings.
type Config struct {
	APIURL string `json:"api_url"`
	APIKey string `json:"api_key"`
	Model  string `json:"model"`
}

// Service embeds texts in batches, order-preserving: one vector per input.
type Service struct {
	client *openai.Client
	model  string
	cache  Cache
	logger *slog.Logger
}

// Cache stores embeddings by key. Implementations must be safe for
// concurrent use; a nil Cache disables caching entirely.
type Cache interface {
	Get(ctx context.Context, key string) ([]float32, bool)
	Set(ctx context.Context, key string, vector []float32)
}

// NewService builds the embedding service. cache may be nil.
func NewService(cfg Config, cache Cache, logger *slog.Logger) *Service {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = cfg.APIURL
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		cache:  cache,
		logger: logger.With("component", "embedding-service"),
	}
}

// EmbedTexts returns one vector per input text, in input order. Failures
// propagate to the caller on first occurrence; retry policy belongs to the
// embedding-insert path, not here.
func (s *Service) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int

	for i, text := range texts {
		if s.cache != nil {
			if vec, ok := s.cache.Get(ctx, s.cacheKey(text)); ok {
				vectors[i] = vec
				continue
			}
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}

	if len(missing) > 0 {
		resp, err := s.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: missing,
			Model: openai.EmbeddingModel(s.model),
		})
		if err != nil {
			return nil, apperrors.Wrap(apperrors.TypeUpstream, "embeddings.EmbedTexts", "embedding API call failed", err)
		}
		if len(resp.Data) != len(missing) {
			return nil, apperrors.New(apperrors.TypeUpstream, "embeddings.EmbedTexts", "embedding API returned a mismatched number of vectors")
		}
		for j, d := range resp.Data {
			i := missingIdx[j]
			vectors[i] = d.Embedding
			if s.cache != nil {
				s.cache.Set(ctx, s.cacheKey(texts[i]), d.Embedding)
			}
		}
	}

	s.logger.Debug("texts embedded",
		"total", len(texts),
		"cache_hits", len(texts)-len(missing),
	)
	return vectors, nil
}

// EmbedQuery embeds a single query string.
func (s *Service) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := s.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (s *Service) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(s.model + "\x00" + text))
	return "emb:" + hex.EncodeToString(sum[:])
}
