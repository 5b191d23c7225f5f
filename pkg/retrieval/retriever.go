// Package retrieval combines vector search with a per-call BM25 index to
// produce grounding candidates for a question over one document.
package retrieval

import (
	"context"
	"log/slog"

	"github.com/velesio/docsapi/pkg/config"
	"github.com/velesio/docsapi/pkg/vectorstore"
)

// Source marks which retrieval branch produced a candidate.
type Source string

const (
	SourceSemantic Source = "semantic"
	SourceLexical  Source = "lexical"
	SourceBoth     Source = "both"
)

// Candidate is one grounding chunk with its provenance.
type Candidate struct {
	vectorstore.StoredChunk
	Source Source
}

// ChunkStore is the slice of the vector store the retriever needs.
type ChunkStore interface {
	GetAll(ctx context.Context, documentID string) ([]vectorstore.StoredChunk, error)
	QueryNearVector(ctx context.Context, documentID string, vector []float32, limit int) ([]vectorstore.ScoredChunk, error)
}

// QueryEmbedder embeds a single query string.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// HybridRetriever runs both branches and merges their results.
type HybridRetriever struct {
	store    ChunkStore
	embedder QueryEmbedder
	cfg      config.RetrievalConfig
	logger   *slog.Logger
}

// NewHybridRetriever creates a retriever with the configured branch depths.
func NewHybridRetriever(store ChunkStore, embedder QueryEmbedder, cfg config.RetrievalConfig, logger *slog.Logger) *HybridRetriever {
	if cfg.TopKSemantic <= 0 {
		cfg.TopKSemantic = 3
	}
	if cfg.TopKLexical <= 0 {
		cfg.TopKLexical = 2
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HybridRetriever{
		store:    store,
		embedder: embedder,
		cfg:      cfg,
		logger:   logger.With("component", "retrieval"),
	}
}

// Retrieve returns the union of the semantic and lexical top results,
// deduplicated by chunk id. Semantic results come first, each branch keeping
// its own ranking order; a chunk found by both branches appears once, marked
// SourceBoth. An empty collection yields an empty candidate set.
func (r *HybridRetriever) Retrieve(ctx context.Context, documentID, question string) ([]Candidate, error) {
	vector, err := r.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, err
	}
	semantic, err := r.store.QueryNearVector(ctx, documentID, vector, r.cfg.TopKSemantic)
	if err != nil {
		return nil, err
	}

	all, err := r.store.GetAll(ctx, documentID)
	if err != nil {
		return nil, err
	}
	lexical := newBM25Index(all).topK(question, r.cfg.TopKLexical)

	seen := make(map[string]int, len(semantic)+len(lexical))
	candidates := make([]Candidate, 0, len(semantic)+len(lexical))
	for _, s := range semantic {
		seen[s.ID] = len(candidates)
		candidates = append(candidates, Candidate{StoredChunk: s.StoredChunk, Source: SourceSemantic})
	}
	for _, l := range lexical {
		if i, ok := seen[l.ID]; ok {
			candidates[i].Source = SourceBoth
			continue
		}
		seen[l.ID] = len(candidates)
		candidates = append(candidates, Candidate{StoredChunk: l, Source: SourceLexical})
	}

	r.logger.Debug("retrieval complete",
		"document_id", documentID,
		"semantic", len(semantic),
		"lexical", len(lexical),
		"candidates", len(candidates),
	)
	return candidates, nil
}
