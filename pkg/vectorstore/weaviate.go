// Package vectorstore manages per-document chunk collections in Weaviate.
// Each ingested document owns one class; chunk vectors are provided by the
// embedding service rather than a Weaviate vectorizer module.
package vectorstore

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/weaviate/weaviate-go-client/v4/weaviate"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/auth"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/velesio/docsapi/pkg/apperrors"
	"github.com/velesio/docsapi/pkg/chunking"
)

const (
	classPrefix = "Doc"
	pageSize    = 10000 // objects fetched per page when dumping a collection
)

// Config holds the Weaviate connection settings.
type Config struct {
	Host   string `json:"host"`
	Scheme string `json:"scheme"`
	APIKey string `json:"api_key"`
}

// Embedder turns chunk texts into vectors, one per input, order-preserving.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// StoredChunk is the stored form of a chunk returned by dump and lookup
// operations.
type StoredChunk struct {
	ID          string
	Text        string
	Section     string
	PageNumber  int
	ElementType string
}

// ScoredChunk is a chunk with its vector-search distance.
type ScoredChunk struct {
	StoredChunk
	Distance float32
}

// Manager owns the collection lifecycle and chunk storage.
type Manager struct {
	client        *weaviate.Client
	embedder      Embedder
	logger        *slog.Logger
	retryAttempts int
	retryDelay    time.Duration
}

// NewManager creates a collection manager.
func NewManager(cfg Config, embedder Embedder, logger *slog.Logger) (*Manager, error) {
	if cfg.Scheme == "" {
		cfg.Scheme = "http"
	}
	var authConfig auth.Config
	if cfg.APIKey != "" {
		authConfig = auth.ApiKey{Value: cfg.APIKey}
	}
	client, err := weaviate.NewClient(weaviate.Config{
		Host:       cfg.Host,
		Scheme:     cfg.Scheme,
		AuthConfig: authConfig,
	})
	if err != nil {
		return nil, fmt.Errorf("creating weaviate client: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		client:        client,
		embedder:      embedder,
		logger:        logger.With("component", "vectorstore"),
		retryAttempts: 3,
		retryDelay:    time.Second,
	}, nil
}

// ClassName maps a document id to its Weaviate class name. Weaviate class
// names must be capitalized alphanumerics, so the document id is stripped of
// separators and prefixed.
func ClassName(documentID string) string {
	var b strings.Builder
	b.WriteString(classPrefix)
	for _, r := range documentID {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// DocumentID reverses ClassName for UUID-shaped document ids; non-UUID names
// come back as the stripped lowercase remainder.
func DocumentID(className string) (string, bool) {
	if !strings.HasPrefix(className, classPrefix) {
		return "", false
	}
	raw := strings.ToLower(strings.TrimPrefix(className, classPrefix))
	if len(raw) == 32 {
		// 8-4-4-4-12 layout of a dashless UUID
		return raw[0:8] + "-" + raw[8:12] + "-" + raw[12:16] + "-" + raw[16:20] + "-" + raw[20:32], true
	}
	return raw, true
}

// EnsureCollection creates the class for a document if it does not already
// exist. Idempotent: an existing class is not an error.
func (m *Manager) EnsureCollection(ctx context.Context, documentID string) error {
	class := &models.Class{
		Class:      ClassName(documentID),
		Vectorizer: "none",
		Properties: []*models.Property{
			{Name: "content", DataType: []string{"text"}},
			{Name: "section", DataType: []string{"text"}},
			{Name: "pageNumber", DataType: []string{"int"}},
			{Name: "elementType", DataType: []string{"text"}},
		},
	}
	err := m.client.Schema().ClassCreator().WithClass(class).Do(ctx)
	if err != nil {
		if strings.Contains(err.Error(), "already exists") {
			return nil
		}
		return apperrors.Wrap(apperrors.TypeUpstream, "vectorstore.EnsureCollection", "class create failed", err)
	}
	m.logger.Info("collection created", "document_id", documentID, "class", class.Class)
	return nil
}

// AddChunks embeds the chunk texts and stores them in the document's
// collection. The embed+insert step is retried up to three times; when every
// attempt fails the method returns an empty id list and logs instead of
// failing, leaving the reconciliation to the caller.
func (m *Manager) AddChunks(ctx context.Context, documentID string, chunks []chunking.Chunk) ([]string, error) {
	if len(chunks) == 0 {
		m.logger.Info("no chunks to add, skipping", "document_id", documentID)
		return nil, nil
	}

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}

	var lastErr error
	for attempt := 1; attempt <= m.retryAttempts; attempt++ {
		vectors, err := m.embedder.EmbedTexts(ctx, texts)
		if err == nil {
			err = m.insertBatch(ctx, ClassName(documentID), chunks, vectors)
			if err == nil {
				ids := make([]string, len(chunks))
				for i, ch := range chunks {
					ids[i] = ch.ID
				}
				m.logger.Info("chunks added",
					"document_id", documentID,
					"chunks", len(ids),
					"attempt", attempt,
				)
				return ids, nil
			}
		}
		lastErr = err
		m.logger.Error("add chunks attempt failed",
			"document_id", documentID,
			"attempt", attempt,
			"error", err,
		)
		if attempt < m.retryAttempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(m.retryDelay * time.Duration(attempt)):
			}
		}
	}

	m.logger.Error("chunks were not added after all attempts",
		"document_id", documentID,
		"attempts", m.retryAttempts,
		"error", lastErr,
	)
	return nil, nil
}

func (m *Manager) insertBatch(ctx context.Context, className string, chunks []chunking.Chunk, vectors [][]float32) error {
	if len(vectors) != len(chunks) {
		return fmt.Errorf("expected %d vectors, got %d", len(chunks), len(vectors))
	}
	objects := make([]*models.Object, len(chunks))
	for i, ch := range chunks {
		objects[i] = &models.Object{
			Class: className,
			ID:    strfmt.UUID(ch.ID),
			Properties: map[string]interface{}{
				"content":     ch.Text,
				"section":     ch.Section,
				"pageNumber":  ch.PageNumber,
				"elementType": ch.ElementType,
			},
			Vector: models.C11yVector(vectors[i]),
		}
	}
	resp, err := m.client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
	if err != nil {
		return fmt.Errorf("batch insert: %w", err)
	}
	for _, r := range resp {
		if r.Result != nil && r.Result.Errors != nil && len(r.Result.Errors.Error) > 0 {
			return fmt.Errorf("batch insert rejected object %s: %s", r.ID, r.Result.Errors.Error[0].Message)
		}
	}
	return nil
}

// GetAll dumps every stored chunk of a collection, paging until the listing
// is exhausted. Used to build the lexical index at query time.
func (m *Manager) GetAll(ctx context.Context, documentID string) ([]StoredChunk, error) {
	if err := m.requireCollection(ctx, documentID, "vectorstore.GetAll"); err != nil {
		return nil, err
	}
	class := ClassName(documentID)
	return collectPages(pageSize, func(offset int) ([]StoredChunk, error) {
		result, err := m.client.GraphQL().Get().
			WithClassName(class).
			WithFields(chunkFields()...).
			WithLimit(pageSize).
			WithOffset(offset).
			Do(ctx)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.TypeUpstream, "vectorstore.GetAll", "chunk dump failed", err)
		}
		return parseChunks(result, class)
	})
}

// collectPages drains a paged listing until a short page signals the end.
func collectPages(size int, fetch func(offset int) ([]StoredChunk, error)) ([]StoredChunk, error) {
	var all []StoredChunk
	for offset := 0; ; offset += size {
		page, err := fetch(offset)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < size {
			return all, nil
		}
	}
}

// GetIDs returns all chunk ids in a collection.
func (m *Manager) GetIDs(ctx context.Context, documentID string) ([]string, error) {
	chunks, err := m.GetAll(ctx, documentID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(chunks))
	for i, ch := range chunks {
		ids[i] = ch.ID
	}
	return ids, nil
}

// GetByID returns the text of one chunk.
func (m *Manager) GetByID(ctx context.Context, documentID, chunkID string) (string, error) {
	objects, err := m.client.Data().ObjectsGetter().
		WithClassName(ClassName(documentID)).
		WithID(chunkID).
		Do(ctx)
	if err != nil {
		if strings.Contains(err.Error(), "404") || strings.Contains(err.Error(), "not found") {
			return "", apperrors.New(apperrors.TypeNotFound, "vectorstore.GetByID", "chunk not found")
		}
		return "", apperrors.Wrap(apperrors.TypeUpstream, "vectorstore.GetByID", "chunk lookup failed", err)
	}
	if len(objects) == 0 {
		return "", apperrors.New(apperrors.TypeNotFound, "vectorstore.GetByID", "chunk not found")
	}
	props, ok := objects[0].Properties.(map[string]interface{})
	if !ok {
		return "", apperrors.New(apperrors.TypeUpstream, "vectorstore.GetByID", "unexpected object shape")
	}
	text, _ := props["content"].(string)
	return text, nil
}

// QueryNearVector ranks stored chunks by vector similarity to the query
// vector and returns the closest limit chunks.
func (m *Manager) QueryNearVector(ctx context.Context, documentID string, vector []float32, limit int) ([]ScoredChunk, error) {
	if err := m.requireCollection(ctx, documentID, "vectorstore.QueryNearVector"); err != nil {
		return nil, err
	}
	nearVector := m.client.GraphQL().NearVectorArgBuilder().WithVector(vector)
	result, err := m.client.GraphQL().Get().
		WithClassName(ClassName(documentID)).
		WithNearVector(nearVector).
		WithFields(chunkFields()...).
		WithLimit(limit).
		Do(ctx)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.TypeUpstream, "vectorstore.QueryNearVector", "vector search failed", err)
	}
	chunks, err := parseChunks(result, ClassName(documentID))
	if err != nil {
		return nil, err
	}
	scored := make([]ScoredChunk, len(chunks))
	for i, ch := range chunks {
		scored[i] = ScoredChunk{StoredChunk: ch}
	}
	// Distances ride along in _additional when present.
	attachDistances(result, ClassName(documentID), scored)
	return scored, nil
}

// DeleteCollection removes a document's class and every chunk in it.
// Deleting a collection that does not exist is a no-op.
func (m *Manager) DeleteCollection(ctx context.Context, documentID string) error {
	err := m.client.Schema().ClassDeleter().WithClassName(ClassName(documentID)).Do(ctx)
	if err != nil {
		if strings.Contains(err.Error(), "not found") || strings.Contains(err.Error(), "400") {
			m.logger.Info("collection already absent", "document_id", documentID)
			return nil
		}
		return apperrors.Wrap(apperrors.TypeUpstream, "vectorstore.DeleteCollection", "class delete failed", err)
	}
	m.logger.Info("collection deleted", "document_id", documentID)
	return nil
}

// ListCollections enumerates the document ids that currently own a
// collection.
func (m *Manager) ListCollections(ctx context.Context) ([]string, error) {
	schema, err := m.client.Schema().Getter().Do(ctx)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.TypeUpstream, "vectorstore.ListCollections", "schema read failed", err)
	}
	var ids []string
	for _, class := range schema.Classes {
		if id, ok := DocumentID(class.Class); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// requireCollection maps an absent class to NotFound so callers can tell a
// deleted collection from an empty one.
func (m *Manager) requireCollection(ctx context.Context, documentID, op string) error {
	schema, err := m.client.Schema().Getter().Do(ctx)
	if err != nil {
		return apperrors.Wrap(apperrors.TypeUpstream, op, "schema read failed", err)
	}
	want := ClassName(documentID)
	for _, class := range schema.Classes {
		if class.Class == want {
			return nil
		}
	}
	return apperrors.New(apperrors.TypeNotFound, op, fmt.Sprintf("collection %s not found", documentID))
}

func chunkFields() []graphql.Field {
	return []graphql.Field{
		{Name: "content"},
		{Name: "section"},
		{Name: "pageNumber"},
		{Name: "elementType"},
		{Name: "_additional", Fields: []graphql.Field{
			{Name: "id"},
			{Name: "distance"},
		}},
	}
}

// parseChunks unpacks a GraphQL Get response for the given class.
func parseChunks(result *models.GraphQLResponse, className string) ([]StoredChunk, error) {
	if len(result.Errors) > 0 {
		return nil, apperrors.New(apperrors.TypeUpstream, "vectorstore.parseChunks", result.Errors[0].Message)
	}
	data, ok := result.Data["Get"].(map[string]interface{})
	if !ok {
		return nil, nil
	}
	items, ok := data[className].([]interface{})
	if !ok {
		return nil, nil
	}
	chunks := make([]StoredChunk, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		var ch StoredChunk
		if v, ok := m["content"].(string); ok {
			ch.Text = v
		}
		if v, ok := m["section"].(string); ok {
			ch.Section = v
		}
		if v, ok := m["pageNumber"].(float64); ok {
			ch.PageNumber = int(v)
		}
		if v, ok := m["elementType"].(string); ok {
			ch.ElementType = v
		}
		if additional, ok := m["_additional"].(map[string]interface{}); ok {
			if id, ok := additional["id"].(string); ok {
				ch.ID = id
			}
		}
		chunks = append(chunks, ch)
	}
	return chunks, nil
}

func attachDistances(result *models.GraphQLResponse, className string, scored []ScoredChunk) {
	data, ok := result.Data["Get"].(map[string]interface{})
	if !ok {
		return
	}
	items, ok := data[className].([]interface{})
	if !ok {
		return
	}
	for i, item := range items {
		if i >= len(scored) {
			break
		}
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		if additional, ok := m["_additional"].(map[string]interface{}); ok {
			if d, ok := additional["distance"].(float64); ok {
				scored[i].Distance = float32(d)
			}
		}
	}
}
