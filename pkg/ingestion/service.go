// Package ingestion orchestrates the document pipeline: fetch from object
// storage, chunk, and index into the vector store. Operations on the same
// document are serialized so a delete can never interleave with an ingest.
package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/velesio/docsapi/pkg/apperrors"
	"github.com/velesio/docsapi/pkg/chunking"
)

// DocumentSource fetches and enumerates source documents.
type DocumentSource interface {
	Get(ctx context.Context, name string) ([]byte, error)
	List(ctx context.Context) ([]string, error)
}

// Chunker splits a raw document into chunks.
type Chunker interface {
	Chunk(data []byte, filename string) ([]chunking.Chunk, error)
}

// CollectionStore is the slice of the vector store the pipeline needs.
type CollectionStore interface {
	EnsureCollection(ctx context.Context, documentID string) error
	AddChunks(ctx context.Context, documentID string, chunks []chunking.Chunk) ([]string, error)
	DeleteCollection(ctx context.Context, documentID string) error
	ListCollections(ctx context.Context) ([]string, error)
}

// Service runs the ingestion pipeline.
type Service struct {
	source  DocumentSource
	chunker Chunker
	store   CollectionStore
	logger  *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService creates the ingestion service.
func NewService(source DocumentSource, chunker Chunker, store CollectionStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		source:  source,
		chunker: chunker,
		store:   store,
		logger:  logger.With("component", "ingestion"),
		locks:   make(map[string]*sync.Mutex),
	}
}

// DocumentID derives the stable document id for a storage object name. The
// same name always maps to the same id, which is what lets the consistency
// check match storage against the index.
func DocumentID(name string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}

// lockDocument serializes operations touching one document.
func (s *Service) lockDocument(documentID string) func() {
	s.mu.Lock()
	lock, ok := s.locks[documentID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[documentID] = lock
	}
	s.mu.Unlock()
	lock.Lock()
	return lock.Unlock
}

// Ingest fetches the named document, chunks it and indexes the chunks into a
// fresh collection. When indexing stores nothing despite the document having
// chunks, the collection is torn down again so a half-indexed document is
// never left queryable.
func (s *Service) Ingest(ctx context.Context, name string) (string, error) {
	documentID := DocumentID(name)
	unlock := s.lockDocument(documentID)
	defer unlock()

	data, err := s.source.Get(ctx, name)
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", apperrors.New(apperrors.TypeValidation, "ingestion.Ingest", fmt.Sprintf("document %s is empty", name))
	}

	chunks, err := s.chunker.Chunk(data, name)
	if err != nil {
		return "", apperrors.Wrap(apperrors.TypeValidation, "ingestion.Ingest", "chunking failed", err)
	}
	if len(chunks) == 0 {
		return "", apperrors.New(apperrors.TypeValidation, "ingestion.Ingest", fmt.Sprintf("no content extracted from %s", name))
	}

	// Re-ingesting a name replaces its collection; appending would leave a
	// second copy of every chunk behind.
	if err := s.store.DeleteCollection(ctx, documentID); err != nil {
		return "", err
	}
	if err := s.store.EnsureCollection(ctx, documentID); err != nil {
		return "", err
	}
	ids, err := s.store.AddChunks(ctx, documentID, chunks)
	if err != nil {
		return "", err
	}
	if len(ids) == 0 {
		// Indexing gave up; tear the collection down rather than leave it
		// empty and queryable.
		if delErr := s.store.DeleteCollection(ctx, documentID); delErr != nil {
			s.logger.Error("failed to clean up collection after indexing failure",
				"document_id", documentID, "error", delErr)
		}
		return "", apperrors.New(apperrors.TypeUpstream, "ingestion.Ingest", fmt.Sprintf("indexing failed for %s", name))
	}

	s.logger.Info("document ingested", "name", name, "document_id", documentID, "chunks", len(ids))
	return documentID, nil
}

// Delete removes a document's collection. Deleting an unknown document is a
// no-op.
func (s *Service) Delete(ctx context.Context, documentID string) error {
	unlock := s.lockDocument(documentID)
	defer unlock()
	return s.store.DeleteCollection(ctx, documentID)
}

// ListCollections returns the ids of every indexed document.
func (s *Service) ListCollections(ctx context.Context) ([]string, error) {
	return s.store.ListCollections(ctx)
}

// SyncReport describes the drift between object storage and the index, and
// what (if anything) was done about it.
type SyncReport struct {
	Missing  []string `json:"missing"`  // in storage, not indexed (object names)
	Orphaned []string `json:"orphaned"` // indexed, no longer in storage (document ids)
	Ingested []string `json:"ingested"` // document ids indexed during this run
	Deleted  []string `json:"deleted"`  // document ids removed during this run
	DryRun   bool     `json:"dry_run"`
}

// Sync compares object storage against the indexed collections. With dryRun
// set it only reports the drift; otherwise it ingests missing documents and
// deletes orphaned collections. A document that fails to ingest is reported
// as still missing rather than failing the whole run.
func (s *Service) Sync(ctx context.Context, dryRun bool) (SyncReport, error) {
	report := SyncReport{DryRun: dryRun}

	names, err := s.source.List(ctx)
	if err != nil {
		return report, err
	}
	indexed, err := s.store.ListCollections(ctx)
	if err != nil {
		return report, err
	}

	indexedSet := make(map[string]struct{}, len(indexed))
	for _, id := range indexed {
		indexedSet[id] = struct{}{}
	}
	wantSet := make(map[string]struct{}, len(names))
	for _, name := range names {
		id := DocumentID(name)
		wantSet[id] = struct{}{}
		if _, ok := indexedSet[id]; !ok {
			report.Missing = append(report.Missing, name)
		}
	}
	for _, id := range indexed {
		if _, ok := wantSet[id]; !ok {
			report.Orphaned = append(report.Orphaned, id)
		}
	}

	if dryRun {
		return report, nil
	}

	for _, name := range report.Missing {
		id, err := s.Ingest(ctx, name)
		if err != nil {
			s.logger.Error("sync ingest failed", "name", name, "error", err)
			continue
		}
		report.Ingested = append(report.Ingested, id)
	}
	for _, id := range report.Orphaned {
		if err := s.Delete(ctx, id); err != nil {
			s.logger.Error("sync delete failed", "document_id", id, "error", err)
			continue
		}
		report.Deleted = append(report.Deleted, id)
	}

	s.logger.Info("sync complete",
		"missing", len(report.Missing),
		"orphaned", len(report.Orphaned),
		"ingested", len(report.Ingested),
		"deleted", len(report.Deleted),
	)
	return report, nil
}
