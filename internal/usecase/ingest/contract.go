package ingest

import (
	"context"

	"github.com/kailas-cloud/ingestcore/internal/domain"
	"github.com/kailas-cloud/ingestcore/internal/domain/chunkdiff"
	"github.com/kailas-cloud/ingestcore/internal/domain/dedup"
	"github.com/kailas-cloud/ingestcore/internal/domain/record"
	"github.com/kailas-cloud/ingestcore/internal/domain/versioning"
)

// Repository is the storage contract the ingestion controller needs:
// duplicate-candidate lookup, whole-record and chunk-set writes, and the
// filter-based payload mutation versioning.Deprecate requires.
type Repository interface {
	versioning.PayloadMutator

	// FindCandidates returns every stored record in collection whose
	// doc_id matches docID or whose metadata_hash matches metadataHash —
	// the full candidate set dedup.Classify needs.
	FindCandidates(ctx context.Context, collection, docID, metadataHash string) ([]dedup.ExistingRecord, error)

	// Store upserts a single document or chunk record, returning its
	// point reference.
	Store(ctx context.Context, collection string, rec record.Record) (record.PointRef, error)

	// ChunksByParent returns the stored chunk set for a document, in the
	// shape chunkdiff.Diff compares against.
	ChunksByParent(ctx context.Context, collection, parentDocID string) ([]chunkdiff.ChunkRecord, error)

	// ActiveByDocCategory returns every active non-chunk record for
	// (docID, category), for ReconcileActive to pick a newest survivor
	// and deprecate the rest by hash_content.
	ActiveByDocCategory(ctx context.Context, collection, docID, category string) ([]ActiveRef, error)
}

// ActiveRef is a minimal active-record reference returned for
// reconciliation: enough to pick the newest and deprecate the others by
// their own hash_content, the only safe deprecation predicate.
type ActiveRef struct {
	Point       record.PointRef
	HashContent string
	UpdatedAt   int64 // unix millis, for newest-first ordering
}

// Embedder vectorizes text. Satisfied by a cache → budget/metrics →
// instruction-prefix decorator chain.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// SimilarityChecker reports embedding-space similarity between two
// vectors, wired to dedup.SimilarityFunc. Optional: nil disables Level 3.
type SimilarityChecker interface {
	Similar(a, b []float32) (score float64, ok bool)
}
