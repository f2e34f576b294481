package query

import (
	"context"

	"github.com/kailas-cloud/ingestcore/internal/domain"
	"github.com/kailas-cloud/ingestcore/internal/domain/record"
	"github.com/kailas-cloud/ingestcore/internal/domain/search/filterexpr"
	"github.com/kailas-cloud/ingestcore/internal/domain/search/result"
)

// Repository is the storage contract the query service needs: semantic
// and keyword search plus the flat-record lookups verification and
// auditing require. Satisfied by internal/repository/search.Repo and
// internal/repository/record.Repo respectively.
type Repository interface {
	SearchKNN(
		ctx context.Context, collection string, vector []float32,
		filter *filterexpr.Node, topK int, includeVectors bool,
	) ([]result.Result, error)
	SearchBM25(
		ctx context.Context, collection, query string, filter *filterexpr.Node, topK int,
	) ([]result.Result, error)
	SupportsTextSearch(ctx context.Context) bool

	GetByPath(ctx context.Context, collection, filePath string) (record.Record, bool, error)
	FindByFilter(
		ctx context.Context, collection string, filter *filterexpr.Node, offset, limit int,
	) ([]record.Record, int, error)
}

// Embedder vectorizes a query for semantic/hybrid search.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
