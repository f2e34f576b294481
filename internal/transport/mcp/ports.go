package mcp

import (
	"context"

	"github.com/kailas-cloud/ingestcore/internal/domain/search/filterexpr"
	"github.com/kailas-cloud/ingestcore/internal/domain/search/request"
	"github.com/kailas-cloud/ingestcore/internal/domain/search/result"
	"github.com/kailas-cloud/ingestcore/internal/domain/record"
	"github.com/kailas-cloud/ingestcore/internal/repository/backupstore"
	"github.com/kailas-cloud/ingestcore/internal/usecase/bulk"
	"github.com/kailas-cloud/ingestcore/internal/usecase/ingest"
	"github.com/kailas-cloud/ingestcore/internal/usecase/query"
)

// Ingester runs the ingestion controller. Satisfied by *ingest.Service.
type Ingester interface {
	Ingest(ctx context.Context, req ingest.IngestRequest) (ingest.Report, error)
	ReconcileActive(ctx context.Context, collection, docID, category string) error
}

// Querier is the read-side surface: search, lookup, stats, verification.
// Satisfied by *query.Service.
type Querier interface {
	Search(ctx context.Context, collection string, req request.Request) ([]result.Result, error)
	GetByPath(ctx context.Context, collection, filePath string) (record.Record, bool, error)
	MetadataStats(ctx context.Context, collection string) (query.MetadataStats, error)
	Stats(ctx context.Context) (map[string]int, error)
	VerifyDocument(ctx context.Context, collection, docID string) (query.Verification, error)
	VerifyCategory(ctx context.Context, collection string) (query.CategoryReport, error)
	AuditStorageIntegrity(ctx context.Context) (query.IntegrityReport, error)
	VersionHistory(ctx context.Context, collection, docID string) ([]record.Record, error)
	FilePathIndex(ctx context.Context, collection string) (map[string]record.Record, error)
}

// Bulker is the maintenance surface: filtered mutation/delete, wipe,
// export/import, filesystem backup/restore. Satisfied by *bulk.Service.
type Bulker interface {
	BulkUpdateMetadata(ctx context.Context, collection string, filter *filterexpr.Node, patch map[string]any) (int, error)
	DeleteByFilter(ctx context.Context, collection string, filter *filterexpr.Node) (int, error)
	ClearAll(ctx context.Context, collection string, confirm bool) (int, error)
	Export(ctx context.Context, collection string, includeEmbeddings bool) ([]backupstore.DocumentDTO, error)
	Import(ctx context.Context, collection string, docs []backupstore.DocumentDTO, policy bulk.ImportPolicy) (bulk.ImportReport, error)
	CreateBackup(ctx context.Context, collection string, includeEmbeddings bool) (backupstore.Manifest, error)
	RestoreBackup(ctx context.Context, collection, backupID string, policy bulk.ImportPolicy) (bulk.ImportReport, error)
	ListBackups(ctx context.Context) ([]backupstore.Metadata, error)
}

// Ports aggregates the three driving-side services the tool surface needs,
// a single injection point for the server constructor.
type Ports struct {
	Ingest Ingester
	Query  Querier
	Bulk   Bulker
}

// Validate ensures every port required by the tool surface is set.
func (p *Ports) Validate() error {
	if p.Ingest == nil {
		return ErrMissingIngestPort
	}
	if p.Query == nil {
		return ErrMissingQueryPort
	}
	if p.Bulk == nil {
		return ErrMissingBulkPort
	}
	return nil
}
