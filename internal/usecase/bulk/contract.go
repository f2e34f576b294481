// Package bulk implements the maintenance surface over stored records:
// filtered bulk metadata updates and deletes, full collection wipes,
// export/import, filesystem backup/restore, and one-shot metadata-hash
// backfill for records written before hash_content/metadata_hash existed.
package bulk

import (
	"context"

	"github.com/kailas-cloud/ingestcore/internal/domain/record"
	"github.com/kailas-cloud/ingestcore/internal/domain/search/filterexpr"
	"github.com/kailas-cloud/ingestcore/internal/domain/versioning"
	"github.com/kailas-cloud/ingestcore/internal/repository/backupstore"
	"github.com/kailas-cloud/ingestcore/internal/usecase/ingest"
)

// Repository is the storage contract bulk needs: everything
// versioning.Deprecate needs, plus filter-scoped reads/mutations/deletes
// and point-addressed get/patch. Satisfied by internal/repository/record.Repo.
type Repository interface {
	versioning.PayloadMutator

	FindByFilter(ctx context.Context, collection string, filter *filterexpr.Node, offset, limit int) ([]record.Record, int, error)
	Get(ctx context.Context, collection string, point record.PointRef) (record.Record, bool, error)
	MutateByFilter(ctx context.Context, collection string, filter *filterexpr.Node, patch map[string]any) (int, error)
	DeleteByFilter(ctx context.Context, collection string, filter *filterexpr.Node) (int, error)
	PatchPoint(ctx context.Context, collection string, point record.PointRef, patch map[string]string) error
}

// BackupRepo is the filesystem backup/restore contract. Satisfied by
// internal/repository/backupstore.Store.
type BackupRepo interface {
	CreateBackup(collection string, docs []backupstore.DocumentDTO, includeEmbeddings bool) (backupstore.Manifest, error)
	RestoreBackup(backupID string) ([]backupstore.DocumentDTO, backupstore.Metadata, error)
	ListBackups() ([]backupstore.Metadata, error)
}

// Ingester re-runs the ingestion classifier for Import's update policy.
// Satisfied by internal/usecase/ingest.Service.
type Ingester interface {
	Ingest(ctx context.Context, req ingest.IngestRequest) (ingest.Report, error)
}
