package bulk

import (
	"context"
	"fmt"
	"time"

	"github.com/kailas-cloud/ingestcore/internal/domain/envelope"
	"github.com/kailas-cloud/ingestcore/internal/domain/fingerprint"
	"github.com/kailas-cloud/ingestcore/internal/domain/ingesterr"
	"github.com/kailas-cloud/ingestcore/internal/domain/record"
	"github.com/kailas-cloud/ingestcore/internal/domain/search/filterexpr"
	"github.com/kailas-cloud/ingestcore/internal/repository/backupstore"
	"github.com/kailas-cloud/ingestcore/internal/usecase/ingest"
)

// exportScanLimit bounds a single Export or BackfillMetadataHash read,
// which starts at offset 0; records beyond it are not read. ClearAll
// does not use it.
const exportScanLimit = 20000

// Service implements the bulk maintenance surface.
type Service struct {
	repo     Repository
	backups  BackupRepo
	ingester Ingester
}

// New creates a bulk service.
func New(repo Repository, backups BackupRepo, ingester Ingester) *Service {
	return &Service{repo: repo, backups: backups, ingester: ingester}
}

// protectedPatchFields can never be set through a metadata patch: they are
// either identity fields (doc_id, chunk identity) or derived exclusively by
// the ingestion controller from content (hash_content), never by a bulk
// caller.
var protectedPatchFields = map[string]bool{
	"hash_content":  true,
	"doc_id":        true,
	"is_chunk":      true,
	"chunk_id":      true,
	"parent_doc_id": true,
	"chunk_index":   true,
	"total_chunks":  true,
}

// BulkUpdateMetadata patches every record in collection matching filter,
// stamping updated_at unless the caller's patch already sets it.
func (s *Service) BulkUpdateMetadata(
	ctx context.Context, collection string, filter *filterexpr.Node, patch map[string]any,
) (int, error) {
	if len(patch) == 0 {
		return 0, ingesterr.InvalidInput("patch must not be empty")
	}
	for field := range patch {
		if protectedPatchFields[field] {
			return 0, ingesterr.InvalidInput("patch must not set protected field %q", field)
		}
	}
	if _, ok := patch["updated_at"]; !ok {
		patch = cloneWithUpdatedAt(patch)
	}
	matched, err := s.repo.MutateByFilter(ctx, collection, filter, patch)
	if err != nil {
		return 0, fmt.Errorf("bulk: update metadata: %w", err)
	}
	return matched, nil
}

// DeleteByFilter hard-deletes every record in collection matching filter.
// filter must be non-nil; use ClearAll for an unconditional wipe.
func (s *Service) DeleteByFilter(ctx context.Context, collection string, filter *filterexpr.Node) (int, error) {
	if filter == nil {
		return 0, ingesterr.InvalidInput("filter is required; use ClearAll to delete an entire collection")
	}
	deleted, err := s.repo.DeleteByFilter(ctx, collection, filter)
	if err != nil {
		return 0, fmt.Errorf("bulk: delete by filter: %w", err)
	}
	return deleted, nil
}

// ClearAll hard-deletes every record in collection. Requires confirm to
// be true; the MCP clear_all tool passes confirm through unchanged, so
// the check is made here.
func (s *Service) ClearAll(ctx context.Context, collection string, confirm bool) (int, error) {
	if !confirm {
		return 0, ingesterr.InvalidInput("confirm must be true to clear a collection")
	}
	deleted, err := s.repo.DeleteByFilter(ctx, collection, nil)
	if err != nil {
		return 0, fmt.Errorf("bulk: clear all: %w", err)
	}
	return deleted, nil
}

// Export reads every record in collection, optionally including
// embedding vectors, as portable DTOs ready for backupstore or a direct
// caller-side dump.
func (s *Service) Export(ctx context.Context, collection string, includeEmbeddings bool) ([]backupstore.DocumentDTO, error) {
	records, _, err := s.repo.FindByFilter(ctx, collection, nil, 0, exportScanLimit)
	if err != nil {
		return nil, fmt.Errorf("bulk: export: %w", err)
	}

	docs := make([]backupstore.DocumentDTO, 0, len(records))
	for _, rec := range records {
		docs = append(docs, toDTO(rec, includeEmbeddings))
	}
	return docs, nil
}

// ImportPolicy controls how Import handles a document whose point
// already exists in the target collection.
type ImportPolicy string

// Supported policies.
const (
	ImportSkip   ImportPolicy = "skip"
	ImportUpdate ImportPolicy = "update"
	ImportError  ImportPolicy = "error"
)

// ImportReport summarizes one Import call.
type ImportReport struct {
	Imported int
	Updated  int
	Skipped  int
	Failed   int
	Errors   []string
}

// Import writes docs into collection under policy. New points are always
// written via the ingestion controller (re-running the classifier, so
// duplicate detection and chunk diffing apply uniformly); existing points
// are skipped, re-classified, or rejected per policy.
func (s *Service) Import(ctx context.Context, collection string, docs []backupstore.DocumentDTO, policy ImportPolicy) (ImportReport, error) {
	var report ImportReport

	for _, doc := range docs {
		existing, found, err := s.repo.Get(ctx, collection, record.PointRef(doc.Point))
		if err != nil {
			report.Failed++
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", doc.Point, err))
			continue
		}

		if found {
			switch policy {
			case ImportSkip:
				report.Skipped++
				continue
			case ImportError:
				report.Failed++
				report.Errors = append(report.Errors, fmt.Sprintf("%s: already exists", doc.Point))
				continue
			case ImportUpdate:
				// falls through to re-ingest below
			default:
				report.Failed++
				report.Errors = append(report.Errors, fmt.Sprintf("%s: unknown import policy %q", doc.Point, policy))
				continue
			}
		}

		req, err := toIngestRequest(collection, doc, existing, found)
		if err != nil {
			report.Failed++
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", doc.Point, err))
			continue
		}

		if _, err := s.ingester.Ingest(ctx, req); err != nil {
			report.Failed++
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", doc.Point, err))
			continue
		}

		if found {
			report.Updated++
		} else {
			report.Imported++
		}
	}

	return report, nil
}

// CreateBackup snapshots every record in collection to the filesystem
// backup store.
func (s *Service) CreateBackup(ctx context.Context, collection string, includeEmbeddings bool) (backupstore.Manifest, error) {
	docs, err := s.Export(ctx, collection, includeEmbeddings)
	if err != nil {
		return backupstore.Manifest{}, err
	}
	manifest, err := s.backups.CreateBackup(collection, docs, includeEmbeddings)
	if err != nil {
		return backupstore.Manifest{}, fmt.Errorf("bulk: create backup: %w", err)
	}
	return manifest, nil
}

// RestoreBackup imports a previously-created backup into collection under
// policy, after backupstore's own checksum-based integrity check.
func (s *Service) RestoreBackup(ctx context.Context, collection, backupID string, policy ImportPolicy) (ImportReport, error) {
	docs, _, err := s.backups.RestoreBackup(backupID)
	if err != nil {
		return ImportReport{}, fmt.Errorf("bulk: restore backup: %w", err)
	}
	return s.Import(ctx, collection, docs, policy)
}

// ListBackups lists every backup on the filesystem, newest first.
func (s *Service) ListBackups(ctx context.Context) ([]backupstore.Metadata, error) {
	metas, err := s.backups.ListBackups()
	if err != nil {
		return nil, fmt.Errorf("bulk: list backups: %w", err)
	}
	return metas, nil
}

// BackfillReport summarizes one BackfillMetadataHash pass.
type BackfillReport struct {
	Scanned    int
	Backfilled int
	Categories map[string]int
}

// BackfillMetadataHash walks every record in collection and recomputes
// hash_content/metadata_hash for any record missing either, patching it
// in place by point — grounded on migrate_existing_documents.py's
// generate_migration_metadata, which does the same recompute-if-missing
// pass after a schema change rather than touching already-migrated
// records. dryRun counts without writing.
func (s *Service) BackfillMetadataHash(ctx context.Context, collection string, dryRun bool) (BackfillReport, error) {
	records, _, err := s.repo.FindByFilter(ctx, collection, nil, 0, exportScanLimit)
	if err != nil {
		return BackfillReport{}, fmt.Errorf("bulk: backfill: %w", err)
	}

	report := BackfillReport{Scanned: len(records), Categories: map[string]int{}}

	for _, rec := range records {
		env := rec.Envelope
		if env.HashContent() != "" && env.MetadataHash() != "" {
			continue
		}

		patch := map[string]string{}
		hashContent := env.HashContent()
		if hashContent == "" {
			hashContent = fingerprint.HashContent(rec.Content)
			patch["hash_content"] = hashContent
		}

		if env.MetadataHash() == "" {
			metaHash, err := fingerprint.HashMetadata(env.FingerprintFields())
			if err != nil {
				return report, fmt.Errorf("bulk: backfill %s: compute metadata hash: %w", rec.Point, err)
			}
			patch["metadata_hash"] = metaHash
		}

		report.Backfilled++
		report.Categories[string(env.Category())]++

		if dryRun {
			continue
		}
		patch["updated_at"] = time.Now().UTC().Format(time.RFC3339Nano)
		if err := s.repo.PatchPoint(ctx, collection, rec.Point, patch); err != nil {
			return report, fmt.Errorf("bulk: backfill %s: %w", rec.Point, err)
		}
	}

	return report, nil
}

func cloneWithUpdatedAt(patch map[string]any) map[string]any {
	out := make(map[string]any, len(patch)+1)
	for k, v := range patch {
		out[k] = v
	}
	out["updated_at"] = time.Now().UTC().Format(time.RFC3339Nano)
	return out
}

func toDTO(rec record.Record, includeEmbeddings bool) backupstore.DocumentDTO {
	strs, nums := rec.Envelope.ToPayload()
	for k, v := range nums {
		strs[k] = fmt.Sprintf("%v", v)
	}

	dto := backupstore.DocumentDTO{
		Point:   string(rec.Point),
		Content: rec.Content,
		Fields:  strs,
	}
	if includeEmbeddings {
		dto.Vector = rec.Vector
	}
	return dto
}

// toIngestRequest rebuilds an ingest.IngestRequest from a backed-up or
// imported DTO, preferring the re-ingested content's own fields and
// falling back to the already-stored record's fields when updating an
// existing point (so Import's update policy doesn't need the caller to
// resupply metadata it already has on file).
func toIngestRequest(collection string, doc backupstore.DocumentDTO, existing record.Record, found bool) (ingest.IngestRequest, error) {
	fields := doc.Fields
	get := func(key, fallback string) string {
		if v, ok := fields[key]; ok && v != "" {
			return v
		}
		return fallback
	}

	docID := get("doc_id", doc.Point)
	if docID == "" && found {
		docID = existing.Envelope.DocID()
	}
	if docID == "" {
		return ingest.IngestRequest{}, fmt.Errorf("missing doc_id")
	}

	category := envelope.Category(get("category", string(existing.Envelope.Category())))
	source := envelope.Source(get("source", string(existing.Envelope.Source())))

	var tags []string
	if v, ok := fields["tags"]; ok {
		tags = splitTags(v)
	} else if found {
		tags = existing.Envelope.Tags()
	}

	return ingest.IngestRequest{
		Collection: collection,
		DocID:      docID,
		Content:    doc.Content,
		FilePath:   get("file_path", existing.Envelope.FilePath()),
		FileHash:   get("file_hash", existing.Envelope.FileHash()),
		Category:   category,
		Source:     source,
		Repo:       get("repo", existing.Envelope.Repo()),
		Tags:       tags,
	}, nil
}

func splitTags(joined string) []string {
	if joined == "" {
		return nil
	}
	var tags []string
	start := 0
	for i := 0; i <= len(joined); i++ {
		if i == len(joined) || joined[i] == ',' {
			if i > start {
				tags = append(tags, joined[start:i])
			}
			start = i + 1
		}
	}
	return tags
}
