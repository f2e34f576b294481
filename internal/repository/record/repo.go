package record

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kailas-cloud/ingestcore/internal/db"
	"github.com/kailas-cloud/ingestcore/internal/domain"
	"github.com/kailas-cloud/ingestcore/internal/domain/chunkdiff"
	"github.com/kailas-cloud/ingestcore/internal/domain/dedup"
	domrecord "github.com/kailas-cloud/ingestcore/internal/domain/record"
	"github.com/kailas-cloud/ingestcore/internal/domain/search/filterexpr"
	"github.com/kailas-cloud/ingestcore/internal/usecase/ingest"
)

// scanLimit bounds a single FindCandidates/ChunksByParent/ActiveByDocCategory
// page. Candidate sets are scoped to one doc_id, so this comfortably covers
// any realistic chunk count.
const scanLimit = 1000

// store is the consumer interface for records (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	SearchFilter(ctx context.Context, index string, filter *filterexpr.Node, offset, limit int, fields []string) (*db.SearchResult, error)
}

// Repo implements usecase/ingest.Repository (and the narrower read-side
// ports query and bulk consume) against a single flat HASH per point.
type Repo struct {
	store store
}

// New creates a record repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// Store upserts rec under a point key unique to this version: doc_id (or
// chunk_id for chunks) plus hash_content. doc_id/chunk_id alone identify
// the document across its whole history, not one version of it, so keying
// on them bare would let a Level-2 update's Store silently overwrite the
// very record Deprecate just wrote (invariant 5, §3 Lifecycle) — doc_id
// stays a queryable payload field via envelope.ToPayload, it just stops
// being the point identity.
func (r *Repo) Store(ctx context.Context, collection string, rec domrecord.Record) (domrecord.PointRef, error) {
	identity := rec.Envelope.DocID()
	if rec.IsChunk() {
		identity = rec.Envelope.ChunkID()
	}
	hashContent := rec.Envelope.HashContent()
	if identity == "" || hashContent == "" {
		return "", fmt.Errorf("record: point identifier is empty")
	}
	point := identity + ":" + hashContent

	key := pointKey(collection, point)
	if err := r.store.HSet(ctx, key, buildHashFields(rec)); err != nil {
		return "", fmt.Errorf("hset %s: %w", key, err)
	}
	return domrecord.PointRef(point), nil
}

// FindCandidates returns every record in collection whose doc_id matches
// docID or whose metadata_hash matches metadataHash.
func (r *Repo) FindCandidates(ctx context.Context, collection, docID, metadataHash string) ([]dedup.ExistingRecord, error) {
	filter, err := filterexpr.Or(mustEq("doc_id", docID), mustEq("metadata_hash", metadataHash))
	if err != nil {
		return nil, fmt.Errorf("build candidate filter: %w", err)
	}

	result, err := r.store.SearchFilter(ctx, indexName(collection), &filter, 0, scanLimit, nil)
	if err != nil {
		return nil, fmt.Errorf("search filter candidates: %w", err)
	}

	existing := make([]dedup.ExistingRecord, 0, len(result.Entries))
	for _, entry := range result.Entries {
		existing = append(existing, toExistingRecord(collection, entry))
	}
	return existing, nil
}

// ChunksByParent returns the stored chunk set for parentDocID.
func (r *Repo) ChunksByParent(ctx context.Context, collection, parentDocID string) ([]chunkdiff.ChunkRecord, error) {
	filter, err := filterexpr.And(mustEq("parent_doc_id", parentDocID), mustEq("is_chunk", "true"))
	if err != nil {
		return nil, fmt.Errorf("build chunk filter: %w", err)
	}

	result, err := r.store.SearchFilter(ctx, indexName(collection), &filter, 0, scanLimit, nil)
	if err != nil {
		return nil, fmt.Errorf("search filter chunks: %w", err)
	}

	chunks := make([]chunkdiff.ChunkRecord, 0, len(result.Entries))
	for _, entry := range result.Entries {
		chunks = append(chunks, chunkdiff.ChunkRecord{
			Index:       int(parseFloat(entry.Fields["chunk_index"])),
			HashContent: entry.Fields["hash_content"],
			Content:     entry.Fields[fieldContent],
			PointRef:    pointFromKey(collection, entry.Key),
		})
	}
	return chunks, nil
}

// ActiveByDocCategory returns every active non-chunk record for (docID,
// category), for ingest.Service.ReconcileActive.
func (r *Repo) ActiveByDocCategory(ctx context.Context, collection, docID, category string) ([]ingest.ActiveRef, error) {
	filter, err := filterexpr.And(mustEq("doc_id", docID), mustEq("category", category), mustEq("status", "active"))
	if err != nil {
		return nil, fmt.Errorf("build active filter: %w", err)
	}

	result, err := r.store.SearchFilter(ctx, indexName(collection), &filter, 0, scanLimit, nil)
	if err != nil {
		return nil, fmt.Errorf("search filter active: %w", err)
	}

	actives := make([]ingest.ActiveRef, 0, len(result.Entries))
	for _, entry := range result.Entries {
		updatedAt, _ := time.Parse(time.RFC3339Nano, entry.Fields["updated_at"])
		actives = append(actives, ingest.ActiveRef{
			Point:       domrecord.PointRef(pointFromKey(collection, entry.Key)),
			HashContent: entry.Fields["hash_content"],
			UpdatedAt:   updatedAt.UnixMilli(),
		})
	}
	return actives, nil
}

// MutateByHashContent applies patch to every record across every
// collection matching hashContent. hash_content is unique, so this
// normally matches exactly one record; the loop is defensive.
func (r *Repo) MutateByHashContent(ctx context.Context, hashContent string, patch map[string]any) (int, error) {
	matched := 0
	for _, collection := range knownCollections {
		filter, err := filterexpr.NewLeaf(filterexpr.Leaf{Field: "hash_content", Op: filterexpr.OpEq, Value: hashContent})
		if err != nil {
			return matched, fmt.Errorf("build mutate filter: %w", err)
		}

		result, err := r.store.SearchFilter(ctx, indexName(collection), &filter, 0, scanLimit, []string{"hash_content"})
		if err != nil {
			return matched, fmt.Errorf("search filter mutate: %w", err)
		}

		fields := patchToHashFields(patch)
		for _, entry := range result.Entries {
			if err := r.store.HSet(ctx, entry.Key, fields); err != nil {
				return matched, fmt.Errorf("hset %s: %w", entry.Key, err)
			}
			matched++
		}
	}
	return matched, nil
}

// GetByPath returns the record stored under the given file_path, if any.
func (r *Repo) GetByPath(ctx context.Context, collection, filePath string) (domrecord.Record, bool, error) {
	filter, err := filterexpr.NewLeaf(filterexpr.Leaf{Field: "file_path", Op: filterexpr.OpEq, Value: filePath})
	if err != nil {
		return domrecord.Record{}, false, fmt.Errorf("build path filter: %w", err)
	}

	result, err := r.store.SearchFilter(ctx, indexName(collection), &filter, 0, 1, nil)
	if err != nil {
		return domrecord.Record{}, false, fmt.Errorf("search filter path: %w", err)
	}
	if len(result.Entries) == 0 {
		return domrecord.Record{}, false, nil
	}

	entry := result.Entries[0]
	rec, err := parseHashFields(pointFromKey(collection, entry.Key), entry.Fields)
	if err != nil {
		return domrecord.Record{}, false, fmt.Errorf("parse record %s: %w", entry.Key, err)
	}
	return rec, true, nil
}

// FindByFilter returns a page of records in collection matching filter
// (nil matches everything), plus the total match count, for the query
// and bulk surfaces' filtered listing operations.
func (r *Repo) FindByFilter(
	ctx context.Context, collection string, filter *filterexpr.Node, offset, limit int,
) ([]domrecord.Record, int, error) {
	result, err := r.store.SearchFilter(ctx, indexName(collection), filter, offset, limit, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("search filter: %w", err)
	}

	records := make([]domrecord.Record, 0, len(result.Entries))
	for _, entry := range result.Entries {
		rec, err := parseHashFields(pointFromKey(collection, entry.Key), entry.Fields)
		if err != nil {
			return nil, 0, fmt.Errorf("parse record %s: %w", entry.Key, err)
		}
		records = append(records, rec)
	}
	return records, result.Total, nil
}

// Get returns the single record stored at point within collection.
func (r *Repo) Get(ctx context.Context, collection string, point domrecord.PointRef) (domrecord.Record, bool, error) {
	key := pointKey(collection, string(point))
	exists, err := r.store.Exists(ctx, key)
	if err != nil {
		return domrecord.Record{}, false, fmt.Errorf("exists %s: %w", key, err)
	}
	if !exists {
		return domrecord.Record{}, false, nil
	}

	fields, err := r.store.HGetAll(ctx, key)
	if err != nil {
		return domrecord.Record{}, false, fmt.Errorf("hgetall %s: %w", key, err)
	}
	rec, err := parseHashFields(string(point), fields)
	if err != nil {
		return domrecord.Record{}, false, fmt.Errorf("parse record %s: %w", key, err)
	}
	return rec, true, nil
}

// Delete hard-deletes the record stored at point within collection.
func (r *Repo) Delete(ctx context.Context, collection string, point domrecord.PointRef) error {
	return r.store.Del(ctx, pointKey(collection, string(point)))
}

// MutateByFilter applies patch to every record in collection matching
// filter, for the bulk metadata-update surface (not hash_content-scoped,
// unlike MutateByHashContent).
func (r *Repo) MutateByFilter(
	ctx context.Context, collection string, filter *filterexpr.Node, patch map[string]any,
) (int, error) {
	result, err := r.store.SearchFilter(ctx, indexName(collection), filter, 0, scanLimit, nil)
	if err != nil {
		return 0, fmt.Errorf("search filter mutate: %w", err)
	}

	fields := patchToHashFields(patch)
	for _, entry := range result.Entries {
		if err := r.store.HSet(ctx, entry.Key, fields); err != nil {
			return 0, fmt.Errorf("hset %s: %w", entry.Key, err)
		}
	}
	return len(result.Entries), nil
}

// DeleteByFilter hard-deletes every record in collection matching filter.
func (r *Repo) DeleteByFilter(ctx context.Context, collection string, filter *filterexpr.Node) (int, error) {
	result, err := r.store.SearchFilter(ctx, indexName(collection), filter, 0, scanLimit, nil)
	if err != nil {
		return 0, fmt.Errorf("search filter delete: %w", err)
	}

	for _, entry := range result.Entries {
		if err := r.store.Del(ctx, entry.Key); err != nil {
			return 0, fmt.Errorf("del %s: %w", entry.Key, err)
		}
	}
	return len(result.Entries), nil
}

// PatchPoint applies raw field values directly to the record stored at
// point, bypassing any filter lookup — used by migrations (e.g.
// backfilling a missing hash) where the patch target is identified by
// point reference rather than a predicate.
func (r *Repo) PatchPoint(ctx context.Context, collection string, point domrecord.PointRef, patch map[string]string) error {
	key := pointKey(collection, string(point))
	if err := r.store.HSet(ctx, key, patch); err != nil {
		return fmt.Errorf("hset %s: %w", key, err)
	}
	return nil
}

// StatusByHashContent reports the status of the record matching
// hashContent, searching across every known collection.
func (r *Repo) StatusByHashContent(ctx context.Context, hashContent string) (string, bool, error) {
	for _, collection := range knownCollections {
		filter, err := filterexpr.NewLeaf(filterexpr.Leaf{Field: "hash_content", Op: filterexpr.OpEq, Value: hashContent})
		if err != nil {
			return "", false, fmt.Errorf("build status filter: %w", err)
		}

		result, err := r.store.SearchFilter(ctx, indexName(collection), &filter, 0, 1, []string{"status"})
		if err != nil {
			return "", false, fmt.Errorf("search filter status: %w", err)
		}
		if len(result.Entries) > 0 {
			return result.Entries[0].Fields["status"], true, nil
		}
	}
	return "", false, nil
}

// knownCollections lists the collections the ingestion pipeline writes to.
// hash_content lookups must span all of them since a patch target's
// collection isn't known from the hash alone.
var knownCollections = []string{"documents", "code"}

func toExistingRecord(collection string, entry db.SearchEntry) dedup.ExistingRecord {
	updatedAt, _ := time.Parse(time.RFC3339Nano, entry.Fields["updated_at"])
	return dedup.ExistingRecord{
		Fingerprint: dedup.Fingerprint{
			HashContent:  entry.Fields["hash_content"],
			MetadataHash: entry.Fields["metadata_hash"],
			DocID:        entry.Fields["doc_id"],
			Vector:       bytesToVector(entry.Fields[fieldVector]),
		},
		PointRef:  pointFromKey(collection, entry.Key),
		Active:    entry.Fields["status"] == "active",
		UpdatedAt: updatedAt,
	}
}

func patchToHashFields(patch map[string]any) map[string]string {
	fields := make(map[string]string, len(patch))
	for k, v := range patch {
		switch val := v.(type) {
		case string:
			fields[k] = val
		case float64:
			fields[k] = strconv.FormatFloat(val, 'f', -1, 64)
		case int:
			fields[k] = strconv.Itoa(val)
		case bool:
			fields[k] = strconv.FormatBool(val)
		default:
			fields[k] = fmt.Sprintf("%v", val)
		}
	}
	return fields
}

func mustEq(field string, value string) filterexpr.Node {
	n, _ := filterexpr.Eq(field, value)
	return n
}

func pointKey(collection, point string) string {
	return fmt.Sprintf("%s%s:%s", domain.KeyPrefix, collection, point)
}

func indexName(collection string) string {
	return fmt.Sprintf("%s%s:idx", domain.KeyPrefix, collection)
}

func pointFromKey(collection, key string) string {
	return strings.TrimPrefix(key, fmt.Sprintf("%s%s:", domain.KeyPrefix, collection))
}
