// Package query implements the read-side surface: semantic/keyword/hybrid
// search, path lookup, metadata statistics, and the integrity
// verification operations layered on top of the ingestion controller's
// storage.
package query

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/kailas-cloud/ingestcore/internal/domain"
	"github.com/kailas-cloud/ingestcore/internal/domain/fingerprint"
	"github.com/kailas-cloud/ingestcore/internal/domain/ingesterr"
	"github.com/kailas-cloud/ingestcore/internal/domain/quality"
	"github.com/kailas-cloud/ingestcore/internal/domain/record"
	"github.com/kailas-cloud/ingestcore/internal/domain/search/filterexpr"
	"github.com/kailas-cloud/ingestcore/internal/domain/search/mode"
	"github.com/kailas-cloud/ingestcore/internal/domain/search/request"
	"github.com/kailas-cloud/ingestcore/internal/domain/search/result"
)

// knownCollections lists the collections the ingestion pipeline writes
// to, mirroring internal/repository/record's own list.
var knownCollections = []string{"documents", "code"}

// statScanLimit bounds a single aggregate scan (Stats/MetadataStats/
// VerifyCategory/AuditStorageIntegrity). Each scan reads at most this
// many records, starting at offset 0; MetadataStats and VerifyCategory
// report Truncated when the collection holds more.
const statScanLimit = 5000

// Service handles document retrieval, search, and integrity verification.
type Service struct {
	repo             Repository
	embed            Embedder
	indexed          map[string]bool
	qualityThreshold float64
}

// New creates a query service. indexed is the collection schema's indexed
// field set (see internal/repository/record.SchemaFields); a filter
// referencing any field outside it is rejected with IndexRequired rather
// than reaching the backend.
func New(repo Repository, embed Embedder, indexed map[string]bool) *Service {
	return &Service{repo: repo, embed: embed, indexed: indexed, qualityThreshold: 1.0}
}

// WithQualityThreshold overrides the minimum quality score VerifyDocument
// and VerifyCategory require to report a record as passing.
func (s *Service) WithQualityThreshold(threshold float64) *Service {
	if threshold >= 0 && threshold <= 1 {
		s.qualityThreshold = threshold
	}
	return s
}

// Search executes a search across semantic, keyword, or hybrid modes.
// Unless req's filter already constrains status, Search adds status ==
// active — callers see only the current version of a document by
// default (spec's default predicate).
func (s *Service) Search(ctx context.Context, collection string, req request.Request) ([]result.Result, error) {
	filter, err := withDefaultActive(req.Filter())
	if err != nil {
		return nil, ingesterr.Wrap(ingesterr.KindInternal, "build default filter", err)
	}
	if err := filter.RequireIndexed(s.indexed); err != nil {
		var idxErr *filterexpr.IndexError
		if errors.As(err, &idxErr) {
			return nil, ingesterr.IndexRequired(idxErr.Field)
		}
		return nil, ingesterr.Wrap(ingesterr.KindIndexRequired, "filter validation", err)
	}

	var results []result.Result
	switch req.Mode() {
	case mode.Semantic:
		results, err = s.searchSemantic(ctx, collection, req, filter)
	case mode.Keyword:
		results, err = s.searchKeyword(ctx, collection, req, filter)
	case mode.Hybrid:
		results, err = s.searchHybrid(ctx, collection, req, filter)
	default:
		return nil, ingesterr.InvalidInput("unsupported search mode: %s", req.Mode())
	}
	if err != nil {
		return nil, err
	}

	if req.MinScore() > 0 {
		filtered := results[:0]
		for _, r := range results {
			if r.Score() >= req.MinScore() {
				filtered = append(filtered, r)
			}
		}
		results = filtered
	}
	if len(results) > req.Limit() {
		results = results[:req.Limit()]
	}
	return results, nil
}

func (s *Service) searchSemantic(
	ctx context.Context, collection string, req request.Request, filter *filterexpr.Node,
) ([]result.Result, error) {
	emb, err := s.embed.Embed(ctx, req.Query())
	if err != nil {
		return nil, ingesterr.EmbeddingFailure(err)
	}
	domain.UsageFromContext(ctx).AddTokens(emb.TotalTokens)

	results, err := s.repo.SearchKNN(ctx, collection, emb.Embedding, filter, req.TopK(), req.IncludeVectors())
	if err != nil {
		return nil, fmt.Errorf("search knn: %w", err)
	}
	return results, nil
}

func (s *Service) searchKeyword(
	ctx context.Context, collection string, req request.Request, filter *filterexpr.Node,
) ([]result.Result, error) {
	if !s.repo.SupportsTextSearch(ctx) {
		return nil, ingesterr.InvalidInput("keyword search is not supported by this backend")
	}
	results, err := s.repo.SearchBM25(ctx, collection, req.Query(), filter, req.TopK())
	if err != nil {
		return nil, fmt.Errorf("search bm25: %w", err)
	}
	return results, nil
}

func (s *Service) searchHybrid(
	ctx context.Context, collection string, req request.Request, filter *filterexpr.Node,
) ([]result.Result, error) {
	if !s.repo.SupportsTextSearch(ctx) {
		return nil, ingesterr.InvalidInput("keyword search is not supported by this backend")
	}

	emb, err := s.embed.Embed(ctx, req.Query())
	if err != nil {
		return nil, ingesterr.EmbeddingFailure(err)
	}
	domain.UsageFromContext(ctx).AddTokens(emb.TotalTokens)

	knn, err := s.repo.SearchKNN(ctx, collection, emb.Embedding, filter, req.TopK(), req.IncludeVectors())
	if err != nil {
		return nil, fmt.Errorf("search knn: %w", err)
	}
	bm25, err := s.repo.SearchBM25(ctx, collection, req.Query(), filter, req.TopK())
	if err != nil {
		return nil, fmt.Errorf("search bm25: %w", err)
	}
	return fuseRRF(knn, bm25, req.TopK()), nil
}

// withDefaultActive ANDs status == active onto filter unless the caller
// already referenced status somewhere in the tree.
func withDefaultActive(filter *filterexpr.Node) (*filterexpr.Node, error) {
	active, err := filterexpr.Eq("status", "active")
	if err != nil {
		return nil, err
	}
	if filter == nil {
		return &active, nil
	}
	for _, f := range filter.Fields() {
		if f == "status" {
			return filter, nil
		}
	}
	combined, err := filterexpr.And(*filter, active)
	if err != nil {
		return nil, err
	}
	return &combined, nil
}

// GetByPath returns the active record stored under filePath in collection.
func (s *Service) GetByPath(ctx context.Context, collection, filePath string) (record.Record, bool, error) {
	rec, found, err := s.repo.GetByPath(ctx, collection, filePath)
	if err != nil {
		return record.Record{}, false, fmt.Errorf("get by path: %w", err)
	}
	return rec, found, nil
}

// MetadataStats summarizes category, status, and source distributions
// for collection, over up to statScanLimit records.
type MetadataStats struct {
	Total      int
	Truncated  bool
	ByCategory map[string]int
	ByStatus   map[string]int
	BySource   map[string]int
}

// MetadataStats aggregates the metadata facets of collection's records.
func (s *Service) MetadataStats(ctx context.Context, collection string) (MetadataStats, error) {
	recs, total, err := s.repo.FindByFilter(ctx, collection, nil, 0, statScanLimit)
	if err != nil {
		return MetadataStats{}, fmt.Errorf("find by filter: %w", err)
	}

	stats := MetadataStats{
		Total:      total,
		Truncated:  total > len(recs),
		ByCategory: map[string]int{},
		ByStatus:   map[string]int{},
		BySource:   map[string]int{},
	}
	for _, rec := range recs {
		stats.ByCategory[string(rec.Envelope.Category())]++
		stats.ByStatus[string(rec.Envelope.Status())]++
		stats.BySource[string(rec.Envelope.Source())]++
	}
	return stats, nil
}

// FilePathIndex returns the active, non-chunk records of collection that
// carry a file_path, keyed by that path, for audit_storage_integrity's
// on-disk-vs-stored comparison.
func (s *Service) FilePathIndex(ctx context.Context, collection string) (map[string]record.Record, error) {
	active, err := filterexpr.Eq("status", "active")
	if err != nil {
		return nil, err
	}
	recs, _, err := s.repo.FindByFilter(ctx, collection, &active, 0, statScanLimit)
	if err != nil {
		return nil, fmt.Errorf("find by filter: %w", err)
	}

	index := make(map[string]record.Record, len(recs))
	for _, rec := range recs {
		if path := rec.Envelope.FilePath(); path != "" {
			index[path] = rec
		}
	}
	return index, nil
}

// Stats reports the record count per known collection.
func (s *Service) Stats(ctx context.Context) (map[string]int, error) {
	counts := make(map[string]int, len(knownCollections))
	for _, collection := range knownCollections {
		_, total, err := s.repo.FindByFilter(ctx, collection, nil, 0, 0)
		if err != nil {
			return nil, fmt.Errorf("count %s: %w", collection, err)
		}
		counts[collection] = total
	}
	return counts, nil
}

// Verification reports whether a single record's stored hashes still
// match its content and metadata — a forged or hand-edited hash field is
// the only way these can disagree, since the ingestion controller always
// computes them together — plus the record's quality vector and score.
type Verification struct {
	DocID              string
	Found              bool
	ContentHashMatch   bool
	MetadataHashMatch  bool
	StoredHashContent  string
	ActualHashContent  string
	StoredHashMetadata string
	ActualHashMetadata string
	Quality            quality.Vector
	QualityScore       float64
	QualityThreshold   float64
	Passed             bool
}

// VerifyDocument recomputes and compares the content and metadata hashes
// of the active record for (collection, docID), and runs its quality
// vector against the service's configured pass threshold.
func (s *Service) VerifyDocument(ctx context.Context, collection, docID string) (Verification, error) {
	docEq, err := filterexpr.Eq("doc_id", docID)
	if err != nil {
		return Verification{}, err
	}
	activeEq, err := filterexpr.Eq("status", "active")
	if err != nil {
		return Verification{}, err
	}
	filter, err := filterexpr.And(docEq, activeEq)
	if err != nil {
		return Verification{}, err
	}
	recs, _, err := s.repo.FindByFilter(ctx, collection, &filter, 0, 1)
	if err != nil {
		return Verification{}, fmt.Errorf("find document: %w", err)
	}
	if len(recs) == 0 {
		return Verification{DocID: docID, Found: false}, nil
	}
	return verifyRecord(recs[0], s.qualityThreshold)
}

func verifyRecord(rec record.Record, threshold float64) (Verification, error) {
	env := rec.Envelope
	actualContent := fingerprint.HashContent(rec.Content)
	actualMetadata, err := fingerprint.HashMetadata(env.FingerprintFields())
	if err != nil {
		return Verification{}, fmt.Errorf("compute metadata hash: %w", err)
	}
	contentMatch := actualContent == env.HashContent()

	vec := quality.Check(
		rec.Content, env.DocID(), env.Version(), string(env.Category()), env.HashContent(),
		string(env.Status()), contentMatch,
	)

	return Verification{
		DocID:              env.DocID(),
		Found:              true,
		ContentHashMatch:   contentMatch,
		MetadataHashMatch:  actualMetadata == env.MetadataHash(),
		StoredHashContent:  env.HashContent(),
		ActualHashContent:  actualContent,
		StoredHashMetadata: env.MetadataHash(),
		ActualHashMetadata: actualMetadata,
		Quality:            vec,
		QualityScore:       vec.Score(),
		QualityThreshold:   threshold,
		Passed:             vec.Passes(threshold),
	}, nil
}

// CategoryReport aggregates VerifyDocument outcomes across every record
// in a collection.
type CategoryReport struct {
	Checked    int
	Truncated  bool
	Mismatched []Verification
}

// VerifyCategory runs the same hash-consistency and quality checks
// VerifyDocument does across every record in collection, up to
// statScanLimit.
func (s *Service) VerifyCategory(ctx context.Context, collection string) (CategoryReport, error) {
	recs, total, err := s.repo.FindByFilter(ctx, collection, nil, 0, statScanLimit)
	if err != nil {
		return CategoryReport{}, fmt.Errorf("find by filter: %w", err)
	}

	report := CategoryReport{Checked: len(recs), Truncated: total > len(recs)}
	for _, rec := range recs {
		v, err := verifyRecord(rec, s.qualityThreshold)
		if err != nil {
			return CategoryReport{}, fmt.Errorf("verify %s: %w", rec.Point, err)
		}
		if !v.Passed {
			report.Mismatched = append(report.Mismatched, v)
		}
	}
	return report, nil
}

// IntegrityReport is AuditStorageIntegrity's combined result across every
// known collection: hash mismatches plus chunk-set inconsistencies
// (a chunk whose parent's total_chunks disagrees with the number of
// sibling chunks actually stored).
type IntegrityReport struct {
	ByCollection      map[string]CategoryReport
	ChunkInconsistent []string // "collection/parent_doc_id"
}

// AuditStorageIntegrity runs VerifyCategory over every known collection
// and cross-checks each chunked document's declared total_chunks against
// its actually-stored sibling count.
func (s *Service) AuditStorageIntegrity(ctx context.Context) (IntegrityReport, error) {
	report := IntegrityReport{ByCollection: map[string]CategoryReport{}}

	for _, collection := range knownCollections {
		catReport, err := s.VerifyCategory(ctx, collection)
		if err != nil {
			return IntegrityReport{}, fmt.Errorf("verify category %s: %w", collection, err)
		}
		report.ByCollection[collection] = catReport

		chunkEq, err := filterexpr.Eq("is_chunk", "true")
		if err != nil {
			return IntegrityReport{}, err
		}
		chunks, _, err := s.repo.FindByFilter(ctx, collection, &chunkEq, 0, statScanLimit)
		if err != nil {
			return IntegrityReport{}, fmt.Errorf("find chunks %s: %w", collection, err)
		}

		siblingCount := map[string]int{}
		declaredTotal := map[string]int{}
		for _, c := range chunks {
			if c.Chunk == nil {
				continue
			}
			siblingCount[c.Chunk.ParentDocID]++
			declaredTotal[c.Chunk.ParentDocID] = c.Chunk.TotalChunks
		}
		for parent, declared := range declaredTotal {
			if siblingCount[parent] != declared {
				report.ChunkInconsistent = append(report.ChunkInconsistent, collection+"/"+parent)
			}
		}
	}

	sort.Strings(report.ChunkInconsistent)
	return report, nil
}

// VersionHistory returns every record (active and deprecated) stored for
// (collection, docID), newest first by updated_at.
func (s *Service) VersionHistory(ctx context.Context, collection, docID string) ([]record.Record, error) {
	docEq, err := filterexpr.Eq("doc_id", docID)
	if err != nil {
		return nil, err
	}
	chunkEq, err := filterexpr.Eq("is_chunk", "false")
	if err != nil {
		return nil, err
	}
	filter, err := filterexpr.And(docEq, chunkEq)
	if err != nil {
		return nil, err
	}

	recs, _, err := s.repo.FindByFilter(ctx, collection, &filter, 0, statScanLimit)
	if err != nil {
		return nil, fmt.Errorf("find history: %w", err)
	}

	sort.Slice(recs, func(i, j int) bool {
		return recs[i].Envelope.UpdatedAt().After(recs[j].Envelope.UpdatedAt())
	})
	return recs, nil
}
