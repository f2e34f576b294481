// Package ingest implements the ingestion controller: the component that
// ties the hasher, metadata builder, chunker, duplicate classifier,
// versioning engine, and chunk diff engine together around a single
// write:
//
//	input -> metadata builder -> hasher -> (chunked? -> chunker) ->
//	classifier decides (skip|store|update|warn) -> (if update) deprecate ->
//	embedder -> store -> response
package ingest

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"
	"strconv"
	"sync"

	"github.com/kailas-cloud/ingestcore/internal/domain"
	"github.com/kailas-cloud/ingestcore/internal/domain/chunkdiff"
	"github.com/kailas-cloud/ingestcore/internal/domain/chunking"
	"github.com/kailas-cloud/ingestcore/internal/domain/dedup"
	"github.com/kailas-cloud/ingestcore/internal/domain/envelope"
	"github.com/kailas-cloud/ingestcore/internal/domain/fingerprint"
	"github.com/kailas-cloud/ingestcore/internal/domain/ingesterr"
	"github.com/kailas-cloud/ingestcore/internal/domain/record"
	"github.com/kailas-cloud/ingestcore/internal/domain/versioning"
	"github.com/kailas-cloud/ingestcore/internal/metrics"
)

const lockStripeSize = 64

// IngestRequest carries the caller-supplied fragments for a single write,
// covering both the whole-document and chunked paths.
type IngestRequest struct {
	Collection string // "documents" or "code"
	DocID      string
	Content    string
	FilePath   string
	FileHash   string
	Category   envelope.Category
	Source     envelope.Source
	Repo       string
	Tags       []string

	EnableChunking bool
	ChunkSize      int
	ChunkOverlap   int
}

// Report is the per-write result the controller returns: the action the
// classifier took, the record it produced, and (on the chunked path) the
// chunk-level diff counts.
type Report struct {
	Action         dedup.Action
	DuplicateLevel dedup.Level
	Deprecated     bool
	RecordRef      record.PointRef
	ChunkCounts    *chunkdiff.Counts
}

// Service orchestrates a single ingestion write.
type Service struct {
	repo     Repository
	embedder Embedder
	sim      SimilarityChecker

	similarityThreshold float64
	defaultChunkSize    int
	defaultChunkOverlap int

	locks [lockStripeSize]sync.Mutex
}

// New creates an ingestion controller. sim may be nil to disable Level 3
// semantic-similarity duplicate detection.
func New(repo Repository, embedder Embedder, sim SimilarityChecker) *Service {
	return &Service{
		repo:                repo,
		embedder:            embedder,
		sim:                 sim,
		similarityThreshold: dedup.SimilarityThreshold,
		defaultChunkSize:    512,
		defaultChunkOverlap: 64,
	}
}

// WithChunkDefaults overrides the default chunk size/overlap. The size
// default applies when a request's ChunkSize is <= 0; the overlap default
// applies only when a request's ChunkOverlap is negative, so a zero
// overlap is used as given.
func (s *Service) WithChunkDefaults(size, overlap int) *Service {
	if size > 0 {
		s.defaultChunkSize = size
	}
	if overlap >= 0 {
		s.defaultChunkOverlap = overlap
	}
	return s
}

// WithSimilarityThreshold overrides the Level 3 trigger threshold.
func (s *Service) WithSimilarityThreshold(threshold float64) *Service {
	if threshold > 0 {
		s.similarityThreshold = threshold
	}
	return s
}

// Ingest runs the full pipeline for one document, serialized per doc_id
// via a lock stripe so a racing duplicate classification can't observe a
// stale candidate set (spec section 5).
func (s *Service) Ingest(ctx context.Context, req IngestRequest) (Report, error) {
	if req.DocID == "" {
		return Report{}, ingesterr.InvalidInput("doc_id is required")
	}
	if req.Collection == "" {
		return Report{}, ingesterr.InvalidInput("collection is required")
	}

	mu := &s.locks[fnv32(req.DocID)%lockStripeSize]
	mu.Lock()
	defer mu.Unlock()

	var report Report
	var err error
	if req.EnableChunking {
		report, err = s.ingestChunked(ctx, req)
	} else {
		report, err = s.ingestWhole(ctx, req)
	}
	if err != nil {
		return Report{}, err
	}

	metrics.IngestActionsTotal.WithLabelValues(
		req.Collection, string(report.Action), strconv.Itoa(int(report.DuplicateLevel)),
	).Inc()
	if report.ChunkCounts != nil {
		metrics.ChunkDiffTotal.WithLabelValues(req.Collection, "unchanged").Add(float64(report.ChunkCounts.Unchanged))
		metrics.ChunkDiffTotal.WithLabelValues(req.Collection, "changed").Add(float64(report.ChunkCounts.Changed))
		metrics.ChunkDiffTotal.WithLabelValues(req.Collection, "added").Add(float64(report.ChunkCounts.Added))
		metrics.ChunkDiffTotal.WithLabelValues(req.Collection, "removed").Add(float64(report.ChunkCounts.Removed))
	}

	return report, nil
}

// ingestWhole handles the non-chunked path: one envelope, one embedding,
// one stored record.
func (s *Service) ingestWhole(ctx context.Context, req IngestRequest) (Report, error) {
	hashContent := fingerprint.HashContent(req.Content)

	env, err := envelope.New(envelope.BuildParams{
		DocID: req.DocID, Category: req.Category, HashContent: hashContent,
		FilePath: req.FilePath, FileHash: req.FileHash, Source: req.Source,
		Repo: req.Repo, Tags: req.Tags,
	})
	if err != nil {
		return Report{}, ingesterr.InvalidMetadata("%v", err)
	}

	candidate := dedup.Fingerprint{HashContent: hashContent, MetadataHash: env.MetadataHash(), DocID: req.DocID}
	existing, err := s.repo.FindCandidates(ctx, req.Collection, req.DocID, env.MetadataHash())
	if err != nil {
		return Report{}, ingesterr.BackendUnavailable(err)
	}

	// Level 1/2 are hash-based and must not cost an embedding call (spec
	// 4.D: skip means "no write, no embedding"); Level 3 needs the
	// candidate's vector, which only exists after embedding, so it is
	// evaluated lazily in a second pass once storage is already decided.
	level, action, match := dedup.Classify(candidate, existing, dedup.DefaultSimilarityFunc, s.similarityThreshold)

	if action == dedup.ActionSkip {
		ref := record.PointRef("")
		if match != nil {
			ref = record.PointRef(match.PointRef)
		}
		return Report{Action: action, DuplicateLevel: level, RecordRef: ref}, nil
	}

	deprecated := false
	if action == dedup.ActionUpdate && match != nil {
		if err := versioning.Deprecate(ctx, s.repo, match.Fingerprint.HashContent); err != nil {
			return Report{}, ingesterr.Internal(fmt.Errorf("deprecate prior version: %w", err))
		}
		deprecated = true
	}

	result, err := s.embedder.Embed(ctx, req.Content)
	if err != nil {
		return Report{}, ingesterr.EmbeddingFailure(err)
	}
	domain.UsageFromContext(ctx).AddTokens(result.TotalTokens)

	if level == dedup.LevelNew {
		level, action = s.refineWithSimilarity(result.Embedding, existing, level, action)
	}

	point, err := s.repo.Store(ctx, req.Collection, record.NewDocument("", env, req.Content, result.Embedding))
	if err != nil {
		return Report{}, ingesterr.BackendUnavailable(err)
	}

	return Report{Action: action, DuplicateLevel: level, Deprecated: deprecated, RecordRef: point}, nil
}

// refineWithSimilarity re-evaluates a provisional Level 4/Store decision
// against existing candidates' vectors now that the new content has been
// embedded, promoting it to Level 3/Warn when a similarity hook is wired
// and a match exceeds threshold. Never downgrades Level 1/2 decisions —
// callers only invoke this once those have already been ruled out.
func (s *Service) refineWithSimilarity(
	vector []float32, existing []dedup.ExistingRecord, level dedup.Level, action dedup.Action,
) (dedup.Level, dedup.Action) {
	if s.sim == nil || len(vector) == 0 {
		return level, action
	}
	if match := dedup.BestSimilarity(vector, existing, s.similarityFunc, s.similarityThreshold); match != nil {
		return dedup.LevelSemanticSimilar, dedup.ActionWarn
	}
	return level, action
}

// ingestChunked handles the chunked path: splits content, diffs the new
// chunk set against the stored chunks for doc_id, deprecates removed and
// changed chunks, and embeds added and changed chunks. Chunk records carry
// doc_id = parent docID but no whole document is ever stored for a
// chunked doc_id (invariant 4), so there is nothing for the whole-document
// duplicate classifier to run against — classification here is derived
// directly from the diff, scoped by is_chunk through ChunksByParent.
func (s *Service) ingestChunked(ctx context.Context, req IngestRequest) (Report, error) {
	size := req.ChunkSize
	if size <= 0 {
		size = s.defaultChunkSize
	}
	overlap := req.ChunkOverlap
	if overlap < 0 {
		overlap = s.defaultChunkOverlap
	}

	pieces, err := chunking.Split(req.Content, size, overlap)
	if err != nil {
		return Report{}, ingesterr.InvalidInput("%v", err)
	}

	docHashContent := fingerprint.HashContent(req.Content)
	parentEnv, err := envelope.New(envelope.BuildParams{
		DocID: req.DocID, Category: req.Category, HashContent: docHashContent,
		FilePath: req.FilePath, FileHash: req.FileHash, Source: req.Source,
		Repo: req.Repo, Tags: req.Tags,
	})
	if err != nil {
		return Report{}, ingesterr.InvalidMetadata("%v", err)
	}

	oldChunks, err := s.repo.ChunksByParent(ctx, req.Collection, req.DocID)
	if err != nil {
		return Report{}, ingesterr.BackendUnavailable(err)
	}

	newChunks := make([]chunkdiff.ChunkRecord, len(pieces))
	for i, p := range pieces {
		newChunks[i] = chunkdiff.ChunkRecord{Index: p.Index, HashContent: p.HashContent, Content: p.Content}
	}

	diff := chunkdiff.Diff(oldChunks, newChunks)

	level, action := classifyChunkDiff(oldChunks, diff)
	if action == dedup.ActionSkip {
		ref := record.PointRef("")
		if len(oldChunks) > 0 {
			ref = record.PointRef(oldChunks[0].PointRef)
		}
		return Report{Action: action, DuplicateLevel: level, RecordRef: ref, ChunkCounts: &diff.Counts}, nil
	}

	for _, old := range diff.Removed {
		if old.HashContent != "" {
			if err := versioning.Deprecate(ctx, s.repo, old.HashContent); err != nil {
				return Report{}, ingesterr.Internal(fmt.Errorf("deprecate removed chunk: %w", err))
			}
		}
	}
	for _, pair := range diff.Changed {
		if err := versioning.Deprecate(ctx, s.repo, pair.Old.HashContent); err != nil {
			return Report{}, ingesterr.Internal(fmt.Errorf("deprecate changed chunk: %w", err))
		}
	}

	toEmbed := make([]chunkdiff.ChunkRecord, 0, len(diff.Added)+len(diff.Changed))
	toEmbed = append(toEmbed, diff.Added...)
	for _, pair := range diff.Changed {
		toEmbed = append(toEmbed, pair.New)
	}

	var lastPoint record.PointRef
	for _, c := range toEmbed {
		chunkEnv, err := envelope.NewChunk(parentEnv, c.Index, len(newChunks), c.HashContent)
		if err != nil {
			return Report{}, ingesterr.Internal(fmt.Errorf("build chunk envelope: %w", err))
		}

		result, err := s.embedder.Embed(ctx, c.Content)
		if err != nil {
			return Report{}, ingesterr.EmbeddingFailure(err)
		}
		domain.UsageFromContext(ctx).AddTokens(result.TotalTokens)

		point, err := s.repo.Store(ctx, req.Collection, record.NewChunk("", chunkEnv, c.Content, result.Embedding))
		if err != nil {
			return Report{}, ingesterr.BackendUnavailable(err)
		}
		lastPoint = point
	}

	return Report{
		Action: action, DuplicateLevel: level, Deprecated: len(diff.Removed)+len(diff.Changed) > 0,
		RecordRef: lastPoint, ChunkCounts: &diff.Counts,
	}, nil
}

// classifyChunkDiff derives the chunked path's duplicate level and action
// straight from the chunk diff, since chunk records never carry a
// whole-document fingerprint to classify against: no prior chunks means a
// first-time split (store); a diff with no added/changed/removed chunks
// means an identical re-add (skip); anything else is a content update.
func classifyChunkDiff(oldChunks []chunkdiff.ChunkRecord, diff chunkdiff.Result) (dedup.Level, dedup.Action) {
	if len(oldChunks) == 0 {
		return dedup.LevelNew, dedup.ActionStore
	}
	if diff.Counts.Added == 0 && diff.Counts.Changed == 0 && diff.Counts.Removed == 0 {
		return dedup.LevelExact, dedup.ActionSkip
	}
	return dedup.LevelContentUpdate, dedup.ActionUpdate
}

// ReconcileActive deprecates every active record for (docID, category)
// except the one with the newest updated_at, as a best-effort repair of
// the at-most-one-active invariant after a write or on a periodic sweep
// (spec section 5's best-effort guarantee, supplementing the
// classify-then-write path which already enforces it for the common
// case).
func (s *Service) ReconcileActive(ctx context.Context, collection, docID, category string) error {
	actives, err := s.repo.ActiveByDocCategory(ctx, collection, docID, category)
	if err != nil {
		return ingesterr.BackendUnavailable(err)
	}
	if len(actives) <= 1 {
		return nil
	}

	sort.Slice(actives, func(i, j int) bool { return actives[i].UpdatedAt > actives[j].UpdatedAt })

	for _, stale := range actives[1:] {
		if err := versioning.Deprecate(ctx, s.repo, stale.HashContent); err != nil {
			return ingesterr.Internal(fmt.Errorf("reconcile deprecate %s: %w", stale.Point, err))
		}
	}
	return nil
}

func (s *Service) similarityFunc(candidate, existing dedup.Fingerprint) (float64, bool) {
	if s.sim == nil {
		return dedup.DefaultSimilarityFunc(candidate, existing)
	}
	if len(candidate.Vector) == 0 || len(existing.Vector) == 0 {
		return 0, false
	}
	return s.sim.Similar(candidate.Vector, existing.Vector)
}

func fnv32(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}
