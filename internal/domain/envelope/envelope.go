// Package envelope builds and validates the canonical metadata envelope
// carried by every stored document and chunk record.
package envelope

import (
	"fmt"
	"strconv"
	"time"

	"github.com/kailas-cloud/ingestcore/internal/domain/fingerprint"
)

// Category is the closed set of document categories.
type Category string

// Supported categories.
const (
	CategoryUserRule       Category = "user_rule"
	CategoryProjectRule    Category = "project_rule"
	CategoryProjectCommand Category = "project_command"
	CategoryDesignDoc      Category = "design_doc"
	CategoryDebugSummary   Category = "debug_summary"
	CategoryTestPattern    Category = "test_pattern"
	CategoryOther          Category = "other"
)

var validCategories = map[Category]bool{
	CategoryUserRule: true, CategoryProjectRule: true, CategoryProjectCommand: true,
	CategoryDesignDoc: true, CategoryDebugSummary: true, CategoryTestPattern: true,
	CategoryOther: true,
}

// IsValid reports whether c belongs to the closed category set.
func (c Category) IsValid() bool { return validCategories[c] }

// Status is the closed set of record lifecycle states.
type Status string

// Supported statuses.
const (
	StatusActive     Status = "active"
	StatusDeprecated Status = "deprecated"
	StatusDraft      Status = "draft"
)

var validStatuses = map[Status]bool{StatusActive: true, StatusDeprecated: true, StatusDraft: true}

// IsValid reports whether s belongs to the closed status set.
func (s Status) IsValid() bool { return validStatuses[s] }

// Source is the closed set of document origins.
type Source string

// Supported sources.
const (
	SourceManual    Source = "manual"
	SourceGenerated Source = "generated"
	SourceImported  Source = "imported"
)

func (s Source) isValid() bool {
	return s == "" || s == SourceManual || s == SourceGenerated || s == SourceImported
}

// Envelope is the immutable canonical metadata envelope (section 3 of the
// data model). Construct with New or NewChunk; Reconstruct hydrates from
// storage without re-validating.
type Envelope struct {
	docID        string
	version      string
	category     Category
	status       Status
	hashContent  string
	metadataHash string
	createdAt    time.Time
	updatedAt    time.Time

	filePath string
	fileHash string
	source   Source
	repo     string
	tags     []string

	isChunk      bool
	chunkID      string
	chunkIndex   int
	parentDocID  string
	totalChunks  int
}

// BuildParams carries the caller-supplied fragments for New.
type BuildParams struct {
	DocID       string
	Version     string
	Category    Category
	Status      Status
	HashContent string
	FilePath    string
	FileHash    string
	Source      Source
	Repo        string
	Tags        []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// New validates params and builds a whole-document Envelope.
// HashContent is accepted as a precomputed input, never generated here —
// that is fingerprint's responsibility. MetadataHash is computed from the
// non-volatile fields once the envelope shape is fixed.
func New(p BuildParams) (Envelope, error) {
	if p.DocID == "" {
		return Envelope{}, fmt.Errorf("envelope: doc_id is required")
	}
	if !p.Category.IsValid() {
		return Envelope{}, fmt.Errorf("envelope: invalid category %q", p.Category)
	}
	if p.Status == "" {
		p.Status = StatusActive
	}
	if !p.Status.IsValid() {
		return Envelope{}, fmt.Errorf("envelope: invalid status %q", p.Status)
	}
	if !p.Source.isValid() {
		return Envelope{}, fmt.Errorf("envelope: invalid source %q", p.Source)
	}
	if p.HashContent == "" {
		return Envelope{}, fmt.Errorf("envelope: hash_content is required")
	}
	if p.Version == "" {
		p.Version = time.Now().UTC().Format(time.RFC3339Nano)
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = now
	}

	env := Envelope{
		docID: p.DocID, version: p.Version, category: p.Category, status: p.Status,
		hashContent: p.HashContent, createdAt: p.CreatedAt, updatedAt: p.UpdatedAt,
		filePath: p.FilePath, fileHash: p.FileHash, source: p.Source, repo: p.Repo,
		tags: append([]string(nil), p.Tags...),
	}

	hash, err := fingerprint.HashMetadata(env.FingerprintFields())
	if err != nil {
		return Envelope{}, fmt.Errorf("envelope: compute metadata hash: %w", err)
	}
	env.metadataHash = hash

	return env, nil
}

// NewChunk builds a chunk Envelope that shares parent's non-chunk fields
// but carries its own hash_content, chunk identity, and metadata hash.
func NewChunk(parent Envelope, index, total int, chunkHashContent string) (Envelope, error) {
	if chunkHashContent == "" {
		return Envelope{}, fmt.Errorf("envelope: chunk hash_content is required")
	}
	if index < 0 {
		return Envelope{}, fmt.Errorf("envelope: chunk index must be >= 0")
	}
	if total <= 0 {
		return Envelope{}, fmt.Errorf("envelope: total_chunks must be > 0")
	}

	now := time.Now().UTC()
	env := Envelope{
		docID: parent.docID, version: parent.version, category: parent.category,
		status: parent.status, hashContent: chunkHashContent,
		createdAt: now, updatedAt: now,
		filePath: parent.filePath, fileHash: parent.fileHash, source: parent.source,
		repo: parent.repo, tags: append([]string(nil), parent.tags...),
		isChunk: true, chunkIndex: index, parentDocID: parent.docID, totalChunks: total,
		chunkID: ChunkID(parent.docID, index),
	}

	hash, err := fingerprint.HashMetadata(env.FingerprintFields())
	if err != nil {
		return Envelope{}, fmt.Errorf("envelope: compute chunk metadata hash: %w", err)
	}
	env.metadataHash = hash

	return env, nil
}

// ChunkID derives the stable chunk identifier from its parent doc_id and
// 0-based index.
func ChunkID(docID string, index int) string {
	return fmt.Sprintf("%s_chunk_%d", docID, index)
}

// Reconstruct hydrates an Envelope from storage without re-validating or
// recomputing hashes — the stored values are authoritative.
func Reconstruct(
	docID, version string, category Category, status Status,
	hashContent, metadataHash string, createdAt, updatedAt time.Time,
	filePath, fileHash string, source Source, repo string, tags []string,
	isChunk bool, chunkID string, chunkIndex int, parentDocID string, totalChunks int,
) Envelope {
	return Envelope{
		docID: docID, version: version, category: category, status: status,
		hashContent: hashContent, metadataHash: metadataHash,
		createdAt: createdAt, updatedAt: updatedAt,
		filePath: filePath, fileHash: fileHash, source: source, repo: repo, tags: tags,
		isChunk: isChunk, chunkID: chunkID, chunkIndex: chunkIndex,
		parentDocID: parentDocID, totalChunks: totalChunks,
	}
}

// FingerprintFields projects the non-volatile fields used by the metadata
// fingerprint (excludes created_at, updated_at, status, version).
func (e Envelope) FingerprintFields() fingerprint.MetadataFields {
	return fingerprint.MetadataFields{
		DocID: e.docID, Category: string(e.category), FilePath: e.filePath,
		FileHash: e.fileHash, Source: string(e.source), Repo: e.repo, Tags: e.tags,
		IsChunk: e.isChunk, ChunkIndex: e.chunkIndex,
	}
}

// WithStatus returns a copy of e with status and updated_at mutated — used
// by the versioning engine to build the deprecation patch, never to
// mutate stored content directly.
func (e Envelope) WithStatus(status Status, at time.Time) Envelope {
	e.status = status
	e.updatedAt = at
	return e
}

// Accessors.

func (e Envelope) DocID() string        { return e.docID }
func (e Envelope) Version() string      { return e.version }
func (e Envelope) Category() Category   { return e.category }
func (e Envelope) Status() Status       { return e.status }
func (e Envelope) HashContent() string  { return e.hashContent }
func (e Envelope) MetadataHash() string { return e.metadataHash }
func (e Envelope) CreatedAt() time.Time { return e.createdAt }
func (e Envelope) UpdatedAt() time.Time { return e.updatedAt }
func (e Envelope) FilePath() string     { return e.filePath }
func (e Envelope) FileHash() string     { return e.fileHash }
func (e Envelope) Source() Source       { return e.source }
func (e Envelope) Repo() string         { return e.repo }
func (e Envelope) Tags() []string       { return append([]string(nil), e.tags...) }
func (e Envelope) IsChunk() bool        { return e.isChunk }
func (e Envelope) ChunkID() string      { return e.chunkID }
func (e Envelope) ChunkIndex() int      { return e.chunkIndex }
func (e Envelope) ParentDocID() string  { return e.parentDocID }
func (e Envelope) TotalChunks() int     { return e.totalChunks }

// ToPayload flattens the envelope into storage-ready scalar maps: strings
// (including booleans rendered as "true"/"false" and tags joined for TAG
// indexing) and numerics, under single non-nested keys, matching the flat
// hash encoding the RediSearch/valkey-search schema expects.
func (e Envelope) ToPayload() (map[string]string, map[string]float64) {
	strs := map[string]string{
		"doc_id":        e.docID,
		"version":       e.version,
		"category":      string(e.category),
		"status":        string(e.status),
		"hash_content":  e.hashContent,
		"metadata_hash": e.metadataHash,
		"created_at":    e.createdAt.Format(time.RFC3339Nano),
		"updated_at":    e.updatedAt.Format(time.RFC3339Nano),
	}
	if e.filePath != "" {
		strs["file_path"] = e.filePath
	}
	if e.fileHash != "" {
		strs["file_hash"] = e.fileHash
	}
	if e.source != "" {
		strs["source"] = string(e.source)
	}
	if e.repo != "" {
		strs["repo"] = e.repo
	}
	if len(e.tags) > 0 {
		strs["tags"] = joinTags(e.tags)
	}
	// is_chunk is always written (not just for chunks) so a TAG filter
	// for is_chunk:false actually matches whole-document records instead
	// of finding no record indexed under that value at all.
	strs["is_chunk"] = strconv.FormatBool(e.isChunk)
	if e.isChunk {
		strs["chunk_id"] = e.chunkID
		strs["parent_doc_id"] = e.parentDocID
	}

	nums := map[string]float64{}
	if e.isChunk {
		nums["chunk_index"] = float64(e.chunkIndex)
		nums["total_chunks"] = float64(e.totalChunks)
	}

	return strs, nums
}

func joinTags(tags []string) string {
	out := ""
	for i, t := range tags {
		if i > 0 {
			out += ","
		}
		out += t
	}
	return out
}
