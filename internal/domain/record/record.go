// Package record defines the storage-facing Record type: a document or a
// chunk, discriminated by Kind, carrying its envelope, content, and vector.
package record

import (
	"github.com/kailas-cloud/ingestcore/internal/domain/envelope"
)

// Kind discriminates whether a Record is a whole document or a chunk of
// one, using a string enum the same way collection.Type does.
type Kind string

// Supported kinds.
const (
	KindDocument Kind = "document"
	KindChunk    Kind = "chunk"
)

// PointRef is the opaque backend point reference a Record is stored
// under. The core only ever addresses it by filter predicate, never by
// value equality across versions.
type PointRef string

// Record is a stored document or chunk: envelope, content, vector, plus a
// Kind discriminant and an optional embedded ChunkIdentity populated only
// when Kind == KindChunk.
type Record struct {
	Point    PointRef
	Kind     Kind
	Envelope envelope.Envelope
	Content  string
	Vector   []float32
	Chunk    *ChunkIdentity
}

// ChunkIdentity carries the fields unique to a chunk record, mirroring
// envelope.Envelope's own chunk accessors for convenience at call sites
// that only need identity, not the full envelope.
type ChunkIdentity struct {
	ChunkID     string
	ChunkIndex  int
	ParentDocID string
	TotalChunks int
}

// NewDocument wraps a whole-document envelope, content, and vector into a
// Record.
func NewDocument(point PointRef, env envelope.Envelope, content string, vector []float32) Record {
	return Record{Point: point, Kind: KindDocument, Envelope: env, Content: content, Vector: vector}
}

// NewChunk wraps a chunk envelope, content, and vector into a Record,
// deriving ChunkIdentity from the envelope's own chunk fields.
func NewChunk(point PointRef, env envelope.Envelope, content string, vector []float32) Record {
	return Record{
		Point: point, Kind: KindChunk, Envelope: env, Content: content, Vector: vector,
		Chunk: &ChunkIdentity{
			ChunkID:     env.ChunkID(),
			ChunkIndex:  env.ChunkIndex(),
			ParentDocID: env.ParentDocID(),
			TotalChunks: env.TotalChunks(),
		},
	}
}

// IsChunk reports whether r is a chunk record.
func (r Record) IsChunk() bool { return r.Kind == KindChunk }
