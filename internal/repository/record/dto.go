// Package record implements usecase/ingest.Repository and the read-side
// lookups query/bulk need: a single flat HASH per point, keyed by the
// collection's FT index prefix.
package record

import (
	"encoding/binary"
	"math"
	"strconv"
	"time"

	"github.com/kailas-cloud/ingestcore/internal/domain/envelope"
	domrecord "github.com/kailas-cloud/ingestcore/internal/domain/record"
)

// reservedFields are the hash keys envelope.ToPayload never produces but
// this package adds itself: the raw content and the binary-encoded vector.
const (
	fieldContent = "__content"
	fieldVector  = "__vector"
)

// buildHashFields flattens a record into the flat map[string]string HSET
// needs, merging the envelope's tag/numeric payload with content and
// vector.
func buildHashFields(rec domrecord.Record) map[string]string {
	strs, nums := rec.Envelope.ToPayload()

	m := make(map[string]string, len(strs)+len(nums)+2)
	for k, v := range strs {
		m[k] = v
	}
	for k, v := range nums {
		m[k] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	m[fieldContent] = rec.Content
	m[fieldVector] = vectorToBytes(rec.Vector)
	return m
}

// parseHashFields hydrates a stored hash back into an envelope.Envelope
// and raw content/vector, using envelope.Reconstruct (no re-validation —
// stored values are authoritative).
func parseHashFields(point string, m map[string]string) (domrecord.Record, error) {
	env, err := reconstructEnvelope(m)
	if err != nil {
		return domrecord.Record{}, err
	}

	content := m[fieldContent]
	vector := bytesToVector(m[fieldVector])

	if env.IsChunk() {
		return domrecord.NewChunk(domrecord.PointRef(point), env, content, vector), nil
	}
	return domrecord.NewDocument(domrecord.PointRef(point), env, content, vector), nil
}

func reconstructEnvelope(m map[string]string) (envelope.Envelope, error) {
	createdAt, err := parseTime(m["created_at"])
	if err != nil {
		return envelope.Envelope{}, err
	}
	updatedAt, err := parseTime(m["updated_at"])
	if err != nil {
		return envelope.Envelope{}, err
	}

	var tags []string
	if raw, ok := m["tags"]; ok && raw != "" {
		tags = splitTags(raw)
	}

	isChunk := m["is_chunk"] == "true"
	chunkIndex := 0
	totalChunks := 0
	if isChunk {
		chunkIndex = int(parseFloat(m["chunk_index"]))
		totalChunks = int(parseFloat(m["total_chunks"]))
	}

	return envelope.Reconstruct(
		m["doc_id"], m["version"], envelope.Category(m["category"]), envelope.Status(m["status"]),
		m["hash_content"], m["metadata_hash"], createdAt, updatedAt,
		m["file_path"], m["file_hash"], envelope.Source(m["source"]), m["repo"], tags,
		isChunk, m["chunk_id"], chunkIndex, m["parent_doc_id"], totalChunks,
	), nil
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

// vectorToBytes serializes []float32 to a binary string (4 bytes per
// float, little-endian), the encoding RediSearch/valkey-search VECTOR
// fields expect.
func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

// bytesToVector deserializes a binary string back to []float32.
func bytesToVector(s string) []float32 {
	b := []byte(s)
	if len(b) == 0 || len(b)%4 != 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}

func splitTags(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}
