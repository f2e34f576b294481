// Package fingerprint normalizes document content and computes the
// content and metadata hashes the ingestion pipeline uses for duplicate
// detection.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Normalize strips trailing whitespace per line, collapses CRLF/CR to LF,
// collapses a trailing run of blank lines to a single final newline, and
// applies Unicode NFC normalization. The result is the only input to
// HashContent, so two byte-different documents that differ only in line
// endings or trailing whitespace fingerprint identically.
func Normalize(content string) string {
	unified := strings.ReplaceAll(content, "\r\n", "\n")
	unified = strings.ReplaceAll(unified, "\r", "\n")

	lines := strings.Split(unified, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	joined := strings.Join(lines, "\n")
	joined = strings.TrimRight(joined, "\n") + "\n"

	return norm.NFC.String(joined)
}

// HashContent returns the hex SHA-256 digest of the normalized content.
func HashContent(content string) string {
	return hashHex([]byte(Normalize(content)))
}

// MetadataFields is the subset of an envelope's fields that participate in
// the metadata fingerprint. Volatile fields (created_at, updated_at,
// status, version) are intentionally excluded by the caller before this
// is built — see envelope.Envelope.FingerprintFields.
type MetadataFields struct {
	DocID      string   `json:"doc_id"`
	Category   string   `json:"category"`
	FilePath   string   `json:"file_path,omitempty"`
	FileHash   string   `json:"file_hash,omitempty"`
	Source     string   `json:"source,omitempty"`
	Repo       string   `json:"repo,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	IsChunk    bool     `json:"is_chunk,omitempty"`
	ChunkIndex int      `json:"chunk_index,omitempty"`
}

// HashMetadata returns the hex SHA-256 digest of the canonical JSON
// serialization of fields, with Tags sorted so that set-equal tag lists
// fingerprint identically regardless of caller-supplied order.
func HashMetadata(fields MetadataFields) (string, error) {
	sorted := append([]string(nil), fields.Tags...)
	sort.Strings(sorted)
	fields.Tags = sorted

	canonical, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("fingerprint: marshal metadata fields: %w", err)
	}
	return hashHex(canonical), nil
}

func hashHex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// CosineSimilarity computes cosine similarity between two equal-length
// embedding vectors, used by dedup's optional Level 3 similarity hook.
// Returns (0, false) if the vectors differ in length or either is zero.
func CosineSimilarity(a, b []float32) (float64, bool) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, false
	}
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0, false
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB)), true
}
