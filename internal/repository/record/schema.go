package record

import "github.com/kailas-cloud/ingestcore/internal/domain/collection/field"

// SchemaFields returns the indexed field set every ingestion collection
// (documents, code) shares: the envelope's identity and chunk-identity
// fields as TAG, chunk position as NUMERIC. Content is covered separately
// by buildIndex's TEXT field when the backend supports keyword search;
// the vector field is always added by buildIndex.
func SchemaFields() []field.Field {
	tagNames := []string{
		"doc_id", "version", "category", "status", "hash_content", "metadata_hash",
		"file_path", "file_hash", "source", "repo", "tags",
		"is_chunk", "chunk_id", "parent_doc_id",
	}
	fields := make([]field.Field, 0, len(tagNames)+2)
	for _, name := range tagNames {
		f, err := field.New(name, field.Tag)
		if err != nil {
			continue
		}
		fields = append(fields, f)
	}
	for _, name := range []string{"chunk_index", "total_chunks"} {
		f, err := field.New(name, field.Numeric)
		if err != nil {
			continue
		}
		fields = append(fields, f)
	}
	return fields
}
