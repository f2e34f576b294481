// Package chunkdiff compares an old and new chunk set for a document and
// classifies each chunk index as unchanged, changed, added, or removed.
package chunkdiff

// ChunkRecord is the minimal shape chunkdiff needs from a stored or
// freshly-split chunk.
type ChunkRecord struct {
	Index       int
	HashContent string
	Content     string
	PointRef    string // empty for new (not-yet-stored) chunks
}

// Counts tallies each classification, returned to the ingestion
// controller's response.
type Counts struct {
	Unchanged int
	Changed   int
	Added     int
	Removed   int
}

// Result is the full classification of an old/new chunk-set comparison.
type Result struct {
	Unchanged []ChunkRecord
	Changed   []ChunkPair
	Added     []ChunkRecord
	Removed   []ChunkRecord
	Counts    Counts
}

// ChunkPair carries both sides of a changed chunk: the old stored chunk to
// deprecate and the new chunk to embed and store.
type ChunkPair struct {
	Old ChunkRecord
	New ChunkRecord
}

// Diff aligns old and new chunk sets by Index and classifies each
// position: chunks present only in old are removed; present only in new
// are added; present in both with equal HashContent are unchanged;
// present in both with different HashContent are changed.
func Diff(old, updated []ChunkRecord) Result {
	oldByIndex := make(map[int]ChunkRecord, len(old))
	for _, c := range old {
		oldByIndex[c.Index] = c
	}
	newByIndex := make(map[int]ChunkRecord, len(updated))
	for _, c := range updated {
		newByIndex[c.Index] = c
	}

	var res Result
	for idx, oldChunk := range oldByIndex {
		newChunk, present := newByIndex[idx]
		if !present {
			res.Removed = append(res.Removed, oldChunk)
			continue
		}
		if oldChunk.HashContent == newChunk.HashContent {
			res.Unchanged = append(res.Unchanged, oldChunk)
		} else {
			res.Changed = append(res.Changed, ChunkPair{Old: oldChunk, New: newChunk})
		}
	}
	for idx, newChunk := range newByIndex {
		if _, present := oldByIndex[idx]; !present {
			res.Added = append(res.Added, newChunk)
		}
	}

	res.Counts = Counts{
		Unchanged: len(res.Unchanged),
		Changed:   len(res.Changed),
		Added:     len(res.Added),
		Removed:   len(res.Removed),
	}
	return res
}
