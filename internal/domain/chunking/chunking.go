// Package chunking splits document content into ordered, overlapping
// chunks with stable identities, recursively over a precedence list of
// separators.
package chunking

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/ingestcore/internal/domain/fingerprint"
)

// separators is the recursive split precedence: paragraph, line, sentence,
// word. size/overlap are measured in whitespace-delimited words — the pack
// carries no tokenizer dependency, so word count approximates tokens.
var separators = []string{"\n\n", "\n", ". ", " "}

// Chunk is one piece of a split document.
type Chunk struct {
	Index       int
	Content     string
	HashContent string
}

// Split divides content into chunks of approximately size words with
// overlap words of repetition between consecutive chunks. Recurses over
// separators, falling back to a hard word-count cut when no separator
// produces a small-enough piece.
func Split(content string, size, overlap int) ([]Chunk, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunking: size must be positive")
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunking: overlap must be in [0, size)")
	}
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("chunking: content must not be empty")
	}

	words := splitWords(content)
	if len(words) == 0 {
		return nil, fmt.Errorf("chunking: content must not be empty")
	}

	pieces := recursiveSplit(content, size, 0)

	return assemble(pieces, size, overlap)
}

// assemble greedily packs recursively split pieces into chunks of up to
// size words, never splitting a piece across a chunk boundary unless the
// piece alone exceeds size (the precedence list exhausted without finding a
// separator small enough). Each new chunk after the first starts with the
// last overlap words of the chunk before it, so overlap carries across
// piece boundaries the same way it would across a plain word window.
func assemble(pieces []string, size, overlap int) ([]Chunk, error) {
	var chunks []Chunk
	var current []string

	flush := func() []string {
		if len(current) == 0 {
			return nil
		}
		text := strings.Join(current, " ")
		chunks = append(chunks, Chunk{
			Index:       len(chunks),
			Content:     text,
			HashContent: fingerprint.HashContent(text),
		})
		return overlapTail(current, overlap)
	}

	for _, piece := range pieces {
		words := splitWords(piece)
		if len(words) == 0 {
			continue
		}

		if len(words) > size {
			// Piece survived recursiveSplit oversized (no separator in the
			// precedence list cut it small enough); fall back to a hard
			// word-count window over it directly.
			current = flushOversized(&chunks, current, words, size, overlap)
			continue
		}

		if len(current) > 0 && len(current)+len(words) > size {
			current = flush()
		}
		current = append(current, words...)
	}
	flush()

	if len(chunks) == 0 {
		return nil, fmt.Errorf("chunking: content must not be empty")
	}
	return chunks, nil
}

// flushOversized flushes any pending words in current, then hard-windows an
// oversized piece's words into one or more chunks, returning the overlap
// tail to seed the next chunk's current.
func flushOversized(chunks *[]Chunk, current []string, words []string, size, overlap int) []string {
	if len(current) > 0 {
		text := strings.Join(current, " ")
		*chunks = append(*chunks, Chunk{
			Index:       len(*chunks),
			Content:     text,
			HashContent: fingerprint.HashContent(text),
		})
	}

	step := size - overlap
	var tail []string
	for start := 0; start < len(words); start += step {
		end := start + size
		if end > len(words) {
			end = len(words)
		}
		text := strings.Join(words[start:end], " ")
		*chunks = append(*chunks, Chunk{
			Index:       len(*chunks),
			Content:     text,
			HashContent: fingerprint.HashContent(text),
		})
		tail = overlapTail(words[start:end], overlap)
		if end == len(words) {
			break
		}
	}
	return tail
}

// overlapTail returns the last overlap words of words, or all of them if
// words is shorter than overlap.
func overlapTail(words []string, overlap int) []string {
	if overlap <= 0 || len(words) == 0 {
		return nil
	}
	if overlap >= len(words) {
		return append([]string(nil), words...)
	}
	return append([]string(nil), words[len(words)-overlap:]...)
}

// recursiveSplit breaks content on the first separator (in precedence
// order) that yields pieces within size words; falls back to the content
// itself when no separator helps or the precedence list is exhausted —
// the hard-cut fallback happens later, in assemble's fixed-window pass.
func recursiveSplit(content string, size, sepIdx int) []string {
	if countWords(content) <= size {
		return []string{content}
	}
	if sepIdx >= len(separators) {
		return []string{content}
	}

	sep := separators[sepIdx]
	parts := strings.Split(content, sep)
	if len(parts) <= 1 {
		return recursiveSplit(content, size, sepIdx+1)
	}

	var out []string
	for i, part := range parts {
		if i < len(parts)-1 {
			part += sep
		}
		if part == "" {
			continue
		}
		out = append(out, recursiveSplit(part, size, sepIdx+1)...)
	}
	return out
}

func splitWords(s string) []string {
	return strings.Fields(s)
}

func countWords(s string) int {
	return len(strings.Fields(s))
}

// ChunkID derives the stable chunk identifier from its parent doc_id and
// 0-based index, using the same format as envelope.ChunkID so callers
// need not import envelope just to predict an ID.
func ChunkID(docID string, index int) string {
	return fmt.Sprintf("%s_chunk_%d", docID, index)
}
