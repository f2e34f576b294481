// Package quality implements the record quality vector: a fixed set of
// pass/fail checks over a record's content and metadata, reduced to a
// single score used to gate verification.
package quality

import "regexp"

// MinContentLength is the minimum content length the min_length check
// requires.
const MinContentLength = 100

// placeholderPattern matches the known markers a generator leaves behind
// when it could not produce real content.
var placeholderPattern = regexp.MustCompile(
	`(?i)\[\s*(?:full content(?: from file)?\s*\.\.\.|\.\.\.|todo:[^\]]*|tbd:[^\]]*|placeholder:[^\]]*|write here|content to be added)\s*\]` +
		`|placeholder|will be stored|content will be|to be (?:filled|added|completed)`,
)

// Vector is the per-check outcome for a single record.
type Vector struct {
	HasContent        bool
	MinLength         bool
	NoPlaceholder     bool
	HasRequiredFields bool
	HashValid         bool
	HasStatus         bool
}

// checkCount is the number of fields in Vector, kept in lockstep with it
// for Score's denominator.
const checkCount = 6

// Check computes the quality vector for a record. hashValid is computed by
// the caller (recompute hash_content and compare, same as verification's
// existing hash check); the other checks are derived here from content and
// the envelope fields named.
func Check(content, docID, version, category, hashContent, status string, hashValid bool) Vector {
	return Vector{
		HasContent:        content != "",
		MinLength:         len(content) >= MinContentLength,
		NoPlaceholder:     !placeholderPattern.MatchString(content),
		HasRequiredFields: docID != "" && version != "" && category != "" && hashContent != "",
		HashValid:         hashValid,
		HasStatus:         status != "",
	}
}

// Score is the fraction of checks that passed.
func (v Vector) Score() float64 {
	passed := 0
	for _, ok := range []bool{v.HasContent, v.MinLength, v.NoPlaceholder, v.HasRequiredFields, v.HashValid, v.HasStatus} {
		if ok {
			passed++
		}
	}
	return float64(passed) / float64(checkCount)
}

// Passes reports whether the vector's score meets threshold.
func (v Vector) Passes(threshold float64) bool {
	return v.Score() >= threshold
}
