package query

import (
	"sort"

	"github.com/kailas-cloud/ingestcore/internal/domain/search/result"
)

// rrfK is the Reciprocal Rank Fusion constant (standard value from Cormack et al. 2009).
const rrfK = 60

// fuseRRF merges KNN and BM25 results via Reciprocal Rank Fusion.
// score(d) = sum of 1/(k + rank_i(d)) for each ranking where d appears.
func fuseRRF(knn, bm25 []result.Result, topK int) []result.Result {
	type scored struct {
		res   result.Result
		score float64
	}

	merged := make(map[string]*scored)

	for rank, r := range knn {
		merged[r.ID()] = &scored{res: r, score: 1.0 / float64(rrfK+rank+1)}
	}
	for rank, r := range bm25 {
		s := 1.0 / float64(rrfK+rank+1)
		if existing, ok := merged[r.ID()]; ok {
			existing.score += s
		} else {
			merged[r.ID()] = &scored{res: r, score: s}
		}
	}

	results := make([]result.Result, 0, len(merged))
	for _, s := range merged {
		results = append(results, result.New(
			s.res.ID(), s.score, s.res.Content(), s.res.Tags(), s.res.Numerics(), s.res.Vector(),
		))
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Score() > results[j].Score()
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results
}
