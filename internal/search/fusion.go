package search

import "sort"

// Fuse combines keyword (BM25) and vector result lists into a single ranked
// list per the configured FusionMethod. Each input list is assumed already
// sorted by descending source score (vector: descending similarity;
// keyword: descending BM25 score).
//
// If only one source is non-empty, its results are normalized and returned
// as-is without invoking the fusion formula.
func Fuse(keyword []Match, vector []VectorMatch, weights Weights, method FusionMethod, rrfK int) []HybridResult {
	if len(keyword) == 0 && len(vector) == 0 {
		return []HybridResult{}
	}
	if rrfK <= 0 {
		rrfK = DefaultRRFConstant
	}

	if len(keyword) == 0 {
		return singleSourceVector(vector)
	}
	if len(vector) == 0 {
		return singleSourceKeyword(keyword)
	}

	switch method {
	case FusionLinear:
		return fuseLinear(keyword, vector, weights)
	case FusionMax:
		return fuseMax(keyword, vector, weights)
	default:
		return fuseRRF(keyword, vector, weights, rrfK)
	}
}

func singleSourceVector(vector []VectorMatch) []HybridResult {
	results := make([]HybridResult, 0, len(vector))
	for rank, v := range vector {
		results = append(results, HybridResult{
			ID:          v.ID,
			Score:       float64(v.Similarity),
			VectorScore: float64(v.Similarity),
			VectorRank:  rank + 1,
		})
	}
	normalizeByMax(results)
	return results
}

func singleSourceKeyword(keyword []Match) []HybridResult {
	results := make([]HybridResult, 0, len(keyword))
	for rank, m := range keyword {
		results = append(results, HybridResult{
			ID:           m.DocID,
			Score:        m.Score,
			KeywordScore: m.Score,
			KeywordRank:  rank + 1,
			MatchedTerms: m.MatchedTerms,
		})
	}
	normalizeByMax(results)
	return results
}

// fuseRRF implements RRF: contribution w_source/(rrf_k + rank_source),
// summed across sources, then normalized so the top score is 1.
func fuseRRF(keyword []Match, vector []VectorMatch, weights Weights, k int) []HybridResult {
	byID := make(map[string]*HybridResult)

	for rank, m := range keyword {
		r := getOrCreate(byID, m.DocID)
		r.KeywordScore = m.Score
		r.KeywordRank = rank + 1
		r.MatchedTerms = m.MatchedTerms
		r.Score += weights.Keyword / float64(k+rank+1)
	}
	for rank, v := range vector {
		r := getOrCreate(byID, v.ID)
		r.VectorScore = float64(v.Similarity)
		r.VectorRank = rank + 1
		r.Score += weights.Vector / float64(k+rank+1)
		if r.KeywordRank > 0 {
			r.InBothLists = true
		}
	}

	results := toSlice(byID)
	sortResults(results)
	normalizeByMax(results)
	return results
}

// fuseLinear min-max normalizes each source's raw scores against its own
// in-batch max, then combines: score = w_v*s_v + w_kw*s_kw.
func fuseLinear(keyword []Match, vector []VectorMatch, weights Weights) []HybridResult {
	kwNorm := minMaxKeyword(keyword)
	vecNorm := minMaxVector(vector)

	byID := make(map[string]*HybridResult)
	for rank, m := range keyword {
		r := getOrCreate(byID, m.DocID)
		r.KeywordScore = kwNorm[m.DocID]
		r.KeywordRank = rank + 1
		r.MatchedTerms = m.MatchedTerms
	}
	for rank, v := range vector {
		r := getOrCreate(byID, v.ID)
		r.VectorScore = vecNorm[v.ID]
		r.VectorRank = rank + 1
		if r.KeywordRank > 0 {
			r.InBothLists = true
		}
	}
	for _, r := range byID {
		r.Score = weights.Vector*r.VectorScore + weights.Keyword*r.KeywordScore
	}

	results := toSlice(byID)
	sortResults(results)
	return results
}

// fuseMax uses the same per-source min-max normalization as linear, but
// combines via score = max(w_v*s_v, w_kw*s_kw) over whichever sources
// actually contributed to that document.
func fuseMax(keyword []Match, vector []VectorMatch, weights Weights) []HybridResult {
	kwNorm := minMaxKeyword(keyword)
	vecNorm := minMaxVector(vector)

	byID := make(map[string]*HybridResult)
	for rank, m := range keyword {
		r := getOrCreate(byID, m.DocID)
		r.KeywordScore = kwNorm[m.DocID]
		r.KeywordRank = rank + 1
		r.MatchedTerms = m.MatchedTerms
	}
	for rank, v := range vector {
		r := getOrCreate(byID, v.ID)
		r.VectorScore = vecNorm[v.ID]
		r.VectorRank = rank + 1
		if r.KeywordRank > 0 {
			r.InBothLists = true
		}
	}
	for _, r := range byID {
		var candidates []float64
		if r.KeywordRank > 0 {
			candidates = append(candidates, weights.Keyword*r.KeywordScore)
		}
		if r.VectorRank > 0 {
			candidates = append(candidates, weights.Vector*r.VectorScore)
		}
		max := 0.0
		for _, c := range candidates {
			if c > max {
				max = c
			}
		}
		r.Score = max
	}

	results := toSlice(byID)
	sortResults(results)
	return results
}

func minMaxKeyword(matches []Match) map[string]float64 {
	norm := make(map[string]float64, len(matches))
	if len(matches) == 0 {
		return norm
	}
	max := matches[0].Score
	for _, m := range matches {
		if m.Score > max {
			max = m.Score
		}
	}
	for _, m := range matches {
		if max == 0 {
			norm[m.DocID] = 0
		} else {
			norm[m.DocID] = m.Score / max
		}
	}
	return norm
}

func minMaxVector(matches []VectorMatch) map[string]float64 {
	norm := make(map[string]float64, len(matches))
	if len(matches) == 0 {
		return norm
	}
	max := matches[0].Similarity
	for _, m := range matches {
		if m.Similarity > max {
			max = m.Similarity
		}
	}
	for _, m := range matches {
		if max == 0 {
			norm[m.ID] = 0
		} else {
			norm[m.ID] = float64(m.Similarity / max)
		}
	}
	return norm
}

func getOrCreate(m map[string]*HybridResult, id string) *HybridResult {
	if r, ok := m[id]; ok {
		return r
	}
	r := &HybridResult{ID: id}
	m[id] = r
	return r
}

func toSlice(m map[string]*HybridResult) []HybridResult {
	results := make([]HybridResult, 0, len(m))
	for _, r := range m {
		results = append(results, *r)
	}
	return results
}

// sortResults orders by descending score; ties break first by presence in
// both lists, then by vector-before-keyword source rank (per the
// order-stability guarantee), then lexicographically by ID.
func sortResults(results []HybridResult) {
	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.InBothLists != b.InBothLists {
			return a.InBothLists
		}
		if a.VectorRank != b.VectorRank {
			if a.VectorRank == 0 {
				return false
			}
			if b.VectorRank == 0 {
				return true
			}
			return a.VectorRank < b.VectorRank
		}
		return a.ID < b.ID
	})
}

// normalizeByMax scales Score so the top result is 1.0.
func normalizeByMax(results []HybridResult) {
	if len(results) == 0 {
		return
	}
	sortResults(results)
	max := results[0].Score
	if max == 0 {
		return
	}
	for i := range results {
		results[i].Score /= max
	}
}
