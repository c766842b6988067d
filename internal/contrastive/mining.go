package contrastive

import "sort"

// MaxNegatives bounds how many negatives MineHardNegatives returns.
const MaxNegatives = 128

// positiveFalseNegativeThreshold: a candidate within this cosine
// similarity of any known positive is treated as a likely false negative
// and excluded ("positive-aware" filtering).
const positiveFalseNegativeThreshold = 0.85

type scoredCandidate struct {
	index int
	score float64
}

// MineHardNegatives scores pool by cosine similarity to anchor, keeps
// candidates at or above stage.HardNegativeThreshold, drops any excluded
// index or any candidate too similar to a known positive, and returns the
// top stage.NegativeCount pool indices by descending score (bounded by
// MaxNegatives and len(pool)).
func MineHardNegatives(anchor []float32, pool [][]float32, exclude map[int]bool, positives [][]float32, stage Stage) []int {
	if len(pool) == 0 {
		return []int{}
	}

	a := toFloat64(anchor)
	na := norm(a)
	posF := make([][]float64, len(positives))
	posNorms := make([]float64, len(positives))
	for i, p := range positives {
		posF[i] = toFloat64(p)
		posNorms[i] = norm(posF[i])
	}

	var candidates []scoredCandidate
	for i, c := range pool {
		if exclude != nil && exclude[i] {
			continue
		}
		cf := toFloat64(c)
		nc := norm(cf)
		score := cosine(a, cf, na, nc)
		if score < stage.HardNegativeThreshold {
			continue
		}
		if isLikelyFalseNegative(cf, nc, posF, posNorms) {
			continue
		}
		candidates = append(candidates, scoredCandidate{index: i, score: score})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].index < candidates[j].index
	})

	limit := stage.NegativeCount
	if limit > MaxNegatives {
		limit = MaxNegatives
	}
	if limit > len(candidates) {
		limit = len(candidates)
	}

	out := make([]int, limit)
	for i := 0; i < limit; i++ {
		out[i] = candidates[i].index
	}
	return out
}

func isLikelyFalseNegative(c []float64, nc float64, positives [][]float64, posNorms []float64) bool {
	for i, p := range positives {
		if cosine(c, p, nc, posNorms[i]) > positiveFalseNegativeThreshold {
			return true
		}
	}
	return false
}
