package federated

import (
	"encoding/hex"
	"math"

	"github.com/zeebo/blake3"
)

// Pattern is one consolidated, reusable activation cluster learned from
// aggregated session trajectories.
type Pattern struct {
	ID         string
	Centroid   []float32
	Weight     float64
	RouteLabel string
}

// similarMatchThreshold is the cosine similarity above which a new step
// is folded into an existing pattern rather than starting a new one.
const similarMatchThreshold = 0.9

// mergeThreshold is the cosine similarity above which two patterns are
// merged during consolidation.
const mergeThreshold = 0.95

func fingerprint(centroid []float32, route string) string {
	h := blake3.New()
	for _, f := range centroid {
		var buf [4]byte
		bits := math.Float32bits(f)
		buf[0] = byte(bits)
		buf[1] = byte(bits >> 8)
		buf[2] = byte(bits >> 16)
		buf[3] = byte(bits >> 24)
		h.Write(buf[:])
	}
	h.Write([]byte(route))
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:16])
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// weightedMerge folds b (with weight wb) into a (with weight wa),
// returning the new weighted-average centroid and combined weight.
func weightedMerge(a []float32, wa float64, b []float32, wb float64) ([]float32, float64) {
	total := wa + wb
	out := make([]float32, len(a))
	for i := range a {
		out[i] = float32((float64(a[i])*wa + float64(b[i])*wb) / total)
	}
	return out, total
}
