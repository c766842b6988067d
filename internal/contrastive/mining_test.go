package contrastive

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMineHardNegatives_EmptyPoolReturnsEmpty(t *testing.T) {
	out := MineHardNegatives([]float32{1, 0}, nil, nil, nil, Stage{NegativeCount: 4, HardNegativeThreshold: 0.1})
	assert.Empty(t, out)
}

func TestMineHardNegatives_FiltersBelowThreshold(t *testing.T) {
	anchor := []float32{1, 0}
	pool := [][]float32{
		{1, 0},  // cosine 1.0
		{0, 1},  // cosine 0.0
		{-1, 0}, // cosine -1.0
	}
	out := MineHardNegatives(anchor, pool, nil, nil, Stage{NegativeCount: 10, HardNegativeThreshold: 0.5})
	assert.Equal(t, []int{0}, out)
}

func TestMineHardNegatives_ExcludesGivenIndices(t *testing.T) {
	anchor := []float32{1, 0}
	pool := [][]float32{{1, 0}, {0.9, 0.1}}
	out := MineHardNegatives(anchor, pool, map[int]bool{0: true}, nil, Stage{NegativeCount: 10, HardNegativeThreshold: 0.0})
	assert.Equal(t, []int{1}, out)
}

func TestMineHardNegatives_DropsPositiveAwareFalseNegatives(t *testing.T) {
	anchor := []float32{1, 0}
	pool := [][]float32{{0.99, 0.01}, {0.5, 0.5}}
	positives := [][]float32{{1, 0}} // near-identical to pool[0]
	out := MineHardNegatives(anchor, pool, nil, positives, Stage{NegativeCount: 10, HardNegativeThreshold: 0.0})
	assert.Equal(t, []int{1}, out)
}

func TestMineHardNegatives_SortsDescendingAndBoundsCount(t *testing.T) {
	anchor := []float32{1, 0}
	pool := [][]float32{{0.5, 0.1}, {0.9, 0.1}, {0.7, 0.1}}
	out := MineHardNegatives(anchor, pool, nil, nil, Stage{NegativeCount: 2, HardNegativeThreshold: 0.0})
	assert.Equal(t, []int{1, 2}, out)
}

func TestMineHardNegatives_BoundedByMaxNegatives(t *testing.T) {
	anchor := []float32{1, 0}
	pool := make([][]float32, MaxNegatives+10)
	for i := range pool {
		pool[i] = []float32{1, 0}
	}
	out := MineHardNegatives(anchor, pool, nil, nil, Stage{NegativeCount: MaxNegatives + 10, HardNegativeThreshold: 0.0})
	assert.Len(t, out, MaxNegatives)
}
