package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFuse_EmptyBothSources_ReturnsEmptySlice(t *testing.T) {
	results := Fuse(nil, nil, DefaultWeights(), FusionRRF, 60)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestFuse_SingleKeywordSource_PassesThroughNormalized(t *testing.T) {
	keyword := []Match{
		{DocID: "a", Score: 4.0},
		{DocID: "b", Score: 2.0},
	}
	results := Fuse(keyword, nil, DefaultWeights(), FusionRRF, 60)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
	assert.InDelta(t, 0.5, results[1].Score, 1e-9)
}

func TestFuse_SingleVectorSource_PassesThroughNormalized(t *testing.T) {
	vector := []VectorMatch{
		{ID: "a", Similarity: 0.9},
		{ID: "b", Similarity: 0.3},
	}
	results := Fuse(nil, vector, DefaultWeights(), FusionRRF, 60)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
}

func TestFuse_RRF_CombinesBothSources(t *testing.T) {
	keyword := []Match{{DocID: "a", Score: 5.0}, {DocID: "b", Score: 1.0}}
	vector := []VectorMatch{{ID: "b", Similarity: 0.95}, {ID: "a", Similarity: 0.4}}

	results := Fuse(keyword, vector, Weights{Vector: 0.5, Keyword: 0.5}, FusionRRF, 60)
	require.Len(t, results, 2)

	// "a" ranks 1st in keyword, 2nd in vector; "b" ranks 2nd in keyword, 1st in vector.
	// Both appear in both lists with symmetric rank sums, so scores tie and
	// the vector-rank tie-break puts "b" first.
	for _, r := range results {
		assert.True(t, r.InBothLists)
	}
	assert.Equal(t, 1.0, results[0].Score)
}

func TestFuse_RRF_DocOnlyInOneList(t *testing.T) {
	keyword := []Match{{DocID: "a", Score: 5.0}}
	vector := []VectorMatch{{ID: "b", Similarity: 0.9}}

	results := Fuse(keyword, vector, Weights{Vector: 0.5, Keyword: 0.5}, FusionRRF, 60)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.False(t, r.InBothLists)
	}
}

func TestFuse_Linear_MinMaxNormalizesAndWeights(t *testing.T) {
	keyword := []Match{{DocID: "a", Score: 10.0}, {DocID: "b", Score: 5.0}}
	vector := []VectorMatch{{ID: "a", Similarity: 1.0}, {ID: "b", Similarity: 0.5}}

	results := Fuse(keyword, vector, Weights{Vector: 0.6, Keyword: 0.4}, FusionLinear, 60)
	require.Len(t, results, 2)

	var a, b *HybridResult
	for i := range results {
		switch results[i].ID {
		case "a":
			a = &results[i]
		case "b":
			b = &results[i]
		}
	}
	require.NotNil(t, a)
	require.NotNil(t, b)
	assert.InDelta(t, 0.6*1.0+0.4*1.0, a.Score, 1e-9)
	assert.InDelta(t, 0.6*0.5+0.4*0.5, b.Score, 1e-9)
}

func TestFuse_Max_TakesHigherWeightedSource(t *testing.T) {
	keyword := []Match{{DocID: "a", Score: 10.0}}
	vector := []VectorMatch{{ID: "a", Similarity: 1.0}}

	results := Fuse(keyword, vector, Weights{Vector: 0.9, Keyword: 0.1}, FusionMax, 60)
	require.Len(t, results, 1)
	assert.InDelta(t, 0.9, results[0].Score, 1e-9)
}

func TestSourceLimit_CapsAtSpecMax(t *testing.T) {
	assert.Equal(t, 30, SourceLimit(10))
	assert.Equal(t, 1000, SourceLimit(1000))
	assert.Equal(t, 1, SourceLimit(0))
}
