package search

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvertedIndex_AddAndSearch(t *testing.T) {
	idx := NewInvertedIndex(DefaultBM25Config())
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx, []Document{
		{ID: "doc1", Text: "the quick brown fox jumps over the lazy dog"},
		{ID: "doc2", Text: "a fast fox runs through the forest"},
		{ID: "doc3", Text: "completely unrelated content about cooking"},
	}))

	results, err := idx.Search(ctx, "fox", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	ids := []string{results[0].DocID, results[1].DocID}
	assert.Contains(t, ids, "doc1")
	assert.Contains(t, ids, "doc2")
}

func TestInvertedIndex_ScoreMatchesBM25Formula(t *testing.T) {
	idx := NewInvertedIndex(BM25Config{K1: 1.2, B: 0.75})
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx, []Document{
		{ID: "d1", Text: "alpha beta gamma"},
		{ID: "d2", Text: "alpha alpha delta epsilon zeta"},
	}))

	results, err := idx.Search(ctx, "alpha", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)

	// N=2, n=2 (both docs contain "alpha") => idf = ln((2-2+0.5)/(2+0.5)+1)
	n, N := 2.0, 2.0
	idf := math.Log((N-n+0.5)/(n+0.5) + 1)
	avgdl := (3.0 + 5.0) / 2.0

	d1Score := idf * (1.0 * 2.2) / (1.0 + 1.2*(1-0.75+0.75*3.0/avgdl))
	d2Score := idf * (2.0 * 2.2) / (2.0 + 1.2*(1-0.75+0.75*5.0/avgdl))

	var got1, got2 float64
	for _, r := range results {
		if r.DocID == "d1" {
			got1 = r.Score
		}
		if r.DocID == "d2" {
			got2 = r.Score
		}
	}
	assert.InDelta(t, d1Score, got1, 1e-9)
	assert.InDelta(t, d2Score, got2, 1e-9)
}

func TestInvertedIndex_AddSameID_RemovesThenReinserts(t *testing.T) {
	idx := NewInvertedIndex(DefaultBM25Config())
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx, []Document{{ID: "doc1", Text: "original content here"}}))
	require.NoError(t, idx.Add(ctx, []Document{{ID: "doc1", Text: "replaced words entirely"}}))

	results, err := idx.Search(ctx, "original", 10)
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = idx.Search(ctx, "replaced", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestInvertedIndex_Remove_DeletesTermsWithZeroDF(t *testing.T) {
	idx := NewInvertedIndex(DefaultBM25Config())
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx, []Document{{ID: "doc1", Text: "unique word here"}}))
	require.NoError(t, idx.Remove(ctx, []string{"doc1"}))

	idx.mu.RLock()
	_, exists := idx.postings["unique"]
	idx.mu.RUnlock()
	assert.False(t, exists)

	stats := idx.Stats()
	assert.Equal(t, 0, stats.DocumentCount)
	assert.Equal(t, 0, stats.TermCount)
}

func TestInvertedIndex_Search_EmptyQuery_ReturnsEmpty(t *testing.T) {
	idx := NewInvertedIndex(DefaultBM25Config())
	require.NoError(t, idx.Add(context.Background(), []Document{{ID: "doc1", Text: "some content"}}))

	results, err := idx.Search(context.Background(), "", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestInvertedIndex_SaveAndLoad_RoundTrips(t *testing.T) {
	idx := NewInvertedIndex(DefaultBM25Config())
	ctx := context.Background()
	require.NoError(t, idx.Add(ctx, []Document{
		{ID: "doc1", Text: "hello world"},
		{ID: "doc2", Text: "goodbye world"},
	}))

	path := filepath.Join(t.TempDir(), "bm25.idx")
	require.NoError(t, idx.Save(path))

	loaded := NewInvertedIndex(DefaultBM25Config())
	require.NoError(t, loaded.Load(path))

	results, err := loaded.Search(ctx, "world", 10)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestInvertedIndex_Load_MissingFile_LeavesIndexEmpty(t *testing.T) {
	idx := NewInvertedIndex(DefaultBM25Config())
	err := idx.Load(filepath.Join(t.TempDir(), "missing.idx"))
	require.NoError(t, err)
	assert.Equal(t, 0, idx.Stats().DocumentCount)
}

func TestInvertedIndex_AllIDs(t *testing.T) {
	idx := NewInvertedIndex(DefaultBM25Config())
	ctx := context.Background()
	require.NoError(t, idx.Add(ctx, []Document{{ID: "b"}, {ID: "a"}, {ID: "c"}}))

	ids, err := idx.AllIDs()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}
