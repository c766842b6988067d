package compress

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleVector(dim int) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = float32(i) - float32(dim)/2
	}
	return v
}

func cosineSim(a, b []float32) float64 {
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

func TestTierForFrequency_MatchesThresholds(t *testing.T) {
	assert.Equal(t, TierNone, tierForFrequency(0.9))
	assert.Equal(t, TierHalf, tierForFrequency(0.7))
	assert.Equal(t, TierPQ8, tierForFrequency(0.5))
	assert.Equal(t, TierPQ4, tierForFrequency(0.3))
	assert.Equal(t, TierBinary, tierForFrequency(0.1))
}

func TestStore_Compress_NoneTierRoundTripsExactly(t *testing.T) {
	s := NewStore()
	v := sampleVector(16)
	_, err := s.Compress("a", v, 0.9, 0)
	require.NoError(t, err)

	out, err := s.Decompress("a")
	require.NoError(t, err)
	assert.Equal(t, v, out)
}

func TestStore_Compress_OtherTiersStayCosineClose(t *testing.T) {
	for _, freq := range []float64{0.7, 0.5, 0.3} {
		s := NewStore()
		v := sampleVector(32)
		_, err := s.Compress("a", v, freq, 0)
		require.NoError(t, err)

		out, err := s.Decompress("a")
		require.NoError(t, err)
		assert.Greater(t, cosineSim(v, out), 0.9)
	}
}

func TestStore_Compress_BinaryTierTruncatesAndZeroPads(t *testing.T) {
	s := NewStore()
	v := sampleVector(20)
	entry, err := s.Compress("a", v, 0.05, 0)
	require.NoError(t, err)
	assert.Equal(t, 10, entry.TruncatedDim)

	out, err := s.Decompress("a")
	require.NoError(t, err)
	require.Len(t, out, 20)
	for i := 10; i < 20; i++ {
		assert.Equal(t, float32(0), out[i])
	}
}

func TestStore_UpdateFrequency_ChangesTierOnCrossing(t *testing.T) {
	s := NewStore()
	v := sampleVector(16)
	_, err := s.Compress("a", v, 0.9, 0)
	require.NoError(t, err)

	tier, ok, err := s.UpdateFrequency("a", 0.1, 100)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, TierBinary, tier)
}

func TestStore_UpdateFrequency_SameTierOnlyUpdatesBookkeeping(t *testing.T) {
	s := NewStore()
	v := sampleVector(16)
	_, err := s.Compress("a", v, 0.9, 0)
	require.NoError(t, err)

	tier, ok, err := s.UpdateFrequency("a", 0.85, 200)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, TierNone, tier)
}

func TestStore_UpdateFrequency_UnknownID(t *testing.T) {
	s := NewStore()
	_, ok, err := s.UpdateFrequency("missing", 0.5, 0)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_CompressBatch_GroupsByTier(t *testing.T) {
	s := NewStore()
	items := map[string][]float32{"a": sampleVector(8), "b": sampleVector(8)}
	freq := map[string]float64{"a": 0.9, "b": 0.1}

	require.NoError(t, s.CompressBatch(items, freq, 0))
	stats := s.Stats()
	assert.Equal(t, 1, stats.EntriesByTier[TierNone])
	assert.Equal(t, 1, stats.EntriesByTier[TierBinary])
}

func TestStore_Stats_EstimatedSavings(t *testing.T) {
	s := NewStore()
	v := sampleVector(8)
	_, err := s.Compress("a", v, 0.9, 0) // none: 0%
	require.NoError(t, err)
	_, err = s.Compress("b", v, 0.1, 0) // binary: 96%
	require.NoError(t, err)

	stats := s.Stats()
	assert.InDelta(t, 48.0, stats.EstimatedSavingsPercent, 1e-9)
}

func TestStore_Decompress_UnknownID(t *testing.T) {
	s := NewStore()
	_, err := s.Decompress("missing")
	assert.Error(t, err)
}
