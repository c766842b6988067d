package contrastive

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unitVector(dim int, rng *rand.Rand) []float32 {
	v := make([]float32, dim)
	var sum float64
	for i := range v {
		f := rng.Float64()*2 - 1
		v[i] = float32(f)
		sum += f * f
	}
	n := float32(math.Sqrt(sum))
	if n == 0 {
		n = 1
	}
	for i := range v {
		v[i] /= n
	}
	return v
}

func TestNew_RejectsNonPositiveDimension(t *testing.T) {
	_, err := New(Config{Dimension: 0})
	assert.Error(t, err)
}

func TestNew_RejectsOutOfRangeTau(t *testing.T) {
	_, err := New(Config{Dimension: 4, Tau: 2.0})
	assert.Error(t, err)
}

func TestProject_RejectsDimensionMismatch(t *testing.T) {
	tr, err := New(Config{Dimension: 4})
	require.NoError(t, err)
	_, err = tr.Project([]float32{1, 2, 3})
	assert.Error(t, err)
}

func TestProject_NearIdentityAtInit(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	tr, err := NewWithRand(Config{Dimension: 8, InitEpsilon: 1e-6}, rng)
	require.NoError(t, err)

	x := unitVector(8, rng)
	out, err := tr.Project(x)
	require.NoError(t, err)
	for i := range x {
		assert.InDelta(t, x[i], out[i], 1e-3)
	}
}

func TestTrainBatch_RejectsEmptyBatch(t *testing.T) {
	tr, err := New(Config{Dimension: 4})
	require.NoError(t, err)
	_, err = tr.TrainBatch(nil)
	assert.Error(t, err)
}

func TestTrainBatch_RejectsOversizeBatch(t *testing.T) {
	tr, err := New(Config{Dimension: 2})
	require.NoError(t, err)
	triples := make([]Triple, MaxBatchSize+1)
	for i := range triples {
		triples[i] = Triple{Anchor: []float32{1, 0}, Positive: []float32{1, 0}, Negatives: [][]float32{{0, 1}}}
	}
	_, err = tr.TrainBatch(triples)
	assert.Error(t, err)
}

func TestTrainBatch_RejectsDimensionMismatch(t *testing.T) {
	tr, err := New(Config{Dimension: 2})
	require.NoError(t, err)
	_, err = tr.TrainBatch([]Triple{{Anchor: []float32{1, 0, 0}, Positive: []float32{1, 0}}})
	assert.Error(t, err)
}

func TestTrainBatch_IncrementsGenerationAndCurriculum(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	tr, err := NewWithRand(Config{Dimension: 4}, rng)
	require.NoError(t, err)

	triple := Triple{
		Anchor:    unitVector(4, rng),
		Positive:  unitVector(4, rng),
		Negatives: [][]float32{unitVector(4, rng)},
	}
	_, err = tr.TrainBatch([]Triple{triple})
	require.NoError(t, err)
	assert.Equal(t, int64(1), tr.Generation())
	assert.Equal(t, 1, tr.curriculum.batchesIn)
}

func TestTrainBatch_InfoNCELossDecreasesOverTraining(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	dim := 8
	tr, err := NewWithRand(Config{Dimension: dim, InitEpsilon: 1e-3}, rng)
	require.NoError(t, err)

	makeTriple := func() Triple {
		a := unitVector(dim, rng)
		p := make([]float32, dim)
		for i := range a {
			u := unitVector(dim, rng)
			p[i] = a[i] + 0.01*u[i]
		}
		negs := make([][]float32, 4)
		for i := range negs {
			negs[i] = unitVector(dim, rng)
		}
		return Triple{Anchor: a, Positive: p, Negatives: negs}
	}

	var losses []float64
	for i := 0; i < 200; i++ {
		loss, err := tr.TrainBatch([]Triple{makeTriple()})
		require.NoError(t, err)
		losses = append(losses, loss)
	}

	first20 := average(losses[:20])
	last20 := average(losses[len(losses)-20:])
	assert.Less(t, last20, first20)
}

func average(v []float64) float64 {
	var sum float64
	for _, f := range v {
		sum += f
	}
	return sum / float64(len(v))
}

func TestCurriculum_AdvancesAfterBatchBudgetAndNeverRegresses(t *testing.T) {
	c := NewCurriculum([]Stage{
		{NegativeCount: 1, HardNegativeThreshold: 0.5, Batches: 2},
		{NegativeCount: 2, HardNegativeThreshold: 0.3, Batches: 1},
	})
	assert.Equal(t, 1, c.Current().NegativeCount)
	c.RecordBatch()
	assert.Equal(t, 1, c.Current().NegativeCount)
	c.RecordBatch()
	assert.Equal(t, 2, c.Current().NegativeCount)
	c.RecordBatch()
	assert.Equal(t, 2, c.Current().NegativeCount) // stays at final stage
}
