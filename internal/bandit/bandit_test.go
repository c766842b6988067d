package bandit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

func TestSelectArm_RejectsEmptyArms(t *testing.T) {
	b, err := New(Config{})
	require.NoError(t, err)
	_, err = b.SelectArm("ctx", nil)
	assert.Error(t, err)
}

func TestRecordReward_RejectsOutOfRangeReward(t *testing.T) {
	b, err := New(Config{})
	require.NoError(t, err)
	assert.Error(t, b.RecordReward("ctx", "a", 1.5, nil))
	assert.Error(t, b.RecordReward("ctx", "a", -0.1, nil))
}

func TestRecordReward_UpdatesPosteriorAndPulls(t *testing.T) {
	b, err := New(Config{})
	require.NoError(t, err)

	require.NoError(t, b.RecordReward("ctx", "a", 1.0, nil))
	require.NoError(t, b.RecordReward("ctx", "a", 0.0, nil))

	arms, ok := b.contexts.Get("ctx")
	require.True(t, ok)
	stats := arms["a"]
	assert.Equal(t, 2, stats.Pulls)
	assert.InDelta(t, 2.0, stats.Alpha, 1e-9) // 1 (prior) + 1.0 + 0.0
	assert.InDelta(t, 2.0, stats.Beta, 1e-9)  // 1 (prior) + 0.0 + 1.0
}

func TestRecordReward_BetaParamsStayAtLeastOne(t *testing.T) {
	b, err := New(Config{})
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		reward := float64(i%2) // alternates 0 and 1
		require.NoError(t, b.RecordReward("ctx", "a", reward, nil))
		arms, _ := b.contexts.Get("ctx")
		assert.GreaterOrEqual(t, arms["a"].Alpha, 1.0)
		assert.GreaterOrEqual(t, arms["a"].Beta, 1.0)
	}
}

func TestRecordReward_UpdatesCostEMA(t *testing.T) {
	b, err := New(Config{CostDecay: 0.5})
	require.NoError(t, err)
	c1, c2 := 1.0, 3.0
	require.NoError(t, b.RecordReward("ctx", "a", 0.5, &c1))
	require.NoError(t, b.RecordReward("ctx", "a", 0.5, &c2))

	arms, _ := b.contexts.Get("ctx")
	// ema0=0 -> 0.5*0+0.5*1=0.5 -> 0.5*0.5+0.5*3=1.75
	assert.InDelta(t, 1.75, arms["a"].CostEMA, 1e-9)
}

func TestSelectArm_PrefersArmWithHigherLearnedReward(t *testing.T) {
	b, err := NewWithRand(Config{}, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	for i := 0; i < 200; i++ {
		require.NoError(t, b.RecordReward("ctx", "good", 1.0, nil))
		require.NoError(t, b.RecordReward("ctx", "bad", 0.0, nil))
	}

	counts := map[string]int{}
	for i := 0; i < 50; i++ {
		arm, err := b.SelectArm("ctx", []string{"good", "bad"})
		require.NoError(t, err)
		counts[arm]++
	}
	assert.Greater(t, counts["good"], counts["bad"])
}

func TestSerializeDeserialize_RoundTripsPosteriors(t *testing.T) {
	b, err := New(Config{})
	require.NoError(t, err)
	require.NoError(t, b.RecordReward("ctx", "a", 0.7, nil))

	data, err := b.Serialize()
	require.NoError(t, err)

	loaded, err := Deserialize(data)
	require.NoError(t, err)

	arms, ok := loaded.contexts.Get("ctx")
	require.True(t, ok)
	assert.InDelta(t, 1.7, arms["a"].Alpha, 1e-9)
}

func TestLoad_MissingFileIsNotFatal(t *testing.T) {
	b, err := New(Config{})
	require.NoError(t, err)
	assert.NoError(t, b.Load(t.TempDir()+"/missing.json"))
}

func TestSaveAndLoad_RoundTrips(t *testing.T) {
	b, err := New(Config{})
	require.NoError(t, err)
	require.NoError(t, b.RecordReward("ctx", "a", 0.9, nil))

	path := t.TempDir() + "/bandit.json"
	require.NoError(t, b.Save(path))

	loaded, err := New(Config{})
	require.NoError(t, err)
	require.NoError(t, loaded.Load(path))

	arms, ok := loaded.contexts.Get("ctx")
	require.True(t, ok)
	assert.InDelta(t, 1.9, arms["a"].Alpha, 1e-9)
}
