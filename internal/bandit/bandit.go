// Package bandit implements the contextual Thompson-sampling arm
// selector (C9) used by the compressor and the contrastive trainer to
// pick tiers and mining strategies under a cost budget.
package bandit

import (
	"time"

	coreerrors "github.com/agentmem/agentmem/internal/errors"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// DefaultExplorationBonus is added to the uniform sample given to arms
// never seen in a context, biasing early exploration toward them.
const DefaultExplorationBonus = 0.2

// DefaultCostWeight and DefaultCostDecay govern how an arm's cost EMA
// discounts its sampled score.
const (
	DefaultCostWeight = 1.0
	DefaultCostDecay  = 0.1
)

// DefaultMaxContexts bounds the number of distinct context keys tracked
// at once; the least-recently-used context is evicted beyond this.
const DefaultMaxContexts = 10000

// ArmStats is one arm's Beta(α,β) posterior, pull count, and cost EMA
// within a context.
type ArmStats struct {
	Alpha    float64
	Beta     float64
	Pulls    int
	CostEMA  float64
}

// Config configures a Bandit.
type Config struct {
	ExplorationBonus float64
	CostWeight       float64
	CostDecay        float64
	MaxContexts      int
}

func (c Config) withDefaults() Config {
	if c.ExplorationBonus == 0 {
		c.ExplorationBonus = DefaultExplorationBonus
	}
	if c.CostWeight == 0 {
		c.CostWeight = DefaultCostWeight
	}
	if c.CostDecay == 0 {
		c.CostDecay = DefaultCostDecay
	}
	if c.MaxContexts <= 0 {
		c.MaxContexts = DefaultMaxContexts
	}
	return c
}

type contextArms map[string]*ArmStats

// Bandit holds per-(context, arm) Thompson-sampling posteriors bounded to
// the most recently used contexts.
type Bandit struct {
	cfg      Config
	contexts *lru.Cache[string, contextArms]
	rng      *rand.Rand
}

// New creates a Bandit with a time-seeded RNG.
func New(cfg Config) (*Bandit, error) {
	return NewWithRand(cfg, rand.New(rand.NewSource(uint64(time.Now().UnixNano()))))
}

// NewWithRand is New with an explicit RNG, for deterministic tests.
func NewWithRand(cfg Config, rng *rand.Rand) (*Bandit, error) {
	cfg = cfg.withDefaults()
	cache, err := lru.New[string, contextArms](cfg.MaxContexts)
	if err != nil {
		return nil, coreerrors.InternalError("failed to create context cache", err)
	}
	return &Bandit{cfg: cfg, contexts: cache, rng: rng}, nil
}

// SelectArm scores every candidate arm in ctx via Thompson sampling and
// returns the argmax. Arms never recorded in this context sample from
// U(0,1)+ExplorationBonus instead of a Beta posterior.
func (b *Bandit) SelectArm(ctx string, arms []string) (string, error) {
	if len(arms) == 0 {
		return "", coreerrors.ValidationError("arms must not be empty", nil)
	}

	known, _ := b.contexts.Get(ctx)

	best := ""
	bestScore := 0.0
	for i, arm := range arms {
		var sample float64
		var costEMA float64
		if known != nil {
			if stats, ok := known[arm]; ok {
				sample = sampleBeta(stats.Alpha, stats.Beta, b.rng)
				costEMA = stats.CostEMA
			} else {
				sample = b.rng.Float64() + b.cfg.ExplorationBonus
			}
		} else {
			sample = b.rng.Float64() + b.cfg.ExplorationBonus
		}

		score := sample - b.cfg.CostWeight*costEMA
		if i == 0 || score > bestScore {
			bestScore = score
			best = arm
		}
	}
	return best, nil
}

// RecordReward updates the (ctx, arm) posterior: α += reward,
// β += 1−reward, pulls += 1, and folds cost into the EMA when provided.
func (b *Bandit) RecordReward(ctx, arm string, reward float64, cost *float64) error {
	if reward < 0 || reward > 1 {
		return coreerrors.ValidationError("reward must be in [0, 1]", nil)
	}

	known, ok := b.contexts.Get(ctx)
	if !ok {
		known = make(contextArms)
	}
	stats, ok := known[arm]
	if !ok {
		stats = &ArmStats{Alpha: 1, Beta: 1}
		known[arm] = stats
	}

	stats.Alpha += reward
	stats.Beta += 1 - reward
	stats.Pulls++
	if cost != nil {
		stats.CostEMA = (1-b.cfg.CostDecay)*stats.CostEMA + b.cfg.CostDecay*(*cost)
	}

	b.contexts.Add(ctx, known)
	return nil
}

// sampleBeta draws from Beta(alpha, beta) via gonum's distuv, which
// selects Jöhnk's method for small shape parameters and a gamma-ratio
// (Marsaglia-Tsang) construction otherwise. distuv.Beta.Src wants
// golang.org/x/exp/rand's Source (Uint64/Seed), which *rand.Rand
// satisfies directly, so it is passed straight through.
func sampleBeta(alpha, beta float64, rng *rand.Rand) float64 {
	d := distuv.Beta{Alpha: alpha, Beta: beta, Src: rng}
	return d.Rand()
}
