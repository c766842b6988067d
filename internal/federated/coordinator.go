package federated

import (
	"sort"
	"sync"

	coreerrors "github.com/agentmem/agentmem/internal/errors"
)

// DefaultConsolidateThreshold is how many aggregated trajectories
// accumulate before ShouldConsolidate reports true.
const DefaultConsolidateThreshold = 20

// DefaultWarmStartPatterns is how many patterns a warm-started session
// receives by default.
const DefaultWarmStartPatterns = 5

// CoordinatorConfig configures a Coordinator.
type CoordinatorConfig struct {
	ConsolidateThreshold int
	WarmStartPatterns    int
	DefaultAdapterRank   int
	DefaultAdapterAlpha  float64
	Dimension            int
}

func (c CoordinatorConfig) withDefaults() CoordinatorConfig {
	if c.ConsolidateThreshold <= 0 {
		c.ConsolidateThreshold = DefaultConsolidateThreshold
	}
	if c.WarmStartPatterns <= 0 {
		c.WarmStartPatterns = DefaultWarmStartPatterns
	}
	if c.DefaultAdapterRank <= 0 {
		c.DefaultAdapterRank = 8
	}
	if c.DefaultAdapterAlpha == 0 {
		c.DefaultAdapterAlpha = 1.0
	}
	return c
}

// Coordinator owns the cross-session pattern store and the named LoRA
// adapters, and aggregates ended sessions' trajectories into patterns.
type Coordinator struct {
	mu       sync.RWMutex
	cfg      CoordinatorConfig
	patterns []Pattern

	adapters      map[string]*Adapter
	activeAdapter string

	trajectoriesSinceConsolidation int
}

// NewCoordinator returns a Coordinator with one active "default" LoRA
// adapter, when a positive Dimension is configured.
func NewCoordinator(cfg CoordinatorConfig) (*Coordinator, error) {
	cfg = cfg.withDefaults()
	c := &Coordinator{
		cfg:      cfg,
		adapters: make(map[string]*Adapter),
	}
	if cfg.Dimension > 0 {
		adapter, err := NewAdapter(cfg.Dimension, cfg.DefaultAdapterRank, cfg.DefaultAdapterAlpha, nil)
		if err != nil {
			return nil, err
		}
		c.adapters["default"] = adapter
		c.activeAdapter = "default"
	}
	return c, nil
}

// BeginSession validates agentID and returns a handle that optionally
// starts warm with up to WarmStartPatterns patterns drawn from the
// coordinator.
func (c *Coordinator) BeginSession(agentID string, warmStart bool, capacity int) (*SessionHandle, error) {
	if err := ValidateAgentID(agentID); err != nil {
		return nil, err
	}
	if capacity <= 0 {
		capacity = DefaultTrajectoryCapacity
	}
	if capacity > MaxTrajectoryCapacity {
		return nil, coreerrors.ValidationError("trajectory capacity exceeds the maximum", nil)
	}

	var initial []Pattern
	if warmStart {
		initial = c.topPatterns(c.cfg.WarmStartPatterns)
	}

	return &SessionHandle{
		coordinator:     c,
		agentID:         agentID,
		capacity:        capacity,
		initialPatterns: initial,
		trajectory:      Trajectory{SessionID: agentID},
	}, nil
}

func (c *Coordinator) topPatterns(n int) []Pattern {
	c.mu.RLock()
	defer c.mu.RUnlock()
	sorted := append([]Pattern(nil), c.patterns...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Weight > sorted[j].Weight })
	if n > len(sorted) {
		n = len(sorted)
	}
	out := make([]Pattern, n)
	copy(out, sorted[:n])
	return out
}

// Aggregate folds a completed trajectory's steps into the pattern store,
// returning the number of patterns created or updated.
func (c *Coordinator) Aggregate(traj Trajectory) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	learned := 0
	for _, step := range traj.Steps {
		matched := -1
		bestSim := similarMatchThreshold
		for i, p := range c.patterns {
			if p.RouteLabel != traj.RouteLabel {
				continue
			}
			sim := cosineSimilarity(p.Centroid, step.Activation)
			if sim >= bestSim {
				bestSim = sim
				matched = i
			}
		}
		if matched >= 0 {
			merged, weight := weightedMerge(c.patterns[matched].Centroid, c.patterns[matched].Weight, step.Activation, 1)
			c.patterns[matched].Centroid = merged
			c.patterns[matched].Weight = weight
			c.patterns[matched].ID = fingerprint(merged, traj.RouteLabel)
		} else {
			c.patterns = append(c.patterns, Pattern{
				ID:         fingerprint(step.Activation, traj.RouteLabel),
				Centroid:   append([]float32(nil), step.Activation...),
				Weight:     1,
				RouteLabel: traj.RouteLabel,
			})
		}
		learned++
	}

	c.trajectoriesSinceConsolidation++
	return learned
}

// ShouldConsolidate reports whether enough trajectories have aggregated
// since the last consolidation to warrant merging similar patterns.
func (c *Coordinator) ShouldConsolidate() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.trajectoriesSinceConsolidation >= c.cfg.ConsolidateThreshold
}

// Consolidate merges patterns whose centroids are cosine-similar above
// mergeThreshold, reducing the pattern store and resetting the
// consolidation counter.
func (c *Coordinator) Consolidate() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	merged := 0
	var out []Pattern
	used := make([]bool, len(c.patterns))
	for i, p := range c.patterns {
		if used[i] {
			continue
		}
		acc := p
		for j := i + 1; j < len(c.patterns); j++ {
			if used[j] || c.patterns[j].RouteLabel != acc.RouteLabel {
				continue
			}
			if cosineSimilarity(acc.Centroid, c.patterns[j].Centroid) >= mergeThreshold {
				acc.Centroid, acc.Weight = weightedMerge(acc.Centroid, acc.Weight, c.patterns[j].Centroid, c.patterns[j].Weight)
				acc.ID = fingerprint(acc.Centroid, acc.RouteLabel)
				used[j] = true
				merged++
			}
		}
		out = append(out, acc)
	}
	c.patterns = out
	c.trajectoriesSinceConsolidation = 0
	return merged
}

// Patterns returns a snapshot of the current pattern store.
func (c *Coordinator) Patterns() []Pattern {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Pattern(nil), c.patterns...)
}

// CreateAdapter registers a new named LoRA adapter without activating it.
func (c *Coordinator) CreateAdapter(name string, rank int, alpha float64) error {
	if name == "" {
		return coreerrors.ValidationError("adapter name must not be empty", nil)
	}
	adapter, err := NewAdapter(c.cfg.Dimension, rank, alpha, nil)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.adapters[name] = adapter
	return nil
}

// ActivateAdapter switches the coordinator's active adapter.
func (c *Coordinator) ActivateAdapter(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.adapters[name]; !ok {
		return coreerrors.NotFoundError("no adapter registered under that name", nil)
	}
	c.activeAdapter = name
	return nil
}

// Apply projects vec through the active adapter's low-rank delta, or
// returns vec unchanged when no adapter is active.
func (c *Coordinator) Apply(vec []float32) ([]float32, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.activeAdapter == "" {
		return vec, nil
	}
	return c.adapters[c.activeAdapter].Apply(vec)
}
