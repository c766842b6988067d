package contrastive

// Stage is one curriculum step: how many negatives to mine, the minimum
// hardness (cosine similarity to the anchor) a negative must meet, and
// how many batches to spend at this stage before advancing.
type Stage struct {
	NegativeCount         int
	HardNegativeThreshold float64
	Batches               int
}

// DefaultCurriculum returns the spec-default three-stage schedule.
func DefaultCurriculum() []Stage {
	return []Stage{
		{NegativeCount: 4, HardNegativeThreshold: 0.5, Batches: 100},
		{NegativeCount: 8, HardNegativeThreshold: 0.3, Batches: 100},
		{NegativeCount: 16, HardNegativeThreshold: 0.1, Batches: 100},
	}
}

// Curriculum tracks progress through an ordered list of stages. It never
// regresses: once a stage's batch budget is spent, it advances and stays
// at the final stage once exhausted.
type Curriculum struct {
	stages    []Stage
	index     int
	batchesIn int
}

// NewCurriculum returns a Curriculum starting at stage 0.
func NewCurriculum(stages []Stage) *Curriculum {
	if len(stages) == 0 {
		stages = DefaultCurriculum()
	}
	return &Curriculum{stages: stages}
}

// Current returns the active stage.
func (c *Curriculum) Current() Stage {
	return c.stages[c.index]
}

// RecordBatch accounts for one completed training batch at the current
// stage, advancing to the next stage once its budget is met.
func (c *Curriculum) RecordBatch() {
	c.batchesIn++
	if c.batchesIn >= c.stages[c.index].Batches && c.index < len(c.stages)-1 {
		c.index++
		c.batchesIn = 0
	}
}
