// Package contrastive implements the InfoNCE projection learner (C5): a
// D×D linear projection and bias trained with AdamW over curriculum-
// scheduled hard-negative batches, safe for concurrent inference reads
// while a training step is in flight.
package contrastive

import (
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	coreerrors "github.com/agentmem/agentmem/internal/errors"
	"gonum.org/v1/gonum/mat"
)

// MaxBatchSize bounds the number of triples accepted by one TrainBatch call.
const MaxBatchSize = 256

// Config configures a Trainer.
type Config struct {
	Dimension    int
	Tau          float64 // temperature, [0.01, 1.0], default 0.07
	LR           float64
	Beta1        float64
	Beta2        float64
	Eps          float64
	WeightDecay  float64
	InitEpsilon  float64 // scale of the random perturbation in W = I + ε·U
	Curriculum   []Stage
}

func (c Config) withDefaults() Config {
	if c.Tau == 0 {
		c.Tau = 0.07
	}
	if c.LR == 0 {
		c.LR = 1e-3
	}
	if c.Beta1 == 0 {
		c.Beta1 = 0.9
	}
	if c.Beta2 == 0 {
		c.Beta2 = 0.999
	}
	if c.Eps == 0 {
		c.Eps = 1e-8
	}
	if c.WeightDecay == 0 {
		c.WeightDecay = 0.01
	}
	if c.InitEpsilon == 0 {
		c.InitEpsilon = 1e-3
	}
	if len(c.Curriculum) == 0 {
		c.Curriculum = DefaultCurriculum()
	}
	return c
}

// Triple is one training example: an anchor, its positive, and a set of
// negative embeddings.
type Triple struct {
	Anchor    []float32
	Positive  []float32
	Negatives [][]float32
}

// Trainer owns the projection W/b, their AdamW optimizer state, and the
// active curriculum stage.
type Trainer struct {
	mu  sync.RWMutex
	dim int
	cfg Config

	w  *mat.Dense
	b  *mat.VecDense
	mW *mat.Dense
	vW *mat.Dense
	mb *mat.VecDense
	vb *mat.VecDense
	t  int

	curriculum *Curriculum
	generation atomic.Int64
}

// New creates a Trainer whose projection is initialized W = I + ε·U
// (U uniform in [-1,1] per entry) and b = 0, using a time-seeded RNG.
func New(cfg Config) (*Trainer, error) {
	return NewWithRand(cfg, rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewWithRand is New with an explicit RNG, for deterministic construction
// in tests.
func NewWithRand(cfg Config, rng *rand.Rand) (*Trainer, error) {
	cfg = cfg.withDefaults()
	if cfg.Dimension <= 0 {
		return nil, coreerrors.ValidationError("dimension must be positive", nil)
	}
	if cfg.Tau < 0.01 || cfg.Tau > 1.0 {
		return nil, coreerrors.ValidationError("tau must be in [0.01, 1.0]", nil)
	}
	d := cfg.Dimension

	w := mat.NewDense(d, d, nil)
	for i := 0; i < d; i++ {
		for j := 0; j < d; j++ {
			v := cfg.InitEpsilon * (rng.Float64()*2 - 1)
			if i == j {
				v += 1
			}
			w.Set(i, j, v)
		}
	}

	return &Trainer{
		dim:        d,
		cfg:        cfg,
		w:          w,
		b:          mat.NewVecDense(d, nil),
		mW:         mat.NewDense(d, d, nil),
		vW:         mat.NewDense(d, d, nil),
		mb:         mat.NewVecDense(d, nil),
		vb:         mat.NewVecDense(d, nil),
		curriculum: NewCurriculum(cfg.Curriculum),
	}, nil
}

// Generation returns the current reader-visible weight generation. It
// increments after every TrainBatch call that actually updates weights.
func (tr *Trainer) Generation() int64 {
	return tr.generation.Load()
}

// Stage returns the curriculum stage currently in effect.
func (tr *Trainer) Stage() Stage {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	return tr.curriculum.Current()
}

// Project applies the current W/b to x, returning Wx+b. Safe to call
// concurrently with TrainBatch; reflects whichever generation was current
// when the read lock was acquired.
func (tr *Trainer) Project(x []float32) ([]float32, error) {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	if len(x) != tr.dim {
		return nil, coreerrors.DimMismatchError("projection input dimension mismatch", nil)
	}
	return tr.projectLocked(x), nil
}

func (tr *Trainer) projectLocked(x []float32) []float32 {
	xv := mat.NewVecDense(tr.dim, toFloat64(x))
	var out mat.VecDense
	out.MulVec(tr.w, xv)
	out.AddVec(&out, tr.b)
	return toFloat32(out.RawVector().Data)
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}
