package federated

import (
	"math/rand"
	"time"

	coreerrors "github.com/agentmem/agentmem/internal/errors"
	"gonum.org/v1/gonum/mat"
)

// Adapter is a LoRA-style low-rank additive projection: delta(x) =
// (alpha/rank)·A·(B·x), where A is D×r and B is r×D.
type Adapter struct {
	Rank  int
	Alpha float64
	a     *mat.Dense // D x r
	b     *mat.Dense // r x D
	dim   int
}

// NewAdapter creates a rank-r adapter for embeddings of size dim. A is
// initialized from small random values and B to zero (the standard LoRA
// convention), so the adapter starts as a no-op.
func NewAdapter(dim, rank int, alpha float64, rng *rand.Rand) (*Adapter, error) {
	if dim <= 0 {
		return nil, coreerrors.ValidationError("adapter dimension must be positive", nil)
	}
	if rank <= 0 || rank > dim {
		return nil, coreerrors.ValidationError("adapter rank must be in (0, dimension]", nil)
	}
	if alpha == 0 {
		alpha = 1.0
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	aData := make([]float64, dim*rank)
	for i := range aData {
		aData[i] = (rng.Float64()*2 - 1) * 0.01
	}

	return &Adapter{
		Rank:  rank,
		Alpha: alpha,
		a:     mat.NewDense(dim, rank, aData),
		b:     mat.NewDense(rank, dim, nil), // zero-initialized: starts as a no-op
		dim:   dim,
	}, nil
}

// Apply returns x + (alpha/rank)·A·B·x.
func (ad *Adapter) Apply(x []float32) ([]float32, error) {
	if len(x) != ad.dim {
		return nil, coreerrors.DimMismatchError("adapter input dimension mismatch", nil)
	}
	xv := mat.NewVecDense(ad.dim, toFloat64(x))

	var bx mat.VecDense
	bx.MulVec(ad.b, xv)

	var abx mat.VecDense
	abx.MulVec(ad.a, &bx)

	scale := ad.Alpha / float64(ad.Rank)
	out := make([]float32, ad.dim)
	for i := 0; i < ad.dim; i++ {
		out[i] = x[i] + float32(scale*abx.AtVec(i))
	}
	return out, nil
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}
