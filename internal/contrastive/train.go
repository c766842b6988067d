package contrastive

import (
	"math"

	coreerrors "github.com/agentmem/agentmem/internal/errors"
)

// TrainBatch runs one InfoNCE + AdamW step over triples, updating W/b
// in place and returning the average per-triple loss. It accepts at most
// MaxBatchSize triples and requires every embedding to match the
// trainer's dimension.
func (tr *Trainer) TrainBatch(triples []Triple) (float64, error) {
	if len(triples) == 0 {
		return 0, coreerrors.ValidationError("training batch must not be empty", nil)
	}
	if len(triples) > MaxBatchSize {
		return 0, coreerrors.ValidationError("training batch exceeds the maximum batch size", nil)
	}

	tr.mu.Lock()
	defer tr.mu.Unlock()

	d := tr.dim
	tau := tr.cfg.Tau

	gradW := make([]float64, d*d)
	gradB := make([]float64, d)
	totalLoss := 0.0

	for _, triple := range triples {
		if len(triple.Anchor) != d || len(triple.Positive) != d {
			return 0, coreerrors.DimMismatchError("triple dimension mismatch", nil)
		}
		for _, n := range triple.Negatives {
			if len(n) != d {
				return 0, coreerrors.DimMismatchError("negative dimension mismatch", nil)
			}
		}

		a := tr.projectLocked(triple.Anchor)
		p := tr.projectLocked(triple.Positive)
		negs := make([][]float32, len(triple.Negatives))
		for i, n := range triple.Negatives {
			negs[i] = tr.projectLocked(n)
		}

		af64 := toFloat64(a)
		pf64 := toFloat64(p)
		negsf64 := make([][]float64, len(negs))
		for i, n := range negs {
			negsf64[i] = toFloat64(n)
		}

		na := norm(af64)
		np := norm(pf64)
		sPos := cosine(af64, pf64, na, np)

		nNegs := make([]float64, len(negsf64))
		sNegs := make([]float64, len(negsf64))
		for i, n := range negsf64 {
			nNegs[i] = norm(n)
			sNegs[i] = cosine(af64, n, na, nNegs[i])
		}

		logitPos := sPos / tau
		maxLogit := logitPos
		logitsNeg := make([]float64, len(sNegs))
		for i, s := range sNegs {
			logitsNeg[i] = s / tau
			if logitsNeg[i] > maxLogit {
				maxLogit = logitsNeg[i]
			}
		}

		expPos := math.Exp(logitPos - maxLogit)
		z := expPos
		expNegs := make([]float64, len(logitsNeg))
		for i, l := range logitsNeg {
			expNegs[i] = math.Exp(l - maxLogit)
			z += expNegs[i]
		}

		loss := -math.Log(expPos/z + 1e-300)
		totalLoss += loss

		weightPos := (expPos/z - 1) / tau
		weightNegs := make([]float64, len(expNegs))
		for i, e := range expNegs {
			weightNegs[i] = (e / z) / tau
		}

		dA := cosineGradA(af64, pf64, na, np, sPos, weightPos)
		dP := cosineGradB(af64, pf64, na, np, sPos, weightPos)
		dNegs := make([][]float64, len(negsf64))
		for i, n := range negsf64 {
			gA := cosineGradA(af64, n, na, nNegs[i], sNegs[i], weightNegs[i])
			for j := range dA {
				dA[j] += gA[j]
			}
			dNegs[i] = cosineGradB(af64, n, na, nNegs[i], sNegs[i], weightNegs[i])
		}

		accumulateOuter(gradW, dA, toFloat64(triple.Anchor), d)
		accumulateOuter(gradW, dP, toFloat64(triple.Positive), d)
		for i, n := range triple.Negatives {
			accumulateOuter(gradW, dNegs[i], toFloat64(n), d)
		}
		for i := 0; i < d; i++ {
			gradB[i] += dA[i]
		}
	}

	batchSize := float64(len(triples))
	for i := range gradW {
		gradW[i] /= batchSize
	}
	for i := range gradB {
		gradB[i] /= batchSize
	}

	tr.applyAdamW(gradW, gradB)
	tr.curriculum.RecordBatch()
	tr.generation.Add(1)

	return totalLoss / batchSize, nil
}

// applyAdamW performs one AdamW update on W and b given their averaged
// gradients, in place, with decoupled weight decay.
func (tr *Trainer) applyAdamW(gradW, gradB []float64) {
	tr.t++
	beta1, beta2, eps, lr, wd := tr.cfg.Beta1, tr.cfg.Beta2, tr.cfg.Eps, tr.cfg.LR, tr.cfg.WeightDecay
	bc1 := 1 - math.Pow(beta1, float64(tr.t))
	bc2 := 1 - math.Pow(beta2, float64(tr.t))

	d := tr.dim
	for i := 0; i < d; i++ {
		for j := 0; j < d; j++ {
			idx := i*d + j
			g := gradW[idx]
			m := beta1*tr.mW.At(i, j) + (1-beta1)*g
			v := beta2*tr.vW.At(i, j) + (1-beta2)*g*g
			tr.mW.Set(i, j, m)
			tr.vW.Set(i, j, v)
			mHat := m / bc1
			vHat := v / bc2
			w := tr.w.At(i, j)
			w -= lr * (mHat/(math.Sqrt(vHat)+eps) + wd*w)
			tr.w.Set(i, j, w)
		}
	}

	for i := 0; i < d; i++ {
		g := gradB[i]
		m := beta1*tr.mb.AtVec(i) + (1-beta1)*g
		v := beta2*tr.vb.AtVec(i) + (1-beta2)*g*g
		tr.mb.SetVec(i, m)
		tr.vb.SetVec(i, v)
		mHat := m / bc1
		vHat := v / bc2
		bv := tr.b.AtVec(i)
		bv -= lr * (mHat/(math.Sqrt(vHat)+eps) + wd*bv)
		tr.b.SetVec(i, bv)
	}
}

func norm(v []float64) float64 {
	var sum float64
	for _, f := range v {
		sum += f * f
	}
	return math.Sqrt(sum)
}

func cosine(a, b []float64, na, nb float64) float64 {
	if na == 0 || nb == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += a[i] * b[i]
	}
	return dot / (na * nb)
}

// cosineGradA returns weight * d sim(a,b)/da.
func cosineGradA(a, b []float64, na, nb, sim, weight float64) []float64 {
	out := make([]float64, len(a))
	if na == 0 || nb == 0 {
		return out
	}
	denom := na * nb
	na2 := na * na
	for i := range a {
		out[i] = weight * (b[i]/denom - sim*a[i]/na2)
	}
	return out
}

// cosineGradB returns weight * d sim(a,b)/db.
func cosineGradB(a, b []float64, na, nb, sim, weight float64) []float64 {
	out := make([]float64, len(b))
	if na == 0 || nb == 0 {
		return out
	}
	denom := na * nb
	nb2 := nb * nb
	for i := range b {
		out[i] = weight * (a[i]/denom - sim*b[i]/nb2)
	}
	return out
}

// accumulateOuter adds weight * outer(dOut, x) into gradW (row-major D×D).
func accumulateOuter(gradW []float64, dOut, x []float64, d int) {
	for i := 0; i < d; i++ {
		if dOut[i] == 0 {
			continue
		}
		row := i * d
		for j := 0; j < d; j++ {
			gradW[row+j] += dOut[i] * x[j]
		}
	}
}
