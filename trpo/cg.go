package trpo

import (
	"fmt"

	"github.com/ZZCzyh/NS-CQA/tensor"
)

// ConjugateGradient approximately solves H x = b for a symmetric
// positive-definite operator given only as a matrix-vector product. It runs
// at most iters iterations, stopping early once the squared residual drops
// below residualTol.
func ConjugateGradient(hvp func(v []float64) ([]float64, error), b []float64, iters int, residualTol float64) ([]float64, error) {
	x := make([]float64, len(b))
	r := append([]float64(nil), b...)
	p := append([]float64(nil), b...)
	rdotr := tensor.VecDot(r, r)
	for i := 0; i < iters && rdotr > residualTol; i++ {
		z, err := hvp(p)
		if err != nil {
			return nil, fmt.Errorf("trpo: cg iteration %d: %w", i, err)
		}
		pz := tensor.VecDot(p, z)
		if pz == 0 {
			break
		}
		alpha := rdotr / pz
		tensor.VecAxpy(x, alpha, p)
		tensor.VecAxpy(r, -alpha, z)
		newRdotr := tensor.VecDot(r, r)
		beta := newRdotr / rdotr
		for j := range p {
			p[j] = r[j] + beta*p[j]
		}
		rdotr = newRdotr
	}
	return x, nil
}
