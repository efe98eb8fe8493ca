package trainer

import (
	"fmt"
	"math"

	"github.com/ZZCzyh/NS-CQA/tensor"
)

// Adam is the adaptive-moment-estimation outer optimizer. It updates the
// parameter storage in place; this is a defined mutation point of the
// shared parameters.
type Adam struct {
	lr, beta1, beta2, eps float64

	step int
	m, v [][]float64
}

// NewAdam returns an Adam optimizer with the usual moment decays.
func NewAdam(lr, eps float64) *Adam {
	if lr <= 0 {
		lr = 0.0001
	}
	if eps <= 0 {
		eps = 1e-3
	}
	return &Adam{lr: lr, beta1: 0.9, beta2: 0.999, eps: eps}
}

// Step applies one update, grads aligned with ps.Tensors().
func (a *Adam) Step(ps *tensor.ParamSet, grads []*tensor.Tensor) error {
	params := ps.Tensors()
	if len(grads) != len(params) {
		return fmt.Errorf("trainer: adam got %d gradients for %d parameters", len(grads), len(params))
	}
	if a.m == nil {
		a.m = make([][]float64, len(params))
		a.v = make([][]float64, len(params))
		for i, p := range params {
			a.m[i] = make([]float64, p.Size())
			a.v[i] = make([]float64, p.Size())
		}
	}
	a.step++
	bc1 := 1 - math.Pow(a.beta1, float64(a.step))
	bc2 := 1 - math.Pow(a.beta2, float64(a.step))
	for i, p := range params {
		data := p.Data()
		g := grads[i].Data()
		if len(g) != len(data) {
			return fmt.Errorf("trainer: adam gradient %d size %d vs parameter %d", i, len(g), len(data))
		}
		m, v := a.m[i], a.v[i]
		for j := range data {
			m[j] = a.beta1*m[j] + (1-a.beta1)*g[j]
			v[j] = a.beta2*v[j] + (1-a.beta2)*g[j]*g[j]
			data[j] -= a.lr * (m[j] / bc1) / (math.Sqrt(v[j]/bc2) + a.eps)
		}
	}
	return nil
}
