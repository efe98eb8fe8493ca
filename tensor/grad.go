package tensor

import "fmt"

// Grad computes the gradient of a scalar output with respect to each input
// by walking the recorded graph in reverse. Inputs the output does not
// depend on get zero gradients rather than an error. With createGraph the
// returned gradients stay attached to the graph, so differentiating them
// again yields second-order derivatives.
func Grad(out *Tensor, inputs []*Tensor, createGraph bool) ([]*Tensor, error) {
	if len(out.data) != 1 {
		return nil, fmt.Errorf("tensor: grad of non-scalar %dx%d output", out.rows, out.cols)
	}
	if !out.grad {
		// Constant output: everything has zero gradient.
		zeros := make([]*Tensor, len(inputs))
		for i, in := range inputs {
			zeros[i] = New(in.rows, in.cols)
		}
		return zeros, nil
	}

	var order []*Tensor
	visited := make(map[*Tensor]bool)
	var visit func(t *Tensor)
	visit = func(t *Tensor) {
		if visited[t] || !t.grad {
			return
		}
		visited[t] = true
		for _, in := range t.inputs {
			visit(in)
		}
		order = append(order, t)
	}
	visit(out)

	grads := map[*Tensor]*Tensor{out: Scalar(1)}
	for i := len(order) - 1; i >= 0; i-- {
		t := order[i]
		g := grads[t]
		if g == nil || t.back == nil {
			continue
		}
		igs := t.back(g)
		if len(igs) != len(t.inputs) {
			return nil, fmt.Errorf("tensor: backward arity %d vs %d inputs", len(igs), len(t.inputs))
		}
		for j, in := range t.inputs {
			if !in.grad || igs[j] == nil {
				continue
			}
			if acc := grads[in]; acc == nil {
				grads[in] = igs[j]
			} else {
				grads[in] = acc.Add(igs[j])
			}
		}
	}

	res := make([]*Tensor, len(inputs))
	for i, in := range inputs {
		g := grads[in]
		switch {
		case g == nil:
			g = New(in.rows, in.cols)
		case !createGraph:
			g = g.Detach()
		}
		res[i] = g
	}
	return res, nil
}
