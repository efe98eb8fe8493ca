package trpo

import "github.com/ZZCzyh/NS-CQA/tensor"

// Categorical is a per-row categorical distribution stored as log
// probabilities (N x vocab).
type Categorical struct {
	logProbs *tensor.Tensor
}

// NewCategorical normalizes raw logits into a distribution.
func NewCategorical(logits *tensor.Tensor) *Categorical {
	return &Categorical{logProbs: logits.LogSoftmax()}
}

// LogProb gathers the log probability of one action per row (N x 1).
func (c *Categorical) LogProb(actions []int) *tensor.Tensor {
	return c.logProbs.Gather(actions)
}

// KL computes the per-row KL divergence KL(c || other) as an N x 1 tensor.
func (c *Categorical) KL(other *Categorical) *tensor.Tensor {
	return c.logProbs.Exp().Mul(c.logProbs.Sub(other.logProbs)).SumRows()
}

// Detach returns a copy severed from gradient flow, the "old pi" reference
// distribution. It must never re-enter the recorded graph.
func (c *Categorical) Detach() *Categorical {
	return &Categorical{logProbs: c.logProbs.Detach()}
}
