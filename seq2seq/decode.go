package seq2seq

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/ZZCzyh/NS-CQA/tensor"
)

// DecodeChainArgmax decodes greedily, feeding each argmax token back in as
// the next input. It returns the per-step logits (one row per emitted
// token) and the emitted token sequence. Decoding stops after emitting
// stopToken or after maxTokens steps.
func (n *Network) DecodeChainArgmax(ps *tensor.ParamSet, ctx *tensor.Tensor, begToken, stopToken, maxTokens int) (*tensor.Tensor, []int) {
	return n.decodeChain(ps, ctx, begToken, stopToken, maxTokens, nil)
}

// DecodeChainSampling decodes by sampling each token from the softmax over
// the step logits. Otherwise identical to DecodeChainArgmax.
func (n *Network) DecodeChainSampling(ps *tensor.ParamSet, ctx *tensor.Tensor, begToken, stopToken, maxTokens int, rng *rand.Rand) (*tensor.Tensor, []int) {
	return n.decodeChain(ps, ctx, begToken, stopToken, maxTokens, rng)
}

func (n *Network) decodeChain(ps *tensor.ParamSet, ctx *tensor.Tensor, begToken, stopToken, maxTokens int, rng *rand.Rand) (*tensor.Tensor, []int) {
	if maxTokens <= 0 {
		return nil, nil
	}
	var steps []*tensor.Tensor
	var actions []int
	h := tensor.New(1, n.cfg.HiddenDim)
	prev := begToken
	for len(actions) < maxTokens {
		logits, next := n.decodeStep(ps, prev, h, ctx)
		var tok int
		if rng == nil {
			tok = argmaxRow(logits)
		} else {
			tok = sampleRow(logits, rng)
		}
		steps = append(steps, logits)
		actions = append(actions, tok)
		if tok == stopToken {
			break
		}
		prev, h = tok, next
	}
	return tensor.ConcatRows(steps...), actions
}

// TeacherForce re-runs the decoder against a fixed action sequence: the
// input is encoded under ps and each action token is fed back as the next
// input. The returned logits (len(actions) x vocab) give the current
// policy's distribution at every position of the stored rollout.
func (n *Network) TeacherForce(ps *tensor.ParamSet, input, actions []int, begToken int) (*tensor.Tensor, error) {
	if len(actions) == 0 {
		return nil, fmt.Errorf("seq2seq: teacher forcing with no actions")
	}
	ctx, err := n.Encode(ps, input)
	if err != nil {
		return nil, err
	}
	steps := make([]*tensor.Tensor, 0, len(actions))
	h := tensor.New(1, n.cfg.HiddenDim)
	prev := begToken
	for _, act := range actions {
		logits, next := n.decodeStep(ps, prev, h, ctx)
		steps = append(steps, logits)
		prev, h = act, next
	}
	return tensor.ConcatRows(steps...), nil
}

func argmaxRow(logits *tensor.Tensor) int {
	data := logits.Data()
	best := 0
	for i, v := range data {
		if v > data[best] {
			best = i
		}
	}
	return best
}

func sampleRow(logits *tensor.Tensor, rng *rand.Rand) int {
	data := logits.Data()
	max := data[0]
	for _, v := range data[1:] {
		if v > max {
			max = v
		}
	}
	var sum float64
	probs := make([]float64, len(data))
	for i, v := range data {
		probs[i] = math.Exp(v - max)
		sum += probs[i]
	}
	r := rng.Float64() * sum
	for i, p := range probs {
		r -= p
		if r <= 0 {
			return i
		}
	}
	return len(data) - 1
}
