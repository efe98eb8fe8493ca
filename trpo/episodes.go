package trpo

import "math"

// Episode is one stored rollout: the encoder input, the emitted action
// tokens, a per-token advantage estimate and a per-token validity mask.
// A nil mask means every token counts.
type Episode struct {
	Input      []int
	Actions    []int
	Advantages []float64
	Mask       []float64
}

// EffectiveMask returns the mask, defaulting to all ones.
func (e Episode) EffectiveMask() []float64 {
	if e.Mask != nil {
		return e.Mask
	}
	m := make([]float64, len(e.Actions))
	for i := range m {
		m[i] = 1
	}
	return m
}

// TaskEpisodes groups the rollouts of one task: Train adapts the
// parameters, Valid evaluates the adapted policy.
type TaskEpisodes struct {
	Train []Episode
	Valid []Episode
}

// GAE computes generalized advantage estimates from per-step rewards and
// baseline values. values must be one element longer than rewards (it
// carries the bootstrap value of the final state).
func GAE(rewards, values []float64, gamma, tau float64) []float64 {
	out := make([]float64, len(rewards))
	var running float64
	for t := len(rewards) - 1; t >= 0; t-- {
		delta := rewards[t] + gamma*values[t+1] - values[t]
		running = delta + gamma*tau*running
		out[t] = running
	}
	return out
}

// WeightedNormalize rescales x to zero mean and unit variance under the
// weights, leaving zero-weight entries untouched in the statistics.
func WeightedNormalize(x, weights []float64) []float64 {
	var wsum, mean float64
	for i, w := range weights {
		wsum += w
		mean += w * x[i]
	}
	if wsum == 0 {
		return append([]float64(nil), x...)
	}
	mean /= wsum
	var variance float64
	for i, w := range weights {
		d := x[i] - mean
		variance += w * d * d
	}
	std := math.Sqrt(variance/wsum) + 1e-8
	out := make([]float64, len(x))
	for i := range x {
		out[i] = (x[i] - mean) / std
	}
	return out
}
