package trainer

import (
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/ZZCzyh/NS-CQA/datasets"
	"github.com/ZZCzyh/NS-CQA/retriever"
	"github.com/ZZCzyh/NS-CQA/reward"
	"github.com/ZZCzyh/NS-CQA/seq2seq"
	"github.com/ZZCzyh/NS-CQA/tensor"
)

// Config holds the meta-learner hyperparameters.
type Config struct {
	Samples    int     `yaml:"samples"`      // stochastic decodes per example
	FirstOrder bool    `yaml:"first_order"`  // drop second-order terms in MAML
	FastLR     float64 `yaml:"fast_lr"`      // inner-loop step size
	MetaLR     float64 `yaml:"meta_lr"`      // outer Adam learning rate
	MetaEps    float64 `yaml:"meta_eps"`     // outer Adam epsilon
	MaxTokens  int     `yaml:"max_tokens"`   // decode length bound
	SupportN   int     `yaml:"support_n"`    // retrieved support examples, 0 = task itself
}

// Defaults mirrors the original hyperparameter choices.
func Defaults() Config {
	return Config{
		Samples:   5,
		FastLR:    0.001,
		MetaLR:    0.0001,
		MetaEps:   1e-3,
		MaxTokens: 40,
	}
}

// MetaLearner samples trajectories before and after inner-loop adaptation,
// computes the inner loss, derives adapted parameters and performs the
// meta-update on the shared initial parameters.
type MetaLearner struct {
	net    *seq2seq.Network
	vocab  *datasets.Vocab
	reward reward.Func
	retr   retriever.Retriever
	cfg    Config
	adam   *Adam
	log    *slog.Logger
	rng    *rand.Rand

	// decode hooks, swapped out by tests to script rollouts
	decodeArgmax func(ps *tensor.ParamSet, ctx *tensor.Tensor) (*tensor.Tensor, []int)
	decodeSample func(ps *tensor.ParamSet, ctx *tensor.Tensor) (*tensor.Tensor, []int)
}

// New wires a meta-learner around the shared network.
func New(net *seq2seq.Network, vocab *datasets.Vocab, rewardFn reward.Func, retr retriever.Retriever, cfg Config, logger *slog.Logger, rng *rand.Rand) *MetaLearner {
	if logger == nil {
		logger = slog.Default()
	}
	if retr == nil {
		retr = retriever.Null{}
	}
	m := &MetaLearner{
		net:    net,
		vocab:  vocab,
		reward: rewardFn,
		retr:   retr,
		cfg:    cfg,
		adam:   NewAdam(cfg.MetaLR, cfg.MetaEps),
		log:    logger,
		rng:    rng,
	}
	m.decodeArgmax = func(ps *tensor.ParamSet, ctx *tensor.Tensor) (*tensor.Tensor, []int) {
		return net.DecodeChainArgmax(ps, ctx, vocab.Beg(), vocab.End(), cfg.MaxTokens)
	}
	m.decodeSample = func(ps *tensor.ParamSet, ctx *tensor.Tensor) (*tensor.Tensor, []int) {
		return net.DecodeChainSampling(ps, ctx, vocab.Beg(), vocab.End(), cfg.MaxTokens, rng)
	}
	return m
}

// Params returns the shared initial parameter set.
func (m *MetaLearner) Params() *tensor.ParamSet {
	return m.net.Params()
}

// supportSet picks the examples adapting a task: the retrieved top-N when
// retrieval is configured, otherwise the task's own batch.
func (m *MetaLearner) supportSet(task *datasets.Task) []datasets.Example {
	if m.cfg.SupportN > 0 {
		if sup := m.retr.Retrieve(task, m.cfg.SupportN); len(sup) > 0 {
			return sup
		}
	}
	return task.Examples
}

// InnerLoss computes the REINFORCE-with-baseline loss of one task under the
// given weights. The greedy decode's reward is the self-critic baseline;
// each stochastic decode contributes its tokens weighted by
// (sample reward - baseline reward). Stochastic decodes that exactly repeat
// an earlier kept sample for the same example are skipped and counted, not
// scored. When nothing survives the loss is exactly zero.
func (m *MetaLearner) InnerLoss(ps *tensor.ParamSet, task *datasets.Task) (loss *tensor.Tensor, total, skipped int, err error) {
	var policies []*tensor.Tensor
	var actions []int
	var advantages []float64

	for _, ex := range m.supportSet(task) {
		ctx, err := m.net.Encode(ps, ex.Input)
		if err != nil {
			return nil, total, skipped, fmt.Errorf("trainer: encode %s: %w", ex.Qid, err)
		}
		_, base := m.decodeArgmax(ps, ctx)
		baseline := m.reward(m.vocab.Decode(base), ex.Ann)

		var memory [][]int
		for s := 0; s < m.cfg.Samples; s++ {
			logits, acts := m.decodeSample(ps, ctx)
			total++
			if len(acts) == 0 {
				skipped++
				continue
			}
			if containsSequence(memory, acts) {
				skipped++
				continue
			}
			memory = append(memory, acts)

			sampleReward := m.reward(m.vocab.Decode(acts), ex.Ann)
			policies = append(policies, logits)
			actions = append(actions, acts...)
			adv := sampleReward - baseline
			for range acts {
				advantages = append(advantages, adv)
			}
		}
	}

	if len(policies) == 0 {
		m.log.Info("no usable stochastic samples, task contributes zero loss",
			"task", task.ID, "total", total, "skipped", skipped)
		return tensor.Scalar(0), total, skipped, nil
	}

	all := tensor.ConcatRows(policies...)
	logProb := all.LogSoftmax().Gather(actions)
	adv := tensor.FromSlice(len(advantages), 1, advantages)
	return logProb.Mul(adv).Mean().Neg(), total, skipped, nil
}

// UpdateParams applies one gradient-descent step of the given size to the
// weights and returns the updated mapping. The input mapping is never
// mutated; weights the loss does not depend on keep their value (their
// gradient is zero). With firstOrder the returned weights are cut off from
// the producing graph.
func (m *MetaLearner) UpdateParams(loss *tensor.Tensor, ps *tensor.ParamSet, stepSize float64, firstOrder bool) (*tensor.ParamSet, error) {
	grads, err := tensor.Grad(loss, ps.Tensors(), !firstOrder)
	if err != nil {
		return nil, fmt.Errorf("trainer: inner gradient: %w", err)
	}
	out := tensor.NewParamSet()
	for i, name := range ps.Names() {
		out.Set(name, ps.Get(name).Sub(grads[i].Scale(stepSize)))
	}
	return out, nil
}

// Sample runs the two-step MAML path over a batch of tasks: inner loss
// under the shared weights, first update, inner loss again, second update,
// then the meta-loss under the twice-updated weights. It returns the mean
// meta-loss, still attached to the shared parameters through the retained
// graph unless FirstOrder is set.
func (m *MetaLearner) Sample(tasks []*datasets.Task) (metaLoss *tensor.Tensor, total, skipped int, err error) {
	if len(tasks) == 0 {
		return nil, 0, 0, fmt.Errorf("trainer: empty task batch")
	}
	losses := make([]*tensor.Tensor, 0, len(tasks))
	for _, task := range tasks {
		weights := m.net.Params()
		for step := 0; step < 2; step++ {
			loss, t, s, err := m.InnerLoss(weights, task)
			total, skipped = total+t, skipped+s
			if err != nil {
				return nil, total, skipped, err
			}
			weights, err = m.UpdateParams(loss, weights, m.cfg.FastLR, m.cfg.FirstOrder)
			if err != nil {
				return nil, total, skipped, err
			}
		}
		loss, t, s, err := m.InnerLoss(weights, task)
		total, skipped = total+t, skipped+s
		if err != nil {
			return nil, total, skipped, err
		}
		losses = append(losses, loss)
	}
	return tensor.ConcatRows(losses...).Mean(), total, skipped, nil
}

// MetaUpdate backpropagates the meta-loss to the shared initial parameters
// and applies one Adam step. This is the only path by which the MAML mode
// mutates the shared parameters.
func (m *MetaLearner) MetaUpdate(loss *tensor.Tensor) error {
	shared := m.net.Params()
	grads, err := tensor.Grad(loss, shared.Tensors(), false)
	if err != nil {
		return fmt.Errorf("trainer: meta gradient: %w", err)
	}
	return m.adam.Step(shared, grads)
}

func containsSequence(memory [][]int, seq []int) bool {
	for _, m := range memory {
		if equalInts(m, seq) {
			return true
		}
	}
	return false
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
