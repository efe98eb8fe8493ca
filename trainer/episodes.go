package trainer

import (
	"fmt"

	"github.com/ZZCzyh/NS-CQA/datasets"
	"github.com/ZZCzyh/NS-CQA/tensor"
	"github.com/ZZCzyh/NS-CQA/trpo"
)

// MetaLearner satisfies trpo.Policy so the same model and inner loop drive
// the trust-region mode.

// Adapt applies one REINFORCE inner-loop step on the stored training
// rollouts and returns the adapted snapshot. The adaptation keeps the
// computation graph: the trust-region Hessian must see through it.
func (m *MetaLearner) Adapt(ps *tensor.ParamSet, train []trpo.Episode) (*tensor.ParamSet, error) {
	if len(train) == 0 {
		return ps, nil
	}
	loss, err := m.episodeLoss(ps, train)
	if err != nil {
		return nil, err
	}
	return m.UpdateParams(loss, ps, m.cfg.FastLR, false)
}

// Logits returns the teacher-forced per-token logits of a stored rollout
// under the given snapshot.
func (m *MetaLearner) Logits(ps *tensor.ParamSet, ep trpo.Episode) (*tensor.Tensor, error) {
	return m.net.TeacherForce(ps, ep.Input, ep.Actions, m.vocab.Beg())
}

// episodeLoss recomputes the advantage-weighted negative log likelihood of
// stored rollouts under the given weights.
func (m *MetaLearner) episodeLoss(ps *tensor.ParamSet, eps []trpo.Episode) (*tensor.Tensor, error) {
	rows := make([]*tensor.Tensor, 0, len(eps))
	var actions []int
	var weights []float64
	for _, ep := range eps {
		logits, err := m.Logits(ps, ep)
		if err != nil {
			return nil, err
		}
		rows = append(rows, logits)
		actions = append(actions, ep.Actions...)
		mask := ep.EffectiveMask()
		for i, adv := range ep.Advantages {
			weights = append(weights, adv*mask[i])
		}
	}
	all := tensor.ConcatRows(rows...)
	logProb := all.LogSoftmax().Gather(actions)
	w := tensor.FromSlice(len(weights), 1, weights)
	return logProb.Mul(w).Mean().Neg(), nil
}

// BuildEpisodes rolls out the current policy over a batch of tasks and
// packages the rollouts for the trust-region step. Each example gets a
// greedy baseline decode and Samples stochastic decodes with the usual
// duplicate skipping; kept rollouts alternate between the train split
// (driving adaptation) and the valid split (driving the surrogate loss).
func (m *MetaLearner) BuildEpisodes(tasks []*datasets.Task) (episodes []trpo.TaskEpisodes, total, skipped int, err error) {
	ps := m.net.Params()
	for _, task := range tasks {
		var te trpo.TaskEpisodes
		for _, ex := range m.supportSet(task) {
			ctx, err := m.net.Encode(ps, ex.Input)
			if err != nil {
				return nil, total, skipped, fmt.Errorf("trainer: encode %s: %w", ex.Qid, err)
			}
			_, base := m.decodeArgmax(ps, ctx)
			baseline := m.reward(m.vocab.Decode(base), ex.Ann)

			var memory [][]int
			kept := 0
			for s := 0; s < m.cfg.Samples; s++ {
				_, acts := m.decodeSample(ps, ctx)
				total++
				if len(acts) == 0 || containsSequence(memory, acts) {
					skipped++
					continue
				}
				memory = append(memory, acts)

				adv := m.reward(m.vocab.Decode(acts), ex.Ann) - baseline
				ep := trpo.Episode{
					Input:      ex.Input,
					Actions:    append([]int(nil), acts...),
					Advantages: make([]float64, len(acts)),
				}
				for i := range ep.Advantages {
					ep.Advantages[i] = adv
				}
				if kept%2 == 0 {
					te.Train = append(te.Train, ep)
				} else {
					te.Valid = append(te.Valid, ep)
				}
				kept++
			}
		}
		// a task needs rollouts on both sides of the split to be usable
		if len(te.Valid) == 0 && len(te.Train) > 1 {
			te.Valid = te.Train[len(te.Train)-1:]
			te.Train = te.Train[:len(te.Train)-1]
		}
		if len(te.Train) == 0 || len(te.Valid) == 0 {
			m.log.Info("task produced no usable rollout split, dropped", "task", task.ID)
			continue
		}
		episodes = append(episodes, te)
	}
	if len(episodes) == 0 {
		return nil, total, skipped, fmt.Errorf("trainer: no task produced usable episodes")
	}
	return episodes, total, skipped, nil
}
