package trpo

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/ZZCzyh/NS-CQA/tensor"
)

// Policy is what the trust-region optimizer needs from the model: the
// shared parameters, a one-step adaptation on a task's training rollouts,
// and the teacher-forced logits of a stored rollout under a given snapshot.
type Policy interface {
	Params() *tensor.ParamSet
	Adapt(ps *tensor.ParamSet, train []Episode) (*tensor.ParamSet, error)
	Logits(ps *tensor.ParamSet, ep Episode) (*tensor.Tensor, error)
}

// StepConfig carries the trust-region hyperparameters.
type StepConfig struct {
	MaxKL            float64 `yaml:"max_kl"`
	CGIters          int     `yaml:"cg_iters"`
	CGDamping        float64 `yaml:"cg_damping"`
	LSMaxSteps       int     `yaml:"ls_max_steps"`
	LSBacktrackRatio float64 `yaml:"ls_backtrack_ratio"`
}

// DefaultStepConfig mirrors the original hyperparameters.
func DefaultStepConfig() StepConfig {
	return StepConfig{
		MaxKL:            1e-3,
		CGIters:          10,
		CGDamping:        1e-2,
		LSMaxSteps:       10,
		LSBacktrackRatio: 0.5,
	}
}

// Result reports what a trust-region step did.
type Result struct {
	Improved bool      // false means the line search exhausted and reverted
	Attempts int       // line-search attempts consumed
	StepSize float64   // accepted backtracking factor, meaningless unless Improved
	Step     []float64 // unscaled step direction in flat parameter space
	OldLoss  float64
	Loss     float64
	KL       float64
}

// flatValid is one task's valid rollouts flattened for the loss: aligned
// action, advantage and mask vectors across the episode concatenation.
type flatValid struct {
	actions []int
	adv     []float64
	mask    []float64
}

func flattenValid(eps []Episode, normalize bool) flatValid {
	var fv flatValid
	for _, ep := range eps {
		fv.actions = append(fv.actions, ep.Actions...)
		fv.adv = append(fv.adv, ep.Advantages...)
		fv.mask = append(fv.mask, ep.EffectiveMask()...)
	}
	if normalize {
		fv.adv = WeightedNormalize(fv.adv, fv.mask)
	}
	return fv
}

// SurrogateLoss evaluates the importance-sampled surrogate objective and
// the KL drift against the reference distributions. When oldPis is nil the
// current (detached) distributions become the reference, which makes the
// loss -mean(advantage) and the KL exactly zero; the returned snapshots are
// then reused across the line search.
func SurrogateLoss(p Policy, episodes []TaskEpisodes, oldPis []*Categorical) (loss, kl *tensor.Tensor, pis []*Categorical, err error) {
	if len(episodes) == 0 {
		return nil, nil, nil, fmt.Errorf("trpo: no episodes")
	}
	losses := make([]*tensor.Tensor, 0, len(episodes))
	kls := make([]*tensor.Tensor, 0, len(episodes))
	pis = make([]*Categorical, 0, len(episodes))

	for t, task := range episodes {
		params, err := p.Adapt(p.Params(), task.Train)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("trpo: adapt task %d: %w", t, err)
		}
		rows := make([]*tensor.Tensor, 0, len(task.Valid))
		for _, ep := range task.Valid {
			logits, err := p.Logits(params, ep)
			if err != nil {
				return nil, nil, nil, fmt.Errorf("trpo: logits task %d: %w", t, err)
			}
			rows = append(rows, logits)
		}
		if len(rows) == 0 {
			return nil, nil, nil, fmt.Errorf("trpo: task %d has no valid episodes", t)
		}
		pi := NewCategorical(tensor.ConcatRows(rows...))
		var old *Categorical
		if oldPis != nil {
			old = oldPis[t]
		} else {
			old = pi.Detach()
		}
		pis = append(pis, pi.Detach())

		fv := flattenValid(task.Valid, true)
		maskT := tensor.FromSlice(len(fv.mask), 1, fv.mask)
		advT := tensor.FromSlice(len(fv.adv), 1, fv.adv)

		ratio := pi.LogProb(fv.actions).Sub(old.LogProb(fv.actions)).Exp()
		losses = append(losses, weightedMean(ratio.Mul(advT), maskT).Neg())
		kls = append(kls, weightedMean(pi.KL(old), maskT))
	}

	return tensor.ConcatRows(losses...).Mean(), tensor.ConcatRows(kls...).Mean(), pis, nil
}

// klDivergence recomputes only the KL term with fresh adapted parameters,
// referenced against the detached current distributions. Its value is zero
// but its curvature is the Fisher metric the HVP needs.
func klDivergence(p Policy, episodes []TaskEpisodes) (*tensor.Tensor, error) {
	_, kl, _, err := SurrogateLoss(p, episodes, nil)
	return kl, err
}

// HVP returns the Hessian-vector-product operator of the KL divergence at
// the current parameters, damped for conditioning: v -> grad(grad(KL).v) +
// damping*v, never forming the matrix.
func HVP(p Policy, episodes []TaskEpisodes, damping float64) func(v []float64) ([]float64, error) {
	params := p.Params()
	return func(v []float64) ([]float64, error) {
		kl, err := klDivergence(p, episodes)
		if err != nil {
			return nil, err
		}
		grads, err := tensor.Grad(kl, params.Tensors(), true)
		if err != nil {
			return nil, err
		}
		flat := tensor.FlattenColumn(grads)
		if flat.Size() != len(v) {
			return nil, fmt.Errorf("trpo: hvp vector size %d vs %d parameters", len(v), flat.Size())
		}
		vT := tensor.FromSlice(len(v), 1, v)
		gradDotV := flat.Mul(vT).Sum()
		grad2, err := tensor.Grad(gradDotV, params.Tensors(), false)
		if err != nil {
			return nil, err
		}
		out := append([]float64(nil), tensor.FlattenColumn(grad2).Data()...)
		tensor.VecAxpy(out, damping, v)
		return out, nil
	}
}

// Step performs one trust-region meta-optimization update of the shared
// initial parameters. The natural-gradient direction comes from conjugate
// gradient over the KL Hessian-vector product, scaled to the KL budget,
// then a backtracking line search accepts the first candidate whose
// surrogate loss strictly improves while the KL stays strictly under the
// cap. An exhausted search restores the parameters exactly and reports
// Improved=false rather than failing.
func Step(p Policy, episodes []TaskEpisodes, cfg StepConfig, logger *slog.Logger) (*Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	params := p.Params()

	oldLoss, _, oldPis, err := SurrogateLoss(p, episodes, nil)
	if err != nil {
		return nil, err
	}
	grads, err := tensor.Grad(oldLoss, params.Tensors(), false)
	if err != nil {
		return nil, err
	}
	g := tensor.FlattenColumn(grads).Data()

	hvp := HVP(p, episodes, cfg.CGDamping)
	stepDir, err := ConjugateGradient(hvp, g, cfg.CGIters, 1e-10)
	if err != nil {
		return nil, err
	}

	hs, err := hvp(stepDir)
	if err != nil {
		return nil, err
	}
	shs := 0.5 * tensor.VecDot(stepDir, hs)
	if !(shs > 0) || math.IsNaN(shs) {
		return nil, fmt.Errorf("trpo: non-positive step curvature %v", shs)
	}
	lagrange := math.Sqrt(shs / cfg.MaxKL)
	step := make([]float64, len(stepDir))
	for i := range step {
		step[i] = stepDir[i] / lagrange
	}

	oldParams := params.ToVector()
	res := &Result{Step: step, OldLoss: oldLoss.Item()}

	stepSize := 1.0
	cand := make([]float64, len(oldParams))
	for attempt := 0; attempt < cfg.LSMaxSteps; attempt++ {
		copy(cand, oldParams)
		tensor.VecAxpy(cand, -stepSize, step)
		if err := params.FromVector(cand); err != nil {
			return nil, err
		}
		loss, kl, _, err := SurrogateLoss(p, episodes, oldPis)
		if err != nil {
			return nil, err
		}
		res.Attempts = attempt + 1
		improve := loss.Item() - oldLoss.Item()
		if improve < 0 && kl.Item() < cfg.MaxKL {
			res.Improved = true
			res.StepSize = stepSize
			res.Loss = loss.Item()
			res.KL = kl.Item()
			logger.Debug("trust-region step accepted",
				"attempts", res.Attempts, "step_size", stepSize,
				"improve", improve, "kl", res.KL)
			return res, nil
		}
		stepSize *= cfg.LSBacktrackRatio
	}

	if err := params.FromVector(oldParams); err != nil {
		return nil, err
	}
	res.Loss = res.OldLoss
	logger.Info("line search exhausted, parameters reverted", "attempts", res.Attempts)
	return res, nil
}

// weightedMean computes sum(x*w)/sum(w) as a scalar tensor; w is constant.
func weightedMean(x, w *tensor.Tensor) *tensor.Tensor {
	var wsum float64
	for _, v := range w.Data() {
		wsum += v
	}
	if wsum == 0 {
		wsum = 1
	}
	return x.Mul(w).Sum().Scale(1 / wsum)
}
