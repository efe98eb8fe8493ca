package trainer

import (
	"io"
	"log/slog"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZZCzyh/NS-CQA/datasets"
	"github.com/ZZCzyh/NS-CQA/reward"
	"github.com/ZZCzyh/NS-CQA/seq2seq"
	"github.com/ZZCzyh/NS-CQA/tensor"
)

func testVocab() *datasets.Vocab {
	return datasets.NewVocab([]string{"what", "is", "ENTITY1", "paris", "france"})
}

func testLearner(t *testing.T, cfg Config, rewardFn reward.Func) *MetaLearner {
	t.Helper()
	vocab := testVocab()
	net, err := seq2seq.New(seq2seq.Config{
		VocabSize: vocab.Len(),
		EmbedDim:  4,
		HiddenDim: 6,
	}, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(net, vocab, rewardFn, nil, cfg, logger, rand.New(rand.NewSource(2)))
}

func testTask(vocab *datasets.Vocab, qid string) *datasets.Task {
	ann := &datasets.Annotation{Qid: qid, Question: "what is ENTITY1", ResponseEntities: "paris"}
	return &datasets.Task{ID: qid, Examples: []datasets.Example{{
		Qid:   qid,
		Input: vocab.Encode(datasets.Tokenize(ann.Question)),
		Ann:   ann,
	}}}
}

// nll is a deterministic training objective used to check the adapter in
// isolation from the stochastic sampler.
func nll(t *testing.T, m *MetaLearner, ps *tensor.ParamSet, input, actions []int) *tensor.Tensor {
	t.Helper()
	logits, err := m.net.TeacherForce(ps, input, actions, m.vocab.Beg())
	require.NoError(t, err)
	return logits.LogSoftmax().Gather(actions).Mean().Neg()
}

func TestUpdateParamsDecreasesLossAndKeepsInputIntact(t *testing.T) {
	m := testLearner(t, Defaults(), reward.ExactMatch)
	vocab := m.vocab
	input := vocab.Encode([]string{"what", "is", "ENTITY1"})
	actions := []int{vocab.ID("paris"), vocab.End()}

	shared := m.net.Params()
	before := shared.ToVector()

	loss1 := nll(t, m, shared, input, actions)
	updated, err := m.UpdateParams(loss1, shared, 0.1, false)
	require.NoError(t, err)

	assert.Equal(t, before, shared.ToVector(), "input mapping must not be mutated")

	loss2 := nll(t, m, updated, input, actions)
	assert.Less(t, loss2.Item(), loss1.Item())
}

func TestUpdateParamsTreatsMissingGradientsAsZero(t *testing.T) {
	m := testLearner(t, Defaults(), reward.ExactMatch)
	shared := m.net.Params()

	updated, err := m.UpdateParams(tensor.Scalar(0), shared, 0.1, false)
	require.NoError(t, err)
	assert.Equal(t, shared.ToVector(), updated.ToVector())
}

type scriptedDecode struct {
	cols int
	seqs [][]int
	i    int
}

func (s *scriptedDecode) next(*tensor.ParamSet, *tensor.Tensor) (*tensor.Tensor, []int) {
	seq := s.seqs[s.i%len(s.seqs)]
	s.i++
	if len(seq) == 0 {
		return nil, nil
	}
	// constant logits are enough: skip accounting and loss arithmetic do
	// not depend on how the rows were produced
	logits := tensor.New(len(seq), s.cols)
	for r := range seq {
		for c := 0; c < s.cols; c++ {
			logits.Set(r, c, float64((r+c)%3)-1)
		}
	}
	return logits, seq
}

func rewardByFirstToken(scores map[string]float64) reward.Func {
	return func(actions []string, _ *datasets.Annotation) float64 {
		if len(actions) == 0 {
			return 0
		}
		return scores[strings.ToLower(actions[0])]
	}
}

func TestInnerLossSkipsExactDuplicates(t *testing.T) {
	vocab := testVocab()
	paris, france := vocab.ID("paris"), vocab.ID("france")
	scores := map[string]float64{"paris": 0.9, "france": 0.2, "what": 0.5}

	// three stochastic decodes, the second an exact repeat of the first
	dup := testLearner(t, Config{Samples: 3, FastLR: 0.001, MetaLR: 0.0001, MaxTokens: 10}, rewardByFirstToken(scores))
	dup.decodeArgmax = (&scriptedDecode{cols: vocab.Len(), seqs: [][]int{{vocab.ID("what"), vocab.End()}}}).next
	dup.decodeSample = (&scriptedDecode{cols: vocab.Len(), seqs: [][]int{
		{paris, vocab.End()},
		{paris, vocab.End()},
		{france, vocab.End()},
	}}).next

	task := testTask(vocab, "q1")
	lossDup, total, skipped, err := dup.InnerLoss(dup.net.Params(), task)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, 1, skipped)

	// the same two unique decodes without the duplicate give the same loss
	uniq := testLearner(t, Config{Samples: 2, FastLR: 0.001, MetaLR: 0.0001, MaxTokens: 10}, rewardByFirstToken(scores))
	uniq.decodeArgmax = (&scriptedDecode{cols: vocab.Len(), seqs: [][]int{{vocab.ID("what"), vocab.End()}}}).next
	uniq.decodeSample = (&scriptedDecode{cols: vocab.Len(), seqs: [][]int{
		{paris, vocab.End()},
		{france, vocab.End()},
	}}).next

	lossUniq, total, skipped, err := uniq.InnerLoss(uniq.net.Params(), task)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, 0, skipped)
	assert.InDelta(t, lossUniq.Item(), lossDup.Item(), 1e-12,
		"duplicate tokens must not enter the loss")
}

func TestInnerLossDuplicateAccountingAcrossTasks(t *testing.T) {
	// 2 tasks x 1 example, samples=3, two of the three stochastic decodes
	// identical: exactly 1 skip per example
	vocab := testVocab()
	paris := vocab.ID("paris")
	m := testLearner(t, Config{Samples: 3, FastLR: 0.001, MetaLR: 0.0001, MaxTokens: 10}, reward.ExactMatch)
	m.decodeArgmax = (&scriptedDecode{cols: vocab.Len(), seqs: [][]int{{vocab.ID("what"), vocab.End()}}}).next

	var total, skipped int
	for _, qid := range []string{"q1", "q2"} {
		m.decodeSample = (&scriptedDecode{cols: vocab.Len(), seqs: [][]int{
			{paris, vocab.End()},
			{vocab.ID("france"), vocab.End()},
			{paris, vocab.End()},
		}}).next
		_, tt, ss, err := m.InnerLoss(m.net.Params(), testTask(vocab, qid))
		require.NoError(t, err)
		total += tt
		skipped += ss
	}
	assert.Equal(t, 6, total)
	assert.Equal(t, 2, skipped)
}

func TestInnerLossNoUsableSamplesIsZeroAndNoOp(t *testing.T) {
	vocab := testVocab()
	m := testLearner(t, Config{Samples: 4, FastLR: 0.001, MetaLR: 0.0001, MaxTokens: 10}, reward.ExactMatch)
	m.decodeArgmax = (&scriptedDecode{cols: vocab.Len(), seqs: [][]int{{vocab.ID("what"), vocab.End()}}}).next
	m.decodeSample = (&scriptedDecode{cols: vocab.Len(), seqs: [][]int{{}}}).next // nothing survives

	loss, total, skipped, err := m.InnerLoss(m.net.Params(), testTask(vocab, "q1"))
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	assert.Equal(t, 4, skipped)
	assert.Zero(t, loss.Item())

	before := m.net.Params().ToVector()
	require.NoError(t, m.MetaUpdate(loss))
	assert.Equal(t, before, m.net.Params().ToVector(), "zero loss must be a gradient no-op")
}

func TestSampleTwoStepPathLeavesSharedParamsUntouched(t *testing.T) {
	m := testLearner(t, Config{Samples: 3, FastLR: 0.01, MetaLR: 0.001, MaxTokens: 6}, reward.AdaptiveF1)
	vocab := m.vocab
	tasks := []*datasets.Task{testTask(vocab, "q1"), testTask(vocab, "q2")}

	before := m.net.Params().ToVector()
	loss, total, _, err := m.Sample(tasks)
	require.NoError(t, err)
	require.NotNil(t, loss)
	assert.Positive(t, total)
	assert.Equal(t, before, m.net.Params().ToVector(),
		"sampling and adaptation must not leak into the shared parameters")

	require.NoError(t, m.MetaUpdate(loss))
	if loss.RequiresGrad() {
		assert.NotEqual(t, before, m.net.Params().ToVector())
	}
}

func TestAdamMinimizesQuadratic(t *testing.T) {
	w := tensor.Scalar(10).Leaf()
	ps := tensor.NewParamSet()
	ps.Set("w", w)
	target := tensor.Scalar(3)

	adam := NewAdam(0.1, 1e-8)
	for i := 0; i < 500; i++ {
		diff := w.Sub(target)
		loss := diff.Mul(diff).Sum()
		grads, err := tensor.Grad(loss, ps.Tensors(), false)
		require.NoError(t, err)
		require.NoError(t, adam.Step(ps, grads))
	}
	assert.InDelta(t, 3.0, w.Item(), 0.1)
}
