package seq2seq

import (
	"fmt"
	"math/rand"

	"github.com/ZZCzyh/NS-CQA/tensor"
)

// Config fixes the network dimensions.
type Config struct {
	VocabSize int `yaml:"vocab_size"`
	EmbedDim  int `yaml:"embed_dim"`
	HiddenDim int `yaml:"hidden_dim"`
}

// Network is a single-layer recurrent encoder-decoder over a shared token
// embedding. The struct owns the shared initial parameters; forward passes
// never read them implicitly and operate on whatever snapshot they are
// handed.
type Network struct {
	cfg    Config
	params *tensor.ParamSet
}

// Parameter names in flattening order.
const (
	pEmb   = "emb"
	pEncWx = "enc.wx"
	pEncWh = "enc.wh"
	pEncB  = "enc.b"
	pDecWx = "dec.wx"
	pDecWh = "dec.wh"
	pDecB  = "dec.b"
	pOutW  = "out.w"
	pOutB  = "out.b"
)

// New builds a network with freshly initialized parameters.
func New(cfg Config, rng *rand.Rand) (*Network, error) {
	if cfg.VocabSize < 2 || cfg.EmbedDim < 1 || cfg.HiddenDim < 1 {
		return nil, fmt.Errorf("seq2seq: bad config %+v", cfg)
	}
	ps := tensor.NewParamSet()
	ps.Set(pEmb, tensor.Param(cfg.VocabSize, cfg.EmbedDim, rng))
	ps.Set(pEncWx, tensor.Param(cfg.EmbedDim, cfg.HiddenDim, rng))
	ps.Set(pEncWh, tensor.Param(cfg.HiddenDim, cfg.HiddenDim, rng))
	ps.Set(pEncB, tensor.Param(1, cfg.HiddenDim, rng))
	ps.Set(pDecWx, tensor.Param(cfg.EmbedDim+cfg.HiddenDim, cfg.HiddenDim, rng))
	ps.Set(pDecWh, tensor.Param(cfg.HiddenDim, cfg.HiddenDim, rng))
	ps.Set(pDecB, tensor.Param(1, cfg.HiddenDim, rng))
	ps.Set(pOutW, tensor.Param(cfg.HiddenDim, cfg.VocabSize, rng))
	ps.Set(pOutB, tensor.Param(1, cfg.VocabSize, rng))
	return &Network{cfg: cfg, params: ps}, nil
}

// Config returns the network dimensions.
func (n *Network) Config() Config { return n.cfg }

// Params returns the shared initial parameter set.
func (n *Network) Params() *tensor.ParamSet { return n.params }

// Encode folds the input tokens through the encoder and returns the final
// hidden state (1 x hidden) serving as the decoding context.
func (n *Network) Encode(ps *tensor.ParamSet, tokens []int) (*tensor.Tensor, error) {
	if len(tokens) == 0 {
		return nil, fmt.Errorf("seq2seq: encode of empty sequence")
	}
	for _, tok := range tokens {
		if tok < 0 || tok >= n.cfg.VocabSize {
			return nil, fmt.Errorf("seq2seq: token %d outside vocabulary of %d", tok, n.cfg.VocabSize)
		}
	}
	emb := ps.Get(pEmb)
	wx, wh, b := ps.Get(pEncWx), ps.Get(pEncWh), ps.Get(pEncB)
	h := tensor.New(1, n.cfg.HiddenDim)
	for _, tok := range tokens {
		x := emb.PickRows([]int{tok})
		h = x.MatMul(wx).Add(h.MatMul(wh)).Add(b).Tanh()
	}
	return h, nil
}

// decodeStep advances the decoder one token: logits over the vocabulary and
// the next hidden state.
func (n *Network) decodeStep(ps *tensor.ParamSet, prev int, h, ctx *tensor.Tensor) (logits, next *tensor.Tensor) {
	emb := ps.Get(pEmb)
	x := tensor.ConcatCols(emb.PickRows([]int{prev}), ctx)
	next = x.MatMul(ps.Get(pDecWx)).Add(h.MatMul(ps.Get(pDecWh))).Add(ps.Get(pDecB)).Tanh()
	logits = next.MatMul(ps.Get(pOutW)).Add(ps.Get(pOutB))
	return logits, next
}
