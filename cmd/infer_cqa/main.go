package main

import (
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"strings"
	"sync"

	"github.com/spf13/pflag"

	"github.com/ZZCzyh/NS-CQA/datasets/cqa"
	"github.com/ZZCzyh/NS-CQA/parallel"
	"github.com/ZZCzyh/NS-CQA/reward"
	"github.com/ZZCzyh/NS-CQA/seq2seq"
)

func main() {
	dataPath := pflag.String("data", "", "annotation JSON file")
	modelPath := pflag.String("model", "model.json.zst", "trained checkpoint")
	embedDim := pflag.Int("embed-dim", 64, "embedding dimension of the checkpoint")
	hiddenDim := pflag.Int("hidden-dim", 128, "hidden dimension of the checkpoint")
	maxTokens := pflag.Int("max-tokens", 40, "decode length bound")
	limit := pflag.Int("limit", 0, "decode only the first N examples, 0 = all")
	workers := pflag.Int("workers", 32, "decode fan-out")
	rewardName := pflag.String("reward", "f1", "scorer: exact, f1 or random")
	pflag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if *dataPath == "" {
		log.Error("missing --data annotation file")
		os.Exit(1)
	}

	anns, err := cqa.Load(*dataPath)
	if err != nil {
		log.Error("load annotations", "err", err)
		os.Exit(1)
	}
	vocab := cqa.BuildVocab(anns)
	examples := cqa.BuildExamples(anns, vocab)

	net, err := seq2seq.New(seq2seq.Config{
		VocabSize: vocab.Len(),
		EmbedDim:  *embedDim,
		HiddenDim: *hiddenDim,
	}, rand.New(rand.NewSource(1)))
	if err != nil {
		log.Error("network", "err", err)
		os.Exit(1)
	}
	ck, err := net.ReadCheckpointFromFile(*modelPath)
	if err != nil {
		log.Error("load checkpoint", "err", err)
		os.Exit(1)
	}
	log.Info("checkpoint loaded", "run_id", ck.RunID, "step", ck.Step)

	var rewardFn reward.Func
	switch *rewardName {
	case "exact":
		rewardFn = reward.ExactMatch
	case "f1":
		rewardFn = reward.AdaptiveF1
	case "random":
		rewardFn = reward.Random(rand.New(rand.NewSource(1)))
	default:
		log.Error("unknown reward", "reward", *rewardName)
		os.Exit(1)
	}

	n := len(examples)
	if *limit > 0 && *limit < n {
		n = *limit
	}

	ps := net.Params()
	lines := make([]string, n)
	var mu sync.Mutex
	var sum float64
	err = parallel.ForEachErr(n, *workers, func(i int) error {
		ex := examples[i]
		ctx, err := net.Encode(ps, ex.Input)
		if err != nil {
			return fmt.Errorf("encode %s: %w", ex.Qid, err)
		}
		_, acts := net.DecodeChainArgmax(ps, ctx, vocab.Beg(), vocab.End(), *maxTokens)
		decoded := vocab.Decode(acts)
		r := rewardFn(decoded, ex.Ann)
		lines[i] = fmt.Sprintf("%s\t%.4f\t%s", ex.Qid, r, strings.Join(decoded, " "))
		mu.Lock()
		sum += r
		mu.Unlock()
		return nil
	})
	if err != nil {
		log.Error("decode", "err", err)
		os.Exit(1)
	}

	for _, l := range lines {
		fmt.Println(l)
	}
	log.Info("done", "examples", n, "mean_reward", sum/float64(n))
}
