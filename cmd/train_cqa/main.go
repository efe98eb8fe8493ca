package main

import (
	"log/slog"
	"math/rand"
	"os"
	"sync"

	"github.com/spf13/pflag"

	"github.com/ZZCzyh/NS-CQA/datasets"
	"github.com/ZZCzyh/NS-CQA/datasets/cqa"
	"github.com/ZZCzyh/NS-CQA/parallel"
	"github.com/ZZCzyh/NS-CQA/retriever"
	"github.com/ZZCzyh/NS-CQA/reward"
	"github.com/ZZCzyh/NS-CQA/seq2seq"
	"github.com/ZZCzyh/NS-CQA/trainer"
	"github.com/ZZCzyh/NS-CQA/trpo"
)

func main() {
	configPath := pflag.String("config", "", "YAML training configuration")
	dataPath := pflag.String("data", "", "annotation JSON file")
	mode := pflag.String("mode", "maml", "meta-optimizer: maml or trpo")
	dstmodel := pflag.String("dstmodel", "model.json.zst", "model destination file")
	resume := pflag.Bool("resume", false, "resume training from dstmodel")
	verbose := pflag.Bool("verbose", false, "debug logging")
	pflag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Error("config", "err", err)
		os.Exit(1)
	}
	if *dataPath == "" {
		log.Error("missing --data annotation file")
		os.Exit(1)
	}
	if *mode != "maml" && *mode != "trpo" {
		log.Error("unknown mode", "mode", *mode)
		os.Exit(1)
	}

	anns, err := cqa.Load(*dataPath)
	if err != nil {
		log.Error("load annotations", "err", err)
		os.Exit(1)
	}
	vocab := cqa.BuildVocab(anns)
	examples := cqa.BuildExamples(anns, vocab)
	cfg.Model.VocabSize = vocab.Len()
	log.Info("dataset loaded", "examples", len(examples), "vocab", vocab.Len())

	rng := rand.New(rand.NewSource(cfg.Train.Seed))
	net, err := seq2seq.New(cfg.Model, rng)
	if err != nil {
		log.Error("network", "err", err)
		os.Exit(1)
	}
	runID := seq2seq.NewRunID()
	startStep := 0
	if *resume {
		ck, err := net.ReadCheckpointFromFile(*dstmodel)
		if err != nil {
			log.Error("resume", "err", err)
			os.Exit(1)
		}
		runID, startStep = ck.RunID, ck.Step
		log.Info("resumed", "run_id", runID, "step", startStep)
	}

	rewardFn, err := rewardFunc(cfg.Train.Reward, rng)
	if err != nil {
		log.Error("reward", "err", err)
		os.Exit(1)
	}
	var retr retriever.Retriever
	if cfg.Trainer.SupportN > 0 {
		retr = &retriever.TokenOverlap{Support: examples}
	}
	learner := trainer.New(net, vocab, rewardFn, retr, cfg.Trainer, log, rng)

	best := -1.0
	for epoch := startStep; epoch < cfg.Train.Epochs; epoch++ {
		tasks := datasets.SampleTasks(examples, cfg.Train.TaskBatch, cfg.Train.TaskSize, rng)

		var total, skipped int
		switch *mode {
		case "maml":
			loss, t, s, err := learner.Sample(tasks)
			if err != nil {
				log.Error("meta sample", "epoch", epoch, "err", err)
				os.Exit(1)
			}
			total, skipped = t, s
			if err := learner.MetaUpdate(loss); err != nil {
				log.Error("meta update", "epoch", epoch, "err", err)
				os.Exit(1)
			}
			log.Info("epoch", "epoch", epoch, "mode", *mode,
				"loss", loss.Item(), "samples", total, "skipped", skipped)
		case "trpo":
			episodes, t, s, err := learner.BuildEpisodes(tasks)
			if err != nil {
				log.Error("rollouts", "epoch", epoch, "err", err)
				os.Exit(1)
			}
			total, skipped = t, s
			res, err := trpo.Step(learner, episodes, cfg.TRPO, log)
			if err != nil {
				log.Error("trust-region step", "epoch", epoch, "err", err)
				os.Exit(1)
			}
			log.Info("epoch", "epoch", epoch, "mode", *mode,
				"loss", res.Loss, "improved", res.Improved,
				"attempts", res.Attempts, "kl", res.KL,
				"samples", total, "skipped", skipped)
		}

		score := evaluate(net, vocab, rewardFn, examples, cfg.Train.EvalN, cfg.Train.Workers, cfg.Trainer.MaxTokens)
		if score > best {
			best = score
			log.Info("improved", "epoch", epoch, "reward", score)
			if err := net.WriteCheckpointToFile(*dstmodel, runID, epoch+1); err != nil {
				log.Error("checkpoint", "err", err)
				os.Exit(1)
			}
		}
	}
	log.Info("done", "run_id", runID, "best_reward", best)
}

// evaluate scores the greedy decode over the first n examples and returns
// the mean reward. Decoding only reads the shared parameters, so the
// examples fan out across workers.
func evaluate(net *seq2seq.Network, vocab *datasets.Vocab, rewardFn reward.Func, examples []datasets.Example, n, workers, maxTokens int) float64 {
	if n > len(examples) || n <= 0 {
		n = len(examples)
	}
	var mu sync.Mutex
	var sum float64
	ps := net.Params()
	parallel.ForEach(n, workers, func(i int) {
		ex := examples[i]
		ctx, err := net.Encode(ps, ex.Input)
		if err != nil {
			return
		}
		_, acts := net.DecodeChainArgmax(ps, ctx, vocab.Beg(), vocab.End(), maxTokens)
		r := rewardFn(vocab.Decode(acts), ex.Ann)
		mu.Lock()
		sum += r
		mu.Unlock()
	})
	return sum / float64(n)
}
