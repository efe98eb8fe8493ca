package main

import (
	"fmt"
	"math/rand"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ZZCzyh/NS-CQA/reward"
	"github.com/ZZCzyh/NS-CQA/seq2seq"
	"github.com/ZZCzyh/NS-CQA/trainer"
	"github.com/ZZCzyh/NS-CQA/trpo"
)

// fileConfig is the YAML layout of the training configuration. VocabSize is
// filled from the loaded dataset, not the file.
type fileConfig struct {
	Model   seq2seq.Config  `yaml:"model"`
	Trainer trainer.Config  `yaml:"trainer"`
	TRPO    trpo.StepConfig `yaml:"trpo"`
	Train   loopConfig      `yaml:"train"`
}

type loopConfig struct {
	Epochs    int    `yaml:"epochs"`
	TaskBatch int    `yaml:"task_batch"`
	TaskSize  int    `yaml:"task_size"`
	EvalN     int    `yaml:"eval_n"`   // examples scored per evaluation
	Workers   int    `yaml:"workers"`  // evaluation fan-out
	Reward    string `yaml:"reward"`   // exact | f1 | random
	Seed      int64  `yaml:"seed"`
}

func defaultConfig() fileConfig {
	return fileConfig{
		Model:   seq2seq.Config{EmbedDim: 64, HiddenDim: 128},
		Trainer: trainer.Defaults(),
		TRPO:    trpo.DefaultStepConfig(),
		Train: loopConfig{
			Epochs:    100,
			TaskBatch: 10,
			TaskSize:  5,
			EvalN:     200,
			Workers:   32,
			Reward:    "f1",
			Seed:      1,
		},
	}
}

// loadConfig reads the YAML file over the defaults; an empty path keeps the
// defaults.
func loadConfig(path string) (fileConfig, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func rewardFunc(name string, rng *rand.Rand) (reward.Func, error) {
	switch name {
	case "exact":
		return reward.ExactMatch, nil
	case "f1", "":
		return reward.AdaptiveF1, nil
	case "random":
		return reward.Random(rng), nil
	}
	return nil, fmt.Errorf("unknown reward %q", name)
}
