package main

import (
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/ZZCzyh/NS-CQA/datasets/cqa"
)

func main() {
	in := cqa.GenerateInput{}
	pflag.StringVar(&in.DumpDir, "dump", "", "QA dump directory")
	pflag.StringVar(&in.EntitiesFile, "entities", "", "entities line file")
	pflag.StringVar(&in.QuestionsFile, "questions", "", "masked questions line file")
	pflag.StringVar(&in.TypesFile, "types", "", "types line file")
	pflag.StringVar(&in.RelationsFile, "relations", "", "relations line file")
	out := pflag.String("out", "annotations.json", "output annotation JSON")
	pflag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	for name, v := range map[string]string{
		"dump": in.DumpDir, "entities": in.EntitiesFile,
		"questions": in.QuestionsFile, "types": in.TypesFile,
		"relations": in.RelationsFile,
	} {
		if v == "" {
			log.Error("missing required flag", "flag", name)
			os.Exit(1)
		}
	}

	if err := cqa.GenerateToFile(in, *out); err != nil {
		log.Error("generate", "err", err)
		os.Exit(1)
	}
	log.Info("annotations written", "out", *out)
}
