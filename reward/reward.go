// Package reward scores generated action sequences against the reference
// annotation. The sampled trainer originally shipped with a random
// placeholder where the true scorer should be; the real scorers live here
// and the placeholder is kept only for parity experiments.
package reward

import (
	"math/rand"
	"strings"

	"github.com/ZZCzyh/NS-CQA/datasets"
)

// Func maps a generated token sequence and its annotation to a score in
// [0, 1].
type Func func(actions []string, ann *datasets.Annotation) float64

// ExactMatch returns 1 when the generated tokens exactly cover the
// annotated response entities (as a set, case-insensitive) and 0 otherwise.
func ExactMatch(actions []string, ann *datasets.Annotation) float64 {
	want := responseSet(ann)
	if len(want) == 0 {
		return 0
	}
	got := tokenSet(actions)
	if len(got) != len(want) {
		return 0
	}
	for t := range want {
		if !got[t] {
			return 0
		}
	}
	return 1
}

// AdaptiveF1 returns the F1 overlap between the generated tokens and the
// annotated response entities. This is the "adaptive" reward of the
// original system.
func AdaptiveF1(actions []string, ann *datasets.Annotation) float64 {
	want := responseSet(ann)
	got := tokenSet(actions)
	if len(want) == 0 || len(got) == 0 {
		return 0
	}
	var hit int
	for t := range got {
		if want[t] {
			hit++
		}
	}
	if hit == 0 {
		return 0
	}
	precision := float64(hit) / float64(len(got))
	recall := float64(hit) / float64(len(want))
	return 2 * precision * recall / (precision + recall)
}

// Random returns the placeholder scorer that ignores its inputs. Not a
// production reward; see the design notes.
func Random(rng *rand.Rand) Func {
	return func([]string, *datasets.Annotation) float64 {
		return rng.Float64()
	}
}

func responseSet(ann *datasets.Annotation) map[string]bool {
	out := make(map[string]bool)
	for _, t := range datasets.Tokenize(ann.ResponseEntities) {
		out[strings.ToLower(t)] = true
	}
	return out
}

func tokenSet(actions []string) map[string]bool {
	out := make(map[string]bool)
	for _, t := range actions {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || t == datasets.EndToken || strings.HasPrefix(t, "#") {
			continue
		}
		out[t] = true
	}
	return out
}
