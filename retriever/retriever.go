// Package retriever supplies support examples for a task. The trainer only
// talks to the Retriever interface; the token-overlap implementation ranks
// the support corpus, the null implementation reproduces the original
// behavior of using the task's own batch as its support set.
package retriever

import (
	"sort"

	"github.com/ZZCzyh/NS-CQA/datasets"
)

// Retriever returns up to n support examples for a task.
type Retriever interface {
	Retrieve(task *datasets.Task, n int) []datasets.Example
}

// Null retrieves nothing; callers fall back to the task's own examples.
type Null struct{}

// Retrieve always returns nil.
func (Null) Retrieve(*datasets.Task, int) []datasets.Example { return nil }

// TokenOverlap ranks the support corpus by Jaccard overlap between input
// token sets.
type TokenOverlap struct {
	Support []datasets.Example
}

// Retrieve returns the n support examples whose inputs overlap the task's
// inputs the most. Ties keep corpus order.
func (r *TokenOverlap) Retrieve(task *datasets.Task, n int) []datasets.Example {
	if n <= 0 || len(r.Support) == 0 || task == nil {
		return nil
	}
	query := make(map[int]bool)
	for _, ex := range task.Examples {
		for _, tok := range ex.Input {
			query[tok] = true
		}
	}
	type scored struct {
		idx   int
		score float64
	}
	ranked := make([]scored, 0, len(r.Support))
	for i, ex := range r.Support {
		ranked = append(ranked, scored{idx: i, score: jaccard(query, ex.Input)})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	if n > len(ranked) {
		n = len(ranked)
	}
	out := make([]datasets.Example, n)
	for i := 0; i < n; i++ {
		out[i] = r.Support[ranked[i].idx]
	}
	return out
}

func jaccard(query map[int]bool, input []int) float64 {
	if len(query) == 0 || len(input) == 0 {
		return 0
	}
	other := make(map[int]bool, len(input))
	for _, tok := range input {
		other[tok] = true
	}
	var inter int
	for tok := range other {
		if query[tok] {
			inter++
		}
	}
	union := len(query) + len(other) - inter
	return float64(inter) / float64(union)
}
