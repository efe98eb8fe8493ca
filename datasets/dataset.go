package datasets

import (
	"math/rand"
	"strings"
)

// Annotation is one masked question record from the preprocessed corpus.
type Annotation struct {
	Qid              string            `json:"qid"`
	Question         string            `json:"question"`
	Entities         []string          `json:"entity"`
	Relations        []string          `json:"relation"`
	Types            []string          `json:"type"`
	ResponseEntities string            `json:"response_entities"`
	OrigResponse     string            `json:"orig_response"`
	EntityMask       map[string]string `json:"entity_mask"`
	RelationMask     map[string]string `json:"relation_mask"`
	TypeMask         map[string]string `json:"type_mask"`
}

// Example is one encoded input sequence with its annotation.
type Example struct {
	Qid   string
	Input []int
	Ann   *Annotation
}

// Task is an identifier plus a batch of examples. Tasks are ephemeral,
// assembled per meta-training iteration.
type Task struct {
	ID       string
	Examples []Example
}

// Tokenize lowers and splits a question into tokens, keeping mask
// placeholders (ENTITY1, RELATION2, ...) intact.
func Tokenize(s string) []string {
	fields := strings.Fields(s)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,?!;:\"'")
		if f == "" {
			continue
		}
		if !isMaskToken(f) {
			f = strings.ToLower(f)
		}
		out = append(out, f)
	}
	return out
}

func isMaskToken(s string) bool {
	for _, p := range [...]string{"ENTITY", "RELATION", "TYPE"} {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// SampleTasks draws a batch of tasks from the examples: each task takes
// size consecutive examples starting at a random offset. Tasks are built
// fresh per meta-iteration, so overlaps across batches are fine.
func SampleTasks(examples []Example, batch, size int, rng *rand.Rand) []*Task {
	if len(examples) == 0 || batch <= 0 || size <= 0 {
		return nil
	}
	tasks := make([]*Task, 0, batch)
	for i := 0; i < batch; i++ {
		start := rng.Intn(len(examples))
		task := &Task{ID: examples[start].Qid}
		for j := 0; j < size; j++ {
			task.Examples = append(task.Examples, examples[(start+j)%len(examples)])
		}
		tasks = append(tasks, task)
	}
	return tasks
}
