package cqa

import (
	"fmt"
	"os"
	"sort"

	"github.com/tidwall/gjson"

	"github.com/ZZCzyh/NS-CQA/datasets"
)

// Load reads an annotation JSON file (a map of question id to record) into
// annotations sorted by id.
func Load(path string) ([]*datasets.Annotation, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(string(raw))
}

// Parse decodes annotation JSON.
func Parse(raw string) ([]*datasets.Annotation, error) {
	if !gjson.Valid(raw) {
		return nil, fmt.Errorf("cqa: invalid annotation json")
	}
	var anns []*datasets.Annotation
	gjson.Parse(raw).ForEach(func(key, value gjson.Result) bool {
		ann := &datasets.Annotation{
			Qid:              key.String(),
			Question:         value.Get("question").String(),
			Entities:         stringList(value.Get("entity")),
			Relations:        stringList(value.Get("relation")),
			Types:            stringList(value.Get("type")),
			ResponseEntities: value.Get("response_entities").String(),
			OrigResponse:     value.Get("orig_response").String(),
			EntityMask:       stringMap(value.Get("entity_mask")),
			RelationMask:     stringMap(value.Get("relation_mask")),
			TypeMask:         stringMap(value.Get("type_mask")),
		}
		anns = append(anns, ann)
		return true
	})
	sort.Slice(anns, func(i, j int) bool { return anns[i].Qid < anns[j].Qid })
	return anns, nil
}

// BuildVocab collects every question token across the annotations.
func BuildVocab(anns []*datasets.Annotation) *datasets.Vocab {
	var tokens []string
	for _, ann := range anns {
		tokens = append(tokens, datasets.Tokenize(ann.Question)...)
		tokens = append(tokens, responseTokens(ann)...)
	}
	return datasets.NewVocab(tokens)
}

// BuildExamples encodes the annotations against a vocabulary.
func BuildExamples(anns []*datasets.Annotation, vocab *datasets.Vocab) []datasets.Example {
	out := make([]datasets.Example, 0, len(anns))
	for _, ann := range anns {
		out = append(out, datasets.Example{
			Qid:   ann.Qid,
			Input: vocab.Encode(datasets.Tokenize(ann.Question)),
			Ann:   ann,
		})
	}
	return out
}

func responseTokens(ann *datasets.Annotation) []string {
	return datasets.Tokenize(ann.ResponseEntities)
}

func stringList(r gjson.Result) []string {
	var out []string
	r.ForEach(func(_, v gjson.Result) bool {
		out = append(out, v.String())
		return true
	})
	return out
}

func stringMap(r gjson.Result) map[string]string {
	out := make(map[string]string)
	r.ForEach(func(k, v gjson.Result) bool {
		out[k.String()] = v.String()
		return true
	})
	return out
}
