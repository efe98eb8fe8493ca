package reward

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ZZCzyh/NS-CQA/datasets"
)

func ann(response string) *datasets.Annotation {
	return &datasets.Annotation{ResponseEntities: response}
}

func TestExactMatch(t *testing.T) {
	a := ann("Paris Lyon")
	assert.Equal(t, 1.0, ExactMatch([]string{"paris", "lyon"}, a))
	assert.Equal(t, 1.0, ExactMatch([]string{"Lyon", "Paris"}, a), "order and case must not matter")
	assert.Equal(t, 0.0, ExactMatch([]string{"paris"}, a))
	assert.Equal(t, 0.0, ExactMatch([]string{"paris", "lyon", "nice"}, a))
	assert.Equal(t, 0.0, ExactMatch([]string{"paris", "lyon"}, ann("")))
}

func TestExactMatchIgnoresSpecialTokens(t *testing.T) {
	a := ann("paris")
	assert.Equal(t, 1.0, ExactMatch([]string{"paris", datasets.EndToken}, a))
	assert.Equal(t, 1.0, ExactMatch([]string{"#PAD", "paris"}, a))
}

func TestAdaptiveF1(t *testing.T) {
	a := ann("paris lyon nice")
	// 2 of 2 generated hit, 2 of 3 wanted: p=1, r=2/3, f1=0.8
	assert.InDelta(t, 0.8, AdaptiveF1([]string{"paris", "lyon"}, a), 1e-12)
	assert.Equal(t, 1.0, AdaptiveF1([]string{"nice", "lyon", "paris"}, a))
	assert.Equal(t, 0.0, AdaptiveF1([]string{"berlin"}, a))
	assert.Equal(t, 0.0, AdaptiveF1(nil, a))
	assert.Equal(t, 0.0, AdaptiveF1([]string{"paris"}, ann("")))
}

func TestRandomIsBounded(t *testing.T) {
	f := Random(rand.New(rand.NewSource(9)))
	for i := 0; i < 100; i++ {
		r := f(nil, nil)
		assert.GreaterOrEqual(t, r, 0.0)
		assert.Less(t, r, 1.0)
	}
}
