package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	got := Tokenize("A Dog, in the PARK! with a dog-frisbee & 2 cats")
	want := map[string]struct{}{
		"dog": {}, "park": {}, "frisbee": {}, "2": {}, "cats": {},
	}
	assert.Equal(t, want, got)
}

func TestTokenizeEmpty(t *testing.T) {
	assert.Empty(t, Tokenize(""))
	assert.Empty(t, Tokenize("the a an of"))
	assert.Empty(t, Tokenize("¿¡ — …"))
}

func TestRecall(t *testing.T) {
	caption := "a dog in a park, with frisbee nearby, under/around grass"
	assert.Equal(t, 1.0, Recall([]string{"dog", "grass", "frisbee"}, caption))
	assert.InDelta(t, 1.0/3.0, Recall([]string{"dog", "grass", "frisbee"}, "a dog in a park"), 1e-9)
	assert.Equal(t, 0.0, Recall([]string{"cat"}, caption))
}

func TestRecallEmptyLabels(t *testing.T) {
	assert.Equal(t, 0.0, Recall(nil, "a dog"))
	assert.Equal(t, 0.0, Recall([]string{}, ""))
}

func TestRecallMultiWordLabel(t *testing.T) {
	// tokens are single words, so a two-word label can never be recalled
	assert.Equal(t, 0.0, Recall([]string{"traffic light"}, "a red traffic light"))
}

func TestRecallDuplicateLabels(t *testing.T) {
	assert.Equal(t, 1.0, Recall([]string{"dog", "dog"}, "dog"))
}

func TestRecallBounds(t *testing.T) {
	captions := []string{"", "dog", "a b c", "dog cat bird tree sky", "!!!"}
	labelSets := [][]string{nil, {"dog"}, {"dog", "cat"}, {"", " "}, {"sky", "tree", "x"}}
	for _, c := range captions {
		for _, ls := range labelSets {
			r := Recall(ls, c)
			assert.GreaterOrEqual(t, r, 0.0)
			assert.LessOrEqual(t, r, 1.0)
		}
	}
}
