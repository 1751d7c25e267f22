package fusion

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/panoptic-captioner/pkg/lexicon"
)

type stubThesaurus map[string][]string

func (s stubThesaurus) Synonyms(word string) []string { return s[word] }

func newDefaultFilter(t *testing.T) *Filter {
	t.Helper()
	lex, err := lexicon.Default()
	require.NoError(t, err)
	return NewFilter(lex)
}

func TestIsRedundantSubstring(t *testing.T) {
	f := NewFilter(nil)
	assert.True(t, f.IsRedundant("bicycle", "A man riding a Bicycle"))
	assert.True(t, f.IsRedundant("DOG", "a dog in a park"))
	// containment is plain substring, not word match
	assert.True(t, f.IsRedundant("cat", "a caterpillar on a leaf"))
	assert.False(t, f.IsRedundant("frisbee", "a dog in a park"))
}

func TestIsRedundantSynonym(t *testing.T) {
	f := NewFilter(stubThesaurus{
		"couch": {"couch", "sofa", "lounge"},
		"tv":    {"", "television"},
	})
	assert.True(t, f.IsRedundant("couch", "a cat asleep on a sofa"))
	assert.True(t, f.IsRedundant("tv", "a TELEVISION on a stand"))
	// an empty synonym never matches
	assert.False(t, f.IsRedundant("tv", "a lamp"))
	assert.False(t, f.IsRedundant("couch", "a cat on a bed"))
}

func TestIsRedundantNilFilter(t *testing.T) {
	var f *Filter
	assert.True(t, f.IsRedundant("dog", "a dog"))
	assert.False(t, f.IsRedundant("cat", "a dog"))
}

func TestFuseScenarios(t *testing.T) {
	f := newDefaultFilter(t)

	tests := []struct {
		name     string
		baseline string
		labels   []string
		want     string
	}{
		{
			name:     "object and environment",
			baseline: "a dog in a park",
			labels:   []string{"dog", "grass", "frisbee"},
			want:     "a dog in a park, with frisbee nearby, under/around grass",
		},
		{
			// person's lemmas are person, individual, someone, somebody,
			// mortal and soul; none occurs in the caption
			name:     "person is not covered by man",
			baseline: "a man riding a bicycle",
			labels:   []string{"person", "bicycle", "road"},
			want:     "a man riding a bicycle, with person nearby, under/around road",
		},
		{
			name:     "synonym match",
			baseline: "a cat sleeping on a couch",
			labels:   []string{"sofa", "cat"},
			want:     "a cat sleeping on a couch",
		},
		{
			name:     "lists",
			baseline: "a kitchen",
			labels:   []string{"oven", "sink", "refrigerator", "ground", "sky"},
			want:     "a kitchen, with oven, sink and refrigerator nearby, under/around ground and sky",
		},
		{
			name:     "environment only",
			baseline: "two people",
			labels:   []string{"sand", "water", "sky"},
			want:     "two people, under/around sand, water and sky",
		},
		{
			name:     "stuff label covered by synonym",
			baseline: "a man walking down a sidewalk",
			labels:   []string{"pavement", "building"},
			want:     "a man walking down a sidewalk, with building nearby",
		},
		{
			name:     "stuff labels without a match",
			baseline: "a cat on a sofa",
			labels:   []string{"rug", "curtain", "floor"},
			want:     "a cat on a sofa, with rug, curtain and floor nearby",
		},
		{
			// multi-word labels are not looked up, and blow_dryer keeps its underscore
			name:     "multi-word label",
			baseline: "a woman holding a blow dryer",
			labels:   []string{"hair dryer"},
			want:     "a woman holding a blow dryer, with hair dryer nearby",
		},
		{
			name:     "underscored synonym does not match spaced text",
			baseline: "an old idiot box on a shelf",
			labels:   []string{"tv"},
			want:     "an old idiot box on a shelf, with tv nearby",
		},
		{
			name:     "no labels",
			baseline: "a dog in a park",
			labels:   nil,
			want:     "a dog in a park",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.Fuse(tt.baseline, tt.labels))
		})
	}
}

func TestFuseEmptyBaseline(t *testing.T) {
	f := newDefaultFilter(t)
	assert.Equal(t, ", with dog nearby, under/around sky", f.Fuse("", []string{"dog", "sky"}))
	assert.Equal(t, "", f.Fuse("", nil))
}

func TestFusePrefix(t *testing.T) {
	f := newDefaultFilter(t)
	baselines := []string{"", "a dog", "A Man Riding A Horse", "  padded  "}
	labelSets := [][]string{nil, {"dog"}, {"sky", "tree"}, {"umbrella", "person", "snow"}}
	for _, b := range baselines {
		for _, ls := range labelSets {
			assert.True(t, strings.HasPrefix(f.Fuse(b, ls), b), "fuse(%q, %v)", b, ls)
		}
	}
}

func TestFuseAllRedundant(t *testing.T) {
	f := newDefaultFilter(t)
	b := "a giraffe and a zebra standing on grass"
	assert.Equal(t, b, f.Fuse(b, []string{"giraffe", "zebra", "grass"}))
}

func TestFuseKeepsOrder(t *testing.T) {
	f := NewFilter(nil)
	got := f.Fuse("x", []string{"road", "kite", "sky", "bench"})
	assert.Equal(t, "x, with kite and bench nearby, under/around road and sky", got)
}

func TestSurvivors(t *testing.T) {
	f := NewFilter(nil)
	assert.Equal(t, []string{"kite"}, f.Survivors("a dog", []string{"dog", "kite"}))
	assert.Empty(t, f.Survivors("a dog", nil))
}

func TestIsEnvironment(t *testing.T) {
	for _, l := range []string{"sky", "dirt", "grass", "road", "water", "ground", "sand", "snow"} {
		assert.True(t, IsEnvironment(l), l)
	}
	assert.False(t, IsEnvironment("tree"))
	assert.False(t, IsEnvironment("Sky"))
}

func BenchmarkFuse(b *testing.B) {
	lex, err := lexicon.Default()
	require.NoError(b, err)
	f := NewFilter(lex)
	labels := []string{"person", "bicycle", "road", "car", "tree", "sky", "building", "bus"}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		f.Fuse("a man riding a bicycle down a city street", labels)
	}
}
