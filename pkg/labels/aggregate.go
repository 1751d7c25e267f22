package labels

import (
	"sort"

	"github.com/menta2k/panoptic-captioner/pkg/types"
)

// DefaultTopK is the label budget used when callers do not pick one.
const DefaultTopK = 8

// sentinels are the generic panoptic classes that never describe anything.
var sentinels = map[string]struct{}{
	"thing": {},
	"stuff": {},
}

// IsSentinel reports whether label is a generic thing/stuff placeholder.
func IsSentinel(label string) bool {
	_, ok := sentinels[label]
	return ok
}

// WeightMap accumulates per-label weight while remembering first-insertion order.
type WeightMap struct {
	order   []string
	weights map[string]float64
}

// NewWeightMap creates an empty WeightMap
func NewWeightMap() *WeightMap {
	return &WeightMap{weights: make(map[string]float64)}
}

// Add adds w to label's running total.
func (m *WeightMap) Add(label string, w float64) {
	if _, ok := m.weights[label]; !ok {
		m.order = append(m.order, label)
	}
	m.weights[label] += w
}

// Weight returns the accumulated weight of label.
func (m *WeightMap) Weight(label string) float64 {
	return m.weights[label]
}

// Len returns the number of distinct labels.
func (m *WeightMap) Len() int {
	return len(m.order)
}

// Ranked returns the labels by descending weight. Equal weights keep
// their insertion order.
func (m *WeightMap) Ranked() []string {
	ranked := make([]string, len(m.order))
	copy(ranked, m.order)
	sort.SliceStable(ranked, func(i, j int) bool {
		return m.weights[ranked[i]] > m.weights[ranked[j]]
	})
	return ranked
}

// Accumulate canonicalizes every segment and sums its weight per label.
// Segments whose label canonicalizes to "" are skipped.
func Accumulate(segments []types.Segment) *WeightMap {
	m := NewWeightMap()
	for _, seg := range segments {
		label := Canonicalize(seg.Label)
		if label == "" {
			continue
		}
		m.Add(label, seg.Weight())
	}
	return m
}

// Aggregate returns at most k canonical labels ranked by accumulated weight,
// never including the thing/stuff sentinels. A non-positive k yields an
// empty list.
func Aggregate(segments []types.Segment, k int) []string {
	out := []string{}
	if k <= 0 {
		return out
	}
	for _, label := range Accumulate(segments).Ranked() {
		if IsSentinel(label) {
			continue
		}
		out = append(out, label)
		if len(out) == k {
			break
		}
	}
	return out
}
