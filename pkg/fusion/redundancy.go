// Package fusion merges segmentation labels into a baseline caption without
// repeating concepts the caption already names.
package fusion

import "strings"

// Thesaurus returns every synonym of every sense of a word.
type Thesaurus interface {
	Synonyms(word string) []string
}

// Filter decides label redundancy against a caption and fuses the survivors.
// It holds no mutable state and is safe for concurrent use.
type Filter struct {
	thesaurus Thesaurus
}

// NewFilter returns a Filter backed by t. A nil thesaurus restricts the
// check to direct substring matches.
func NewFilter(t Thesaurus) *Filter {
	return &Filter{thesaurus: t}
}

// IsRedundant reports whether label, or any of its synonyms, already occurs
// in baseline. Matching is case-insensitive substring containment.
func (f *Filter) IsRedundant(label, baseline string) bool {
	caption := strings.ToLower(baseline)
	label = strings.ToLower(label)

	if strings.Contains(caption, label) {
		return true
	}
	if f == nil || f.thesaurus == nil {
		return false
	}
	for _, syn := range f.thesaurus.Synonyms(label) {
		syn = strings.ToLower(syn)
		if syn == "" {
			continue
		}
		if strings.Contains(caption, syn) {
			return true
		}
	}
	return false
}

// Survivors returns the labels of labels that are not redundant with
// baseline, in their original order.
func (f *Filter) Survivors(baseline string, labels []string) []string {
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		if !f.IsRedundant(l, baseline) {
			out = append(out, l)
		}
	}
	return out
}
