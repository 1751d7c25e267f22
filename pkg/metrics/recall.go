// Package metrics scores captions against the labels segmentation found.
package metrics

import (
	"strings"
	"unicode"
)

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "and": {}, "or": {}, "of": {}, "on": {},
	"in": {}, "with": {}, "to": {}, "for": {}, "by": {}, "at": {},
}

// IsStopword reports whether token is dropped by Tokenize.
func IsStopword(token string) bool {
	_, ok := stopwords[token]
	return ok
}

// Tokenize lower-cases s, treats anything outside [a-z0-9] and whitespace as
// a separator, and returns the remaining non-stopword tokens as a set.
func Tokenize(s string) map[string]struct{} {
	cleaned := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || unicode.IsSpace(r) {
			return r
		}
		return ' '
	}, strings.ToLower(s))

	tokens := make(map[string]struct{})
	for _, tok := range strings.Fields(cleaned) {
		if IsStopword(tok) {
			continue
		}
		tokens[tok] = struct{}{}
	}
	return tokens
}

// Recall is the fraction of labels that appear verbatim among caption's tokens.
// Multi-word labels never match since tokens hold single words.
func Recall(labels []string, caption string) float64 {
	if len(labels) == 0 {
		return 0
	}
	tokens := Tokenize(caption)
	hits := 0
	for _, l := range labels {
		if _, ok := tokens[l]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(labels))
}
