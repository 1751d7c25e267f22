// Package lexicon is a read-only synonym database with WordNet semantics:
// a lemma has senses, each sense is a set of lemmas, and inflected forms are
// reduced to their base form before lookup.
//
// A Lexicon is immutable once loaded and safe for concurrent use.
package lexicon

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// POS is a WordNet part of speech.
type POS string

const (
	Noun POS = "noun"
	Verb POS = "verb"
	Adj  POS = "adj"
	Adv  POS = "adv"
)

// PartsOfSpeech lists the parts of speech in lookup order.
var PartsOfSpeech = []POS{Noun, Verb, Adj, Adv}

// maxDetachDepth bounds repeated suffix detachment in baseForms.
const maxDetachDepth = 4

// detachments are the WordNet morphological substitution rules.
var detachments = map[POS][][2]string{
	Noun: {{"s", ""}, {"ses", "s"}, {"ves", "f"}, {"xes", "x"}, {"zes", "z"}, {"ches", "ch"}, {"shes", "sh"}, {"men", "man"}, {"ies", "y"}},
	Verb: {{"s", ""}, {"ies", "y"}, {"es", "e"}, {"es", ""}, {"ed", "e"}, {"ed", ""}, {"ing", "e"}, {"ing", ""}},
	Adj:  {{"er", ""}, {"est", ""}, {"er", "e"}, {"est", "e"}},
}

//go:embed snapshot.yaml
var snapshotYAML []byte

// Lexicon maps lemmas to their senses.
type Lexicon struct {
	index      map[POS]map[string][][]string
	exceptions map[POS]map[string][]string
}

type snapshot struct {
	Senses     map[POS]map[string][][]string `yaml:"senses"`
	Exceptions map[POS]map[string][]string   `yaml:"exceptions"`
}

func newLexicon() *Lexicon {
	l := &Lexicon{
		index:      make(map[POS]map[string][][]string),
		exceptions: make(map[POS]map[string][]string),
	}
	for _, pos := range PartsOfSpeech {
		l.index[pos] = make(map[string][][]string)
		l.exceptions[pos] = make(map[string][]string)
	}
	return l
}

// Default returns the lexicon built from the embedded snapshot, which covers
// the canonical caption vocabulary.
func Default() (*Lexicon, error) {
	return LoadYAML(bytes.NewReader(snapshotYAML))
}

// LoadYAML reads a lexicon in the snapshot format.
func LoadYAML(r io.Reader) (*Lexicon, error) {
	var snap snapshot
	if err := yaml.NewDecoder(r).Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to decode lexicon: %w", err)
	}

	l := newLexicon()
	for pos, entries := range snap.Senses {
		if _, ok := l.index[pos]; !ok {
			return nil, fmt.Errorf("unknown part of speech %q", pos)
		}
		for lemma, senses := range entries {
			l.index[pos][lemmaKey(lemma)] = senses
		}
	}
	for pos, entries := range snap.Exceptions {
		if _, ok := l.exceptions[pos]; !ok {
			return nil, fmt.Errorf("unknown part of speech %q", pos)
		}
		for form, bases := range entries {
			l.exceptions[pos][lemmaKey(form)] = bases
		}
	}
	return l, nil
}

// Load opens path as a WordNet dict directory when it is a directory and as
// a YAML snapshot otherwise. An empty path yields the embedded snapshot.
func Load(path string) (*Lexicon, error) {
	if path == "" {
		return Default()
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open lexicon: %w", err)
	}
	if info.IsDir() {
		return LoadWordNet(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open lexicon: %w", err)
	}
	defer f.Close()
	return LoadYAML(f)
}

// Size returns the number of indexed lemmas across all parts of speech.
func (l *Lexicon) Size() int {
	n := 0
	for _, entries := range l.index {
		n += len(entries)
	}
	return n
}

// Senses returns every sense of word, across parts of speech, after base
// form reduction. Lemmas are returned as stored.
func (l *Lexicon) Senses(word string) [][]string {
	key := lemmaKey(word)
	if key == "" {
		return nil
	}
	var out [][]string
	for _, pos := range PartsOfSpeech {
		for _, form := range l.baseForms(key, pos) {
			out = append(out, l.index[pos][form]...)
		}
	}
	return out
}

// Synonyms returns the distinct lemma names of every sense of word,
// lower-cased. Multi-word lemmas keep their underscores ("blow_dryer"), so
// they only match text written the same way. A word with no senses has no
// synonyms.
func (l *Lexicon) Synonyms(word string) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, sense := range l.Senses(word) {
		for _, lemma := range sense {
			s := surfaceForm(lemma)
			if s == "" {
				continue
			}
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

// baseForms returns the indexed lemmas form may be an inflection of.
func (l *Lexicon) baseForms(form string, pos POS) []string {
	if bases, ok := l.exceptions[pos][form]; ok {
		return l.indexed(pos, append([]string{form}, bases...))
	}

	forms := detach(pos, []string{form})
	if found := l.indexed(pos, append([]string{form}, forms...)); len(found) > 0 {
		return found
	}
	for depth := 0; depth < maxDetachDepth && len(forms) > 0; depth++ {
		forms = detach(pos, forms)
		if found := l.indexed(pos, forms); len(found) > 0 {
			return found
		}
	}
	return nil
}

func (l *Lexicon) indexed(pos POS, forms []string) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, f := range forms {
		if _, ok := l.index[pos][f]; !ok {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

func detach(pos POS, forms []string) []string {
	var out []string
	for _, f := range forms {
		for _, rule := range detachments[pos] {
			if strings.HasSuffix(f, rule[0]) && len(f) > len(rule[0]) {
				out = append(out, strings.TrimSuffix(f, rule[0])+rule[1])
			}
		}
	}
	return out
}

// lemmaKey is the lookup form of word. Spaces are not translated, so a
// multi-word label such as "traffic light" only matches an index entry
// stored with a space.
func lemmaKey(word string) string {
	return strings.ToLower(strings.TrimSpace(word))
}

func surfaceForm(lemma string) string {
	return strings.ToLower(strings.TrimSpace(lemma))
}
