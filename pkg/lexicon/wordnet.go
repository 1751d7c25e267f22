package lexicon

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// fileSuffixes maps parts of speech to WordNet dict file suffixes.
var fileSuffixes = map[POS]string{
	Noun: "noun",
	Verb: "verb",
	Adj:  "adj",
	Adv:  "adv",
}

// maxLineSize covers the longest data.* records shipped with WordNet 3.x.
const maxLineSize = 1 << 20

// LoadWordNet reads a WordNet dict directory (index.*, data.*, *.exc).
// Parts of speech whose files are missing are skipped; at least one must load.
func LoadWordNet(dir string) (*Lexicon, error) {
	l := newLexicon()
	loaded := 0
	for _, pos := range PartsOfSpeech {
		suffix := fileSuffixes[pos]

		synsets, err := readDataFile(filepath.Join(dir, "data."+suffix))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if err := readIndexFile(filepath.Join(dir, "index."+suffix), synsets, l.index[pos]); err != nil {
			return nil, err
		}
		if err := readExceptionFile(filepath.Join(dir, suffix+".exc"), l.exceptions[pos]); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		loaded++
	}
	if loaded == 0 {
		return nil, fmt.Errorf("no WordNet data files found in %s", dir)
	}
	return l, nil
}

func readDataFile(path string) (map[string][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	synsets := make(map[string][]string)
	err = scanRecords(f, func(fields []string) error {
		offset, words, err := parseDataRecord(fields)
		if err != nil {
			return fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		synsets[offset] = words
		return nil
	})
	return synsets, err
}

// parseDataRecord reads "offset lex_filenum ss_type w_cnt word lex_id [word lex_id...] ...".
func parseDataRecord(fields []string) (string, []string, error) {
	if len(fields) < 4 {
		return "", nil, fmt.Errorf("short data record at %q", strings.Join(fields, " "))
	}
	count, err := strconv.ParseInt(fields[3], 16, 32)
	if err != nil {
		return "", nil, fmt.Errorf("bad word count in record %s: %w", fields[0], err)
	}
	if len(fields) < 4+2*int(count) {
		return "", nil, fmt.Errorf("truncated data record %s", fields[0])
	}
	words := make([]string, 0, count)
	for i := 0; i < int(count); i++ {
		words = append(words, stripSyntacticMarker(fields[4+2*i]))
	}
	return fields[0], words, nil
}

// stripSyntacticMarker drops adjective position markers such as "(a)" or "(ip)".
func stripSyntacticMarker(word string) string {
	if i := strings.IndexByte(word, '('); i > 0 && strings.HasSuffix(word, ")") {
		return word[:i]
	}
	return word
}

func readIndexFile(path string, synsets map[string][]string, index map[string][][]string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return scanRecords(f, func(fields []string) error {
		lemma, offsets, err := parseIndexRecord(fields)
		if err != nil {
			return fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		senses := make([][]string, 0, len(offsets))
		for _, off := range offsets {
			if words, ok := synsets[off]; ok {
				senses = append(senses, words)
			}
		}
		index[lemmaKey(lemma)] = senses
		return nil
	})
}

// parseIndexRecord reads "lemma pos synset_cnt p_cnt [ptr...] sense_cnt tagsense_cnt offset...".
func parseIndexRecord(fields []string) (string, []string, error) {
	if len(fields) < 4 {
		return "", nil, fmt.Errorf("short index record at %q", strings.Join(fields, " "))
	}
	synsetCount, err := strconv.Atoi(fields[2])
	if err != nil {
		return "", nil, fmt.Errorf("bad synset count for %s: %w", fields[0], err)
	}
	if synsetCount > len(fields)-4 {
		return "", nil, fmt.Errorf("truncated index record for %s", fields[0])
	}
	return fields[0], fields[len(fields)-synsetCount:], nil
}

func readExceptionFile(path string, exceptions map[string][]string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return scanRecords(f, func(fields []string) error {
		if len(fields) < 2 {
			return nil
		}
		form := lemmaKey(fields[0])
		exceptions[form] = append(exceptions[form], fields[1:]...)
		return nil
	})
}

// scanRecords calls fn with the whitespace-separated fields of every record,
// skipping blank lines and the indented license header.
func scanRecords(r io.Reader, fn func(fields []string) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for sc.Scan() {
		line := sc.Text()
		if line == "" || strings.HasPrefix(line, " ") {
			continue
		}
		if err := fn(strings.Fields(line)); err != nil {
			return err
		}
	}
	return sc.Err()
}
