package tokenizer

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"
)

// Reserved marker tokens. They must be present in every vocabulary.
const (
	PadToken     = "[PAD]"
	UnknownToken = "[UNK]"
	BeginToken   = "[CLS]"
	EndToken     = "[SEP]"
)

// Vocabulary maps token strings to unique integer ids.
type Vocabulary struct {
	ids map[string]int

	// maxRunes is the longest token length, bounding prefix search.
	maxRunes int

	pad, unk, begin, end int
}

// LoadVocabulary reads a vocabulary file with one token per line, where a
// token's id is its zero-based line number.
func LoadVocabulary(path string) (*Vocabulary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening vocabulary: %w", err)
	}
	defer f.Close()

	v, err := ReadVocabulary(f)
	if err != nil {
		return nil, fmt.Errorf("reading vocabulary %s: %w", path, err)
	}
	return v, nil
}

// ReadVocabulary reads one token per line from r.
func ReadVocabulary(r io.Reader) (*Vocabulary, error) {
	var tokens []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		tokens = append(tokens, strings.TrimRight(scanner.Text(), "\r"))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return NewVocabulary(tokens)
}

// NewVocabulary builds a vocabulary where tokens[i] has id i.
// Empty entries keep their id slot but are not matchable. When a token is
// repeated, the first id wins.
func NewVocabulary(tokens []string) (*Vocabulary, error) {
	v := &Vocabulary{ids: make(map[string]int, len(tokens))}
	for id, tok := range tokens {
		if tok == "" {
			continue
		}
		if _, exists := v.ids[tok]; exists {
			continue
		}
		v.ids[tok] = id
		if n := utf8.RuneCountInString(tok); n > v.maxRunes {
			v.maxRunes = n
		}
	}

	for _, reserved := range []struct {
		token string
		dst   *int
	}{
		{PadToken, &v.pad},
		{UnknownToken, &v.unk},
		{BeginToken, &v.begin},
		{EndToken, &v.end},
	} {
		id, ok := v.ids[reserved.token]
		if !ok {
			return nil, fmt.Errorf("vocabulary is missing reserved token %s", reserved.token)
		}
		*reserved.dst = id
	}

	return v, nil
}

// ID returns the id of token.
func (v *Vocabulary) ID(token string) (int, bool) {
	id, ok := v.ids[token]
	return id, ok
}

// Size returns the number of matchable tokens.
func (v *Vocabulary) Size() int {
	return len(v.ids)
}

// PadID returns the padding token id.
func (v *Vocabulary) PadID() int { return v.pad }

// UnknownID returns the unknown token id.
func (v *Vocabulary) UnknownID() int { return v.unk }

// BeginID returns the begin-of-sequence token id.
func (v *Vocabulary) BeginID() int { return v.begin }

// EndID returns the end-of-sequence token id.
func (v *Vocabulary) EndID() int { return v.end }
