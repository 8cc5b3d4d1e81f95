// Package tokenizer converts text into fixed-length token-id and
// attention-mask sequences using greedy longest-prefix subword matching
// against a loaded vocabulary.
//
// Encoding is deterministic: lowercase, split on whitespace, then for each
// word repeatedly consume the longest vocabulary entry that prefixes the
// remaining characters. A word with no matching prefix contributes a single
// unknown token. Output is wrapped in begin/end markers and right-padded.
package tokenizer

import (
	"strings"

	"github.com/custodia-labs/kcache/internal/core/domain"
)

// DefaultMaxLength is the sequence length consumed by the embedding model.
const DefaultMaxLength = 256

// DefaultContinuationPrefix marks word-internal pieces in WordPiece vocabularies.
const DefaultContinuationPrefix = "##"

// Encoding is a fixed-length model input.
type Encoding struct {
	// IDs are token ids, right-padded with the pad id.
	IDs []int32

	// Mask is 1 for real tokens and 0 for padding.
	Mask []int32

	// Words maps each position to the index of the source word in
	// strings.Fields of the lowercased text. Markers and padding are -1.
	Words []int
}

// Len returns the number of real (unpadded) positions.
func (e Encoding) Len() int {
	n := 0
	for _, m := range e.Mask {
		if m == 1 {
			n++
		}
	}
	return n
}

// Tokenizer encodes text against a Vocabulary.
// A Tokenizer is safe for concurrent use.
type Tokenizer struct {
	vocab        *Vocabulary
	maxLength    int
	continuation string
}

// Option configures a Tokenizer.
type Option func(*Tokenizer)

// WithMaxLength sets the output sequence length. Values below 2 are ignored
// because the begin and end markers always occupy two positions.
func WithMaxLength(n int) Option {
	return func(t *Tokenizer) {
		if n >= 2 {
			t.maxLength = n
		}
	}
}

// WithContinuationPrefix sets the marker tried first for word-internal
// pieces. An empty prefix matches pieces exactly as they appear.
func WithContinuationPrefix(prefix string) Option {
	return func(t *Tokenizer) {
		t.continuation = prefix
	}
}

// New creates a tokenizer for vocab.
func New(vocab *Vocabulary, opts ...Option) *Tokenizer {
	t := &Tokenizer{
		vocab:        vocab,
		maxLength:    DefaultMaxLength,
		continuation: DefaultContinuationPrefix,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// MaxLength returns the output sequence length.
func (t *Tokenizer) MaxLength() int {
	return t.maxLength
}

// Vocabulary returns the loaded vocabulary.
func (t *Tokenizer) Vocabulary() *Vocabulary {
	return t.vocab
}

// Encode converts text into a fixed-length encoding.
// It only fails when no vocabulary is loaded.
func (t *Tokenizer) Encode(text string) (Encoding, error) {
	if t == nil || t.vocab == nil {
		return Encoding{}, domain.ErrTokenizerUnavailable
	}

	pieces, words := t.split(text)
	if limit := t.maxLength - 2; len(pieces) > limit {
		pieces, words = pieces[:limit], words[:limit]
	}

	enc := Encoding{
		IDs:   make([]int32, t.maxLength),
		Mask:  make([]int32, t.maxLength),
		Words: make([]int, t.maxLength),
	}

	pos := 0
	put := func(id, word int) {
		enc.IDs[pos] = int32(id)
		enc.Mask[pos] = 1
		enc.Words[pos] = word
		pos++
	}

	put(t.vocab.begin, -1)
	for i, id := range pieces {
		put(id, words[i])
	}
	put(t.vocab.end, -1)

	for ; pos < t.maxLength; pos++ {
		enc.IDs[pos] = int32(t.vocab.pad)
		enc.Words[pos] = -1
	}

	return enc, nil
}

// Subtokens returns the untruncated subtoken ids for text, without markers.
func (t *Tokenizer) Subtokens(text string) []int {
	if t == nil || t.vocab == nil {
		return nil
	}
	ids, _ := t.split(text)
	return ids
}

// split returns the subtoken ids for text with the word index of each.
func (t *Tokenizer) split(text string) (ids, words []int) {
	fields := strings.Fields(strings.ToLower(text))
	ids = make([]int, 0, len(fields))
	words = make([]int, 0, len(fields))
	for i, word := range fields {
		ids = t.appendWord(ids, []rune(word))
		for len(words) < len(ids) {
			words = append(words, i)
		}
	}
	return ids, words
}

// appendWord greedily consumes the longest matching prefix until the word
// is exhausted or nothing matches.
func (t *Tokenizer) appendWord(ids []int, rest []rune) []int {
	first := true
	for len(rest) > 0 {
		id, n := t.longestPrefix(rest, !first)
		if n == 0 {
			return append(ids, t.vocab.unk)
		}
		ids = append(ids, id)
		rest = rest[n:]
		first = false
	}
	return ids
}

// longestPrefix returns the id and rune length of the longest vocabulary
// entry prefixing rest. n is 0 when nothing matches.
func (t *Tokenizer) longestPrefix(rest []rune, continuation bool) (id, n int) {
	limit := len(rest)
	if limit > t.vocab.maxRunes {
		limit = t.vocab.maxRunes
	}

	for l := limit; l > 0; l-- {
		candidate := string(rest[:l])
		if continuation && t.continuation != "" {
			if id, ok := t.vocab.ids[t.continuation+candidate]; ok {
				return id, l
			}
		}
		if id, ok := t.vocab.ids[candidate]; ok {
			return id, l
		}
	}
	return 0, 0
}
