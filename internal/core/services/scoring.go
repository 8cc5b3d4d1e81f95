package services

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/custodia-labs/kcache/internal/core/domain"
	"github.com/custodia-labs/kcache/internal/core/ports/driven"
)

// stopwords are dropped from lexical token sets.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "but": {},
	"by": {}, "can": {}, "did": {}, "do": {}, "does": {}, "for": {}, "from": {},
	"had": {}, "has": {}, "have": {}, "he": {}, "her": {}, "his": {}, "how": {},
	"i": {}, "if": {}, "in": {}, "into": {}, "is": {}, "it": {}, "its": {},
	"me": {}, "my": {}, "no": {}, "not": {}, "of": {}, "on": {}, "or": {},
	"our": {}, "she": {}, "so": {}, "than": {}, "that": {}, "the": {}, "their": {},
	"them": {}, "then": {}, "there": {}, "these": {}, "they": {}, "this": {},
	"to": {}, "was": {}, "we": {}, "were": {}, "what": {}, "when": {}, "where": {},
	"which": {}, "who": {}, "why": {}, "will": {}, "with": {}, "you": {}, "your": {},
	"about": {}, "any": {}, "all": {}, "also": {},
}

// normalise folds compatibility forms (NFKC), lowercases and collapses
// whitespace.
func normalise(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(norm.NFKC.String(text))), " ")
}

// tokens returns the set of lowercase alphanumeric runs of at least two
// characters, minus stopwords.
func tokens(text string) map[string]struct{} {
	set := make(map[string]struct{})
	fields := strings.FieldsFunc(normalise(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, f := range fields {
		if len([]rune(f)) < 2 {
			continue
		}
		if _, stop := stopwords[f]; stop {
			continue
		}
		set[f] = struct{}{}
	}
	return set
}

// alnumOnly keeps only letters and digits of the normalised text.
func alnumOnly(text string) string {
	var b strings.Builder
	for _, r := range normalise(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// trigrams returns the character trigram set of s. Strings shorter than
// three characters form a single gram.
func trigrams(s string) map[string]struct{} {
	runes := []rune(s)
	set := make(map[string]struct{})
	if len(runes) == 0 {
		return set
	}
	if len(runes) < 3 {
		set[s] = struct{}{}
		return set
	}
	for i := 0; i+3 <= len(runes); i++ {
		set[string(runes[i:i+3])] = struct{}{}
	}
	return set
}

// tokenOverlap is the share of query tokens present in the candidate.
func tokenOverlap(query, candidate map[string]struct{}) float64 {
	if len(query) == 0 {
		return 0
	}
	hits := 0
	for t := range query {
		if _, ok := candidate[t]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(query))
}

// jaccard is |a ∩ b| / |a ∪ b|.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for g := range a {
		if _, ok := b[g]; ok {
			inter++
		}
	}
	return float64(inter) / float64(len(a)+len(b)-inter)
}

// queryFeatures holds the query-side lexical features, computed once per
// search.
type queryFeatures struct {
	text     string
	tokens   map[string]struct{}
	trigrams map[string]struct{}
	intents  []intent
}

func newQueryFeatures(query string) queryFeatures {
	q := queryFeatures{
		text:     normalise(query),
		tokens:   tokens(query),
		trigrams: trigrams(alnumOnly(query)),
	}
	q.intents = detectIntents(q.tokens)
	return q
}

// contains reports whether the normalised query appears in normalised text.
func (q queryFeatures) contains(text string) bool {
	return q.text != "" && strings.Contains(normalise(text), q.text)
}

// lexicalScore blends token overlap, trigram similarity and a phrase bonus
// into [0, 1].
func lexicalScore(q queryFeatures, text string, w domain.ScoringWeights) float64 {
	score := w.TokenOverlap*tokenOverlap(q.tokens, tokens(text)) +
		w.Trigram*jaccard(q.trigrams, trigrams(alnumOnly(text)))
	if q.contains(text) {
		score += w.Phrase
	}
	return score
}

// ftsScores converts full-text hits to [0, 1] scores keyed by chunk ID.
// Ranks are lower-is-better. When the best rank is negative (SQLite bm25)
// each hit scores rank/best, so the best hit scores 1. Otherwise hits score
// by position: 1, 1/2, 1/3, ...
func ftsScores(hits []driven.LexicalHit) map[string]float64 {
	scores := make(map[string]float64, len(hits))
	if len(hits) == 0 {
		return scores
	}

	best := hits[0].Rank
	for _, h := range hits[1:] {
		if h.Rank < best {
			best = h.Rank
		}
	}

	for i, h := range hits {
		var s float64
		if best < 0 {
			s = h.Rank / best
		} else {
			s = 1 / float64(1+i)
		}
		s = clamp01(s)
		if s > scores[h.ChunkID] {
			scores[h.ChunkID] = s
		}
	}
	return scores
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
