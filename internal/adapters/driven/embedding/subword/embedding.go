// Package subword provides the built-in offline embedder.
//
// Text is encoded with the greedy longest-prefix tokenizer and every real
// token of the encoding and adjacent token pair is hashed into a fixed number of
// signed buckets. The result is L2 normalised, so dot products are cosine
// similarities. Only the vocabulary file is needed; no model weights.
package subword

import (
	"context"
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"

	"github.com/custodia-labs/kcache/internal/adapters/driven/embedding/loader"
	"github.com/custodia-labs/kcache/internal/core/domain"
	"github.com/custodia-labs/kcache/internal/core/ports/driven"
	"github.com/custodia-labs/kcache/internal/logger"
	"github.com/custodia-labs/kcache/internal/tokenizer"
	"github.com/custodia-labs/kcache/internal/vector"
)

// Ensure Embedder implements the interface.
var (
	_ driven.Embedder   = (*Embedder)(nil)
	_ driven.Reloadable = (*Embedder)(nil)
)

// DefaultDimensions matches the vector size of the exported sentence model.
const DefaultDimensions = 384

// pairWeight scales adjacent-piece features relative to single pieces.
const pairWeight = 0.5

// Config holds configuration for the subword embedder.
type Config struct {
	// VocabPath is the vocabulary file, one token per line.
	VocabPath string

	// Dimensions is the output vector size (default: 384).
	Dimensions int

	// MaxLength bounds the pieces considered per text, markers included
	// (default: tokenizer.DefaultMaxLength).
	MaxLength int
}

// Embedder hashes subword pieces into a fixed-size vector.
type Embedder struct {
	handle     *loader.Handle[*tokenizer.Tokenizer]
	dimensions int
}

// NewEmbedder creates an embedder whose vocabulary is loaded on first use.
func NewEmbedder(cfg Config) *Embedder {
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = DefaultDimensions
	}
	if cfg.MaxLength <= 0 {
		cfg.MaxLength = tokenizer.DefaultMaxLength
	}

	return &Embedder{
		handle: loader.New(func(context.Context) (*tokenizer.Tokenizer, error) {
			logger.Debug("Loading vocabulary from %s", cfg.VocabPath)
			vocab, err := tokenizer.LoadVocabulary(cfg.VocabPath)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", domain.ErrTokenizerUnavailable, err)
			}
			logger.Debug("Vocabulary loaded: %d tokens", vocab.Size())
			return tokenizer.New(vocab, tokenizer.WithMaxLength(cfg.MaxLength)), nil
		}),
		dimensions: cfg.Dimensions,
	}
}

// NewEmbedderWithTokenizer creates an embedder around an already loaded
// tokenizer.
func NewEmbedderWithTokenizer(tok *tokenizer.Tokenizer, dimensions int) *Embedder {
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	return &Embedder{handle: loader.NewReady(tok), dimensions: dimensions}
}

// Available reports whether the vocabulary is loaded or loads successfully.
func (e *Embedder) Available(ctx context.Context) bool {
	_, err := e.handle.Get(ctx)
	return err == nil
}

// Retry clears a cached vocabulary load failure.
func (e *Embedder) Retry() bool {
	return e.handle.Retry()
}

// Dimension returns the vector size.
func (e *Embedder) Dimension() int {
	return e.dimensions
}

// ModelID identifies the hashing scheme and size.
func (e *Embedder) ModelID() string {
	return "subword-hash-" + strconv.Itoa(e.dimensions)
}

// EmbedOne embeds a single text.
func (e *Embedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	tok, err := e.handle.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
	}
	return e.embed(tok, text), nil
}

// Embed embeds texts in order.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	tok, err := e.handle.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = e.embed(tok, text)
	}
	return out, nil
}

// Close unloads the vocabulary.
func (e *Embedder) Close() error {
	return e.handle.Close()
}

func (e *Embedder) embed(tok *tokenizer.Tokenizer, text string) []float32 {
	features := pieces(tok, text)
	v := make([]float32, e.dimensions)
	for i, f := range features {
		e.add(v, f, 1)
		if i > 0 {
			e.add(v, features[i-1]+" "+f, pairWeight)
		}
	}
	return vector.NormalizeL2(v)
}

// add hashes feature into a bucket. The top bit of the hash picks the sign
// so that collisions tend to cancel rather than accumulate.
func (e *Embedder) add(v []float32, feature string, weight float32) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()
	bucket := int(sum % uint64(e.dimensions))
	if sum>>63 == 1 {
		weight = -weight
	}
	v[bucket] += weight
}

// pieces returns one feature per real token of the encoding, skipping the
// begin and end markers. Unknown tokens keep the surface form of their word
// so that distinct unknown words stay distinct.
func pieces(tok *tokenizer.Tokenizer, text string) []string {
	enc, err := tok.Encode(text)
	if err != nil {
		return nil
	}
	unk := int32(tok.Vocabulary().UnknownID())
	words := strings.Fields(strings.ToLower(text))

	out := make([]string, 0, enc.Len())
	for pos, id := range enc.IDs {
		if enc.Mask[pos] == 0 || enc.Words[pos] < 0 {
			continue
		}
		if id == unk {
			out = append(out, "w:"+words[enc.Words[pos]])
			continue
		}
		out = append(out, strconv.Itoa(int(id)))
	}
	return out
}
