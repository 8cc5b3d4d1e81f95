// Package chunker provides a boundary-aware text chunker.
package chunker

import (
	"strings"
	"unicode"

	"github.com/custodia-labs/kcache/internal/core/domain"
	"github.com/custodia-labs/kcache/internal/core/ports/driven"
)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 800

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = 100

// Ensure Processor implements the interface.
var _ driven.Chunker = (*Processor)(nil)

// Processor splits text into overlapping chunks, preferring paragraph and
// sentence boundaries. Sizes are measured in characters (runes).
type Processor struct {
	chunkSize int
	overlap   int
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(p *Processor) {
		if size > 0 {
			p.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		if overlap >= 0 {
			p.overlap = overlap
		}
	}
}

// New creates a new chunker processor with the given options.
func New(opts ...Option) *Processor {
	p := &Processor{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}

	for _, opt := range opts {
		opt(p)
	}

	// Ensure overlap doesn't exceed chunk size
	if p.overlap >= p.chunkSize {
		p.overlap = p.chunkSize / 4
	}

	return p
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// Chunk splits text into segments. The text is paragraph-normalised first.
// A chunk holds at most chunkSize runes, except the last one: a remainder no
// longer than the overlap is folded into the final chunk, so no chunk exceeds
// chunkSize+overlap runes. When maxChunks > 0 and text remains after that many
// chunks, truncated is true.
func (p *Processor) Chunk(text string, maxChunks int) ([]domain.Segment, bool) {
	runes := []rune(NormaliseParagraphs(text))
	n := len(runes)
	if n == 0 {
		return nil, false
	}
	if n <= p.chunkSize {
		return []domain.Segment{{Index: 0, Text: string(runes)}}, false
	}

	segments := make([]domain.Segment, 0, n/(p.chunkSize-p.overlap)+1)
	start := 0
	for start < n {
		if maxChunks > 0 && len(segments) >= maxChunks {
			return segments, true
		}

		end := min(start+p.chunkSize, n)
		if end < n {
			if n-end <= p.overlap {
				// The remainder would only repeat overlap; keep it here.
				end = n
			} else if cut := cutPoint(runes[start:end], p.minCut()); cut > 0 {
				end = start + cut
			}
		}

		if chunk := strings.TrimSpace(string(runes[start:end])); chunk != "" {
			segments = append(segments, domain.Segment{Index: len(segments), Text: chunk})
		}
		if end >= n {
			break
		}

		next := end - p.overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}

	return segments, false
}

// minCut is the earliest boundary cut accepted inside a full window. A cut
// at or before the overlap would not advance the next window past start.
func (p *Processor) minCut() int {
	return max(p.overlap+1, p.chunkSize/2)
}

// cutPoint returns where to end a window: at the last newline, else just
// after the last sentence period, else 0 (cut at the raw boundary). Cuts
// before floor are ignored.
func cutPoint(window []rune, floor int) int {
	for i := len(window) - 1; i >= floor && i > 0; i-- {
		if window[i] == '\n' {
			return i
		}
	}
	for i := len(window) - 1; i >= floor && i > 0; i-- {
		if window[i] != '.' {
			continue
		}
		if i == len(window)-1 || unicode.IsSpace(window[i+1]) {
			return i + 1
		}
	}
	return 0
}

// Lines returns the trimmed, non-empty lines of text.
func Lines(text string) []string {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// NormaliseParagraphs joins the non-empty lines of text with blank lines.
func NormaliseParagraphs(text string) string {
	return strings.Join(Lines(text), "\n\n")
}
