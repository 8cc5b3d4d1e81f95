// Package dedupe collapses consecutive duplicate paragraph blocks, such as
// navigation or hero text repeated by page captures.
package dedupe

import (
	"context"
	"slices"
	"strings"

	"github.com/custodia-labs/kcache/internal/core/ports/driven"
	"github.com/custodia-labs/kcache/internal/postprocessors/chunker"
)

// DefaultBlockSizes is the order in which block sizes are tried.
var DefaultBlockSizes = []int{4, 6, 8, 3, 5, 2}

// Ensure Processor implements the interface.
var _ driven.TextProcessor = (*Processor)(nil)

// Processor removes a block of lines when it repeats the block just kept.
type Processor struct {
	sizes []int
}

// Option configures the processor.
type Option func(*Processor)

// WithBlockSizes overrides the block sizes tried, in order.
func WithBlockSizes(sizes ...int) Option {
	return func(p *Processor) {
		if len(sizes) > 0 {
			p.sizes = slices.Clone(sizes)
		}
	}
}

// New creates a duplicate-block processor.
func New(opts ...Option) *Processor {
	p := &Processor{sizes: DefaultBlockSizes}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "dedupe"
}

// Process returns text with duplicate blocks removed and surviving lines
// joined by blank lines.
func (p *Processor) Process(_ context.Context, text string) (string, error) {
	return strings.Join(p.Collapse(chunker.Lines(text)), "\n\n"), nil
}

// Collapse scans lines and skips any block equal to the block immediately
// preceding it in the output.
func (p *Processor) Collapse(lines []string) []string {
	out := make([]string, 0, len(lines))
	for i := 0; i < len(lines); {
		skipped := false
		for _, size := range p.sizes {
			if size <= 0 || len(out) < size || i+size > len(lines) {
				continue
			}
			if slices.Equal(out[len(out)-size:], lines[i:i+size]) {
				i += size
				skipped = true
				break
			}
		}
		if !skipped {
			out = append(out, lines[i])
			i++
		}
	}
	return out
}
