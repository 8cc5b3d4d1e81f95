// Package structure runs the optional structuring collaborator as a text
// processor.
package structure

import (
	"context"
	"strings"

	"github.com/custodia-labs/kcache/internal/core/ports/driven"
	"github.com/custodia-labs/kcache/internal/logger"
)

// Ensure Processor implements the interface.
var _ driven.TextProcessor = (*Processor)(nil)

// Processor asks a Structurer to rewrite text. It never fails: any error or
// empty output keeps the original text.
type Processor struct {
	structurer driven.Structurer
}

// New creates a structure processor. A nil structurer passes text through.
func New(structurer driven.Structurer) *Processor {
	return &Processor{structurer: structurer}
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "structure"
}

// Process returns the structured text, or text unchanged.
func (p *Processor) Process(ctx context.Context, text string) (string, error) {
	if p.structurer == nil {
		return text, nil
	}

	structured, err := p.structurer.Structure(ctx, text)
	if err != nil {
		logger.Debug("structuring failed, using original text: %v", err)
		return text, nil
	}
	if strings.TrimSpace(structured) == "" {
		logger.Debug("structuring returned empty output, using original text")
		return text, nil
	}

	return structured, nil
}
