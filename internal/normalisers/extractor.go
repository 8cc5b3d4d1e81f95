package normalisers

import (
	"context"
	"fmt"
	"os"

	"github.com/go-enry/go-enry/v2"

	"github.com/custodia-labs/kcache/internal/core/domain"
	"github.com/custodia-labs/kcache/internal/core/ports/driven"
	"github.com/custodia-labs/kcache/internal/logger"
)

// Ensure FileExtractor implements the interface.
var _ driven.Extractor = (*FileExtractor)(nil)

// DefaultMaxFileBytes bounds how much of a file is read.
const DefaultMaxFileBytes = 10 << 20

// FileExtractor reads local files and normalises them.
type FileExtractor struct {
	registry *Registry
	maxBytes int64
}

// NewFileExtractor creates an extractor. A nil registry uses the defaults.
func NewFileExtractor(registry *Registry) *FileExtractor {
	if registry == nil {
		registry = NewDefaultRegistry()
	}
	return &FileExtractor{registry: registry, maxBytes: DefaultMaxFileBytes}
}

// Extract reads the file at path and returns its text.
func (e *FileExtractor) Extract(ctx context.Context, path string) (*domain.RawDocument, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", domain.ErrUnsupportedType, path)
	}
	if info.Size() > e.maxBytes {
		return nil, fmt.Errorf("%w: %s is larger than %d bytes", domain.ErrUnsupportedType, path, e.maxBytes)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if enry.IsBinary(content) {
		return nil, fmt.Errorf("%w: %s is binary", domain.ErrUnsupportedType, path)
	}

	mimeType := DetectMIMEType(path, content)
	logger.Debug("Extracting %s as %s", path, mimeType)

	result, err := e.registry.Normalise(ctx, &domain.SourceFile{
		Path:     path,
		MIMEType: mimeType,
		Content:  content,
	})
	if err != nil {
		return nil, err
	}
	return &result.Document, nil
}

// Supported reports whether path looks like a file the extractor accepts,
// judged by name only.
func (e *FileExtractor) Supported(path string) bool {
	if enry.IsVendor(path) || enry.IsDotFile(path) {
		return false
	}
	mimeType := DetectMIMEType(path, nil)
	return mimeType != "" && (e.registry.find(mimeType) != nil || mimeType == "text/plain")
}
