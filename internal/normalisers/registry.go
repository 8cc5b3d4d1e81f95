package normalisers

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/go-enry/go-enry/v2"

	"github.com/custodia-labs/kcache/internal/core/domain"
	"github.com/custodia-labs/kcache/internal/core/ports/driven"
	"github.com/custodia-labs/kcache/internal/normalisers/html"
	"github.com/custodia-labs/kcache/internal/normalisers/markdown"
	"github.com/custodia-labs/kcache/internal/normalisers/plaintext"
)

// Registry selects a normaliser by MIME type.
type Registry struct {
	mu          sync.RWMutex
	normalisers []driven.Normaliser
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// NewDefaultRegistry creates a registry with the built-in normalisers.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(html.New())
	r.Register(markdown.New())
	r.Register(plaintext.New())
	return r
}

// Register adds a normaliser. Higher priorities are preferred.
func (r *Registry) Register(n driven.Normaliser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.normalisers = append(r.normalisers, n)
	sort.SliceStable(r.normalisers, func(i, j int) bool {
		return r.normalisers[i].Priority() > r.normalisers[j].Priority()
	})
}

// SupportedMIMETypes returns all MIME types that can be normalised.
func (r *Registry) SupportedMIMETypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]bool)
	var types []string
	for _, n := range r.normalisers {
		for _, t := range n.SupportedMIMETypes() {
			if !seen[t] {
				seen[t] = true
				types = append(types, t)
			}
		}
	}
	sort.Strings(types)
	return types
}

// Normalise runs the best normaliser for file.MIMEType. Unknown text/*
// types fall back to the text/plain normaliser.
func (r *Registry) Normalise(ctx context.Context, file *domain.SourceFile) (*driven.NormaliseResult, error) {
	if file == nil {
		return nil, domain.ErrInvalidInput
	}
	n := r.find(file.MIMEType)
	if n == nil && strings.HasPrefix(file.MIMEType, "text/") {
		n = r.find("text/plain")
	}
	if n == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedType, file.MIMEType)
	}
	return n.Normalise(ctx, file)
}

func (r *Registry) find(mimeType string) driven.Normaliser {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, n := range r.normalisers {
		for _, t := range n.SupportedMIMETypes() {
			if t == mimeType {
				return n
			}
		}
	}
	return nil
}

// extensionTypes covers formats language detection does not name.
var extensionTypes = map[string]string{
	".md":       "text/markdown",
	".markdown": "text/markdown",
	".mdx":      "text/markdown",
	".html":     "text/html",
	".htm":      "text/html",
	".xhtml":    "application/xhtml+xml",
	".txt":      "text/plain",
	".text":     "text/plain",
	".log":      "text/plain",
	".rst":      "text/plain",
	".org":      "text/plain",
	".csv":      "text/csv",
}

// languageTypes maps detected languages to MIME types.
var languageTypes = map[string]string{
	"Go":         "text/x-go",
	"JavaScript": "text/javascript",
	"TypeScript": "text/typescript",
	"Python":     "text/x-python",
	"Java":       "text/x-java",
	"C":          "text/x-c",
	"C++":        "text/x-c++",
	"Ruby":       "text/x-ruby",
	"Rust":       "text/x-rust",
	"Shell":      "text/x-shellscript",
	"Markdown":   "text/markdown",
	"HTML":       "text/html",
	"CSS":        "text/css",
	"JSON":       "application/json",
	"YAML":       "text/yaml",
	"TOML":       "text/toml",
	"XML":        "application/xml",
	"SQL":        "text/x-sql",
	"Text":       "text/plain",
}

// DetectMIMEType picks a MIME type from the file extension, then the
// detected language, then the content itself.
func DetectMIMEType(path string, content []byte) string {
	if t, ok := extensionTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return t
	}
	if t, ok := languageTypes[enry.GetLanguage(filepath.Base(path), content)]; ok {
		return t
	}
	if len(content) == 0 {
		return "text/plain"
	}
	detected := http.DetectContentType(content)
	if idx := strings.Index(detected, ";"); idx != -1 {
		detected = detected[:idx]
	}
	return strings.TrimSpace(detected)
}
