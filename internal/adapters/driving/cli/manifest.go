package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/kcache/internal/core/domain"
)

// Manifest lists items to ingest in one run.
//
//	items:
//	  - path: notes/setup.md
//	  - title: Meeting
//	    url: https://wiki.example.com/meeting
//	    text: |
//	      Decisions...
type Manifest struct {
	Items []ManifestItem `yaml:"items"`
}

// ManifestItem is a file path or inline text.
type ManifestItem struct {
	Path  string `yaml:"path"`
	Text  string `yaml:"text"`
	Title string `yaml:"title"`
	URL   string `yaml:"url"`
}

// LoadManifest reads a manifest. Relative paths are resolved against the
// manifest's directory.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: parsing manifest %s: %w", domain.ErrInvalidInput, path, err)
	}

	base := filepath.Dir(path)
	for i := range m.Items {
		item := &m.Items[i]
		hasPath := strings.TrimSpace(item.Path) != ""
		hasText := strings.TrimSpace(item.Text) != ""
		if hasPath == hasText {
			return nil, fmt.Errorf("%w: manifest item %d needs exactly one of path or text",
				domain.ErrInvalidInput, i+1)
		}
		if hasPath && !filepath.IsAbs(item.Path) {
			item.Path = filepath.Join(base, item.Path)
		}
	}
	return &m, nil
}
