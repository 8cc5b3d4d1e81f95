package watch

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
)

// defaultIgnorePatterns are always applied on top of the ignore file.
var defaultIgnorePatterns = []string{
	".git",
	".hg",
	".svn",
	".kcache",
	"node_modules",
	"vendor",
	"__pycache__",
	".DS_Store",
	"*.swp",
	"*.swo",
	"*~",
	"*.tmp",
	".#*",
}

// IgnoreFilter matches paths against gitignore-style patterns relative to
// the watched root.
type IgnoreFilter struct {
	root     string
	patterns *gitignore.GitIgnore
}

// NewIgnoreFilter reads ignoreFile from root (if it exists) and adds the
// default patterns.
func NewIgnoreFilter(root, ignoreFile string) (*IgnoreFilter, error) {
	patterns := append([]string(nil), defaultIgnorePatterns...)

	if ignoreFile != "" {
		lines, err := readIgnoreFile(filepath.Join(root, ignoreFile))
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, lines...)
	}

	return &IgnoreFilter{
		root:     root,
		patterns: gitignore.CompileIgnoreLines(patterns...),
	}, nil
}

// ShouldIgnore reports whether path (absolute or root-relative) is excluded.
func (f *IgnoreFilter) ShouldIgnore(path string) bool {
	rel := path
	if filepath.IsAbs(path) {
		r, err := filepath.Rel(f.root, path)
		if err != nil || strings.HasPrefix(r, "..") {
			return true
		}
		rel = r
	}
	if rel == "." {
		return false
	}
	return f.patterns.MatchesPath(filepath.ToSlash(rel))
}

func readIgnoreFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	defer file.Close()

	var patterns []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return patterns, nil
}
