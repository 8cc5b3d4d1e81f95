// Package command provides a Structurer that pipes raw text through an
// external program, such as a local model script, and reads the structured
// text from its standard output.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/custodia-labs/kcache/internal/core/ports/driven"
	"github.com/custodia-labs/kcache/internal/logger"
)

// Ensure Structurer implements the interface.
var _ driven.Structurer = (*Structurer)(nil)

// Default limits.
const (
	DefaultTimeout = 60 * time.Second

	// MaxInputChars caps the characters written to the program.
	MaxInputChars = 200_000
)

// ErrNoCommand is returned when no program is configured.
var ErrNoCommand = errors.New("structurer: no command configured")

// Structurer runs a program once per document.
type Structurer struct {
	argv    []string
	timeout time.Duration
}

// New creates a structurer for argv (program followed by arguments).
func New(argv []string, timeout time.Duration) (*Structurer, error) {
	if len(argv) == 0 || strings.TrimSpace(argv[0]) == "" {
		return nil, ErrNoCommand
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Structurer{argv: append([]string(nil), argv...), timeout: timeout}, nil
}

// Structure writes raw to the program's stdin and returns its trimmed
// stdout. A non-zero exit, a timeout or empty output is an error; callers
// fall back to the raw text.
func (s *Structurer) Structure(ctx context.Context, raw string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	input := raw
	if runes := []rune(raw); len(runes) > MaxInputChars {
		input = string(runes[:MaxInputChars])
	}

	cmd := exec.CommandContext(ctx, s.argv[0], s.argv[1:]...) //nolint:gosec // command comes from user config
	cmd.Stdin = strings.NewReader(input)
	cmd.WaitDelay = time.Second
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger.Debug("Structuring %d chars with %s", len(input), s.argv[0])
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("structurer: %w", ctx.Err())
		}
		return "", fmt.Errorf("structurer: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	out := strings.TrimSpace(stdout.String())
	if out == "" {
		return "", errors.New("structurer: empty output")
	}
	return out, nil
}
