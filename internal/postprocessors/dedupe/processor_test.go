package dedupe

import (
	"context"
	"strings"
	"testing"
)

func TestProcessor_Name(t *testing.T) {
	if New().Name() != "dedupe" {
		t.Errorf("expected name 'dedupe', got '%s'", New().Name())
	}
}

func TestCollapse(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
		want  []string
	}{
		{
			name:  "no duplicates",
			lines: []string{"a", "b", "c"},
			want:  []string{"a", "b", "c"},
		},
		{
			name:  "repeated four line block",
			lines: []string{"Home", "About", "Blog", "Contact", "Home", "About", "Blog", "Contact", "Body"},
			want:  []string{"Home", "About", "Blog", "Contact", "Body"},
		},
		{
			name:  "block repeated three times",
			lines: []string{"x", "y", "x", "y", "x", "y"},
			want:  []string{"x", "y"},
		},
		{
			name:  "single repeated line is kept",
			lines: []string{"same", "same"},
			want:  []string{"same", "same"},
		},
		{
			name:  "non-adjacent repeat is kept",
			lines: []string{"a", "b", "c", "a", "b"},
			want:  []string{"a", "b", "c", "a", "b"},
		},
	}

	p := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.Collapse(tt.lines)
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Errorf("Collapse() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestProcess_JoinsWithBlankLines(t *testing.T) {
	in := "  Nav one\nNav two\n\nNav one\nNav two\nReal content  "
	got, err := New().Process(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "Nav one\n\nNav two\n\nReal content"
	if got != want {
		t.Errorf("Process() = %q, want %q", got, want)
	}
}

func TestWithBlockSizes(t *testing.T) {
	p := New(WithBlockSizes(1))
	got := p.Collapse([]string{"a", "a", "b"})
	if len(got) != 2 {
		t.Errorf("expected single-line duplicates removed, got %v", got)
	}
}
