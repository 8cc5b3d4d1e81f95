package chunker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		p := New()
		if p.chunkSize != DefaultChunkSize {
			t.Errorf("expected chunkSize %d, got %d", DefaultChunkSize, p.chunkSize)
		}
		if p.overlap != DefaultChunkOverlap {
			t.Errorf("expected overlap %d, got %d", DefaultChunkOverlap, p.overlap)
		}
	})

	t.Run("overlap exceeds chunk size", func(t *testing.T) {
		p := New(WithChunkSize(100), WithOverlap(150))
		if p.overlap >= p.chunkSize {
			t.Error("overlap should be reduced when it exceeds chunk size")
		}
	})

	t.Run("zero values ignored", func(t *testing.T) {
		p := New(WithChunkSize(0), WithOverlap(-1))
		if p.chunkSize != DefaultChunkSize {
			t.Errorf("expected default chunkSize, got %d", p.chunkSize)
		}
		if p.overlap != DefaultChunkOverlap {
			t.Errorf("expected default overlap, got %d", p.overlap)
		}
	})
}

func TestProcessor_Name(t *testing.T) {
	if New().Name() != "chunker" {
		t.Errorf("expected name 'chunker', got '%s'", New().Name())
	}
}

func TestChunk_Empty(t *testing.T) {
	for _, in := range []string{"", "   ", "\n\n\t\n"} {
		segments, truncated := New().Chunk(in, 0)
		if len(segments) != 0 || truncated {
			t.Errorf("Chunk(%q) = %v, %v; want empty", in, segments, truncated)
		}
	}
}

func TestChunk_SmallTextIsSingleChunk(t *testing.T) {
	segments, truncated := New(WithChunkSize(100), WithOverlap(20)).Chunk("  line one\n\n\nline two  ", 0)
	if truncated {
		t.Error("unexpected truncation")
	}
	if len(segments) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(segments))
	}
	if segments[0].Index != 0 || segments[0].Text != "line one\n\nline two" {
		t.Errorf("unexpected chunk %+v", segments[0])
	}
}

func TestChunk_SingleLine1200Chars(t *testing.T) {
	// 120 words of 9 letters plus a space, no sentence periods.
	text := strings.TrimSpace(strings.Repeat("knowledge ", 120))
	text += strings.Repeat("x", 1200-len([]rune(text)))
	if len([]rune(text)) != 1200 {
		t.Fatalf("fixture length %d", len([]rune(text)))
	}

	segments, truncated := New(WithChunkSize(600), WithOverlap(100)).Chunk(text, 0)
	if truncated {
		t.Error("unexpected truncation")
	}
	if len(segments) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(segments))
	}

	first := segments[0].Text
	overlapStart := len(first) - 100
	found := false
	for i := overlapStart; i < len(first); i++ {
		if strings.HasPrefix(segments[1].Text, first[i:]) {
			found = true
			break
		}
	}
	if !found {
		t.Error("second chunk should start within the last 100 chars of the first")
	}
}

func TestChunk_PrefersParagraphBoundary(t *testing.T) {
	para := strings.Repeat("a", 50)
	text := para + "\n" + para + "\n" + para
	segments, _ := New(WithChunkSize(120), WithOverlap(10)).Chunk(text, 0)
	if len(segments) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(segments))
	}
	if segments[0].Text != para+"\n\n"+para {
		t.Errorf("first chunk should end at a paragraph boundary, got %q", segments[0].Text)
	}
}

func TestChunk_PrefersSentenceBoundary(t *testing.T) {
	sentence := "The quick brown fox jumps. "
	text := strings.Repeat(sentence, 20)
	segments, _ := New(WithChunkSize(100), WithOverlap(10)).Chunk(text, 0)
	for i, s := range segments[:len(segments)-1] {
		if !strings.HasSuffix(s.Text, ".") {
			t.Errorf("chunk %d should end after a period: %q", i, s.Text)
		}
	}
}

func TestChunk_Invariants(t *testing.T) {
	text := strings.Repeat("Paragraph about retrieval and ranking.\nAnother line here", 60)
	p := New(WithChunkSize(200), WithOverlap(40))
	segments, _ := p.Chunk(text, 0)
	for i, s := range segments {
		if s.Index != i {
			t.Errorf("index %d at position %d", s.Index, i)
		}
		if strings.TrimSpace(s.Text) != s.Text || s.Text == "" {
			t.Errorf("chunk %d not trimmed or empty: %q", i, s.Text)
		}
		if n := len([]rune(s.Text)); n > 200+40 {
			t.Errorf("chunk %d too long: %d", i, n)
		}
	}
}

func TestChunk_EarlyBoundaryDoesNotFragment(t *testing.T) {
	text := "Intro line.\n" + strings.Repeat("word ", 400)
	p := New(WithChunkSize(600), WithOverlap(100))

	segments, truncated := p.Chunk(text, 0)
	assert.False(t, truncated)
	require.NotEmpty(t, segments)
	assert.True(t, strings.HasPrefix(segments[0].Text, "Intro line."))
	for _, s := range segments {
		assert.Greater(t, len([]rune(s.Text)), 100, "fragment chunk %d: %q", s.Index, s.Text)
	}

	capped, truncated := p.Chunk(text, 5)
	assert.False(t, truncated)
	require.Equal(t, segments, capped)
	assert.True(t, strings.HasSuffix(capped[len(capped)-1].Text, "word"))
}

func TestChunk_ProgressAndCoverage(t *testing.T) {
	const size, overlap = 600, 100
	tests := []struct {
		name string
		text string
	}{
		{"short first paragraph", "Intro line.\n" + numberedWords(0, 400)},
		{"short first sentence", "Hi. " + numberedWords(0, 500)},
		{"no boundaries", numberedWords(0, 600)},
		{"headings", headedParts(4, 150)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			segments, _ := New(WithChunkSize(size), WithOverlap(overlap)).Chunk(tt.text, 0)
			require.NotEmpty(t, segments)

			n := len([]rune(NormaliseParagraphs(tt.text)))
			bound := (n+size-overlap-1)/(size-overlap) + 1
			assert.LessOrEqual(t, len(segments), bound)

			for i := 1; i < len(segments); i++ {
				assert.False(t, strings.Contains(segments[i-1].Text, segments[i].Text),
					"chunk %d is contained in its predecessor: %q", i, segments[i].Text)
			}
		})
	}
}

// numberedWords returns count distinct words so no window repeats another.
func numberedWords(from, count int) string {
	words := make([]string, count)
	for i := range words {
		words[i] = fmt.Sprintf("w%d", from+i)
	}
	return strings.Join(words, " ")
}

func headedParts(parts, words int) string {
	var b strings.Builder
	for i := range parts {
		fmt.Fprintf(&b, "Heading %d\n%s\n", i, numberedWords(i*words, words))
	}
	return b.String()
}

func TestChunk_TailAbsorptionBound(t *testing.T) {
	const size, overlap = 600, 100
	p := New(WithChunkSize(size), WithOverlap(overlap))

	// A 100-rune remainder is folded into the first chunk.
	segments, _ := p.Chunk(strings.Repeat("x", size+overlap), 0)
	require.Len(t, segments, 1)
	assert.Len(t, []rune(segments[0].Text), size+overlap)

	// One more rune and the remainder gets its own chunk.
	segments, _ = p.Chunk(strings.Repeat("x", size+overlap+1), 0)
	require.Len(t, segments, 2)
	for _, s := range segments {
		assert.LessOrEqual(t, len([]rune(s.Text)), size+overlap)
	}
}

func TestChunk_MaxChunksReportsTruncation(t *testing.T) {
	text := strings.Repeat("word ", 1000)
	p := New(WithChunkSize(100), WithOverlap(10))

	segments, truncated := p.Chunk(text, 3)
	if len(segments) != 3 {
		t.Errorf("expected 3 chunks, got %d", len(segments))
	}
	if !truncated {
		t.Error("expected truncation to be reported")
	}

	all, truncated := p.Chunk(text, 0)
	if truncated || len(all) <= 3 {
		t.Errorf("uncapped run: %d chunks, truncated=%v", len(all), truncated)
	}
}

func TestChunk_Deterministic(t *testing.T) {
	text := strings.Repeat("Deterministic chunking.\nSame input same output. ", 80)
	p := New(WithChunkSize(150), WithOverlap(30))
	a, _ := p.Chunk(text, 0)
	b, _ := p.Chunk(text, 0)
	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("chunk %d differs", i)
		}
	}
}

func TestChunk_MultibyteCountsRunes(t *testing.T) {
	text := strings.Repeat("é", 90)
	segments, _ := New(WithChunkSize(100), WithOverlap(10)).Chunk(text, 0)
	if len(segments) != 1 {
		t.Errorf("90 runes should fit in one 100-char chunk, got %d chunks", len(segments))
	}
}

func TestNormaliseParagraphs(t *testing.T) {
	got := NormaliseParagraphs("  a \r\n\r\n\n b\n   \nc")
	if got != "a\n\nb\n\nc" {
		t.Errorf("got %q", got)
	}
}
