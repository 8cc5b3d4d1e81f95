package markdown

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/kcache/internal/core/domain"
)

func normalise(t *testing.T, path, content string) domain.RawDocument {
	t.Helper()
	result, err := New().Normalise(context.Background(), &domain.SourceFile{
		Path:     path,
		MIMEType: "text/markdown",
		Content:  []byte(content),
	})
	require.NoError(t, err)
	assert.Equal(t, "markdown", result.Format)
	return result.Document
}

func TestSupportedMIMETypes(t *testing.T) {
	assert.Contains(t, New().SupportedMIMETypes(), "text/markdown")
	assert.Equal(t, 50, New().Priority())
}

func TestNormalise_TitleFromHeading(t *testing.T) {
	doc := normalise(t, "/notes/a.md", "Intro line\n\n# Real Title\n\nBody")
	assert.Equal(t, "Real Title", doc.Title)
	assert.Equal(t, "/notes/a.md", doc.SourceOrigin)
}

func TestNormalise_TitleFromFrontMatter(t *testing.T) {
	doc := normalise(t, "/notes/a.md", "---\ntitle: \"Front Title\"\ntags: [x]\n---\n# Heading\n\nBody")
	assert.Equal(t, "Front Title", doc.Title)
	assert.Equal(t, "Heading\n\nBody", doc.Body)
}

func TestNormalise_TitleFromFilename(t *testing.T) {
	doc := normalise(t, "/notes/meeting_notes-2024.md", "no heading here")
	assert.Equal(t, "meeting notes 2024", doc.Title)
}

func TestNormalise_StripsFormatting(t *testing.T) {
	content := "## Setup\n\n" +
		"Run **go build** and see the [docs](https://go.dev).\n\n" +
		"![diagram](img.png)\n\n" +
		"- item one\n" +
		"1. step one\n\n" +
		"> quoted\n\n" +
		"---\n\n" +
		"```go\n" +
		"fmt.Println(\"hi\")\n" +
		"```\n\n" +
		"Use `snake_case` names."

	doc := normalise(t, "", content)
	assert.Equal(t, "Setup\n\nRun go build and see the docs.\n\ndiagram\n\nitem one\nstep one\n\nquoted\n\nfmt.Println(\"hi\")\n\nUse snake_case names.", doc.Body)
}

func TestNormalise_Nil(t *testing.T) {
	_, err := New().Normalise(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
