package cli

import (
	"errors"
	"fmt"

	"github.com/custodia-labs/kcache/internal/core/domain"
)

// hintFor returns a user-facing suggestion for a known failure, or "".
func hintFor(err error) string {
	switch {
	case errors.Is(err, domain.ErrNoContent):
		return "No text could be extracted. Try pasting the text instead:\n" +
			"  kcache ingest --text \"...\"   or   pbpaste | kcache ingest"
	case errors.Is(err, domain.ErrTokenizerUnavailable):
		return fmt.Sprintf("The vocabulary file could not be loaded. Place a WordPiece %s in the config\n"+
			"directory (kcache config path) or point embedding.vocab_path at one.", VocabFile)
	case errors.Is(err, domain.ErrEmbeddingUnavailable):
		return "The embedding model is not available. Check the provider settings with\n" +
			"  kcache config show\n" +
			"For Ollama, start the server and pull the model (ollama pull nomic-embed-text)."
	case errors.Is(err, domain.ErrEmbeddingFailed):
		return "Embedding failed part-way and nothing was saved. Try again; if it keeps failing,\n" +
			"run with --verbose to see the embedder's error."
	case errors.Is(err, domain.ErrDimensionMismatch):
		return "The embedding model changed. Run `kcache reindex` to re-embed stored chunks."
	case errors.Is(err, domain.ErrUnsupportedType):
		return "Only text, Markdown, HTML and source files can be ingested."
	default:
		return ""
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
