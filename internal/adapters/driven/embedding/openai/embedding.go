// Package openai provides an embedder for OpenAI-compatible endpoints:
// OpenAI itself and local servers such as LM Studio or llama.cpp.
package openai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/custodia-labs/kcache/internal/adapters/driven/embedding/loader"
	"github.com/custodia-labs/kcache/internal/core/domain"
	"github.com/custodia-labs/kcache/internal/core/ports/driven"
	"github.com/custodia-labs/kcache/internal/logger"
	"github.com/custodia-labs/kcache/internal/vector"
)

// Ensure Embedder implements the interface.
var (
	_ driven.Embedder   = (*Embedder)(nil)
	_ driven.Reloadable = (*Embedder)(nil)
)

// Default configuration values.
const (
	DefaultBaseURL = "https://api.openai.com/v1/"
	DefaultModel   = "text-embedding-3-small"
	DefaultTimeout = 60 * time.Second

	// localAPIKey is sent when no key is configured. Local servers accept
	// any value.
	localAPIKey = "kcache-local"
)

// Model dimensions for OpenAI embedding models.
var modelDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

const pingText = "dimension check"

// Config holds configuration for the OpenAI-compatible embedder.
type Config struct {
	// APIKey is the API key. Optional for local servers.
	APIKey string

	// BaseURL is the API base URL (default: https://api.openai.com/v1/).
	BaseURL string

	// Model is the embedding model to use (default: text-embedding-3-small).
	Model string

	// Timeout is the request timeout (default: 60s).
	Timeout time.Duration

	// Dimensions is the expected vector size. For text-embedding-3-* models
	// it is also requested from the API.
	Dimensions int

	// MaxRetries bounds client retries on transient failures.
	MaxRetries int
}

// Embedder generates embeddings through the embeddings endpoint.
type Embedder struct {
	client     openai.Client
	model      string
	dimensions int
	handle     *loader.Handle[int]
}

// NewEmbedder creates a new OpenAI-compatible embedder.
func NewEmbedder(cfg Config) *Embedder {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(cfg.BaseURL, "/") {
		cfg.BaseURL += "/"
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.APIKey == "" {
		cfg.APIKey = localAPIKey
	}

	e := &Embedder{
		client: openai.NewClient(
			option.WithBaseURL(cfg.BaseURL),
			option.WithAPIKey(cfg.APIKey),
			option.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
			option.WithMaxRetries(cfg.MaxRetries),
		),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}
	e.handle = loader.New(e.ping)
	return e
}

func (e *Embedder) ping(ctx context.Context) (int, error) {
	vectors, err := e.request(ctx, []string{pingText})
	if err != nil {
		return 0, fmt.Errorf("openai: ping embedding: %w", err)
	}
	dim := len(vectors[0])
	if e.dimensions > 0 && dim != e.dimensions {
		return 0, fmt.Errorf("openai: model %s returns %d dimensions, configured %d: %w",
			e.model, dim, e.dimensions, domain.ErrDimensionMismatch)
	}
	logger.Debug("Embedding model %s ready (%d dimensions)", e.model, dim)
	return dim, nil
}

// Available reports whether the endpoint answered the ping.
func (e *Embedder) Available(ctx context.Context) bool {
	_, err := e.handle.Get(ctx)
	if err != nil {
		logger.Debug("Embedding endpoint unavailable: %v", err)
	}
	return err == nil
}

// Retry clears a cached ping failure.
func (e *Embedder) Retry() bool {
	return e.handle.Retry()
}

// Dimension returns the detected vector size, or the configured or known
// model size before the first successful ping.
func (e *Embedder) Dimension() int {
	if dim, ok := e.handle.Peek(); ok {
		return dim
	}
	if e.dimensions > 0 {
		return e.dimensions
	}
	if dim, ok := modelDimensions[e.model]; ok {
		return dim
	}
	return modelDimensions[DefaultModel]
}

// ModelID identifies the provider and model.
func (e *Embedder) ModelID() string {
	return "openai/" + e.model
}

// EmbedOne generates a unit-length embedding for text.
func (e *Embedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// Embed generates unit-length embeddings for texts in one request.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if _, err := e.handle.Get(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
	}
	if len(texts) == 0 {
		return nil, nil
	}
	vectors, err := e.request(ctx, texts)
	if err != nil {
		return nil, err
	}
	for i, v := range vectors {
		vectors[i] = vector.NormalizeL2(v)
	}
	return vectors, nil
}

// request returns raw vectors ordered by input index.
func (e *Embedder) request(ctx context.Context, texts []string) ([][]float32, error) {
	params := openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(e.model),
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		},
	}
	// Only text-embedding-3-* models accept a requested size.
	if e.dimensions > 0 && strings.HasPrefix(e.model, "text-embedding-3") {
		params.Dimensions = openai.Int(int64(e.dimensions))
	}

	resp, err := e.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("generate embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai: got %d embeddings for %d texts", len(resp.Data), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for _, data := range resp.Data {
		if data.Index < 0 || int(data.Index) >= len(texts) || len(data.Embedding) == 0 {
			return nil, fmt.Errorf("openai: invalid embedding at index %d", data.Index)
		}
		v := make([]float32, len(data.Embedding))
		for i, f := range data.Embedding {
			v[i] = float32(f)
		}
		vectors[data.Index] = v
	}
	for i, v := range vectors {
		if v == nil {
			return nil, fmt.Errorf("openai: missing embedding for text %d", i)
		}
	}
	return vectors, nil
}

// Close releases resources.
func (e *Embedder) Close() error {
	return nil
}
