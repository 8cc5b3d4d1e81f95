// Package ollama provides an embedder backed by a local Ollama server.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

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
	DefaultBaseURL    = "http://localhost:11434"
	DefaultModel      = "nomic-embed-text"
	DefaultTimeout    = 30 * time.Second
	DefaultDimensions = 768 // nomic-embed-text default
)

// pingText is embedded once to learn the model's vector size.
const pingText = "dimension check"

// Config holds configuration for the Ollama embedder.
type Config struct {
	// BaseURL is the Ollama API base URL (default: http://localhost:11434).
	BaseURL string

	// Model is the embedding model to use (default: nomic-embed-text).
	Model string

	// Timeout is the request timeout (default: 30s).
	Timeout time.Duration

	// Dimensions is the expected vector size. Zero accepts whatever the
	// model returns.
	Dimensions int

	// RequestsPerSecond throttles requests. Zero disables throttling.
	RequestsPerSecond float64
}

// Embedder generates embeddings using Ollama.
type Embedder struct {
	client     *http.Client
	baseURL    string
	model      string
	dimensions int
	limiter    *rate.Limiter

	// handle holds the detected vector size once the server has answered.
	handle *loader.Handle[int]
}

// embedRequest is the Ollama API request format.
type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

// embedResponse is the Ollama API response format.
type embedResponse struct {
	Embedding []float64 `json:"embedding"`
}

// NewEmbedder creates a new Ollama embedder. No request is made until the
// embedder is first used.
func NewEmbedder(cfg Config) *Embedder {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	e := &Embedder{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:    cfg.BaseURL,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}
	if cfg.RequestsPerSecond > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	e.handle = loader.New(e.ping)
	return e
}

// ping checks connectivity and learns the vector size.
func (e *Embedder) ping(ctx context.Context) (int, error) {
	if err := e.Ping(ctx); err != nil {
		return 0, err
	}
	v, err := e.request(ctx, pingText)
	if err != nil {
		return 0, fmt.Errorf("ollama: ping embedding: %w", err)
	}
	if e.dimensions > 0 && len(v) != e.dimensions {
		return 0, fmt.Errorf("ollama: model %s returns %d dimensions, configured %d: %w",
			e.model, len(v), e.dimensions, domain.ErrDimensionMismatch)
	}
	logger.Debug("Ollama model %s ready (%d dimensions)", e.model, len(v))
	return len(v), nil
}

// Available reports whether the server answered the ping.
func (e *Embedder) Available(ctx context.Context) bool {
	_, err := e.handle.Get(ctx)
	if err != nil {
		logger.Debug("Ollama unavailable: %v", err)
	}
	return err == nil
}

// Retry clears a cached ping failure.
func (e *Embedder) Retry() bool {
	return e.handle.Retry()
}

// Dimension returns the detected vector size, or the configured size before
// the first successful ping.
func (e *Embedder) Dimension() int {
	if dim, ok := e.handle.Peek(); ok {
		return dim
	}
	if e.dimensions > 0 {
		return e.dimensions
	}
	return DefaultDimensions
}

// ModelID identifies the provider and model.
func (e *Embedder) ModelID() string {
	return "ollama/" + e.model
}

// EmbedOne generates a unit-length embedding for text.
func (e *Embedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	if _, err := e.handle.Get(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
	}
	v, err := e.request(ctx, text)
	if err != nil {
		return nil, err
	}
	return vector.NormalizeL2(v), nil
}

// Embed generates embeddings for texts in order. Ollama has no batch
// endpoint, so each text is one request.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		embedding, err := e.EmbedOne(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed text %d: %w", i, err)
		}
		embeddings[i] = embedding
	}
	return embeddings, nil
}

func (e *Embedder) request(ctx context.Context, text string) ([]float32, error) {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	jsonBody, err := json.Marshal(embedRequest{Model: e.model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		e.baseURL+"/api/embeddings",
		bytes.NewReader(jsonBody),
	)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("ollama error (status %d): failed to read response", resp.StatusCode)
		}
		return nil, fmt.Errorf("ollama error (status %d): %s", resp.StatusCode, string(body))
	}

	var embedResp embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&embedResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(embedResp.Embedding) == 0 {
		return nil, fmt.Errorf("ollama: empty embedding")
	}

	embedding := make([]float32, len(embedResp.Embedding))
	for i, v := range embedResp.Embedding {
		embedding[i] = float32(v)
	}
	return embedding, nil
}

// Ping validates the server is reachable by checking the /api/tags endpoint
// without running inference.
func (e *Embedder) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/api/tags", http.NoBody)
	if err != nil {
		return fmt.Errorf("ollama: failed to create ping request: %w", err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama: ping failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("ollama: API returned status %d (failed to read body: %w)", resp.StatusCode, err)
		}
		return fmt.Errorf("ollama: API returned status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// Close releases resources.
func (e *Embedder) Close() error {
	return nil
}
