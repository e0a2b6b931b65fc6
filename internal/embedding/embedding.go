// Package embedding wraps the OpenAI embeddings API with an in-process LRU
// cache, a fixed request timeout, and a small error taxonomy so callers can
// tell a rate limit from a timeout from everything else.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	defaultBaseURL     = "https://api.openai.com/v1"
	embeddingsEndpoint = "/embeddings"

	// requestTimeout bounds every embedding request.
	requestTimeout = 30 * time.Second

	// cacheSize is the capacity of the exact-text LRU cache. Process-lifetime,
	// no TTL.
	cacheSize = 100
)

// Failure taxonomy for the remote provider. Matched with errors.Is.
var (
	ErrRateLimited = errors.New("embedding provider rate limit exceeded, try again later")
	ErrTimeout     = errors.New("embedding generation timed out")
)

// defaultDimensions maps known embedding models to their output vector size.
// Unknown models fall back to 1536; an explicit override wins over the table.
var defaultDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// DimensionFor returns the expected vector dimension for model, or the
// override when it is positive.
func DimensionFor(model string, override int) int {
	if override > 0 {
		return override
	}
	if dim, ok := defaultDimensions[model]; ok {
		return dim
	}
	return 1536
}

// Client generates text embeddings via the OpenAI API.
type Client struct {
	apiKey  string
	baseURL string
	model   string
	dim     int

	httpClient *http.Client
	cache      *lru.Cache[string, []float32]
}

// Option configures optional Client behavior.
type Option func(*Client)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = baseURL }
}

// WithDimension overrides the model's table-derived vector dimension.
func WithDimension(dim int) Option {
	return func(c *Client) {
		if dim > 0 {
			c.dim = dim
		}
	}
}

// WithHTTPClient sets the HTTP client used for outbound requests.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// NewClient creates an embedding client for the given model. A missing API
// key is a configuration error.
func NewClient(apiKey, model string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("embedding: API key is required")
	}
	if model == "" {
		return nil, errors.New("embedding: model name is required")
	}

	cache, err := lru.New[string, []float32](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("embedding: init cache: %w", err)
	}

	c := &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		model:   model,
		dim:     DimensionFor(model, 0),
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
		cache: cache,
	}
	for _, opt := range opts {
		opt(c)
	}

	slog.Info("embedding client ready", "model", c.model, "dimensions", c.dim)
	return c, nil
}

// Model returns the configured embedding model name.
func (c *Client) Model() string { return c.model }

// Dimension returns the expected output vector length.
func (c *Client) Dimension() int { return c.dim }

type embedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// Embed returns the embedding for text, consulting the LRU cache first.
// Repeated lookups for the same exact string within one process hit the
// cache and make no remote call. The returned slice never aliases the cache
// entry, so callers may mutate it freely.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if vec, ok := c.cache.Get(text); ok {
		slog.Debug("embedding cache hit", "text_length", len(text))
		return slices.Clone(vec), nil
	}

	vec, err := c.EmbedFresh(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(text, slices.Clone(vec))
	return vec, nil
}

// EmbedFresh always calls the remote provider, bypassing the cache. Used on
// write paths where a stored vector must reflect the provider's current
// output.
func (c *Client) EmbedFresh(ctx context.Context, text string) ([]float32, error) {
	slog.Debug("embedding request", "model", c.model, "input_length", len(text))

	body, err := json.Marshal(embedRequest{Model: c.model, Input: text})
	if err != nil {
		return nil, fmt.Errorf("embedding: marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+embeddingsEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("embedding: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			slog.Error("embedding request timed out", "error", err)
			return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		slog.Error("embedding request failed", "error", err)
		return nil, fmt.Errorf("embedding: request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("embedding: read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		slog.Error("embedding provider rate limit", "status", resp.StatusCode, "body", string(respBody))
		return nil, fmt.Errorf("%w (status %d)", ErrRateLimited, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Error("embedding provider error", "status", resp.StatusCode, "body", string(respBody))
		return nil, fmt.Errorf("embedding: provider returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var result embedResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("embedding: decode response: %w", err)
	}
	if len(result.Data) == 0 {
		return nil, errors.New("embedding: provider returned no embeddings")
	}

	vec := result.Data[0].Embedding
	if len(vec) != c.dim {
		return nil, fmt.Errorf("embedding: got %d dimensions, expected %d for model %s", len(vec), c.dim, c.model)
	}

	slog.Debug("embedding response", "dimensions", len(vec), "tokens_used", result.Usage.TotalTokens)
	return vec, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
