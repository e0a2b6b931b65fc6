// Package ollama implements the chat transport against a local Ollama
// server's native API. Streaming and synchronous responses are both
// surfaced as a normalized ai.ChatStream so the session never sees
// provider shapes.
package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hermesagent/hermes/internal/ai"
)

const (
	defaultBaseURL = "http://localhost:11434"

	chatEndpoint = "/api/chat"
	tagsEndpoint = "/api/tags"

	// maxLineSize bounds a single NDJSON line. The default bufio.Scanner
	// limit of 64 KiB is too small for chunks carrying large tool-call
	// arguments or long completions.
	maxLineSize = 1 * 1024 * 1024
)

// Client talks to one Ollama server with a fixed model and generation
// options.
type Client struct {
	baseURL string
	model   string
	options any

	httpClient *http.Client
}

// Option configures optional Client behavior.
type Option func(*Client)

// WithBaseURL overrides the default server address (http://localhost:11434).
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(baseURL, "/") }
}

// WithHTTPClient sets the HTTP client used for outbound requests.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// New creates a client for the given model. options is passed through
// opaquely as the request's generation options (num_ctx, temperature, ...).
func New(model string, options any, opts ...Option) *Client {
	c := &Client{
		baseURL: defaultBaseURL,
		model:   model,
		options: options,
		// No client-level timeout: streamed generations can legitimately
		// run for minutes. Cancellation comes from the caller's context.
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

// CheckConnection verifies the server is reachable and the configured model
// is available. The returned error lists the available models when the
// configured one is missing.
func (c *Client) CheckConnection(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+tagsEndpoint, nil)
	if err != nil {
		return fmt.Errorf("ollama: create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ollama: server unreachable at %s (is `ollama serve` running?): %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama: list models returned status %d", resp.StatusCode)
	}

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return fmt.Errorf("ollama: decode model list: %w", err)
	}

	available := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		available = append(available, m.Name)
		// Tolerate tag suffixes in either direction ("llama3.2" matches
		// "llama3.2:latest").
		if strings.Contains(m.Name, c.model) || strings.Contains(c.model, m.Name) {
			slog.Info("ollama connection verified", "model", c.model)
			return nil
		}
	}

	return fmt.Errorf("ollama: model %q not found, available: %s (run: ollama pull %s)",
		c.model, strings.Join(available, ", "), c.model)
}

// Chat sends the conversation to the model and returns a stream of
// normalized events. With stream=false the complete response is wrapped as a
// single-event stream so callers consume one shape either way.
func (c *Client) Chat(ctx context.Context, messages []ai.Message, tools []ai.ToolDescription, stream bool) (*ai.ChatStream, error) {
	body := chatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   stream,
		Options:  c.options,
		Tools:    tools,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("ollama: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+chatEndpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("ollama: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama: chat request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		errorBody, readErr := io.ReadAll(io.LimitReader(resp.Body, maxLineSize))
		if readErr != nil {
			return nil, fmt.Errorf("ollama: chat returned status %d (unreadable body: %v)", resp.StatusCode, readErr)
		}
		return nil, fmt.Errorf("ollama: chat returned status %d: %s", resp.StatusCode, string(errorBody))
	}

	if !stream {
		defer resp.Body.Close()
		var chunk chatChunk
		if err := json.NewDecoder(resp.Body).Decode(&chunk); err != nil {
			return nil, fmt.Errorf("ollama: decode response: %w", err)
		}
		logUsage(&chunk)
		return ai.NewSingleEventStream(&ai.ChatResponse{
			Model:      chunk.Model,
			Content:    chunk.Message.Content,
			Thinking:   chunk.Message.Thinking,
			ToolCalls:  chunk.Message.ToolCalls,
			DoneReason: chunk.DoneReason,
		}), nil
	}

	return c.streamResponse(ctx, resp), nil
}

// streamResponse turns the open NDJSON response body into a ChatStream.
// The body is closed when the iterator finishes or the caller breaks out.
func (c *Client) streamResponse(ctx context.Context, resp *http.Response) *ai.ChatStream {
	iteratorFunc := func(yield func(ai.StreamEvent, error) bool) {
		defer func() {
			if err := resp.Body.Close(); err != nil {
				slog.Warn("failed to close chat response body", "error", err)
			}
		}()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

		for scanner.Scan() {
			if ctx.Err() != nil {
				yield(ai.StreamEvent{}, ctx.Err())
				return
			}

			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}

			var chunk chatChunk
			if err := json.Unmarshal(line, &chunk); err != nil {
				yield(ai.StreamEvent{}, fmt.Errorf("ollama: parse stream chunk: %w", err))
				return
			}

			done := chunk.Done
			if done {
				logUsage(&chunk)
			}
			for _, event := range chunk.events() {
				if !yield(event, nil) {
					return
				}
			}
			if done {
				return
			}
		}

		if err := scanner.Err(); err != nil {
			yield(ai.StreamEvent{}, fmt.Errorf("ollama: read stream: %w", err))
		}
	}

	return ai.NewChatStream(iteratorFunc)
}

func logUsage(chunk *chatChunk) {
	if chunk.PromptEvalCount > 0 || chunk.EvalCount > 0 {
		slog.Debug("model turn complete",
			"done_reason", chunk.DoneReason,
			"prompt_tokens", chunk.PromptEvalCount,
			"completion_tokens", chunk.EvalCount,
		)
	}
}
