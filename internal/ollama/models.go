package ollama

import "github.com/hermesagent/hermes/internal/ai"

// chatRequest is the wire format for POST /api/chat. The normalized
// ai.Message shape matches Ollama's message JSON directly, so no per-field
// conversion is needed on the request side.
type chatRequest struct {
	Model    string               `json:"model"`
	Messages []ai.Message         `json:"messages"`
	Stream   bool                 `json:"stream"`
	Options  any                  `json:"options,omitempty"`
	Tools    []ai.ToolDescription `json:"tools,omitempty"`
}

// chatChunk is one response object from /api/chat. Non-streaming responses
// use the same shape with the full message and done=true; streaming
// responses arrive as newline-delimited JSON objects carrying partial
// message fields.
type chatChunk struct {
	Model     string     `json:"model"`
	CreatedAt string     `json:"created_at"`
	Message   ai.Message `json:"message"`

	Done       bool   `json:"done"`
	DoneReason string `json:"done_reason,omitempty"`

	// Final-chunk token accounting, logged but not surfaced.
	PromptEvalCount int `json:"prompt_eval_count,omitempty"`
	EvalCount       int `json:"eval_count,omitempty"`
}

// events converts one chunk into zero or more normalized stream events.
// A single chunk can carry thinking, content, and tool calls at once.
func (c *chatChunk) events() []ai.StreamEvent {
	var events []ai.StreamEvent

	if c.Message.Thinking != "" {
		events = append(events, ai.StreamEvent{Type: ai.StreamEventThinking, Thinking: c.Message.Thinking})
	}
	if c.Message.Content != "" {
		events = append(events, ai.StreamEvent{Type: ai.StreamEventContent, Content: c.Message.Content})
	}
	for i := range c.Message.ToolCalls {
		events = append(events, ai.StreamEvent{Type: ai.StreamEventToolCall, ToolCall: &c.Message.ToolCalls[i]})
	}
	if c.Done {
		events = append(events, ai.StreamEvent{Type: ai.StreamEventDone, DoneReason: c.DoneReason})
	}
	return events
}

// tagsResponse is the wire format for GET /api/tags.
type tagsResponse struct {
	Models []struct {
		Name  string `json:"name"`
		Model string `json:"model"`
	} `json:"models"`
}
