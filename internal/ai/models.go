// Package ai defines the normalized message and stream value types shared by
// the LLM transport, the chat session, and the persistence layer. Every
// provider response shape is converted into these types at the transport
// boundary, so the rest of the program only ever sees one shape.
package ai

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// MessageRole identifies who produced a message; compatible with string.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"    // System instructions/configuration
	RoleUser      MessageRole = "user"      // End-user message
	RoleAssistant MessageRole = "assistant" // Model response
	RoleTool      MessageRole = "tool"      // Tool/function output
)

// Valid reports whether the role is one of the four recognized values.
func (r MessageRole) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return true
	}
	return false
}

// Message represents a single message in a conversation. Index 0 of a
// conversation conventionally holds the active system prompt.
type Message struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content,omitempty"`

	// Thinking holds chain-of-thought output emitted by reasoning-capable
	// models; it is kept out of Content so token accounting and display
	// can treat it separately.
	Thinking string `json:"thinking,omitempty"`

	// Tool calling fields
	ToolCalls []ToolCall `json:"tool_calls,omitempty"` // For role=assistant requesting tools
	ToolName  string     `json:"tool_name,omitempty"`  // For role=tool, name of the tool that produced Content
}

// ToolCall represents a function/tool call request from the model.
type ToolCall struct {
	Function ToolCallFunction `json:"function"`
}

// ToolCallFunction carries the function name and its arguments. Arguments is
// kept as raw JSON: Ollama emits a JSON object, while some builds emit a
// JSON-encoded string. UnmarshalJSON normalizes both to the object form so
// downstream code never branches on shape.
type ToolCallFunction struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

func (f *ToolCallFunction) UnmarshalJSON(data []byte) error {
	type alias struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	var raw alias
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	f.Name = raw.Name
	f.Arguments = normalizeArguments(raw.Arguments)
	return nil
}

// normalizeArguments unwraps string-encoded argument payloads, e.g.
// `"{\"a\":1}"` becomes `{"a":1}`. Anything that is not a JSON string is
// returned unchanged.
func normalizeArguments(raw json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '"' {
		return raw
	}
	var inner string
	if err := json.Unmarshal(trimmed, &inner); err != nil {
		return raw
	}
	return json.RawMessage(inner)
}

// ToolDescription advertises a callable tool to the model.
type ToolDescription struct {
	Type     string       `json:"type"` // always "function"
	Function ToolFunction `json:"function"`
}

// ToolFunction is the schema half of a ToolDescription.
type ToolFunction struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Parameters  any    `json:"parameters,omitempty"`
}

// ChatResponse is the fully accumulated result of one model turn.
type ChatResponse struct {
	Model      string     `json:"model,omitempty"`
	Content    string     `json:"content"`
	Thinking   string     `json:"thinking,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	DoneReason string     `json:"done_reason,omitempty"`
}

// AssistantMessage converts the response into the message appended to the
// conversation history.
func (r *ChatResponse) AssistantMessage() Message {
	return Message{
		Role:      RoleAssistant,
		Content:   r.Content,
		Thinking:  r.Thinking,
		ToolCalls: r.ToolCalls,
	}
}

func (r *ChatResponse) String() string {
	return fmt.Sprintf("ChatResponse{content: %d bytes, tool_calls: %d, done_reason: %q}",
		len(r.Content), len(r.ToolCalls), r.DoneReason)
}
