package ai

import "iter"

// StreamEventType identifies the kind of delta carried by a StreamEvent.
type StreamEventType string

const (
	// StreamEventContent indicates a text content delta.
	StreamEventContent StreamEventType = "content"
	// StreamEventThinking indicates a thinking/reasoning delta.
	StreamEventThinking StreamEventType = "thinking"
	// StreamEventToolCall indicates a complete tool call emitted mid-stream.
	StreamEventToolCall StreamEventType = "tool_call"
	// StreamEventDone signals that the stream has finished normally.
	StreamEventDone StreamEventType = "done"
)

// StreamEvent represents a single delta yielded during response streaming.
// Each event carries exactly one kind of payload, identified by Type.
type StreamEvent struct {
	Type       StreamEventType `json:"type"`
	Content    string          `json:"content,omitempty"`     // Text delta (Type == StreamEventContent)
	Thinking   string          `json:"thinking,omitempty"`    // Thinking delta (Type == StreamEventThinking)
	ToolCall   *ToolCall       `json:"tool_call,omitempty"`   // Tool call (Type == StreamEventToolCall)
	DoneReason string          `json:"done_reason,omitempty"` // Present on StreamEventDone
}

// ChatStream wraps a streaming iterator and provides automatic accumulation
// of deltas into a final ChatResponse. It supports both range-based iteration
// for incremental printing and a Collect() convenience for callers who want
// the complete response.
//
// Callers must consume the stream, either by iterating Iter() (breaking out
// early is fine) or by calling Collect(). The transport may hold an open HTTP
// response body that is only released when the iterator finishes or is
// abandoned via a loop break.
type ChatStream struct {
	iterator iter.Seq2[StreamEvent, error]
}

// NewChatStream creates a ChatStream from a raw streaming iterator. The
// iterator yields StreamEvent values with a nil error for normal deltas and
// may yield a non-nil error to signal a mid-stream failure.
func NewChatStream(iterator iter.Seq2[StreamEvent, error]) *ChatStream {
	return &ChatStream{iterator: iterator}
}

// NewSingleEventStream wraps a synchronous ChatResponse as a short stream.
// Used as the non-streaming path so the session only ever consumes one shape.
func NewSingleEventStream(response *ChatResponse) *ChatStream {
	iteratorFunc := func(yield func(StreamEvent, error) bool) {
		if response.Thinking != "" {
			if !yield(StreamEvent{Type: StreamEventThinking, Thinking: response.Thinking}, nil) {
				return
			}
		}
		if response.Content != "" {
			if !yield(StreamEvent{Type: StreamEventContent, Content: response.Content}, nil) {
				return
			}
		}
		for i := range response.ToolCalls {
			if !yield(StreamEvent{Type: StreamEventToolCall, ToolCall: &response.ToolCalls[i]}, nil) {
				return
			}
		}
		yield(StreamEvent{Type: StreamEventDone, DoneReason: response.DoneReason}, nil)
	}
	return NewChatStream(iteratorFunc)
}

// Iter returns the underlying iterator for use with range-over-func loops.
//
//	for event, err := range stream.Iter() {
//	    if err != nil { handle error }
//	    fmt.Print(event.Content)
//	}
func (stream *ChatStream) Iter() iter.Seq2[StreamEvent, error] {
	return stream.iterator
}

// Collect consumes the entire stream and returns the accumulated ChatResponse.
// Any mid-stream error terminates collection and returns the partial response
// together with the error.
func (stream *ChatStream) Collect() (*ChatResponse, error) {
	accumulated := &ChatResponse{}
	for event, err := range stream.iterator {
		if err != nil {
			return accumulated, err
		}
		switch event.Type {
		case StreamEventContent:
			accumulated.Content += event.Content
		case StreamEventThinking:
			accumulated.Thinking += event.Thinking
		case StreamEventToolCall:
			if event.ToolCall != nil {
				accumulated.ToolCalls = append(accumulated.ToolCalls, *event.ToolCall)
			}
		case StreamEventDone:
			accumulated.DoneReason = event.DoneReason
		}
	}
	return accumulated, nil
}
