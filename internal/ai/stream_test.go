package ai

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestCollect_AccumulatesDeltas(t *testing.T) {
	stream := NewChatStream(func(yield func(StreamEvent, error) bool) {
		yield(StreamEvent{Type: StreamEventThinking, Thinking: "hmm"}, nil)
		yield(StreamEvent{Type: StreamEventContent, Content: "hel"}, nil)
		yield(StreamEvent{Type: StreamEventContent, Content: "lo"}, nil)
		yield(StreamEvent{Type: StreamEventToolCall, ToolCall: &ToolCall{
			Function: ToolCallFunction{Name: "store_memory"},
		}}, nil)
		yield(StreamEvent{Type: StreamEventDone, DoneReason: "stop"}, nil)
	})

	resp, err := stream.Collect()
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if resp.Content != "hello" {
		t.Errorf("content = %q", resp.Content)
	}
	if resp.Thinking != "hmm" {
		t.Errorf("thinking = %q", resp.Thinking)
	}
	if len(resp.ToolCalls) != 1 || resp.ToolCalls[0].Function.Name != "store_memory" {
		t.Errorf("tool calls = %+v", resp.ToolCalls)
	}
	if resp.DoneReason != "stop" {
		t.Errorf("done reason = %q", resp.DoneReason)
	}
}

func TestCollect_MidStreamErrorKeepsPartial(t *testing.T) {
	boom := errors.New("boom")
	stream := NewChatStream(func(yield func(StreamEvent, error) bool) {
		yield(StreamEvent{Type: StreamEventContent, Content: "partial"}, nil)
		yield(StreamEvent{}, boom)
	})

	resp, err := stream.Collect()
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if resp.Content != "partial" {
		t.Errorf("partial content = %q", resp.Content)
	}
}

func TestSingleEventStream_EventOrder(t *testing.T) {
	stream := NewSingleEventStream(&ChatResponse{
		Content:    "hi",
		Thinking:   "think",
		ToolCalls:  []ToolCall{{Function: ToolCallFunction{Name: "t"}}},
		DoneReason: "stop",
	})

	var order []StreamEventType
	for event, err := range stream.Iter() {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		order = append(order, event.Type)
	}

	want := []StreamEventType{StreamEventThinking, StreamEventContent, StreamEventToolCall, StreamEventDone}
	if len(order) != len(want) {
		t.Fatalf("events = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("events = %v, want %v", order, want)
		}
	}
}

func TestToolCallFunction_NormalizesStringArguments(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{"object", `{"name":"f","arguments":{"a":1}}`, `{"a":1}`},
		{"string encoded", `{"name":"f","arguments":"{\"a\":1}"}`, `{"a":1}`},
		{"null untouched", `{"name":"f","arguments":null}`, `null`},
		{"plain string unwrapped", `{"name":"f","arguments":"hello"}`, `hello`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var f ToolCallFunction
			if err := json.Unmarshal([]byte(tc.raw), &f); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if string(f.Arguments) != tc.want {
				t.Errorf("arguments = %s, want %s", f.Arguments, tc.want)
			}
		})
	}
}

func TestAssistantMessage(t *testing.T) {
	resp := &ChatResponse{Content: "hi", Thinking: "t", ToolCalls: []ToolCall{{}}}
	msg := resp.AssistantMessage()
	if msg.Role != RoleAssistant || msg.Content != "hi" || msg.Thinking != "t" || len(msg.ToolCalls) != 1 {
		t.Errorf("message = %+v", msg)
	}
}
