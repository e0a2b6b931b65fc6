package parse

import (
	"encoding/json"
	"testing"
)

type storeArgs struct {
	Text       string  `json:"text"`
	Type       string  `json:"type"`
	Importance float64 `json:"importance"`
}

func TestArguments_ValidJSON(t *testing.T) {
	args, err := Arguments[storeArgs](json.RawMessage(`{"text":"likes Go","type":"preference","importance":2}`))
	if err != nil {
		t.Fatalf("Arguments: %v", err)
	}
	if args.Text != "likes Go" || args.Type != "preference" || args.Importance != 2 {
		t.Fatalf("unexpected result: %+v", args)
	}
}

func TestArguments_RepairsMalformedJSON(t *testing.T) {
	// Unquoted keys and single quotes, typical small-model output.
	args, err := Arguments[storeArgs](json.RawMessage(`{text: 'likes Go', type: 'fact',}`))
	if err != nil {
		t.Fatalf("Arguments: %v", err)
	}
	if args.Text != "likes Go" || args.Type != "fact" {
		t.Fatalf("unexpected result: %+v", args)
	}
}

func TestArguments_StringWrappedObject(t *testing.T) {
	args, err := Arguments[storeArgs](json.RawMessage(`"{\"text\":\"x\",\"type\":\"task\"}"`))
	if err != nil {
		t.Fatalf("Arguments: %v", err)
	}
	if args.Text != "x" || args.Type != "task" {
		t.Fatalf("unexpected result: %+v", args)
	}
}

func TestArguments_EmptyPayload(t *testing.T) {
	for _, raw := range []json.RawMessage{nil, json.RawMessage(""), json.RawMessage("  ")} {
		args, err := Arguments[storeArgs](raw)
		if err != nil {
			t.Fatalf("empty payload must decode to zero value: %v", err)
		}
		if args != (storeArgs{}) {
			t.Fatalf("unexpected result: %+v", args)
		}
	}
}

func TestArguments_Unrepairable(t *testing.T) {
	if _, err := Arguments[storeArgs](json.RawMessage(`{"text": 42}`)); err == nil {
		t.Fatal("type mismatch must fail even after repair")
	}
}

func TestArguments_Map(t *testing.T) {
	got, err := Arguments[map[string]any](json.RawMessage(`{"a": 1, "b": "two"}`))
	if err != nil {
		t.Fatalf("Arguments: %v", err)
	}
	if got["a"] != float64(1) || got["b"] != "two" {
		t.Fatalf("unexpected result: %v", got)
	}
}
