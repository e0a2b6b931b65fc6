// Package parse decodes model-supplied JSON payloads into typed values,
// tolerating the malformed output small local models commonly produce:
// unquoted keys, single quotes, trailing commas, and string-wrapped objects.
package parse

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/kaptinlin/jsonrepair"
)

// Arguments unmarshals raw tool-call arguments into T. Strict decoding is
// tried first; on failure the payload is repaired and retried. A payload that
// is itself a JSON-encoded string is unwrapped before either attempt.
func Arguments[T any](raw json.RawMessage) (T, error) {
	var result T

	content := unwrapString(raw)
	if len(bytes.TrimSpace(content)) == 0 {
		// Zero-argument tool calls come through as empty or "{}".
		return result, nil
	}

	if err := json.Unmarshal(content, &result); err == nil {
		return result, nil
	}

	repaired, err := jsonrepair.JSONRepair(string(content))
	if err != nil {
		return result, fmt.Errorf("parse: repair arguments: %w", err)
	}
	if err := json.Unmarshal([]byte(repaired), &result); err != nil {
		return result, fmt.Errorf("parse: decode arguments as %T: %w", result, err)
	}
	return result, nil
}

// unwrapString peels one layer of JSON string encoding, e.g.
// `"{\"a\":1}"` becomes `{"a":1}`.
func unwrapString(raw json.RawMessage) []byte {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '"' {
		return raw
	}
	var inner string
	if err := json.Unmarshal(trimmed, &inner); err != nil {
		return raw
	}
	return []byte(inner)
}
