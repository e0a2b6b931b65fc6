package tool

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hermesagent/hermes/internal/memory"
)

// StoreMemoryInput is the parameter shape advertised for the store_memory
// tool. Zero Importance/Confidence mean "use the default", since the model
// often omits them.
type StoreMemoryInput struct {
	Text       string   `json:"memory_text" jsonschema:"description=Concise description of what to remember"`
	Type       string   `json:"type" jsonschema:"description=Memory type,enum=preference,enum=fact,enum=task,enum=insight"`
	Importance *float64 `json:"importance,omitempty" jsonschema:"description=Importance score 0.0-3.0 (0=low 1=normal 2=high 3=critical)"`
	Confidence *float64 `json:"confidence,omitempty" jsonschema:"description=Confidence score 0.0-1.0"`
}

// NewStoreMemory builds the tool that lets the model persist memories. The
// result string is shown back to the model, so failures are reported as text
// rather than errors: a failed store should not abort the turn.
func NewStoreMemory(store *memory.Store) *Tool[StoreMemoryInput, string] {
	return New("store_memory",
		"Store a semantic memory in the long-term database. Use for durable user preferences, facts, tasks, and insights worth recalling in future conversations.",
		func(ctx context.Context, input StoreMemoryInput) (string, error) {
			params := memory.DefaultRememberParams(input.Text)
			if input.Type != "" {
				params.Type = input.Type
			}
			if input.Importance != nil {
				params.Importance = *input.Importance
			}
			if input.Confidence != nil {
				params.Confidence = *input.Confidence
			}

			id, err := store.Remember(ctx, params)
			if err != nil {
				slog.Error("store_memory tool failed", "error", err)
				return fmt.Sprintf("Error: %v", err), nil
			}
			if id == 0 {
				return "Failed to store memory", nil
			}
			return fmt.Sprintf("Stored memory #%d", id), nil
		})
}
