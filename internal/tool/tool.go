// Package tool binds strongly-typed Go functions to the tool-calling
// protocol: each tool advertises a reflection-derived parameter schema and
// dispatches raw model-supplied arguments through tolerant JSON decoding.
package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hermesagent/hermes/internal/ai"
	"github.com/hermesagent/hermes/internal/jsonschema"
	"github.com/hermesagent/hermes/internal/parse"
)

// Tool binds a name and description to a typed handler. The parameter schema
// for input type I is derived automatically.
type Tool[I, O any] struct {
	Name        string
	Description string
	Parameters  *jsonschema.Schema
	Function    func(ctx context.Context, input I) (O, error)
}

// GenericTool abstracts over the generic type parameters of Tool so tools
// can be registered and dispatched without knowing their concrete types.
type GenericTool interface {
	// Describe returns the advertisement sent to the model.
	Describe() ai.ToolDescription

	// Call decodes the raw arguments, runs the handler, and returns the
	// JSON-encoded result.
	Call(ctx context.Context, arguments json.RawMessage) (string, error)
}

// New constructs a tool from a typed handler.
func New[I, O any](name, description string, function func(ctx context.Context, input I) (O, error)) *Tool[I, O] {
	return &Tool[I, O]{
		Name:        name,
		Description: description,
		Parameters:  jsonschema.Generate[I](),
		Function:    function,
	}
}

// Describe returns the ai.ToolDescription advertised to the model.
func (t *Tool[I, O]) Describe() ai.ToolDescription {
	return ai.ToolDescription{
		Type: "function",
		Function: ai.ToolFunction{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.Parameters,
		},
	}
}

// Call decodes arguments into I, invokes the handler, and marshals the
// result. Decoding tolerates the malformed JSON local models emit.
func (t *Tool[I, O]) Call(ctx context.Context, arguments json.RawMessage) (string, error) {
	input, err := parse.Arguments[I](arguments)
	if err != nil {
		return "", fmt.Errorf("tool %s: %w", t.Name, err)
	}

	output, err := t.Function(ctx, input)
	if err != nil {
		return "", fmt.Errorf("tool %s: %w", t.Name, err)
	}

	outputBytes, err := json.Marshal(output)
	if err != nil {
		return "", fmt.Errorf("tool %s: marshal result: %w", t.Name, err)
	}
	return string(outputBytes), nil
}

// Registry holds the tools offered to the model for one session.
type Registry struct {
	tools map[string]GenericTool
	order []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]GenericTool)}
}

// Register adds a tool. Re-registering a name replaces the previous tool.
func (r *Registry) Register(t GenericTool) {
	name := t.Describe().Function.Name
	if _, exists := r.tools[name]; !exists {
		r.order = append(r.order, name)
	}
	r.tools[name] = t
}

// Descriptions returns the advertisements for all registered tools in
// registration order.
func (r *Registry) Descriptions() []ai.ToolDescription {
	if len(r.order) == 0 {
		return nil
	}
	descs := make([]ai.ToolDescription, 0, len(r.order))
	for _, name := range r.order {
		descs = append(descs, r.tools[name].Describe())
	}
	return descs
}

// Dispatch routes a model tool call to the matching tool.
func (r *Registry) Dispatch(ctx context.Context, call ai.ToolCall) (string, error) {
	t, ok := r.tools[call.Function.Name]
	if !ok {
		return "", fmt.Errorf("tool: unknown tool %q", call.Function.Name)
	}
	return t.Call(ctx, call.Function.Arguments)
}

// Len returns the number of registered tools.
func (r *Registry) Len() int { return len(r.tools) }
