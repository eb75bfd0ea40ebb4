package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	contractx "github.com/dhrits/job-hopper/agent/contract"
)

// Handler executes one tool call and returns its textual result.
type Handler func(ctx context.Context, args map[string]any) (string, error)

// Spec is one registered capability: the model-facing descriptor plus the
// handler that backs it. Parameters is a JSON-Schema object; arguments are
// validated against it before dispatch.
type Spec struct {
	Name        string
	Description string
	Parameters  map[string]any
	Handler     Handler
}

func (s Spec) Descriptor() contractx.ToolDescriptor {
	return contractx.ToolDescriptor{
		Name:        s.Name,
		Description: s.Description,
		Parameters:  s.Parameters,
	}
}

type registered struct {
	spec   Spec
	schema *jsonschema.Schema
}

// Registry resolves tool names to handlers. It is built once per session and
// never mutated afterwards, so lookups need no locking. Describe order is
// registration order.
type Registry struct {
	order []string
	tools map[string]*registered
}

func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]*registered),
	}
}

func (r *Registry) Register(spec Spec) error {
	name := strings.TrimSpace(spec.Name)
	if name == "" {
		return fmt.Errorf("%w: tool name is empty", contractx.ErrValidation)
	}
	if spec.Handler == nil {
		return fmt.Errorf("%w: tool %s has no handler", contractx.ErrValidation, name)
	}
	if _, ok := r.tools[name]; ok {
		return fmt.Errorf("%w: %s", contractx.ErrDuplicateTool, name)
	}

	entry := &registered{spec: spec}
	if spec.Parameters != nil {
		schema, err := compileSchema(name, spec.Parameters)
		if err != nil {
			return fmt.Errorf("%w: tool %s parameter schema: %v", contractx.ErrValidation, name, err)
		}
		entry.schema = schema
	}

	r.order = append(r.order, name)
	r.tools[name] = entry
	return nil
}

// Describe returns the tool descriptors in registration order.
func (r *Registry) Describe() []contractx.ToolDescriptor {
	out := make([]contractx.ToolDescriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].spec.Descriptor())
	}
	return out
}

func (r *Registry) Len() int {
	return len(r.order)
}

// Invoke validates args against the tool's parameter schema and runs the
// handler. Handler failures come back wrapped as ErrToolExecution with the
// tool name; the registry performs no retries.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any) (string, error) {
	entry, ok := r.tools[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", contractx.ErrUnknownTool, name)
	}

	if entry.schema != nil {
		if err := entry.schema.Validate(normalizeArgs(args)); err != nil {
			return "", fmt.Errorf("%w: tool %s: invalid arguments: %v", contractx.ErrToolExecution, name, err)
		}
	}

	result, err := entry.spec.Handler(ctx, args)
	if err != nil {
		return "", fmt.Errorf("%w: tool %s: %v", contractx.ErrToolExecution, name, err)
	}
	return result, nil
}

func compileSchema(name string, params map[string]any) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}

	compiler := jsonschema.NewCompiler()
	resource := name + ".schema.json"
	if err := compiler.AddResource(resource, strings.NewReader(string(raw))); err != nil {
		return nil, err
	}
	return compiler.Compile(resource)
}

// normalizeArgs round-trips args through JSON so the validator sees the same
// value shapes a decoded request would have.
func normalizeArgs(args map[string]any) any {
	if args == nil {
		return map[string]any{}
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return args
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return args
	}
	return out
}
