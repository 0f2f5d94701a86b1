package tooling

import (
	"fmt"

	"pokescout/internal/domain"
)

// Registry holds Tool implementations keyed by name, preserving registration
// order. Tools are declared statically at startup; there is no runtime
// discovery. The orchestrator uses the registry to enumerate tool definitions
// for the reasoning service and the dispatcher uses it to resolve calls.
type Registry struct {
	tools map[string]Tool
	order []string
}

// NewRegistry returns an empty, ready-to-use registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool. Returns an error if the tool is nil or a tool with the
// same name is already registered.
func (r *Registry) Register(tool Tool) error {
	if tool == nil {
		return fmt.Errorf("tool must not be nil")
	}
	name := tool.Name()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %q is already registered", name)
	}
	r.tools[name] = tool
	r.order = append(r.order, name)
	return nil
}

// RegisterAll registers each tool, skipping (not failing on) tools whose
// schema generation produced nothing usable. Returns the first hard error
// (nil tool, duplicate name).
func (r *Registry) RegisterAll(tools ...Tool) error {
	for _, t := range tools {
		if t != nil && t.Definition() == "" {
			// A tool without a valid schema cannot be offered to the
			// reasoning service; skip it rather than failing startup.
			continue
		}
		if err := r.Register(t); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the tool with the given name or an error if not found.
func (r *Registry) Get(name string) (Tool, error) {
	tool, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("unknown tool: %q", name)
	}
	return tool, nil
}

// List returns all registered tools in registration order.
func (r *Registry) List() []Tool {
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Definitions returns domain.ToolDefinition for every registered tool, in
// registration order, suitable for the function-calling API.
func (r *Registry) Definitions() []domain.ToolDefinition {
	out := make([]domain.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		out = append(out, domain.ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: t.Definition(),
		})
	}
	return out
}
