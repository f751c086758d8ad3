package ai

import "context"

// ToolHandler produces one JSON-encoded context section for a briefing, for
// example the current stock levels or the open purchase orders. All tools are
// read-only: the assistant never mutates operational data.
type ToolHandler func(ctx context.Context) (string, error)

// ToolDefinition describes one read tool in the registry.
type ToolDefinition struct {
	Name        string
	Description string
	Handler     ToolHandler
}

// ToolRegistry holds the read tools available to the assistant for a given
// call. The application layer builds a registry per request from its query
// operations; the agent executes every tool and feeds the results to the
// model as context.
type ToolRegistry struct {
	tools []ToolDefinition
}

// NewToolRegistry creates an empty ToolRegistry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{}
}

// Register adds a tool to the registry.
func (r *ToolRegistry) Register(t ToolDefinition) {
	r.tools = append(r.tools, t)
}

// Get returns the ToolDefinition for a given tool name, and whether it was found.
func (r *ToolRegistry) Get(name string) (ToolDefinition, bool) {
	for _, t := range r.tools {
		if t.Name == name {
			return t, true
		}
	}
	return ToolDefinition{}, false
}

// All returns all registered tools.
func (r *ToolRegistry) All() []ToolDefinition {
	return r.tools
}
