package schema

import (
	"context"
	"encoding/json"
)

// Tool is the interface all LLM-callable tools must satisfy.
// Built-in tools and bridge-wrapped provider tools both implement it.
type Tool interface {
	Name() string
	Description() string
	// Parameters returns the JSON Schema (as raw JSON bytes) for this tool's parameters.
	Parameters() json.RawMessage
	Execute(ctx context.Context, params map[string]any) (string, error)
}

// ToolRegistrar accepts discovered tools. The bridge registers the tools of a
// provider subprocess into a registrar after discovery.
type ToolRegistrar interface {
	Add(t Tool) Tool
}
