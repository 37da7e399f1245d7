package mcp

import "fmt"

// ToolDescriptor describes one callable tool advertised by a provider.
// Descriptors are discovered once per provider-process lifetime and treated
// as immutable for that lifetime.
type ToolDescriptor struct {
	Name        string
	Description string
	// InputSchema is the JSON Schema object describing the tool's parameters.
	InputSchema map[string]any
}

// Invocation is a request to execute one tool with named arguments.
type Invocation struct {
	Tool      string
	Arguments map[string]any
}

// ToolResult is the outcome of one invocation. IsError results are fed back
// into the model as context rather than aborting the loop.
type ToolResult struct {
	Tool    string
	Output  string
	IsError bool
}

// errorResult builds an IsError ToolResult with a formatted message.
func errorResult(tool, format string, args ...any) ToolResult {
	return ToolResult{Tool: tool, Output: fmt.Sprintf(format, args...), IsError: true}
}

// ValidateArgs checks inv's arguments against the descriptor's schema shape:
// every required parameter must be present, and every provided parameter of a
// declared property must match its declared JSON type. Unknown extra
// parameters are rejected so malformed model output never reaches the
// subprocess.
func (d ToolDescriptor) ValidateArgs(args map[string]any) error {
	props, _ := d.InputSchema["properties"].(map[string]any)

	if req, ok := d.InputSchema["required"].([]any); ok {
		for _, r := range req {
			name, _ := r.(string)
			if name == "" {
				continue
			}
			if _, present := args[name]; !present {
				return fmt.Errorf("tool %s: missing required parameter %q", d.Name, name)
			}
		}
	}

	for name, val := range args {
		spec, ok := props[name].(map[string]any)
		if !ok {
			return fmt.Errorf("tool %s: unexpected parameter %q", d.Name, name)
		}
		declared, _ := spec["type"].(string)
		if declared == "" || val == nil {
			continue
		}
		if !matchesJSONType(val, declared) {
			return fmt.Errorf("tool %s: parameter %q expects %s", d.Name, name, declared)
		}
	}
	return nil
}

// matchesJSONType reports whether a decoded JSON value fits a JSON Schema
// primitive type name.
func matchesJSONType(v any, typ string) bool {
	switch typ {
	case "string":
		_, ok := v.(string)
		return ok
	case "boolean":
		_, ok := v.(bool)
		return ok
	case "number":
		switch v.(type) {
		case float64, float32, int, int64:
			return true
		}
		return false
	case "integer":
		switch n := v.(type) {
		case int, int64:
			return true
		case float64:
			return n == float64(int64(n))
		}
		return false
	case "array":
		_, ok := v.([]any)
		return ok
	case "object":
		_, ok := v.(map[string]any)
		return ok
	}
	return true
}

// ToModelSchema translates descriptors into the model-native function-calling
// schema (OpenAI "function" format). Pure translation: parameter names,
// types, and required flags are preserved exactly, because the model uses
// this schema verbatim to construct invocation requests.
func ToModelSchema(descriptors []ToolDescriptor) []map[string]any {
	out := make([]map[string]any, 0, len(descriptors))
	for _, d := range descriptors {
		params := d.InputSchema
		if params == nil {
			params = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		out = append(out, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        d.Name,
				"description": d.Description,
				"parameters":  params,
			},
		})
	}
	return out
}
