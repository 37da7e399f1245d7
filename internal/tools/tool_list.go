// Package tools holds the tool registry handed to an agent's loop, plus the
// built-in tools that are implemented in-process rather than by a provider
// subprocess.
package tools

import (
	"encoding/json"
	"sort"

	"github.com/lessonmate/lessonmate/internal/schema"
)

// ToolList holds a named set of tools and exposes them for LLM calls and
// runtime extension (bridged provider tools are added after discovery).
type ToolList struct {
	tools map[string]schema.Tool
}

func NewToolList(ts ...schema.Tool) *ToolList {
	list := ToolList{tools: make(map[string]schema.Tool, len(ts))}
	for _, t := range ts {
		list.tools[t.Name()] = t
	}
	return &list
}

// Get returns the tool with the given name, or nil if not found.
func (r *ToolList) Get(name string) schema.Tool {
	return r.tools[name]
}

// Add registers a new tool, replacing any existing tool with the same name.
func (r *ToolList) Add(t schema.Tool) schema.Tool {
	r.tools[t.Name()] = t
	return t
}

// Names returns the registered tool names, sorted.
func (r *ToolList) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Definitions returns all tool definitions in OpenAI function-calling format,
// sorted by name for a stable request body.
func (r *ToolList) Definitions() []map[string]any {
	list := make([]map[string]any, 0, len(r.tools))
	for _, name := range r.Names() {
		t := r.tools[name]
		var params any
		if err := json.Unmarshal(t.Parameters(), &params); err != nil || params == nil {
			params = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		list = append(list, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        t.Name(),
				"description": t.Description(),
				"parameters":  params,
			},
		})
	}
	return list
}

var _ schema.ToolRegistrar = (*ToolList)(nil)
