package mcp

import "testing"

func lessonDescriptor() ToolDescriptor {
	return ToolDescriptor{
		Name:        "add_lesson",
		Description: "Record a lesson.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"student": map[string]any{"type": "string"},
				"price":   map[string]any{"type": "number"},
				"count":   map[string]any{"type": "integer"},
				"paid":    map[string]any{"type": "boolean"},
				"tags":    map[string]any{"type": "array"},
				"extra":   map[string]any{"type": "object"},
			},
			"required": []any{"student"},
		},
	}
}

func TestValidateArgs(t *testing.T) {
	d := lessonDescriptor()

	cases := []struct {
		name    string
		args    map[string]any
		wantErr bool
	}{
		{"required only", map[string]any{"student": "Shoham"}, false},
		{"all typed", map[string]any{
			"student": "Shoham", "price": 200.0, "count": 3.0, "paid": true,
			"tags": []any{"piano"}, "extra": map[string]any{"note": "x"},
		}, false},
		{"integer as whole float", map[string]any{"student": "a", "count": 5.0}, false},
		{"missing required", map[string]any{"price": 150.0}, true},
		{"string as number", map[string]any{"student": "a", "price": "150"}, true},
		{"fractional integer", map[string]any{"student": "a", "count": 2.5}, true},
		{"unknown parameter", map[string]any{"student": "a", "color": "blue"}, true},
		{"nil value skips type check", map[string]any{"student": "a", "price": nil}, false},
	}
	for _, tc := range cases {
		err := d.ValidateArgs(tc.args)
		if tc.wantErr && err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
		if !tc.wantErr && err != nil {
			t.Errorf("%s: unexpected error: %v", tc.name, err)
		}
	}
}

func TestToModelSchema(t *testing.T) {
	d := lessonDescriptor()
	out := ToModelSchema([]ToolDescriptor{d, {Name: "bare"}})
	if len(out) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(out))
	}

	fn, _ := out[0]["function"].(map[string]any)
	if fn == nil {
		t.Fatal("missing function block")
	}
	if fn["name"] != "add_lesson" {
		t.Errorf("name = %v", fn["name"])
	}
	params, _ := fn["parameters"].(map[string]any)
	if params == nil {
		t.Fatal("missing parameters")
	}
	props, _ := params["properties"].(map[string]any)
	if _, ok := props["student"]; !ok {
		t.Error("parameter names must be preserved exactly")
	}
	req, _ := params["required"].([]any)
	if len(req) != 1 || req[0] != "student" {
		t.Errorf("required = %v", req)
	}

	// A descriptor without a schema still produces a valid object schema.
	fn2, _ := out[1]["function"].(map[string]any)
	if p, _ := fn2["parameters"].(map[string]any); p["type"] != "object" {
		t.Errorf("bare tool parameters = %v", p)
	}
}
