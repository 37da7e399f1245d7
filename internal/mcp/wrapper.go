package mcp

import (
	"context"
	stdjson "encoding/json"

	"github.com/lessonmate/lessonmate/internal/schema"
)

// toolWrapper exposes one discovered provider tool as a schema.Tool.
type toolWrapper struct {
	bridge     *Bridge
	descriptor ToolDescriptor
	params     stdjson.RawMessage
}

func (w *toolWrapper) Name() string        { return w.descriptor.Name }
func (w *toolWrapper) Description() string { return w.descriptor.Description }

func (w *toolWrapper) Parameters() stdjson.RawMessage { return w.params }

func (w *toolWrapper) Execute(ctx context.Context, params map[string]any) (string, error) {
	res, err := w.bridge.Invoke(ctx, Invocation{Tool: w.descriptor.Name, Arguments: params})
	if err != nil {
		return "", err
	}
	if res.IsError {
		return "Error: " + res.Output, nil
	}
	return res.Output, nil
}

var _ schema.Tool = (*toolWrapper)(nil)

// RegisterTools discovers the bridge's tools and adds a wrapper for each one
// into ts. The bridge is started first if necessary.
func RegisterTools(ctx context.Context, b *Bridge, ts schema.ToolRegistrar) error {
	if err := b.Start(ctx); err != nil {
		return err
	}
	descriptors, err := b.Tools(ctx)
	if err != nil {
		return err
	}
	for _, d := range descriptors {
		raw, _ := json.Marshal(d.InputSchema)
		ts.Add(&toolWrapper{bridge: b, descriptor: d, params: stdjson.RawMessage(raw)})
	}
	return nil
}
