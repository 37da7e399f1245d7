// Package mcp implements the client side of the subprocess tool protocol:
// a line-oriented JSON-RPC exchange over a provider's standard input/output,
// with a discovery handshake that lists the provider's tools.
package mcp

import (
	"context"
	stdjson "encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const protocolVersion = "2024-11-05"

// DefaultInvokeTimeout bounds a single tools/call round trip.
const DefaultInvokeTimeout = 30 * time.Second

// rpcError is a JSON-RPC level error returned by the provider. It is
// model-visible: invocations that hit one produce an error ToolResult
// instead of failing the turn.
type rpcError struct{ msg string }

func (e rpcError) Error() string { return e.msg }

// errInvokeTimeout marks a tools/call that outlived the per-call timeout.
var errInvokeTimeout = errors.New("tool call timed out")

type envelope struct {
	result stdjson.RawMessage
	err    error
}

// Bridge owns exactly one tool provider subprocess and translates between
// the core's generic tool representation and the provider's wire format.
//
// Lifecycle: Start (launch + initialize handshake), Tools (one-time
// discovery, cached), any number of Invoke calls, Stop (idempotent).
// A Bridge is safe for concurrent use, though providers themselves are
// simple one-request-in-flight channels, so callers serialize per turn.
type Bridge struct {
	name    string
	dial    func() (Transport, error)
	timeout time.Duration

	mu        sync.Mutex
	tr        Transport
	started   bool
	stopped   bool
	dead      bool
	tools     []ToolDescriptor
	byName    map[string]ToolDescriptor
	nextID    int64
	pending   map[int64]chan envelope
	abandoned map[int64]struct{}
}

// NewBridge creates a Bridge that launches cfg as a subprocess on Start.
func NewBridge(name string, cfg ProviderConfig, timeout time.Duration) *Bridge {
	return NewBridgeWithDialer(name, func() (Transport, error) {
		return StartStdioTransport(cfg)
	}, timeout)
}

// NewBridgeWithDialer creates a Bridge over an arbitrary transport factory.
// Tests use this to drive the bridge over in-memory pipes.
func NewBridgeWithDialer(name string, dial func() (Transport, error), timeout time.Duration) *Bridge {
	if timeout <= 0 {
		timeout = DefaultInvokeTimeout
	}
	return &Bridge{
		name:      name,
		dial:      dial,
		timeout:   timeout,
		byName:    make(map[string]ToolDescriptor),
		pending:   make(map[int64]chan envelope),
		abandoned: make(map[int64]struct{}),
	}
}

// Name returns the provider name this bridge was created with.
func (b *Bridge) Name() string { return b.name }

// Start launches the provider and performs the initialize handshake.
// It fails with ErrStartup if the process exits (or stays silent past the
// timeout) before the handshake completes. Calling Start on a started
// bridge is a no-op.
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return fmt.Errorf("%w: %s: bridge stopped", ErrUnavailable, b.name)
	}
	if b.started {
		b.mu.Unlock()
		return nil
	}

	tr, err := b.dial()
	if err != nil {
		b.mu.Unlock()
		return fmt.Errorf("%w: %s: %v", ErrStartup, b.name, err)
	}
	b.tr = tr
	b.started = true
	b.mu.Unlock()

	go b.readLoop(tr)

	params := map[string]any{
		"protocolVersion": protocolVersion,
		"capabilities":    map[string]any{},
		"clientInfo":      map[string]any{"name": "lessonmate", "version": "1.0"},
	}
	if _, err := b.call(ctx, "initialize", params); err != nil {
		b.shutdown()
		return fmt.Errorf("%w: %s: initialize: %v", ErrStartup, b.name, err)
	}

	// Initialized notification expects no response.
	notif, _ := json.Marshal(map[string]any{"jsonrpc": "2.0", "method": "notifications/initialized"})
	if err := tr.Send(notif); err != nil {
		b.shutdown()
		return fmt.Errorf("%w: %s: %v", ErrStartup, b.name, err)
	}

	slog.Info("tool provider started", "provider", b.name)
	return nil
}

// Tools performs the one-time discovery handshake and returns the provider's
// tool descriptors. The result is cached for the provider's lifetime.
func (b *Bridge) Tools(ctx context.Context) ([]ToolDescriptor, error) {
	b.mu.Lock()
	if len(b.tools) > 0 {
		cached := b.tools
		b.mu.Unlock()
		return cached, nil
	}
	b.mu.Unlock()

	raw, err := b.call(ctx, "tools/list", nil)
	if err != nil {
		return nil, fmt.Errorf("%s: list tools: %w", b.name, err)
	}

	var parsed struct {
		Tools []struct {
			Name        string         `json:"name"`
			Description string         `json:"description"`
			InputSchema map[string]any `json:"inputSchema"`
		} `json:"tools"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("%s: parse tool list: %w", b.name, err)
	}

	descriptors := make([]ToolDescriptor, 0, len(parsed.Tools))
	for _, t := range parsed.Tools {
		if t.Name == "" {
			continue
		}
		schema := t.InputSchema
		if schema == nil {
			schema = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		descriptors = append(descriptors, ToolDescriptor{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: schema,
		})
	}

	b.mu.Lock()
	b.tools = descriptors
	for _, d := range descriptors {
		b.byName[d.Name] = d
	}
	b.mu.Unlock()

	slog.Info("tool provider discovered", "provider", b.name, "tools", len(descriptors))
	return descriptors, nil
}

// Ensure starts the provider and runs discovery if that has not happened yet.
func (b *Bridge) Ensure(ctx context.Context) error {
	if err := b.Start(ctx); err != nil {
		return err
	}
	_, err := b.Tools(ctx)
	return err
}

// Invoke executes one tool call. Failures that the loop can absorb (unknown
// parameters, provider-reported errors, per-call timeout) come back as an
// IsError ToolResult; a crashed provider surfaces as ErrUnavailable, and an
// undiscovered tool name as ErrUnknownTool.
func (b *Bridge) Invoke(ctx context.Context, inv Invocation) (ToolResult, error) {
	b.mu.Lock()
	d, known := b.byName[inv.Tool]
	b.mu.Unlock()
	if !known {
		return ToolResult{}, fmt.Errorf("%w: %s", ErrUnknownTool, inv.Tool)
	}

	if err := d.ValidateArgs(inv.Arguments); err != nil {
		return errorResult(inv.Tool, "invalid arguments: %v", err), nil
	}

	args := inv.Arguments
	if args == nil {
		args = map[string]any{}
	}
	raw, err := b.call(ctx, "tools/call", map[string]any{
		"name":      inv.Tool,
		"arguments": args,
	})
	var provErr rpcError
	switch {
	case err == nil:
	case errors.Is(err, errInvokeTimeout):
		return errorResult(inv.Tool, "tool call timed out after %s", b.timeout), nil
	case errors.As(err, &provErr):
		return errorResult(inv.Tool, "provider error: %s", provErr.msg), nil
	default:
		// Crash, stop, or caller cancellation.
		return ToolResult{}, err
	}

	return parseCallResult(inv.Tool, raw), nil
}

// Stop terminates the provider subprocess. Idempotent.
func (b *Bridge) Stop() {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return
	}
	b.stopped = true
	b.mu.Unlock()
	b.shutdown()
	slog.Info("tool provider stopped", "provider", b.name)
}

// ---------------------------------------------------------------------------
// JSON-RPC plumbing
// ---------------------------------------------------------------------------

func (b *Bridge) call(ctx context.Context, method string, params any) (stdjson.RawMessage, error) {
	b.mu.Lock()
	if !b.started || b.dead || b.stopped {
		b.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, b.name)
	}
	b.nextID++
	id := b.nextID
	ch := make(chan envelope, 1)
	b.pending[id] = ch
	tr := b.tr
	b.mu.Unlock()

	req := map[string]any{"jsonrpc": "2.0", "id": id, "method": method}
	if params != nil {
		req["params"] = params
	}
	data, err := json.Marshal(req)
	if err != nil {
		b.abandon(id)
		return nil, err
	}

	if err := tr.Send(data); err != nil {
		b.abandon(id)
		b.markDead()
		return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, b.name, err)
	}

	timer := time.NewTimer(b.timeout)
	defer timer.Stop()

	select {
	case env := <-ch:
		return env.result, env.err
	case <-timer.C:
		b.abandon(id)
		return nil, fmt.Errorf("%s %s: %w", b.name, method, errInvokeTimeout)
	case <-ctx.Done():
		b.abandon(id)
		return nil, ctx.Err()
	}
}

// abandon marks an outstanding correlation ID so a late response is
// discarded rather than misattributed to a later call.
func (b *Bridge) abandon(id int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.pending[id]; ok {
		delete(b.pending, id)
		b.abandoned[id] = struct{}{}
	}
}

// readLoop dispatches provider responses to their waiting callers.
// Lines that are not JSON-RPC responses (provider log output) are skipped.
func (b *Bridge) readLoop(tr Transport) {
	for {
		line, err := tr.Recv()
		if err != nil {
			b.markDead()
			return
		}

		var resp struct {
			ID     int64           `json:"id"`
			Result stdjson.RawMessage `json:"result"`
			Error  stdjson.RawMessage `json:"error"`
		}
		if err := json.Unmarshal(line, &resp); err != nil || resp.ID == 0 {
			continue
		}

		b.mu.Lock()
		if _, ok := b.abandoned[resp.ID]; ok {
			delete(b.abandoned, resp.ID)
			b.mu.Unlock()
			continue
		}
		ch, ok := b.pending[resp.ID]
		if ok {
			delete(b.pending, resp.ID)
		}
		b.mu.Unlock()
		if !ok {
			continue
		}

		if len(resp.Error) > 0 && string(resp.Error) != "null" {
			ch <- envelope{err: rpcError{msg: compactJSON(resp.Error)}}
			continue
		}
		ch <- envelope{result: resp.Result}
	}
}

// markDead fails every in-flight call with ErrUnavailable. The next Invoke
// also fails, which is how a crashed provider is detected.
func (b *Bridge) markDead() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.dead {
		return
	}
	b.dead = true
	for id, ch := range b.pending {
		ch <- envelope{err: fmt.Errorf("%w: %s", ErrUnavailable, b.name)}
		delete(b.pending, id)
	}
	if !b.stopped {
		slog.Warn("tool provider channel closed", "provider", b.name)
	}
}

func (b *Bridge) shutdown() {
	b.mu.Lock()
	tr := b.tr
	b.mu.Unlock()
	if tr != nil {
		tr.Close()
	}
	b.markDead()
}

// parseCallResult extracts the text payload from a tools/call result.
func parseCallResult(tool string, raw stdjson.RawMessage) ToolResult {
	var result struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		IsError bool `json:"isError"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return ToolResult{Tool: tool, Output: string(raw)}
	}

	var parts []string
	for _, block := range result.Content {
		if block.Text != "" {
			parts = append(parts, block.Text)
		}
	}
	out := strings.Join(parts, "\n")
	if out == "" {
		out = "(no output)"
	}
	return ToolResult{Tool: tool, Output: out, IsError: result.IsError}
}

func compactJSON(raw stdjson.RawMessage) string {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	if m, ok := v.(map[string]any); ok {
		if msg, ok := m["message"].(string); ok && msg != "" {
			return msg
		}
	}
	out, _ := json.Marshal(v)
	return string(out)
}
