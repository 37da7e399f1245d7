// Package mcpserver implements the provider side of the subprocess tool
// protocol: a line-oriented JSON-RPC loop over stdio that advertises a set
// of registered tools and executes calls against them.
package mcpserver

import (
	"bufio"
	"context"
	stdjson "encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const protocolVersion = "2024-11-05"

// ToolFunc executes one tool call. A returned error becomes a model-visible
// error result, not a protocol failure.
type ToolFunc func(ctx context.Context, args map[string]any) (string, error)

type registeredTool struct {
	name        string
	description string
	inputSchema map[string]any
	handler     ToolFunc
}

// Server serves one provider's tool catalog over a request/response stream.
type Server struct {
	name    string
	version string

	mu     sync.Mutex
	order  []string
	byName map[string]registeredTool
}

// New creates an empty server identified by name and version in the
// initialize handshake.
func New(name, version string) *Server {
	return &Server{name: name, version: version, byName: make(map[string]registeredTool)}
}

// Register adds a tool. inputSchema is a JSON Schema object; nil means the
// tool takes no parameters. Registering the same name twice replaces the
// earlier handler.
func (s *Server) Register(name, description string, inputSchema map[string]any, fn ToolFunc) {
	if inputSchema == nil {
		inputSchema = map[string]any{"type": "object", "properties": map[string]any{}}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byName[name]; !exists {
		s.order = append(s.order, name)
	}
	s.byName[name] = registeredTool{
		name:        name,
		description: description,
		inputSchema: inputSchema,
		handler:     fn,
	}
}

// ServeStdio runs the request loop over the process's standard input and
// output until stdin closes or ctx is canceled.
func (s *Server) ServeStdio(ctx context.Context) error {
	return s.Serve(ctx, os.Stdin, os.Stdout)
}

// Serve reads newline-delimited JSON-RPC requests from r and writes
// responses to w. It returns when r is exhausted or ctx is canceled.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var writeMu sync.Mutex
	write := func(v any) error {
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		writeMu.Lock()
		defer writeMu.Unlock()
		_, err = w.Write(append(data, '\n'))
		return err
	}

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req struct {
			ID     stdjson.RawMessage `json:"id"`
			Method string             `json:"method"`
			Params struct {
				Name      string         `json:"name"`
				Arguments map[string]any `json:"arguments"`
			} `json:"params"`
		}
		if err := json.Unmarshal(line, &req); err != nil {
			slog.Warn("skipping malformed request line", "provider", s.name, "err", err)
			continue
		}
		if req.Method == "" {
			continue
		}
		// Notifications carry no id and expect no response.
		if len(req.ID) == 0 || string(req.ID) == "null" {
			continue
		}

		resp := s.handle(ctx, req.Method, req.Params.Name, req.Params.Arguments)
		out := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		if resp.err != nil {
			out["error"] = map[string]any{"code": resp.code, "message": resp.err.Error()}
		} else {
			out["result"] = resp.result
		}
		if err := write(out); err != nil {
			return fmt.Errorf("write response: %w", err)
		}
	}
	return scanner.Err()
}

type handleResult struct {
	result any
	err    error
	code   int
}

func (s *Server) handle(ctx context.Context, method, tool string, args map[string]any) handleResult {
	switch method {
	case "initialize":
		return handleResult{result: map[string]any{
			"protocolVersion": protocolVersion,
			"capabilities":    map[string]any{"tools": map[string]any{}},
			"serverInfo":      map[string]any{"name": s.name, "version": s.version},
		}}

	case "tools/list":
		s.mu.Lock()
		tools := make([]map[string]any, 0, len(s.order))
		for _, name := range s.order {
			rt := s.byName[name]
			tools = append(tools, map[string]any{
				"name":        rt.name,
				"description": rt.description,
				"inputSchema": rt.inputSchema,
			})
		}
		s.mu.Unlock()
		return handleResult{result: map[string]any{"tools": tools}}

	case "tools/call":
		s.mu.Lock()
		rt, ok := s.byName[tool]
		s.mu.Unlock()
		if !ok {
			return handleResult{err: fmt.Errorf("unknown tool: %s", tool), code: -32602}
		}
		if args == nil {
			args = map[string]any{}
		}
		out, err := rt.handler(ctx, args)
		if err != nil {
			return handleResult{result: callResult(err.Error(), true)}
		}
		return handleResult{result: callResult(out, false)}

	default:
		return handleResult{err: fmt.Errorf("method not found: %s", method), code: -32601}
	}
}

func callResult(text string, isError bool) map[string]any {
	return map[string]any{
		"content": []map[string]any{{"type": "text", "text": text}},
		"isError": isError,
	}
}
