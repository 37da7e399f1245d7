package mcp

import "errors"

var (
	// ErrStartup means the provider subprocess could not be launched or
	// exited before the initialize handshake completed.
	ErrStartup = errors.New("tool provider startup failed")

	// ErrUnavailable means the provider subprocess crashed or its channel
	// closed after a successful start. A crashed provider likely needs
	// operator intervention (missing credentials, bad command), so callers
	// surface it for the current turn instead of retrying.
	ErrUnavailable = errors.New("tool provider unavailable")

	// ErrUnknownTool means an invocation named a tool the provider never
	// advertised during discovery.
	ErrUnknownTool = errors.New("unknown tool")
)
