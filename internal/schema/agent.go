package schema

import "context"

// AgentSettings holds the per-agent LLM call parameters.
type AgentSettings struct {
	Model       string
	MaxIter     int
	Temperature float64
	MaxTokens   int
	// MemoryWindow is the number of prior session messages sent with each turn.
	MemoryWindow int
}

func NewAgentSettings(model string, maxIter int, temperature float64, maxTokens, memoryWindow int) AgentSettings {
	return AgentSettings{
		Model:        model,
		MaxIter:      maxIter,
		Temperature:  temperature,
		MaxTokens:    maxTokens,
		MemoryWindow: memoryWindow,
	}
}

// Agent is a named capability that accepts a mission and returns an answer.
// Solve is synchronous from the caller's point of view; any tool subprocess
// I/O happens inside.
type Agent interface {
	Name() Category
	Solve(ctx context.Context, mission string) (string, error)
}

// CrossAgentInvoker lets one agent delegate a mission to another during its
// own turn. Implementations enforce which delegations are allowed and how
// deep they may nest.
type CrossAgentInvoker interface {
	Invoke(ctx context.Context, target Category, mission string) (string, error)
}
