package agents

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/lessonmate/lessonmate/internal/schema"
)

// ErrDepthExceeded is returned when a cross-agent call is made from within a
// cross-agent call. Depth is capped at one hop: an agent may consult another
// agent, but the consulted agent works alone.
var ErrDepthExceeded = errors.New("cross-agent call depth exceeded")

// Registry holds the constructed agents by category.
type Registry struct {
	mu     sync.RWMutex
	agents map[schema.Category]schema.Agent
}

func NewRegistry() *Registry {
	return &Registry{agents: make(map[schema.Category]schema.Agent)}
}

// Add registers an agent under its own name.
func (r *Registry) Add(a schema.Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[a.Name()] = a
}

// Get returns the agent for a category.
func (r *Registry) Get(c schema.Category) (schema.Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[c]
	return a, ok
}

type callDepthKey struct{}

func callDepth(ctx context.Context) int {
	d, _ := ctx.Value(callDepthKey{}).(int)
	return d
}

// Invoker routes delegated missions between agents. Only the targets named
// at construction are reachable, and never more than one hop deep.
type Invoker struct {
	registry *Registry
	allowed  map[schema.Category]bool
}

func NewInvoker(registry *Registry, targets ...schema.Category) *Invoker {
	allowed := make(map[schema.Category]bool, len(targets))
	for _, t := range targets {
		allowed[t] = true
	}
	return &Invoker{registry: registry, allowed: allowed}
}

// Invoke runs a mission on the target agent. The call depth rides on ctx, so
// the limit holds even when the delegated agent is handed a fresh tool loop.
func (v *Invoker) Invoke(ctx context.Context, target schema.Category, mission string) (string, error) {
	depth := callDepth(ctx)
	if depth >= 1 {
		return "", fmt.Errorf("%w: %s at depth %d", ErrDepthExceeded, target, depth+1)
	}
	if !v.allowed[target] {
		return "", fmt.Errorf("cross-agent calls to %q are not allowed", target)
	}
	agent, ok := v.registry.Get(target)
	if !ok {
		return "", fmt.Errorf("no %q agent registered", target)
	}
	return agent.Solve(context.WithValue(ctx, callDepthKey{}, depth+1), mission)
}

var _ schema.CrossAgentInvoker = (*Invoker)(nil)
