package agents

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lessonmate/lessonmate/internal/bus"
	"github.com/lessonmate/lessonmate/internal/mcp"
	"github.com/lessonmate/lessonmate/internal/schema"
	"github.com/lessonmate/lessonmate/internal/session"
	"github.com/lessonmate/lessonmate/internal/tools"
)

// BaseAgent is the shared agent body: a system prompt, a tool list, the loop
// runner, and persisted per-agent history. The per-category constructors
// differ only in prompt and tooling.
type BaseAgent struct {
	name     schema.Category
	prompt   string
	loop     LoopRunner
	settings schema.AgentSettings
	tools    *tools.ToolList
	sessions *session.Manager
	bridge   *mcp.Bridge // nil when the agent has no provider subprocess

	setupOnce sync.Once
	setupErr  error
}

// NewBaseAgent wires an agent. bridge may be nil; tool discovery happens
// lazily on the first Solve so an unused provider is never launched.
func NewBaseAgent(name schema.Category, prompt string, provider schema.LLMProvider, settings schema.AgentSettings, tls *tools.ToolList, sessions *session.Manager, bridge *mcp.Bridge) *BaseAgent {
	if tls == nil {
		tls = tools.NewToolList()
	}
	return &BaseAgent{
		name:     name,
		prompt:   prompt,
		loop:     NewLoopRunner(provider, settings),
		settings: settings,
		tools:    tls,
		sessions: sessions,
		bridge:   bridge,
	}
}

func (a *BaseAgent) Name() schema.Category { return a.name }

// Tools exposes the agent's tool list so built-in tools can be added after
// construction.
func (a *BaseAgent) Tools() *tools.ToolList { return a.tools }

// Solve runs one mission through the loop and records the exchange in the
// agent's history.
func (a *BaseAgent) Solve(ctx context.Context, mission string) (string, error) {
	if err := a.setup(ctx); err != nil {
		return "", err
	}

	conversation := schema.NewMessages()
	conversation.AddSystem(a.prompt + "\n\nToday is " + time.Now().Format("Monday, 2006-01-02") + ".")
	if a.sessions != nil {
		conversation.Append(a.sessions.ForAgent(a.name).History(a.settings.MemoryWindow))
	}
	conversation.AddUser(mission)

	answer, _, err := a.loop.Run(ctx, conversation, a.tools, bus.ProgressFromContext(ctx))
	if err != nil {
		return "", fmt.Errorf("%s agent: %w", a.name, err)
	}

	if a.sessions != nil {
		s := a.sessions.ForAgent(a.name)
		s.AddExchange(mission, answer)
		if err := a.sessions.Save(s); err != nil {
			// History loss is not worth failing an answered turn.
			return answer, nil
		}
	}
	return answer, nil
}

// setup launches the provider subprocess and registers its tools, once.
// A startup failure sticks: every later Solve fails the same way until the
// process restarts, matching how a missing provider binary behaves.
func (a *BaseAgent) setup(ctx context.Context) error {
	if a.bridge == nil {
		return nil
	}
	a.setupOnce.Do(func() {
		a.setupErr = mcp.RegisterTools(ctx, a.bridge, a.tools)
	})
	return a.setupErr
}
