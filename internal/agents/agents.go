package agents

import (
	"github.com/lessonmate/lessonmate/internal/mcp"
	"github.com/lessonmate/lessonmate/internal/schema"
	"github.com/lessonmate/lessonmate/internal/session"
	"github.com/lessonmate/lessonmate/internal/tools"
)

const knowledgePrompt = `You are a knowledgeable assistant. Answer general questions directly and
concisely from what you know. If the user writes in Hebrew, answer in Hebrew.
If you genuinely do not know, say so instead of guessing.`

const stockPrompt = `You are a stock market assistant. Use your tools to fetch real quotes,
price history and company profiles; never invent numbers. Quote prices with
their currency. When asked about a trend, fetch the history first and
describe what the data shows.`

const schedulePrompt = `You manage a private teaching calendar. Use your tools to list, create,
update and delete events and to calculate monthly earnings.
Lessons are the events in the default, Lavender or Flamingo colors; events in
any other color are personal and must never be treated as lessons or counted
as income. Dates without a year mean the current year. If a tool call returns
an error, fix the arguments and try again rather than giving up. Confirm what
you changed, with dates and times.`

const workPrompt = `You manage a private lesson payment ledger. Use your tools to read lessons,
record new ones, and settle payments. Never guess whether something was paid:
read the ledger first. When the ledger may be behind the calendar, run
sync_ledger before answering; use query_schedule when you need to know what
actually happened on the calendar. Questions about money earned or owed are
yours even when they mention dates or the calendar.`

// NewKnowledgeAgent answers general questions with no tools.
func NewKnowledgeAgent(provider schema.LLMProvider, settings schema.AgentSettings, sessions *session.Manager) *BaseAgent {
	return NewBaseAgent(schema.CategoryKnowledge, knowledgePrompt, provider, settings, nil, sessions, nil)
}

// NewStockAgent answers market questions with the stock provider's tools.
func NewStockAgent(provider schema.LLMProvider, settings schema.AgentSettings, sessions *session.Manager, bridge *mcp.Bridge) *BaseAgent {
	return NewBaseAgent(schema.CategoryStock, stockPrompt, provider, settings, nil, sessions, bridge)
}

// NewScheduleAgent manages the calendar with the schedule provider's tools.
func NewScheduleAgent(provider schema.LLMProvider, settings schema.AgentSettings, sessions *session.Manager, bridge *mcp.Bridge) *BaseAgent {
	return NewBaseAgent(schema.CategorySchedule, schedulePrompt, provider, settings, nil, sessions, bridge)
}

// NewWorkAgent manages the ledger. Besides the work provider's tools it
// carries the built-in ledger sync and the one allowed cross-agent call.
func NewWorkAgent(provider schema.LLMProvider, settings schema.AgentSettings, sessions *session.Manager, bridge *mcp.Bridge, invoker schema.CrossAgentInvoker, syncTool schema.Tool) *BaseAgent {
	a := NewBaseAgent(schema.CategoryWork, workPrompt, provider, settings, nil, sessions, bridge)
	if invoker != nil {
		a.Tools().Add(tools.NewQueryScheduleTool(invoker))
	}
	if syncTool != nil {
		a.Tools().Add(syncTool)
	}
	return a
}
