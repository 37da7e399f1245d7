// Package router turns free-form user text into a routed agent turn: it
// classifies the text, reformulates it into a self-contained mission, and
// dispatches the mission to the matching agent.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/lessonmate/lessonmate/internal/schema"
	"github.com/lessonmate/lessonmate/internal/session"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// classifierPrompt defines the categories and their boundaries. The money
// tie-break matters: lesson payments live in the ledger, so a question that
// mixes dates with money still belongs to work.
const classifierPrompt = `You route a private assistant's incoming messages. Classify the message into
exactly one category and rewrite it as a self-contained mission for the
target agent. The agent sees only the mission, never the original message or
this conversation, so the mission must carry every needed detail.

Categories:
- "stock": share prices, market data, companies as investments.
- "work": the lesson payment ledger. Who paid, who owes, how much was
  earned, recording lessons and payments. Any question about lesson money
  belongs here even when it mentions dates, weeks, or the calendar.
- "schedule": the teaching calendar itself. Listing, creating, moving or
  cancelling events and lessons, free time, what happens when.
- "knowledge": general questions answerable without private data.
- "unknown": none of the above fits, or the message is not a request.

Messages may be in Hebrew or English; classify by meaning, not language.

Respond with JSON only, no other text:
{"category": "...", "confidence": 0.0-1.0, "reason": "...", "mission": "..."}

For "unknown" use confidence 0 and an empty mission.`

// classifyTemperature pins the classifier; routing must be repeatable.
const classifyTemperature = 0.0

// Classifier assigns a category and mission to one message. When a message
// cannot be classified on its own it retries with recent context before
// giving up.
type Classifier struct {
	provider schema.LLMProvider
	model    string
	log      *session.ExchangeLog
	sessions *session.Manager
}

func NewClassifier(provider schema.LLMProvider, model string, log *session.ExchangeLog, sessions *session.Manager) *Classifier {
	if model == "" {
		model = provider.DefaultModel()
	}
	return &Classifier{provider: provider, model: model, log: log, sessions: sessions}
}

// Classify runs the fallback chain: the bare message, then the message with
// the recent routed exchanges, then with the agents' own history tails.
// The result is CategoryUnknown with confidence 0 only when every step
// failed to place the message.
func (c *Classifier) Classify(ctx context.Context, text string) schema.ClassificationResult {
	result := c.attempt(ctx, text, "")
	if result.Category != schema.CategoryUnknown {
		return result
	}

	if extra := c.recentExchanges(); extra != "" {
		slog.Debug("classification retry with recent exchanges")
		if result = c.attempt(ctx, text, extra); result.Category != schema.CategoryUnknown {
			return result
		}
	}
	if extra := c.agentMemory(); extra != "" {
		slog.Debug("classification retry with agent memory")
		if result = c.attempt(ctx, text, extra); result.Category != schema.CategoryUnknown {
			return result
		}
	}
	return result
}

const generalAssistantPrompt = `You are a helpful personal assistant for a private music teacher.
Answer the user's message directly and briefly. If you genuinely cannot help,
say so and suggest what you can help with: the teaching calendar, lesson
payments, or stock prices.`

// GeneralAnswer produces a best-effort direct reply for messages that never
// classified. It shares the classifier's provider but not its prompt.
func (c *Classifier) GeneralAnswer(ctx context.Context, text string) (string, error) {
	msgs := schema.NewMessages()
	msgs.AddSystem(generalAssistantPrompt)
	msgs.AddUser(text)

	resp, err := c.provider.Chat(ctx, msgs, nil, schema.NewChatOptions(c.model, 1024, 0.3))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Content), nil
}

// attempt performs one classification call. Every failure mode (provider
// error, non-JSON reply, bad category) degrades to unknown with confidence 0.
func (c *Classifier) attempt(ctx context.Context, text, extraContext string) schema.ClassificationResult {
	unknown := schema.ClassificationResult{Category: schema.CategoryUnknown, Confidence: 0}

	msgs := schema.NewMessages()
	msgs.AddSystem(classifierPrompt)
	if extraContext != "" {
		msgs.AddSystem("Context that may disambiguate the message:\n" + extraContext)
	}
	msgs.AddUser(text)

	resp, err := c.provider.Chat(ctx, msgs, nil, schema.NewChatOptions(c.model, 1024, classifyTemperature))
	if err != nil {
		slog.Warn("classification call failed", "err", err)
		return unknown
	}

	raw := extractJSON(resp.Content)
	if raw == "" {
		slog.Warn("classifier returned no JSON", "content", truncate(resp.Content, 120))
		return unknown
	}

	var result schema.ClassificationResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		slog.Warn("classifier returned malformed JSON", "err", err)
		return unknown
	}
	if !result.Category.Valid() {
		slog.Warn("classifier returned unknown category", "category", result.Category)
		return unknown
	}
	if result.Category == schema.CategoryUnknown {
		return unknown
	}
	if result.Mission == "" {
		// A category without a mission is still routable: fall back to
		// the raw text so the agent at least sees the request.
		result.Mission = text
	}
	if result.Confidence < 0 || result.Confidence > 1 {
		result.Confidence = 0.5
	}
	return result
}

// recentExchanges formats the routed-turn log for a classification retry.
func (c *Classifier) recentExchanges() string {
	if c.log == nil {
		return ""
	}
	entries := c.log.Recent(5)
	if len(entries) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Recent exchanges:\n")
	for _, ex := range entries {
		fmt.Fprintf(&b, "- [%s] Q: %s\n  A: %s\n", ex.Category, truncate(ex.Question, 120), truncate(ex.Answer, 120))
	}
	return b.String()
}

// agentMemory formats the tail of each agent's own history.
func (c *Classifier) agentMemory() string {
	if c.sessions == nil {
		return ""
	}
	var b strings.Builder
	for _, cat := range []schema.Category{schema.CategoryWork, schema.CategorySchedule, schema.CategoryStock, schema.CategoryKnowledge} {
		s := c.sessions.ForAgent(cat)
		msgs := s.History(4).Messages
		if len(msgs) == 0 {
			continue
		}
		fmt.Fprintf(&b, "Recent %s agent conversation:\n", cat)
		for _, m := range msgs {
			fmt.Fprintf(&b, "- %s: %s\n", m.Role, truncate(m.Content, 120))
		}
	}
	return b.String()
}

// extractJSON returns the outermost {...} object in s, tolerating prose or
// code fences around it.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
