package agents

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/lessonmate/lessonmate/internal/bus"
	"github.com/lessonmate/lessonmate/internal/mcp"
	"github.com/lessonmate/lessonmate/internal/schema"
	"github.com/lessonmate/lessonmate/internal/session"
)

func newSessions(t *testing.T) *session.Manager {
	t.Helper()
	m, err := session.NewManager(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestBaseAgent_SolveRecordsHistory(t *testing.T) {
	p := &fakeProvider{responses: []schema.LLMResponse{{Content: "42"}}}
	sessions := newSessions(t)
	a := NewKnowledgeAgent(p, settings(10), sessions)

	answer, err := a.Solve(context.Background(), "what is the answer?")
	if err != nil {
		t.Fatalf("Solve failed: %v", err)
	}
	if answer != "42" {
		t.Errorf("answer = %q", answer)
	}

	s := sessions.ForAgent(schema.CategoryKnowledge)
	if s.Len() != 2 {
		t.Fatalf("history has %d messages", s.Len())
	}
	msgs := s.History(0).Messages
	if msgs[0].Content != "what is the answer?" || msgs[1].Content != "42" {
		t.Errorf("history = %+v", msgs)
	}
}

func TestBaseAgent_SystemPromptAndHistoryInConversation(t *testing.T) {
	p := &fakeProvider{responses: []schema.LLMResponse{{Content: "a1"}, {Content: "a2"}}}
	sessions := newSessions(t)
	a := NewKnowledgeAgent(p, settings(10), sessions)

	if _, err := a.Solve(context.Background(), "q1"); err != nil {
		t.Fatal(err)
	}
	if _, err := a.Solve(context.Background(), "q2"); err != nil {
		t.Fatal(err)
	}

	msgs := p.lastMsgs.Messages
	if msgs[0].Role != "system" || !strings.Contains(msgs[0].Content, "Today is") {
		t.Errorf("system prompt = %+v", msgs[0])
	}
	// system + (q1, a1) + q2
	if len(msgs) != 4 {
		t.Fatalf("second turn saw %d messages", len(msgs))
	}
	if msgs[1].Content != "q1" || msgs[2].Content != "a1" || msgs[3].Content != "q2" {
		t.Errorf("conversation = %+v", msgs)
	}
}

func TestBaseAgent_SolveReportsToolProgress(t *testing.T) {
	ft := &fakeTool{name: "read_lessons", result: "3 lessons"}
	p := &fakeProvider{responses: []schema.LLMResponse{
		toolCallResponse("read_lessons", map[string]any{"month": "2026-08"}),
		{Content: "you taught 3 lessons"},
	}}
	a := NewKnowledgeAgent(p, settings(10), newSessions(t))
	a.Tools().Add(ft)

	var notes []string
	ctx := bus.WithProgress(context.Background(), func(note string) {
		notes = append(notes, note)
	})
	if _, err := a.Solve(ctx, "how many lessons in August?"); err != nil {
		t.Fatalf("Solve failed: %v", err)
	}
	if len(notes) != 1 || !strings.Contains(notes[0], "read_lessons") {
		t.Errorf("progress notes = %v", notes)
	}
}

func TestBaseAgent_StartupFailureSticks(t *testing.T) {
	bridge := mcp.NewBridgeWithDialer("worktools", func() (mcp.Transport, error) {
		return nil, errors.New("binary not found")
	}, time.Second)
	p := &fakeProvider{}
	a := NewStockAgent(p, settings(10), newSessions(t), bridge)

	for i := 0; i < 2; i++ {
		_, err := a.Solve(context.Background(), "price of AAPL")
		if !errors.Is(err, mcp.ErrStartup) {
			t.Fatalf("attempt %d: expected ErrStartup, got %v", i, err)
		}
	}
	if p.calls != 0 {
		t.Errorf("LLM must not be called when the provider cannot start, saw %d calls", p.calls)
	}
}
