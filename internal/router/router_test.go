package router

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/lessonmate/lessonmate/internal/agents"
	"github.com/lessonmate/lessonmate/internal/bus"
	"github.com/lessonmate/lessonmate/internal/mcp"
	"github.com/lessonmate/lessonmate/internal/schema"
	"github.com/lessonmate/lessonmate/internal/session"
)

type recordingAgent struct {
	name    schema.Category
	answer  string
	err     error
	mission string
}

func (a *recordingAgent) Name() schema.Category { return a.name }
func (a *recordingAgent) Solve(_ context.Context, mission string) (string, error) {
	a.mission = mission
	return a.answer, a.err
}

type eventSink struct {
	mu     sync.Mutex
	events []bus.TurnEvent
}

func (s *eventSink) Emit(ev bus.TurnEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *eventSink) types() []bus.EventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]bus.EventType, len(s.events))
	for i, ev := range s.events {
		out[i] = ev.Type
	}
	return out
}

func newRouter(t *testing.T, provider schema.LLMProvider, agent schema.Agent) (*Router, *eventSink, *session.ExchangeLog) {
	t.Helper()
	log := session.NewExchangeLog(t.TempDir())
	reg := agents.NewRegistry()
	if agent != nil {
		reg.Add(agent)
	}
	sink := &eventSink{}
	return New(NewClassifier(provider, "", log, nil), reg, sink, log), sink, log
}

func TestHandleTurn_DispatchesMission(t *testing.T) {
	p := &scriptedProvider{contents: []string{
		`{"category":"work","confidence":0.9,"reason":"r","mission":"Check Noam's August payments."}`,
	}}
	agent := &recordingAgent{name: schema.CategoryWork, answer: "Noam paid for all of August."}
	r, sink, log := newRouter(t, p, agent)

	res, err := r.HandleTurn(context.Background(), "cli", "נועם שילם?")
	if err != nil {
		t.Fatalf("HandleTurn failed: %v", err)
	}
	if res.Answer != "Noam paid for all of August." {
		t.Errorf("answer = %q", res.Answer)
	}
	if agent.mission != "Check Noam's August payments." {
		t.Errorf("agent saw mission %q, not the raw text", agent.mission)
	}

	types := sink.types()
	if len(types) != 2 || types[0] != bus.EventClassified || types[1] != bus.EventAnswer {
		t.Errorf("event sequence = %v", types)
	}
	sink.mu.Lock()
	answerEv := sink.events[1]
	sink.mu.Unlock()
	if answerEv.Category != schema.CategoryWork {
		t.Errorf("answer event category = %q", answerEv.Category)
	}

	entries := log.Recent(0)
	if len(entries) != 1 || entries[0].Category != "work" || entries[0].Question != "נועם שילם?" {
		t.Errorf("exchange log = %+v", entries)
	}
}

func TestHandleTurn_UnknownGetsGeneralAnswer(t *testing.T) {
	p := &scriptedProvider{contents: []string{
		`{"category":"unknown","confidence":0}`,
		"I can still try to help with that directly.",
	}}
	r, sink, _ := newRouter(t, p, nil)

	res, err := r.HandleTurn(context.Background(), "cli", "asdfgh")
	if err != nil {
		t.Fatalf("unknown must not be an error: %v", err)
	}
	if res.Answer != "I can still try to help with that directly." {
		t.Errorf("answer = %q", res.Answer)
	}
	if res.Classification.Category != schema.CategoryUnknown || res.Classification.Confidence != 0 {
		t.Errorf("classification = %+v", res.Classification)
	}
	types := sink.types()
	if len(types) != 2 || types[1] != bus.EventAnswer {
		t.Errorf("events = %v", types)
	}
}

func TestHandleTurn_UnknownFallsBackToCannedAnswer(t *testing.T) {
	// The provider fails outright, so both classification and the general
	// fallback degrade; the turn must still produce an answer.
	p := &scriptedProvider{err: errors.New("provider down")}
	r, _, _ := newRouter(t, p, nil)

	res, err := r.HandleTurn(context.Background(), "cli", "asdfgh")
	if err != nil {
		t.Fatalf("HandleTurn failed: %v", err)
	}
	if res.Answer != unknownAnswer {
		t.Errorf("answer = %q", res.Answer)
	}
}

func TestHandleTurn_AgentFailureEmitsErrorEvent(t *testing.T) {
	p := &scriptedProvider{contents: []string{
		`{"category":"stock","confidence":0.9,"reason":"r","mission":"Get AAPL."}`,
	}}
	agent := &recordingAgent{
		name: schema.CategoryStock,
		err:  mcp.ErrStartup,
	}
	r, sink, log := newRouter(t, p, agent)

	_, err := r.HandleTurn(context.Background(), "cli", "AAPL?")
	if !errors.Is(err, mcp.ErrStartup) {
		t.Fatalf("expected wrapped ErrStartup, got %v", err)
	}

	types := sink.types()
	if len(types) != 2 || types[1] != bus.EventError {
		t.Fatalf("events = %v", types)
	}
	sink.mu.Lock()
	errEv := sink.events[1]
	sink.mu.Unlock()
	if !strings.Contains(errEv.Text, "failed to start") {
		t.Errorf("error event text = %q", errEv.Text)
	}
	if errEv.Category != schema.CategoryStock {
		t.Errorf("error event category = %q", errEv.Category)
	}
	if len(log.Recent(0)) != 0 {
		t.Error("failed turns must not be logged as exchanges")
	}
}

func TestHandleTurn_MissingAgent(t *testing.T) {
	p := &scriptedProvider{contents: []string{
		`{"category":"schedule","confidence":0.9,"reason":"r","mission":"List today."}`,
	}}
	r, sink, _ := newRouter(t, p, nil)

	if _, err := r.HandleTurn(context.Background(), "cli", "מה יש לי היום?"); err == nil {
		t.Fatal("expected error for unregistered category")
	}
	if types := sink.types(); types[len(types)-1] != bus.EventError {
		t.Errorf("events = %v", types)
	}
}

type progressAgent struct {
	name  schema.Category
	notes []string
}

func (a *progressAgent) Name() schema.Category { return a.name }
func (a *progressAgent) Solve(ctx context.Context, _ string) (string, error) {
	if report := bus.ProgressFromContext(ctx); report != nil {
		for _, note := range a.notes {
			report(note)
		}
	}
	return "done", nil
}

func TestHandleTurn_ProgressEventsBetweenClassifiedAndAnswer(t *testing.T) {
	p := &scriptedProvider{contents: []string{
		`{"category":"work","confidence":0.9,"reason":"r","mission":"m"}`,
	}}
	agent := &progressAgent{name: schema.CategoryWork, notes: []string{"using read_lessons"}}
	r, sink, _ := newRouter(t, p, agent)

	if _, err := r.HandleTurn(context.Background(), "cli", "payments?"); err != nil {
		t.Fatalf("HandleTurn failed: %v", err)
	}

	types := sink.types()
	want := []bus.EventType{bus.EventClassified, bus.EventProgress, bus.EventAnswer}
	if len(types) != len(want) {
		t.Fatalf("events = %v", types)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("events = %v", types)
		}
	}
	sink.mu.Lock()
	progressEv := sink.events[1]
	sink.mu.Unlock()
	if progressEv.Text != "using read_lessons" || progressEv.Category != schema.CategoryWork {
		t.Errorf("progress event = %+v", progressEv)
	}
}

func TestHandleTurn_SessionsSerializeIndependently(t *testing.T) {
	p := &scriptedProvider{contents: []string{
		`{"category":"knowledge","confidence":0.9,"reason":"r","mission":"m"}`,
	}}
	block := make(chan struct{})
	slow := &blockingAgent{name: schema.CategoryKnowledge, release: block, entered: make(chan struct{}, 2)}
	r, _, _ := newRouter(t, p, slow)

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.HandleTurn(context.Background(), "a", "q") //nolint:errcheck
	}()

	// Same session must wait; a different session must not.
	<-slow.entered
	other := make(chan struct{})
	go func() {
		defer close(other)
		r.HandleTurn(context.Background(), "b", "q") //nolint:errcheck
	}()
	<-slow.entered

	close(block)
	<-done
	<-other
}

type blockingAgent struct {
	name    schema.Category
	release chan struct{}
	entered chan struct{}
}

func (a *blockingAgent) Name() schema.Category { return a.name }
func (a *blockingAgent) Solve(context.Context, string) (string, error) {
	a.entered <- struct{}{}
	<-a.release
	return "ok", nil
}
