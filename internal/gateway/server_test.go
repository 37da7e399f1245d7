package gateway

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lessonmate/lessonmate/internal/agents"
	"github.com/lessonmate/lessonmate/internal/bus"
	"github.com/lessonmate/lessonmate/internal/router"
	"github.com/lessonmate/lessonmate/internal/schema"
	"github.com/lessonmate/lessonmate/internal/session"
)

type scriptedProvider struct {
	contents []string
	calls    int
}

func (p *scriptedProvider) Chat(ctx context.Context, msgs schema.Messages, tools []map[string]any, opts schema.ChatOptions) (schema.LLMResponse, error) {
	content := p.contents[len(p.contents)-1]
	if p.calls < len(p.contents) {
		content = p.contents[p.calls]
	}
	p.calls++
	return schema.LLMResponse{Content: content, FinishReason: "stop"}, nil
}

func (p *scriptedProvider) DefaultModel() string { return "test-model" }

type echoAgent struct{ name schema.Category }

func (a *echoAgent) Name() schema.Category { return a.name }

func (a *echoAgent) Solve(ctx context.Context, mission string) (string, error) {
	return "answer to: " + mission, nil
}

func newTestServer(t *testing.T, classification string) (*Server, *httptest.Server, *bus.Broadcaster) {
	t.Helper()
	ws := t.TempDir()
	sessions, err := session.NewManager(ws)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	log := session.NewExchangeLog(ws)

	provider := &scriptedProvider{contents: []string{classification}}
	classifier := router.NewClassifier(provider, "", log, sessions)

	registry := agents.NewRegistry()
	registry.Add(&echoAgent{name: schema.CategoryKnowledge})

	broadcaster := bus.NewBroadcaster(8)
	rt := router.New(classifier, registry, broadcaster, log)

	srv := New(rt, broadcaster, 0)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts, broadcaster
}

func postChat(t *testing.T, ts *httptest.Server, body string) (*http.Response, ChatResponse) {
	t.Helper()
	resp, err := http.Post(ts.URL+"/api/chat", "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("POST /api/chat failed: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	var out ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, out
}

func TestGateway_Health(t *testing.T) {
	_, ts, _ := newTestServer(t, `{"category":"knowledge","confidence":0.9,"reason":"r","mission":"m"}`)

	resp, err := http.Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET /api/health failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestGateway_Chat(t *testing.T) {
	_, ts, _ := newTestServer(t,
		`{"category":"knowledge","confidence":0.92,"reason":"general question","mission":"explain interest rates"}`)

	resp, out := postChat(t, ts, `{"session_id":"s1","text":"what are interest rates?"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if out.Category != "knowledge" || out.Confidence != 0.92 {
		t.Errorf("classification = %+v", out)
	}
	if out.Mission != "explain interest rates" {
		t.Errorf("mission = %q", out.Mission)
	}
	if !strings.Contains(out.Answer, "explain interest rates") {
		t.Errorf("answer = %q; agent must receive the mission", out.Answer)
	}
}

func TestGateway_Chat_BadRequests(t *testing.T) {
	_, ts, _ := newTestServer(t, `{"category":"knowledge","confidence":0.9,"reason":"","mission":"m"}`)

	resp, err := http.Post(ts.URL+"/api/chat", "application/json", bytes.NewBufferString(`{not json`))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad JSON status = %d", resp.StatusCode)
	}

	resp, err = http.Post(ts.URL+"/api/chat", "application/json", bytes.NewBufferString(`{"session_id":"s"}`))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("empty text status = %d", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/api/chat")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET status = %d", resp.StatusCode)
	}
}

func TestGateway_WebsocketStreamsTurnEvents(t *testing.T) {
	_, ts, _ := newTestServer(t,
		`{"category":"knowledge","confidence":0.8,"reason":"r","mission":"tell me about bonds"}`)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial failed: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck
	if _, data, err := conn.ReadMessage(); err != nil || !strings.Contains(string(data), "ready") {
		t.Fatalf("expected ready frame, got %q (err %v)", data, err)
	}

	// Run a turn; the subscriber should see classified then answer.
	if _, out := postChat(t, ts, `{"session_id":"s1","text":"bonds?"}`); out.Answer == "" {
		t.Fatal("empty answer")
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck
	var types []string
	for len(types) < 2 {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read event: %v (got %v)", err, types)
		}
		var ev bus.TurnEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			t.Fatalf("unmarshal event: %v", err)
		}
		types = append(types, string(ev.Type))
	}
	if types[0] != string(bus.EventClassified) || types[1] != string(bus.EventAnswer) {
		t.Errorf("event types = %v", types)
	}
}
