// Package gateway exposes the router over HTTP: a JSON chat endpoint for
// one-shot turns and a websocket feed that streams turn events as they
// happen.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"

	"github.com/lessonmate/lessonmate/internal/bus"
	"github.com/lessonmate/lessonmate/internal/router"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // decoupled UI, any origin
	},
}

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
}

// ChatResponse is the reply for POST /api/chat.
type ChatResponse struct {
	Answer     string  `json:"answer"`
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason,omitempty"`
	Mission    string  `json:"mission,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Server serves the HTTP API and the websocket event feed.
type Server struct {
	router      *router.Router
	broadcaster *bus.Broadcaster
	port        int

	mu   sync.Mutex
	http *http.Server
}

func New(rt *router.Router, broadcaster *bus.Broadcaster, port int) *Server {
	return &Server{router: rt, broadcaster: broadcaster, port: port}
}

// Handler builds the route table. Exposed so tests can mount it on an
// httptest server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/chat", s.handleChat)
	mux.HandleFunc("/ws", s.handleWS)
	return mux
}

// Start begins listening in the background. It returns once the server is
// launched; serve errors are logged.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.http != nil {
		return fmt.Errorf("gateway already started")
	}
	s.http = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: s.Handler(),
	}
	slog.Info("gateway listening", "port", s.port)
	go func() {
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("gateway server error", "err", err)
		}
	}()
	return nil
}

// Stop shuts the server down, waiting up to five seconds for in-flight
// requests.
func (s *Server) Stop() error {
	s.mu.Lock()
	srv := s.http
	s.http = nil
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "POST required"})
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}
	if req.Text == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "text is required"})
		return
	}
	if req.SessionID == "" {
		req.SessionID = "web"
	}

	result, err := s.router.HandleTurn(r.Context(), req.SessionID, req.Text)
	if err != nil {
		slog.Error("chat turn failed", "session", req.SessionID, "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{
		Answer:     result.Answer,
		Category:   string(result.Classification.Category),
		Confidence: result.Classification.Confidence,
		Reason:     result.Classification.Reason,
		Mission:    result.Classification.Mission,
	})
}

// handleWS streams turn events to the client until it disconnects.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	events, cancel := s.broadcaster.Subscribe()
	defer cancel()

	// Tell the client it is subscribed; events emitted after this frame are
	// guaranteed to be delivered (buffer permitting).
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ready"}`)); err != nil {
		return
	}

	// Reads are discarded but drive close detection.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				slog.Error("marshal turn event", "err", err)
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-closed:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("write response", "err", err)
	}
}
