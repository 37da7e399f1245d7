// Package session manages per-agent conversation history stored as JSONL
// files under the workspace.
//
// File format:
//
//	Line 1:  {"_type":"metadata","key":"…","created_at":"…","updated_at":"…"}
//	Line 2+: one JSON message object per line
package session

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/lessonmate/lessonmate/internal/schema"
)

// Manager loads and persists sessions as JSONL files.
type Manager struct {
	sessionsDir string   // workspace/sessions/
	cache       sync.Map // key → *Session
}

// NewManager creates a Manager rooted at the workspace directory.
// It creates the sessions subdirectory if necessary.
func NewManager(workspace string) (*Manager, error) {
	dir := filepath.Join(workspace, "sessions")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create sessions dir: %w", err)
	}
	return &Manager{sessionsDir: dir}, nil
}

// ForAgent returns the session holding an agent's conversation history.
func (m *Manager) ForAgent(name schema.Category) *Session {
	return m.GetOrCreate("agent:" + string(name))
}

// GetOrCreate returns the cached session for key, loading from disk if
// needed, or creating an empty new one.
func (m *Manager) GetOrCreate(key string) *Session {
	if v, ok := m.cache.Load(key); ok {
		return v.(*Session)
	}

	s := m.load(key)
	if s == nil {
		now := time.Now()
		s = newSession(key, schema.NewMessages(), now, now)
	}

	actual, _ := m.cache.LoadOrStore(key, s)
	return actual.(*Session)
}

// Save writes the session to disk and updates the cache.
func (m *Manager) Save(s *Session) error {
	msgs, createdAt, updatedAt := s.snapshot()

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false) // preserve non-ASCII student names

	meta := map[string]any{
		"_type":      "metadata",
		"key":        s.Key,
		"created_at": createdAt.UTC().Format(time.RFC3339),
		"updated_at": updatedAt.UTC().Format(time.RFC3339),
	}
	if err := enc.Encode(meta); err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	for _, msg := range msgs.Messages {
		if err := enc.Encode(messageToWire(msg)); err != nil {
			return fmt.Errorf("encode message: %w", err)
		}
	}

	path := m.sessionPath(s.Key)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write session %s: %w", path, err)
	}

	m.cache.Store(s.Key, s)
	return nil
}

// Invalidate removes a session from the in-memory cache.
func (m *Manager) Invalidate(key string) {
	m.cache.Delete(key)
}

func (m *Manager) sessionPath(key string) string {
	safe := strings.ReplaceAll(key, ":", "_")
	return filepath.Join(m.sessionsDir, safe+".jsonl")
}

// load reads a session file from disk. Missing or unreadable files return
// nil; corrupt message lines are skipped rather than failing the load.
func (m *Manager) load(key string) *Session {
	f, err := os.Open(m.sessionPath(key))
	if err != nil {
		return nil
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	createdAt, updatedAt := time.Now(), time.Now()
	if scanner.Scan() {
		var meta struct {
			Type      string `json:"_type"`
			CreatedAt string `json:"created_at"`
			UpdatedAt string `json:"updated_at"`
		}
		if json.Unmarshal(scanner.Bytes(), &meta) == nil && meta.Type == "metadata" {
			if t, err := time.Parse(time.RFC3339, meta.CreatedAt); err == nil {
				createdAt = t
			}
			if t, err := time.Parse(time.RFC3339, meta.UpdatedAt); err == nil {
				updatedAt = t
			}
		}
	}

	msgs := schema.NewMessages()
	for scanner.Scan() {
		var wire wireMessage
		if err := json.Unmarshal(scanner.Bytes(), &wire); err != nil {
			continue
		}
		if msg, ok := wire.toMessage(); ok {
			msgs.Messages = append(msgs.Messages, msg)
		}
	}

	return newSession(key, msgs, createdAt, updatedAt)
}

// ---------------------------------------------------------------------------
// Wire format helpers

// wireMessage is the on-disk JSON representation of a message.
type wireMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content"`
	ToolCalls  []map[string]any `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
	Name       string           `json:"name,omitempty"`
	Timestamp  string           `json:"timestamp"`
}

func messageToWire(msg schema.Message) wireMessage {
	w := wireMessage{
		Role:       msg.Role,
		Content:    msg.Content,
		ToolCallID: msg.ToolCallID,
		Name:       msg.ToolName,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
	for _, tc := range msg.ToolCalls {
		w.ToolCalls = append(w.ToolCalls, tc.ToWireMap())
	}
	return w
}

func (w wireMessage) toMessage() (schema.Message, bool) {
	if w.Role == "" {
		return schema.Message{}, false
	}
	msg := schema.Message{
		Role:       w.Role,
		Content:    w.Content,
		ToolCallID: w.ToolCallID,
		ToolName:   w.Name,
	}
	for _, tc := range w.ToolCalls {
		fn, _ := tc["function"].(map[string]any)
		id, _ := tc["id"].(string)
		name, _ := fn["name"].(string)
		argsStr, _ := fn["arguments"].(string)
		var args map[string]any
		_ = json.Unmarshal([]byte(argsStr), &args)
		msg.ToolCalls = append(msg.ToolCalls, schema.ToolCall{ID: id, Name: name, Arguments: args})
	}
	return msg, true
}
