package session

import (
	"sync"
	"time"

	"github.com/lessonmate/lessonmate/internal/schema"
)

// Session holds one agent's conversation history. Only final exchanges are
// recorded here; the intermediate tool traffic of a turn stays in the turn.
type Session struct {
	Key       string
	Messages  schema.Messages
	CreatedAt time.Time
	UpdatedAt time.Time

	mu sync.Mutex
}

func newSession(key string, messages schema.Messages, createdAt, updatedAt time.Time) *Session {
	return &Session{
		Key:       key,
		Messages:  messages,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}
}

// AddUser appends a user message.
func (s *Session) AddUser(content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Messages.AddUser(content)
	s.UpdatedAt = time.Now()
}

// AddAssistant appends an assistant answer.
func (s *Session) AddAssistant(content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Messages.AddAssistant(content, nil)
	s.UpdatedAt = time.Now()
}

// AddExchange appends a question/answer pair atomically.
func (s *Session) AddExchange(question, answer string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Messages.AddUser(question)
	s.Messages.AddAssistant(answer, nil)
	s.UpdatedAt = time.Now()
}

// History returns the last maxMessages messages as an independent copy.
// maxMessages <= 0 returns everything.
func (s *Session) History(maxMessages int) schema.Messages {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.Messages.Messages
	if maxMessages > 0 && len(msgs) > maxMessages {
		msgs = msgs[len(msgs)-maxMessages:]
	}
	out := make([]schema.Message, len(msgs))
	copy(out, msgs)
	return schema.Messages{Messages: out}
}

// Len returns the number of stored messages.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Messages.Messages)
}

// Clear drops all stored messages.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Messages = schema.NewMessages()
	s.UpdatedAt = time.Now()
}

func (s *Session) snapshot() (schema.Messages, time.Time, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Messages.Clone(), s.CreatedAt, s.UpdatedAt
}
