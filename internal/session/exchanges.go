package session

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// maxExchangeLog bounds the router exchange log on disk.
const maxExchangeLog = 20

// Exchange is one routed turn: the user's text, where it went, and what came
// back. The router replays recent exchanges when a turn cannot be classified
// on its own.
type Exchange struct {
	Question   string    `json:"question"`
	Answer     string    `json:"answer"`
	Category   string    `json:"category"`
	Confidence float64   `json:"confidence"`
	Mission    string    `json:"mission,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// ExchangeLog persists the rolling window of routed turns.
type ExchangeLog struct {
	path string
	mu   sync.Mutex
}

// NewExchangeLog creates a log stored under the workspace directory.
func NewExchangeLog(workspace string) *ExchangeLog {
	return &ExchangeLog{path: filepath.Join(workspace, "router_exchanges.jsonl")}
}

// Record appends one exchange, trimming the file to the window size.
func (l *ExchangeLog) Record(ex Exchange) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if ex.Timestamp.IsZero() {
		ex.Timestamp = time.Now()
	}
	entries := l.read()
	entries = append(entries, ex)
	if len(entries) > maxExchangeLog {
		entries = entries[len(entries)-maxExchangeLog:]
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for _, e := range entries {
		if err := enc.Encode(e); err != nil {
			return fmt.Errorf("encode exchange: %w", err)
		}
	}
	if err := os.WriteFile(l.path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write exchange log: %w", err)
	}
	return nil
}

// Recent returns the last n exchanges, oldest first. n <= 0 returns the whole
// window.
func (l *ExchangeLog) Recent(n int) []Exchange {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries := l.read()
	if n > 0 && len(entries) > n {
		entries = entries[len(entries)-n:]
	}
	return entries
}

func (l *ExchangeLog) read() []Exchange {
	f, err := os.Open(l.path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var out []Exchange
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var ex Exchange
		if json.Unmarshal(scanner.Bytes(), &ex) != nil {
			continue
		}
		out = append(out, ex)
	}
	return out
}
