// Package channels provides chat front ends that feed user turns into the
// router and deliver answers back.
package channels

import (
	"context"
	"log/slog"
	"strings"

	"github.com/lessonmate/lessonmate/internal/router"
)

// TurnHandler is the slice of the router that channels need.
type TurnHandler interface {
	HandleTurn(ctx context.Context, sessionID, text string) (router.TurnResult, error)
}

// Channel is a running chat front end.
type Channel interface {
	Name() string
	// Start blocks until ctx is cancelled or the channel fails.
	Start(ctx context.Context) error
}

// Base holds common state and helpers shared by all channels.
type Base struct {
	channelName string
	handler     TurnHandler
	allowFrom   []string // empty = allow all
}

func NewBase(name string, handler TurnHandler, allowFrom []string) Base {
	return Base{channelName: name, handler: handler, allowFrom: allowFrom}
}

// IsAllowed checks whether senderID is on the allowlist.
// senderID may be "id|username" (Telegram) or a plain string.
func (b *Base) IsAllowed(senderID string) bool {
	if len(b.allowFrom) == 0 {
		return true
	}
	for _, allowed := range b.allowFrom {
		if allowed == senderID {
			return true
		}
	}
	if strings.Contains(senderID, "|") {
		for _, part := range strings.Split(senderID, "|") {
			if part == "" {
				continue
			}
			for _, allowed := range b.allowFrom {
				if allowed == part {
					return true
				}
			}
		}
	}
	return false
}

// HandleTurn verifies the sender, runs the turn, and returns the answer.
// A denied sender gets an empty answer and ok=false.
func (b *Base) HandleTurn(ctx context.Context, sessionID, senderID, text string) (string, bool) {
	if !b.IsAllowed(senderID) {
		slog.Warn("access denied", "channel", b.channelName, "sender", senderID)
		return "", false
	}

	result, err := b.handler.HandleTurn(ctx, sessionID, text)
	if err != nil {
		slog.Error("turn failed", "channel", b.channelName, "session", sessionID, "err", err)
		return "Something went wrong handling that. Please try again.", true
	}
	return result.Answer, true
}

// splitMessage splits content into chunks that fit within maxLen,
// preferring newline breaks, then space breaks, then a hard cut.
func splitMessage(content string, maxLen int) []string {
	if len(content) <= maxLen {
		return []string{content}
	}
	var chunks []string
	for len(content) > 0 {
		if len(content) <= maxLen {
			chunks = append(chunks, content)
			break
		}
		cut := content[:maxLen]
		pos := strings.LastIndex(cut, "\n")
		if pos <= 0 {
			pos = strings.LastIndex(cut, " ")
		}
		if pos <= 0 {
			pos = maxLen
		}
		chunks = append(chunks, content[:pos])
		content = strings.TrimLeft(content[pos:], " \t")
	}
	return chunks
}
