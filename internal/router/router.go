package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lessonmate/lessonmate/internal/agents"
	"github.com/lessonmate/lessonmate/internal/bus"
	"github.com/lessonmate/lessonmate/internal/mcp"
	"github.com/lessonmate/lessonmate/internal/schema"
	"github.com/lessonmate/lessonmate/internal/session"
)

// unknownAnswer is the reply of last resort, after classification and both
// context retries came up empty.
const unknownAnswer = "I'm not sure what you're asking for. I can help with your teaching " +
	"calendar, lesson payments, stock prices, or general questions - try rephrasing."

// TurnResult is what one routed turn produced.
type TurnResult struct {
	Answer         string
	Classification schema.ClassificationResult
}

// Router drives one user turn end to end: classify, dispatch, answer,
// while emitting progress events for whichever front end is listening.
type Router struct {
	classifier *Classifier
	registry   *agents.Registry
	emitter    bus.Emitter
	log        *session.ExchangeLog

	turnLocks sync.Map // sessionID → *sync.Mutex
}

func New(classifier *Classifier, registry *agents.Registry, emitter bus.Emitter, log *session.ExchangeLog) *Router {
	if emitter == nil {
		emitter = bus.NopEmitter{}
	}
	return &Router{classifier: classifier, registry: registry, emitter: emitter, log: log}
}

// HandleTurn processes one message. Turns within the same session run one at
// a time; turns of different sessions are independent.
func (r *Router) HandleTurn(ctx context.Context, sessionID, text string) (TurnResult, error) {
	mu := r.lockFor(sessionID)
	mu.Lock()
	defer mu.Unlock()

	started := time.Now()
	result := r.classifier.Classify(ctx, text)
	slog.Info("turn classified",
		"session", sessionID,
		"category", result.Category,
		"confidence", result.Confidence,
		"took", time.Since(started).Round(time.Millisecond))

	r.emitter.Emit(bus.TurnEvent{
		Type:       bus.EventClassified,
		SessionID:  sessionID,
		Category:   result.Category,
		Confidence: result.Confidence,
		Mission:    result.Mission,
		Timestamp:  time.Now(),
	})

	if result.Category == schema.CategoryUnknown {
		answer, err := r.classifier.GeneralAnswer(ctx, text)
		if err != nil || answer == "" {
			if err != nil {
				slog.Warn("general fallback answer failed", "session", sessionID, "err", err)
			}
			answer = unknownAnswer
		}
		r.finish(sessionID, text, result, answer)
		return TurnResult{Answer: answer, Classification: result}, nil
	}

	agent, ok := r.registry.Get(result.Category)
	if !ok {
		err := fmt.Errorf("no agent registered for category %q", result.Category)
		r.fail(sessionID, result.Category, err)
		return TurnResult{Classification: result}, err
	}

	ctx = bus.WithProgress(ctx, func(note string) {
		r.emitter.Emit(bus.TurnEvent{
			Type:      bus.EventProgress,
			SessionID: sessionID,
			Category:  result.Category,
			Text:      note,
			Timestamp: time.Now(),
		})
	})

	answer, err := agent.Solve(ctx, result.Mission)
	if err != nil {
		r.fail(sessionID, result.Category, err)
		return TurnResult{Classification: result}, fmt.Errorf("dispatch %s: %w", result.Category, err)
	}

	r.finish(sessionID, text, result, answer)
	return TurnResult{Answer: answer, Classification: result}, nil
}

func (r *Router) finish(sessionID, question string, result schema.ClassificationResult, answer string) {
	if r.log != nil {
		if err := r.log.Record(session.Exchange{
			Question:   question,
			Answer:     answer,
			Category:   string(result.Category),
			Confidence: result.Confidence,
			Mission:    result.Mission,
		}); err != nil {
			slog.Warn("exchange log write failed", "err", err)
		}
	}
	r.emitter.Emit(bus.TurnEvent{
		Type:      bus.EventAnswer,
		SessionID: sessionID,
		Category:  result.Category,
		Text:      answer,
		Timestamp: time.Now(),
	})
}

func (r *Router) fail(sessionID string, category schema.Category, err error) {
	slog.Error("turn failed", "session", sessionID, "err", err)
	r.emitter.Emit(bus.TurnEvent{
		Type:      bus.EventError,
		SessionID: sessionID,
		Category:  category,
		Text:      friendlyError(err),
		Timestamp: time.Now(),
	})
}

func (r *Router) lockFor(sessionID string) *sync.Mutex {
	v, _ := r.turnLocks.LoadOrStore(sessionID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// friendlyError maps internal failures to something a chat user can act on.
func friendlyError(err error) string {
	switch {
	case errors.Is(err, mcp.ErrStartup):
		return "A tool provider failed to start, so I can't do that right now."
	case errors.Is(err, mcp.ErrUnavailable):
		return "A tool provider stopped responding mid-task. Please try again."
	case errors.Is(err, agents.ErrDepthExceeded):
		return "That request needed agents to call each other too deeply, which isn't allowed."
	case errors.Is(err, context.DeadlineExceeded):
		return "That took too long and was cut off. Please try again."
	default:
		return "Something went wrong handling that request."
	}
}
