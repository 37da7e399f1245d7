// Package agents holds the agent implementations behind the router: the
// shared LLM ↔ tool loop, the per-category agents, and the cross-agent
// invoker that lets the work agent consult the schedule.
package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/lessonmate/lessonmate/internal/schema"
	"github.com/lessonmate/lessonmate/internal/tools"
)

// degradedAnswerNudge is appended when the loop bound is reached, forcing a
// final tool-free answer out of whatever was gathered.
const degradedAnswerNudge = "You have used the maximum number of tool calls. " +
	"Answer the mission now using only the information gathered so far, and say which parts are incomplete."

const degradedAnswerFallback = "I ran out of tool calls before finishing. Here is what I know so far: the task was not fully completed."

// LoopRunner executes the LLM ↔ tool iteration loop shared by every agent.
//
// Tool calls inside one iteration run strictly one at a time, in the order
// the model requested them; a later call may depend on a file the previous
// one just wrote.
type LoopRunner struct {
	provider schema.LLMProvider
	settings schema.AgentSettings
}

func NewLoopRunner(provider schema.LLMProvider, settings schema.AgentSettings) LoopRunner {
	return LoopRunner{provider: provider, settings: settings}
}

// Run drives the loop until the model answers without tool calls or the
// iteration bound is hit. A hit bound produces a degraded answer, not an
// error; errors are reserved for provider or tool-channel failures that the
// loop cannot absorb.
func (r *LoopRunner) Run(ctx context.Context, conversation schema.Messages, tls *tools.ToolList, onProgress func(string)) (string, []string, error) {
	var toolsUsed []string
	opts := schema.NewChatOptions(r.settings.Model, r.settings.MaxTokens, r.settings.Temperature)

	for i := 0; i < r.settings.MaxIter; i++ {
		resp, err := r.provider.Chat(ctx, conversation, tls.Definitions(), opts)
		if err != nil {
			return "", toolsUsed, fmt.Errorf("llm call: %w", err)
		}

		if !resp.HasToolCalls() {
			return resp.Content, toolsUsed, nil
		}

		if onProgress != nil {
			onProgress(toolHint(resp.ToolCalls))
		}

		var toolCalls []schema.ToolCall
		for _, tc := range resp.ToolCalls {
			toolCalls = append(toolCalls, schema.ToolCall{ID: tc.ID, Name: tc.Name, Arguments: tc.Arguments})
		}
		conversation.AddAssistant(resp.Content, toolCalls)

		for _, tc := range resp.ToolCalls {
			toolsUsed = append(toolsUsed, tc.Name)
			argsJSON, _ := json.Marshal(tc.Arguments)
			slog.Info("tool call", "name", tc.Name, "args", truncate(string(argsJSON), 200))

			result, err := r.executeOne(ctx, tls, tc)
			if err != nil {
				return "", toolsUsed, err
			}
			conversation.AddToolResult(tc.ID, tc.Name, result)
		}
	}

	slog.Warn("tool loop bound reached", "bound", r.settings.MaxIter)
	conversation.AddUser(degradedAnswerNudge)
	resp, err := r.provider.Chat(ctx, conversation, nil, opts)
	if err != nil || resp.Content == "" {
		return degradedAnswerFallback, toolsUsed, nil
	}
	return resp.Content, toolsUsed, nil
}

// executeOne runs one tool call. A name the model invented gets a synthesized
// error result so the loop can continue; a real execution failure propagates
// and fails the turn.
func (r *LoopRunner) executeOne(ctx context.Context, tls *tools.ToolList, tc schema.ToolCallRequest) (string, error) {
	t := tls.Get(tc.Name)
	if t == nil {
		slog.Warn("model requested unknown tool", "name", tc.Name)
		return fmt.Sprintf("Error: tool %q does not exist. Available tools: %v", tc.Name, tls.Names()), nil
	}
	result, err := t.Execute(ctx, tc.Arguments)
	if err != nil {
		return "", fmt.Errorf("tool %s: %w", tc.Name, err)
	}
	return result, nil
}

func toolHint(calls []schema.ToolCallRequest) string {
	if len(calls) == 1 {
		return "using " + calls[0].Name
	}
	names := make([]string, len(calls))
	for i, tc := range calls {
		names[i] = tc.Name
	}
	return fmt.Sprintf("using %d tools: %v", len(calls), names)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
