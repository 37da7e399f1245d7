package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/lessonmate/lessonmate/internal/schema"
)

// QueryScheduleTool lets the work agent ask the schedule agent a question
// mid-turn, e.g. to find which lessons actually happened before settling
// payments.
type QueryScheduleTool struct {
	invoker schema.CrossAgentInvoker
}

func NewQueryScheduleTool(invoker schema.CrossAgentInvoker) *QueryScheduleTool {
	return &QueryScheduleTool{invoker: invoker}
}

func (t *QueryScheduleTool) Name() string { return "query_schedule" }
func (t *QueryScheduleTool) Description() string {
	return "Ask the schedule agent about calendar events or lessons. " +
		"Phrase the question so it can be answered without further context."
}

func (t *QueryScheduleTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"question": {
				"type": "string",
				"description": "A self-contained question about the calendar, e.g. 'Which lessons took place last week?'"
			}
		},
		"required": ["question"]
	}`)
}

func (t *QueryScheduleTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	question, _ := args["question"].(string)
	if question == "" {
		return "Error: question is required", nil
	}

	answer, err := t.invoker.Invoke(ctx, schema.CategorySchedule, question)
	if err != nil {
		slog.Warn("schedule delegation failed", "err", err)
		return "", fmt.Errorf("ask schedule agent: %w", err)
	}
	return answer, nil
}

var _ schema.Tool = (*QueryScheduleTool)(nil)
