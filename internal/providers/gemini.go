package providers

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/genai"

	"github.com/lessonmate/lessonmate/internal/schema"
)

// Gemini calls the Gemini API through the official SDK.
type Gemini struct {
	client       *genai.Client
	defaultModel string
}

// NewGemini constructs a Gemini provider.
func NewGemini(ctx context.Context, apiKey, defaultModel string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Gemini{client: client, defaultModel: defaultModel}, nil
}

func (p *Gemini) DefaultModel() string { return p.defaultModel }

// Chat implements schema.LLMProvider.
func (p *Gemini) Chat(ctx context.Context, messages schema.Messages, tools []map[string]any, opts schema.ChatOptions) (schema.LLMResponse, error) {
	model := opts.Model
	if model == "" {
		model = p.defaultModel
	}

	contents, system := convertMessages(messages)
	temperature := float32(opts.Temperature)
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: system,
		Temperature:       &temperature,
		Tools:             convertTools(tools),
	}
	if opts.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(opts.MaxTokens)
	}

	resp, err := p.client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return schema.LLMResponse{}, fmt.Errorf("gemini generate: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return schema.LLMResponse{}, fmt.Errorf("gemini returned no candidates")
	}

	candidate := resp.Candidates[0]
	out := schema.LLMResponse{FinishReason: string(candidate.FinishReason)}
	for i, part := range candidate.Content.Parts {
		if part.Text != "" && !part.Thought {
			out.Content += part.Text
		}
		if part.FunctionCall != nil {
			out.ToolCalls = append(out.ToolCalls, schema.ToolCallRequest{
				ID:        fmt.Sprintf("call_%d", i),
				Name:      part.FunctionCall.Name,
				Arguments: part.FunctionCall.Args,
			})
		}
	}
	return out, nil
}

// convertMessages maps typed messages to GenAI contents. System messages
// become the system instruction; tool results ride as function responses in
// a user turn, which is how Gemini expects them.
func convertMessages(messages schema.Messages) ([]*genai.Content, *genai.Content) {
	var contents []*genai.Content
	var system *genai.Content

	for _, msg := range messages.Messages {
		switch msg.Role {
		case "system":
			if msg.Content == "" {
				continue
			}
			if system == nil {
				system = &genai.Content{}
			}
			system.Parts = append(system.Parts, &genai.Part{Text: msg.Content})

		case "tool":
			contents = append(contents, &genai.Content{
				Role: "user",
				Parts: []*genai.Part{{
					FunctionResponse: &genai.FunctionResponse{
						Name:     msg.ToolName,
						Response: map[string]any{"result": msg.Content},
					},
				}},
			})

		case "assistant":
			var parts []*genai.Part
			for _, tc := range msg.ToolCalls {
				parts = append(parts, &genai.Part{
					FunctionCall: &genai.FunctionCall{Name: tc.Name, Args: tc.Arguments},
				})
			}
			if msg.Content != "" {
				parts = append(parts, &genai.Part{Text: msg.Content})
			}
			if len(parts) > 0 {
				contents = append(contents, &genai.Content{Role: "model", Parts: parts})
			}

		default:
			if msg.Content == "" {
				continue
			}
			contents = append(contents, &genai.Content{
				Role:  "user",
				Parts: []*genai.Part{{Text: msg.Content}},
			})
		}
	}
	return contents, system
}

// convertTools maps OpenAI-format function definitions to GenAI declarations.
func convertTools(tools []map[string]any) []*genai.Tool {
	var decls []*genai.FunctionDeclaration
	for _, t := range tools {
		fn, ok := t["function"].(map[string]any)
		if !ok {
			continue
		}
		name, _ := fn["name"].(string)
		if name == "" {
			continue
		}
		description, _ := fn["description"].(string)
		decl := &genai.FunctionDeclaration{Name: name, Description: description}
		if params, ok := fn["parameters"].(map[string]any); ok {
			raw, _ := json.Marshal(params)
			var s genai.Schema
			if json.Unmarshal(raw, &s) == nil {
				decl.Parameters = &s
			}
		}
		decls = append(decls, decl)
	}
	if len(decls) == 0 {
		return nil
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}
