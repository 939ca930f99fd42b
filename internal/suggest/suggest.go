// Package suggest proposes existing tags for an untagged task using the
// Claude API. Suggestions are advisory; the caller decides whether to apply
// them.
package suggest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/k-iizuka000/ai-todo-sub002/internal/types"
)

// Suggestion is one proposed tag with the model's reasoning.
type Suggestion struct {
	TagID  string `json:"tag_id"`
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// Suggester proposes tags for a task. The interface exists so the CLI can be
// tested without network access.
type Suggester interface {
	SuggestTags(ctx context.Context, task *types.Task, available []*types.Tag, limit int) ([]Suggestion, error)
}

// Client is the Claude-backed Suggester.
type Client struct {
	inner anthropic.Client
	model anthropic.Model
}

// NewClient creates a Claude client. The API key defaults to the
// ANTHROPIC_API_KEY environment variable.
func NewClient(apiKey, model string) (*Client, error) {
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
	}

	m := anthropic.ModelClaudeSonnet4_5
	if model != "" {
		m = anthropic.Model(model)
	}
	return &Client{
		inner: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model: m,
	}, nil
}

const suggestPrompt = `You are helping organize a personal task manager. Given one task and the list of tags that already exist, pick the tags that fit the task best.

Rules:
- Only use tag ids from the provided list. Never invent new tags.
- Suggest at most %d tags; fewer is fine, zero is fine if nothing fits.
- Prefer precision over coverage.

Return your answer as JSON with this exact structure:
{
  "suggestions": [
    {"tag_id": "<id from the list>", "name": "<tag name>", "reason": "<short explanation>"}
  ]
}

Return ONLY the JSON object. No markdown fences, no commentary outside the JSON.
`

type promptPayload struct {
	Task struct {
		Title       string `json:"title"`
		Description string `json:"description,omitempty"`
		Priority    string `json:"priority"`
	} `json:"task"`
	Tags []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"tags"`
}

func buildPrompt(task *types.Task, available []*types.Tag, limit int) (string, error) {
	var payload promptPayload
	payload.Task.Title = task.Title
	payload.Task.Description = task.Description
	payload.Task.Priority = string(task.Priority)
	for _, tg := range available {
		payload.Tags = append(payload.Tags, struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		}{ID: tg.ID, Name: tg.Name})
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal prompt payload: %w", err)
	}
	return fmt.Sprintf(suggestPrompt, limit) + "\n" + string(data), nil
}

// SuggestTags asks the model for up to limit tags from the available set.
func (c *Client) SuggestTags(ctx context.Context, task *types.Task, available []*types.Tag, limit int) ([]Suggestion, error) {
	if task == nil {
		return nil, fmt.Errorf("task must not be nil")
	}
	if len(available) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 3
	}

	prompt, err := buildPrompt(task, available, limit)
	if err != nil {
		return nil, err
	}

	resp, err := c.inner.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: int64(1024),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("claude API call: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	return parseSuggestions(text, available, limit)
}

// parseSuggestions decodes the model's answer and drops anything that does
// not name a known tag.
func parseSuggestions(text string, available []*types.Tag, limit int) ([]Suggestion, error) {
	text = stripJSONFences(text)

	var result struct {
		Suggestions []Suggestion `json:"suggestions"`
	}
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return nil, fmt.Errorf("parse claude response: %w\nraw: %s", err, text)
	}

	known := make(map[string]bool, len(available))
	for _, tg := range available {
		known[tg.ID] = true
	}

	var out []Suggestion
	for _, s := range result.Suggestions {
		if !known[s.TagID] {
			continue
		}
		out = append(out, s)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// stripJSONFences removes markdown code fences that the model sometimes adds.
func stripJSONFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx >= 0 {
			s = s[idx+1:]
		}
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}
	return s
}
