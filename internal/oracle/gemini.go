package oracle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/elena-voice/elena/internal/session"
)

const (
	geminiMaxRetries = 3
	geminiBaseDelay  = 500 * time.Millisecond
	geminiMaxDelay   = 8 * time.Second
)

// GeminiConfig configures the Gemini-backed oracle.
type GeminiConfig struct {
	APIKey       string
	Model        string
	SystemPrompt string
}

// Gemini asks a Gemini model for the next action. The model is pinned to
// JSON output so the structured-action contract holds at the API level.
type Gemini struct {
	client       *genai.Client
	model        string
	systemPrompt string
}

func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("gemini: missing API key")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gemini-2.5-flash"
	}
	return &Gemini{
		client:       client,
		model:        model,
		systemPrompt: cfg.SystemPrompt,
	}, nil
}

func (g *Gemini) Complete(ctx context.Context, history []session.Message) (string, error) {
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	}
	if g.systemPrompt != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: g.systemPrompt}},
		}
	}

	contents := make([]*genai.Content, 0, len(history))
	for _, m := range history {
		role := m.Role
		if role != session.RoleModel {
			role = session.RoleUser
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: m.Text}},
		})
	}

	var resp *genai.GenerateContentResponse
	var err error
	for attempt := 0; attempt < geminiMaxRetries; attempt++ {
		if attempt > 0 {
			delay := backoff(attempt, geminiBaseDelay, geminiMaxDelay)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
		}

		resp, err = g.client.Models.GenerateContent(ctx, g.model, contents, config)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}
	if err != nil {
		return "", fmt.Errorf("gemini: generate: %w", err)
	}

	text := extractText(resp)
	if text == "" {
		return "", fmt.Errorf("gemini: %w: empty candidate text", ErrContract)
	}
	return text, nil
}

func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil {
		return ""
	}
	var out strings.Builder
	for _, part := range candidate.Content.Parts {
		out.WriteString(part.Text)
	}
	return strings.TrimSpace(out.String())
}

func backoff(attempt int, base, cap time.Duration) time.Duration {
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= cap {
			return cap
		}
	}
	return d
}
