package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
	"hackathonhub.shikanime.studio/internal/config"
)

// Completer answers prompts with a Gemini generative model.
type Completer struct {
	client *genai.Client
	model  string
}

func NewCompleterForConfig(ctx context.Context, cfg *config.Config) (*Completer, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GetGeminiAPIKey()))
	if err != nil {
		return nil, fmt.Errorf("create gemini client failed: %w", err)
	}
	return &Completer{client: client, model: cfg.GetGeminiModel()}, nil
}

func (c *Completer) Complete(ctx context.Context, prompt string) (string, error) {
	m := c.client.GenerativeModel(c.model)
	m.SetTemperature(0.2)
	resp, err := m.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generate failed: %w", err)
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		var b strings.Builder
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
		return b.String(), nil
	}
	return "", nil
}

func (c *Completer) Close() error { return c.client.Close() }
