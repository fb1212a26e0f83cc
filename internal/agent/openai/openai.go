package openai

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	sdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"golang.org/x/time/rate"
	"hackathonhub.shikanime.studio/internal/config"
)

func NewClientForConfig(cfg *config.Config) *sdk.Client {
	c := sdk.NewClient(
		option.WithAPIKey(cfg.GetOpenAIAPIKey()),
		option.WithMaxRetries(3),
		option.WithBaseURL(cfg.GetOpenAIBaseURL()),
	)
	return &c
}

// NewLimiter spreads requestsPerMinute evenly with a small burst.
// A non-positive budget means unlimited.
func NewLimiter(requestsPerMinute int) *rate.Limiter {
	if requestsPerMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := max(requestsPerMinute/12, 1)
	l := rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), burst)
	slog.Info("Created OpenAI rate limiter", "rate", fmt.Sprintf("%d requests/min", requestsPerMinute), "burst", burst)
	return l
}

// Completer answers prompts with chat completions.
type Completer struct {
	c     *sdk.Client
	model string
}

func NewCompleterForConfig(cfg *config.Config) *Completer {
	return NewCompleter(NewClientForConfig(cfg), cfg.GetChatModel())
}

func NewCompleter(c *sdk.Client, model string) *Completer {
	return &Completer{c: c, model: model}
}

// Complete sends prompt as a single user message. Enrichment is best
// effort, so the request is not retried.
func (c *Completer) Complete(ctx context.Context, prompt string) (string, error) {
	res, err := c.c.Chat.Completions.New(
		ctx,
		sdk.ChatCompletionNewParams{
			Model: sdk.ChatModel(c.model),
			Messages: []sdk.ChatCompletionMessageParamUnion{
				sdk.UserMessage(prompt),
			},
			Temperature: sdk.Float(0.2),
		},
		option.WithMaxRetries(0),
	)
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(res.Choices) == 0 {
		return "", nil
	}
	slog.DebugContext(ctx, "chat completion", "model", c.model, "finish_reason", res.Choices[0].FinishReason)
	return res.Choices[0].Message.Content, nil
}
