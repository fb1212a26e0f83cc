// Package agent provides best-effort enrichment of hackathon records:
// description synthesis for a listing URL and tag inference for a
// description. Every failure degrades to an empty value.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
	"hackathonhub.shikanime.studio/internal/metrics"
	"hackathonhub.shikanime.studio/internal/normalize"
)

// Enricher is consumed by provider parsers. Implementations never fail:
// errors surface as "" or an empty slice.
type Enricher interface {
	Describe(ctx context.Context, url string) string
	InferTags(ctx context.Context, description string) []string
}

// Completer answers a single prompt with text.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// PageReader returns the readable text of a web page.
type PageReader interface {
	ReadText(ctx context.Context, url string) (string, error)
}

const (
	describePrompt = "Write a concise markdown description (at most 120 words) of the hackathon listed at %s. " +
		"Cover its theme, who can join and what participants build. Do not invent prizes or dates. " +
		"Answer with the description only."
	describePagePrompt = "\n\nListing page content:\n%s"
	tagsPrompt         = "Return up to 5 short lowercase tags (technologies or themes) for this hackathon " +
		"as a JSON array of strings inside a ```json fenced block. No other text.\n\nDescription:\n%s"
)

// Agent implements Enricher on top of a Completer.
type Agent struct {
	c       Completer
	pages   PageReader
	l       *rate.Limiter
	m       *metrics.Metrics
	timeout time.Duration
}

type Options struct {
	pages   PageReader
	limiter *rate.Limiter
	metrics *metrics.Metrics
	timeout time.Duration
}

type Option func(*Options)

// WithPageReader feeds the listing page text into description prompts.
func WithPageReader(r PageReader) Option { return func(o *Options) { o.pages = r } }

func WithLimiter(l *rate.Limiter) Option { return func(o *Options) { o.limiter = l } }

func WithMetrics(m *metrics.Metrics) Option { return func(o *Options) { o.metrics = m } }

// WithTimeout bounds every enrichment call, page read included.
func WithTimeout(d time.Duration) Option { return func(o *Options) { o.timeout = d } }

// New constructs an Agent using c for completions.
func New(c Completer, opts ...Option) *Agent {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	return &Agent{c: c, pages: o.pages, l: o.limiter, m: o.metrics, timeout: o.timeout}
}

// Describe synthesizes a description for the listing at url.
func (a *Agent) Describe(ctx context.Context, url string) string {
	tracer := otel.Tracer("hackathonhub/agent")
	ctx, span := tracer.Start(ctx, "Agent.Describe")
	span.SetAttributes(attribute.String("url", url))
	defer span.End()
	if strings.TrimSpace(url) == "" {
		return ""
	}
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	prompt := fmt.Sprintf(describePrompt, url)
	if a.pages != nil {
		text, err := a.pages.ReadText(ctx, url)
		if err != nil {
			slog.DebugContext(ctx, "listing page unavailable", "url", url, "error", err)
		} else if text != "" {
			prompt += fmt.Sprintf(describePagePrompt, text)
		}
	}
	out, err := a.complete(ctx, prompt)
	if err != nil {
		a.m.ObserveEnrichment("describe", "failed")
		slog.WarnContext(ctx, "describe failed", "url", url, "error", err)
		return ""
	}
	out = strings.TrimSpace(out)
	if out == "" {
		a.m.ObserveEnrichment("describe", "empty")
		return ""
	}
	a.m.ObserveEnrichment("describe", "ok")
	return out
}

// InferTags asks for tags describing description. An empty description
// is not sent.
func (a *Agent) InferTags(ctx context.Context, description string) []string {
	tracer := otel.Tracer("hackathonhub/agent")
	ctx, span := tracer.Start(ctx, "Agent.InferTags")
	span.SetAttributes(attribute.Int("description_len", len(description)))
	defer span.End()
	if strings.TrimSpace(description) == "" {
		return []string{}
	}
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	out, err := a.complete(ctx, fmt.Sprintf(tagsPrompt, description))
	if err != nil {
		a.m.ObserveEnrichment("tags", "failed")
		slog.WarnContext(ctx, "tag inference failed", "error", err)
		return []string{}
	}
	tags := normalize.StringArray(out)
	if len(tags) == 0 {
		a.m.ObserveEnrichment("tags", "empty")
		slog.DebugContext(ctx, "tag inference returned no usable tags", "response_len", len(out))
		return tags
	}
	a.m.ObserveEnrichment("tags", "ok")
	return tags
}

func (a *Agent) complete(ctx context.Context, prompt string) (string, error) {
	if a.c == nil {
		return "", fmt.Errorf("no completion backend configured")
	}
	if a.l != nil {
		if err := a.l.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limiter wait failed: %w", err)
		}
	}
	return a.c.Complete(ctx, prompt)
}

func (a *Agent) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.timeout)
}

// Noop is an Enricher that knows nothing.
type Noop struct{}

func (Noop) Describe(context.Context, string) string    { return "" }
func (Noop) InferTags(context.Context, string) []string { return []string{} }
