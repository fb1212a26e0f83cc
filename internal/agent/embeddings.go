package agent

import (
	"context"
	"log/slog"
	"strings"

	sdk "github.com/openai/openai-go/v3"
	"golang.org/x/time/rate"
	"hackathonhub.shikanime.studio/internal/agent/openai"
	"hackathonhub.shikanime.studio/internal/config"
	"hackathonhub.shikanime.studio/internal/encoding"
	"hackathonhub.shikanime.studio/internal/hackathon"
)

// embeddingInputLen caps the text sent per record.
const embeddingInputLen = 2000

// Embeddings generates vector embeddings for hackathons using an OpenAI client.
type Embeddings struct {
	c     *sdk.Client
	model string
	l     *rate.Limiter
}

type EmbeddingsOptions struct{ limiter *rate.Limiter }
type EmbeddingsOption func(*EmbeddingsOptions)

func WithEmbeddingsLimiter(l *rate.Limiter) EmbeddingsOption {
	return func(o *EmbeddingsOptions) { o.limiter = l }
}

// NewEmbeddingsForConfig constructs Embeddings with a client built from cfg.
func NewEmbeddingsForConfig(cfg *config.Config, opts ...EmbeddingsOption) *Embeddings {
	return NewEmbeddingsWithOpenAI(cfg, openai.NewClientForConfig(cfg), opts...)
}

// NewEmbeddingsWithOpenAI constructs Embeddings by using the provided OpenAI client.
func NewEmbeddingsWithOpenAI(cfg *config.Config, c *sdk.Client, opts ...EmbeddingsOption) *Embeddings {
	var o EmbeddingsOptions
	for _, opt := range opts {
		opt(&o)
	}
	e := &Embeddings{c: c, model: cfg.GetEmbeddingModel(), l: o.limiter}
	slog.Debug("embeddings configured", "model", e.model, "limiter", e.l != nil)
	return e
}

// EmbeddingText is the text embedded for a record: title, tags and the
// description rendered from markdown to plain text.
func EmbeddingText(r hackathon.Record) string {
	parts := []string{r.Title}
	if len(r.Tags) > 0 {
		parts = append(parts, strings.Join(r.Tags, ", "))
	}
	if d := encoding.PlainText([]byte(r.Description), encoding.WithoutCode()); d != "" {
		parts = append(parts, d)
	}
	text := strings.Join(parts, ". ")
	if r := []rune(text); len(r) > embeddingInputLen {
		text = string(r[:embeddingInputLen])
	}
	return text
}

// EmbedRecords returns one embedding per record, in order.
func (e *Embeddings) EmbedRecords(ctx context.Context, records []hackathon.Record) ([][]float32, error) {
	texts := make([]string, len(records))
	for i := range records {
		texts[i] = EmbeddingText(records[i])
	}
	return e.EmbedTexts(ctx, texts)
}

// EmbedTexts returns one embedding per input text, in order.
func (e *Embeddings) EmbedTexts(ctx context.Context, inputs []string) ([][]float32, error) {
	out := make([][]float32, len(inputs))
	for i := range inputs {
		if e.l != nil {
			if err := e.l.Wait(ctx); err != nil {
				return nil, err
			}
		}
		slog.DebugContext(ctx, "embedding request", "index", i, "model", e.model, "input_len", len(inputs[i]))
		res, err := e.c.Embeddings.New(ctx, sdk.EmbeddingNewParams{
			Input: sdk.EmbeddingNewParamsInputUnion{
				OfString: sdk.String(inputs[i]),
			},
			Model: sdk.EmbeddingModel(e.model),
		})
		if err != nil {
			return nil, err
		}
		v := make([]float32, len(res.Data[0].Embedding))
		for j := range v {
			v[j] = float32(res.Data[0].Embedding[j])
		}
		out[i] = v
		slog.DebugContext(ctx, "embedding response", "index", i, "dim", len(v))
	}
	return out, nil
}
