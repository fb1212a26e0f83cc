// Package core is the query side of the hub: filtered listings, stats and
// the retrieval context handed to the chat assistant.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"hackathonhub.shikanime.studio/internal/database"
	"hackathonhub.shikanime.studio/internal/hackathon"
	"hackathonhub.shikanime.studio/internal/normalize"
)

const (
	defaultSearchLimit = 10
	maxSearchLimit     = 50
)

// Store is the storage Core reads from.
type Store interface {
	ListHackathons(ctx context.Context, args database.ListHackathonsArgs) ([]hackathon.Record, error)
	CountHackathons(ctx context.Context, args database.ListHackathonsArgs) (int, error)
	GetHackathon(ctx context.Context, externalID string) (hackathon.Record, error)
	CountHackathonsByStatus(ctx context.Context) (map[hackathon.Status]int, error)
	ListPrizes(ctx context.Context) ([]string, error)
	SearchHackathons(ctx context.Context, args database.SearchHackathonsArgs) ([]hackathon.Record, error)
	ListStaledHackathonEmbeddings(ctx context.Context, args database.ListStaledHackathonEmbeddingsArgs) ([]database.StaledHackathonEmbeddingResult, error)
	UpsertHackathonEmbedding(ctx context.Context, args database.UpsertHackathonEmbeddingArgs) error
}

// Embedder vectorizes questions and records for retrieval.
type Embedder interface {
	EmbedTexts(ctx context.Context, inputs []string) ([][]float32, error)
	EmbedRecords(ctx context.Context, records []hackathon.Record) ([][]float32, error)
}

// metadataColumns is the allowlist of chat metadata keys.
var metadataColumns = map[string]string{
	"status":      "h.status",
	"type":        "h.type",
	"organizer":   "h.organizer",
	"location":    "h.location",
	"source":      "h.source_name",
	"source_name": "h.source_name",
	"title":       "h.title",
	"start_date":  "h.start_date",
	"end_date":    "h.end_date",
	"tags":        "h.tags",
}

type Core struct {
	store Store
	emb   Embedder
	where *normalize.WhereBuilder
	now   func() time.Time
}

type Option func(*Core)

// WithEmbedder enables vector ranking in SearchContext and RefreshEmbeddings.
func WithEmbedder(e Embedder) Option { return func(c *Core) { c.emb = e } }

func WithClock(now func() time.Time) Option { return func(c *Core) { c.now = now } }

func NewCoreClient(store Store, opts ...Option) *Core {
	c := &Core{store: store, where: normalize.NewWhereBuilder(metadataColumns), now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Core) today() string { return normalize.Today(c.now()) }

// ListHackathons returns one page of records that have not ended yet and
// the number of matching records before pagination.
func (c *Core) ListHackathons(ctx context.Context, f hackathon.Filters) ([]hackathon.Record, int, error) {
	tracer := otel.Tracer("hackathonhub/core")
	ctx, span := tracer.Start(ctx, "Core.ListHackathons")
	span.SetAttributes(
		attribute.String("search", f.Search),
		attribute.String("status", string(f.Status)),
		attribute.String("type", string(f.Type)),
	)
	defer span.End()
	args := database.ListHackathonsArgs{Filters: f, Today: c.today()}
	records, err := c.store.ListHackathons(ctx, args)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, 0, err
	}
	total, err := c.store.CountHackathons(ctx, args)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, 0, err
	}
	return records, total, nil
}

func (c *Core) GetHackathon(ctx context.Context, id string) (hackathon.Record, error) {
	tracer := otel.Tracer("hackathonhub/core")
	ctx, span := tracer.Start(ctx, "Core.GetHackathon")
	span.SetAttributes(attribute.String("id", id))
	defer span.End()
	return c.store.GetHackathon(ctx, id)
}

// GetStats counts records by status, ongoing covering its synonyms, and
// sums prizes. The prize total is an approximation.
func (c *Core) GetStats(ctx context.Context) (hackathon.Stats, error) {
	tracer := otel.Tracer("hackathonhub/core")
	ctx, span := tracer.Start(ctx, "Core.GetStats")
	defer span.End()
	counts, err := c.store.CountHackathonsByStatus(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return hackathon.Stats{}, err
	}
	prizes, err := c.store.ListPrizes(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return hackathon.Stats{}, err
	}
	var s hackathon.Stats
	for status, n := range counts {
		s.Total += n
		switch {
		case status == hackathon.StatusUpcoming:
			s.Upcoming += n
		case status.IsOngoing():
			s.Ongoing += n
		case status == hackathon.StatusEnded:
			s.Ended += n
		}
	}
	s.TotalPrize = normalize.SumPrizes(prizes)
	return s, nil
}

// FormatPrize renders a prize total for display, e.g. "$3,500".
func FormatPrize(total int64) string {
	return message.NewPrinter(language.English).Sprintf("$%d", total)
}

// SearchContext selects the upcoming and ongoing records relevant to a chat
// question. metadata narrows the rows through the column allowlist; keys
// outside it are ignored. Without an embedder, or when embedding the
// question fails, rows come earliest start first.
func (c *Core) SearchContext(ctx context.Context, question string, metadata map[string]any, limit int) ([]hackathon.Record, error) {
	tracer := otel.Tracer("hackathonhub/core")
	ctx, span := tracer.Start(ctx, "Core.SearchContext")
	span.SetAttributes(attribute.Int("metadata_len", len(metadata)), attribute.Int("limit", limit))
	defer span.End()

	if limit <= 0 {
		limit = defaultSearchLimit
	}
	limit = min(limit, maxSearchLimit)
	args := database.SearchHackathonsArgs{Today: c.today(), Limit: uint64(limit)}
	where, skipped := c.where.Build(expandStatus(metadata))
	if len(skipped) > 0 {
		slog.DebugContext(ctx, "ignored chat metadata", "keys", skipped)
	}
	if len(where) > 0 {
		args.Where = where
	}
	if c.emb != nil && question != "" {
		vecs, err := c.emb.EmbedTexts(ctx, []string{question})
		if err != nil {
			slog.WarnContext(ctx, "question embedding failed", "error", err)
		} else if len(vecs) > 0 {
			args.Embedding = vecs[0]
		}
	}
	span.SetAttributes(attribute.Bool("embedding_used", len(args.Embedding) > 0))
	out, err := c.store.SearchHackathons(ctx, args)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return out, nil
}

// expandStatus widens an ongoing status in chat metadata to its synonym
// group, the way listing filters do. metadata is not modified.
func expandStatus(metadata map[string]any) map[string]any {
	for k, v := range metadata {
		if !strings.EqualFold(k, "status") {
			continue
		}
		s, ok := v.(string)
		if !ok || !hackathon.Status(strings.ToLower(strings.TrimSpace(s))).IsOngoing() {
			continue
		}
		out := maps.Clone(metadata)
		group := make([]string, len(hackathon.OngoingStatuses))
		for i, st := range hackathon.OngoingStatuses {
			group[i] = string(st)
		}
		out[k] = group
		return out
	}
	return metadata
}

// RefreshEmbeddings embeds every current record whose embedding is missing
// or older than ttl and returns how many were refreshed.
func (c *Core) RefreshEmbeddings(ctx context.Context, ttl time.Duration) (int, error) {
	tracer := otel.Tracer("hackathonhub/core")
	ctx, span := tracer.Start(ctx, "Core.RefreshEmbeddings")
	span.SetAttributes(attribute.Int("ttl_seconds", int(ttl.Seconds())))
	defer span.End()
	if c.emb == nil {
		return 0, fmt.Errorf("embeddings not configured")
	}
	staled, err := c.store.ListStaledHackathonEmbeddings(ctx, database.ListStaledHackathonEmbeddingsArgs{TTL: ttl, Today: c.today()})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}
	if len(staled) == 0 {
		return 0, nil
	}
	records := make([]hackathon.Record, len(staled))
	for i := range staled {
		records[i] = staled[i].Record
	}
	vecs, err := c.emb.EmbedRecords(ctx, records)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}
	for i := range staled {
		if err := c.store.UpsertHackathonEmbedding(ctx, database.UpsertHackathonEmbeddingArgs{HackathonID: staled[i].ID, Vec: vecs[i]}); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return i, err
		}
	}
	return len(staled), nil
}
