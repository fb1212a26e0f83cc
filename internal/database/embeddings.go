package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pgvector/pgvector-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"hackathonhub.shikanime.studio/internal/hackathon"
)

func (db *Database) ListStaledHackathonEmbeddings(
	ctx context.Context,
	args ListStaledHackathonEmbeddingsArgs,
) ([]StaledHackathonEmbeddingResult, error) {
	tracer := otel.Tracer("hackathonhub/database")
	ctx, span := tracer.Start(ctx, "Database.ListStaledHackathonEmbeddings")
	defer span.End()
	if err := db.available(); err != nil {
		return nil, err
	}
	ttlSeconds := int64(args.TTL.Seconds())
	rows, err := db.q.Query(ctx, HackathonsStaledEmbeddingsQuery, ttlSeconds, args.Today)
	if err != nil {
		fail(span, err)
		return nil, fmt.Errorf("list staled hackathon embeddings query failed: %w", err)
	}
	defer rows.Close()
	var out []StaledHackathonEmbeddingResult
	for rows.Next() {
		var id int64
		rec, err := scanRecord(rows, &id)
		if err != nil {
			fail(span, err)
			return nil, err
		}
		out = append(out, StaledHackathonEmbeddingResult{ID: id, Record: rec})
	}
	return out, rows.Err()
}

func (db *Database) UpsertHackathonEmbedding(ctx context.Context, args UpsertHackathonEmbeddingArgs) error {
	tracer := otel.Tracer("hackathonhub/database")
	ctx, span := tracer.Start(ctx, "Database.UpsertHackathonEmbedding")
	span.SetAttributes(attribute.Int("vector_dim", len(args.Vec)))
	defer span.End()
	if err := db.available(); err != nil {
		return err
	}
	v := pgvector.NewVector(args.Vec)
	if _, err := db.q.Exec(ctx, UpsertHackathonEmbeddingQuery, args.HackathonID, v); err != nil {
		fail(span, err)
		return fmt.Errorf("upsert hackathon embedding failed: %w", err)
	}
	return nil
}

// SearchHackathons returns upcoming and ongoing records for chat retrieval.
func (db *Database) SearchHackathons(ctx context.Context, args SearchHackathonsArgs) ([]hackathon.Record, error) {
	tracer := otel.Tracer("hackathonhub/database")
	ctx, span := tracer.Start(ctx, "Database.SearchHackathons")
	span.SetAttributes(
		attribute.Bool("embedding_used", len(args.Embedding) > 0),
		attribute.Int("limit", int(args.Limit)),
	)
	defer span.End()
	if err := db.available(); err != nil {
		return nil, err
	}
	query, qargs, err := BuildSearchHackathonsQuery(args)
	if err != nil {
		return nil, err
	}
	slog.DebugContext(ctx, "search hackathons query", "sql", query, "args_len", len(qargs))
	rows, err := db.q.Query(ctx, query, qargs...)
	if err != nil {
		fail(span, err)
		return nil, fmt.Errorf("search hackathons failed: %w", err)
	}
	out, err := collectRecords(rows)
	if err != nil {
		fail(span, err)
		return nil, fmt.Errorf("search hackathons scan failed: %w", err)
	}
	slog.DebugContext(ctx, "search hackathons results", "count", len(out))
	return out, nil
}
