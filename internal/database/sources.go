package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"hackathonhub.shikanime.studio/internal/hackathon"
)

func (db *Database) ListSources(ctx context.Context, args ListSourcesArgs) ([]hackathon.Source, error) {
	tracer := otel.Tracer("hackathonhub/database")
	ctx, span := tracer.Start(ctx, "Database.ListSources")
	span.SetAttributes(attribute.Bool("active_only", args.ActiveOnly))
	defer span.End()
	if err := db.available(); err != nil {
		return nil, err
	}
	query, qargs, err := BuildListSourcesQuery(args)
	if err != nil {
		return nil, err
	}
	rows, err := db.q.Query(ctx, query, qargs...)
	if err != nil {
		fail(span, err)
		return nil, fmt.Errorf("list sources query failed: %w", err)
	}
	defer rows.Close()
	out := []hackathon.Source{}
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, src)
	}
	return out, rows.Err()
}

func (db *Database) GetSource(ctx context.Context, provider hackathon.Provider) (hackathon.Source, error) {
	tracer := otel.Tracer("hackathonhub/database")
	ctx, span := tracer.Start(ctx, "Database.GetSource")
	span.SetAttributes(attribute.String("provider", string(provider)))
	defer span.End()
	if err := db.available(); err != nil {
		return hackathon.Source{}, err
	}
	src, err := scanSource(db.q.QueryRow(ctx, GetSourceQuery, string(provider)))
	if errors.Is(err, pgx.ErrNoRows) {
		return hackathon.Source{}, fmt.Errorf("source %q: %w", provider, ErrNotFound)
	}
	if err != nil {
		fail(span, err)
		return hackathon.Source{}, fmt.Errorf("get source failed: %w", err)
	}
	return src, nil
}

// CreateSource inserts src; only one source may exist per provider.
func (db *Database) CreateSource(ctx context.Context, src hackathon.Source) (hackathon.Source, error) {
	tracer := otel.Tracer("hackathonhub/database")
	ctx, span := tracer.Start(ctx, "Database.CreateSource")
	span.SetAttributes(attribute.String("provider", string(src.Provider)))
	defer span.End()
	if err := db.available(); err != nil {
		return hackathon.Source{}, err
	}
	created, err := scanSource(db.q.QueryRow(ctx, CreateSourceQuery,
		src.Name, src.URL, string(src.Provider), src.IsActive, src.CreatedBy))
	if isUniqueViolation(err) {
		return hackathon.Source{}, fmt.Errorf("source %q: %w", src.Provider, ErrAlreadyExists)
	}
	if err != nil {
		fail(span, err)
		return hackathon.Source{}, fmt.Errorf("create source failed: %w", err)
	}
	slog.DebugContext(ctx, "source created", "provider", created.Provider, "id", created.ID)
	return created, nil
}

func (db *Database) UpdateSource(ctx context.Context, provider hackathon.Provider, patch hackathon.SourcePatch) (hackathon.Source, error) {
	tracer := otel.Tracer("hackathonhub/database")
	ctx, span := tracer.Start(ctx, "Database.UpdateSource")
	span.SetAttributes(attribute.String("provider", string(provider)))
	defer span.End()
	if err := db.available(); err != nil {
		return hackathon.Source{}, err
	}
	if patch.Empty() {
		return db.GetSource(ctx, provider)
	}
	query, qargs, err := BuildUpdateSourceQuery(provider, patch)
	if err != nil {
		return hackathon.Source{}, err
	}
	updated, err := scanSource(db.q.QueryRow(ctx, query, qargs...))
	if errors.Is(err, pgx.ErrNoRows) {
		return hackathon.Source{}, fmt.Errorf("source %q: %w", provider, ErrNotFound)
	}
	if err != nil {
		fail(span, err)
		return hackathon.Source{}, fmt.Errorf("update source failed: %w", err)
	}
	return updated, nil
}

func (db *Database) DeleteSource(ctx context.Context, provider hackathon.Provider) error {
	tracer := otel.Tracer("hackathonhub/database")
	ctx, span := tracer.Start(ctx, "Database.DeleteSource")
	span.SetAttributes(attribute.String("provider", string(provider)))
	defer span.End()
	if err := db.available(); err != nil {
		return err
	}
	tag, err := db.q.Exec(ctx, DeleteSourceQuery, string(provider))
	if err != nil {
		fail(span, err)
		return fmt.Errorf("delete source failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("source %q: %w", provider, ErrNotFound)
	}
	return nil
}

// MarkSourceFetched records a completed fetch. The count replaces the
// previous one.
func (db *Database) MarkSourceFetched(ctx context.Context, args MarkSourceFetchedArgs) error {
	tracer := otel.Tracer("hackathonhub/database")
	ctx, span := tracer.Start(ctx, "Database.MarkSourceFetched")
	span.SetAttributes(attribute.String("provider", string(args.Provider)), attribute.Int("count", args.Count))
	defer span.End()
	if err := db.available(); err != nil {
		return err
	}
	tag, err := db.q.Exec(ctx, MarkSourceFetchedQuery, string(args.Provider), args.At, args.Count)
	if err != nil {
		fail(span, err)
		return fmt.Errorf("mark source fetched failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("source %q: %w", args.Provider, ErrNotFound)
	}
	return nil
}

func scanSource(row pgx.Row) (hackathon.Source, error) {
	var src hackathon.Source
	var provider string
	err := row.Scan(
		&src.ID, &src.Name, &src.URL, &provider, &src.IsActive, &src.LastFetched,
		&src.HackathonsCount, &src.CreatedBy, &src.CreatedAt, &src.UpdatedAt,
	)
	if err != nil {
		return hackathon.Source{}, err
	}
	src.Provider = hackathon.Provider(provider)
	return src, nil
}
