package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"hackathonhub.shikanime.studio/internal/hackathon"
)

// HackathonExists reports whether a record with externalID was already
// ingested from source.
func (db *Database) HackathonExists(ctx context.Context, externalID string, source hackathon.Provider) (bool, error) {
	tracer := otel.Tracer("hackathonhub/database")
	ctx, span := tracer.Start(ctx, "Database.HackathonExists")
	span.SetAttributes(attribute.String("external_id", externalID), attribute.String("source", string(source)))
	defer span.End()
	if err := db.available(); err != nil {
		return false, err
	}
	var exists bool
	if err := db.q.QueryRow(ctx, HackathonExistsQuery, externalID, string(source)).Scan(&exists); err != nil {
		fail(span, err)
		return false, fmt.Errorf("hackathon exists query failed: %w", err)
	}
	return exists, nil
}

// InsertHackathon stores rec under source. It reports false when a record
// with the same (external id, source) pair already exists.
func (db *Database) InsertHackathon(ctx context.Context, source hackathon.Provider, rec hackathon.Record) (bool, error) {
	tracer := otel.Tracer("hackathonhub/database")
	ctx, span := tracer.Start(ctx, "Database.InsertHackathon")
	span.SetAttributes(attribute.String("external_id", rec.ID), attribute.String("source", string(source)))
	defer span.End()
	if err := db.available(); err != nil {
		return false, err
	}
	tags := rec.Tags
	if tags == nil {
		tags = []string{}
	}
	encoded, err := json.Marshal(tags)
	if err != nil {
		return false, fmt.Errorf("encode tags failed: %w", err)
	}
	tag, err := db.q.Exec(ctx, InsertHackathonQuery,
		rec.ID, rec.Title, rec.Description, rec.TotalPrize, rec.StartDate, rec.EndDate,
		rec.RegistrationURL, rec.ImageURL, rec.Organizer, rec.Location, string(rec.Type),
		string(encoded), string(rec.Status), string(source),
	)
	if err != nil {
		fail(span, err)
		return false, fmt.Errorf("insert hackathon failed: %w", err)
	}
	inserted := tag.RowsAffected() == 1
	slog.DebugContext(ctx, "insert hackathon", "external_id", rec.ID, "source", source, "inserted", inserted)
	return inserted, nil
}

// ListHackathons returns one page of records matching args.
func (db *Database) ListHackathons(ctx context.Context, args ListHackathonsArgs) ([]hackathon.Record, error) {
	tracer := otel.Tracer("hackathonhub/database")
	ctx, span := tracer.Start(ctx, "Database.ListHackathons")
	span.SetAttributes(
		attribute.String("status", string(args.Filters.Status)),
		attribute.Int("limit", args.Filters.Limit),
		attribute.Int("offset", args.Filters.Offset),
	)
	defer span.End()
	if err := db.available(); err != nil {
		return nil, err
	}
	query, qargs, err := BuildListHackathonsQuery(args)
	if err != nil {
		return nil, err
	}
	slog.DebugContext(ctx, "list hackathons query", "sql", query, "args_len", len(qargs))
	rows, err := db.q.Query(ctx, query, qargs...)
	if err != nil {
		fail(span, err)
		return nil, fmt.Errorf("list hackathons query failed: %w", err)
	}
	out, err := collectRecords(rows)
	if err != nil {
		fail(span, err)
		return nil, fmt.Errorf("list hackathons scan failed: %w", err)
	}
	return out, nil
}

// CountHackathons counts records matching args, ignoring pagination.
func (db *Database) CountHackathons(ctx context.Context, args ListHackathonsArgs) (int, error) {
	tracer := otel.Tracer("hackathonhub/database")
	ctx, span := tracer.Start(ctx, "Database.CountHackathons")
	defer span.End()
	if err := db.available(); err != nil {
		return 0, err
	}
	query, qargs, err := BuildCountHackathonsQuery(args)
	if err != nil {
		return 0, err
	}
	var n int
	if err := db.q.QueryRow(ctx, query, qargs...).Scan(&n); err != nil {
		fail(span, err)
		return 0, fmt.Errorf("count hackathons query failed: %w", err)
	}
	return n, nil
}

// GetHackathon returns the most recently ingested record with externalID.
func (db *Database) GetHackathon(ctx context.Context, externalID string) (hackathon.Record, error) {
	tracer := otel.Tracer("hackathonhub/database")
	ctx, span := tracer.Start(ctx, "Database.GetHackathon")
	span.SetAttributes(attribute.String("external_id", externalID))
	defer span.End()
	if err := db.available(); err != nil {
		return hackathon.Record{}, err
	}
	rec, err := scanRecord(db.q.QueryRow(ctx, GetHackathonQuery, externalID))
	if errors.Is(err, pgx.ErrNoRows) {
		return hackathon.Record{}, fmt.Errorf("hackathon %q: %w", externalID, ErrNotFound)
	}
	if err != nil {
		fail(span, err)
		return hackathon.Record{}, fmt.Errorf("get hackathon failed: %w", err)
	}
	return rec, nil
}

// CountHackathonsByStatus returns the number of stored records per raw
// status value.
func (db *Database) CountHackathonsByStatus(ctx context.Context) (map[hackathon.Status]int, error) {
	tracer := otel.Tracer("hackathonhub/database")
	ctx, span := tracer.Start(ctx, "Database.CountHackathonsByStatus")
	defer span.End()
	if err := db.available(); err != nil {
		return nil, err
	}
	rows, err := db.q.Query(ctx, CountHackathonsByStatusQuery)
	if err != nil {
		fail(span, err)
		return nil, fmt.Errorf("count hackathons by status failed: %w", err)
	}
	defer rows.Close()
	out := make(map[hackathon.Status]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[hackathon.Status(status)] += n
	}
	return out, rows.Err()
}

// ListPrizes returns the raw prize string of every stored record.
func (db *Database) ListPrizes(ctx context.Context) ([]string, error) {
	tracer := otel.Tracer("hackathonhub/database")
	ctx, span := tracer.Start(ctx, "Database.ListPrizes")
	defer span.End()
	if err := db.available(); err != nil {
		return nil, err
	}
	rows, err := db.q.Query(ctx, ListPrizesQuery)
	if err != nil {
		fail(span, err)
		return nil, fmt.Errorf("list prizes failed: %w", err)
	}
	prizes, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		fail(span, err)
		return nil, fmt.Errorf("list prizes scan failed: %w", err)
	}
	return prizes, nil
}

func collectRecords(rows pgx.Rows) ([]hackathon.Record, error) {
	defer rows.Close()
	out := []hackathon.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// scanRecord reads the hackathonColumns projection, optionally preceded by
// extra destinations.
func scanRecord(row pgx.Row, extra ...any) (hackathon.Record, error) {
	var rec hackathon.Record
	var typ, status, tags string
	dest := append(extra,
		&rec.ID, &rec.Title, &rec.Description, &rec.TotalPrize, &rec.StartDate, &rec.EndDate,
		&rec.RegistrationURL, &rec.ImageURL, &rec.Organizer, &rec.Location, &typ, &tags,
		&status, &rec.SourceName, &rec.CreatedAt,
	)
	if err := row.Scan(dest...); err != nil {
		return hackathon.Record{}, err
	}
	rec.Type = hackathon.Type(typ)
	rec.Status = hackathon.Status(status)
	rec.Tags = []string{}
	if err := json.Unmarshal([]byte(tags), &rec.Tags); err != nil || rec.Tags == nil {
		slog.Debug("unreadable stored tags", "external_id", rec.ID, "error", err)
		rec.Tags = []string{}
	}
	return rec, nil
}
