package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"hackathonhub.shikanime.studio/internal/config"
	dbpgx "hackathonhub.shikanime.studio/internal/database/pgx"
)

var (
	// ErrNotFound is returned when a looked up row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when an insert violates a unique key.
	ErrAlreadyExists = errors.New("already exists")
)

const uniqueViolation = "23505"

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Database struct {
	pg *pgxpool.Pool
	q  querier
	tx bool
}

// NewForConfig constructs a Database using the provided config.
func NewForConfig(cfg *config.Config) (*Database, error) {
	pg, err := dbpgx.NewClientForConfig(cfg)
	if err != nil {
		return nil, err
	}
	return NewClient(pg), nil
}

// NewClient constructs a Database using the provided pgx pool. A nil pool
// yields a Database whose every call fails.
func NewClient(pg *pgxpool.Pool) *Database {
	db := &Database{pg: pg}
	if pg != nil {
		db.q = pg
	}
	return db
}

func (db *Database) available() error {
	if db == nil || db.q == nil {
		return fmt.Errorf("database connection not available")
	}
	return nil
}

// Ping verifies the provided database connection is available
func (db *Database) Ping(ctx context.Context) error {
	tracer := otel.Tracer("hackathonhub/database")
	ctx, span := tracer.Start(ctx, "Database.Ping")
	defer span.End()
	if db.pg == nil {
		return fmt.Errorf("database connection not available")
	}
	return db.pg.Ping(ctx)
}

func (db *Database) Close() error {
	if db.pg == nil {
		return nil
	}
	db.pg.Close()
	return nil
}

// InTx runs fn against a Database bound to a single transaction, committed
// when fn returns nil. Nested calls reuse the outer transaction.
func (db *Database) InTx(ctx context.Context, fn func(*Database) error) error {
	tracer := otel.Tracer("hackathonhub/database")
	ctx, span := tracer.Start(ctx, "Database.InTx")
	defer span.End()
	if err := db.available(); err != nil {
		return err
	}
	if db.tx {
		return fn(db)
	}
	err := pgx.BeginFunc(ctx, db.pg, func(tx pgx.Tx) error {
		return fn(&Database{pg: db.pg, q: tx, tx: true})
	})
	if err != nil {
		fail(span, err)
		return err
	}
	return nil
}

func fail(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
