package ingest

import (
	"context"

	"hackathonhub.shikanime.studio/internal/database"
	"hackathonhub.shikanime.studio/internal/hackathon"
)

// Store is the storage the orchestrator dedups and inserts against.
type Store interface {
	HackathonExists(ctx context.Context, externalID string, source hackathon.Provider) (bool, error)
	InsertHackathon(ctx context.Context, source hackathon.Provider, rec hackathon.Record) (bool, error)
}

// TxStore runs a batch of Store calls atomically.
type TxStore interface {
	Store
	InTx(ctx context.Context, fn func(Store) error) error
}

// SourceStore persists source descriptors.
type SourceStore interface {
	ListSources(ctx context.Context, args database.ListSourcesArgs) ([]hackathon.Source, error)
	GetSource(ctx context.Context, provider hackathon.Provider) (hackathon.Source, error)
	CreateSource(ctx context.Context, src hackathon.Source) (hackathon.Source, error)
	UpdateSource(ctx context.Context, provider hackathon.Provider, patch hackathon.SourcePatch) (hackathon.Source, error)
	DeleteSource(ctx context.Context, provider hackathon.Provider) error
	MarkSourceFetched(ctx context.Context, args database.MarkSourceFetchedArgs) error
}

type databaseStore struct {
	*database.Database
}

// NewDatabaseStore adapts db to TxStore.
func NewDatabaseStore(db *database.Database) TxStore { return databaseStore{db} }

func (s databaseStore) InTx(ctx context.Context, fn func(Store) error) error {
	return s.Database.InTx(ctx, func(tx *database.Database) error { return fn(tx) })
}
