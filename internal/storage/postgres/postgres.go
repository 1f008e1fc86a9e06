// Package postgres implements the storage.Backend interface on PostgreSQL
// through the shared GORM backend.
package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rs/zerolog"
	"github.com/storepins/pinboard/internal/config"
	"github.com/storepins/pinboard/internal/database"
	gormstorage "github.com/storepins/pinboard/internal/storage/gorm"
	"github.com/storepins/pinboard/internal/storage"
	"github.com/storepins/pinboard/pkg/core"

	"gorm.io/gorm"
)

var (
	_ storage.Backend = (*Backend)(nil)
	_ storage.Updater = (*Backend)(nil)
)

// Dependencies holds all dependencies for the Postgres storage backend.
type Dependencies struct {
	Config config.PostgresConfig
	// DB is used as-is when set; otherwise Init connects using Config.
	DB     *gorm.DB
	Logger *slog.Logger
	DBLog  zerolog.Logger
}

// Backend implements storage.Backend on a Postgres markers table.
type Backend struct {
	deps  Dependencies
	inner *gormstorage.Backend
}

// New creates a new Postgres storage backend. No connection is made until Init.
func New(deps Dependencies) *Backend {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Backend{deps: deps}
}

// Init connects when no DB was injected, then migrates the schema.
func (b *Backend) Init(ctx context.Context) error {
	if b.deps.DB == nil {
		db, err := database.OpenPostgres(b.deps.Config, b.deps.DBLog)
		if err != nil {
			return storage.Unavailable("postgres init", err)
		}
		b.deps.DB = db
	}

	b.inner = gormstorage.New(gormstorage.Dependencies{DB: b.deps.DB, Logger: b.deps.Logger})
	if err := b.inner.Init(ctx); err != nil {
		return fmt.Errorf("failed to setup DB: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (b *Backend) Close() error {
	if b.inner == nil {
		return nil
	}
	return b.inner.Close()
}

func (b *Backend) backend(op string) (*gormstorage.Backend, error) {
	if b.inner == nil {
		return nil, storage.Unavailable(op, fmt.Errorf("postgres backend not initialized"))
	}
	return b.inner, nil
}

// Insert writes rec as a new row.
func (b *Backend) Insert(ctx context.Context, rec core.MarkerRecord) (string, error) {
	inner, err := b.backend("postgres insert")
	if err != nil {
		return "", err
	}
	return inner.Insert(ctx, rec)
}

// Update rewrites the row with the given id.
func (b *Backend) Update(ctx context.Context, id string, rec core.MarkerRecord) error {
	inner, err := b.backend("postgres update")
	if err != nil {
		return err
	}
	return inner.Update(ctx, id, rec)
}

// ListAll returns every row in primary key order.
func (b *Backend) ListAll(ctx context.Context) ([]core.Document, error) {
	inner, err := b.backend("postgres list")
	if err != nil {
		return nil, err
	}
	return inner.ListAll(ctx)
}
