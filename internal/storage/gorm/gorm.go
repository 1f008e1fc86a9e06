// Package gormstorage implements storage.Backend on any GORM dialect. The
// sqlite and postgres backends wrap it and only own connection setup.
package gormstorage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/storepins/pinboard/internal/model"
	"github.com/storepins/pinboard/internal/model/convert"
	"github.com/storepins/pinboard/internal/storage"
	"github.com/storepins/pinboard/pkg/core"
	"gorm.io/gorm"
)

// listBatchSize bounds each SELECT issued by ListAll.
const listBatchSize = 500

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB     *gorm.DB
	Logger *slog.Logger
}

// Backend implements storage.Backend and storage.Updater on a markers table.
type Backend struct {
	deps    Dependencies
	dbReady bool
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Backend{deps: deps}
}

// DB exposes the underlying connection.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// Init runs schema migration.
func (b *Backend) Init(ctx context.Context) error {
	if b.deps.DB == nil {
		return storage.Unavailable("gorm init", errors.New("no database connection"))
	}
	if err := b.deps.DB.WithContext(ctx).AutoMigrate(model.DatabaseModels...); err != nil {
		return storage.Unavailable("gorm init", fmt.Errorf("failed to migrate schema: %w", err))
	}
	b.dbReady = true
	b.deps.Logger.Info("Marker schema migrated", "dialect", b.deps.DB.Dialector.Name())
	return nil
}

// Close releases the connection pool.
func (b *Backend) Close() error {
	if b.deps.DB == nil {
		return nil
	}
	sqlDB, err := b.deps.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to access sql interface: %w", err)
	}
	b.dbReady = false
	return sqlDB.Close()
}

func (b *Backend) ready(op string) error {
	if !b.dbReady {
		return storage.Unavailable(op, errors.New("database not initialized"))
	}
	return nil
}

// classify maps a GORM error onto the remote error taxonomy.
func classify(op string, err error) error {
	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey),
		errors.Is(err, gorm.ErrInvalidData),
		errors.Is(err, gorm.ErrInvalidValue),
		errors.Is(err, gorm.ErrCheckConstraintViolated):
		return storage.Rejected(op, err)
	default:
		return storage.Unavailable(op, err)
	}
}

// Insert writes rec as a new row and returns its primary key.
func (b *Backend) Insert(ctx context.Context, rec core.MarkerRecord) (string, error) {
	if err := b.ready("gorm insert"); err != nil {
		return "", err
	}
	row, err := convert.CoreToMarker(rec)
	if err != nil {
		return "", storage.Rejected("gorm insert", err)
	}
	if err := b.deps.DB.WithContext(ctx).Create(&row).Error; err != nil {
		return "", classify("gorm insert", err)
	}
	return convert.MarkerToDocument(row).ID, nil
}

// Update rewrites every field of the row with the given id.
func (b *Backend) Update(ctx context.Context, id string, rec core.MarkerRecord) error {
	if err := b.ready("gorm update"); err != nil {
		return err
	}
	pk, err := convert.ParseID(id)
	if err != nil {
		return storage.Rejected("gorm update", err)
	}
	row, err := convert.CoreToMarker(rec)
	if err != nil {
		return storage.Rejected("gorm update", err)
	}

	res := b.deps.DB.WithContext(ctx).Model(&model.Marker{}).Where("id = ?", pk).Updates(map[string]any{
		"title":       row.Title,
		"description": row.Description,
		"image":       row.Image,
		"latitude":    row.Latitude,
		"longitude":   row.Longitude,
		"location":    row.Location,
		"updated_at":  time.Now().UTC(),
	})
	if res.Error != nil {
		return classify("gorm update", res.Error)
	}
	if res.RowsAffected == 0 {
		return storage.Rejected("gorm update", fmt.Errorf("document %s: %w", id, core.ErrNotFound))
	}
	return nil
}

// ListAll reads the table in primary key order, one batch at a time. Rows
// read before a failing batch are returned with the error.
func (b *Backend) ListAll(ctx context.Context) ([]core.Document, error) {
	if err := b.ready("gorm list"); err != nil {
		return nil, err
	}

	var docs []core.Document
	var batch []model.Marker
	res := b.deps.DB.WithContext(ctx).FindInBatches(&batch, listBatchSize, func(tx *gorm.DB, _ int) error {
		for _, row := range batch {
			docs = append(docs, convert.MarkerToDocument(row))
		}
		return nil
	})
	if res.Error != nil {
		return docs, classify("gorm list", res.Error)
	}
	return docs, nil
}
