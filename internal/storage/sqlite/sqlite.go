// Package sqlitestorage implements the storage.Backend interface on SQLite.
// It wraps the GORM backend; the only SQLite-specific concerns are opening
// the file or in-memory database and, for the in-memory case, the periodic
// disk dump via VACUUM INTO.
package sqlitestorage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/storepins/pinboard/internal/config"
	"github.com/storepins/pinboard/internal/database"
	gormstorage "github.com/storepins/pinboard/internal/storage/gorm"
	"github.com/storepins/pinboard/internal/storage"

	"gorm.io/gorm"
)

var (
	_ storage.Backend = (*Backend)(nil)
	_ storage.Updater = (*Backend)(nil)
)

// Backend wraps the GORM backend for SQLite-specific behavior.
type Backend struct {
	*gormstorage.Backend
	db       *gorm.DB
	cfg      config.SQLiteConfig
	log      *slog.Logger
	dbLog    zerolog.Logger
	stopChan chan struct{}
	done     sync.WaitGroup
	stopOnce sync.Once
}

// New opens the database described by cfg. An empty Path means in-memory.
func New(cfg config.SQLiteConfig, logger *slog.Logger, dbLog zerolog.Logger) (*Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := database.OpenSqlite(cfg.Path, dbLog)
	if err != nil {
		return nil, fmt.Errorf("failed to create SQLite DB: %w", err)
	}

	return &Backend{
		Backend:  gormstorage.New(gormstorage.Dependencies{DB: db, Logger: logger}),
		db:       db,
		cfg:      cfg,
		log:      logger,
		dbLog:    dbLog,
		stopChan: make(chan struct{}),
	}, nil
}

func (b *Backend) dumps() bool {
	return b.cfg.Path == "" && b.cfg.DumpPath != ""
}

// Init migrates the schema and starts the dump goroutine for in-memory databases.
func (b *Backend) Init(ctx context.Context) error {
	if err := b.Backend.Init(ctx); err != nil {
		return err
	}

	if b.dumps() && b.cfg.DumpInterval > 0 {
		b.done.Add(1)
		go b.dumpLoop()
	}

	return nil
}

// Close stops the dump goroutine, writes a final dump and closes the database.
func (b *Backend) Close() error {
	b.stopOnce.Do(func() { close(b.stopChan) })
	b.done.Wait()

	if b.dumps() {
		if err := database.DumpMemoryDBToDisk(b.db, b.cfg.DumpPath, b.dbLog); err != nil {
			b.log.Error("Final dump to disk failed", "error", err)
		}
	}
	return b.Backend.Close()
}

// dumpLoop periodically dumps the in-memory SQLite database to disk via VACUUM INTO.
// VACUUM INTO creates a point-in-time snapshot, so no pause mechanism is needed.
func (b *Backend) dumpLoop() {
	defer b.done.Done()

	ticker := time.NewTicker(b.cfg.DumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			if err := database.DumpMemoryDBToDisk(b.db, b.cfg.DumpPath, b.dbLog); err != nil {
				b.log.Error("Error dumping to disk", "error", err)
			}
		}
	}
}
