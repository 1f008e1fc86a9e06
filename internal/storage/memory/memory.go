// internal/storage/memory/memory.go
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/storepins/pinboard/internal/config"
	"github.com/storepins/pinboard/internal/storage"
	"github.com/storepins/pinboard/pkg/core"
)

// Verify Backend implements storage.Backend and storage.Updater
var (
	_ storage.Backend = (*Backend)(nil)
	_ storage.Updater = (*Backend)(nil)
)

// Backend keeps marker documents in process memory, optionally backed by a
// JSON snapshot file that is read on Init and written on Close.
type Backend struct {
	cfg   config.MemoryConfig
	docs  []core.Document
	index map[string]int // document id -> position in docs

	now   func() time.Time
	newID func() string

	// injected failures, see faults.go
	insertErr     error
	listErr       error
	listFailAfter int

	inserts int
	mu      sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{
		cfg:   cfg,
		index: make(map[string]int),
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// Init loads the snapshot file when one is configured and present
func (b *Backend) Init(ctx context.Context) error {
	if b.cfg.SnapshotPath == "" {
		return nil
	}
	docs, err := readSnapshot(b.cfg.SnapshotPath)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, doc := range docs {
		if _, dup := b.index[doc.ID]; dup {
			continue
		}
		b.index[doc.ID] = len(b.docs)
		b.docs = append(b.docs, doc)
	}
	return nil
}

// Close writes the snapshot file when one is configured
func (b *Backend) Close() error {
	if b.cfg.SnapshotPath == "" {
		return nil
	}
	b.mu.RLock()
	docs := append([]core.Document(nil), b.docs...)
	b.mu.RUnlock()

	return writeSnapshot(b.cfg.SnapshotPath, docs)
}

// Insert stores a new document with a fresh uuid
func (b *Backend) Insert(ctx context.Context, rec core.MarkerRecord) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", storage.Unavailable("memory insert", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.inserts++
	if b.insertErr != nil {
		return "", b.insertErr
	}

	rec.CreatedAt = b.now().UTC()
	id := b.newID()
	b.index[id] = len(b.docs)
	b.docs = append(b.docs, core.Document{ID: id, Record: rec})
	return id, nil
}

// Update rewrites the record stored under id, keeping its creation time
func (b *Backend) Update(ctx context.Context, id string, rec core.MarkerRecord) error {
	if err := ctx.Err(); err != nil {
		return storage.Unavailable("memory update", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.insertErr != nil {
		return b.insertErr
	}
	i, ok := b.index[id]
	if !ok {
		return storage.Rejected("memory update", fmt.Errorf("document %s: %w", id, core.ErrNotFound))
	}
	rec.CreatedAt = b.docs[i].Record.CreatedAt
	b.docs[i].Record = rec
	return nil
}

// ListAll returns a copy of every document in insertion order
func (b *Backend) ListAll(ctx context.Context) ([]core.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, storage.Unavailable("memory list", err)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.listErr != nil {
		n := min(b.listFailAfter, len(b.docs))
		return append([]core.Document(nil), b.docs[:n]...), b.listErr
	}
	return append([]core.Document(nil), b.docs...), nil
}

// Get returns the document stored under id
func (b *Backend) Get(id string) (core.Document, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	i, ok := b.index[id]
	if !ok {
		return core.Document{}, false
	}
	return b.docs[i], true
}

// Len returns the number of stored documents
func (b *Backend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.docs)
}
