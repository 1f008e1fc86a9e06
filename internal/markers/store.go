// Package markers owns the in-session marker collection: pins placed on the
// map, their edits, and the one-time load from the remote store.
package markers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/storepins/pinboard/internal/geo"
	"github.com/storepins/pinboard/internal/storage"
	"github.com/storepins/pinboard/internal/worker"
	"github.com/storepins/pinboard/pkg/core"
)

// ErrAlreadyInitialized is returned by a second Initialize after a
// successful one.
var ErrAlreadyInitialized = errors.New("markers already initialized")

// Persister hands full records to the remote store in the background.
type Persister interface {
	Persist(job worker.Job)
	Wait()
}

// KeyFunc builds a session key from the placement time and the collection
// length at that moment.
type KeyFunc func(at time.Time, n int) string

// Edit replaces the editable fields of a marker.
type Edit struct {
	Title       string
	Description string
	Image       core.ResourceLocator
}

// Dependencies holds everything a Store needs.
type Dependencies struct {
	Backend   storage.Backend
	Persister Persister
	Logger    *slog.Logger
	Now       func() time.Time
	NewKey    KeyFunc
}

// Store is the authoritative marker collection for one session.
type Store struct {
	deps Dependencies

	mu          sync.RWMutex
	markers     []core.Marker
	index       map[string]int
	initialized bool

	obsMu     sync.Mutex
	observers []func([]core.Marker)
}

// SessionKey returns "local-<unixMillis>-<n>-<uuid>". Remote ids never take
// this form, so session keys cannot collide with loaded markers.
func SessionKey(at time.Time, n int) string {
	return fmt.Sprintf("local-%d-%d-%s", at.UnixMilli(), n, uuid.NewString())
}

// New creates a Store. Backend and Persister are required.
func New(deps Dependencies) (*Store, error) {
	if deps.Backend == nil {
		return nil, errors.New("markers: backend is required")
	}
	if deps.Persister == nil {
		return nil, errors.New("markers: persister is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.NewKey == nil {
		deps.NewKey = SessionKey
	}
	return &Store{
		deps:  deps,
		index: make(map[string]int),
	}, nil
}

// Initialize loads every document from the remote store and appends one
// marker per document, keyed by its remote id. Documents returned before a
// failure are kept and the error is returned. Keys already present are
// skipped, so a failed load may be retried.
func (s *Store) Initialize(ctx context.Context) error {
	s.mu.RLock()
	done := s.initialized
	s.mu.RUnlock()
	if done {
		return ErrAlreadyInitialized
	}

	docs, listErr := s.deps.Backend.ListAll(ctx)

	s.mu.Lock()
	if s.initialized {
		s.mu.Unlock()
		return ErrAlreadyInitialized
	}
	added, skipped := 0, 0
	for _, doc := range docs {
		m := core.MarkerFromDocument(doc)
		if _, dup := s.index[m.Key]; dup || m.Key == "" {
			skipped++
			continue
		}
		s.appendLocked(m)
		added++
	}
	if listErr == nil {
		s.initialized = true
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if added > 0 {
		s.notify(snap)
	}

	if listErr != nil {
		s.deps.Logger.Error("Initial marker load failed", "loaded", added, "skipped", skipped, "error", listErr)
		return fmt.Errorf("initialize markers: %w", listErr)
	}
	s.deps.Logger.Info("Markers loaded", "loaded", added, "skipped", skipped)
	return nil
}

// Create places a new marker at coord with the default title and
// description. eventTime is the time of the placing gesture; zero means now.
// Nothing is written remotely until the marker is first edited.
func (s *Store) Create(coord core.Coordinate, eventTime time.Time) (core.Marker, error) {
	if err := geo.ValidateCoordinate(coord); err != nil {
		return core.Marker{}, fmt.Errorf("create marker: %w", err)
	}
	if eventTime.IsZero() {
		eventTime = s.deps.Now()
	}

	s.mu.Lock()
	m := core.Marker{
		Key:         s.deps.NewKey(eventTime, len(s.markers)),
		Coordinate:  coord,
		Title:       core.DefaultTitle,
		Description: core.DefaultDescription,
	}
	if _, dup := s.index[m.Key]; dup {
		s.mu.Unlock()
		return core.Marker{}, fmt.Errorf("create marker: duplicate key %q", m.Key)
	}
	s.appendLocked(m)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.deps.Logger.Debug("Marker created", "key", m.Key, "latitude", coord.Latitude, "longitude", coord.Longitude)
	s.notify(snap)
	return m, nil
}

// ApplyEdit replaces the marker's title, description and image, then hands
// the full record to the persister. The remote write happens in the
// background and its outcome is not reported here.
func (s *Store) ApplyEdit(key string, edit Edit) error {
	s.mu.Lock()
	i, ok := s.index[key]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("apply edit %q: %w", key, core.ErrNotFound)
	}
	m := &s.markers[i]
	m.Title = edit.Title
	m.Description = edit.Description
	m.Image = edit.Image
	job := worker.Job{
		Key:        m.Key,
		RemoteID:   m.RemoteID,
		Record:     m.Record(),
		OnInserted: func(id string) { s.setRemoteID(key, id) },
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.deps.Logger.Debug("Marker edited", "key", key)
	s.notify(snap)
	s.deps.Persister.Persist(job)
	return nil
}

func (s *Store) setRemoteID(key, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.index[key]; ok && s.markers[i].RemoteID == "" {
		s.markers[i].RemoteID = id
	}
}

// List returns a copy of the collection in insertion order.
func (s *Store) List() []core.Marker {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Get returns the marker stored under key.
func (s *Store) Get(key string) (core.Marker, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[key]
	if !ok {
		return core.Marker{}, false
	}
	return s.markers[i], true
}

// Len returns the number of markers.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.markers)
}

// OnChange registers fn to receive a snapshot after every append or edit.
// Observers run on the mutating goroutine, outside the store lock.
func (s *Store) OnChange(fn func(markers []core.Marker)) {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	s.observers = append(s.observers, fn)
}

// Wait blocks until in-flight background writes have finished.
func (s *Store) Wait() {
	s.deps.Persister.Wait()
}

func (s *Store) appendLocked(m core.Marker) {
	s.index[m.Key] = len(s.markers)
	s.markers = append(s.markers, m)
}

func (s *Store) snapshotLocked() []core.Marker {
	return append([]core.Marker(nil), s.markers...)
}

func (s *Store) notify(snap []core.Marker) {
	s.obsMu.Lock()
	observers := append([]func([]core.Marker){}, s.observers...)
	s.obsMu.Unlock()
	for _, fn := range observers {
		fn(snap)
	}
}
