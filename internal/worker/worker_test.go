package worker

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/storepins/pinboard/internal/cache"
	"github.com/storepins/pinboard/internal/config"
	"github.com/storepins/pinboard/internal/storage"
	"github.com/storepins/pinboard/internal/storage/memory"
	"github.com/storepins/pinboard/pkg/core"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// mockLogger implements Logger for testing
type mockLogger struct {
	mu       sync.Mutex
	messages []string
	errors   []string
}

func (l *mockLogger) Debug(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, msg)
}

func (l *mockLogger) Info(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, msg)
}

func (l *mockLogger) Error(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}

func (l *mockLogger) errorCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.errors)
}

// insertOnly hides the memory backend's Update method.
type insertOnly struct {
	storage.Backend
}

func newManager(t *testing.T, backend storage.Backend, mode Mode) (*Manager, *mockLogger) {
	t.Helper()
	logger := &mockLogger{}
	m, err := NewManager(Dependencies{
		Backend: backend,
		Cache:   cache.NewRemoteIDCache(),
		Logger:  logger,
		Mode:    mode,
		Timeout: time.Second,
	})
	require.NoError(t, err)
	return m, logger
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", ModeInsert, false},
		{"insert", ModeInsert, false},
		{" UPSERT ", ModeUpsert, false},
		{"replace", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMode(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewManager_RequiresBackend(t *testing.T) {
	_, err := NewManager(Dependencies{Logger: &mockLogger{}})
	assert.Error(t, err)
}

func TestNewManager_Defaults(t *testing.T) {
	m, err := NewManager(Dependencies{Backend: memory.New(config.MemoryConfig{}), Logger: &mockLogger{}})
	require.NoError(t, err)
	assert.Equal(t, ModeInsert, m.Mode())
	assert.Equal(t, defaultTimeout, m.deps.Timeout)
	assert.NotNil(t, m.deps.Cache)
}

func TestPersist_InsertModeAlwaysInserts(t *testing.T) {
	backend := memory.New(config.MemoryConfig{})
	m, _ := newManager(t, backend, ModeInsert)

	var inserted []string
	for i := 0; i < 3; i++ {
		m.Persist(Job{
			Key:        "local-1",
			Record:     core.MarkerRecord{Title: "Cafe"},
			OnInserted: func(id string) { inserted = append(inserted, id) },
		})
	}
	m.Wait()

	assert.Equal(t, 3, backend.Len())
	assert.Empty(t, inserted, "insert mode never back-fills remote ids")
}

func TestPersist_InsertModeIgnoresRemoteID(t *testing.T) {
	backend := memory.New(config.MemoryConfig{})
	backend.Seed(core.Document{ID: "r1", Record: core.MarkerRecord{Title: "Old"}})
	m, _ := newManager(t, backend, ModeInsert)

	m.Persist(Job{Key: "r1", RemoteID: "r1", Record: core.MarkerRecord{Title: "New"}})
	m.Wait()

	assert.Equal(t, 2, backend.Len())
	doc, _ := backend.Get("r1")
	assert.Equal(t, "Old", doc.Record.Title)
}

func TestPersist_UpsertUpdatesKnownDocument(t *testing.T) {
	backend := memory.New(config.MemoryConfig{})
	backend.Seed(core.Document{ID: "r1", Record: core.MarkerRecord{Title: "Old"}})
	m, _ := newManager(t, backend, ModeUpsert)

	m.Persist(Job{Key: "r1", RemoteID: "r1", Record: core.MarkerRecord{Title: "New"}})
	m.Wait()

	assert.Equal(t, 1, backend.Len())
	doc, _ := backend.Get("r1")
	assert.Equal(t, "New", doc.Record.Title)
}

func TestPersist_UpsertBackfillsThenUpdates(t *testing.T) {
	backend := memory.New(config.MemoryConfig{})
	m, _ := newManager(t, backend, ModeUpsert)

	var got string
	m.Persist(Job{
		Key:        "local-1",
		Record:     core.MarkerRecord{Title: "First"},
		OnInserted: func(id string) { got = id },
	})
	m.Wait()
	require.NotEmpty(t, got)

	cached, ok := m.deps.Cache.Get("local-1")
	require.True(t, ok)
	assert.Equal(t, got, cached)

	m.Persist(Job{Key: "local-1", Record: core.MarkerRecord{Title: "Second"}})
	m.Wait()

	assert.Equal(t, 1, backend.Len())
	doc, _ := backend.Get(got)
	assert.Equal(t, "Second", doc.Record.Title)
}

func TestPersist_UpsertWithoutUpdaterInserts(t *testing.T) {
	backend := memory.New(config.MemoryConfig{})
	backend.Seed(core.Document{ID: "r1"})
	m, _ := newManager(t, insertOnly{backend}, ModeUpsert)

	m.Persist(Job{Key: "r1", RemoteID: "r1", Record: core.MarkerRecord{Title: "New"}})
	m.Wait()

	assert.Equal(t, 2, backend.Len())
}

func TestPersist_FailureIsLoggedOnly(t *testing.T) {
	backend := memory.New(config.MemoryConfig{})
	backend.FailInserts(errors.New("quota exceeded"))
	m, logger := newManager(t, backend, ModeUpsert)

	called := false
	m.Persist(Job{
		Key:        "local-1",
		Record:     core.MarkerRecord{Title: "x"},
		OnInserted: func(string) { called = true },
	})
	m.Wait()

	assert.Equal(t, 1, logger.errorCount())
	assert.False(t, called)
	assert.Equal(t, 0, m.deps.Cache.Len())
	assert.Equal(t, 1, backend.InsertCalls())
}

func TestPersist_ConcurrentJobs(t *testing.T) {
	backend := memory.New(config.MemoryConfig{})
	m, _ := newManager(t, backend, ModeInsert)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Persist(Job{Key: "k", Record: core.MarkerRecord{Title: "t"}})
		}()
	}
	wg.Wait()
	m.Wait()

	assert.Equal(t, 50, backend.Len())
}
