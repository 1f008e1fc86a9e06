package worker

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/storepins/pinboard/internal/cache"
	"github.com/storepins/pinboard/internal/storage"
	"github.com/storepins/pinboard/pkg/core"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Mode selects how an edit reaches the remote store.
type Mode string

const (
	// ModeInsert writes every edit as a new document.
	ModeInsert Mode = "insert"
	// ModeUpsert rewrites the marker's existing document when its remote id
	// is known and the backend supports updates.
	ModeUpsert Mode = "upsert"
)

const defaultTimeout = 30 * time.Second

// ParseMode maps a config value to a Mode. Empty means ModeInsert.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeInsert:
		return ModeInsert, nil
	case ModeUpsert:
		return ModeUpsert, nil
	}
	return "", fmt.Errorf("unknown persist mode: %q", s)
}

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Dependencies holds all dependencies for the worker manager
type Dependencies struct {
	Backend storage.Backend
	Cache   *cache.RemoteIDCache
	Logger  Logger
	Mode    Mode
	// Timeout bounds each background write. Zero means 30s.
	Timeout time.Duration
}

// Job is one full-record write for a marker.
type Job struct {
	Key      string
	RemoteID string
	Record   core.MarkerRecord
	// OnInserted receives the id of the first document created for Key in
	// upsert mode. It runs on the worker goroutine.
	OnInserted func(remoteID string)
}

// Manager runs detached background writes against the remote store. Writes
// are not queued or ordered; failures are logged and counted, never returned.
type Manager struct {
	deps    Dependencies
	updater storage.Updater
	wg      sync.WaitGroup

	succeeded metric.Int64Counter
	failed    metric.Int64Counter
	inflight  metric.Int64UpDownCounter
}

// NewManager creates a new worker manager.
// Uses the global OTel meter for metrics (no-op if not configured).
func NewManager(deps Dependencies) (*Manager, error) {
	if deps.Backend == nil {
		return nil, fmt.Errorf("worker: backend is required")
	}
	if deps.Mode == "" {
		deps.Mode = ModeInsert
	}
	if deps.Cache == nil {
		deps.Cache = cache.NewRemoteIDCache()
	}
	if deps.Timeout <= 0 {
		deps.Timeout = defaultTimeout
	}

	m := &Manager{deps: deps}
	if u, ok := deps.Backend.(storage.Updater); ok {
		m.updater = u
	}

	mt := meter()
	var err error

	m.succeeded, err = mt.Int64Counter(
		"persist.writes.succeeded",
		metric.WithDescription("Total background writes acknowledged by the remote store"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating succeeded counter: %w", err)
	}

	m.failed, err = mt.Int64Counter(
		"persist.writes.failed",
		metric.WithDescription("Total background writes that failed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating failed counter: %w", err)
	}

	m.inflight, err = mt.Int64UpDownCounter(
		"persist.writes.inflight",
		metric.WithDescription("Background writes currently in flight"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating inflight counter: %w", err)
	}

	return m, nil
}

// Mode returns the configured persist mode.
func (m *Manager) Mode() Mode {
	return m.deps.Mode
}

// Persist starts a detached write for job and returns immediately.
func (m *Manager) Persist(job Job) {
	m.wg.Add(1)
	m.inflight.Add(context.Background(), 1)
	go func() {
		defer m.wg.Done()
		defer m.inflight.Add(context.Background(), -1)

		ctx, cancel := context.WithTimeout(context.Background(), m.deps.Timeout)
		defer cancel()

		start := time.Now()
		op, id, err := m.write(ctx, job)
		opAttr := metric.WithAttributes(attribute.String("op", op))
		if err != nil {
			m.failed.Add(context.Background(), 1, opAttr)
			m.deps.Logger.Error("persist failed", "key", job.Key, "op", op, "duration", time.Since(start), "error", err)
			return
		}
		m.succeeded.Add(context.Background(), 1, opAttr)
		m.deps.Logger.Debug("persist complete", "key", job.Key, "op", op, "remoteId", id, "duration", time.Since(start))
	}()
}

func (m *Manager) write(ctx context.Context, job Job) (op, id string, err error) {
	if m.deps.Mode == ModeUpsert {
		id = job.RemoteID
		if id == "" {
			id, _ = m.deps.Cache.Get(job.Key)
		}
		if id != "" && m.updater != nil {
			return "update", id, m.updater.Update(ctx, id, job.Record)
		}
	}

	id, err = m.deps.Backend.Insert(ctx, job.Record)
	if err != nil {
		return "insert", "", err
	}

	if m.deps.Mode == ModeUpsert && m.deps.Cache.SetIfAbsent(job.Key, id) && job.OnInserted != nil {
		job.OnInserted(id)
	}
	return "insert", id, nil
}

// Wait blocks until every write started so far has finished.
func (m *Manager) Wait() {
	m.wg.Wait()
}
