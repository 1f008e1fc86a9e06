package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/storepins/pinboard/internal/storage"
	"github.com/storepins/pinboard/pkg/core"
	"github.com/storepins/pinboard/pkg/streaming"
)

var (
	_ storage.Backend = (*Backend)(nil)
	_ storage.Updater = (*Backend)(nil)
)

// Config holds WebSocket backend configuration.
type Config struct {
	URL     string
	Secret  string
	Timeout time.Duration
}

// Backend talks to a marker document service over a single WebSocket.
// Each call is a request/response pair matched by envelope id.
type Backend struct {
	conn  *connection
	cfg   Config
	newID func() string
}

// New creates a new WebSocket storage backend. A nil logger uses slog.Default().
func New(cfg Config, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		conn:  newConnection(logger.With("component", "websocket")),
		cfg:   cfg,
		newID: uuid.NewString,
	}
}

// Init connects to the WebSocket server.
func (b *Backend) Init(ctx context.Context) error {
	if err := b.conn.dial(ctx, b.cfg.URL, b.cfg.Secret); err != nil {
		return storage.Unavailable("websocket init", err)
	}
	return nil
}

// Close disconnects from the WebSocket server.
func (b *Backend) Close() error {
	return b.conn.close()
}

// roundTrip sends one request and classifies the outcome.
func (b *Backend) roundTrip(ctx context.Context, op, msgType string, payload any) (streaming.Response, error) {
	id := b.newID()
	env, err := streaming.NewEnvelope(msgType, id, payload)
	if err != nil {
		return streaming.Response{}, storage.Rejected(op, err)
	}
	data, err := json.Marshal(env)
	if err != nil {
		return streaming.Response{}, storage.Rejected(op, fmt.Errorf("marshal %s envelope: %w", msgType, err))
	}

	resp, err := b.conn.request(ctx, id, data, b.cfg.Timeout)
	if err != nil {
		return streaming.Response{}, storage.Unavailable(op, err)
	}
	if resp.Failed() {
		return resp, responseError(op, resp)
	}
	return resp, nil
}

func responseError(op string, resp streaming.Response) error {
	msg := resp.Error
	if msg == "" {
		msg = resp.Code
	}
	err := errors.New(msg)
	if resp.Code == streaming.CodeRejected {
		return storage.Rejected(op, err)
	}
	return storage.Unavailable(op, err)
}

// Insert sends insert_marker and returns the id from the ack.
func (b *Backend) Insert(ctx context.Context, rec core.MarkerRecord) (string, error) {
	resp, err := b.roundTrip(ctx, "websocket insert", streaming.TypeInsertMarker, rec)
	if err != nil {
		return "", err
	}
	if resp.DocID == "" {
		return "", storage.Unavailable("websocket insert", errors.New("ack without document id"))
	}
	return resp.DocID, nil
}

// Update sends update_marker for an existing document.
func (b *Backend) Update(ctx context.Context, id string, rec core.MarkerRecord) error {
	_, err := b.roundTrip(ctx, "websocket update", streaming.TypeUpdateMarker, streaming.UpdateMarkerPayload{ID: id, Record: rec})
	return err
}

// ListAll sends list_markers. A failed listing may still carry the
// documents the server read before failing; they are returned with the error.
func (b *Backend) ListAll(ctx context.Context) ([]core.Document, error) {
	resp, err := b.roundTrip(ctx, "websocket list", streaming.TypeListMarkers, nil)
	return resp.Documents, err
}
