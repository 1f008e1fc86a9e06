// internal/storage/storage.go
package storage

import (
	"context"
	"fmt"

	"github.com/storepins/pinboard/pkg/core"
)

// Backend is the remote document store every marker write and the initial
// load go through.
type Backend interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error

	// Insert stores rec as a new document and returns its id. The backend
	// assigns CreatedAt.
	Insert(ctx context.Context, rec core.MarkerRecord) (string, error)

	// ListAll returns every stored document in the store's natural order.
	// On failure the documents read before the failure may be returned
	// alongside the error.
	ListAll(ctx context.Context) ([]core.Document, error)
}

// Updater is an optional interface for backends that can rewrite an existing
// document in place.
type Updater interface {
	Update(ctx context.Context, id string, rec core.MarkerRecord) error
}

// Unavailable wraps a transport or service failure so callers can match
// core.ErrRemoteUnavailable while keeping the cause.
func Unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, core.ErrRemoteUnavailable, err)
}

// Rejected wraps a store-side refusal (validation, quota) so callers can
// match core.ErrRemoteRejected while keeping the cause.
func Rejected(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, core.ErrRemoteRejected, err)
}
