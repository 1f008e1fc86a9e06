// internal/storage/storage_test.go
package storage_test

import (
	"errors"
	"testing"

	"github.com/storepins/pinboard/internal/storage"
	"github.com/storepins/pinboard/pkg/core"
	"github.com/stretchr/testify/assert"
)

func TestErrorWrappers(t *testing.T) {
	cause := errors.New("connection refused")

	tests := []struct {
		name     string
		err      error
		sentinel error
		other    error
	}{
		{"unavailable", storage.Unavailable("insert", cause), core.ErrRemoteUnavailable, core.ErrRemoteRejected},
		{"rejected", storage.Rejected("insert", cause), core.ErrRemoteRejected, core.ErrRemoteUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.err, tt.sentinel)
			assert.ErrorIs(t, tt.err, cause)
			assert.NotErrorIs(t, tt.err, tt.other)
			assert.Contains(t, tt.err.Error(), "insert")
			assert.Contains(t, tt.err.Error(), "connection refused")
		})
	}
}
