// Package media acquires images for the marker editor. A Picker first asks
// for permission to read the media library and then lets the user choose
// one image; the result is an opaque core.ResourceLocator.
package media

import (
	"context"

	"github.com/storepins/pinboard/pkg/core"
)

// Permission is the outcome of asking for media library access.
type Permission int

const (
	PermissionDenied Permission = iota
	PermissionGranted
)

func (p Permission) String() string {
	if p == PermissionGranted {
		return "granted"
	}
	return "denied"
}

// Pick is the outcome of a pick. Cancelled is a normal outcome, not an error.
type Pick struct {
	Cancelled bool
	Locator   core.ResourceLocator
}

// Cancelled is the pick returned when the user backs out.
var Cancelled = Pick{Cancelled: true}

// Picker is the media library adapter.
type Picker interface {
	RequestPermission(ctx context.Context) (Permission, error)
	PickImage(ctx context.Context) (Pick, error)
}
