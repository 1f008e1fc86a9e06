// Package convert maps between GORM rows and core marker types.
package convert

import (
	"fmt"
	"strconv"

	"github.com/storepins/pinboard/internal/geo"
	"github.com/storepins/pinboard/internal/model"
	"github.com/storepins/pinboard/pkg/core"
)

// imageColumn maps an absent locator to SQL NULL.
func imageColumn(img core.ResourceLocator) *string {
	if img.IsZero() {
		return nil
	}
	s := img.String()
	return &s
}

// CoreToMarker converts a core.MarkerRecord to a GORM model.Marker.
// CreatedAt is left zero so GORM stamps it at insert time.
func CoreToMarker(rec core.MarkerRecord) (model.Marker, error) {
	wkb, err := geo.LocationWKB(core.Coordinate{Latitude: rec.Latitude, Longitude: rec.Longitude})
	if err != nil {
		return model.Marker{}, err
	}
	return model.Marker{
		Title:       rec.Title,
		Description: rec.Description,
		Image:       imageColumn(rec.Image),
		Latitude:    rec.Latitude,
		Longitude:   rec.Longitude,
		Location:    wkb,
	}, nil
}

// ParseID turns a document id back into a primary key.
func ParseID(id string) (uint, error) {
	n, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid marker id %q: %w", id, core.ErrNotFound)
	}
	return uint(n), nil
}
