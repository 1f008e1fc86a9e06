// pkg/core/marker.go
package core

import (
	"encoding/json"
	"time"
)

// Marker defaults applied when a pin is first placed on the map.
const (
	DefaultTitle       = "Store name"
	DefaultDescription = "What's on offer:"
)

// Coordinate is a WGS84 position in decimal degrees.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// ResourceLocator is an opaque reference to a selected image (file path, URI
// or object URL). The zero value means no image.
type ResourceLocator string

// IsZero reports whether no image is referenced.
func (r ResourceLocator) IsZero() bool {
	return r == ""
}

// String returns the locator as a plain string
func (r ResourceLocator) String() string {
	return string(r)
}

// MarshalJSON encodes the zero locator as null
func (r ResourceLocator) MarshalJSON() ([]byte, error) {
	if r.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(string(r))
}

// UnmarshalJSON accepts a string or null
func (r *ResourceLocator) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*r = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*r = ResourceLocator(s)
	return nil
}

// Marker is the local, in-session representation of a placed pin.
// RemoteID is empty until the marker is known to the remote store.
type Marker struct {
	Key         string          `json:"key"`
	RemoteID    string          `json:"remoteId,omitempty"`
	Coordinate  Coordinate      `json:"coordinate"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Image       ResourceLocator `json:"image,omitempty"`
}

// MarkerRecord is the shape written to the remote document store.
// CreatedAt is assigned by the backend on insert.
type MarkerRecord struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Image       ResourceLocator `json:"image"`
	Latitude    float64         `json:"latitude"`
	Longitude   float64         `json:"longitude"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// Document pairs a remote id with the record stored under it.
type Document struct {
	ID     string       `json:"id"`
	Record MarkerRecord `json:"record"`
}

// Record derives the full remote record for the marker's current fields.
func (m Marker) Record() MarkerRecord {
	return MarkerRecord{
		Title:       m.Title,
		Description: m.Description,
		Image:       m.Image,
		Latitude:    m.Coordinate.Latitude,
		Longitude:   m.Coordinate.Longitude,
	}
}

// MarkerFromDocument rebuilds a marker loaded from the remote store.
// The remote id doubles as the session key.
func MarkerFromDocument(doc Document) Marker {
	return Marker{
		Key:      doc.ID,
		RemoteID: doc.ID,
		Coordinate: Coordinate{
			Latitude:  doc.Record.Latitude,
			Longitude: doc.Record.Longitude,
		},
		Title:       doc.Record.Title,
		Description: doc.Record.Description,
		Image:       doc.Record.Image,
	}
}
