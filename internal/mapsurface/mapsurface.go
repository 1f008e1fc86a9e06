// Package mapsurface is the boundary between the marker store and whatever
// draws the map.
package mapsurface

import (
	"sync"
	"time"

	"github.com/storepins/pinboard/pkg/core"
)

// EventKind distinguishes map gestures.
type EventKind string

const (
	LongPress EventKind = "longpress"
	PinPress  EventKind = "pinpress"
)

// Event is a gesture reported by the surface. Key is set for PinPress only.
type Event struct {
	Kind      EventKind
	Latitude  float64
	Longitude float64
	Timestamp time.Time
	Key       string
}

// Coordinate returns the event position.
func (e Event) Coordinate() core.Coordinate {
	return core.Coordinate{Latitude: e.Latitude, Longitude: e.Longitude}
}

// Pin is what the surface draws for one marker.
type Pin struct {
	Key         string          `json:"key"`
	Coordinate  core.Coordinate `json:"coordinate"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
}

// PinsFromMarkers maps markers to pins, keeping order.
func PinsFromMarkers(markers []core.Marker) []Pin {
	pins := make([]Pin, len(markers))
	for i, m := range markers {
		pins[i] = Pin{
			Key:         m.Key,
			Coordinate:  m.Coordinate,
			Title:       m.Title,
			Description: m.Description,
		}
	}
	return pins
}

// Surface draws pins.
type Surface interface {
	Render(pins []Pin)
}

// Source is a marker collection that reports changes. *markers.Store
// implements it.
type Source interface {
	List() []core.Marker
	OnChange(fn func(markers []core.Marker))
}

// Binder re-renders a surface when the number of markers grows. Edits that
// keep the count do not trigger a render. The collection is append-only, so
// a snapshot no longer than the last render is stale: observers may deliver
// concurrent snapshots out of order and those are dropped.
type Binder struct {
	surface Surface

	mu       sync.Mutex
	rendered int
}

// Bind renders the current markers once and subscribes to src.
func Bind(src Source, surface Surface) *Binder {
	b := &Binder{surface: surface, rendered: -1}
	src.OnChange(b.update)
	b.update(src.List())
	return b
}

func (b *Binder) update(markers []core.Marker) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(markers) <= b.rendered {
		return
	}
	b.rendered = len(markers)
	b.surface.Render(PinsFromMarkers(markers))
}

// Rendered returns the marker count of the last render.
func (b *Binder) Rendered() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rendered
}
