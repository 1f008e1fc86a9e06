package mapsurface

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storepins/pinboard/pkg/core"
)

type recordingSurface struct {
	mu      sync.Mutex
	renders [][]Pin
}

func (s *recordingSurface) Render(pins []Pin) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.renders = append(s.renders, pins)
}

func (s *recordingSurface) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.renders)
}

type fakeSource struct {
	markers []core.Marker
	fns     []func([]core.Marker)
}

func (f *fakeSource) List() []core.Marker { return f.markers }

func (f *fakeSource) OnChange(fn func([]core.Marker)) { f.fns = append(f.fns, fn) }

func (f *fakeSource) set(markers ...core.Marker) {
	f.markers = markers
	for _, fn := range f.fns {
		fn(markers)
	}
}

func TestEvent_Coordinate(t *testing.T) {
	e := Event{Kind: LongPress, Latitude: 59.91, Longitude: 10.75, Timestamp: time.Now()}
	assert.Equal(t, core.Coordinate{Latitude: 59.91, Longitude: 10.75}, e.Coordinate())
}

func TestPinsFromMarkers(t *testing.T) {
	markers := []core.Marker{
		{Key: "a", Coordinate: core.Coordinate{Latitude: 1, Longitude: 2}, Title: "A", Description: "da", Image: "file:///a"},
		{Key: "b", Title: "B"},
	}

	pins := PinsFromMarkers(markers)
	require.Len(t, pins, 2)
	assert.Equal(t, Pin{Key: "a", Coordinate: core.Coordinate{Latitude: 1, Longitude: 2}, Title: "A", Description: "da"}, pins[0])
	assert.Equal(t, "b", pins[1].Key)

	assert.Empty(t, PinsFromMarkers(nil))
}

func TestBind_RendersOnFirstBind(t *testing.T) {
	src := &fakeSource{}
	surface := &recordingSurface{}

	b := Bind(src, surface)

	assert.Equal(t, 1, surface.count())
	assert.Equal(t, 0, b.Rendered())
}

func TestBind_RendersOnCountChangeOnly(t *testing.T) {
	src := &fakeSource{}
	surface := &recordingSurface{}
	b := Bind(src, surface)

	src.set(core.Marker{Key: "a"})
	src.set(core.Marker{Key: "a", Title: "edited"})
	src.set(core.Marker{Key: "a"}, core.Marker{Key: "b"})

	assert.Equal(t, 3, surface.count())
	assert.Equal(t, 2, b.Rendered())

	surface.mu.Lock()
	last := surface.renders[len(surface.renders)-1]
	surface.mu.Unlock()
	assert.Equal(t, "b", last[1].Key)
}

func TestBind_DropsStaleSnapshot(t *testing.T) {
	src := &fakeSource{}
	surface := &recordingSurface{}
	b := Bind(src, surface)

	a, c := core.Marker{Key: "a"}, core.Marker{Key: "c"}
	newer := []core.Marker{a, c}
	older := []core.Marker{a}
	src.markers = newer
	for _, fn := range src.fns {
		fn(newer)
		fn(older)
	}

	assert.Equal(t, 2, b.Rendered())
	surface.mu.Lock()
	last := surface.renders[len(surface.renders)-1]
	surface.mu.Unlock()
	assert.Len(t, last, 2)
}
