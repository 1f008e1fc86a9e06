package geo

import (
	"errors"
	"fmt"
	"math"

	"github.com/storepins/pinboard/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"
)

// GEO POINTS
// Marker coordinates arrive as EPSG:4326 (lat/lon in degrees). SQL backends
// additionally store an EPSG:3857 point as WKB so the table can be indexed or
// rendered by tile servers without reprojecting.

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// ValidateCoordinate rejects NaN/Inf values and positions outside the WGS84 range.
func ValidateCoordinate(c core.Coordinate) error {
	if math.IsNaN(c.Latitude) || math.IsNaN(c.Longitude) ||
		math.IsInf(c.Latitude, 0) || math.IsInf(c.Longitude, 0) {
		return ErrInvalidCoordinates
	}
	if c.Latitude < -90 || c.Latitude > 90 {
		return fmt.Errorf("%w: latitude %f out of range", ErrInvalidCoordinates, c.Latitude)
	}
	if c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("%w: longitude %f out of range", ErrInvalidCoordinates, c.Longitude)
	}
	return nil
}

// Coords3857From4326 creates a web mercator point from a longitude and latitude
func Coords3857From4326(
	longitude float64,
	latitude float64,
) (
	point geom.Point,
	err error,
) {
	if err := ValidateCoordinate(core.Coordinate{Latitude: latitude, Longitude: longitude}); err != nil {
		return geom.NewEmptyPoint(geom.DimXY), err
	}
	epsg := wgs84.EPSG()
	f := epsg.Transform(4326, 3857)
	x, y, _ := f(longitude, latitude, 0)
	point = geom.NewPoint(
		geom.Coordinates{
			XY:   geom.XY{X: x, Y: y},
			Type: geom.DimXY,
		},
	)
	return point, nil
}

// LocationWKB returns the EPSG:3857 WKB encoding of a coordinate.
func LocationWKB(c core.Coordinate) ([]byte, error) {
	point, err := Coords3857From4326(c.Longitude, c.Latitude)
	if err != nil {
		return nil, err
	}
	return point.AsBinary(), nil
}
