// Package aoi resolves an area of interest from either an explicit
// bounding box or a geospatial file, optionally buffered outward by a
// linear distance computed in a meter-based projection.
package aoi

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// ErrInvalidBoundingBox marks a malformed or degenerate bounding box.
var ErrInvalidBoundingBox = eris.New("aoi: invalid bounding box")

// ErrUnreadableGeometrySource marks a geometry file that is missing,
// unparsable, or has no usable coordinate reference system.
var ErrUnreadableGeometrySource = eris.New("aoi: unreadable geometry source")

// AOI is an immutable area of interest in geographic coordinates.
//
// A buffered AOI is represented as the source geometry plus a buffer
// distance in a metric projection rather than a materialized offset
// polygon: a rectangle intersects the buffered region exactly when its
// distance to the source geometry, measured in the buffer projection,
// is at most the buffer distance.
type AOI struct {
	geoms        []geom.T
	bufferMeters float64
	proj         *projected
	bounds       [4]float64 // west, south, east, north, buffer-expanded
}

// FromBBox builds an AOI from four ordered geographic coordinates.
func FromBBox(west, south, east, north float64) (*AOI, error) {
	for _, v := range []float64{west, south, east, north} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, eris.Wrap(ErrInvalidBoundingBox, "non-finite coordinate")
		}
	}
	if west >= east || south >= north {
		return nil, eris.Wrapf(ErrInvalidBoundingBox, "want west < east and south < north, got (%v, %v, %v, %v)", west, south, east, north)
	}
	if west < -180 || east > 180 || south < -90 || north > 90 {
		return nil, eris.Wrapf(ErrInvalidBoundingBox, "coordinates out of geographic range (%v, %v, %v, %v)", west, south, east, north)
	}

	poly := geom.NewPolygonFlat(geom.XY, []float64{
		west, south,
		east, south,
		east, north,
		west, north,
		west, south,
	}, []int{10}).SetSRID(4326)

	return &AOI{
		geoms:  []geom.T{poly},
		bounds: [4]float64{west, south, east, north},
	}, nil
}

// Bounds returns the geographic bounding box of the AOI, expanded by the
// buffer distance when one was applied.
func (a *AOI) Bounds() (west, south, east, north float64) {
	return a.bounds[0], a.bounds[1], a.bounds[2], a.bounds[3]
}

// IntersectsRect reports whether the given geographic rectangle
// intersects the (possibly buffered) AOI. Rectangles that merely share
// a boundary line with an areal AOI are not counted, so a bounding box
// exactly aligned to one grid cell matches that cell alone; degenerate
// geometries (points, lines) lying exactly on a cell edge match the
// cells on both sides.
func (a *AOI) IntersectsRect(west, south, east, north float64) (bool, error) {
	for _, g := range a.geoms {
		if rectIntersectsGeom(west, south, east, north, g) {
			return true, nil
		}
	}
	if a.bufferMeters <= 0 || a.proj == nil {
		return false, nil
	}

	corners, err := a.proj.projectRect(west, south, east, north)
	if err != nil {
		return false, eris.Wrap(err, "aoi: project cell rectangle")
	}
	return a.proj.withinDistance(corners, a.bufferMeters), nil
}

// geomBounds accumulates the coordinate bounds of all input geometries.
func geomBounds(geoms []geom.T) [4]float64 {
	b := [4]float64{math.Inf(1), math.Inf(1), math.Inf(-1), math.Inf(-1)}
	for _, g := range geoms {
		eachPoint(g, func(x, y float64) {
			b[0] = math.Min(b[0], x)
			b[1] = math.Min(b[1], y)
			b[2] = math.Max(b[2], x)
			b[3] = math.Max(b[3], y)
		})
	}
	return b
}

// expandBounds grows geographic bounds by a metric distance. The
// conversion is deliberately generous; over-wide bounds only add
// candidate cells that the exact intersection test discards.
func expandBounds(b [4]float64, meters float64) [4]float64 {
	const metersPerDegreeLat = 110574.0
	dLat := meters / metersPerDegreeLat

	maxAbsLat := math.Max(math.Abs(b[1]), math.Abs(b[3]))
	cosLat := math.Cos(maxAbsLat * math.Pi / 180)
	if cosLat < 0.01 {
		cosLat = 0.01
	}
	dLon := meters / (111320.0 * cosLat)

	return [4]float64{
		math.Max(b[0]-dLon, -180),
		math.Max(b[1]-dLat, -90),
		math.Min(b[2]+dLon, 180),
		math.Min(b[3]+dLat, 90),
	}
}
