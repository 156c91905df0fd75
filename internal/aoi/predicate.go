package aoi

import (
	cgeom "github.com/ctessum/geom"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy/lineintersector"
)

// arealShrink is the margin, in degrees, by which a rectangle is shrunk
// before testing against an areal geometry. It keeps a rectangle that
// only shares a boundary line with a polygon from counting as
// intersecting, while being far below the precision of any real input
// (~0.1 mm on the ground).
const arealShrink = 1e-9

// rectIntersectsGeom reports whether the closed rectangle intersects g.
// Areal geometries must overlap the rectangle's interior; points and
// lines intersect inclusively, boundary touches counted.
func rectIntersectsGeom(w, s, e, n float64, g geom.T) bool {
	switch t := g.(type) {
	case *geom.Point:
		c := t.Coords()
		return pointInRect(c[0], c[1], w, s, e, n)

	case *geom.MultiPoint:
		for _, c := range t.Coords() {
			if pointInRect(c[0], c[1], w, s, e, n) {
				return true
			}
		}
		return false

	case *geom.LineString:
		return lineIntersectsRect(t.Coords(), w, s, e, n)

	case *geom.MultiLineString:
		for _, line := range t.Coords() {
			if lineIntersectsRect(line, w, s, e, n) {
				return true
			}
		}
		return false

	case *geom.Polygon:
		return polygonIntersectsRect(t.Coords(), w, s, e, n)

	case *geom.MultiPolygon:
		for _, rings := range t.Coords() {
			if polygonIntersectsRect(rings, w, s, e, n) {
				return true
			}
		}
		return false

	case *geom.GeometryCollection:
		for _, sub := range t.Geoms() {
			if rectIntersectsGeom(w, s, e, n, sub) {
				return true
			}
		}
		return false
	}

	return false
}

// lineIntersectsRect tests a coordinate chain against the closed rectangle.
func lineIntersectsRect(coords []geom.Coord, w, s, e, n float64) bool {
	if len(coords) == 1 {
		return pointInRect(coords[0][0], coords[0][1], w, s, e, n)
	}
	for i := 0; i+1 < len(coords); i++ {
		if segIntersectsRect(coords[i][0], coords[i][1], coords[i+1][0], coords[i+1][1], w, s, e, n) {
			return true
		}
	}
	return false
}

// polygonIntersectsRect clips one polygon (outer ring plus holes)
// against the rectangle shrunk by arealShrink and checks for remaining
// area. The clipping handles holes, containment either way, and
// partial overlap uniformly.
func polygonIntersectsRect(rings [][]geom.Coord, w, s, e, n float64) bool {
	if len(rings) == 0 || len(rings[0]) == 0 {
		return false
	}
	w, s, e, n = shrinkRect(w, s, e, n)

	rect := cgeom.Polygon{{
		{X: w, Y: s},
		{X: e, Y: s},
		{X: e, Y: n},
		{X: w, Y: n},
	}}

	poly := make(cgeom.Polygon, 0, len(rings))
	for _, ring := range rings {
		path := make(cgeom.Path, 0, len(ring))
		for _, c := range ring {
			path = append(path, cgeom.Point{X: c[0], Y: c[1]})
		}
		poly = append(poly, path)
	}

	isect := poly.Intersection(rect)
	return isect != nil && isect.Area() > 0
}

func shrinkRect(w, s, e, n float64) (float64, float64, float64, float64) {
	if e-w > 2*arealShrink && n-s > 2*arealShrink {
		return w + arealShrink, s + arealShrink, e - arealShrink, n - arealShrink
	}
	return w, s, e, n
}

func pointInRect(x, y, w, s, e, n float64) bool {
	return x >= w && x <= e && y >= s && y <= n
}

// segIntersectsRect reports whether segment (x1,y1)-(x2,y2) touches the
// closed rectangle.
func segIntersectsRect(x1, y1, x2, y2, w, s, e, n float64) bool {
	if pointInRect(x1, y1, w, s, e, n) || pointInRect(x2, y2, w, s, e, n) {
		return true
	}
	// Both endpoints outside: check against each rectangle edge.
	return segmentsIntersect(x1, y1, x2, y2, w, s, e, s) ||
		segmentsIntersect(x1, y1, x2, y2, e, s, e, n) ||
		segmentsIntersect(x1, y1, x2, y2, e, n, w, n) ||
		segmentsIntersect(x1, y1, x2, y2, w, n, w, s)
}

// segmentsIntersect reports whether segments AB and CD intersect,
// including endpoint touches and collinear overlap.
func segmentsIntersect(ax, ay, bx, by, cx, cy, dx, dy float64) bool {
	res := lineintersector.LineIntersectsLine(lineintersector.RobustLineIntersector{},
		geom.Coord{ax, ay}, geom.Coord{bx, by},
		geom.Coord{cx, cy}, geom.Coord{dx, dy},
	)
	return res.HasIntersection()
}

// eachPoint visits every coordinate of g.
func eachPoint(g geom.T, fn func(x, y float64)) {
	switch t := g.(type) {
	case *geom.Point:
		c := t.Coords()
		fn(c[0], c[1])
	case *geom.MultiPoint:
		for _, c := range t.Coords() {
			fn(c[0], c[1])
		}
	case *geom.LineString:
		for _, c := range t.Coords() {
			fn(c[0], c[1])
		}
	case *geom.MultiLineString:
		for _, line := range t.Coords() {
			for _, c := range line {
				fn(c[0], c[1])
			}
		}
	case *geom.Polygon:
		for _, ring := range t.Coords() {
			for _, c := range ring {
				fn(c[0], c[1])
			}
		}
	case *geom.MultiPolygon:
		for _, rings := range t.Coords() {
			for _, ring := range rings {
				for _, c := range ring {
					fn(c[0], c[1])
				}
			}
		}
	case *geom.GeometryCollection:
		for _, sub := range t.Geoms() {
			eachPoint(sub, fn)
		}
	}
}

// eachSegment visits every line or ring segment of g. Point geometries
// yield nothing.
func eachSegment(g geom.T, fn func(x1, y1, x2, y2 float64)) {
	visitChain := func(coords []geom.Coord) {
		for i := 0; i+1 < len(coords); i++ {
			fn(coords[i][0], coords[i][1], coords[i+1][0], coords[i+1][1])
		}
	}

	switch t := g.(type) {
	case *geom.LineString:
		visitChain(t.Coords())
	case *geom.MultiLineString:
		for _, line := range t.Coords() {
			visitChain(line)
		}
	case *geom.Polygon:
		for _, ring := range t.Coords() {
			visitChain(ring)
		}
	case *geom.MultiPolygon:
		for _, rings := range t.Coords() {
			for _, ring := range rings {
				visitChain(ring)
			}
		}
	case *geom.GeometryCollection:
		for _, sub := range t.Geoms() {
			eachSegment(sub, fn)
		}
	}
}
