package aoi

import (
	"strings"

	"github.com/ctessum/geom/proj"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
)

const geographicProj4 = "+proj=longlat +datum=WGS84 +no_defs"

// epsgProj4 maps the supported meter-based buffer projections to proj4
// definitions. Buffering needs linear units, so only metric systems
// covering FSTopo's operating region are listed.
var epsgProj4 = map[int]string{
	// NAD83(NSRS2007) / California Albers, the historical default.
	3488: "+proj=aea +lat_1=34 +lat_2=40.5 +lat_0=0 +lon_0=-120 +x_0=0 +y_0=-4000000 +ellps=GRS80 +units=m +no_defs",
	// NAD83 / Conus Albers.
	5070: "+proj=aea +lat_1=29.5 +lat_2=45.5 +lat_0=23 +lon_0=-96 +x_0=0 +y_0=0 +ellps=GRS80 +units=m +no_defs",
	// Web Mercator.
	3857: "+proj=merc +a=6378137 +b=6378137 +lat_ts=0 +lon_0=0 +x_0=0 +y_0=0 +k=1 +units=m +nadgrids=@null +no_defs",
	// WGS84 UTM zones spanning the western US.
	32610: "+proj=utm +zone=10 +datum=WGS84 +units=m +no_defs",
	32611: "+proj=utm +zone=11 +datum=WGS84 +units=m +no_defs",
	32612: "+proj=utm +zone=12 +datum=WGS84 +units=m +no_defs",
	32613: "+proj=utm +zone=13 +datum=WGS84 +units=m +no_defs",
}

// toMeters converts a buffer distance to meters. The empty unit defaults
// to miles, matching the command surface.
func toMeters(dist float64, unit string) (float64, error) {
	switch strings.ToLower(unit) {
	case "mile", "":
		return dist * 1609.344, nil
	case "kilometer":
		return dist * 1000, nil
	case "meter":
		return dist, nil
	}
	return 0, eris.Errorf("aoi: unsupported buffer unit %q (want mile, kilometer, or meter)", unit)
}

// newTransform builds a geographic-to-projected coordinate transform for
// a supported EPSG code.
func newTransform(epsg int) (proj.Transformer, error) {
	proj4, ok := epsgProj4[epsg]
	if !ok {
		return nil, eris.Errorf("aoi: unsupported buffer projection EPSG:%d", epsg)
	}
	src, err := proj.Parse(geographicProj4)
	if err != nil {
		return nil, eris.Wrap(err, "aoi: parse geographic projection")
	}
	dst, err := proj.Parse(proj4)
	if err != nil {
		return nil, eris.Wrapf(err, "aoi: parse EPSG:%d", epsg)
	}
	t, err := src.NewTransform(dst)
	if err != nil {
		return nil, eris.Wrapf(err, "aoi: build transform to EPSG:%d", epsg)
	}
	return t, nil
}

// projected holds the AOI geometry decomposed into points and segments
// in the buffer projection, precomputed once so the per-cell distance
// test stays cheap.
type projected struct {
	fwd    proj.Transformer
	points [][2]float64
	segs   [][4]float64
}

func newProjected(geoms []geom.T, fwd proj.Transformer) (*projected, error) {
	p := &projected{fwd: fwd}

	var transformErr error
	for _, g := range geoms {
		switch g.(type) {
		case *geom.Point, *geom.MultiPoint:
			eachPoint(g, func(x, y float64) {
				px, py, err := fwd(x, y)
				if err != nil {
					transformErr = err
					return
				}
				p.points = append(p.points, [2]float64{px, py})
			})
		default:
			eachSegment(g, func(x1, y1, x2, y2 float64) {
				px1, py1, err := fwd(x1, y1)
				if err != nil {
					transformErr = err
					return
				}
				px2, py2, err := fwd(x2, y2)
				if err != nil {
					transformErr = err
					return
				}
				p.segs = append(p.segs, [4]float64{px1, py1, px2, py2})
			})
		}
	}
	if transformErr != nil {
		return nil, eris.Wrap(transformErr, "aoi: project geometry")
	}
	if len(p.points) == 0 && len(p.segs) == 0 {
		return nil, eris.New("aoi: geometry empty after projection")
	}
	return p, nil
}

// projectRect transforms the rectangle's corners into the buffer
// projection. Corner order is west/south, east/south, east/north,
// west/north so consecutive corners form the rectangle's edges.
func (p *projected) projectRect(w, s, e, n float64) ([4][2]float64, error) {
	var out [4][2]float64
	corners := [4][2]float64{{w, s}, {e, s}, {e, n}, {w, n}}
	for i, c := range corners {
		x, y, err := p.fwd(c[0], c[1])
		if err != nil {
			return out, err
		}
		out[i] = [2]float64{x, y}
	}
	return out, nil
}

// withinDistance reports whether any part of the AOI geometry lies
// within d meters of the projected rectangle's boundary. Callers handle
// the overlapping case separately, so boundary distance is sufficient.
func (p *projected) withinDistance(corners [4][2]float64, d float64) bool {
	for i := range 4 {
		a := corners[i]
		b := corners[(i+1)%4]
		for _, s := range p.segs {
			if segSegDist(a[0], a[1], b[0], b[1], s[0], s[1], s[2], s[3]) <= d {
				return true
			}
		}
		for _, pt := range p.points {
			if pointSegDist(pt[0], pt[1], a[0], a[1], b[0], b[1]) <= d {
				return true
			}
		}
	}
	return false
}

// segSegDist returns the minimum distance between two segments.
func segSegDist(ax, ay, bx, by, cx, cy, dx, dy float64) float64 {
	return xy.DistanceFromLineToLine(
		geom.Coord{ax, ay}, geom.Coord{bx, by},
		geom.Coord{cx, cy}, geom.Coord{dx, dy},
	)
}

// pointSegDist returns the distance from point P to segment AB.
func pointSegDist(px, py, ax, ay, bx, by float64) float64 {
	return xy.DistanceFromPointToLine(geom.Coord{px, py}, geom.Coord{ax, ay}, geom.Coord{bx, by})
}
