package aoi

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// DefaultBufferEPSG is the buffer projection used when none is given:
// NAD83(NSRS2007) / California Albers.
const DefaultBufferEPSG = 3488

// FileOptions control optional buffering of geometry loaded from a file.
type FileOptions struct {
	BufferDist float64 // outward buffer distance; zero means no buffering
	BufferUnit string  // mile (default), kilometer, or meter
	BufferEPSG int     // meter-based projection used for buffering
}

// FromFile builds an AOI from a geospatial file, buffered outward when a
// distance is given. All geometries in the file contribute to the AOI.
func FromFile(path string, opts FileOptions) (*AOI, error) {
	var geoms []geom.T
	var err error

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".shp":
		geoms, err = readShapefile(path)
	case ".geojson", ".json":
		geoms, err = readGeoJSON(path)
	default:
		return nil, eris.Wrapf(ErrUnreadableGeometrySource, "%s: unsupported format %q", path, ext)
	}
	if err != nil {
		return nil, err
	}
	if len(geoms) == 0 {
		return nil, eris.Wrapf(ErrUnreadableGeometrySource, "%s: no geometries found", path)
	}

	if opts.BufferDist < 0 {
		return nil, eris.Errorf("aoi: buffer distance must be non-negative, got %v", opts.BufferDist)
	}

	a := &AOI{geoms: geoms}
	bounds := geomBounds(geoms)

	if opts.BufferDist > 0 {
		meters, err := toMeters(opts.BufferDist, opts.BufferUnit)
		if err != nil {
			return nil, err
		}
		epsg := opts.BufferEPSG
		if epsg == 0 {
			epsg = DefaultBufferEPSG
		}
		fwd, err := newTransform(epsg)
		if err != nil {
			return nil, err
		}
		p, err := newProjected(geoms, fwd)
		if err != nil {
			return nil, err
		}
		a.bufferMeters = meters
		a.proj = p
		bounds = expandBounds(bounds, meters)
	}

	a.bounds = bounds
	return a, nil
}

// readGeoJSON loads a GeoJSON document. RFC 7946 fixes the coordinate
// reference system to geographic WGS84, which is what the grid math
// expects.
func readGeoJSON(path string) ([]geom.T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(ErrUnreadableGeometrySource, "read %s: %v", path, err)
	}

	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, eris.Wrapf(ErrUnreadableGeometrySource, "parse %s: %v", path, err)
	}

	var geoms []geom.T
	switch envelope.Type {
	case "FeatureCollection":
		var fc geojson.FeatureCollection
		if err := json.Unmarshal(data, &fc); err != nil {
			return nil, eris.Wrapf(ErrUnreadableGeometrySource, "parse %s: %v", path, err)
		}
		for _, f := range fc.Features {
			if f.Geometry != nil {
				geoms = append(geoms, f.Geometry)
			}
		}

	case "Feature":
		var f geojson.Feature
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, eris.Wrapf(ErrUnreadableGeometrySource, "parse %s: %v", path, err)
		}
		if f.Geometry != nil {
			geoms = append(geoms, f.Geometry)
		}

	default:
		var g geom.T
		if err := geojson.Unmarshal(data, &g); err != nil {
			return nil, eris.Wrapf(ErrUnreadableGeometrySource, "parse %s: %v", path, err)
		}
		geoms = append(geoms, g)
	}

	return geoms, nil
}
