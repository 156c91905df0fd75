package aoi

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wgs84PrjWKT = `GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137.0,298.257223563]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]]`

// writeTestShapefile writes the given shapes plus a geographic .prj
// sidecar and returns the .shp path.
func writeTestShapefile(t *testing.T, shapeType shp.ShapeType, shapes []shp.Shape) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "aoi.shp")

	w, err := shp.Create(path, shapeType)
	require.NoError(t, err)
	for _, s := range shapes {
		w.Write(s)
	}
	w.Close()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "aoi.prj"), []byte(wgs84PrjWKT), 0o644))
	return path
}

func TestFromFile_ShapefilePolygon(t *testing.T) {
	ring := []shp.Point{
		{X: -121.7, Y: 46.2},
		{X: -121.7, Y: 46.6},
		{X: -121.3, Y: 46.6},
		{X: -121.3, Y: 46.2},
		{X: -121.7, Y: 46.2},
	}
	poly := shp.Polygon(*shp.NewPolyLine([][]shp.Point{ring}))
	path := writeTestShapefile(t, shp.POLYGON, []shp.Shape{&poly})

	a, err := FromFile(path, FileOptions{})
	require.NoError(t, err)

	w, s, e, n := a.Bounds()
	assert.InDelta(t, -121.7, w, 1e-9)
	assert.InDelta(t, 46.2, s, 1e-9)
	assert.InDelta(t, -121.3, e, 1e-9)
	assert.InDelta(t, 46.6, n, 1e-9)

	// A cell inside the polygon.
	ok, err := a.IntersectsRect(-121.625, 46.25, -121.5, 46.375)
	require.NoError(t, err)
	assert.True(t, ok)

	// A cell well outside it.
	ok, err = a.IntersectsRect(-120.5, 46.25, -120.375, 46.375)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFromFile_ShapefileMultiPartPolyLine(t *testing.T) {
	// Two disjoint trail segments in one record.
	line := shp.NewPolyLine([][]shp.Point{
		{{X: -121.62, Y: 46.26}, {X: -121.61, Y: 46.28}},
		{{X: -121.12, Y: 46.76}, {X: -121.11, Y: 46.78}},
	})
	path := writeTestShapefile(t, shp.POLYLINE, []shp.Shape{line})

	a, err := FromFile(path, FileOptions{})
	require.NoError(t, err)

	// Cells over each part match; a cell between them does not.
	ok, err := a.IntersectsRect(-121.625, 46.25, -121.5, 46.375)
	require.NoError(t, err)
	assert.True(t, ok, "first part")

	ok, err = a.IntersectsRect(-121.125, 46.75, -121.0, 46.875)
	require.NoError(t, err)
	assert.True(t, ok, "second part")

	ok, err = a.IntersectsRect(-121.375, 46.5, -121.25, 46.625)
	require.NoError(t, err)
	assert.False(t, ok, "gap between the parts")
}

func TestFromFile_ShapefilePoint(t *testing.T) {
	path := writeTestShapefile(t, shp.POINT, []shp.Shape{
		&shp.Point{X: -121.55, Y: 46.3},
	})

	a, err := FromFile(path, FileOptions{})
	require.NoError(t, err)

	ok, err := a.IntersectsRect(-121.625, 46.25, -121.5, 46.375)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = a.IntersectsRect(-121.5, 46.25, -121.375, 46.375)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFromFile_ShapefileProjectedPrjRejected(t *testing.T) {
	ring := []shp.Point{
		{X: 500000, Y: 5100000},
		{X: 500000, Y: 5200000},
		{X: 600000, Y: 5200000},
		{X: 500000, Y: 5100000},
	}
	poly := shp.Polygon(*shp.NewPolyLine([][]shp.Point{ring}))
	path := writeTestShapefile(t, shp.POLYGON, []shp.Shape{&poly})

	// Replace the sidecar with a projected coordinate system.
	prj := filepath.Join(filepath.Dir(path), "aoi.prj")
	require.NoError(t, os.WriteFile(prj, []byte(`PROJCS["WGS_1984_UTM_Zone_10N",GEOGCS["GCS_WGS_1984"]]`), 0o644))

	_, err := FromFile(path, FileOptions{})
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrUnreadableGeometrySource))
}
