// Package grid enumerates the 7.5-minute FSTopo quad grid.
//
// Forest Service files are grouped into 5-digit blocks, one per degree
// of latitude and longitude: block 46121 holds quads between latitude
// 46° and 47° and longitude -122° to -121°. Each block is split into
// 7.5' cells, 8 per axis, for up to 64 quads. Quads are only published
// for National Forest land, so most candidate cells have no file.
package grid

import (
	"fmt"
	"math"
	"sort"

	"github.com/rotisserie/eris"
)

// CellSize is the quad cell edge length in degrees (7.5 minutes).
const CellSize = 0.125

// cellsPerDegree is the number of quad rows/columns in a degree block.
const cellsPerDegree = 8

// Region is the area-of-interest surface the enumerator needs.
type Region interface {
	// Bounds returns the geographic bounding box of the region.
	Bounds() (west, south, east, north float64)
	// IntersectsRect reports whether a geographic rectangle intersects
	// the region.
	IntersectsRect(west, south, east, north float64) (bool, error)
}

// Cell identifies one 7.5-minute quad.
//
// LatDeg is the whole degree of the cell's block at its south edge and
// LonDeg the signed whole degree at its east edge, so block 46121 has
// LatDeg 46 and LonDeg -121. Row counts 7.5' bands northward from the
// block's south edge, Col counts bands westward from its east edge,
// both 0-7, matching how the Forest Service numbers quads within a
// block.
type Cell struct {
	LatDeg int
	LonDeg int
	Row    int
	Col    int
}

// Bounds returns the cell's geographic rectangle.
func (c Cell) Bounds() (west, south, east, north float64) {
	south = float64(c.LatDeg) + float64(c.Row)*CellSize
	north = south + CellSize
	east = float64(c.LonDeg) - float64(c.Col)*CellSize
	west = east - CellSize
	return west, south, east, north
}

// BlockID returns the 5-digit block code, e.g. "46121".
func (c Cell) BlockID() string {
	return fmt.Sprintf("%02d%03d", c.LatDeg, abs(c.LonDeg))
}

// ID returns the 9-digit quad code: latitude degrees and minutes of the
// south edge followed by longitude degrees and minutes of the east
// edge, minutes truncated to whole values (7.5' steps label as 00, 07,
// 15, 22, 30, 37, 45, 52). Example: "463712145" is the quad south of
// 46°37.5' and east of -121°45'.
func (c Cell) ID() string {
	latMin := c.Row * 15 / 2
	lonMin := c.Col * 15 / 2
	return fmt.Sprintf("%02d%02d%03d%02d", c.LatDeg, latMin, abs(c.LonDeg), lonMin)
}

// Cells returns the quads whose rectangle intersects the region, sorted
// by ID for reproducible runs.
func Cells(r Region) ([]Cell, error) {
	west, south, east, north := r.Bounds()
	minLon := int(math.Floor(west))
	maxLon := int(math.Ceil(east))
	minLat := int(math.Floor(south))
	maxLat := int(math.Ceil(north))

	if minLat < -90 || maxLat > 90 || minLon < -180 || maxLon > 180 {
		return nil, eris.Errorf("grid: region bounds out of range (%v, %v, %v, %v)", west, south, east, north)
	}

	var cells []Cell
	for lat := minLat; lat < maxLat; lat++ {
		for lon := minLon; lon < maxLon; lon++ {
			// lon is the block's west degree; cells address from the east edge.
			for row := 0; row < cellsPerDegree; row++ {
				for col := 0; col < cellsPerDegree; col++ {
					c := Cell{LatDeg: lat, LonDeg: lon + 1, Row: row, Col: col}
					w, s, e, n := c.Bounds()
					ok, err := r.IntersectsRect(w, s, e, n)
					if err != nil {
						return nil, err
					}
					if ok {
						cells = append(cells, c)
					}
				}
			}
		}
	}

	sort.Slice(cells, func(i, j int) bool { return cells[i].ID() < cells[j].ID() })
	return cells, nil
}

// ByBlock groups cells by block code. Block order is not defined;
// callers sort the keys when order matters.
func ByBlock(cells []Cell) map[string][]Cell {
	blocks := make(map[string][]Cell)
	for _, c := range cells {
		blocks[c.BlockID()] = append(blocks[c.BlockID()], c)
	}
	return blocks
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
