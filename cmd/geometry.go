package main

import (
	"regexp"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/nst-guide/fstopo/internal/aoi"
)

// addGeometryFlags registers the area-of-interest flags shared by the
// download and quads commands.
func addGeometryFlags(cmd *cobra.Command) {
	cmd.Flags().String("bbox", "", "Bounding box to download data for: west, south, east, north")
	cmd.Flags().String("file", "", "Geospatial file (.shp, .geojson) with geometry to download data for")
	cmd.Flags().Float64P("buffer-dist", "b", 0, "Buffer to use around the provided geometry; only used with --file")
	cmd.Flags().String("buffer-unit", "", "Units for the buffer: mile, kilometer, or meter (default from config)")
	cmd.Flags().Int("buffer-projection", 0, "EPSG code of the meter-based projection used when creating the buffer (default from config)")
}

var bboxSep = regexp.MustCompile(`[,\s]+`)

// parseBBox splits a "west,south,east,north" flag value into its four
// coordinates. Validation of the ordering happens in the resolver.
func parseBBox(s string) ([4]float64, error) {
	var out [4]float64
	parts := bboxSep.Split(s, -1)
	if len(parts) != 4 {
		return out, eris.Errorf("bbox must have 4 values (west, south, east, north), got %d", len(parts))
	}
	for i, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return out, eris.Errorf("bbox value %q is not a number", p)
		}
		out[i] = v
	}
	return out, nil
}

// resolveAOI turns the geometry flags into an area of interest.
// Exactly one of --bbox and --file must be given.
func resolveAOI(cmd *cobra.Command) (*aoi.AOI, error) {
	bboxStr, _ := cmd.Flags().GetString("bbox")
	file, _ := cmd.Flags().GetString("file")
	bufferDist, _ := cmd.Flags().GetFloat64("buffer-dist")
	bufferUnit, _ := cmd.Flags().GetString("buffer-unit")
	bufferEPSG, _ := cmd.Flags().GetInt("buffer-projection")

	if (bboxStr == "") == (file == "") {
		return nil, eris.New("exactly one of --bbox or --file must be provided")
	}

	if bboxStr != "" {
		if bufferDist != 0 {
			return nil, eris.New("--buffer-dist is only valid with --file")
		}
		box, err := parseBBox(bboxStr)
		if err != nil {
			return nil, err
		}
		return aoi.FromBBox(box[0], box[1], box[2], box[3])
	}

	if bufferUnit == "" {
		bufferUnit = cfg.Buffer.Unit
	}
	if bufferEPSG == 0 {
		bufferEPSG = cfg.Buffer.Projection
	}
	return aoi.FromFile(file, aoi.FileOptions{
		BufferDist: bufferDist,
		BufferUnit: bufferUnit,
		BufferEPSG: bufferEPSG,
	})
}
