// Package raster reads single-band GeoTIFF grids just far enough to sample
// point values: pixel decoding is delegated to golang.org/x/image/tiff and
// the georeferencing (ModelPixelScale / ModelTiepoint) is read straight from
// the IFD, since the stock decoder drops unknown tags.
package raster

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"math"
	"os"

	"github.com/twpayne/go-geom"
	"golang.org/x/image/tiff"
)

// TIFF tag IDs and the DOUBLE field type.
const (
	tagModelPixelScale = 33550
	tagModelTiepoint   = 33922
	typeDouble         = 12
)

// Grid is a georeferenced raster loaded into memory.
type Grid struct {
	img     image.Image
	width   int
	height  int
	originX float64 // west edge of the (0,0) pixel
	originY float64 // north edge of the (0,0) pixel
	scaleX  float64
	scaleY  float64
	bounds  *geom.Bounds
}

// Open loads a GeoTIFF from disk. It fails when the file is not a decodable
// TIFF or lacks georeferencing tags; callers treat that as a soft,
// per-artifact failure.
func Open(path string) (*Grid, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read raster: %w", err)
	}

	ref, err := readGeoTags(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	img, err := tiff.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	w := img.Bounds().Dx()
	h := img.Bounds().Dy()

	bounds := geom.NewBounds(geom.XY)
	bounds.Set(
		ref.originX, ref.originY-ref.scaleY*float64(h),
		ref.originX+ref.scaleX*float64(w), ref.originY,
	)

	return &Grid{
		img:     img,
		width:   w,
		height:  h,
		originX: ref.originX,
		originY: ref.originY,
		scaleX:  ref.scaleX,
		scaleY:  ref.scaleY,
		bounds:  bounds,
	}, nil
}

// Sample returns the raw integer value of the grid cell containing the
// coordinate. The coordinate must already be in the raster's native
// reference frame; no reprojection happens here.
func (g *Grid) Sample(c geom.Coord) (int, error) {
	if !g.bounds.OverlapsPoint(geom.XY, c) {
		return 0, fmt.Errorf("coordinate (%g, %g) outside raster coverage", c.X(), c.Y())
	}

	col := int((c.X() - g.originX) / g.scaleX)
	row := int((g.originY - c.Y()) / g.scaleY)
	if col >= g.width {
		col = g.width - 1
	}
	if row >= g.height {
		row = g.height - 1
	}

	switch img := g.img.(type) {
	case *image.Gray16:
		return int(img.Gray16At(col, row).Y), nil
	case *image.Gray:
		return int(img.GrayAt(col, row).Y), nil
	default:
		return 0, fmt.Errorf("unsupported sample format %T", g.img)
	}
}

// Size returns the raster dimensions in pixels.
func (g *Grid) Size() (width, height int) {
	return g.width, g.height
}

type georef struct {
	scaleX, scaleY   float64
	originX, originY float64
}

// readGeoTags walks the first IFD for the two GeoTIFF placement tags. The
// tiepoint maps a raster position (i,j) to a model coordinate (x,y); CHELSA
// grids anchor it at the top-left corner but the general form is handled.
func readGeoTags(data []byte) (*georef, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("truncated TIFF header")
	}

	var bo binary.ByteOrder
	switch {
	case data[0] == 0x49 && data[1] == 0x49:
		bo = binary.LittleEndian
	case data[0] == 0x4D && data[1] == 0x4D:
		bo = binary.BigEndian
	default:
		return nil, fmt.Errorf("bad byte-order signature % x", data[:2])
	}
	if bo.Uint16(data[2:4]) != 42 {
		return nil, fmt.Errorf("bad TIFF magic")
	}

	ifd := int64(bo.Uint32(data[4:8]))
	if ifd < 8 || ifd+2 > int64(len(data)) {
		return nil, fmt.Errorf("IFD offset out of range")
	}

	n := int64(bo.Uint16(data[ifd : ifd+2]))
	if ifd+2+12*n > int64(len(data)) {
		return nil, fmt.Errorf("truncated IFD")
	}

	var scale, tie []float64
	for i := int64(0); i < n; i++ {
		entry := data[ifd+2+12*i:]
		tag := bo.Uint16(entry[0:2])
		typ := bo.Uint16(entry[2:4])
		count := bo.Uint32(entry[4:8])

		if typ != typeDouble {
			continue
		}
		if tag != tagModelPixelScale && tag != tagModelTiepoint {
			continue
		}

		off := bo.Uint32(entry[8:12])
		vals, err := readDoubles(data, bo, off, count)
		if err != nil {
			return nil, err
		}
		if tag == tagModelPixelScale {
			scale = vals
		} else {
			tie = vals
		}
	}

	if len(scale) < 2 || len(tie) < 6 {
		return nil, fmt.Errorf("missing georeferencing tags")
	}
	if scale[0] <= 0 || scale[1] <= 0 {
		return nil, fmt.Errorf("non-positive pixel scale %v", scale[:2])
	}

	return &georef{
		scaleX:  scale[0],
		scaleY:  scale[1],
		originX: tie[3] - tie[0]*scale[0],
		originY: tie[4] + tie[1]*scale[1],
	}, nil
}

func readDoubles(data []byte, bo binary.ByteOrder, off, count uint32) ([]float64, error) {
	end := int64(off) + 8*int64(count)
	if end > int64(len(data)) {
		return nil, fmt.Errorf("tag values out of range")
	}
	vals := make([]float64, count)
	for i := range vals {
		bits := bo.Uint64(data[int64(off)+8*int64(i):])
		vals[i] = math.Float64frombits(bits)
	}
	return vals, nil
}
