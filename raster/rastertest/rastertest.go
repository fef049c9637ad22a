// Package rastertest builds minimal single-strip GeoTIFFs for tests.
package rastertest

import (
	"bytes"
	"encoding/binary"
	"math"
)

const (
	typeShort  = 3
	typeLong   = 4
	typeDouble = 12
)

// Build returns an uncompressed little-endian 16-bit grayscale GeoTIFF with
// the given pixel values (row-major, length w*h), top-left model coordinate
// (originX, originY) and square pixel size scale.
func Build(w, h int, values []uint16, originX, originY, scale float64) []byte {
	const (
		entryCount = 11
		ifdOff     = 8
	)
	ifdSize := 2 + entryCount*12 + 4
	scaleOff := ifdOff + ifdSize // 3 doubles
	tieOff := scaleOff + 3*8     // 6 doubles
	dataOff := tieOff + 6*8

	buf := &bytes.Buffer{}
	le := binary.LittleEndian

	buf.Write([]byte{0x49, 0x49})
	binary.Write(buf, le, uint16(42))
	binary.Write(buf, le, uint32(ifdOff))

	entry := func(tag, typ uint16, count, value uint32) {
		binary.Write(buf, le, tag)
		binary.Write(buf, le, typ)
		binary.Write(buf, le, count)
		binary.Write(buf, le, value)
	}

	// Entries must stay sorted by tag ID.
	binary.Write(buf, le, uint16(entryCount))
	entry(256, typeLong, 1, uint32(w))            // ImageWidth
	entry(257, typeLong, 1, uint32(h))            // ImageLength
	entry(258, typeShort, 1, 16)                  // BitsPerSample
	entry(259, typeShort, 1, 1)                   // Compression: none
	entry(262, typeShort, 1, 1)                   // Photometric: BlackIsZero
	entry(273, typeLong, 1, uint32(dataOff))      // StripOffsets
	entry(277, typeShort, 1, 1)                   // SamplesPerPixel
	entry(278, typeLong, 1, uint32(h))            // RowsPerStrip
	entry(279, typeLong, 1, uint32(w*h*2))        // StripByteCounts
	entry(33550, typeDouble, 3, uint32(scaleOff)) // ModelPixelScale
	entry(33922, typeDouble, 6, uint32(tieOff))   // ModelTiepoint
	binary.Write(buf, le, uint32(0))              // no next IFD

	for _, v := range []float64{scale, scale, 0} {
		binary.Write(buf, le, math.Float64bits(v))
	}
	for _, v := range []float64{0, 0, 0, originX, originY, 0} {
		binary.Write(buf, le, math.Float64bits(v))
	}

	for _, v := range values {
		binary.Write(buf, le, v)
	}

	return buf.Bytes()
}
