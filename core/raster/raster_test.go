package raster

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCRS = "PROJCS[\"WGS 84 / UTM zone 5N\"]"

// north-up grid: 10m pixels, origin top-left
func makeTestRaster(rows, cols int) *Raster {
	r := New(rows, cols, GeoTransform{500000, 10, 0, 6650000, 0, -10}, testCRS)
	for i := range r.Data {
		r.Data[i] = float64(i)
	}
	return r
}

func TestPixToMapRoundTrip(t *testing.T) {
	r := makeTestRaster(5, 8)

	x, y := r.Transform.PixToMap(0, 0)
	assert.InDelta(t, 500005.0, x, 1e-9)
	assert.InDelta(t, 6649995.0, y, 1e-9)

	row, col := r.Transform.MapToPix(x, y)
	assert.InDelta(t, 0.0, row, 1e-9)
	assert.InDelta(t, 0.0, col, 1e-9)
}

func TestCoordinateAxes(t *testing.T) {
	r := makeTestRaster(3, 4)

	xs := r.XCoords()
	require.Len(t, xs, 4)
	assert.InDelta(t, 500005.0, xs[0], 1e-9)
	assert.InDelta(t, 500035.0, xs[3], 1e-9)

	ys := r.YCoords()
	require.Len(t, ys, 3)
	assert.InDelta(t, 6649995.0, ys[0], 1e-9)
	assert.InDelta(t, 6649975.0, ys[2], 1e-9)
}

func TestBBoxIndicesAscendingAndDescending(t *testing.T) {
	ascending := []float64{0, 10, 20, 30, 40, 50}
	descending := []float64{50, 40, 30, 20, 10, 0}
	bbox := BBox{MinX: 15, MinY: 15, MaxX: 45, MaxY: 45}

	y0, y1, x0, x1, err := BBoxIndices(ascending, descending, bbox)
	require.NoError(t, err)

	// Every selected coordinate lies in the bbox, none outside does
	assert.Equal(t, 2, x0)
	assert.Equal(t, 5, x1)
	for i, c := range ascending {
		inRange := i >= x0 && i < x1
		inBBox := c >= bbox.MinX && c <= bbox.MaxX
		assert.Equal(t, inBBox, inRange, "x index %v", i)
	}

	assert.Equal(t, 1, y0)
	assert.Equal(t, 4, y1)
	for i, c := range descending {
		inRange := i >= y0 && i < y1
		inBBox := c >= bbox.MinY && c <= bbox.MaxY
		assert.Equal(t, inBBox, inRange, "y index %v", i)
	}
}

func TestBBoxIndicesEmptyRegion(t *testing.T) {
	coords := []float64{0, 10, 20}
	_, _, _, _, err := BBoxIndices(coords, coords, BBox{MinX: 100, MinY: 0, MaxX: 200, MaxY: 20})
	require.Error(t, err)

	var emptyErr EmptyRegionError
	require.ErrorAs(t, err, &emptyErr)
	assert.Equal(t, "x", emptyErr.Axis)
}

func TestCropAdjustsTransform(t *testing.T) {
	r := makeTestRaster(6, 6)
	cropped := r.Crop(2, 5, 1, 4)

	assert.Equal(t, 3, cropped.Rows)
	assert.Equal(t, 3, cropped.Cols)
	assert.Equal(t, r.At(2, 1), cropped.At(0, 0))
	assert.Equal(t, r.At(4, 3), cropped.At(2, 2))

	// The map coordinate of a cell must not move when cropping
	wantX, wantY := r.Transform.PixToMap(2, 1)
	gotX, gotY := cropped.Transform.PixToMap(0, 0)
	assert.InDelta(t, wantX, gotX, 1e-9)
	assert.InDelta(t, wantY, gotY, 1e-9)
}

func TestSameGrid(t *testing.T) {
	a := makeTestRaster(4, 4)
	b := makeTestRaster(4, 4)
	assert.True(t, a.SameGrid(b))

	c := makeTestRaster(4, 5)
	assert.False(t, a.SameGrid(c))

	d := makeTestRaster(4, 4)
	d.Transform[0] += 5
	assert.False(t, a.SameGrid(d))
}

func TestSampleAtCellCentreIsExact(t *testing.T) {
	r := makeTestRaster(4, 4)
	x, y := r.Transform.PixToMap(2, 3)
	assert.Equal(t, r.At(2, 3), r.Sample(x, y))
}

func TestSampleInterpolates(t *testing.T) {
	r := makeTestRaster(4, 4)
	// halfway between cell centres (1,1) and (1,2)
	x1, y1 := r.Transform.PixToMap(1, 1)
	x2, _ := r.Transform.PixToMap(1, 2)
	got := r.Sample((x1+x2)/2, y1)
	assert.InDelta(t, (r.At(1, 1)+r.At(1, 2))/2, got, 1e-9)
}

func TestSampleOutsideIsNaN(t *testing.T) {
	r := makeTestRaster(4, 4)
	assert.True(t, math.IsNaN(r.Sample(0, 0)))
}

func TestReprojectMatchNearest(t *testing.T) {
	// src at 20m resolution, ref at 10m: each src cell covers 2x2 ref cells
	src := New(2, 2, GeoTransform{500000, 20, 0, 6650000, 0, -20}, testCRS)
	src.Data = []float64{1, 2, 3, 4}
	ref := New(4, 4, GeoTransform{500000, 10, 0, 6650000, 0, -10}, testCRS)

	result := ReprojectMatchNearest(src, ref)
	require.True(t, result.SameGrid(ref))
	assert.Equal(t, 1.0, result.At(0, 0))
	assert.Equal(t, 2.0, result.At(0, 3))
	assert.Equal(t, 3.0, result.At(3, 0))
	assert.Equal(t, 4.0, result.At(3, 3))
}

func TestGeoTIFFRoundTripFloat(t *testing.T) {
	r := makeTestRaster(5, 7)
	r.Set(1, 2, math.NaN())

	encoded, err := EncodeGeoTIFF(r, false)
	require.NoError(t, err)

	decoded, err := DecodeGeoTIFF(encoded)
	require.NoError(t, err)

	assert.Equal(t, r.Rows, decoded.Rows)
	assert.Equal(t, r.Cols, decoded.Cols)
	assert.Equal(t, testCRS, decoded.CRS)
	for i := range r.Transform {
		assert.InDelta(t, r.Transform[i], decoded.Transform[i], 1e-9, "transform term %v", i)
	}

	for i := range r.Data {
		if math.IsNaN(r.Data[i]) {
			assert.True(t, math.IsNaN(decoded.Data[i]), "sample %v", i)
		} else {
			assert.InDelta(t, r.Data[i], decoded.Data[i], 1e-3, "sample %v", i)
		}
	}
}

func TestGeoTIFFRoundTripInteger(t *testing.T) {
	r := makeTestRaster(3, 3)
	r.Set(0, 0, math.NaN())

	encoded, err := EncodeGeoTIFF(r, true)
	require.NoError(t, err)

	decoded, err := DecodeGeoTIFF(encoded)
	require.NoError(t, err)

	assert.True(t, math.IsNaN(decoded.At(0, 0)))
	assert.Equal(t, 4.0, decoded.At(1, 1))
	assert.Equal(t, 8.0, decoded.At(2, 2))
}

func TestDecodeGeoTIFFRejectsGarbage(t *testing.T) {
	_, err := DecodeGeoTIFF([]byte("not a tiff at all"))
	assert.Error(t, err)
}
