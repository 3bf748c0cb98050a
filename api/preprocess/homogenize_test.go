package preprocess

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redglacier/core/core/raster"
)

// makeGrid - a raster with cellSize map units per pixel, origin at
// (0, rows*cellSize), filled from a function of map coordinates
func makeGrid(rows, cols int, cellSize float64, fill func(x, y float64) float64) *raster.Raster {
	transform := raster.GeoTransform{0, cellSize, 0, float64(rows) * cellSize, 0, -cellSize}
	r := raster.New(rows, cols, transform, "EPSG:32605")
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			x, y := transform.PixToMap(float64(row), float64(col))
			r.Set(row, col, fill(x, y))
		}
	}
	return r
}

func constGrid(rows, cols int, cellSize, v float64) *raster.Raster {
	return makeGrid(rows, cols, cellSize, func(x, y float64) float64 { return v })
}

func TestHomogenizeSharedGrid(t *testing.T) {
	dem := constGrid(40, 40, 10, 250)
	blue := constGrid(40, 40, 10, 5000)
	green := constGrid(40, 40, 10, 4000)
	red := constGrid(40, 40, 10, 3000)
	nir := constGrid(40, 40, 10, 2000)
	scl := constGrid(20, 20, 20, 4) // vegetation, coarser grid

	bbox := raster.BBox{MinX: 50, MinY: 120, MaxX: 250, MaxY: 360}
	scene, window, err := Homogenize(blue, green, red, nir, dem, scl, bbox, ReflectanceCalibrator(10000))
	require.NoError(t, err)

	// pairwise grid equality of every output
	layers := []*raster.Raster{scene.Blue, scene.Green, scene.Red, scene.Nir, scene.SceneClass}
	for _, layer := range layers {
		require.NotNil(t, layer)
		assert.True(t, scene.DEM.SameGrid(layer))
	}

	assert.Equal(t, 0.5, scene.Blue.At(0, 0))
	assert.Equal(t, 0.2, scene.Nir.At(0, 0))

	assert.Positive(t, window.Y1-window.Y0)
	assert.Equal(t, window.Y1-window.Y0, scene.DEM.Rows)
	assert.Equal(t, window.X1-window.X0, scene.DEM.Cols)

	for _, stable := range scene.StableMask {
		assert.True(t, stable)
	}
}

func TestHomogenizeCloudExclusion(t *testing.T) {
	dem := constGrid(40, 40, 10, 250)
	band := constGrid(40, 40, 10, 5000)

	scl := constGrid(20, 20, 20, 4)
	scl.Set(0, 0, classHighCloudProbability)

	bbox := raster.BBox{MinX: 0, MinY: 0, MaxX: 400, MaxY: 400}
	scene, _, err := Homogenize(band, band, band, band, dem, scl, bbox, ReflectanceCalibrator(10000))
	require.NoError(t, err)

	// one coarse cloud pixel covers a 2x2 block of the reference grid
	for row := 0; row < 2; row++ {
		for col := 0; col < 2; col++ {
			assert.False(t, scene.StableMask[row*scene.DEM.Cols+col])
		}
	}
	assert.True(t, scene.StableMask[2*scene.DEM.Cols+2])
}

func TestHomogenizeWithoutSceneClass(t *testing.T) {
	dem := constGrid(20, 20, 10, 250)
	dem.Set(5, 5, 0) // sea level
	dem.Set(6, 6, math.NaN())
	band := constGrid(20, 20, 10, 5000)

	bbox := raster.BBox{MinX: 0, MinY: 0, MaxX: 200, MaxY: 200}
	scene, _, err := Homogenize(band, band, band, band, dem, nil, bbox, ReflectanceCalibrator(10000))
	require.NoError(t, err)

	assert.Nil(t, scene.SceneClass)
	assert.False(t, scene.StableMask[5*scene.DEM.Cols+5])
	assert.False(t, scene.StableMask[6*scene.DEM.Cols+6])
	assert.True(t, scene.StableMask[0])
}

func TestHomogenizeEmptyRegion(t *testing.T) {
	dem := constGrid(20, 20, 10, 250)
	band := constGrid(20, 20, 10, 5000)

	bbox := raster.BBox{MinX: 9000, MinY: 9000, MaxX: 9100, MaxY: 9100}
	_, _, err := Homogenize(band, band, band, band, dem, nil, bbox, ReflectanceCalibrator(10000))

	emptyErr := raster.EmptyRegionError{}
	require.ErrorAs(t, err, &emptyErr)
}

func TestHomogenizeGridMismatch(t *testing.T) {
	dem := constGrid(20, 20, 10, 250)
	band := constGrid(20, 20, 10, 5000)
	finerRed := constGrid(40, 40, 5, 3000) // crops to a different grid

	bbox := raster.BBox{MinX: 0, MinY: 0, MaxX: 200, MaxY: 200}
	_, _, err := Homogenize(band, band, finerRed, band, dem, nil, bbox, ReflectanceCalibrator(10000))

	mismatch := GridMismatchError{}
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "red", mismatch.Layer)
}

func TestCropAngleGrids(t *testing.T) {
	sunAz := constGrid(40, 40, 10, 160.5)
	sunZn := constGrid(40, 40, 10, 52.25)
	viewAz := constGrid(40, 40, 10, 100)
	viewZn := constGrid(40, 40, 10, 8)

	window := CropWindow{Y0: 4, Y1: 28, X0: 5, X1: 20}
	angles := CropAngleGrids(sunAz, sunZn, viewAz, viewZn, window)

	assert.Equal(t, 24, angles.SunAzimuth.Rows)
	assert.Equal(t, 15, angles.SunAzimuth.Cols)
	assert.True(t, angles.SunAzimuth.SameGrid(angles.ViewZenith))

	assert.InDelta(t, 160.5, angles.MeanSunAzimuth, 1e-9)
	assert.InDelta(t, 52.25, angles.MeanSunZenith, 1e-9)
}
