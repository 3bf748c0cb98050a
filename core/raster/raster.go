// Raster grid model shared by the whole preprocessing pipeline. Every
// raster that takes part in one scene must end up on the same grid
// (shape, transform, CRS) - that invariant is established by the
// homogenisation step and checked with SameGrid, not assumed of inputs.
package raster

import (
	"math"
)

// BBox - geographic bounding box in map units. Immutable, shared
// read-only by all workers of a batch run.
type BBox struct {
	MinX float64
	MinY float64
	MaxX float64
	MaxY float64
}

// GeoTransform - GDAL-ordered affine pixel-to-map transform:
// [originX, pixelWidth, rowRotation, originY, colRotation, pixelHeight]
// pixelHeight is negative for north-up rasters.
type GeoTransform [6]float64

// PixToMap - map coordinate of a (fractional) pixel centre
func (t GeoTransform) PixToMap(row, col float64) (float64, float64) {
	x := t[0] + t[1]*(col+0.5) + t[2]*(row+0.5)
	y := t[3] + t[4]*(col+0.5) + t[5]*(row+0.5)
	return x, y
}

// MapToPix - inverse of PixToMap for axis-aligned transforms (the only
// kind the pipeline produces; rotation terms are rejected at load time)
func (t GeoTransform) MapToPix(x, y float64) (float64, float64) {
	row := (y-t[3])/t[5] - 0.5
	col := (x-t[0])/t[1] - 0.5
	return row, col
}

// CellWidth - pixel size along X in map units
func (t GeoTransform) CellWidth() float64 {
	return math.Abs(t[1])
}

// CellHeight - pixel size along Y in map units
func (t GeoTransform) CellHeight() float64 {
	return math.Abs(t[5])
}

// Raster - a 2D numeric grid with its coordinate reference system and
// affine transform. Data is row-major, NaN marks no-data.
type Raster struct {
	Data      []float64
	Rows      int
	Cols      int
	CRS       string
	Transform GeoTransform
}

func New(rows, cols int, transform GeoTransform, crs string) *Raster {
	return &Raster{
		Data:      make([]float64, rows*cols),
		Rows:      rows,
		Cols:      cols,
		CRS:       crs,
		Transform: transform,
	}
}

func (r *Raster) At(row, col int) float64 {
	return r.Data[row*r.Cols+col]
}

func (r *Raster) Set(row, col int, v float64) {
	r.Data[row*r.Cols+col] = v
}

func (r *Raster) Clone() *Raster {
	result := New(r.Rows, r.Cols, r.Transform, r.CRS)
	copy(result.Data, r.Data)
	return result
}

// NewLike - empty raster on the same grid as r
func (r *Raster) NewLike() *Raster {
	return New(r.Rows, r.Cols, r.Transform, r.CRS)
}

// XCoords - cell-centre coordinates of each column
func (r *Raster) XCoords() []float64 {
	result := make([]float64, r.Cols)
	for j := range result {
		result[j] = r.Transform[0] + r.Transform[1]*(float64(j)+0.5)
	}
	return result
}

// YCoords - cell-centre coordinates of each row
func (r *Raster) YCoords() []float64 {
	result := make([]float64, r.Rows)
	for i := range result {
		result[i] = r.Transform[3] + r.Transform[5]*(float64(i)+0.5)
	}
	return result
}

const gridTolerance = 1e-6

// SameGrid - true when both rasters share shape, transform and CRS
func (r *Raster) SameGrid(other *Raster) bool {
	if r.Rows != other.Rows || r.Cols != other.Cols || r.CRS != other.CRS {
		return false
	}
	for i := range r.Transform {
		if math.Abs(r.Transform[i]-other.Transform[i]) > gridTolerance {
			return false
		}
	}
	return true
}

// Crop - sub-raster over half-open index ranges [y0,y1), [x0,x1) with
// the transform origin moved accordingly
func (r *Raster) Crop(y0, y1, x0, x1 int) *Raster {
	t := r.Transform
	t[0] = r.Transform[0] + r.Transform[1]*float64(x0)
	t[3] = r.Transform[3] + r.Transform[5]*float64(y0)

	result := New(y1-y0, x1-x0, t, r.CRS)
	for row := y0; row < y1; row++ {
		copy(result.Data[(row-y0)*result.Cols:(row-y0+1)*result.Cols], r.Data[row*r.Cols+x0:row*r.Cols+x1])
	}
	return result
}

// Sample - bilinear interpolation at a map coordinate. Returns NaN when
// the coordinate falls outside the grid or a contributing cell is no-data.
// Sampling exactly at a cell centre returns that cell's value.
func (r *Raster) Sample(x, y float64) float64 {
	rowF, colF := r.Transform.MapToPix(x, y)

	row0 := int(math.Floor(rowF))
	col0 := int(math.Floor(colF))
	fr := rowF - float64(row0)
	fc := colF - float64(col0)

	// Snap to a single cell when the fraction vanishes, so no neighbour
	// is needed at the grid edge
	rows := []int{row0}
	rowWeights := []float64{1}
	if fr > gridTolerance {
		rows = []int{row0, row0 + 1}
		rowWeights = []float64{1 - fr, fr}
	}
	cols := []int{col0}
	colWeights := []float64{1}
	if fc > gridTolerance {
		cols = []int{col0, col0 + 1}
		colWeights = []float64{1 - fc, fc}
	}

	value := 0.0
	for ri, row := range rows {
		for ci, col := range cols {
			if row < 0 || row >= r.Rows || col < 0 || col >= r.Cols {
				return math.NaN()
			}
			value += rowWeights[ri] * colWeights[ci] * r.At(row, col)
		}
	}
	return value
}

// NearestAt - value of the cell whose centre is closest to the map
// coordinate, NaN outside the grid. Used for categorical layers.
func (r *Raster) NearestAt(x, y float64) float64 {
	rowF, colF := r.Transform.MapToPix(x, y)
	row := int(math.Round(rowF))
	col := int(math.Round(colF))
	if row < 0 || row >= r.Rows || col < 0 || col >= r.Cols {
		return math.NaN()
	}
	return r.At(row, col)
}
