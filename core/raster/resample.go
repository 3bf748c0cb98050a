package raster

// ReprojectMatchNearest - resamples src onto the grid of ref using
// nearest-neighbour lookup. Used for categorical layers (e.g. the scene
// classification layer) which must never be interpolated. Cells of the
// reference grid falling outside src become NaN.
//
// Both rasters must be in the same CRS; reprojection across reference
// systems is the job of the upstream data preparation, not of this
// pipeline.
func ReprojectMatchNearest(src, ref *Raster) *Raster {
	result := ref.NewLike()
	for row := 0; row < ref.Rows; row++ {
		for col := 0; col < ref.Cols; col++ {
			x, y := ref.Transform.PixToMap(float64(row), float64(col))
			result.Set(row, col, src.NearestAt(x, y))
		}
	}
	return result
}
