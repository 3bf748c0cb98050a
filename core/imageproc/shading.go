// Default implementations of the image-processing capabilities the
// preprocessing pipeline depends on: artificial illumination from a
// DEM, multi-band shadow enhancement, masked template matching with
// sub-pixel refinement, terrain slope/aspect, and an active-contour
// classifier. They are deliberately self-contained so the pipeline
// binaries run without native geospatial libraries; any of them can be
// swapped for an external implementation through the capability
// interfaces in api/preprocess.
package imageproc

import (
	"math"

	"github.com/redglacier/core/core/raster"
)

func deg2rad(deg float64) float64 {
	return deg * math.Pi / 180
}

// Shading - artificial hillshade of the DEM under per-pixel sun angles
// (degrees). The result is the cosine of the local solar incidence
// angle, clamped at zero, which is the registration reference for the
// shadow-enhanced image.
func Shading(dem, sunAz, sunZn *raster.Raster) *raster.Raster {
	result := dem.NewLike()
	cellW := dem.Transform.CellWidth()
	cellH := dem.Transform.CellHeight()

	for row := 0; row < dem.Rows; row++ {
		for col := 0; col < dem.Cols; col++ {
			dzdx, dzdy, ok := demGradient(dem, row, col, cellW, cellH)
			if !ok {
				result.Set(row, col, math.NaN())
				continue
			}

			azRad := deg2rad(sunAz.At(row, col))
			znRad := deg2rad(sunZn.At(row, col))

			// Surface normal is (-dzdx, -dzdy, 1) before normalisation;
			// sun vector from azimuth (clockwise from north) and zenith
			sunX := math.Sin(azRad) * math.Sin(znRad)
			sunY := math.Cos(azRad) * math.Sin(znRad)
			sunZ := math.Cos(znRad)

			dot := (-dzdx*sunX - dzdy*sunY + sunZ) / math.Sqrt(1+dzdx*dzdx+dzdy*dzdy)
			result.Set(row, col, math.Max(0, dot))
		}
	}
	return result
}

// Shadowing - binary cast-shadow prediction from the DEM and scene-mean
// sun angles (degrees). A pixel is shadowed when terrain along the ray
// towards the sun rises above the line of sight. Used as the classifier
// seed.
func Shadowing(dem *raster.Raster, sunAzDeg, sunZnDeg float64) *raster.Raster {
	result := dem.NewLike()

	azRad := deg2rad(sunAzDeg)
	znRad := deg2rad(sunZnDeg)
	// horizontal direction towards the sun and elevation gain of the
	// line of sight per map unit travelled
	dirX := math.Sin(azRad)
	dirY := math.Cos(azRad)
	rise := 1 / math.Tan(znRad)

	maxZ := math.Inf(-1)
	for _, v := range dem.Data {
		if !math.IsNaN(v) && v > maxZ {
			maxZ = v
		}
	}

	step := math.Min(dem.Transform.CellWidth(), dem.Transform.CellHeight())

	for row := 0; row < dem.Rows; row++ {
		for col := 0; col < dem.Cols; col++ {
			z0 := dem.At(row, col)
			if math.IsNaN(z0) {
				result.Set(row, col, math.NaN())
				continue
			}

			x0, y0 := dem.Transform.PixToMap(float64(row), float64(col))
			shadowed := 0.0
			for dist := step; ; dist += step {
				lineOfSight := z0 + dist*rise
				if lineOfSight > maxZ {
					break
				}
				terrain := dem.Sample(x0+dirX*dist, y0+dirY*dist)
				if math.IsNaN(terrain) {
					break // ray left the grid
				}
				if terrain > lineOfSight {
					shadowed = 1.0
					break
				}
			}
			result.Set(row, col, shadowed)
		}
	}
	return result
}

// demGradient - central differences, one-sided at the grid edge.
// dzdx increases eastward, dzdy northward.
func demGradient(dem *raster.Raster, row, col int, cellW, cellH float64) (float64, float64, bool) {
	east, eastDist := dem.At(row, col), 0.0
	if col+1 < dem.Cols {
		east, eastDist = dem.At(row, col+1), cellW
	}
	west, westDist := dem.At(row, col), 0.0
	if col-1 >= 0 {
		west, westDist = dem.At(row, col-1), cellW
	}
	north, northDist := dem.At(row, col), 0.0
	if row-1 >= 0 {
		north, northDist = dem.At(row-1, col), cellH
	}
	south, southDist := dem.At(row, col), 0.0
	if row+1 < dem.Rows {
		south, southDist = dem.At(row+1, col), cellH
	}

	if eastDist+westDist <= 0 || northDist+southDist <= 0 {
		return 0, 0, false
	}

	dzdx := (east - west) / (eastDist + westDist)
	dzdy := (north - south) / (northDist + southDist)
	if math.IsNaN(dzdx) || math.IsNaN(dzdy) {
		return 0, 0, false
	}
	return dzdx, dzdy, true
}
