package imageproc

import (
	"math"

	"github.com/redglacier/core/core/raster"
)

// Center - a template centre, in array indices
type Center struct {
	Row int
	Col int
}

// TemplateCenters - a regular grid of template centres spaced one
// window apart, with a one-window margin so templates never start
// outside the grid
func TemplateCenters(rows, cols, spacing int) []Center {
	centers := []Center{}
	for row := spacing; row+spacing < rows; row += spacing {
		for col := spacing; col+spacing < cols; col += spacing {
			centers = append(centers, Center{Row: row, Col: col})
		}
	}
	return centers
}

// TemplateAspectSlope - terrain slope (degrees) and aspect (degrees,
// clockwise from north) at each template centre, from a least-squares
// plane fit over the surrounding window. Centres whose window holds
// too few valid DEM pixels get NaN for both.
func TemplateAspectSlope(dem *raster.Raster, centers []Center, windowSize int) (slopes, aspects []float64) {
	slopes = make([]float64, len(centers))
	aspects = make([]float64, len(centers))

	radius := windowSize / 2
	cellW := dem.Transform.CellWidth()
	cellH := dem.Transform.CellHeight()
	minCount := (radius + 1) * (radius + 1)

	for i, center := range centers {
		// Plane z = a*x + b*y + c fitted over window offsets in map
		// units. Missing pixels break the window symmetry, so solve
		// the centred 2x2 normal equations rather than assuming the
		// cross terms vanish.
		sumX, sumY, sumZ := 0.0, 0.0, 0.0
		sumXX, sumYY, sumXY := 0.0, 0.0, 0.0
		sumXZ, sumYZ := 0.0, 0.0
		count := 0

		for dr := -radius; dr <= radius; dr++ {
			for dc := -radius; dc <= radius; dc++ {
				z := dem.At(center.Row+dr, center.Col+dc)
				if math.IsNaN(z) {
					continue
				}
				x := float64(dc) * cellW
				y := float64(-dr) * cellH // north is up
				sumX += x
				sumY += y
				sumZ += z
				sumXX += x * x
				sumYY += y * y
				sumXY += x * y
				sumXZ += x * z
				sumYZ += y * z
				count++
			}
		}

		if count < minCount {
			slopes[i] = math.NaN()
			aspects[i] = math.NaN()
			continue
		}

		n := float64(count)
		covXX := sumXX - sumX*sumX/n
		covYY := sumYY - sumY*sumY/n
		covXY := sumXY - sumX*sumY/n
		covXZ := sumXZ - sumX*sumZ/n
		covYZ := sumYZ - sumY*sumZ/n

		det := covXX*covYY - covXY*covXY
		if math.Abs(det) < 1e-12 {
			slopes[i] = math.NaN()
			aspects[i] = math.NaN()
			continue
		}
		a := (covXZ*covYY - covYZ*covXY) / det
		b := (covYZ*covXX - covXZ*covXY) / det

		slopes[i] = math.Atan(math.Hypot(a, b)) * 180 / math.Pi
		// downslope direction is -(a, b); aspect faces downslope
		aspects[i] = math.Mod(math.Atan2(-a, -b)*180/math.Pi+360, 360)
	}
	return slopes, aspects
}
