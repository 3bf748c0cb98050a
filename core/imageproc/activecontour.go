package imageproc

import (
	"math"

	"github.com/redglacier/core/core/raster"
)

// weight of the albedo channel relative to the shadow image in the
// region energies
const albedoWeight = 1.0

// ActiveContour - two-region segmentation of the shadow-enhanced image,
// refined from an initial labelling. Each iteration recomputes the
// mean shadow and albedo values of the two regions and reassigns every
// eligible pixel to the region whose means it sits closer to, so the
// contour settles on the radiometric shadow boundary rather than the
// geometric prediction it started from. Pixels where eligible is false
// (or nil meaning all eligible) never change class and stay 0 in the
// output. Returns a 0/1 raster.
func ActiveContour(image, init, albedo *raster.Raster, eligible []bool, iterations int) *raster.Raster {
	inside := make([]bool, len(image.Data))
	for i, v := range init.Data {
		inside[i] = v > 0.5
	}

	usable := func(i int) bool {
		if eligible != nil && !eligible[i] {
			return false
		}
		return !math.IsNaN(image.Data[i]) && !math.IsNaN(albedo.Data[i])
	}

	for iter := 0; iter < iterations; iter++ {
		imgIn, albIn, countIn := 0.0, 0.0, 0
		imgOut, albOut, countOut := 0.0, 0.0, 0

		for i := range image.Data {
			if !usable(i) {
				continue
			}
			if inside[i] {
				imgIn += image.Data[i]
				albIn += albedo.Data[i]
				countIn++
			} else {
				imgOut += image.Data[i]
				albOut += albedo.Data[i]
				countOut++
			}
		}

		if countIn == 0 || countOut == 0 {
			break // one region vanished, means are undefined
		}

		imgIn /= float64(countIn)
		albIn /= float64(countIn)
		imgOut /= float64(countOut)
		albOut /= float64(countOut)

		changed := false
		for i := range image.Data {
			if !usable(i) {
				continue
			}
			distIn := sq(image.Data[i]-imgIn) + albedoWeight*sq(albedo.Data[i]-albIn)
			distOut := sq(image.Data[i]-imgOut) + albedoWeight*sq(albedo.Data[i]-albOut)
			want := distIn < distOut
			if want != inside[i] {
				inside[i] = want
				changed = true
			}
		}

		if !changed {
			break
		}
	}

	result := image.NewLike()
	for i := range result.Data {
		if inside[i] && usable(i) {
			result.Data[i] = 1
		} else {
			result.Data[i] = 0
		}
	}
	return result
}

func sq(v float64) float64 {
	return v * v
}
