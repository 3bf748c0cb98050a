package imageproc

import (
	"math"

	"github.com/redglacier/core/core/raster"
)

// Match - where a reference template was found in the search image, in
// map coordinates, with the peak correlation score. X and Y are NaN
// when no trustworthy match exists at that centre.
type Match struct {
	X     float64
	Y     float64
	Score float64
}

// Minimum fraction of the template that must be valid (in bounds,
// finite, flagged stable in both masks) for a correlation to count.
const minValidFraction = 0.5

// MatchTemplates - normalised cross-correlation of a template around
// each centre of the reference image against a search neighbourhood of
// the other image, with parabolic sub-pixel refinement of the peak.
// Both rasters must share a grid. maskRef/maskSearch restrict the
// correlation to stable pixels; either may be nil to accept all.
func MatchTemplates(ref, search *raster.Raster, maskRef, maskSearch []bool, centers []Center, tempRadius, searchRadius int) []Match {
	matches := make([]Match, len(centers))

	for i, center := range centers {
		matches[i] = matchOne(ref, search, maskRef, maskSearch, center, tempRadius, searchRadius)
	}
	return matches
}

func matchOne(ref, search *raster.Raster, maskRef, maskSearch []bool, center Center, tempRadius, searchRadius int) Match {
	noMatch := Match{X: math.NaN(), Y: math.NaN(), Score: math.NaN()}

	// correlation surface over integer displacements
	size := 2*searchRadius + 1
	scores := make([]float64, size*size)
	for j := range scores {
		scores[j] = math.NaN()
	}

	bestScore := math.Inf(-1)
	bestDy, bestDx := 0, 0
	found := false

	for dy := -searchRadius; dy <= searchRadius; dy++ {
		for dx := -searchRadius; dx <= searchRadius; dx++ {
			score, ok := correlate(ref, search, maskRef, maskSearch, center, dy, dx, tempRadius)
			if !ok {
				continue
			}
			scores[(dy+searchRadius)*size+(dx+searchRadius)] = score
			if score > bestScore {
				bestScore = score
				bestDy, bestDx = dy, dx
				found = true
			}
		}
	}

	if !found {
		return noMatch
	}

	subDy := float64(bestDy) + parabolicOffset(
		scoreAt(scores, size, bestDy-1, bestDx, searchRadius),
		bestScore,
		scoreAt(scores, size, bestDy+1, bestDx, searchRadius))
	subDx := float64(bestDx) + parabolicOffset(
		scoreAt(scores, size, bestDy, bestDx-1, searchRadius),
		bestScore,
		scoreAt(scores, size, bestDy, bestDx+1, searchRadius))

	x, y := search.Transform.PixToMap(float64(center.Row)+subDy, float64(center.Col)+subDx)
	return Match{X: x, Y: y, Score: bestScore}
}

func scoreAt(scores []float64, size, dy, dx, searchRadius int) float64 {
	row := dy + searchRadius
	col := dx + searchRadius
	if row < 0 || row >= size || col < 0 || col >= size {
		return math.NaN()
	}
	return scores[row*size+col]
}

// parabolicOffset - sub-pixel shift of a peak from its two neighbours
// on the correlation surface. Falls back to 0 when a neighbour is
// missing or the surface is locally flat.
func parabolicOffset(before, peak, after float64) float64 {
	if math.IsNaN(before) || math.IsNaN(after) {
		return 0
	}
	denom := before - 2*peak + after
	if math.Abs(denom) < 1e-12 {
		return 0
	}
	offset := 0.5 * (before - after) / denom
	if offset < -1 || offset > 1 {
		return 0
	}
	return offset
}

// correlate - NCC between the reference template at center and the
// search image displaced by (dy, dx). Pixels outside either grid,
// non-finite, or masked out in either image are excluded; the score
// only counts when enough of the template remains.
func correlate(ref, search *raster.Raster, maskRef, maskSearch []bool, center Center, dy, dx, tempRadius int) (float64, bool) {
	sumA, sumB := 0.0, 0.0
	sumAA, sumBB, sumAB := 0.0, 0.0, 0.0
	count := 0

	for tr := -tempRadius; tr <= tempRadius; tr++ {
		for tc := -tempRadius; tc <= tempRadius; tc++ {
			refRow := center.Row + tr
			refCol := center.Col + tc
			searchRow := refRow + dy
			searchCol := refCol + dx
			if refRow < 0 || refRow >= ref.Rows || refCol < 0 || refCol >= ref.Cols {
				continue
			}
			if searchRow < 0 || searchRow >= search.Rows || searchCol < 0 || searchCol >= search.Cols {
				continue
			}
			if maskRef != nil && !maskRef[refRow*ref.Cols+refCol] {
				continue
			}
			if maskSearch != nil && !maskSearch[searchRow*search.Cols+searchCol] {
				continue
			}

			a := ref.At(refRow, refCol)
			b := search.At(searchRow, searchCol)
			if math.IsNaN(a) || math.IsNaN(b) {
				continue
			}

			sumA += a
			sumB += b
			sumAA += a * a
			sumBB += b * b
			sumAB += a * b
			count++
		}
	}

	templateArea := (2*tempRadius + 1) * (2*tempRadius + 1)
	if float64(count) < minValidFraction*float64(templateArea) {
		return 0, false
	}

	n := float64(count)
	varA := sumAA - sumA*sumA/n
	varB := sumBB - sumB*sumB/n
	if varA < 1e-12 || varB < 1e-12 {
		return 0, false
	}
	cov := sumAB - sumA*sumB/n
	return cov / math.Sqrt(varA*varB), true
}
