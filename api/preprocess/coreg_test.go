package preprocess

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"

	"github.com/redglacier/core/core/imageproc"
	"github.com/redglacier/core/core/raster"
)

type matcherFunc func(ref, search *raster.Raster, maskRef, maskSearch []bool, centers []imageproc.Center, tempRadius, searchRadius int) []imageproc.Match

func (f matcherFunc) Match(ref, search *raster.Raster, maskRef, maskSearch []bool, centers []imageproc.Center, tempRadius, searchRadius int) []imageproc.Match {
	return f(ref, search, maskRef, maskSearch, centers, tempRadius, searchRadius)
}

func TestEstimateOffsetMedianRobustToOutliers(t *testing.T) {
	ref := constGrid(100, 100, 1, 1)
	dem := constGrid(100, 100, 1, 50) // flat, every centre passes the slope filter

	// every centre reports the true offset (2, -1); a fifth of them are
	// wild mismatches
	stub := matcherFunc(func(ref, search *raster.Raster, maskRef, maskSearch []bool, centers []imageproc.Center, tempRadius, searchRadius int) []imageproc.Match {
		matches := make([]imageproc.Match, len(centers))
		for i, c := range centers {
			x, y := ref.Transform.PixToMap(float64(c.Row), float64(c.Col))
			matches[i] = imageproc.Match{X: x - 2, Y: y + 1, Score: 0.9}
			if i%5 == 4 {
				matches[i].X += 40
				matches[i].Y -= 35
			}
		}
		return matches
	})

	offset, err := EstimateOffset(ref, ref, dem, nil, stub, 16, 20)
	require.NoError(t, err)

	assert.InDelta(t, 2.0, offset.DX, 1e-9)
	assert.InDelta(t, -1.0, offset.DY, 1e-9)
}

func TestEstimateOffsetNoMatches(t *testing.T) {
	ref := constGrid(100, 100, 1, 1)
	dem := constGrid(100, 100, 1, 50)

	unmatched := matcherFunc(func(ref, search *raster.Raster, maskRef, maskSearch []bool, centers []imageproc.Center, tempRadius, searchRadius int) []imageproc.Match {
		matches := make([]imageproc.Match, len(centers))
		for i := range matches {
			matches[i] = imageproc.Match{X: math.NaN(), Y: math.NaN(), Score: math.NaN()}
		}
		return matches
	})

	_, err := EstimateOffset(ref, ref, dem, nil, unmatched, 16, 20)

	insufficient := InsufficientMatchesError{}
	require.ErrorAs(t, err, &insufficient)
	assert.Zero(t, insufficient.Kept)
	assert.Positive(t, insufficient.Centers)
}

func TestEstimateOffsetSteepTerrainFiltered(t *testing.T) {
	ref := constGrid(100, 100, 1, 1)
	// 45 degree slope everywhere, well over the threshold
	dem := makeGrid(100, 100, 1, func(x, y float64) float64 { return x })

	perfect := matcherFunc(func(ref, search *raster.Raster, maskRef, maskSearch []bool, centers []imageproc.Center, tempRadius, searchRadius int) []imageproc.Match {
		matches := make([]imageproc.Match, len(centers))
		for i, c := range centers {
			x, y := ref.Transform.PixToMap(float64(c.Row), float64(c.Col))
			matches[i] = imageproc.Match{X: x, Y: y, Score: 1}
		}
		return matches
	})

	_, err := EstimateOffset(ref, ref, dem, nil, perfect, 16, 20)

	insufficient := InsufficientMatchesError{}
	require.ErrorAs(t, err, &insufficient)
}

func TestCompensateOrthoOffsetZeroIsIdentity(t *testing.T) {
	img := makeGrid(50, 50, 1, func(x, y float64) float64 {
		return math.Sin(x/4) + math.Cos(y/5)
	})
	dem := makeGrid(50, 50, 1, func(x, y float64) float64 {
		return 200 + 3*math.Sin(x/9)
	})
	viewAz := constGrid(50, 50, 1, 100)
	viewZn := constGrid(50, 50, 1, 8)

	result := CompensateOrthoOffset(img, dem, viewAz, viewZn, Offset{DX: 0, DY: 0})

	for i := range img.Data {
		assert.InDelta(t, img.Data[i], result.Data[i], 1e-9)
	}
}

// Known-shift recovery: the shadow raster is the artificial shading
// shifted by (dx=2, dy=-1) map units. Co-registration must recover the
// offset within a pixel and the compensated raster must agree with the
// reference better than the uncompensated one did.
func TestCoRegisterRecoversKnownShift(t *testing.T) {
	field := func(x, y float64) float64 {
		return math.Sin(x/6) + math.Cos(y/7) + 0.3*math.Sin((x+y)/9)
	}
	ref := makeGrid(100, 100, 1, field)
	shifted := makeGrid(100, 100, 1, func(x, y float64) float64 {
		return field(x+2, y-1)
	})
	// gentle relief, slopes stay under the 20 degree threshold
	dem := makeGrid(100, 100, 1, func(x, y float64) float64 {
		return 100 + 0.1*x + 2*math.Sin(x/10)*math.Cos(y/12)
	})

	stable := make([]bool, 100*100)
	for i := range stable {
		stable[i] = true
	}

	images := &ShadowImages{
		Shadow:          shifted,
		Albedo:          shifted.Clone(),
		ShadeArtificial: ref,
	}
	scene := &SceneRasters{DEM: dem, StableMask: stable}
	angles := &SceneAngles{
		ViewAzimuth: constGrid(100, 100, 1, 0),
		ViewZenith:  constGrid(100, 100, 1, 0), // nadir
	}

	shadow, albedo, offset, err := CoRegister(images, scene, angles, &nccMatcher{}, 16, 20)
	require.NoError(t, err)

	assert.InDelta(t, 2.0, offset.DX, 1.0)
	assert.InDelta(t, -1.0, offset.DY, 1.0)

	before := pearson(images.Shadow, ref)
	after := pearson(shadow, ref)
	assert.Greater(t, after, before)
	assert.Greater(t, after, 0.99)

	require.NotNil(t, albedo)
}

// pearson - correlation over pixels finite in both rasters
func pearson(a, b *raster.Raster) float64 {
	va := []float64{}
	vb := []float64{}
	for i := range a.Data {
		if math.IsNaN(a.Data[i]) || math.IsNaN(b.Data[i]) {
			continue
		}
		va = append(va, a.Data[i])
		vb = append(vb, b.Data[i])
	}
	return stat.Correlation(va, vb, nil)
}
