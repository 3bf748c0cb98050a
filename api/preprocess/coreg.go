package preprocess

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/redglacier/core/core/imageproc"
	"github.com/redglacier/core/core/raster"
)

// Offset - a whole-scene geometric offset in map units, reference
// minus matched position
type Offset struct {
	DX float64
	DY float64
}

// CoRegister - estimates the residual orthorectification offset
// between the shadow-enhanced image and the DEM-derived shading model,
// then removes it from the shadow and albedo images. Returns the
// corrected pair and the estimated offset.
func CoRegister(images *ShadowImages, scene *SceneRasters, angles *SceneAngles, matcher TemplateMatcher, windowSize int, slopeThresholdDeg float64) (shadow, albedo *raster.Raster, offset Offset, err error) {
	offset, err = EstimateOffset(images.ShadeArtificial, images.Shadow, scene.DEM, scene.StableMask, matcher, windowSize, slopeThresholdDeg)
	if err != nil {
		return nil, nil, offset, err
	}

	shadow = CompensateOrthoOffset(images.Shadow, scene.DEM, angles.ViewAzimuth, angles.ViewZenith, offset)
	albedo = CompensateOrthoOffset(images.Albedo, scene.DEM, angles.ViewAzimuth, angles.ViewZenith, offset)
	return shadow, albedo, offset, nil
}

// EstimateOffset - robust scene offset from local template matches.
// Templates are laid out on a regular grid one window apart, matched
// between the artificial shading (reference) and the shadow image
// (search) over stable pixels only, and each displacement is the
// reference minus the matched map coordinate. Centres on steep terrain
// bias shadow matching and are excluded, as are unmatched centres; the
// offset is the element-wise median of what remains.
func EstimateOffset(ref, search, dem *raster.Raster, stable []bool, matcher TemplateMatcher, windowSize int, slopeThresholdDeg float64) (Offset, error) {
	centers := imageproc.TemplateCenters(ref.Rows, ref.Cols, windowSize)
	matches := matcher.Match(ref, search, stable, stable, centers, windowSize/2, windowSize)
	slopes, _ := imageproc.TemplateAspectSlope(dem, centers, windowSize)

	dxs := []float64{}
	dys := []float64{}
	for i, m := range matches {
		if math.IsNaN(m.X) || math.IsNaN(m.Y) {
			continue
		}
		if !(slopes[i] < slopeThresholdDeg) {
			continue
		}
		refX, refY := ref.Transform.PixToMap(float64(centers[i].Row), float64(centers[i].Col))
		dxs = append(dxs, refX-m.X)
		dys = append(dys, refY-m.Y)
	}

	if len(dxs) == 0 {
		return Offset{}, InsufficientMatchesError{Centers: len(centers), Kept: 0}
	}

	sort.Float64s(dxs)
	sort.Float64s(dys)
	return Offset{
		DX: stat.Quantile(0.5, stat.Empirical, dxs, nil),
		DY: stat.Quantile(0.5, stat.Empirical, dys, nil),
	}, nil
}

// CompensateOrthoOffset - removes a scene offset from an image as an
// orthorectification correction. The scalar offset is attributed to a
// height bias of the elevation model through the mean view geometry,
// so the per-pixel shift grows with terrain height and view zenith
// (parallax) rather than being a uniform translation. Under a nadir
// view the correction degenerates to the uniform shift, and a zero
// offset returns the image unchanged. Resampling is bilinear.
func CompensateOrthoOffset(img, dem, viewAz, viewZn *raster.Raster, offset Offset) *raster.Raster {
	azMean := toRad(finiteMean(viewAz.Data))
	znMean := toRad(finiteMean(viewZn.Data))
	tanZnMean := math.Tan(znMean)

	nadir := math.IsNaN(tanZnMean) || math.Abs(tanZnMean) < 1e-9

	// Height bias that would explain the offset along the view azimuth,
	// and the part of the offset it accounts for at mean geometry
	heightBias := 0.0
	parDx, parDy := 0.0, 0.0
	demMedian := 1.0
	if !nadir {
		heightBias = (offset.DX*math.Sin(azMean) + offset.DY*math.Cos(azMean)) / tanZnMean
		parDx = heightBias * tanZnMean * math.Sin(azMean)
		parDy = heightBias * tanZnMean * math.Cos(azMean)

		demMedian = medianOf(dem.Data)
		if math.IsNaN(demMedian) || math.Abs(demMedian) < 1e-9 {
			demMedian = 1.0
		}
	}

	resDx := offset.DX - parDx
	resDy := offset.DY - parDy

	result := img.NewLike()
	for row := 0; row < img.Rows; row++ {
		for col := 0; col < img.Cols; col++ {
			dxPx, dyPx := resDx, resDy
			if !nadir {
				znPx := toRad(viewZn.At(row, col))
				azPx := toRad(viewAz.At(row, col))
				scale := dem.At(row, col) / demMedian
				if math.IsNaN(scale) {
					scale = 1.0
				}
				elevShift := heightBias * scale * math.Tan(znPx)
				dxPx += elevShift * math.Sin(azPx)
				dyPx += elevShift * math.Cos(azPx)
			}

			x, y := img.Transform.PixToMap(float64(row), float64(col))
			result.Set(row, col, img.Sample(x-dxPx, y-dyPx))
		}
	}
	return result
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}

func medianOf(values []float64) float64 {
	finite := []float64{}
	for _, v := range values {
		if !math.IsNaN(v) {
			finite = append(finite, v)
		}
	}
	if len(finite) == 0 {
		return math.NaN()
	}
	sort.Float64s(finite)
	return stat.Quantile(0.5, stat.Empirical, finite, nil)
}
