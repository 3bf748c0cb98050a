package preprocess

import (
	"math"

	"github.com/redglacier/core/api/config"
	"github.com/redglacier/core/core/imageproc"
	"github.com/redglacier/core/core/raster"
	"github.com/redglacier/core/core/stac"
)

// The algorithmic collaborators of the pipeline. Each has a default
// implementation backed by core/imageproc, but the pipeline only
// depends on these contracts, so a scene can be processed with an
// external shadow transform, matcher or classifier plugged in.

// Calibrator - digital numbers to top-of-atmosphere reflectance
type Calibrator func(dn *raster.Raster) *raster.Raster

// ShadowTransform - multi-band shadow enhancement. Returns a
// shadow-enhanced image and an albedo image on the grid of the inputs.
type ShadowTransform interface {
	Enhance(blue, green, red, nir *raster.Raster) (shadow, albedo *raster.Raster)
}

// Illuminator - synthetic illumination predicted from the DEM.
// Shading uses per-pixel sun angle grids and is the registration
// reference; Shadowing uses scene-mean angles and seeds the classifier.
type Illuminator interface {
	Shading(dem, sunAz, sunZn *raster.Raster) *raster.Raster
	Shadowing(dem *raster.Raster, sunAzDeg, sunZnDeg float64) *raster.Raster
}

// TemplateMatcher - locates reference templates in the search image,
// restricted to stable pixels. One result per centre, NaN coordinates
// when unmatched.
type TemplateMatcher interface {
	Match(ref, search *raster.Raster, maskRef, maskSearch []bool, centers []imageproc.Center, tempRadius, searchRadius int) []imageproc.Match
}

// Segmenter - active-contour shadow classification
type Segmenter interface {
	Segment(image, initContour, albedo *raster.Raster, eligible []bool, iterations int) *raster.Raster
}

// AngleProvider - per-pixel sun and view angle grids (degrees) aligned
// to the given reference grid, for the scene held by the item
type AngleProvider interface {
	AngleGrids(item *stac.Item, ref *raster.Raster) (sunAz, sunZn, viewAz, viewZn *raster.Raster, err error)
}

// Capabilities - the full collaborator set a pipeline runs with
type Capabilities struct {
	Calibrate Calibrator
	Transform ShadowTransform
	Illum     Illuminator
	Matcher   TemplateMatcher
	Segmenter Segmenter
	Angles    AngleProvider
}

// DefaultCapabilities - the built-in implementations, parameterized by
// the run configuration
func DefaultCapabilities(cfg config.PipelineConfig) Capabilities {
	return Capabilities{
		Calibrate: ReflectanceCalibrator(cfg.ReflectanceScale),
		Transform: &shadeRemovalTransform{angleDeg: cfg.ShadeRemovalAngle},
		Illum:     &demIlluminator{},
		Matcher:   &nccMatcher{},
		Segmenter: &activeContourSegmenter{},
		Angles: &FixedAngleProvider{
			SunAzimuth:  cfg.FixedSunAzimuth,
			SunZenith:   cfg.FixedSunZenith,
			ViewAzimuth: cfg.FixedViewAzimuth,
			ViewZenith:  cfg.FixedViewZenith,
		},
	}
}

// ReflectanceCalibrator - divides digital numbers by the configured
// scale. Non-positive DNs are sensor fill and become NaN.
func ReflectanceCalibrator(scale float64) Calibrator {
	return func(dn *raster.Raster) *raster.Raster {
		result := dn.NewLike()
		for i, v := range dn.Data {
			if math.IsNaN(v) || v <= 0 {
				result.Data[i] = math.NaN()
			} else {
				result.Data[i] = v / scale
			}
		}
		return result
	}
}

type shadeRemovalTransform struct {
	angleDeg float64
}

func (t *shadeRemovalTransform) Enhance(blue, green, red, nir *raster.Raster) (*raster.Raster, *raster.Raster) {
	return imageproc.ShadeRemoval(blue, green, red, nir, t.angleDeg)
}

type demIlluminator struct{}

func (d *demIlluminator) Shading(dem, sunAz, sunZn *raster.Raster) *raster.Raster {
	return imageproc.Shading(dem, sunAz, sunZn)
}

func (d *demIlluminator) Shadowing(dem *raster.Raster, sunAzDeg, sunZnDeg float64) *raster.Raster {
	return imageproc.Shadowing(dem, sunAzDeg, sunZnDeg)
}

type nccMatcher struct{}

func (m *nccMatcher) Match(ref, search *raster.Raster, maskRef, maskSearch []bool, centers []imageproc.Center, tempRadius, searchRadius int) []imageproc.Match {
	return imageproc.MatchTemplates(ref, search, maskRef, maskSearch, centers, tempRadius, searchRadius)
}

type activeContourSegmenter struct{}

func (s *activeContourSegmenter) Segment(image, initContour, albedo *raster.Raster, eligible []bool, iterations int) *raster.Raster {
	return imageproc.ActiveContour(image, initContour, albedo, eligible, iterations)
}

// FixedAngleProvider - constant sun/view geometry across the scene,
// used when granule metadata is unavailable or when an external angle
// interpolator is not wired in
type FixedAngleProvider struct {
	SunAzimuth  float64
	SunZenith   float64
	ViewAzimuth float64
	ViewZenith  float64
}

func (p *FixedAngleProvider) AngleGrids(item *stac.Item, ref *raster.Raster) (*raster.Raster, *raster.Raster, *raster.Raster, *raster.Raster, error) {
	constant := func(v float64) *raster.Raster {
		grid := ref.NewLike()
		for i := range grid.Data {
			grid.Data[i] = v
		}
		return grid
	}
	return constant(p.SunAzimuth), constant(p.SunZenith), constant(p.ViewAzimuth), constant(p.ViewZenith), nil
}
