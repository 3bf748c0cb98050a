package preprocess

import (
	"github.com/redglacier/core/core/imageproc"
	"github.com/redglacier/core/core/raster"
)

// Classify - refines the DEM-predicted shadow extent against the
// co-registered shadow image with the active-contour capability. The
// artificial shadow image seeds the contour, the albedo image is an
// auxiliary channel and classification is restricted to stable pixels.
func Classify(shadow, albedo, shadowArtificial *raster.Raster, stable []bool, segmenter Segmenter, iterations int) *raster.Raster {
	return segmenter.Segment(shadow, shadowArtificial, albedo, stable, iterations)
}

// ShadowImageToList - converts the classification into the textual
// cast-shadow connectivity listing written alongside the raster assets
func ShadowImageToList(classification *raster.Raster, meanSunAzDeg, meanSunZnDeg float64) string {
	components := imageproc.LabelShadowComponents(classification)
	return imageproc.FormatConnectivity(components, meanSunAzDeg, meanSunZnDeg)
}
