package preprocess

import (
	"github.com/redglacier/core/core/raster"
)

// ShadowImages - the observed and synthetic illumination products of
// one scene, all on the reference grid
type ShadowImages struct {
	// From the shadow transform
	Shadow *raster.Raster
	Albedo *raster.Raster

	// From the DEM: binary cast-shadow prediction under mean sun angles
	// (classifier seed) and continuous shading under per-pixel angles
	// (registration reference)
	ShadowArtificial *raster.Raster
	ShadeArtificial  *raster.Raster
}

// ComputeShadowImages - derives the four illumination products. Pure
// orchestration over the transform and illuminator capabilities, no
// I/O.
func ComputeShadowImages(scene *SceneRasters, angles *SceneAngles, transform ShadowTransform, illum Illuminator) *ShadowImages {
	images := &ShadowImages{}
	images.Shadow, images.Albedo = transform.Enhance(scene.Blue, scene.Green, scene.Red, scene.Nir)
	images.ShadowArtificial = illum.Shadowing(scene.DEM, angles.MeanSunAzimuth, angles.MeanSunZenith)
	images.ShadeArtificial = illum.Shading(scene.DEM, angles.SunAzimuth, angles.SunZenith)
	return images
}
