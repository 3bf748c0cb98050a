package preprocess

import (
	"math"

	"github.com/redglacier/core/core/raster"
)

// SceneAngles - per-pixel sun and view geometry on the reference grid,
// plus the scene-mean sun angles used by the artificial shadow model
type SceneAngles struct {
	SunAzimuth  *raster.Raster
	SunZenith   *raster.Raster
	ViewAzimuth *raster.Raster
	ViewZenith  *raster.Raster

	MeanSunAzimuth float64
	MeanSunZenith  float64
}

// CropAngleGrids - crops the interpolated angle grids by array index
// ranges. The grids are aligned to the uncropped reference raster by
// construction upstream, which is why cropping is by index and not by
// bounding box coordinates.
func CropAngleGrids(sunAz, sunZn, viewAz, viewZn *raster.Raster, window CropWindow) *SceneAngles {
	angles := &SceneAngles{
		SunAzimuth:  sunAz.Crop(window.Y0, window.Y1, window.X0, window.X1),
		SunZenith:   sunZn.Crop(window.Y0, window.Y1, window.X0, window.X1),
		ViewAzimuth: viewAz.Crop(window.Y0, window.Y1, window.X0, window.X1),
		ViewZenith:  viewZn.Crop(window.Y0, window.Y1, window.X0, window.X1),
	}
	angles.MeanSunAzimuth = finiteMean(angles.SunAzimuth.Data)
	angles.MeanSunZenith = finiteMean(angles.SunZenith.Data)
	return angles
}

func finiteMean(values []float64) float64 {
	sum, count := 0.0, 0
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		sum += v
		count++
	}
	if count == 0 {
		return math.NaN()
	}
	return sum / float64(count)
}
