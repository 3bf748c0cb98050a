package imageproc

import (
	"math"

	"github.com/redglacier/core/core/raster"
)

// ShadeRemoval - decomposes top-of-atmosphere reflectance into a
// shadow-enhanced image and an albedo image by rotating the
// blue-vs-infrared plane of the square-rooted bands. Shadowed pixels
// keep relatively more blue (atmospheric scatter) than direct
// infrared, so a rotation by the configured angle separates the
// illumination component from the surface-reflectance component.
// The green band takes no part in this transform but is accepted so
// all transforms share one signature. Angle is in degrees.
func ShadeRemoval(blue, green, red, nir *raster.Raster, angleDeg float64) (shadow, albedo *raster.Raster) {
	shadow = blue.NewLike()
	albedo = blue.NewLike()

	angle := deg2rad(angleDeg)
	cosA := math.Cos(angle)
	sinA := math.Sin(angle)

	for i := range blue.Data {
		b := blue.Data[i]
		r := red.Data[i]
		n := nir.Data[i]
		if math.IsNaN(b) || math.IsNaN(r) || math.IsNaN(n) || b < 0 || r < 0 || n < 0 {
			shadow.Data[i] = math.NaN()
			albedo.Data[i] = math.NaN()
			continue
		}

		x := math.Sqrt(b)
		y := math.Sqrt((r + n) / 2)

		shadow.Data[i] = cosA*x - sinA*y
		albedo.Data[i] = sinA*x + cosA*y
	}
	return shadow, albedo
}
