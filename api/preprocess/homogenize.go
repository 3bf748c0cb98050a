package preprocess

import (
	"math"

	"github.com/redglacier/core/core/raster"
)

// Scene-classification class meaning high cloud probability. Pixels of
// this class are unusable for shadow matching.
const classHighCloudProbability = 9

// SceneRasters - one scene's rasters after homogenization. All share
// shape, transform and CRS; bands are top-of-atmosphere reflectance.
type SceneRasters struct {
	Blue  *raster.Raster
	Green *raster.Raster
	Red   *raster.Raster
	Nir   *raster.Raster
	DEM   *raster.Raster

	// SceneClass is nil when the scene has no classification layer
	SceneClass *raster.Raster

	// StableMask marks pixels usable for registration: elevation above
	// sea level and not flagged as likely cloud
	StableMask []bool
}

// CropWindow - the array index ranges the reference grid was cropped
// by, for cropping grids already aligned to that grid upstream
type CropWindow struct {
	Y0, Y1 int
	X0, X1 int
}

// Homogenize - crops bands, DEM and the optional scene-classification
// layer to the bounding box, each by its own coordinate axes, converts
// band digital numbers to reflectance, resamples the classification
// onto the reference grid (nearest neighbour, the data is categorical)
// and derives the stability mask. The DEM defines the reference grid;
// sceneClass may be nil.
func Homogenize(blue, green, red, nir, dem, sceneClass *raster.Raster, bbox raster.BBox, calibrate Calibrator) (*SceneRasters, CropWindow, error) {
	window := CropWindow{}

	demCrop, win, err := cropToBBox(dem, bbox)
	if err != nil {
		return nil, window, err
	}
	window = win

	scene := &SceneRasters{DEM: demCrop}

	type bandLayer struct {
		name string
		src  *raster.Raster
		dst  **raster.Raster
	}
	layers := []bandLayer{
		{"blue", blue, &scene.Blue},
		{"green", green, &scene.Green},
		{"red", red, &scene.Red},
		{"nir", nir, &scene.Nir},
	}

	for _, layer := range layers {
		crop, _, err := cropToBBox(layer.src, bbox)
		if err != nil {
			return nil, window, err
		}
		if !crop.SameGrid(demCrop) {
			return nil, window, GridMismatchError{Layer: layer.name}
		}
		*layer.dst = calibrate(crop)
	}

	if sceneClass != nil {
		classCrop, _, err := cropToBBox(sceneClass, bbox)
		if err != nil {
			return nil, window, err
		}
		resampled := raster.ReprojectMatchNearest(classCrop, demCrop)
		if !resampled.SameGrid(demCrop) {
			return nil, window, GridMismatchError{Layer: "scene-classification"}
		}
		scene.SceneClass = resampled
	}

	scene.StableMask = stableMask(demCrop, scene.SceneClass)
	return scene, window, nil
}

func cropToBBox(r *raster.Raster, bbox raster.BBox) (*raster.Raster, CropWindow, error) {
	y0, y1, x0, x1, err := raster.BBoxIndices(r.XCoords(), r.YCoords(), bbox)
	if err != nil {
		return nil, CropWindow{}, err
	}
	return r.Crop(y0, y1, x0, x1), CropWindow{Y0: y0, Y1: y1, X0: x0, X1: x1}, nil
}

// stableMask - pixels reliable for geometric matching. Without a
// classification layer the mask degrades to elevation-only.
func stableMask(dem *raster.Raster, sceneClass *raster.Raster) []bool {
	mask := make([]bool, len(dem.Data))
	for i, z := range dem.Data {
		if math.IsNaN(z) || z <= 0 {
			continue
		}
		if sceneClass != nil && nearestClass(sceneClass.Data[i]) == classHighCloudProbability {
			continue
		}
		mask[i] = true
	}
	return mask
}

func nearestClass(v float64) int {
	if math.IsNaN(v) {
		return -1
	}
	return int(math.Round(v))
}
