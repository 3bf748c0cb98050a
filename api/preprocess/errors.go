// The per-scene preprocessing pipeline: homogenize heterogeneous
// rasters onto one grid, derive shadow-enhanced and artificial
// illumination images, co-register them, classify shadow extent and
// publish the results as item assets. Every failure here is fatal for
// one scene only; the batch orchestrator records it and moves on.
package preprocess

import (
	"fmt"
)

// GridMismatchError - homogenized rasters disagree on shape, transform
// or CRS after cropping and resampling. Indicates an upstream data
// defect, not something the pipeline can repair.
type GridMismatchError struct {
	Layer string
}

func (e GridMismatchError) Error() string {
	return fmt.Sprintf("raster layer %v does not align to the reference grid after resampling", e.Layer)
}

// InsufficientMatchesError - co-registration found no usable
// displacement samples after the finite and slope filters, so no safe
// offset can be determined. The scene's shadow model is unusable.
type InsufficientMatchesError struct {
	Centers int
	Kept    int
}

func (e InsufficientMatchesError) Error() string {
	return fmt.Sprintf("co-registration kept %v of %v displacement samples, cannot estimate offset", e.Kept, e.Centers)
}
