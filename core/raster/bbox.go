package raster

import (
	"fmt"
)

// EmptyRegionError - the bounding box selects no samples on one axis of
// a raster, meaning the raster does not cover the requested area. Fatal
// for the scene being processed.
type EmptyRegionError struct {
	Axis string
	BBox BBox
}

func (e EmptyRegionError) Error() string {
	return fmt.Sprintf("bounding box [%v %v %v %v] selects no samples on the %v axis", e.BBox.MinX, e.BBox.MinY, e.BBox.MaxX, e.BBox.MaxY, e.Axis)
}

// BBoxIndices - converts a geographic bounding box to half-open index
// ranges [y0,y1), [x0,x1) over the given coordinate axes. Selection is
// by value membership in the closed bbox interval on each axis
// independently, so ascending and descending axes behave the same.
func BBoxIndices(xCoords, yCoords []float64, bbox BBox) (int, int, int, int, error) {
	x0, x1, found := matchingIndexRange(xCoords, bbox.MinX, bbox.MaxX)
	if !found {
		return 0, 0, 0, 0, EmptyRegionError{Axis: "x", BBox: bbox}
	}

	y0, y1, found := matchingIndexRange(yCoords, bbox.MinY, bbox.MaxY)
	if !found {
		return 0, 0, 0, 0, EmptyRegionError{Axis: "y", BBox: bbox}
	}

	return y0, y1, x0, x1, nil
}

// matchingIndexRange - min and max+1 index of coordinates lying within
// [lo, hi], independent of the storage order of the axis
func matchingIndexRange(coords []float64, lo, hi float64) (int, int, bool) {
	minIdx, maxIdx := -1, -1
	for i, c := range coords {
		if c >= lo && c <= hi {
			if minIdx < 0 {
				minIdx = i
			}
			maxIdx = i
		}
	}
	if minIdx < 0 {
		return 0, 0, false
	}
	return minIdx, maxIdx + 1, true
}
