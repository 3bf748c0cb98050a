package imageproc

import (
	"fmt"
	"math"
	"strings"

	"github.com/redglacier/core/core/raster"
)

// ShadowComponent - one connected cast-shadow region of the
// classification, with its centroid in map coordinates
type ShadowComponent struct {
	ID        int
	PixelArea int
	CentroidX float64
	CentroidY float64
}

// LabelShadowComponents - 4-connected components of the shadow class
// (pixels > 0.5), numbered from 1 in scan order
func LabelShadowComponents(classification *raster.Raster) []ShadowComponent {
	rows := classification.Rows
	cols := classification.Cols
	labels := make([]int, rows*cols)
	components := []ShadowComponent{}

	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			idx := row*cols + col
			if labels[idx] != 0 || !(classification.Data[idx] > 0.5) {
				continue
			}

			id := len(components) + 1
			area := 0
			sumX, sumY := 0.0, 0.0

			queue := []int{idx}
			labels[idx] = id
			for len(queue) > 0 {
				cur := queue[0]
				queue = queue[1:]
				curRow := cur / cols
				curCol := cur % cols

				x, y := classification.Transform.PixToMap(float64(curRow), float64(curCol))
				sumX += x
				sumY += y
				area++

				for _, next := range neighbours4(cur, rows, cols) {
					if labels[next] == 0 && classification.Data[next] > 0.5 {
						labels[next] = id
						queue = append(queue, next)
					}
				}
			}

			components = append(components, ShadowComponent{
				ID:        id,
				PixelArea: area,
				CentroidX: sumX / float64(area),
				CentroidY: sumY / float64(area),
			})
		}
	}
	return components
}

func neighbours4(idx, rows, cols int) []int {
	row := idx / cols
	col := idx % cols
	result := []int{}
	if row > 0 {
		result = append(result, idx-cols)
	}
	if row < rows-1 {
		result = append(result, idx+cols)
	}
	if col > 0 {
		result = append(result, idx-1)
	}
	if col < cols-1 {
		result = append(result, idx+1)
	}
	return result
}

// FormatConnectivity - the text form of the connectivity export:
// a comment header carrying the scene-mean sun angles, then one line
// per shadow region with id, pixel area and centroid
func FormatConnectivity(components []ShadowComponent, sunAzDeg, sunZnDeg float64) string {
	var sb strings.Builder
	sb.WriteString("# cast shadow connectivity\n")
	fmt.Fprintf(&sb, "# sun azimuth: %.4f zenith: %.4f\n", sunAzDeg, sunZnDeg)
	fmt.Fprintf(&sb, "# columns: id area centroid_x centroid_y\n")
	for _, c := range components {
		cx := c.CentroidX
		cy := c.CentroidY
		if math.IsNaN(cx) || math.IsNaN(cy) {
			continue
		}
		fmt.Fprintf(&sb, "%d %d %.2f %.2f\n", c.ID, c.PixelArea, cx, cy)
	}
	return sb.String()
}
