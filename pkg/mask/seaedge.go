package mask

import (
	"github.com/rokm/macvi-usv-odce-toolkit/pkg/geom"
	"github.com/rokm/macvi-usv-odce-toolkit/pkg/mods"
)

// FromSeaEdge constructs the sea-edge validity mask from the frame's
// annotated waterline. Each water-edge polyline is extended to the top of the
// image, and the enclosed sky region is marked as ignore; the water surface
// below the edge remains valid. Obstacles can only appear on or below the
// waterline, so everything above it is outside the matching scope.
func FromSeaEdge(edges []mods.WaterEdge, width, height int) *Mask {
	m := New(width, height)
	for _, edge := range edges {
		if len(edge.XAxis) == 0 || len(edge.YAxis) == 0 || len(edge.XAxis) != len(edge.YAxis) {
			continue
		}
		n := len(edge.XAxis)
		pts := make([]geom.Point, 0, n+2)
		pts = append(pts, geom.Point{X: edge.XAxis[0], Y: 0})
		for i := 0; i < n; i++ {
			pts = append(pts, geom.Point{X: edge.XAxis[i], Y: edge.YAxis[i]})
		}
		pts = append(pts, geom.Point{X: edge.XAxis[n-1], Y: 0})
		m.fillPolygon(pts, true)
	}
	return m
}
