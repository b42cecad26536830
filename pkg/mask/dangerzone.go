package mask

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/rokm/macvi-usv-odce-toolkit/pkg/geom"
	"github.com/rokm/macvi-usv-odce-toolkit/pkg/mods"
)

// DangerZoneParams parameterizes the danger-zone mask construction. These are
// benchmark constants, kept as configuration rather than literals.
type DangerZoneParams struct {
	Roll         float64 // IMU roll, degrees
	Pitch        float64 // IMU pitch, degrees
	CameraHeight float64 // camera height above the sea plane, meters
	Range        float64 // danger zone radius, meters
	CameraFOV    float64 // estimated camera horizontal FOV, degrees
	ImageMargin  int     // tolerance when clipping projected points, pixels
}

// estimatePlaneFromIMU derives the sea-plane equation Ax+By+Cz+D=0 in the
// vessel coordinate system (X forward, Y left, Z up), with the origin shifted
// to the camera's optical center. The plane normal is the up vector rotated
// by the negated roll and pitch readings.
func estimatePlaneFromIMU(roll, pitch, height float64) (a, b, c, d float64) {
	// Measured angle -> plane angle
	roll = -roll * math.Pi / 180
	pitch = -pitch * math.Pi / 180

	cr, sr := math.Cos(roll), math.Sin(roll)
	rx := mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, cr, -sr,
		0, sr, cr,
	})
	cp, sp := math.Cos(pitch), math.Sin(pitch)
	ry := mat.NewDense(3, 3, []float64{
		cp, 0, sp,
		0, 1, 0,
		-sp, 0, cp,
	})

	n := mat.NewVecDense(3, []float64{0, 0, 1})
	var tmp, rotated mat.VecDense
	tmp.MulVec(ry, n)
	rotated.MulVec(rx, &tmp)

	a, b, c, d = rotated.AtVec(0), rotated.AtVec(1), rotated.AtVec(2), height
	norm := math.Sqrt(a*a + b*b + c*c + d*d)
	return a / norm, b / norm, c / norm, d / norm
}

// projectPoint projects a camera-space point through the calibrated pinhole
// model with radial and tangential distortion (OpenCV coefficient order
// k1, k2, p1, p2, k3).
func projectPoint(x, y, z float64, calib *mods.Calibration) (u, v float64) {
	xp := x / z
	yp := y / z

	var k1, k2, p1, p2, k3 float64
	dist := calib.DistCoeffs
	if len(dist) > 0 {
		k1 = dist[0]
	}
	if len(dist) > 1 {
		k2 = dist[1]
	}
	if len(dist) > 2 {
		p1 = dist[2]
	}
	if len(dist) > 3 {
		p2 = dist[3]
	}
	if len(dist) > 4 {
		k3 = dist[4]
	}

	r2 := xp*xp + yp*yp
	radial := 1 + r2*(k1+r2*(k2+r2*k3))
	xd := xp*radial + 2*p1*xp*yp + p2*(r2+2*xp*xp)
	yd := yp*radial + p1*(r2+2*yp*yp) + 2*p2*xp*yp

	k := calib.CameraMatrix
	u = k.At(0, 0)*xd + k.At(0, 1)*yd + k.At(0, 2)
	v = k.At(1, 1)*yd + k.At(1, 2)
	return u, v
}

// FromDangerZone constructs the danger-zone validity mask: the region of the
// image within the danger-zone radius ahead of the vessel. Points on the
// zone's border arc are projected into the image through the calibrated
// camera; the resulting polygon (closed through the bottom image corners) is
// the valid region, everything else is ignore.
func FromDangerZone(p DangerZoneParams, calib *mods.Calibration) *Mask {
	a, b, c, d := estimatePlaneFromIMU(p.Roll, p.Pitch, p.CameraHeight)

	// Sample the zone border at half-degree resolution across the FOV
	numSamples := int(math.Ceil(p.CameraFOV)) * 2
	angles := make([]float64, numSamples)
	floats.Span(angles, 90-p.CameraFOV/2, 90+p.CameraFOV/2)

	width, height := calib.ImageWidth, calib.ImageHeight
	margin := float64(p.ImageMargin)

	polygon := make([]geom.Point, 0, numSamples+5)
	for _, deg := range angles {
		r := deg * math.Pi / 180
		x := p.Range * math.Sin(r)
		y := p.Range * math.Cos(r)
		z := -(a*x + b*y + d) / c

		// Vessel coordinates to camera coordinates
		u, v := projectPoint(-y, -z, x, calib)
		if u < -margin || u > float64(width)+margin {
			continue
		}
		if v < -margin || v > float64(height)+margin {
			continue
		}
		polygon = append(polygon, geom.Point{X: float32(int(u)), Y: float32(int(v))})
	}

	m := NewIgnoreAll(width, height)
	if len(polygon) == 0 {
		// Zone is entirely outside the image
		return m
	}

	// Close the polygon through the bottom image corners
	yFirst := polygon[0].Y
	yLast := polygon[len(polygon)-1].Y
	closed := make([]geom.Point, 0, len(polygon)+5)
	closed = append(closed,
		geom.Point{X: 0, Y: float32(height)},
		geom.Point{X: 0, Y: yFirst})
	closed = append(closed, polygon...)
	closed = append(closed,
		geom.Point{X: float32(width), Y: yLast},
		geom.Point{X: float32(width), Y: float32(height)},
		geom.Point{X: 0, Y: float32(height)})

	m.fillPolygon(closed, false)
	return m
}
