package xtid

import "math"

// Cubic is a CSS-style cubic-bezier easing function through (0,0) and (1,1).
// curves holds the control points as p1x, p1y, p2x, p2y.
type Cubic struct {
	curves [4]float64
}

// NewCubic builds an easing curve from the first four values of curves.
// Missing values are zero.
func NewCubic(curves []float64) *Cubic {
	c := &Cubic{}
	copy(c.curves[:], curves)
	return c
}

// Value maps the normalized time t to the eased output.
// Outside [0,1] the curve is extended linearly along its end tangents.
func (c *Cubic) Value(t float64) float64 {
	p1x, p1y, p2x, p2y := c.curves[0], c.curves[1], c.curves[2], c.curves[3]

	if t <= 0.0 {
		var startGradient float64
		if p1x > 0.0 {
			startGradient = p1y / p1x
		} else if p1x == 0.0 && p2x > 0.0 {
			startGradient = p2y / p2x
		}
		return startGradient * t
	}

	if t >= 1.0 {
		var endGradient float64
		if p2x < 1.0 {
			endGradient = (p2y - 1.0) / (p2x - 1.0)
		} else if p2x == 1.0 && p1x < 1.0 {
			endGradient = (p1y - 1.0) / (p1x - 1.0)
		}
		return 1.0 + endGradient*(t-1.0)
	}

	start, mid, end := 0.0, 0.0, 1.0
	for i := 0; i < maxBisectIterations && start < end; i++ {
		mid = (start + end) / 2
		xEst := cubicCalc(p1x, p2x, mid)
		if math.Abs(t-xEst) < 0.00001 {
			return cubicCalc(p1y, p2y, mid)
		}
		if xEst < t {
			start = mid
		} else {
			end = mid
		}
	}
	return cubicCalc(p1y, p2y, mid)
}

func cubicCalc(a, b, m float64) float64 {
	return 3.0*a*(1-m)*(1-m)*m + 3.0*b*(1-m)*m*m + m*m*m
}
