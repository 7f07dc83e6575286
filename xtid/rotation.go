package xtid

import "math"

// RotationToMatrix returns the 2x3 affine matrix [a b c d tx ty] of a rotation by degrees.
func RotationToMatrix(degrees float64) [6]float64 {
	rad := degrees * math.Pi / 180
	cos, sin := math.Cos(rad), math.Sin(rad)
	return [6]float64{cos, sin, -sin, cos, 0, 0}
}
