package main

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Clamp restricts v to [min, max]
func Clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// NormalizeAngle wraps angle to [-PI, PI]
func NormalizeAngle(a float64) float64 {
	for a > math.Pi {
		a -= 2 * math.Pi
	}
	for a < -math.Pi {
		a += 2 * math.Pi
	}
	return a
}

// Forward returns the unit facing vector for a rotation. Rotation 0 faces +Y.
func Forward(rotation float64) mgl64.Vec2 {
	return mgl64.Rotate2D(rotation).Mul2x1(mgl64.Vec2{0, 1})
}

// approach moves v toward target by at most step.
func approach(v, target, step float64) float64 {
	if v < target {
		return math.Min(v+step, target)
	}
	return math.Max(v-step, target)
}
