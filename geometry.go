package main

import (
	"math"
	"math/rand/v2"

	"github.com/go-gl/mathgl/mgl64"
)

// PointSampler picks random spawn points.
type PointSampler interface {
	Point(rng *rand.Rand) mgl64.Vec2
}

// Annulus samples uniformly between ExcludeRadius and Radius around Center.
type Annulus struct {
	Center        mgl64.Vec2
	Radius        float64
	ExcludeRadius float64
}

func (c Annulus) Point(rng *rand.Rand) mgl64.Vec2 {
	theta := rng.Float64() * 2 * math.Pi
	inner2 := c.ExcludeRadius * c.ExcludeRadius
	r := math.Sqrt(inner2 + rng.Float64()*(c.Radius*c.Radius-inner2))
	return c.Center.Add(mgl64.Vec2{math.Cos(theta), math.Sin(theta)}.Mul(r))
}

// Rect samples uniformly inside an axis-aligned rectangle centered on Center.
type Rect struct {
	Center mgl64.Vec2
	Size   mgl64.Vec2
}

func (q Rect) Point(rng *rand.Rand) mgl64.Vec2 {
	return q.Center.Add(mgl64.Vec2{
		(rng.Float64() - 0.5) * q.Size.X(),
		(rng.Float64() - 0.5) * q.Size.Y(),
	})
}
