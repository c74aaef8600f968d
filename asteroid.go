package main

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/filter"
)

const (
	AsteroidCount        = 15
	AsteroidMinScale     = 16.0
	AsteroidMaxScale     = 64.0
	AsteroidDensity      = 1.0 / 256 // mass per unit of area
	AsteroidDamping      = 0.2
	asteroidClearance    = PlayerSpawnRing + 80
	asteroidSpinVariance = 0.6
)

// AsteroidPath selects one of the outline shapes.
type AsteroidPath uint8

const (
	AsteroidPathOne AsteroidPath = iota
	AsteroidPathTwo
)

type AsteroidData struct {
	Scale float64      `msgpack:"s"`
	Path  AsteroidPath `msgpack:"p"`
}

var Asteroid = donburi.NewComponentType[AsteroidData]()

var asteroids = donburi.NewQuery(filter.Contains(Asteroid))

func installAsteroids(a *App) {
	a.State.OnEnter(StatePlaying, func(a *App) {
		if a.Role == RoleServer {
			a.SpawnAsteroids(AsteroidCount, ArenaStartSize)
		}
	})
	a.State.OnExit(StatePlaying, func(a *App) {
		if a.Role == RoleServer {
			a.despawnAll(filter.Contains(Asteroid))
		}
	})
}

// SpawnAsteroid places one asteroid with a box collider of half extent scale/2.
func (a *App) SpawnAsteroid(pos mgl64.Vec2, scale float64, path AsteroidPath) *donburi.Entry {
	e := a.spawn(Transform, Velocity, Body, Collider, Asteroid, Health)
	Transform.SetValue(e, TransformData{Translation: pos, Rotation: a.Rand.Float64() * 2 * math.Pi})
	Velocity.SetValue(e, VelocityData{Angular: (a.Rand.Float64()*2 - 1) * asteroidSpinVariance})
	Body.SetValue(e, BodyData{Mass: scale * scale * AsteroidDensity, LinearDamping: AsteroidDamping, AngularDamping: AsteroidDamping})
	Collider.SetValue(e, ColliderData{Shape: ShapeBox, HalfExtents: mgl64.Vec2{scale * 0.5, scale * 0.5}})
	Asteroid.SetValue(e, AsteroidData{Scale: scale, Path: path})
	Health.SetValue(e, DefaultHealth())
	return e
}

// SpawnAsteroids scatters n asteroids in the arena, keeping the player spawn
// ring clear.
func (a *App) SpawnAsteroids(n int, arenaSize float64) {
	area := Annulus{Radius: arenaSize * arenaSpawnFraction, ExcludeRadius: asteroidClearance}
	for i := 0; i < n; i++ {
		scale := AsteroidMinScale + a.Rand.Float64()*(AsteroidMaxScale-AsteroidMinScale)
		path := AsteroidPath(a.Rand.IntN(2))
		a.SpawnAsteroid(area.Point(a.Rand), scale, path)
	}
}
