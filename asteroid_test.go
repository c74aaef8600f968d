package main

import (
	"math/rand/v2"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func TestSpawnAsteroidsKeepsSpawnRingClear(t *testing.T) {
	a := newServerApp(t)
	a.SpawnAsteroids(AsteroidCount, ArenaStartSize)

	got := entries(a, asteroids)
	if len(got) != AsteroidCount {
		t.Fatalf("spawned %d asteroids, want %d", len(got), AsteroidCount)
	}
	for _, e := range got {
		ad := Asteroid.Get(e)
		if ad.Scale < AsteroidMinScale || ad.Scale > AsteroidMaxScale {
			t.Errorf("scale %v outside [%v, %v]", ad.Scale, AsteroidMinScale, AsteroidMaxScale)
		}
		d := Transform.Get(e).Translation.Len()
		if d < asteroidClearance-1e-9 || d > ArenaStartSize*arenaSpawnFraction+1e-9 {
			t.Errorf("asteroid at distance %v", d)
		}
		if hx := Collider.Get(e).HalfExtents.X(); hx != ad.Scale/2 {
			t.Errorf("half extent %v, want %v", hx, ad.Scale/2)
		}
	}
}

func TestAsteroidMassScalesWithArea(t *testing.T) {
	a := newServerApp(t)
	small := a.SpawnAsteroid(mgl64.Vec2{}, 16, AsteroidPathOne)
	big := a.SpawnAsteroid(mgl64.Vec2{500, 0}, 64, AsteroidPathTwo)
	if ratio := Body.Get(big).Mass / Body.Get(small).Mass; ratio != 16 {
		t.Errorf("mass ratio = %v, want 16", ratio)
	}
}

func TestAnnulusPoint(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 7))
	area := Annulus{Center: mgl64.Vec2{10, -10}, Radius: 100, ExcludeRadius: 40}
	for i := 0; i < 500; i++ {
		d := area.Point(rng).Sub(area.Center).Len()
		if d < 40-1e-9 || d > 100+1e-9 {
			t.Fatalf("point at distance %v outside [40, 100]", d)
		}
	}
}

func TestRectPoint(t *testing.T) {
	rng := rand.New(rand.NewPCG(8, 8))
	area := Rect{Center: mgl64.Vec2{100, 0}, Size: mgl64.Vec2{20, 60}}
	for i := 0; i < 500; i++ {
		p := area.Point(rng)
		if p.X() < 90 || p.X() > 110 || p.Y() < -30 || p.Y() > 30 {
			t.Fatalf("point %v outside the rectangle", p)
		}
	}
}

func TestAsteroidsClearedAfterRound(t *testing.T) {
	a := newServerApp(t)
	a.SpawnPlayer(1)
	a.SpawnPlayer(2)
	a.State.Set(StatePreGame)
	tick(a, 1)
	a.State.Set(StatePlaying)
	tick(a, 1)
	if asteroids.Count(a.World) == 0 {
		t.Fatal("no asteroids after entering Playing")
	}
	a.State.Set(StatePostGame)
	tick(a, 1)
	if n := asteroids.Count(a.World); n != 0 {
		t.Errorf("%d asteroids left after the round", n)
	}
}
