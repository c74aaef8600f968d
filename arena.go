package main

import (
	"log"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/filter"
)

const (
	ArenaStartSize     = 1600.0
	ArenaMinSize       = 160.0
	ArenaShrinkRate    = 12.0 // units/s per axis
	OutsideArenaDPS    = 34.0
	arenaSpawnFraction = 0.45
)

// Force tints the arena. It has no gameplay effect yet.
type Force uint8

const (
	ForceNone Force = iota
	ForceRed
	ForceYellow
	ForceBlue
	ForcePink
	ForceGreen
)

// ArenaData is the shrinking play field centered on its transform.
type ArenaData struct {
	StartingSize  mgl64.Vec2 `msgpack:"s"`
	CurrentSize   mgl64.Vec2 `msgpack:"c"`
	TimeSpawned   float64    `msgpack:"t"`
	FriendlyForce Force      `msgpack:"f"`
}

// SizeAt is the arena size at elapsed time now. Each axis shrinks linearly
// and stops at ArenaMinSize, or at the starting size if that is smaller.
func (ad ArenaData) SizeAt(now float64) mgl64.Vec2 {
	elapsed := math.Max(0, now-ad.TimeSpawned)
	var out mgl64.Vec2
	for i := 0; i < 2; i++ {
		floor := math.Min(ArenaMinSize, ad.StartingSize[i])
		out[i] = math.Max(floor, ad.StartingSize[i]-ArenaShrinkRate*elapsed)
	}
	return out
}

// ArenaResidentData tracks whether an entity is outside the current arena.
type ArenaResidentData struct {
	IsOutside bool
}

var (
	Arena         = donburi.NewComponentType[ArenaData]()
	ArenaResident = donburi.NewComponentType[ArenaResidentData]()
)

func installArena(a *App) {
	a.State.OnEnter(StatePlaying, func(a *App) {
		if a.Role == RoleServer {
			a.SpawnArena(ArenaStartSize)
		}
	})
	a.State.OnExit(StatePlaying, func(a *App) {
		if a.Role == RoleServer {
			a.despawnAll(filter.Contains(Arena))
		}
	})
	a.AddSystem(StageUpdate, "shrink_arena", shrinkArena, IsServer, InState(StatePlaying))
	a.AddSystem(StageUpdate, "update_arena_residency", updateArenaResidency, IsServer, InState(StatePlaying))
	a.AddSystem(StageUpdate, "damage_outside_arena", damageOutsideArena, IsServer, InState(StatePlaying))
}

// SpawnArena creates the arena as a box sensor at the origin.
func (a *App) SpawnArena(size float64) *donburi.Entry {
	e := a.spawn(Transform, Arena, Collider)
	start := mgl64.Vec2{size, size}
	Arena.SetValue(e, ArenaData{
		StartingSize:  start,
		CurrentSize:   start,
		TimeSpawned:   a.Time.Elapsed,
		FriendlyForce: Force(a.Rand.IntN(int(ForceGreen) + 1)),
	})
	Collider.SetValue(e, ColliderData{Shape: ShapeBox, HalfExtents: start.Mul(0.5), Sensor: true})
	return e
}

func shrinkArena(a *App) {
	e, ok := Arena.First(a.World)
	if !ok {
		log.Printf("shrink_arena: no arena")
		return
	}
	ad := Arena.Get(e)
	next := ad.SizeAt(a.Time.Elapsed)
	for i := 0; i < 2; i++ {
		ad.CurrentSize[i] = math.Min(ad.CurrentSize[i], next[i])
	}
	if e.HasComponent(Collider) {
		Collider.Get(e).HalfExtents = ad.CurrentSize.Mul(0.5)
	}
}

// InsideArena reports whether a collider intersects the arena rectangle.
func InsideArena(arenaTf TransformData, size mgl64.Vec2, tf TransformData, c ColliderData) bool {
	box := ColliderData{Shape: ShapeBox, HalfExtents: size.Mul(0.5)}
	return Overlaps(arenaTf, box, tf, c)
}

func updateArenaResidency(a *App) {
	e, ok := Arena.First(a.World)
	if !ok {
		log.Printf("update_arena_residency: no arena")
		return
	}
	arenaTf := *Transform.Get(e)
	size := Arena.Get(e).CurrentSize
	donburi.NewQuery(filter.Contains(ArenaResident, Transform)).Each(a.World, func(r *donburi.Entry) {
		c := ColliderData{Shape: ShapeCircle}
		if r.HasComponent(Collider) {
			c = *Collider.Get(r)
		}
		ArenaResident.Get(r).IsOutside = !InsideArena(arenaTf, size, *Transform.Get(r), c)
	})
}

func damageOutsideArena(a *App) {
	amount := OutsideArenaDPS * a.Time.Delta
	donburi.NewQuery(filter.Contains(ArenaResident, Player, Transform)).Each(a.World, func(e *donburi.Entry) {
		if !ArenaResident.Get(e).IsOutside {
			return
		}
		DamagedEvents.Publish(a.World, DamagedEvent{
			Entity: e.Entity(),
			Amount: amount,
			Point:  Transform.Get(e).Translation,
		})
	})
}
