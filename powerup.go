package main

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/filter"
)

const (
	PowerUpCount  = 3
	PowerUpRadius = 16.0
	ShieldBonus   = 50.0
	powerUpSpread = 0.6
	powerUpKinds  = 4
	debuffKinds   = 4
)

type PowerUpKind uint8

const (
	PowerUpHitherThither PowerUpKind = iota
	PowerUpTripleShot
	PowerUpRapidFire
	PowerUpShield
)

var powerUpNames = [...]string{"HitherThither", "TripleShot", "RapidFire", "Shield"}

func (p PowerUpKind) String() string {
	if int(p) < len(powerUpNames) {
		return powerUpNames[p]
	}
	return fmt.Sprintf("PowerUp(%d)", uint8(p))
}

type DebuffKind uint8

const (
	DebuffSlowed DebuffKind = iota
	DebuffInaccuracy
	DebuffHealthBurn
	DebuffReversedControls
)

var debuffNames = [...]string{"Slowed", "Inaccuracy", "HealthBurn", "ReversedControls"}

func (d DebuffKind) String() string {
	if int(d) < len(debuffNames) {
		return debuffNames[d]
	}
	return fmt.Sprintf("Debuff(%d)", uint8(d))
}

// CollectibleData is a floating pickup granting a power-up together with a
// debuff.
type CollectibleData struct {
	PowerUp PowerUpKind `msgpack:"p"`
	Debuff  DebuffKind  `msgpack:"d"`
}

var Collectible = donburi.NewComponentType[CollectibleData]()

func installPowerUps(a *App) {
	a.State.OnEnter(StatePlaying, func(a *App) {
		if a.Role == RoleServer {
			a.SpawnPowerUps(PowerUpCount, ArenaStartSize)
		}
	})
	a.State.OnExit(StatePlaying, func(a *App) {
		if a.Role == RoleServer {
			a.despawnAll(filter.Contains(Collectible))
		}
	})
	a.AddSystem(StageUpdate, "collect_powerups", collectPowerUps, IsServer, InState(StatePlaying))
}

// SpawnPowerUp places a collectible sensor at pos.
func (a *App) SpawnPowerUp(pos mgl64.Vec2, c CollectibleData) *donburi.Entry {
	e := a.spawn(Transform, Collider, Collectible)
	Transform.SetValue(e, TransformData{Translation: pos})
	Collider.SetValue(e, ColliderData{Shape: ShapeCircle, Radius: PowerUpRadius, Sensor: true})
	Collectible.SetValue(e, c)
	return e
}

func (a *App) SpawnPowerUps(n int, arenaSize float64) {
	area := Rect{Size: mgl64.Vec2{arenaSize, arenaSize}.Mul(powerUpSpread)}
	for i := 0; i < n; i++ {
		a.SpawnPowerUp(area.Point(a.Rand), CollectibleData{
			PowerUp: PowerUpKind(a.Rand.IntN(powerUpKinds)),
			Debuff:  DebuffKind(a.Rand.IntN(debuffKinds)),
		})
	}
}

// ApplyCollectible gives the pair to a player and swaps its weapon to match
// the power-up.
func ApplyCollectible(p *PlayerData, w *WeaponData, h *HealthData, c CollectibleData) {
	pu, db := c.PowerUp, c.Debuff
	p.PowerUp, p.Debuff = &pu, &db
	switch pu {
	case PowerUpRapidFire:
		*w = NewLaserWeapon(RapidFireRate)
	case PowerUpTripleShot:
		*w = NewScattergun(ScattergunFireRate, ScattergunCount)
	default:
		*w = DefaultWeapon()
	}
	if pu == PowerUpShield && h != nil {
		h.Max += ShieldBonus
		Heal(h, ShieldBonus)
	}
}

// collectPowerUps hands each collectible to the first player overlapping it.
func collectPowerUps(a *App) {
	var taken []donburi.Entity
	donburi.NewQuery(filter.Contains(Collectible, Transform, Collider)).Each(a.World, func(c *donburi.Entry) {
		ctf, ccol := *Transform.Get(c), *Collider.Get(c)
		var winner *donburi.Entry
		donburi.NewQuery(filter.Contains(Player, Weapon, Transform, Collider)).Each(a.World, func(p *donburi.Entry) {
			if winner == nil && Overlaps(ctf, ccol, *Transform.Get(p), *Collider.Get(p)) {
				winner = p
			}
		})
		if winner == nil {
			return
		}
		var h *HealthData
		if winner.HasComponent(Health) {
			h = Health.Get(winner)
		}
		ApplyCollectible(Player.Get(winner), Weapon.Get(winner), h, *Collectible.Get(c))
		taken = append(taken, c.Entity())
	})
	for _, ent := range taken {
		a.despawn(ent)
	}
}
