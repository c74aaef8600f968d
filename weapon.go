package main

import (
	"math"
	"math/rand/v2"
	"sort"

	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/filter"
)

const (
	LaserSpeed         = 1000.0 // units/s
	LaserDamage        = 50.0
	LaserImpulse       = 50.0
	MaxLiveLasers      = 30
	LaserLifetime      = 0.8 // seconds
	DefaultFireRate    = 10.0
	RapidFireRate      = 20.0
	ScattergunFireRate = 4.0
	ScattergunCount    = 3
	ScatterSpread      = 2 * math.Pi / 3
	InaccuracyJitter   = 0.2 // rad
)

type WeaponKind uint8

const (
	WeaponLaser WeaponKind = iota
	WeaponScattergun
)

// WeaponData is a ship's gun. Count only applies to the scattergun.
type WeaponData struct {
	Kind     WeaponKind `msgpack:"k"`
	FireRate float64    `msgpack:"f"`
	Count    uint8      `msgpack:"n,omitempty"`
	LastFire float64    `msgpack:"l"`
}

// LaserData marks a projectile.
type LaserData struct {
	Damage float64
}

var (
	Weapon = donburi.NewComponentType[WeaponData]()
	Laser  = donburi.NewComponentType[LaserData]()
)

var lasers = donburi.NewQuery(filter.Contains(Laser, Transform, SpawnTime))

func NewLaserWeapon(rate float64) WeaponData {
	return WeaponData{Kind: WeaponLaser, FireRate: rate, LastFire: math.Inf(-1)}
}

func NewScattergun(rate float64, count uint8) WeaponData {
	return WeaponData{Kind: WeaponScattergun, FireRate: rate, Count: count, LastFire: math.Inf(-1)}
}

func DefaultWeapon() WeaponData {
	return NewLaserWeapon(DefaultFireRate)
}

// Ready reports whether more than 1/FireRate seconds passed since the last shot.
func (w WeaponData) Ready(now float64) bool {
	if w.FireRate <= 0 {
		return false
	}
	return now-w.LastFire > 1/w.FireRate
}

// Fire records a shot at now and returns the rotation offset of every
// projectile, or nil when the weapon is still cooling down.
func (w *WeaponData) Fire(now float64, rng *rand.Rand) []float64 {
	if !w.Ready(now) {
		return nil
	}
	w.LastFire = now
	if w.Kind == WeaponLaser {
		return []float64{0}
	}
	offsets := make([]float64, w.Count)
	for i := range offsets {
		offsets[i] = (rng.Float64()*2 - 1) * ScatterSpread
	}
	return offsets
}

func installWeapons(a *App) {
	a.AddSystem(StageUpdate, "fire_weapons", fireWeapons, IsServer, InState(StatePlaying))
	a.AddSystem(StageUpdate, "move_lasers", moveLasers, IsServer)
	a.AddSystem(StagePostUpdate, "despawn_oldest_lasers", despawnOldestLasers, IsServer)
	a.AddSystem(StagePostUpdate, "despawn_expired_lasers", despawnExpiredLasers, IsServer)
}

type shot struct {
	tf    TransformData
	owner uint64
}

func fireWeapons(a *App) {
	now := a.Time.Elapsed
	var shots []shot
	donburi.NewQuery(filter.Contains(Weapon, ActionState, Transform)).Each(a.World, func(e *donburi.Entry) {
		if !ActionState.Get(e).Pressed(ActionShoot) {
			return
		}
		offsets := Weapon.Get(e).Fire(now, a.Rand)
		if len(offsets) == 0 {
			return
		}
		jitter := 0.0
		if e.HasComponent(Player) {
			if d := Player.Get(e).Debuff; d != nil && *d == DebuffInaccuracy {
				jitter = InaccuracyJitter
			}
		}
		tf := *Transform.Get(e)
		owner := ownerOf(e)
		for _, off := range offsets {
			rot := tf.Rotation + off
			if jitter > 0 {
				rot += (a.Rand.Float64()*2 - 1) * jitter
			}
			shots = append(shots, shot{tf: TransformData{Translation: tf.Translation, Rotation: NormalizeAngle(rot)}, owner: owner})
		}
	})
	for _, s := range shots {
		a.SpawnLaser(s.tf, s.owner)
	}
}

// SpawnLaser creates a projectile at tf owned by owner.
func (a *App) SpawnLaser(tf TransformData, owner uint64) *donburi.Entry {
	e := a.spawn(Transform, Laser, NetworkOwner, SpawnTime)
	Transform.SetValue(e, tf)
	Laser.SetValue(e, LaserData{Damage: LaserDamage})
	NetworkOwner.SetValue(e, NetworkOwnerData{ClientID: owner})
	SpawnTime.SetValue(e, SpawnTimeData{At: a.Time.Elapsed})
	return e
}

// moveLasers advances every projectile and casts a ray over the distance
// travelled this tick. The first solid collider not owned by the shooter is
// damaged and pushed, and the projectile is consumed.
func moveLasers(a *App) {
	step := LaserSpeed * a.Time.Delta
	var spent []DamagedEvent
	var consumed []donburi.Entity
	var pushes []RayHit
	lasers.Each(a.World, func(e *donburi.Entry) {
		tf := Transform.Get(e)
		dir := tf.Forward()
		start := tf.Translation
		tf.Translation = start.Add(dir.Mul(step))
		owner := ownerOf(e)
		hit, ok := CastRay(a.World, start, dir, step, func(c *donburi.Entry) bool {
			return c.HasComponent(Laser) || ownerOf(c) == owner && owner != Unowned
		})
		if !ok {
			return
		}
		spent = append(spent, DamagedEvent{
			Entity:    hit.Entity,
			Amount:    Laser.Get(e).Damage,
			Normal:    hit.Normal,
			Direction: dir,
			Point:     hit.Point,
		})
		pushes = append(pushes, hit)
		consumed = append(consumed, e.Entity())
	})
	for i, ev := range spent {
		DamagedEvents.Publish(a.World, ev)
		if a.World.Valid(pushes[i].Entity) {
			target := a.World.Entry(pushes[i].Entity)
			if target.HasComponent(Body) {
				b := Body.Get(target)
				b.Impulse = b.Impulse.Add(ev.Direction.Mul(LaserImpulse))
			}
		}
	}
	for _, ent := range consumed {
		a.despawn(ent)
	}
}

// despawnOldestLasers keeps only the MaxLiveLasers newest projectiles.
func despawnOldestLasers(a *App) {
	type aged struct {
		ent donburi.Entity
		at  float64
	}
	var all []aged
	lasers.Each(a.World, func(e *donburi.Entry) {
		all = append(all, aged{e.Entity(), SpawnTime.Get(e).At})
	})
	if len(all) <= MaxLiveLasers {
		return
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].at > all[j].at })
	for _, l := range all[MaxLiveLasers:] {
		a.despawn(l.ent)
	}
}

func despawnExpiredLasers(a *App) {
	now := a.Time.Elapsed
	var doomed []donburi.Entity
	lasers.Each(a.World, func(e *donburi.Entry) {
		if now-SpawnTime.Get(e).At > LaserLifetime {
			doomed = append(doomed, e.Entity())
		}
	})
	for _, ent := range doomed {
		a.despawn(ent)
	}
}
