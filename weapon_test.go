package main

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/yohamta/donburi/filter"
)

func TestWeaponReady(t *testing.T) {
	w := NewLaserWeapon(10)
	if !w.Ready(0) {
		t.Fatal("fresh weapon not ready")
	}
	w.LastFire = 0
	tests := []struct {
		now  float64
		want bool
	}{
		{0.05, false},
		{0.1, false}, // exactly one period is not enough
		{0.1001, true},
	}
	for _, tt := range tests {
		if got := w.Ready(tt.now); got != tt.want {
			t.Errorf("Ready(%v) = %v, want %v", tt.now, got, tt.want)
		}
	}

	if NewLaserWeapon(0).Ready(100) {
		t.Error("weapon with zero fire rate is ready")
	}
}

func TestWeaponFireRecordsShot(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	w := DefaultWeapon()
	if got := w.Fire(2, rng); len(got) != 1 || got[0] != 0 {
		t.Fatalf("Fire = %v, want [0]", got)
	}
	if w.LastFire != 2 {
		t.Errorf("LastFire = %v, want 2", w.LastFire)
	}
	if got := w.Fire(2.05, rng); got != nil {
		t.Errorf("Fire during cooldown = %v, want nil", got)
	}
}

func TestScattergunSpread(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	w := NewScattergun(ScattergunFireRate, ScattergunCount)
	got := w.Fire(0, rng)
	if len(got) != ScattergunCount {
		t.Fatalf("Fire returned %d offsets, want %d", len(got), ScattergunCount)
	}
	for _, off := range got {
		if math.Abs(off) > ScatterSpread {
			t.Errorf("offset %v outside spread %v", off, ScatterSpread)
		}
	}
}

func TestLaserCapKeepsNewest(t *testing.T) {
	a := newServerApp(t)
	for i := 0; i < MaxLiveLasers+15; i++ {
		a.Time.Elapsed = float64(i) * 0.001
		a.SpawnLaser(TransformData{Translation: mgl64.Vec2{5000, float64(i)}}, 1)
	}
	despawnOldestLasers(a)

	if n := lasers.Count(a.World); n != MaxLiveLasers {
		t.Fatalf("%d lasers alive, want %d", n, MaxLiveLasers)
	}
	oldest := math.Inf(1)
	for _, at := range laserSpawnTimes(a) {
		oldest = math.Min(oldest, at)
	}
	if want := 15 * 0.001; oldest < want-1e-9 {
		t.Errorf("oldest surviving laser spawned at %v, want >= %v", oldest, want)
	}
}

func TestLaserExpires(t *testing.T) {
	a := newServerApp(t)
	a.SpawnLaser(TransformData{}, 1)
	a.Time.Elapsed = LaserLifetime
	despawnExpiredLasers(a)
	if lasers.Count(a.World) != 1 {
		t.Fatal("laser despawned at exactly its lifetime")
	}
	a.Time.Elapsed = LaserLifetime + 0.01
	despawnExpiredLasers(a)
	if lasers.Count(a.World) != 0 {
		t.Fatal("expired laser still alive")
	}
}

func TestLaserDamagesAndPushesAsteroid(t *testing.T) {
	a := newServerApp(t)
	rock := a.SpawnAsteroid(mgl64.Vec2{100, 0}, 32, AsteroidPathOne)
	Transform.Get(rock).Rotation = 0
	// facing +X
	a.SpawnLaser(TransformData{Translation: mgl64.Vec2{70, 0}, Rotation: -math.Pi / 2}, 1)

	a.Time.Delta = testDT
	moveLasers(a)
	DamagedEvents.ProcessEvents(a.World)

	if n := lasers.Count(a.World); n != 0 {
		t.Errorf("%d lasers left, want the hit to consume it", n)
	}
	if got := Health.Get(rock).Current; got != 100-LaserDamage {
		t.Errorf("asteroid health = %v, want %v", got, 100-LaserDamage)
	}
	imp := Body.Get(rock).Impulse
	if math.Abs(imp.X()-LaserImpulse) > 1e-9 || math.Abs(imp.Y()) > 1e-9 {
		t.Errorf("impulse = %v, want (%v, 0)", imp, LaserImpulse)
	}
}

func TestLaserIgnoresOwner(t *testing.T) {
	a := newServerApp(t)
	ship, err := a.SpawnPlayer(7)
	if err != nil {
		t.Fatal(err)
	}
	pos := Transform.Get(ship).Translation
	a.SpawnLaser(TransformData{Translation: pos}, 7)

	a.Time.Delta = testDT
	moveLasers(a)
	DamagedEvents.ProcessEvents(a.World)

	if lasers.Count(a.World) != 1 {
		t.Error("laser hit its own shooter")
	}
	if got := Health.Get(ship).Current; got != 100 {
		t.Errorf("shooter health = %v, want 100", got)
	}
}

func TestFireWeaponsSpawnsFromShip(t *testing.T) {
	a := newServerApp(t)
	startPlaying(t, a, 1, 2)
	ship := mustPlayer(t, a, 1)
	ActionState.Get(ship).Press(ActionShoot)
	fireWeapons(a)
	if n := lasers.Count(a.World); n != 1 {
		t.Fatalf("%d lasers after one shot, want 1", n)
	}
	fireWeapons(a)
	if n := lasers.Count(a.World); n != 1 {
		t.Errorf("%d lasers after firing twice in one tick, want 1", n)
	}
}

func TestInaccuracyJittersShots(t *testing.T) {
	tests := []struct {
		name   string
		weapon WeaponData
		debuff *DebuffKind
		spread float64
	}{
		{"laser", NewLaserWeapon(DefaultFireRate), nil, 0},
		{"laser inaccurate", NewLaserWeapon(DefaultFireRate), debuff(DebuffInaccuracy), InaccuracyJitter},
		{"scattergun inaccurate", NewScattergun(ScattergunFireRate, ScattergunCount), debuff(DebuffInaccuracy), ScatterSpread + InaccuracyJitter},
	}
	const aim = 0.5
	for _, tt := range tests {
		a := newServerApp(t)
		startPlaying(t, a, 1)
		ship := mustPlayer(t, a, 1)
		Transform.Get(ship).Rotation = aim
		Player.Get(ship).Debuff = tt.debuff
		ActionState.Get(ship).Press(ActionShoot)

		deviated := false
		for i := 0; i < 50; i++ {
			Weapon.SetValue(ship, tt.weapon)
			fireWeapons(a)
			for _, e := range entries(a, lasers) {
				d := math.Abs(NormalizeAngle(Transform.Get(e).Rotation - aim))
				if d > tt.spread+1e-9 {
					t.Errorf("%s: shot %.3f rad off aim, want at most %.3f", tt.name, d, tt.spread)
				}
				if d > 1e-9 {
					deviated = true
				}
			}
			a.despawnAll(filter.Contains(Laser))
		}
		if tt.spread == 0 && deviated {
			t.Errorf("%s: shots left the ship's heading", tt.name)
		}
		if tt.spread > 0 && !deviated {
			t.Errorf("%s: 50 volleys without any jitter", tt.name)
		}
	}
}

// ---------- helpers ----------

func laserSpawnTimes(a *App) []float64 {
	var out []float64
	for _, e := range entries(a, lasers) {
		out = append(out, SpawnTime.Get(e).At)
	}
	return out
}
