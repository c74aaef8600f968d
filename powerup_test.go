package main

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/yohamta/donburi/filter"
)

func TestApplyCollectible(t *testing.T) {
	tests := []struct {
		name       string
		powerUp    PowerUpKind
		wantWeapon WeaponData
		wantHealth HealthData
	}{
		{"rapid fire", PowerUpRapidFire, NewLaserWeapon(RapidFireRate), HealthData{Current: 60, Max: 100}},
		{"triple shot", PowerUpTripleShot, NewScattergun(ScattergunFireRate, ScattergunCount), HealthData{Current: 60, Max: 100}},
		{"shield", PowerUpShield, DefaultWeapon(), HealthData{Current: 110, Max: 150}},
		{"hither thither", PowerUpHitherThither, DefaultWeapon(), HealthData{Current: 60, Max: 100}},
	}
	for _, tt := range tests {
		p := PlayerData{Color: ColorGreen}
		w := NewScattergun(1, 9)
		h := HealthData{Current: 60, Max: 100}
		ApplyCollectible(&p, &w, &h, CollectibleData{PowerUp: tt.powerUp, Debuff: DebuffInaccuracy})

		if p.PowerUp == nil || *p.PowerUp != tt.powerUp {
			t.Errorf("%s: power-up = %v", tt.name, p.PowerUp)
		}
		if p.Debuff == nil || *p.Debuff != DebuffInaccuracy {
			t.Errorf("%s: debuff = %v", tt.name, p.Debuff)
		}
		if w != tt.wantWeapon {
			t.Errorf("%s: weapon = %+v, want %+v", tt.name, w, tt.wantWeapon)
		}
		if h != tt.wantHealth {
			t.Errorf("%s: health = %+v, want %+v", tt.name, h, tt.wantHealth)
		}
	}
}

func TestApplyCollectibleReplacesPrevious(t *testing.T) {
	var p PlayerData
	w := DefaultWeapon()
	ApplyCollectible(&p, &w, nil, CollectibleData{PowerUp: PowerUpTripleShot, Debuff: DebuffSlowed})
	ApplyCollectible(&p, &w, nil, CollectibleData{PowerUp: PowerUpRapidFire, Debuff: DebuffHealthBurn})
	if *p.PowerUp != PowerUpRapidFire || *p.Debuff != DebuffHealthBurn {
		t.Errorf("player = %s/%s, want RapidFire/HealthBurn", p.PowerUp, p.Debuff)
	}
	if w.Kind != WeaponLaser {
		t.Errorf("weapon kind = %v, want laser", w.Kind)
	}
}

func TestCollectPowerUp(t *testing.T) {
	a := newServerApp(t)
	ship, _ := a.SpawnPlayer(1)
	pos := Transform.Get(ship).Translation
	a.SpawnPowerUp(pos.Add(mgl64.Vec2{PlayerRadius, 0}), CollectibleData{PowerUp: PowerUpShield, Debuff: DebuffSlowed})
	far := a.SpawnPowerUp(mgl64.Vec2{-700, -700}, CollectibleData{PowerUp: PowerUpRapidFire})

	collectPowerUps(a)

	p := Player.Get(ship)
	if p.PowerUp == nil || *p.PowerUp != PowerUpShield {
		t.Fatalf("power-up = %v, want Shield", p.PowerUp)
	}
	if got := Health.Get(ship).Max; got != 100+ShieldBonus {
		t.Errorf("max health = %v, want %v", got, 100+ShieldBonus)
	}
	if n := countWith(a, filter.Contains(Collectible)); n != 1 {
		t.Errorf("%d collectibles left, want 1", n)
	}
	if !a.World.Valid(far.Entity()) {
		t.Error("distant collectible was taken")
	}
}

func TestPlayingSpawnsPowerUps(t *testing.T) {
	a := newServerApp(t)
	a.SpawnPlayer(1)
	a.SpawnPlayer(2)
	a.State.Set(StatePreGame)
	tick(a, 1)
	a.State.Set(StatePlaying)
	// the OnEnter hooks run at the start of this tick
	a.Tick(0)
	if n := countWith(a, filter.Contains(Collectible)); n > PowerUpCount || n == 0 {
		t.Errorf("%d collectibles, want between 1 and %d", n, PowerUpCount)
	}
}
