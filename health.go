package main

import (
	"log"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/features/events"
)

// DamagedEvent requests that Amount health be removed from Entity.
type DamagedEvent struct {
	Entity    donburi.Entity
	Amount    float64
	Normal    mgl64.Vec2
	Direction mgl64.Vec2
	Point     mgl64.Vec2
}

// DeathEvent is published once when an entity's health first reaches zero.
type DeathEvent struct {
	Entity donburi.Entity
}

var (
	DamagedEvents = events.NewEventType[DamagedEvent]()
	DeathEvents   = events.NewEventType[DeathEvent]()
)

func installHealth(a *App) {
	DamagedEvents.Subscribe(a.World, applyDamage)
	DeathEvents.Subscribe(a.World, func(w donburi.World, ev DeathEvent) {
		a.onDeath(ev)
	})
	a.AddSystem(StagePostUpdate, "apply_damage", func(a *App) {
		DamagedEvents.ProcessEvents(a.World)
	}, IsServer)
	a.AddSystem(StagePostUpdate, "despawn_on_death", func(a *App) {
		DeathEvents.ProcessEvents(a.World)
	}, IsServer)
}

// applyDamage clamps health to [0, max] and publishes a DeathEvent on the
// transition from alive to zero. Entities already at zero never die twice.
func applyDamage(w donburi.World, ev DamagedEvent) {
	if !w.Valid(ev.Entity) {
		return
	}
	e := w.Entry(ev.Entity)
	if !e.HasComponent(Health) {
		return
	}
	h := Health.Get(e)
	wasAlive := h.Current > 0
	h.Current = Clamp(h.Current-ev.Amount, 0, h.Max)
	if wasAlive && h.Current == 0 {
		DeathEvents.Publish(w, DeathEvent{Entity: ev.Entity})
	}
}

// Heal restores health up to max. Negative amounts are ignored.
func Heal(h *HealthData, amount float64) {
	if amount <= 0 {
		return
	}
	h.Current = Clamp(h.Current+amount, 0, h.Max)
}

// onDeath despawns asteroids and players. Players are remembered as
// eliminated so the round can report placement.
func (a *App) onDeath(ev DeathEvent) {
	if !a.World.Valid(ev.Entity) {
		return
	}
	e := a.World.Entry(ev.Entity)
	switch {
	case e.HasComponent(Player):
		p := Player.Get(e)
		log.Printf("player %s (owner %d) destroyed", p.Color, ownerOf(e))
		a.round.eliminate(p.Color, ownerOf(e))
		a.despawn(ev.Entity)
	case e.HasComponent(Asteroid):
		a.despawn(ev.Entity)
	}
}
