package main

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/component"
	"github.com/yohamta/donburi/filter"
)

// EntitySnapshot carries the replicated components of one entity. A nil
// field means the entity does not have that component.
type EntitySnapshot struct {
	NetID       uint32             `msgpack:"id"`
	Transform   *TransformData     `msgpack:"tf,omitempty"`
	Velocity    *VelocityData      `msgpack:"v,omitempty"`
	Owner       *NetworkOwnerData  `msgpack:"o,omitempty"`
	Player      *PlayerData        `msgpack:"pl,omitempty"`
	Thruster    *ThrusterData      `msgpack:"th,omitempty"`
	Asteroid    *AsteroidData      `msgpack:"as,omitempty"`
	Health      *HealthData        `msgpack:"hp,omitempty"`
	Weapon      *WeaponData        `msgpack:"w,omitempty"`
	Laser       *LaserData         `msgpack:"l,omitempty"`
	Arena       *ArenaData         `msgpack:"ar,omitempty"`
	Resident    *ArenaResidentData `msgpack:"rs,omitempty"`
	Collectible *CollectibleData   `msgpack:"co,omitempty"`
}

// Snapshot is the full replicated world plus the server's game state.
type Snapshot struct {
	Tick      uint64           `msgpack:"t"`
	State     GameState        `msgpack:"s"`
	Countdown float64          `msgpack:"c"`
	Winner    *PlayerColor     `msgpack:"w,omitempty"`
	Entities  []EntitySnapshot `msgpack:"e"`
}

type replicationRule struct {
	name    string
	comp    component.IComponentType
	present func(s *EntitySnapshot) bool
	capture func(e *donburi.Entry, s *EntitySnapshot)
	apply   func(e *donburi.Entry, s *EntitySnapshot)
}

// replicate registers component c as mirrored through the snapshot field
// selected by field.
func replicate[T any](name string, c *donburi.ComponentType[T], field func(s *EntitySnapshot) **T) replicationRule {
	return replicationRule{
		name: name,
		comp: c,
		present: func(s *EntitySnapshot) bool {
			return *field(s) != nil
		},
		capture: func(e *donburi.Entry, s *EntitySnapshot) {
			if e.HasComponent(c) {
				v := *c.Get(e)
				*field(s) = &v
			}
		},
		apply: func(e *donburi.Entry, s *EntitySnapshot) {
			v := *field(s)
			switch {
			case v != nil && e.HasComponent(c):
				c.SetValue(e, *v)
			case v != nil:
				donburi.Add(e, c, v)
			case e.HasComponent(c):
				e.RemoveComponent(c)
			}
		},
	}
}

var replicationRules = []replicationRule{
	replicate("transform", Transform, func(s *EntitySnapshot) **TransformData { return &s.Transform }),
	replicate("velocity", Velocity, func(s *EntitySnapshot) **VelocityData { return &s.Velocity }),
	replicate("network_owner", NetworkOwner, func(s *EntitySnapshot) **NetworkOwnerData { return &s.Owner }),
	replicate("player", Player, func(s *EntitySnapshot) **PlayerData { return &s.Player }),
	replicate("thruster", Thruster, func(s *EntitySnapshot) **ThrusterData { return &s.Thruster }),
	replicate("asteroid", Asteroid, func(s *EntitySnapshot) **AsteroidData { return &s.Asteroid }),
	replicate("health", Health, func(s *EntitySnapshot) **HealthData { return &s.Health }),
	replicate("weapon", Weapon, func(s *EntitySnapshot) **WeaponData { return &s.Weapon }),
	replicate("laser", Laser, func(s *EntitySnapshot) **LaserData { return &s.Laser }),
	replicate("arena", Arena, func(s *EntitySnapshot) **ArenaData { return &s.Arena }),
	replicate("arena_resident", ArenaResident, func(s *EntitySnapshot) **ArenaResidentData { return &s.Resident }),
	replicate("collectible", Collectible, func(s *EntitySnapshot) **CollectibleData { return &s.Collectible }),
}

var replicated = donburi.NewQuery(filter.Contains(Replicated))

// BuildSnapshot captures every replicated entity in the server world.
func (a *App) BuildSnapshot() Snapshot {
	s := Snapshot{
		Tick:      a.Time.Tick,
		State:     a.State.Current(),
		Countdown: a.PostGameRemaining(),
		Winner:    a.Winner(),
	}
	replicated.Each(a.World, func(e *donburi.Entry) {
		es := EntitySnapshot{NetID: Replicated.Get(e).NetID}
		for _, r := range replicationRules {
			r.capture(e, &es)
		}
		s.Entities = append(s.Entities, es)
	})
	return s
}

func EncodeSnapshot(s Snapshot) ([]byte, error) {
	b, err := msgpack.Marshal(&s)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return b, nil
}

func DecodeSnapshot(b []byte) (Snapshot, error) {
	var s Snapshot
	if err := msgpack.Unmarshal(b, &s); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return s, nil
}

// ApplySnapshot mirrors a server snapshot into this world. Entities missing
// from the snapshot are removed and the game state follows the server.
func (a *App) ApplySnapshot(s Snapshot) {
	seen := make(map[uint32]bool, len(s.Entities))
	for i := range s.Entities {
		es := &s.Entities[i]
		seen[es.NetID] = true
		var e *donburi.Entry
		if ent, ok := a.netIndex[es.NetID]; ok && a.World.Valid(ent) {
			e = a.World.Entry(ent)
		} else {
			comps := []component.IComponentType{Replicated}
			for _, r := range replicationRules {
				if r.present(es) {
					comps = append(comps, r.comp)
				}
			}
			e = a.World.Entry(a.World.Create(comps...))
			Replicated.SetValue(e, ReplicatedData{NetID: es.NetID})
			a.netIndex[es.NetID] = e.Entity()
		}
		for _, r := range replicationRules {
			r.apply(e, es)
		}
	}
	for id, ent := range a.netIndex {
		if !seen[id] {
			if a.World.Valid(ent) {
				a.World.Remove(ent)
			}
			delete(a.netIndex, id)
		}
	}
	a.State.Follow(s.State)
	a.round.winner = s.Winner
	a.remoteCountdown = s.Countdown
}
