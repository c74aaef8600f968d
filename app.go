package main

import (
	"math/rand/v2"

	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/component"
	"github.com/yohamta/donburi/filter"
)

// Role says which side of the network this process currently plays.
type Role uint8

const (
	RoleNone Role = iota
	RoleServer
	RoleClient
)

func (r Role) String() string {
	switch r {
	case RoleServer:
		return "server"
	case RoleClient:
		return "client"
	}
	return "none"
}

// Stage orders systems within a tick.
type Stage uint8

const (
	StagePreUpdate Stage = iota
	StageUpdate
	StagePostUpdate
	stageCount
)

// Condition gates a system for the current tick.
type Condition func(a *App) bool

type system struct {
	name  string
	run   func(a *App)
	conds []Condition
}

func (s system) ready(a *App) bool {
	for _, c := range s.conds {
		if !c(a) {
			return false
		}
	}
	return true
}

// Clock is the simulated game time, advanced once per tick.
type Clock struct {
	Elapsed float64
	Delta   float64
	Tick    uint64
}

// ServerEventKind is a connection lifecycle event raised by the transport.
type ServerEventKind uint8

const (
	ClientConnected ServerEventKind = iota
	ClientDisconnected
)

type ServerEvent struct {
	Kind     ServerEventKind
	ClientID uint64
}

// FromClient wraps a message with the client id of the connection it came from.
type FromClient struct {
	ClientID uint64
	Event    ActionDiff
}

// App owns one ECS world and the ordered systems that advance it.
type App struct {
	World   donburi.World
	State   *StateMachine
	Time    Clock
	Role    Role
	Players *Players
	Rand    *rand.Rand

	// LocalID is the client id whose input this process captures.
	LocalID uint64
	// LocalInput is the action state produced by the local front-end.
	LocalInput ActionStateData

	// OnRoundEnd receives every finished round on the server.
	OnRoundEnd func(RoundResult)

	serverEvents []ServerEvent
	clientDiffs  []FromClient
	outbox       []ActionDiff
	lastSent     ActionStateData

	connected       map[uint64]struct{}
	remoteCountdown float64
	nextNetID       uint32
	netIndex        map[uint32]donburi.Entity
	round           roundTracker
	systems         [stageCount][]system
}

// NewApp builds an app with every gameplay system installed. The app leaves
// Loading immediately and starts in the main menu.
func NewApp(seed uint64) *App {
	a := &App{
		World:     donburi.NewWorld(),
		State:     NewStateMachine(),
		Players:   NewPlayers(),
		Rand:      rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		connected: make(map[uint64]struct{}),
		netIndex:  make(map[uint32]donburi.Entity),
		nextNetID: 1,
	}
	a.State.Set(StateMainMenu)
	a.State.apply(a)

	installHealth(a)
	installPlayers(a)
	installInput(a)
	installWeapons(a)
	installPhysics(a)
	installArena(a)
	installAsteroids(a)
	installPowerUps(a)
	installRounds(a)
	return a
}

// AddSystem appends a system to a stage. Systems run in insertion order.
func (a *App) AddSystem(stage Stage, name string, run func(a *App), conds ...Condition) {
	a.systems[stage] = append(a.systems[stage], system{name: name, run: run, conds: conds})
}

// Tick advances the clock, applies a pending state transition and runs every
// ready system once.
func (a *App) Tick(dt float64) {
	a.Time.Delta = dt
	a.Time.Elapsed += dt
	a.Time.Tick++
	a.State.apply(a)
	for stage := range a.systems {
		for _, s := range a.systems[stage] {
			if s.ready(a) {
				s.run(a)
			}
		}
	}
	a.serverEvents = a.serverEvents[:0]
	a.clientDiffs = a.clientDiffs[:0]
}

// PushServerEvent queues a connection event for the next tick.
func (a *App) PushServerEvent(ev ServerEvent) {
	switch ev.Kind {
	case ClientConnected:
		a.connected[ev.ClientID] = struct{}{}
	case ClientDisconnected:
		delete(a.connected, ev.ClientID)
	}
	a.serverEvents = append(a.serverEvents, ev)
}

// PushClientDiff queues an input diff received from a connection.
func (a *App) PushClientDiff(msg FromClient) {
	a.clientDiffs = append(a.clientDiffs, msg)
}

// TakeOutbox returns and clears the diffs waiting to be sent to the server.
func (a *App) TakeOutbox() []ActionDiff {
	out := a.outbox
	a.outbox = nil
	return out
}

// ConnectedClients is the number of remote clients currently connected.
func (a *App) ConnectedClients() int {
	return len(a.connected)
}

// spawn creates a replicated entity with a fresh network id.
func (a *App) spawn(comps ...component.IComponentType) *donburi.Entry {
	comps = append(comps, Replicated)
	e := a.World.Entry(a.World.Create(comps...))
	id := a.nextNetID
	a.nextNetID++
	Replicated.SetValue(e, ReplicatedData{NetID: id})
	a.netIndex[id] = e.Entity()
	return e
}

// despawn removes an entity if it is still alive.
func (a *App) despawn(ent donburi.Entity) {
	if !a.World.Valid(ent) {
		return
	}
	e := a.World.Entry(ent)
	if e.HasComponent(Replicated) {
		delete(a.netIndex, Replicated.Get(e).NetID)
	}
	a.World.Remove(ent)
}

// despawnAll removes every entity matching the filter.
func (a *App) despawnAll(f filter.LayoutFilter) int {
	var doomed []donburi.Entity
	donburi.NewQuery(f).Each(a.World, func(e *donburi.Entry) {
		doomed = append(doomed, e.Entity())
	})
	for _, ent := range doomed {
		a.despawn(ent)
	}
	return len(doomed)
}

// Reset drops every replicated entity and connection bookkeeping.
func (a *App) Reset() {
	a.despawnAll(filter.Contains(Replicated))
	a.netIndex = make(map[uint32]donburi.Entity)
	a.connected = make(map[uint64]struct{})
	a.serverEvents = nil
	a.clientDiffs = nil
	a.outbox = nil
	a.lastSent = ActionStateData{}
	a.LocalInput = ActionStateData{}
	a.remoteCountdown = 0
	a.round = roundTracker{}
	a.Players.Reset()
}

// Run conditions.

func InState(s GameState) Condition {
	return func(a *App) bool { return a.State.Current() == s }
}

func IsServer(a *App) bool { return a.Role == RoleServer }

func IsClient(a *App) bool { return a.Role == RoleClient }
