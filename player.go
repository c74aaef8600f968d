package main

import (
	"fmt"
	"log"
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/filter"
)

const (
	PlayerRadius         = 16.0
	PlayerThrust         = 400.0 // units/s added per second of thrust
	PlayerTurnRate       = 4.0   // rad/s
	PlayerLinearDamping  = 0.4
	PlayerAngularDamping = 1.0
	PlayerSpawnRing      = 300.0
	HealthBurnPerSecond  = 5.0
	ThrusterRampRate     = 4.0 // level units per second
)

// PlayerColor identifies a player slot. The palette size caps the number of
// players a server accepts.
type PlayerColor uint8

const (
	ColorRed PlayerColor = iota
	ColorBlue
	ColorGreen
	ColorPurple
	ColorCyan
	ColorOrange
	paletteSize
)

// MaxClients is the number of player slots, including the host.
const MaxClients = int(paletteSize)

var colorNames = [...]string{"Red", "Blue", "Green", "Purple", "Cyan", "Orange"}

func (c PlayerColor) String() string {
	if c < paletteSize {
		return colorNames[c]
	}
	return fmt.Sprintf("PlayerColor(%d)", uint8(c))
}

// PlayerData marks a ship and carries its active modifiers.
type PlayerData struct {
	Color   PlayerColor  `msgpack:"c"`
	PowerUp *PowerUpKind `msgpack:"p,omitempty"`
	Debuff  *DebuffKind  `msgpack:"d,omitempty"`
}

// ThrusterData is the 0..1 visual thrust level of a ship.
type ThrusterData struct {
	Level float64
}

var (
	Player   = donburi.NewComponentType[PlayerData]()
	Thruster = donburi.NewComponentType[ThrusterData]()
)

var players = donburi.NewQuery(filter.Contains(Player, Transform))

// Players maps client ids to palette colors and back.
type Players struct {
	colors  map[uint64]PlayerColor
	clients map[PlayerColor]uint64
}

func NewPlayers() *Players {
	return &Players{
		colors:  make(map[uint64]PlayerColor),
		clients: make(map[PlayerColor]uint64),
	}
}

// AvailableColor returns the first palette color without a client.
func (p *Players) AvailableColor() (PlayerColor, bool) {
	for c := PlayerColor(0); c < paletteSize; c++ {
		if _, taken := p.clients[c]; !taken {
			return c, true
		}
	}
	return 0, false
}

// Insert binds a client to a color, replacing any previous binding of either.
func (p *Players) Insert(clientID uint64, color PlayerColor) {
	p.RemoveClient(clientID)
	if prev, ok := p.clients[color]; ok {
		delete(p.colors, prev)
	}
	p.colors[clientID] = color
	p.clients[color] = clientID
}

func (p *Players) ColorOf(clientID uint64) (PlayerColor, bool) {
	c, ok := p.colors[clientID]
	return c, ok
}

func (p *Players) ClientOf(color PlayerColor) (uint64, bool) {
	id, ok := p.clients[color]
	return id, ok
}

func (p *Players) RemoveClient(clientID uint64) {
	if c, ok := p.colors[clientID]; ok {
		delete(p.colors, clientID)
		delete(p.clients, c)
	}
}

func (p *Players) Reset() {
	p.colors = make(map[uint64]PlayerColor)
	p.clients = make(map[PlayerColor]uint64)
}

func (p *Players) Len() int {
	return len(p.colors)
}

// Clients returns the registered client ids in color order.
func (p *Players) Clients() []uint64 {
	ids := make([]uint64, 0, len(p.colors))
	for id := range p.colors {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return p.colors[ids[i]] < p.colors[ids[j]] })
	return ids
}

func installPlayers(a *App) {
	a.AddSystem(StagePreUpdate, "log_network_events", logNetworkEvents, IsServer)
	a.AddSystem(StagePreUpdate, "spawn_player_on_connected", spawnPlayerOnConnected, IsServer)
	a.AddSystem(StagePreUpdate, "despawn_on_player_disconnect", despawnOnPlayerDisconnect, IsServer)
	a.AddSystem(StageUpdate, "player_actions", playerActions, IsServer, InState(StatePlaying))
	a.AddSystem(StageUpdate, "update_thruster", updateThruster, IsServer)
	a.AddSystem(StageUpdate, "health_burn", healthBurn, IsServer, InState(StatePlaying))
}

// spawnPosition places color slots evenly on a ring facing the center.
func spawnPosition(c PlayerColor) TransformData {
	angle := float64(c) * 2 * math.Pi / float64(paletteSize)
	pos := Forward(angle).Mul(PlayerSpawnRing)
	return TransformData{Translation: pos, Rotation: NormalizeAngle(angle + math.Pi)}
}

// FindPlayer returns the ship owned by clientID.
func FindPlayer(w donburi.World, clientID uint64) (*donburi.Entry, bool) {
	var found *donburi.Entry
	donburi.NewQuery(filter.Contains(Player, NetworkOwner)).Each(w, func(e *donburi.Entry) {
		if found == nil && NetworkOwner.Get(e).ClientID == clientID {
			found = e
		}
	})
	return found, found != nil
}

// SpawnPlayer creates a ship for clientID, assigning a color if the client
// has none yet. It returns an error when the palette is exhausted.
func (a *App) SpawnPlayer(clientID uint64) (*donburi.Entry, error) {
	if e, ok := FindPlayer(a.World, clientID); ok {
		return e, nil
	}
	color, ok := a.Players.ColorOf(clientID)
	if !ok {
		color, ok = a.Players.AvailableColor()
		if !ok {
			return nil, ErrServerFull
		}
		a.Players.Insert(clientID, color)
	}
	e := a.spawn(Transform, Velocity, Body, Collider, NetworkOwner, Player, Thruster, ActionState, Health, Weapon, ArenaResident)
	Transform.SetValue(e, spawnPosition(color))
	Body.SetValue(e, BodyData{Mass: 1, LinearDamping: PlayerLinearDamping, AngularDamping: PlayerAngularDamping})
	Collider.SetValue(e, ColliderData{Shape: ShapeCircle, Radius: PlayerRadius})
	NetworkOwner.SetValue(e, NetworkOwnerData{ClientID: clientID})
	Player.SetValue(e, PlayerData{Color: color})
	Health.SetValue(e, DefaultHealth())
	Weapon.SetValue(e, DefaultWeapon())
	a.round.enter(color, clientID)
	return e, nil
}

// resetPlayer puts a surviving ship back into its starting condition.
func resetPlayer(e *donburi.Entry) {
	p := Player.Get(e)
	p.PowerUp, p.Debuff = nil, nil
	Transform.SetValue(e, spawnPosition(p.Color))
	Velocity.SetValue(e, VelocityData{})
	Health.SetValue(e, DefaultHealth())
	Weapon.SetValue(e, DefaultWeapon())
	Thruster.SetValue(e, ThrusterData{})
}

func logNetworkEvents(a *App) {
	for _, ev := range a.serverEvents {
		switch ev.Kind {
		case ClientConnected:
			log.Printf("client %d connected", ev.ClientID)
		case ClientDisconnected:
			log.Printf("client %d disconnected", ev.ClientID)
		}
	}
}

func spawnPlayerOnConnected(a *App) {
	for _, ev := range a.serverEvents {
		if ev.Kind != ClientConnected {
			continue
		}
		if _, err := a.SpawnPlayer(ev.ClientID); err != nil {
			log.Printf("cannot spawn player for client %d: %v", ev.ClientID, err)
		}
	}
}

func despawnOnPlayerDisconnect(a *App) {
	for _, ev := range a.serverEvents {
		if ev.Kind != ClientDisconnected {
			continue
		}
		if e, ok := FindPlayer(a.World, ev.ClientID); ok {
			a.despawn(e.Entity())
		}
		a.Players.RemoveClient(ev.ClientID)
	}
}

// playerActions turns held actions into ship motion.
func playerActions(a *App) {
	dt := a.Time.Delta
	donburi.NewQuery(filter.Contains(Player, ActionState, Transform, Velocity)).Each(a.World, func(e *donburi.Entry) {
		p := Player.Get(e)
		actions := ActionState.Get(e)
		v := Velocity.Get(e)
		tf := Transform.Get(e)

		left, right := actions.Pressed(ActionTurnLeft), actions.Pressed(ActionTurnRight)
		if p.Debuff != nil && *p.Debuff == DebuffReversedControls {
			left, right = right, left
		}
		switch {
		case left && !right:
			v.Angular = PlayerTurnRate
		case right && !left:
			v.Angular = -PlayerTurnRate
		default:
			v.Angular = 0
		}

		if actions.Pressed(ActionThrust) && !hasDebuff(e, DebuffSlowed) {
			v.Linear = v.Linear.Add(tf.Forward().Mul(PlayerThrust * dt))
		}
	})
}

func updateThruster(a *App) {
	step := ThrusterRampRate * a.Time.Delta
	donburi.NewQuery(filter.Contains(Thruster, ActionState)).Each(a.World, func(e *donburi.Entry) {
		th := Thruster.Get(e)
		target := 0.0
		if ActionState.Get(e).Pressed(ActionThrust) && !hasDebuff(e, DebuffSlowed) {
			target = 1
		}
		th.Level = approach(th.Level, target, step)
	})
}

func hasDebuff(e *donburi.Entry, d DebuffKind) bool {
	if !e.HasComponent(Player) {
		return false
	}
	p := Player.Get(e)
	return p.Debuff != nil && *p.Debuff == d
}

func healthBurn(a *App) {
	amount := HealthBurnPerSecond * a.Time.Delta
	players.Each(a.World, func(e *donburi.Entry) {
		p := Player.Get(e)
		if p.Debuff == nil || *p.Debuff != DebuffHealthBurn {
			return
		}
		DamagedEvents.Publish(a.World, DamagedEvent{
			Entity: e.Entity(),
			Amount: amount,
			Point:  Transform.Get(e).Translation,
			Normal: mgl64.Vec2{},
		})
	})
}
