package main

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/yohamta/donburi"
)

// ServerID is the NetworkOwner of the player hosted by the server process.
const ServerID uint64 = 0

// Unowned is the NetworkOwner value of entities no client controls.
const Unowned uint64 = math.MaxUint64

type TransformData struct {
	Translation mgl64.Vec2 `msgpack:"p"`
	Rotation    float64    `msgpack:"r"`
}

// Forward is the unit vector the transform faces.
func (t TransformData) Forward() mgl64.Vec2 {
	return Forward(t.Rotation)
}

type VelocityData struct {
	Linear  mgl64.Vec2 `msgpack:"l"`
	Angular float64    `msgpack:"a"`
}

// BodyData holds the dynamic body properties the physics step integrates.
// Impulse accumulates over a tick and is cleared once applied.
type BodyData struct {
	Mass           float64
	LinearDamping  float64
	AngularDamping float64
	Impulse        mgl64.Vec2
}

type ColliderShape uint8

const (
	ShapeCircle ColliderShape = iota
	ShapeBox
)

type ColliderData struct {
	Shape       ColliderShape
	Radius      float64
	HalfExtents mgl64.Vec2
	// Sensors detect overlaps but are invisible to ray casts.
	Sensor bool
}

// BoundingRadius is the radius of a circle enclosing the collider.
func (c ColliderData) BoundingRadius() float64 {
	if c.Shape == ShapeBox {
		return c.HalfExtents.Len()
	}
	return c.Radius
}

type ReplicatedData struct {
	NetID uint32
}

type NetworkOwnerData struct {
	ClientID uint64 `msgpack:"c"`
}

type SpawnTimeData struct {
	At float64
}

type HealthData struct {
	Current float64 `msgpack:"c"`
	Max     float64 `msgpack:"m"`
}

func DefaultHealth() HealthData {
	return HealthData{Current: 100, Max: 100}
}

var (
	Transform    = donburi.NewComponentType[TransformData]()
	Velocity     = donburi.NewComponentType[VelocityData]()
	Body         = donburi.NewComponentType[BodyData]()
	Collider     = donburi.NewComponentType[ColliderData]()
	Replicated   = donburi.NewComponentType[ReplicatedData]()
	NetworkOwner = donburi.NewComponentType[NetworkOwnerData]()
	SpawnTime    = donburi.NewComponentType[SpawnTimeData]()
	Health       = donburi.NewComponentType[HealthData]()
)

// ownerOf returns the entry's NetworkOwner, or Unowned.
func ownerOf(e *donburi.Entry) uint64 {
	if !e.HasComponent(NetworkOwner) {
		return Unowned
	}
	return NetworkOwner.Get(e).ClientID
}
