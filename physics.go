package main

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/filter"
)

const contactRestitution = 0.5

var (
	bodies    = donburi.NewQuery(filter.Contains(Transform, Velocity, Body))
	colliders = donburi.NewQuery(filter.Contains(Transform, Collider))
)

func installPhysics(a *App) {
	grid := &SpatialGrid{}
	a.AddSystem(StageUpdate, "integrate_bodies", integrateBodies, IsServer)
	a.AddSystem(StageUpdate, "resolve_contacts", func(a *App) {
		resolveContacts(a, grid)
	}, IsServer)
}

// integrateBodies applies accumulated impulses and damping, then moves every
// dynamic body by its velocity.
func integrateBodies(a *App) {
	dt := a.Time.Delta
	bodies.Each(a.World, func(e *donburi.Entry) {
		b := Body.Get(e)
		v := Velocity.Get(e)
		tf := Transform.Get(e)
		if b.Mass > 0 {
			v.Linear = v.Linear.Add(b.Impulse.Mul(1 / b.Mass))
		}
		b.Impulse = mgl64.Vec2{}
		v.Linear = v.Linear.Mul(1 / (1 + dt*b.LinearDamping))
		v.Angular *= 1 / (1 + dt*b.AngularDamping)
		tf.Translation = tf.Translation.Add(v.Linear.Mul(dt))
		tf.Rotation = NormalizeAngle(tf.Rotation + v.Angular*dt)
	})
}

type contactBody struct {
	entry  *donburi.Entry
	pos    mgl64.Vec2
	radius float64
	invM   float64
}

// resolveContacts separates overlapping solid bodies using their bounding
// circles and exchanges momentum along the contact normal.
func resolveContacts(a *App, grid *SpatialGrid) {
	var list []contactBody
	grid.Clear()
	donburi.NewQuery(filter.Contains(Transform, Velocity, Body, Collider)).Each(a.World, func(e *donburi.Entry) {
		c := Collider.Get(e)
		if c.Sensor {
			return
		}
		b := Body.Get(e)
		inv := 0.0
		if b.Mass > 0 {
			inv = 1 / b.Mass
		}
		pos := Transform.Get(e).Translation
		r := c.BoundingRadius()
		grid.InsertCircle(pos.X(), pos.Y(), r, len(list))
		list = append(list, contactBody{entry: e, pos: pos, radius: r, invM: inv})
	})

	var buf []int
	for i := range list {
		ci := &list[i]
		buf = grid.QueryBuf(ci.pos.X(), ci.pos.Y(), ci.radius, buf[:0])
		for _, j := range buf {
			if j <= i {
				continue
			}
			cj := &list[j]
			if ci.invM+cj.invM == 0 {
				continue
			}
			d := cj.pos.Sub(ci.pos)
			dist := d.Len()
			overlap := ci.radius + cj.radius - dist
			if overlap <= 0 {
				continue
			}
			n := mgl64.Vec2{0, 1}
			if dist > 1e-9 {
				n = d.Mul(1 / dist)
			}
			total := ci.invM + cj.invM
			ti := Transform.Get(ci.entry)
			tj := Transform.Get(cj.entry)
			ti.Translation = ti.Translation.Sub(n.Mul(overlap * ci.invM / total))
			tj.Translation = tj.Translation.Add(n.Mul(overlap * cj.invM / total))
			ci.pos, cj.pos = ti.Translation, tj.Translation

			vi := Velocity.Get(ci.entry)
			vj := Velocity.Get(cj.entry)
			approaching := vj.Linear.Sub(vi.Linear).Dot(n)
			if approaching >= 0 {
				continue
			}
			j := -(1 + contactRestitution) * approaching / total
			vi.Linear = vi.Linear.Sub(n.Mul(j * ci.invM))
			vj.Linear = vj.Linear.Add(n.Mul(j * cj.invM))
		}
	}
}

// circlesOverlap reports whether two circles touch.
func circlesOverlap(p1 mgl64.Vec2, r1 float64, p2 mgl64.Vec2, r2 float64) bool {
	return p2.Sub(p1).Dot(p2.Sub(p1)) <= (r1+r2)*(r1+r2)
}

// toLocal maps a world point into the frame of a transform.
func toLocal(tf TransformData, p mgl64.Vec2) mgl64.Vec2 {
	return mgl64.Rotate2D(-tf.Rotation).Mul2x1(p.Sub(tf.Translation))
}

// circleBoxOverlap tests a circle against an oriented box.
func circleBoxOverlap(center mgl64.Vec2, r float64, box TransformData, half mgl64.Vec2) bool {
	local := toLocal(box, center)
	closest := mgl64.Vec2{
		Clamp(local.X(), -half.X(), half.X()),
		Clamp(local.Y(), -half.Y(), half.Y()),
	}
	d := local.Sub(closest)
	return d.Dot(d) <= r*r
}

func boxCorners(tf TransformData, half mgl64.Vec2) [4]mgl64.Vec2 {
	rot := mgl64.Rotate2D(tf.Rotation)
	var out [4]mgl64.Vec2
	for i, s := range [4]mgl64.Vec2{{1, 1}, {-1, 1}, {-1, -1}, {1, -1}} {
		out[i] = tf.Translation.Add(rot.Mul2x1(mgl64.Vec2{s.X() * half.X(), s.Y() * half.Y()}))
	}
	return out
}

// boxesOverlap is a separating axis test for two oriented boxes.
func boxesOverlap(ta TransformData, ha mgl64.Vec2, tb TransformData, hb mgl64.Vec2) bool {
	ca := boxCorners(ta, ha)
	cb := boxCorners(tb, hb)
	axes := [4]mgl64.Vec2{Forward(ta.Rotation), Forward(ta.Rotation + math.Pi/2), Forward(tb.Rotation), Forward(tb.Rotation + math.Pi/2)}
	for _, axis := range axes {
		minA, maxA := projectCorners(ca, axis)
		minB, maxB := projectCorners(cb, axis)
		if maxA < minB || maxB < minA {
			return false
		}
	}
	return true
}

func projectCorners(c [4]mgl64.Vec2, axis mgl64.Vec2) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, p := range c {
		d := p.Dot(axis)
		lo = math.Min(lo, d)
		hi = math.Max(hi, d)
	}
	return lo, hi
}

// Overlaps reports whether two placed colliders intersect.
func Overlaps(ta TransformData, ca ColliderData, tb TransformData, cb ColliderData) bool {
	switch {
	case ca.Shape == ShapeCircle && cb.Shape == ShapeCircle:
		return circlesOverlap(ta.Translation, ca.Radius, tb.Translation, cb.Radius)
	case ca.Shape == ShapeCircle:
		return circleBoxOverlap(ta.Translation, ca.Radius, tb, cb.HalfExtents)
	case cb.Shape == ShapeCircle:
		return circleBoxOverlap(tb.Translation, cb.Radius, ta, ca.HalfExtents)
	}
	return boxesOverlap(ta, ca.HalfExtents, tb, cb.HalfExtents)
}

// RayHit is the first solid collider found by a ray cast.
type RayHit struct {
	Entity donburi.Entity
	TOI    float64
	Point  mgl64.Vec2
	Normal mgl64.Vec2
}

// rayCircle returns the time of impact of a unit-direction ray against a
// solid circle. A ray starting inside hits at 0.
func rayCircle(origin, dir mgl64.Vec2, maxTOI float64, center mgl64.Vec2, r float64) (float64, mgl64.Vec2, bool) {
	f := origin.Sub(center)
	c := f.Dot(f) - r*r
	if c <= 0 {
		return 0, mgl64.Vec2{}, true
	}
	b := f.Dot(dir)
	if b > 0 {
		return 0, mgl64.Vec2{}, false
	}
	disc := b*b - c
	if disc < 0 {
		return 0, mgl64.Vec2{}, false
	}
	t := -b - math.Sqrt(disc)
	if t > maxTOI {
		return 0, mgl64.Vec2{}, false
	}
	normal := origin.Add(dir.Mul(t)).Sub(center).Normalize()
	return t, normal, true
}

// rayBox is a slab test in the box's local frame.
func rayBox(origin, dir mgl64.Vec2, maxTOI float64, box TransformData, half mgl64.Vec2) (float64, mgl64.Vec2, bool) {
	o := toLocal(box, origin)
	d := mgl64.Rotate2D(-box.Rotation).Mul2x1(dir)
	tMin, tMax := 0.0, maxTOI
	var localNormal mgl64.Vec2
	inside := true
	for axis := 0; axis < 2; axis++ {
		if math.Abs(o[axis]) > half[axis] {
			inside = false
		}
		if math.Abs(d[axis]) < 1e-12 {
			if math.Abs(o[axis]) > half[axis] {
				return 0, mgl64.Vec2{}, false
			}
			continue
		}
		t1 := (-half[axis] - o[axis]) / d[axis]
		t2 := (half[axis] - o[axis]) / d[axis]
		sign := -1.0
		if t1 > t2 {
			t1, t2 = t2, t1
			sign = 1
		}
		if t1 > tMin {
			tMin = t1
			localNormal = mgl64.Vec2{}
			localNormal[axis] = sign
		}
		tMax = math.Min(tMax, t2)
		if tMin > tMax {
			return 0, mgl64.Vec2{}, false
		}
	}
	if inside {
		return 0, mgl64.Vec2{}, true
	}
	return tMin, mgl64.Rotate2D(box.Rotation).Mul2x1(localNormal), true
}

// CastRay returns the nearest non-sensor collider hit by the ray within
// maxTOI. dir must be normalized. skip filters out candidates.
func CastRay(w donburi.World, origin, dir mgl64.Vec2, maxTOI float64, skip func(e *donburi.Entry) bool) (RayHit, bool) {
	best := RayHit{TOI: math.Inf(1)}
	found := false
	colliders.Each(w, func(e *donburi.Entry) {
		c := Collider.Get(e)
		if c.Sensor || (skip != nil && skip(e)) {
			return
		}
		tf := *Transform.Get(e)
		var (
			t  float64
			n  mgl64.Vec2
			ok bool
		)
		if c.Shape == ShapeCircle {
			t, n, ok = rayCircle(origin, dir, maxTOI, tf.Translation, c.Radius)
		} else {
			t, n, ok = rayBox(origin, dir, maxTOI, tf, c.HalfExtents)
		}
		if ok && t < best.TOI {
			best = RayHit{Entity: e.Entity(), TOI: t, Point: origin.Add(dir.Mul(t)), Normal: n}
			found = true
		}
	})
	return best, found
}
