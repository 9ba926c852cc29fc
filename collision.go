package cm3d

import (
	"cmp"
	"math"
	"slices"

	"github.com/go-gl/mathgl/mgl64"
)

const (
	// Points closer than this are merged into one contact.
	contactMergeDistance = 1e-3
	// Slack allowed when testing whether a box vertex lies inside another box.
	containmentTolerance = 1e-3
	// Edge-edge axes must beat the best face axis by this factor to be chosen.
	edgeAxisBias = 1.05
)

// CollisionInfo accumulates the contacts produced by a CollisionFunc.
type CollisionInfo struct {
	a, b *Shape
	// Normal pointing from a to b.
	n      mgl64.Vec3
	points []ContactPoint
}

// PushContact adds a contact from the point of a that reaches deepest into b
// and the matching point on the surface of b.
// The stored position is their midpoint, in world space.
func (info *CollisionInfo) PushContact(p1, p2 mgl64.Vec3) {
	depth := p1.Sub(p2).Dot(info.n)
	mid := p1.Add(p2).Mul(0.5)
	for i := range info.points {
		if info.points[i].Position.Sub(mid).Len() < contactMergeDistance {
			if depth > info.points[i].Depth {
				info.points[i] = ContactPoint{Position: mid, Depth: depth}
			}
			return
		}
	}
	info.points = append(info.points, ContactPoint{Position: mid, Depth: depth})
}

type CollisionFunc func(info *CollisionInfo)

func SphereToSphere(info *CollisionInfo) {
	s1 := info.a.Class.(*Sphere)
	s2 := info.b.Class.(*Sphere)

	mindist := s1.radius + s2.radius
	delta := s2.transformC.Sub(s1.transformC)
	distsq := delta.Dot(delta)

	if distsq < mindist*mindist {
		dist := math.Sqrt(distsq)
		if dist != 0 {
			info.n = delta.Mul(1.0 / dist)
		} else {
			info.n = mgl64.Vec3{0, 1, 0}
		}
		info.PushContact(s1.transformC.Add(info.n.Mul(s1.radius)), s2.transformC.Sub(info.n.Mul(s2.radius)))
	}
}

func CollisionError(_ *CollisionInfo) {
	panic("Shape types are not sorted")
}

// CollisionNone is used for shape pairs that never generate contacts.
func CollisionNone(_ *CollisionInfo) {}

func SphereToBox(info *CollisionInfo) {
	sphere := info.a.Class.(*Sphere)
	box := info.b.Class.(*Box)

	center := sphere.transformC
	local := box.toLocal(center)
	he := box.halfExtents

	closest := mgl64.Vec3{
		clamp(local[0], -he[0], he[0]),
		clamp(local[1], -he[1], he[1]),
		clamp(local[2], -he[2], he[2]),
	}

	if closest != local {
		q := box.toWorld(closest)
		delta := center.Sub(q)
		dist := delta.Len()
		if dist >= sphere.radius {
			return
		}
		info.n = delta.Mul(-1.0 / dist)
		info.PushContact(center.Add(info.n.Mul(sphere.radius)), q)
		return
	}

	// Center inside the box, push out through the nearest face.
	axis := 0
	best := infinity
	for i := range 3 {
		if d := he[i] - math.Abs(local[i]); d < best {
			best = d
			axis = i
		}
	}
	s := 1.0
	if local[axis] < 0 {
		s = -1.0
	}
	face := local
	face[axis] = s * he[axis]
	info.n = box.axes[axis].Mul(-s)
	info.PushContact(center.Add(info.n.Mul(sphere.radius)), box.toWorld(face))
}

func SphereToPlane(info *CollisionInfo) {
	sphere := info.a.Class.(*Sphere)
	plane := info.b.Class.(*Plane)

	center := sphere.transformC
	dist := plane.SignedDistance(center)
	if dist >= sphere.radius {
		return
	}
	info.n = plane.transformN.Mul(-1)
	info.PushContact(center.Add(info.n.Mul(sphere.radius)), center.Sub(plane.transformN.Mul(dist)))
}

// BoxToBox finds the axis of least penetration among the 15 separating axis
// candidates and collects the vertices of each box contained in the other.
func BoxToBox(info *CollisionInfo) {
	b1 := info.a.Class.(*Box)
	b2 := info.b.Class.(*Box)

	d := b2.Center().Sub(b1.Center())
	bestScore := infinity
	var overlap float64
	var n mgl64.Vec3

	test := func(axis mgl64.Vec3, bias float64) bool {
		l := axis.Len()
		if l < magicEpsilon {
			return true
		}
		axis = axis.Mul(1 / l)
		dist := d.Dot(axis)
		o := b1.projectedRadius(axis) + b2.projectedRadius(axis) - math.Abs(dist)
		if o < 0 {
			return false
		}
		if o*bias < bestScore {
			bestScore = o * bias
			overlap = o
			if dist < 0 {
				axis = axis.Mul(-1)
			}
			n = axis
		}
		return true
	}

	for i := range 3 {
		if !test(b1.axes[i], 1) || !test(b2.axes[i], 1) {
			return
		}
	}
	for i := range 3 {
		for j := range 3 {
			if !test(b1.axes[i].Cross(b2.axes[j]), edgeAxisBias) {
				return
			}
		}
	}
	info.n = n

	supportA := b1.Center().Dot(n) + b1.projectedRadius(n)
	supportB := b2.Center().Dot(n) - b2.projectedRadius(n)

	for _, v := range b2.Vertices() {
		if b1.contains(v, containmentTolerance) {
			info.PushContact(v.Add(n.Mul(supportA-v.Dot(n))), v)
		}
	}
	for _, v := range b1.Vertices() {
		if b2.contains(v, containmentTolerance) {
			info.PushContact(v, v.Sub(n.Mul(v.Dot(n)-supportB)))
		}
	}

	if len(info.points) == 0 {
		// Edge contact, use the midpoint of the deepest features.
		mid := supportVertex(b1, n).Add(supportVertex(b2, n.Mul(-1))).Mul(0.5)
		half := n.Mul(overlap * 0.5)
		info.PushContact(mid.Add(half), mid.Sub(half))
	}
}

func BoxToPlane(info *CollisionInfo) {
	box := info.a.Class.(*Box)
	plane := info.b.Class.(*Plane)

	info.n = plane.transformN.Mul(-1)
	for _, v := range box.Vertices() {
		if dist := plane.SignedDistance(v); dist < 0 {
			info.PushContact(v, v.Sub(plane.transformN.Mul(dist)))
		}
	}
}

// contains returns true if p lies inside the box grown by tolerance.
func (box *Box) contains(p mgl64.Vec3, tolerance float64) bool {
	local := box.toLocal(p)
	for i := range 3 {
		if math.Abs(local[i]) > box.halfExtents[i]+tolerance {
			return false
		}
	}
	return true
}

func supportVertex(box *Box, n mgl64.Vec3) mgl64.Vec3 {
	verts := box.Vertices()
	best := verts[0]
	max := best.Dot(n)
	for _, v := range verts[1:] {
		if d := v.Dot(n); d > max {
			max = d
			best = v
		}
	}
	return best
}

// BuiltinCollisionFuncs is indexed by a.Order() + b.Order()*ShapeTypeNum with a.Order() <= b.Order().
var BuiltinCollisionFuncs = [ShapeTypeNum * ShapeTypeNum]CollisionFunc{
	SphereToSphere,
	CollisionError,
	CollisionError,
	SphereToBox,
	BoxToBox,
	CollisionError,
	SphereToPlane,
	BoxToPlane,
	CollisionNone,
}

// Collide performs a collision between two shapes.
//
// The shapes' cached world geometry is used as is, so CacheBB must have been
// called since their bodies last moved. The returned manifold has its normal
// pointing from a to b, its base offset at a's body position and at most
// MaxContactsPerManifold points, deepest first. It has no points when the
// shapes do not touch.
func Collide(a, b *Shape) Manifold {
	info := CollisionInfo{}

	// Make sure the shape types are in order.
	if a.Order() > b.Order() {
		info.a = b
		info.b = a
	} else {
		info.a = a
		info.b = b
	}

	BuiltinCollisionFuncs[info.a.Order()+info.b.Order()*ShapeTypeNum](&info)

	m := Manifold{
		BodyA:      a.Body.id,
		BodyB:      b.Body.id,
		BaseOffset: a.Body.Position(),
	}
	if len(info.points) == 0 {
		return m
	}

	// Collide may have swapped the contact order, flip the normal.
	m.Normal = info.n
	if a != info.a {
		m.Normal = info.n.Mul(-1)
	}

	points := info.points
	slices.SortStableFunc(points, func(x, y ContactPoint) int {
		return cmp.Compare(y.Depth, x.Depth)
	})
	if len(points) > MaxContactsPerManifold {
		points = points[:MaxContactsPerManifold]
	}
	m.Points = make([]ContactPoint, len(points))
	for i, p := range points {
		m.Points[i] = ContactPoint{Position: p.Position.Sub(m.BaseOffset), Depth: p.Depth}
	}
	return m
}

// ShapesCollide refreshes the cached geometry of both shapes and collides them.
// It must not run concurrently with a World step.
func ShapesCollide(a, b *Shape) Manifold {
	a.CacheBB()
	b.CacheBB()
	return Collide(a, b)
}
