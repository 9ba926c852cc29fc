package cm3d

import (
	"github.com/go-gl/mathgl/mgl64"
)

// Box is an oriented box centered on the body.
type Box struct {
	*Shape
	halfExtents mgl64.Vec3
	transform   Transform
	axes        [3]mgl64.Vec3 // world space face normals
}

func (box *Box) CacheData(transform Transform) AABB {
	box.transform = transform
	r := transform.RotationMatrix()
	box.axes = [3]mgl64.Vec3{r.Col(0), r.Col(1), r.Col(2)}
	return NewAABBForExtents(transform.Position, r.Abs().Mul3x1(box.halfExtents))
}

func (box *Box) Inertia(mass float64) mgl64.Mat3 {
	return MomentForBox(mass, box.halfExtents)
}

func (box *Box) HalfExtents() mgl64.Vec3 {
	return box.halfExtents
}

// SetHalfExtents changes the size. Dynamic bodies get their inertia recomputed.
func (box *Box) SetHalfExtents(halfExtents mgl64.Vec3) {
	box.halfExtents = halfExtents
	if box.Body != nil && box.Body.Type() == Dynamic {
		box.Body.SetInertia(box.Inertia(box.Body.Mass()))
	}
}

// Center returns the world space center cached by the last CacheData call.
func (box *Box) Center() mgl64.Vec3 {
	return box.transform.Position
}

// Axes returns the world space face normals cached by the last CacheData call.
func (box *Box) Axes() [3]mgl64.Vec3 {
	return box.axes
}

// Vertices returns the eight world space corners.
func (box *Box) Vertices() [8]mgl64.Vec3 {
	var verts [8]mgl64.Vec3
	he := box.halfExtents
	for i := range verts {
		local := mgl64.Vec3{he[0], he[1], he[2]}
		if i&1 != 0 {
			local[0] = -local[0]
		}
		if i&2 != 0 {
			local[1] = -local[1]
		}
		if i&4 != 0 {
			local[2] = -local[2]
		}
		verts[i] = box.transform.Apply(local)
	}
	return verts
}

// toLocal expresses a world point in the box frame.
func (box *Box) toLocal(p mgl64.Vec3) mgl64.Vec3 {
	d := p.Sub(box.transform.Position)
	return mgl64.Vec3{d.Dot(box.axes[0]), d.Dot(box.axes[1]), d.Dot(box.axes[2])}
}

func (box *Box) toWorld(local mgl64.Vec3) mgl64.Vec3 {
	return box.transform.Position.
		Add(box.axes[0].Mul(local[0])).
		Add(box.axes[1].Mul(local[1])).
		Add(box.axes[2].Mul(local[2]))
}

// projectedRadius returns the half length of the projection of the box onto axis.
func (box *Box) projectedRadius(axis mgl64.Vec3) float64 {
	he := box.halfExtents
	var r float64
	for i := range 3 {
		d := box.axes[i].Dot(axis)
		if d < 0 {
			d = -d
		}
		r += he[i] * d
	}
	return r
}
