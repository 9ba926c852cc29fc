package cm3d

import (
	"github.com/go-gl/mathgl/mgl64"
)

// NewSphereShape returns a Sphere shape with radius r attached to the given body.
//
// Dynamic bodies get the inertia tensor of a solid sphere of their mass.
func NewSphereShape(body *Body, r float64) *Shape {
	sphere := &Sphere{radius: r}
	sphere.Shape = NewShape(sphere, body)
	body.AttachShape(sphere.Shape)
	return sphere.Shape
}

// NewBoxShape returns a Box shape with the given half extents attached to the body.
//
// Dynamic bodies get the inertia tensor of a solid box of their mass.
func NewBoxShape(body *Body, halfExtents mgl64.Vec3) *Shape {
	box := &Box{halfExtents: halfExtents}
	box.Shape = NewShape(box, body)
	body.AttachShape(box.Shape)
	return box.Shape
}

// NewPlaneShape returns a Plane shape attached to the body.
//
// Parameters:
//   - body: The body to which the shape will be attached, normally static.
//   - n: The plane normal in body space. It is normalized.
//   - offset: Distance of the surface from the body origin along n.
func NewPlaneShape(body *Body, n mgl64.Vec3, offset float64) *Shape {
	plane := &Plane{n: n.Normalize(), offset: offset}
	plane.Shape = NewShape(plane, body)
	body.AttachShape(plane.Shape)
	return plane.Shape
}

// NewSphereBody returns a dynamic body with a sphere shape.
func NewSphereBody(mass, r float64) *Body {
	body := NewBody(mass, MomentForSphere(mass, r))
	NewSphereShape(body, r)
	return body
}

// NewBoxBody returns a dynamic body with a box shape.
func NewBoxBody(mass float64, halfExtents mgl64.Vec3) *Body {
	body := NewBody(mass, MomentForBox(mass, halfExtents))
	NewBoxShape(body, halfExtents)
	return body
}

// AttachShape sets the body's shape and refreshes inertia for dynamic bodies.
func (body *Body) AttachShape(shape *Shape) {
	shape.Body = body
	body.Shape = shape
	if body.bodyType == Dynamic && body.mass > 0 {
		body.SetInertia(shape.Class.Inertia(body.mass))
	}
	shape.CacheBB()
}

// MomentForSphere returns the inertia tensor of a solid sphere.
func MomentForSphere(m, r float64) mgl64.Mat3 {
	i := 0.4 * m * r * r
	return mgl64.Diag3(mgl64.Vec3{i, i, i})
}

// MomentForBox returns the inertia tensor of a solid box given its half extents.
func MomentForBox(m float64, halfExtents mgl64.Vec3) mgl64.Mat3 {
	x2 := halfExtents[0] * halfExtents[0]
	y2 := halfExtents[1] * halfExtents[1]
	z2 := halfExtents[2] * halfExtents[2]
	return mgl64.Diag3(mgl64.Vec3{
		m / 3 * (y2 + z2),
		m / 3 * (x2 + z2),
		m / 3 * (x2 + y2),
	})
}
