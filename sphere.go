package cm3d

import (
	"github.com/go-gl/mathgl/mgl64"
)

type Sphere struct {
	*Shape
	transformC mgl64.Vec3
	radius     float64
}

func (sphere *Sphere) CacheData(transform Transform) AABB {
	sphere.transformC = transform.Position
	return NewAABBForSphere(sphere.transformC, sphere.radius)
}

func (sphere *Sphere) Inertia(mass float64) mgl64.Mat3 {
	return MomentForSphere(mass, sphere.radius)
}

func (sphere *Sphere) Radius() float64 {
	return sphere.radius
}

// SetRadius changes the radius. Dynamic bodies get their inertia recomputed.
func (sphere *Sphere) SetRadius(r float64) {
	sphere.radius = r
	if sphere.Body != nil && sphere.Body.Type() == Dynamic {
		sphere.Body.SetInertia(sphere.Inertia(sphere.Body.Mass()))
	}
}

// TransformC returns the world space center cached by the last CacheData call.
func (sphere *Sphere) TransformC() mgl64.Vec3 {
	return sphere.transformC
}
