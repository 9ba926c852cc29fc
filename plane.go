package cm3d

import (
	"github.com/go-gl/mathgl/mgl64"
)

// Plane is an infinite half space. Points with Normal·p <= Offset (in body space) are inside.
// Planes are meant for static bodies.
type Plane struct {
	*Shape
	n, transformN mgl64.Vec3
	offset        float64
	transformD    float64
}

func (plane *Plane) CacheData(transform Transform) AABB {
	plane.transformN = transform.ApplyVector(plane.n)
	plane.transformD = plane.offset + plane.transformN.Dot(transform.Position)
	return AABB{
		Min: mgl64.Vec3{-infinity, -infinity, -infinity},
		Max: mgl64.Vec3{infinity, infinity, infinity},
	}
}

// Inertia of an unbounded plane is meaningless; planes never contribute rotation.
func (plane *Plane) Inertia(_ float64) mgl64.Mat3 {
	return mgl64.Mat3{}
}

func (plane *Plane) Normal() mgl64.Vec3 {
	return plane.n
}

func (plane *Plane) Offset() float64 {
	return plane.offset
}

// TransformN returns the world space normal cached by the last CacheData call.
func (plane *Plane) TransformN() mgl64.Vec3 {
	return plane.transformN
}

// SignedDistance returns the distance of p above the plane surface in world space.
func (plane *Plane) SignedDistance(p mgl64.Vec3) float64 {
	return plane.transformN.Dot(p) - plane.transformD
}
