package cm3d

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

const (
	infinity     float64 = math.MaxFloat64
	magicEpsilon float64 = 1e-5
	// Effective mass denominators at or below this are treated as immovable.
	kScalarEpsilon float64 = 1e-12
	// Tolerance used when checking that a contact normal is unit length.
	normalTolerance float64 = 1e-3
)

const (
	// Value for group signifying that a shape is in no group.
	NoGroup uint = 0
	// Value for Shape layers signifying that a shape is in every layer.
	AllCategories uint = ^uint(0)
)

// ShapeFilterAll is s collision filter value for a shape that will collide with
// anything except ShapeFilterNone.
var ShapeFilterAll = ShapeFilter{NoGroup, AllCategories, AllCategories}

// ShapeFilterNone is a collision filter value for a shape that does not collide
// with anything.
var ShapeFilterNone = ShapeFilter{NoGroup, ^AllCategories, ^AllCategories}

// ShapeFilter is fast collision filtering type that is used to determine if two
// objects collide before the narrow phase runs.
type ShapeFilter struct {
	// Two objects with the same non-zero group value do not collide.
	// This is generally used to group objects in a composite object together to disable self collisions.
	Group uint
	// A bitmask of user definable categories that this object belongs to.
	Categories uint
	// A bitmask of user definable category types that this object object collides with.
	Mask uint
}

// Reject returns true if the filters belong to the same non-zero group or if
// the category/mask combination of either filter does not match the other.
func (sf ShapeFilter) Reject(other ShapeFilter) bool {
	return (sf.Group != 0 && sf.Group == other.Group) ||
		(sf.Categories&other.Mask) == 0 ||
		(other.Categories&sf.Mask) == 0
}

// kScalarBody is the inverse effective mass one body contributes along n at lever arm r.
func kScalarBody(massInverse float64, inertiaInverse mgl64.Mat3, r, n mgl64.Vec3) float64 {
	rcn := r.Cross(n)
	return massInverse + inertiaInverse.Mul3x1(rcn).Dot(rcn)
}

func kScalar(a, b *MotionState, r1, r2, n mgl64.Vec3) float64 {
	return kScalarBody(a.InverseMass, a.InverseInertia, r1, n) +
		kScalarBody(b.InverseMass, b.InverseInertia, r2, n)
}

// relativeVelocity is the velocity of the point on B minus the velocity of the point on A.
func relativeVelocity(vA, wA, vB, wB, r1, r2 mgl64.Vec3) mgl64.Vec3 {
	return vB.Add(wB.Cross(r2)).Sub(vA.Add(wA.Cross(r1)))
}

func biasCoef(errorBias, dt float64) float64 {
	return 1.0 - math.Pow(errorBias, dt)
}

func clamp(f, min, max float64) float64 {
	if f > min {
		return math.Min(f, max)
	}
	return math.Min(min, max)
}

func clamp01(f float64) float64 {
	return math.Max(0, math.Min(f, 1))
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func isFiniteVec(v mgl64.Vec3) bool {
	return isFinite(v[0]) && isFinite(v[1]) && isFinite(v[2])
}

// tangentBasis returns two unit vectors orthogonal to n and to each other.
func tangentBasis(n mgl64.Vec3) (mgl64.Vec3, mgl64.Vec3) {
	var t1 mgl64.Vec3
	if math.Abs(n.X()) > math.Abs(n.Y()) {
		t1 = mgl64.Vec3{n.Z(), 0, -n.X()}.Normalize()
	} else {
		t1 = mgl64.Vec3{0, n.Z(), -n.Y()}.Normalize()
	}
	return t1, n.Cross(t1)
}
