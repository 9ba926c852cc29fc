package cm3d_test

import (
	"errors"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/setanarut/cm3d"
)

func TestBodySetType(t *testing.T) {
	b := cm3d.NewSphereBody(2, 1)
	b.SetVelocity(mgl64.Vec3{1, 2, 3})
	if b.InverseMass() != 0.5 {
		t.Errorf("inverse mass = %g", b.InverseMass())
	}

	b.SetType(cm3d.Kinematic)
	if b.InverseMass() != 0 || b.InverseInertiaWorld() != (mgl64.Mat3{}) {
		t.Error("kinematic bodies have infinite mass")
	}
	if b.Velocity() != (mgl64.Vec3{1, 2, 3}) {
		t.Error("kinematic bodies keep their velocity")
	}

	b.SetType(cm3d.Static)
	if b.Velocity() != (mgl64.Vec3{}) {
		t.Error("static bodies do not move")
	}
	b.SetVelocity(mgl64.Vec3{1, 0, 0})
	if b.Velocity() != (mgl64.Vec3{}) {
		t.Error("static bodies ignore velocity changes")
	}

	b.SetType(cm3d.Dynamic)
	if b.InverseMass() != 0.5 {
		t.Error("dynamic again should restore the mass")
	}
}

func TestBodySetTypeLocked(t *testing.T) {
	world, floor, _ := fallingSphere(t, 0.45)
	var err error
	world.SetContactListener(&cm3d.CollisionHandler{
		AddedFunc: func(_, b *cm3d.Body, _ *cm3d.Manifold, _ *cm3d.ContactSettings, _ any) {
			err = b.SetType(cm3d.Static)
		},
	})
	stepN(t, world, 1)
	if !errors.Is(err, cm3d.ErrWorldLocked) {
		t.Errorf("got %v", err)
	}
	if floor.SetType(cm3d.Static) != nil {
		t.Error("SetType outside a step should succeed")
	}
}

func TestBodyKineticEnergy(t *testing.T) {
	b := cm3d.NewBoxBody(2, mgl64.Vec3{1, 0.5, 0.25})
	b.SetVelocity(mgl64.Vec3{3, 0, 0})
	if ke := b.KineticEnergy(); math.Abs(ke-9) > 1e-12 {
		t.Errorf("translational energy = %g, want 9", ke)
	}

	b.SetVelocity(mgl64.Vec3{})
	b.SetAngularVelocity(mgl64.Vec3{0, 0, 2})
	iz := b.Inertia().At(2, 2)
	want := 0.5 * iz * 4
	if ke := b.KineticEnergy(); math.Abs(ke-want) > 1e-12 {
		t.Errorf("rotational energy = %g, want %g", ke, want)
	}

	// Energy does not depend on orientation when spinning about a principal axis.
	b.SetRotation(mgl64.QuatRotate(0.7, mgl64.Vec3{0, 0, 1}))
	if ke := b.KineticEnergy(); math.Abs(ke-want) > 1e-9 {
		t.Errorf("rotated energy = %g, want %g", ke, want)
	}

	if cm3d.NewStaticBody().KineticEnergy() != 0 {
		t.Error("static bodies have no kinetic energy")
	}
}

func TestBodyImpulseAtPoint(t *testing.T) {
	b := cm3d.NewSphereBody(1, 1)
	b.ApplyImpulseAtWorldPoint(mgl64.Vec3{0, 1, 0}, mgl64.Vec3{1, 0, 0})

	if !closeVec(b.Velocity(), mgl64.Vec3{0, 1, 0}) {
		t.Errorf("velocity = %v", b.Velocity())
	}
	// r x j = (1,0,0) x (0,1,0) = (0,0,1), inertia 0.4.
	if !closeVec(b.AngularVelocity(), mgl64.Vec3{0, 0, 2.5}) {
		t.Errorf("angular velocity = %v", b.AngularVelocity())
	}
	if !closeVec(b.VelocityAtWorldPoint(mgl64.Vec3{1, 0, 0}), mgl64.Vec3{0, 3.5, 0}) {
		t.Errorf("point velocity = %v", b.VelocityAtWorldPoint(mgl64.Vec3{1, 0, 0}))
	}
}

func TestBodyUpdatePosition(t *testing.T) {
	b := cm3d.NewBoxBody(1, mgl64.Vec3{1, 1, 1})
	b.SetVelocity(mgl64.Vec3{1, 0, 0})
	b.SetAngularVelocity(mgl64.Vec3{0, math.Pi, 0})
	for range 60 {
		cm3d.BodyUpdatePosition(b, dt)
	}
	if !closeVecTol(b.Position(), mgl64.Vec3{1, 0, 0}, 1e-9) {
		t.Errorf("position = %v", b.Position())
	}
	if l := b.Rotation().Len(); math.Abs(l-1) > 1e-12 {
		t.Errorf("rotation not normalized, length %g", l)
	}
	// Half a turn around y maps +x to about -x.
	if x := b.Transform().ApplyVector(mgl64.Vec3{1, 0, 0}).X(); x > -0.99 {
		t.Errorf("rotated x axis = %g", x)
	}
}

func TestBodyWorldLocal(t *testing.T) {
	b := cm3d.NewBoxBody(1, mgl64.Vec3{1, 1, 1})
	b.SetTransform(cm3d.NewTransform(mgl64.Vec3{1, 2, 3}, mgl64.QuatRotate(1.1, mgl64.Vec3{0, 1, 0})))
	p := mgl64.Vec3{0.3, -4, 2}
	if got := b.WorldToLocal(b.LocalToWorld(p)); !closeVecTol(got, p, 1e-12) {
		t.Errorf("round trip = %v", got)
	}
}

func closeVecTol(a, b mgl64.Vec3, tol float64) bool {
	return a.Sub(b).Len() < tol
}

func TestTransformMulInverse(t *testing.T) {
	a := cm3d.NewTransform(mgl64.Vec3{1, 0, 0}, mgl64.QuatRotate(0.5, mgl64.Vec3{0, 0, 1}))
	b := cm3d.NewTransformRotate(1.2, mgl64.Vec3{1, 1, 0})
	p := mgl64.Vec3{2, -1, 0.5}

	if got, want := a.Mul(b).Apply(p), a.Apply(b.Apply(p)); !closeVecTol(got, want, 1e-12) {
		t.Errorf("Mul = %v, want %v", got, want)
	}
	if got := a.Inverse().Apply(a.Apply(p)); !closeVecTol(got, p, 1e-12) {
		t.Errorf("Inverse = %v", got)
	}
	if got := cm3d.NewTransformTranslate(mgl64.Vec3{0, 5, 0}).Apply(p); got != (mgl64.Vec3{2, 4, 0.5}) {
		t.Errorf("translate = %v", got)
	}
}

func TestAABB(t *testing.T) {
	a := cm3d.NewAABB(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 1, 1})
	b := cm3d.NewAABBForExtents(mgl64.Vec3{1.5, 0.5, 0.5}, mgl64.Vec3{0.5, 0.5, 0.5})
	c := cm3d.NewAABBForSphere(mgl64.Vec3{5, 5, 5}, 1)

	if !a.Intersects(b) || a.Intersects(c) {
		t.Error("Intersects")
	}
	m := a.Merge(c)
	if !m.Contains(a) || !m.Contains(c) || m.Min != (mgl64.Vec3{}) || m.Max != (mgl64.Vec3{6, 6, 6}) {
		t.Errorf("Merge = %v", m)
	}
	if a.SurfaceArea() != 6 || a.Center() != (mgl64.Vec3{0.5, 0.5, 0.5}) {
		t.Error("SurfaceArea or Center")
	}
	if got := a.ClampPoint(mgl64.Vec3{2, -1, 0.5}); got != (mgl64.Vec3{1, 0, 0.5}) {
		t.Errorf("ClampPoint = %v", got)
	}
	if !a.Grow(1).ContainsPoint(mgl64.Vec3{-0.5, 1.5, 0}) {
		t.Error("Grow")
	}
	if a.Expand(mgl64.Vec3{3, 0, 0}).Max[0] != 3 {
		t.Error("Expand")
	}
	if a.Offset(mgl64.Vec3{1, 1, 1}).Min != (mgl64.Vec3{1, 1, 1}) {
		t.Error("Offset")
	}
}

func TestShapeBounds(t *testing.T) {
	box := cm3d.NewBoxBody(1, mgl64.Vec3{1, 2, 3})
	box.SetRotation(mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{0, 0, 1}))
	bb := box.Shape.CacheBB()
	if !closeVecTol(bb.Extents(), mgl64.Vec3{2, 1, 3}, 1e-9) {
		t.Errorf("rotated box extents = %v", bb.Extents())
	}

	sphere := cm3d.NewSphereBody(1, 2)
	sphere.SetPosition(mgl64.Vec3{1, 1, 1})
	if bb := sphere.Shape.CacheBB(); bb.Min != (mgl64.Vec3{-1, -1, -1}) {
		t.Errorf("sphere bounds = %v", bb)
	}
	s := sphere.Shape.Class.(*cm3d.Sphere)
	s.SetRadius(1)
	if got := sphere.Inertia(); got != cm3d.MomentForSphere(1, 1) {
		t.Errorf("inertia after resize = %v", got)
	}

	plane := cm3d.NewPlaneShape(cm3d.NewStaticBody(), mgl64.Vec3{0, 2, 0}, 1)
	p := plane.Class.(*cm3d.Plane)
	if p.Normal() != (mgl64.Vec3{0, 1, 0}) || p.SignedDistance(mgl64.Vec3{0, 3, 0}) != 2 {
		t.Errorf("plane = %v %v", p.Normal(), p.SignedDistance(mgl64.Vec3{0, 3, 0}))
	}
	if plane.Order() != cm3d.ShapeTypePlane || box.Shape.Order() != cm3d.ShapeTypeBox {
		t.Error("Order")
	}
}
