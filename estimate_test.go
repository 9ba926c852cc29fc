package cm3d_test

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/setanarut/cm3d"
)

const tolerance = 1e-9

func near(a, b float64) bool {
	return math.Abs(a-b) <= tolerance*(1+math.Abs(a)+math.Abs(b))
}

func nearVec(a, b mgl64.Vec3) bool {
	return near(a[0], b[0]) && near(a[1], b[1]) && near(a[2], b[2])
}

func singlePoint(a, b *cm3d.Body, p, n mgl64.Vec3) *cm3d.Manifold {
	return &cm3d.Manifold{
		BodyA:      a.ID(),
		BodyB:      b.ID(),
		BaseOffset: a.Position(),
		Normal:     n,
		Points:     []cm3d.ContactPoint{{Position: p.Sub(a.Position())}},
	}
}

func TestEstimateHeadOnElastic(t *testing.T) {
	u := 3.0
	a := cm3d.NewSphereBody(1, 1)
	a.SetPosition(mgl64.Vec3{-1, 0, 0})
	a.SetVelocity(mgl64.Vec3{u, 0, 0})
	b := cm3d.NewSphereBody(1, 1)
	b.SetPosition(mgl64.Vec3{1, 0, 0})
	b.SetVelocity(mgl64.Vec3{-u, 0, 0})

	m := singlePoint(a, b, mgl64.Vec3{}, mgl64.Vec3{1, 0, 0})
	est, err := cm3d.EstimateCollisionResponse(a.MotionState(), b.MotionState(), m, 1)
	if err != nil {
		t.Fatal(err)
	}
	if !nearVec(est.LinearVelocityA, mgl64.Vec3{-u, 0, 0}) || !nearVec(est.LinearVelocityB, mgl64.Vec3{u, 0, 0}) {
		t.Errorf("velocities should swap, got %v %v", est.LinearVelocityA, est.LinearVelocityB)
	}
	if !near(est.Impulses[0], 2*u) {
		t.Errorf("impulse = %g, want %g", est.Impulses[0], 2*u)
	}
	if !nearVec(est.AngularVelocityA, mgl64.Vec3{}) || !nearVec(est.AngularVelocityB, mgl64.Vec3{}) {
		t.Error("central impact should not spin the bodies")
	}
}

func TestEstimateSphereOnStaticFloor(t *testing.T) {
	mass, u := 2.0, 3.0
	floor := cm3d.NewStaticBody()
	sphere := cm3d.NewSphereBody(mass, 1)
	sphere.SetPosition(mgl64.Vec3{0, 1, 0})
	sphere.SetVelocity(mgl64.Vec3{0, -u, 0})

	m := singlePoint(floor, sphere, mgl64.Vec3{}, mgl64.Vec3{0, 1, 0})
	est, err := cm3d.EstimateCollisionResponse(floor.MotionState(), sphere.MotionState(), m, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !near(est.LinearVelocityB.Y(), 0) {
		t.Errorf("post normal velocity = %g, want 0", est.LinearVelocityB.Y())
	}
	if !near(est.TotalImpulse(), mass*u) {
		t.Errorf("impulse = %g, want %g", est.TotalImpulse(), mass*u)
	}
	if est.LinearVelocityA != (mgl64.Vec3{}) || est.AngularVelocityA != (mgl64.Vec3{}) {
		t.Error("static body must not move")
	}
}

func TestEstimateRestitutionTarget(t *testing.T) {
	// Off-center hit on a box, the contact point velocity must reverse with factor r.
	for _, r := range []float64{0, 0.25, 0.5, 1} {
		floor := cm3d.NewStaticBody()
		box := cm3d.NewBoxBody(3, mgl64.Vec3{1, 0.5, 0.25})
		box.SetPosition(mgl64.Vec3{0, 0.5, 0})
		box.SetRotation(mgl64.QuatRotate(0.3, mgl64.Vec3{0, 0, 1}))
		box.SetVelocity(mgl64.Vec3{0.5, -2, 0})
		box.SetAngularVelocity(mgl64.Vec3{0.1, 0, 0.7})

		p := mgl64.Vec3{0.8, 0, 0.1}
		n := mgl64.Vec3{0, 1, 0}
		m := singlePoint(floor, box, p, n)
		before := box.VelocityAtWorldPoint(p).Dot(n)

		est, err := cm3d.EstimateCollisionResponse(floor.MotionState(), box.MotionState(), m, r)
		if err != nil {
			t.Fatal(err)
		}
		box.SetVelocity(est.LinearVelocityB)
		box.SetAngularVelocity(est.AngularVelocityB)
		after := box.VelocityAtWorldPoint(p).Dot(n)
		if !near(after, -r*before) {
			t.Errorf("r=%g: post normal velocity %g, want %g", r, after, -r*before)
		}
		if est.AngularVelocityB == (mgl64.Vec3{0.1, 0, 0.7}) {
			t.Errorf("r=%g: off-center impulse should change the spin", r)
		}
	}
}

func TestEstimateContactAtCenterOfMass(t *testing.T) {
	floor := cm3d.NewStaticBody()
	sphere := cm3d.NewSphereBody(1, 1)
	sphere.SetPosition(mgl64.Vec3{2, 3, 4})
	sphere.SetVelocity(mgl64.Vec3{1, -4, 0})

	m := singlePoint(floor, sphere, sphere.Position(), mgl64.Vec3{0, 1, 0})
	est, err := cm3d.EstimateCollisionResponse(floor.MotionState(), sphere.MotionState(), m, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	if !nearVec(est.LinearVelocityB, mgl64.Vec3{1, 2, 0}) {
		t.Errorf("velocity = %v", est.LinearVelocityB)
	}
	if !nearVec(est.AngularVelocityB, mgl64.Vec3{}) {
		t.Errorf("a contact at the center of mass cannot create spin, got %v", est.AngularVelocityB)
	}
	if !near(est.Impulses[0], 6) {
		t.Errorf("impulse = %g, want 6", est.Impulses[0])
	}
}

func TestEstimateSeparatingPoints(t *testing.T) {
	a := cm3d.NewBoxBody(1, mgl64.Vec3{1, 1, 1})
	a.SetVelocity(mgl64.Vec3{-1, 0, 0})
	b := cm3d.NewBoxBody(1, mgl64.Vec3{1, 1, 1})
	b.SetPosition(mgl64.Vec3{2, 0, 0})
	b.SetVelocity(mgl64.Vec3{1, 0, 0})

	m := &cm3d.Manifold{
		Normal: mgl64.Vec3{1, 0, 0},
		Points: []cm3d.ContactPoint{
			{Position: mgl64.Vec3{1, 0.5, 0}},
			{Position: mgl64.Vec3{1, -0.5, 0}},
		},
	}
	est, err := cm3d.EstimateCollisionResponse(a.MotionState(), b.MotionState(), m, 1)
	if err != nil {
		t.Fatal(err)
	}
	for i, j := range est.Impulses {
		if j != 0 {
			t.Errorf("impulse %d = %g, want 0", i, j)
		}
	}
	if est.LinearVelocityA != a.Velocity() || est.LinearVelocityB != b.Velocity() {
		t.Error("separating bodies must keep their velocities")
	}
}

func TestEstimateImmovableBodies(t *testing.T) {
	a := cm3d.NewStaticBody()
	b := cm3d.NewKinematicBody()
	b.SetVelocity(mgl64.Vec3{0, -1, 0})

	m := singlePoint(a, b, mgl64.Vec3{}, mgl64.Vec3{0, 1, 0})
	est, err := cm3d.EstimateCollisionResponse(a.MotionState(), b.MotionState(), m, 1)
	if err != nil {
		t.Fatal(err)
	}
	if est.TotalImpulse() != 0 || est.LinearVelocityB != (mgl64.Vec3{0, -1, 0}) {
		t.Errorf("immovable pair should be untouched, got %+v", est)
	}
}

func TestEstimatePinnedBodySpins(t *testing.T) {
	// A dynamic body with infinite mass but finite inertia only rotates.
	floor := cm3d.MotionState{Type: cm3d.Static}
	wheel := cm3d.MotionState{
		Type:            cm3d.Dynamic,
		InverseInertia:  mgl64.Ident3(),
		AngularVelocity: mgl64.Vec3{0, 0, 1},
	}
	m := &cm3d.Manifold{
		BodyA:  1,
		BodyB:  2,
		Normal: mgl64.Vec3{0, -1, 0},
		Points: []cm3d.ContactPoint{{Position: mgl64.Vec3{1, 0, 0}}},
	}
	est, err := cm3d.EstimateCollisionResponse(floor, wheel, m, 1)
	if err != nil {
		t.Fatal(err)
	}
	if !near(est.Impulses[0], 2) {
		t.Errorf("impulse = %g, want 2", est.Impulses[0])
	}
	if !nearVec(est.AngularVelocityB, mgl64.Vec3{0, 0, -1}) {
		t.Errorf("angular velocity = %v, want spin reversed", est.AngularVelocityB)
	}
	if est.LinearVelocityB != (mgl64.Vec3{}) {
		t.Errorf("linear velocity = %v, want unchanged", est.LinearVelocityB)
	}
}

func TestEstimateKinematicKeepsVelocity(t *testing.T) {
	paddle := cm3d.NewKinematicBody()
	paddle.SetVelocity(mgl64.Vec3{0, 2, 0})
	ball := cm3d.NewSphereBody(1, 0.5)
	ball.SetPosition(mgl64.Vec3{0, 0.5, 0})
	ball.SetVelocity(mgl64.Vec3{0, -1, 0})

	m := singlePoint(paddle, ball, mgl64.Vec3{}, mgl64.Vec3{0, 1, 0})
	est, err := cm3d.EstimateCollisionResponse(paddle.MotionState(), ball.MotionState(), m, 1)
	if err != nil {
		t.Fatal(err)
	}
	if est.LinearVelocityA != (mgl64.Vec3{0, 2, 0}) {
		t.Errorf("kinematic velocity changed to %v", est.LinearVelocityA)
	}
	// Relative approach speed 3 is reflected around the paddle velocity.
	if !near(est.LinearVelocityB.Y(), 5) {
		t.Errorf("ball velocity = %v, want 5 up", est.LinearVelocityB)
	}
}

func TestEstimateSwappedManifold(t *testing.T) {
	a := cm3d.NewBoxBody(2, mgl64.Vec3{0.5, 0.5, 0.5})
	a.SetVelocity(mgl64.Vec3{1, -0.5, 0})
	a.SetAngularVelocity(mgl64.Vec3{0, 0.3, 0})
	b := cm3d.NewBoxBody(1, mgl64.Vec3{0.5, 0.5, 0.5})
	b.SetPosition(mgl64.Vec3{1, 0.2, 0})
	b.SetVelocity(mgl64.Vec3{-1, 0, 0.2})

	m := singlePoint(a, b, mgl64.Vec3{0.5, 0.1, 0.1}, mgl64.Vec3{1, 0, 0})
	est, err := cm3d.EstimateCollisionResponse(a.MotionState(), b.MotionState(), m, 0.4)
	if err != nil {
		t.Fatal(err)
	}
	swapped := m.Swapped()
	rev, err := cm3d.EstimateCollisionResponse(b.MotionState(), a.MotionState(), &swapped, 0.4)
	if err != nil {
		t.Fatal(err)
	}
	if !nearVec(est.LinearVelocityA, rev.LinearVelocityB) || !nearVec(est.AngularVelocityB, rev.AngularVelocityA) {
		t.Errorf("swapping the bodies should mirror the result: %+v vs %+v", est, rev)
	}
	if !near(est.Impulses[0], rev.Impulses[0]) {
		t.Errorf("impulse %g vs %g", est.Impulses[0], rev.Impulses[0])
	}
}

func TestEstimateRestitutionClamped(t *testing.T) {
	a := cm3d.NewSphereBody(1, 1)
	a.SetVelocity(mgl64.Vec3{1, 0, 0})
	b := cm3d.NewSphereBody(1, 1)
	b.SetPosition(mgl64.Vec3{2, 0, 0})
	m := singlePoint(a, b, mgl64.Vec3{1, 0, 0}, mgl64.Vec3{1, 0, 0})

	high, err := cm3d.EstimateCollisionResponse(a.MotionState(), b.MotionState(), m, 7)
	if err != nil {
		t.Fatal(err)
	}
	one, _ := cm3d.EstimateCollisionResponse(a.MotionState(), b.MotionState(), m, 1)
	if !near(high.Impulses[0], one.Impulses[0]) {
		t.Errorf("restitution above 1 should clamp, got %g want %g", high.Impulses[0], one.Impulses[0])
	}

	low, _ := cm3d.EstimateCollisionResponse(a.MotionState(), b.MotionState(), m, -3)
	zero, _ := cm3d.EstimateCollisionResponse(a.MotionState(), b.MotionState(), m, 0)
	if !near(low.Impulses[0], zero.Impulses[0]) {
		t.Errorf("negative restitution should clamp to 0")
	}
}

func TestEstimateErrors(t *testing.T) {
	a := cm3d.NewSphereBody(1, 1)
	b := cm3d.NewSphereBody(1, 1)
	m := singlePoint(a, b, mgl64.Vec3{}, mgl64.Vec3{1, 0, 0})

	if _, err := cm3d.EstimateCollisionResponse(a.MotionState(), b.MotionState(), m, math.NaN()); !errors.Is(err, cm3d.ErrInvalidRestitution) {
		t.Errorf("NaN restitution: got %v", err)
	}
	empty := &cm3d.Manifold{Normal: mgl64.Vec3{1, 0, 0}}
	if _, err := cm3d.EstimateCollisionResponse(a.MotionState(), b.MotionState(), empty, 1); !errors.Is(err, cm3d.ErrInvalidManifold) {
		t.Errorf("empty manifold: got %v", err)
	}
	if _, err := cm3d.EstimateCollisionResponse(a.MotionState(), b.MotionState(), nil, 1); !errors.Is(err, cm3d.ErrInvalidManifold) {
		t.Errorf("nil manifold: got %v", err)
	}
	bad := singlePoint(a, b, mgl64.Vec3{math.Inf(1), 0, 0}, mgl64.Vec3{1, 0, 0})
	if _, err := cm3d.EstimateCollisionResponse(a.MotionState(), b.MotionState(), bad, 1); !errors.Is(err, cm3d.ErrInvalidManifold) {
		t.Errorf("non-finite point: got %v", err)
	}
}

func TestEstimateNeverAddsEnergy(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	vec := func(scale float64) mgl64.Vec3 {
		return mgl64.Vec3{rng.Float64()*2 - 1, rng.Float64()*2 - 1, rng.Float64()*2 - 1}.Mul(scale)
	}

	for i := range 500 {
		a := cm3d.NewBoxBody(0.1+rng.Float64()*10, vec(1).Add(mgl64.Vec3{1.1, 1.1, 1.1}))
		a.SetRotation(mgl64.QuatRotate(rng.Float64()*math.Pi, vec(1).Add(mgl64.Vec3{0, 0, 2})))
		a.SetVelocity(vec(5))
		a.SetAngularVelocity(vec(3))
		b := cm3d.NewBoxBody(0.1+rng.Float64()*10, vec(1).Add(mgl64.Vec3{1.1, 1.1, 1.1}))
		b.SetPosition(vec(2))
		b.SetVelocity(vec(5))
		b.SetAngularVelocity(vec(3))

		m := &cm3d.Manifold{
			BaseOffset: a.Position(),
			Normal:     vec(1).Add(mgl64.Vec3{0, 2, 0}).Normalize(),
		}
		for range 1 + rng.IntN(cm3d.MaxContactsPerManifold) {
			m.Points = append(m.Points, cm3d.ContactPoint{Position: vec(1.5)})
		}
		r := rng.Float64()

		before := a.KineticEnergy() + b.KineticEnergy()
		est, err := cm3d.EstimateCollisionResponse(a.MotionState(), b.MotionState(), m, r)
		if err != nil {
			t.Fatal(err)
		}
		for k, j := range est.Impulses {
			if j < 0 {
				t.Fatalf("case %d: negative impulse %g at point %d", i, j, k)
			}
		}
		a.SetVelocity(est.LinearVelocityA)
		a.SetAngularVelocity(est.AngularVelocityA)
		b.SetVelocity(est.LinearVelocityB)
		b.SetAngularVelocity(est.AngularVelocityB)
		after := a.KineticEnergy() + b.KineticEnergy()
		if after > before+1e-9*(1+before) {
			t.Fatalf("case %d: kinetic energy grew from %g to %g", i, before, after)
		}
	}
}
