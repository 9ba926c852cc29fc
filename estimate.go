package cm3d

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// CollisionEstimate is the outcome predicted by EstimateCollisionResponse.
type CollisionEstimate struct {
	LinearVelocityA  mgl64.Vec3
	AngularVelocityA mgl64.Vec3
	LinearVelocityB  mgl64.Vec3
	AngularVelocityB mgl64.Vec3
	// Impulses holds one non-negative normal impulse per manifold point, in point order.
	Impulses []float64
}

// TotalImpulse returns the sum of the normal impulses.
func (e *CollisionEstimate) TotalImpulse() float64 {
	var sum float64
	for _, j := range e.Impulses {
		sum += j
	}
	return sum
}

// EstimateCollisionResponse predicts the velocities of two bodies after a
// frictionless impulse resolution of the manifold, and the normal impulse
// applied at every contact point.
//
// Points are resolved once each, in manifold order, and every impulse is applied
// to the running velocities before the next point is evaluated. A point whose
// relative normal velocity is not negative gets no impulse. An approaching
// point gets the impulse that turns its relative normal velocity vn into
// -restitution*vn. Restitution is clamped to [0, 1].
//
// The function only reads its arguments and may be called from any goroutine,
// including from inside a ContactListener callback.
func EstimateCollisionResponse(a, b MotionState, m *Manifold, combinedRestitution float64) (CollisionEstimate, error) {
	if math.IsNaN(combinedRestitution) {
		return CollisionEstimate{}, fmt.Errorf("%w: NaN", ErrInvalidRestitution)
	}
	if err := m.checkShape(); err != nil {
		return CollisionEstimate{}, err
	}
	restitution := clamp01(combinedRestitution)

	a = a.estimatorView()
	b = b.estimatorView()

	est := CollisionEstimate{
		LinearVelocityA:  a.LinearVelocity,
		AngularVelocityA: a.AngularVelocity,
		LinearVelocityB:  b.LinearVelocity,
		AngularVelocityB: b.AngularVelocity,
		Impulses:         make([]float64, len(m.Points)),
	}
	n := m.Normal
	for i := range m.Points {
		p := m.WorldPoint(i)
		r1 := p.Sub(a.CenterOfMass)
		r2 := p.Sub(b.CenterOfMass)

		vn := relativeVelocity(est.LinearVelocityA, est.AngularVelocityA, est.LinearVelocityB, est.AngularVelocityB, r1, r2).Dot(n)
		if vn >= 0 {
			continue
		}

		k := kScalar(&a, &b, r1, r2, n)
		if k <= kScalarEpsilon {
			continue
		}

		lambda := math.Max(0, -(1+restitution)*vn/k)
		est.Impulses[i] = lambda

		j := n.Mul(lambda)
		est.LinearVelocityA = est.LinearVelocityA.Sub(j.Mul(a.InverseMass))
		est.AngularVelocityA = est.AngularVelocityA.Sub(a.InverseInertia.Mul3x1(r1.Cross(j)))
		est.LinearVelocityB = est.LinearVelocityB.Add(j.Mul(b.InverseMass))
		est.AngularVelocityB = est.AngularVelocityB.Add(b.InverseInertia.Mul3x1(r2.Cross(j)))
	}
	return est, nil
}

// estimatorView enforces the motion type invariants on a snapshot that may have been built by hand.
func (s MotionState) estimatorView() MotionState {
	if s.Type != Dynamic {
		s.InverseMass = 0
		s.InverseInertia = mgl64.Mat3{}
	}
	if s.Type == Static {
		s.LinearVelocity = mgl64.Vec3{}
		s.AngularVelocity = mgl64.Vec3{}
	}
	return s
}
