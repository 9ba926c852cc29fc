package cm3d

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Solver resolves the accepted contacts of a step by changing body velocities.
type Solver interface {
	Solve(contacts []*ContactConstraint, dt float64)
}

// ContactConstraint is an accepted, non-sensor contact handed to the Solver.
type ContactConstraint struct {
	BodyA, BodyB *Body
	Manifold     Manifold
	Settings     ContactSettings

	points []constraintPoint
	t1, t2 mgl64.Vec3
}

type constraintPoint struct {
	r1, r2       mgl64.Vec3
	nMass        float64
	tMass        [2]float64
	bias, bounce float64
	jnAcc, jBias float64
	jtAcc        [2]float64
}

// NewContactConstraint returns a constraint for an accepted manifold.
func NewContactConstraint(a, b *Body, m Manifold, settings ContactSettings) *ContactConstraint {
	return &ContactConstraint{
		BodyA:    a,
		BodyB:    b,
		Manifold: m,
		Settings: settings,
		points:   make([]constraintPoint, len(m.Points)),
	}
}

// Pair returns the canonical body pair of the constraint.
func (c *ContactConstraint) Pair() BodyPair {
	return c.Manifold.Pair()
}

// NormalImpulses returns the accumulated normal impulse of each point after solving.
func (c *ContactConstraint) NormalImpulses() []float64 {
	out := make([]float64, len(c.points))
	for i := range c.points {
		out[i] = c.points[i].jnAcc
	}
	return out
}

// TotalImpulse returns the impulse that was applied to body B this step.
func (c *ContactConstraint) TotalImpulse() mgl64.Vec3 {
	var sum mgl64.Vec3
	n := c.Manifold.Normal
	for i := range c.points {
		con := &c.points[i]
		sum = sum.Add(n.Mul(con.jnAcc)).Add(c.t1.Mul(con.jtAcc[0])).Add(c.t2.Mul(con.jtAcc[1]))
	}
	return sum
}

// PreStep computes the effective masses and the bias and bounce targets.
func (c *ContactConstraint) PreStep(dt, slop, bias, minBounceVelocity float64) {
	a := c.BodyA
	b := c.BodyB
	n := c.Manifold.Normal
	c.t1, c.t2 = tangentBasis(n)

	for i := range c.Manifold.Points {
		con := &c.points[i]
		p := c.Manifold.WorldPoint(i)
		con.r1 = p.Sub(a.Position())
		con.r2 = p.Sub(b.Position())

		// Calculate the mass normal and mass tangents.
		con.nMass = bodyPairMass(a, b, con.r1, con.r2, n)
		con.tMass[0] = bodyPairMass(a, b, con.r1, con.r2, c.t1)
		con.tMass[1] = bodyPairMass(a, b, con.r1, con.r2, c.t2)

		// Calculate the target bias velocity.
		dist := -c.Manifold.Points[i].Depth
		con.bias = -bias * math.Min(0, dist+slop) / dt
		con.jBias = 0
		con.jnAcc = 0
		con.jtAcc = [2]float64{}

		// Calculate the target bounce velocity.
		vrn := relativeVelocity(a.velocity, a.w, b.velocity, b.w, con.r1, con.r2).Dot(n)
		con.bounce = 0
		if vrn < -minBounceVelocity {
			con.bounce = vrn * c.Settings.CombinedRestitution
		}
	}
}

// ApplyImpulse runs one sequential impulse iteration over the points.
func (c *ContactConstraint) ApplyImpulse() {
	a := c.BodyA
	b := c.BodyB
	n := c.Manifold.Normal
	friction := c.Settings.CombinedFriction

	for i := range c.points {
		con := &c.points[i]
		r1 := con.r1
		r2 := con.r2

		surfaceVr := c.Settings.RelativeLinearSurfaceVelocity.Add(c.Settings.RelativeAngularSurfaceVelocity.Cross(r2))
		surfaceVr = surfaceVr.Sub(n.Mul(surfaceVr.Dot(n)))

		vb1 := a.vBias.Add(a.wBias.Cross(r1))
		vb2 := b.vBias.Add(b.wBias.Cross(r2))
		vr := relativeVelocity(a.velocity, a.w, b.velocity, b.w, r1, r2).Sub(surfaceVr)

		vbn := vb2.Sub(vb1).Dot(n)
		vrn := vr.Dot(n)

		jbn := (con.bias - vbn) * con.nMass
		jbnOld := con.jBias
		con.jBias = math.Max(jbnOld+jbn, 0)

		jn := -(con.bounce + vrn) * con.nMass
		jnOld := con.jnAcc
		con.jnAcc = math.Max(jnOld+jn, 0)

		jtMax := friction * con.jnAcc
		var djt [2]float64
		for k, t := range [2]mgl64.Vec3{c.t1, c.t2} {
			jt := -vr.Dot(t) * con.tMass[k]
			jtOld := con.jtAcc[k]
			con.jtAcc[k] = clamp(jtOld+jt, -jtMax, jtMax)
			djt[k] = con.jtAcc[k] - jtOld
		}

		applyBiasImpulses(a, b, r1, r2, n.Mul(con.jBias-jbnOld))
		applyImpulses(a, b, r1, r2, n.Mul(con.jnAcc-jnOld).Add(c.t1.Mul(djt[0])).Add(c.t2.Mul(djt[1])))
	}
}

func bodyPairMass(a, b *Body, r1, r2, n mgl64.Vec3) float64 {
	k := kScalarBody(a.massInverse, a.inertiaInverseWorld, r1, n) +
		kScalarBody(b.massInverse, b.inertiaInverseWorld, r2, n)
	if k <= kScalarEpsilon {
		return 0
	}
	return 1 / k
}

// SequentialImpulseSolver is an iterative solver with accumulated, clamped
// impulses and pseudo velocities for position correction.
type SequentialImpulseSolver struct {
	// Number of iterations per step.
	Iterations uint
	// Amount of overlap allowed between shapes before correction starts.
	CollisionSlop float64
	// Fraction of the overlap left uncorrected after one second.
	CollisionBias float64
	// Approach speeds below this do not bounce.
	MinVelocityForRestitution float64
}

func NewSequentialImpulseSolver() *SequentialImpulseSolver {
	return &SequentialImpulseSolver{
		Iterations:                10,
		CollisionSlop:             0.01,
		CollisionBias:             math.Pow(1.0-0.1, 60.0),
		MinVelocityForRestitution: 1,
	}
}

func (s *SequentialImpulseSolver) Solve(contacts []*ContactConstraint, dt float64) {
	if len(contacts) == 0 || dt <= 0 {
		return
	}
	bias := biasCoef(s.CollisionBias, dt)
	for _, c := range contacts {
		c.PreStep(dt, s.CollisionSlop, bias, s.MinVelocityForRestitution)
	}
	for range s.Iterations {
		for _, c := range contacts {
			c.ApplyImpulse()
		}
	}
}
