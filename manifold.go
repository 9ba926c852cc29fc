package cm3d

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// MaxContactsPerManifold bounds the number of points the narrow phase reports for one pair.
const MaxContactsPerManifold = 4

// ContactPoint is one point of a Manifold.
type ContactPoint struct {
	// Position relative to Manifold.BaseOffset.
	Position mgl64.Vec3
	// Depth is the penetration depth, positive when the shapes overlap.
	Depth float64
}

// Manifold is the set of contact points between two bodies for one step.
//
// The narrow phase creates it and nothing downstream mutates it. Positions are
// stored relative to BaseOffset to keep precision far from the origin.
type Manifold struct {
	BodyA, BodyB BodyID
	BaseOffset   mgl64.Vec3
	// Normal is unit length and points from body A towards body B.
	// Moving B along it separates the bodies.
	Normal mgl64.Vec3
	Points []ContactPoint
}

// Count returns the number of contact points.
func (m *Manifold) Count() int {
	return len(m.Points)
}

// WorldPoint returns contact point i in world coordinates.
func (m *Manifold) WorldPoint(i int) mgl64.Vec3 {
	return m.BaseOffset.Add(m.Points[i].Position)
}

// MaxDepth returns the deepest penetration of the manifold.
func (m *Manifold) MaxDepth() float64 {
	depth := math.Inf(-1)
	for _, p := range m.Points {
		depth = math.Max(depth, p.Depth)
	}
	return depth
}

// Pair returns the canonical body pair of the manifold.
func (m *Manifold) Pair() BodyPair {
	return NewBodyPair(m.BodyA, m.BodyB)
}

// Clone returns a deep copy.
func (m *Manifold) Clone() Manifold {
	c := *m
	c.Points = append([]ContactPoint(nil), m.Points...)
	return c
}

// Swapped returns a copy with the bodies exchanged and the normal flipped.
func (m *Manifold) Swapped() Manifold {
	c := m.Clone()
	c.BodyA, c.BodyB = m.BodyB, m.BodyA
	c.Normal = m.Normal.Mul(-1)
	return c
}

// Validate reports whether the manifold is well formed: two distinct bodies,
// at least one point, finite values and a unit normal.
func (m *Manifold) Validate() error {
	if err := m.checkShape(); err != nil {
		return err
	}
	if m.BodyA == m.BodyB {
		return fmt.Errorf("%w: both sides reference body %d", ErrInvalidManifold, m.BodyA)
	}
	if l := m.Normal.Len(); math.Abs(l-1) > normalTolerance {
		return fmt.Errorf("%w: normal length %g", ErrInvalidManifold, l)
	}
	return nil
}

// checkShape is the structural part of Validate, shared with the estimator.
func (m *Manifold) checkShape() error {
	if m == nil {
		return fmt.Errorf("%w: nil manifold", ErrInvalidManifold)
	}
	if len(m.Points) == 0 {
		return fmt.Errorf("%w: no contact points", ErrInvalidManifold)
	}
	if !isFiniteVec(m.Normal) || !isFiniteVec(m.BaseOffset) {
		return fmt.Errorf("%w: non-finite normal or base offset", ErrInvalidManifold)
	}
	for i, p := range m.Points {
		if !isFiniteVec(p.Position) || !isFinite(p.Depth) {
			return fmt.Errorf("%w: non-finite contact point %d", ErrInvalidManifold, i)
		}
	}
	return nil
}

// BodyPair is an unordered pair of bodies stored with A < B.
type BodyPair struct {
	A, B BodyID
}

// NewBodyPair returns the canonical pair for two body ids.
func NewBodyPair(a, b BodyID) BodyPair {
	if a > b {
		a, b = b, a
	}
	return BodyPair{A: a, B: b}
}

func (p BodyPair) String() string {
	return fmt.Sprintf("(%d, %d)", p.A, p.B)
}

// Contains returns true if id is one of the pair.
func (p BodyPair) Contains(id BodyID) bool {
	return p.A == id || p.B == id
}

// Other returns the id paired with id.
func (p BodyPair) Other(id BodyID) BodyID {
	if p.A == id {
		return p.B
	}
	return p.A
}
