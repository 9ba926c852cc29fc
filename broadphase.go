package cm3d

import (
	"cmp"
	"slices"
)

// BroadPhasePairFunc receives one candidate pair.
type BroadPhasePairFunc func(a, b *Shape)

// BroadPhase finds the pairs of shapes whose cached bounding boxes overlap.
type BroadPhase interface {
	// Pairs calls visit once for each overlapping pair of shapes. The shapes'
	// BB fields must be up to date. The visiting order must only depend on the
	// order and geometry of shapes.
	Pairs(shapes []*Shape, visit BroadPhasePairFunc)
}

// SweepAndPrune sorts bounding boxes along the axis where their centers are most
// spread out and only tests boxes whose intervals overlap on that axis.
type SweepAndPrune struct {
	sorted []*Shape
}

func NewSweepAndPrune() *SweepAndPrune {
	return &SweepAndPrune{}
}

func (sap *SweepAndPrune) Pairs(shapes []*Shape, visit BroadPhasePairFunc) {
	axis := sweepAxis(shapes)

	sap.sorted = append(sap.sorted[:0], shapes...)
	slices.SortStableFunc(sap.sorted, func(x, y *Shape) int {
		return cmp.Compare(x.BB.Min[axis], y.BB.Min[axis])
	})

	for i, a := range sap.sorted {
		for _, b := range sap.sorted[i+1:] {
			if b.BB.Min[axis] > a.BB.Max[axis] {
				break
			}
			if a.BB.Intersects(b.BB) {
				visit(a, b)
			}
		}
	}
	clear(sap.sorted)
}

// sweepAxis returns the axis with the largest variance of bounding box centers.
// Unbounded boxes are left out.
func sweepAxis(shapes []*Shape) int {
	var sum, sumSq [3]float64
	var n float64
	for _, shape := range shapes {
		if shape.BB.Max[0] >= infinity || shape.BB.Min[0] <= -infinity {
			continue
		}
		c := shape.BB.Center()
		for i := range 3 {
			sum[i] += c[i]
			sumSq[i] += c[i] * c[i]
		}
		n++
	}
	if n == 0 {
		return 0
	}
	axis := 0
	best := -1.0
	for i := range 3 {
		mean := sum[i] / n
		if v := sumSq[i]/n - mean*mean; v > best {
			best = v
			axis = i
		}
	}
	return axis
}

// BruteForce tests every pair of shapes. It is meant for small scenes and for
// checking other broad phases.
type BruteForce struct{}

func (BruteForce) Pairs(shapes []*Shape, visit BroadPhasePairFunc) {
	for i, a := range shapes {
		for _, b := range shapes[i+1:] {
			if a.BB.Intersects(b.BB) {
				visit(a, b)
			}
		}
	}
}

// QueryReject returns true if the pair can never produce a contact: both shapes
// belong to the same body, their filters exclude each other, their bounds do
// not overlap or neither body is dynamic.
func QueryReject(a, b *Shape) bool {
	return a.Body == b.Body ||
		a.Filter.Reject(b.Filter) ||
		!a.BB.Intersects(b.BB) ||
		(a.Body.Type() != Dynamic && b.Body.Type() != Dynamic)
}
