package cm3d_test

import (
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/setanarut/cm3d"
)

func collectPairs(bp cm3d.BroadPhase, shapes []*cm3d.Shape) [][2]int {
	var out [][2]int
	bp.Pairs(shapes, func(a, b *cm3d.Shape) {
		i, j := a.UserData.(int), b.UserData.(int)
		if i > j {
			i, j = j, i
		}
		out = append(out, [2]int{i, j})
	})
	slices.SortFunc(out, func(x, y [2]int) int {
		if x[0] != y[0] {
			return x[0] - y[0]
		}
		return x[1] - y[1]
	})
	return out
}

func TestSweepAndPruneMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	var shapes []*cm3d.Shape
	for i := range 200 {
		p := mgl64.Vec3{rng.Float64() * 20, rng.Float64() * 5, rng.Float64() * 20}
		var s *cm3d.Shape
		if i%3 == 0 {
			s = boxAt(mgl64.Vec3{0.2 + rng.Float64(), 0.2 + rng.Float64(), 0.2 + rng.Float64()}, p)
		} else {
			s = sphereAt(0.1+rng.Float64(), p)
		}
		s.UserData = i
		s.CacheBB()
		shapes = append(shapes, s)
	}
	floor := floorPlane()
	floor.UserData = len(shapes)
	shapes = append(shapes, floor)

	want := collectPairs(cm3d.BruteForce{}, shapes)
	got := collectPairs(cm3d.NewSweepAndPrune(), shapes)
	if !slices.Equal(got, want) {
		t.Fatalf("sweep and prune found %d pairs, brute force %d", len(got), len(want))
	}
	if len(want) < len(shapes)-1 {
		t.Errorf("the plane should overlap every shape, got %d pairs", len(want))
	}
}

func TestQueryReject(t *testing.T) {
	a := sphereAt(1, mgl64.Vec3{})
	b := sphereAt(1, mgl64.Vec3{1, 0, 0})
	if cm3d.QueryReject(a, b) {
		t.Error("overlapping dynamic spheres should be tested")
	}

	b.Body.SetPosition(mgl64.Vec3{5, 0, 0})
	b.CacheBB()
	if !cm3d.QueryReject(a, b) {
		t.Error("disjoint bounds should be rejected")
	}
	b.Body.SetPosition(mgl64.Vec3{1, 0, 0})
	b.CacheBB()

	a.Filter = cm3d.ShapeFilter{Group: 3, Categories: cm3d.AllCategories, Mask: cm3d.AllCategories}
	b.Filter = a.Filter
	if !cm3d.QueryReject(a, b) {
		t.Error("shapes in the same group should be rejected")
	}
	b.SetShapeFilter(cm3d.ShapeFilterAll)

	s1 := floorPlane()
	s2 := cm3d.NewSphereShape(cm3d.NewStaticBody(), 1)
	if !cm3d.QueryReject(s1, s2) {
		t.Error("two static bodies should be rejected")
	}

	if !cm3d.QueryReject(a, a) {
		t.Error("a shape never collides with itself")
	}
}
