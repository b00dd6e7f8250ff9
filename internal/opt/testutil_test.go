package opt

import (
	"math"
	"math/rand"
	"testing"
)

func cyl(x, y float64, cat Category) Cylinder {
	return Cylinder{Pos: Point{X: x, Y: y}, Cat: cat}
}

// randomField scatters n cylinders on a side×side square, keeping them at
// least minGap apart so every map is a plausible arena.
func randomField(t *testing.T, rng *rand.Rand, n int, side, minGap float64) []Cylinder {
	t.Helper()
	out := make([]Cylinder, 0, n)
	for tries := 0; len(out) < n; tries++ {
		if tries > 100000 {
			t.Fatalf("could not place %d cylinders", n)
		}
		p := Point{X: rng.Float64() * side, Y: rng.Float64() * side}
		ok := true
		for _, c := range out {
			if c.Pos.Dist(p) < minGap {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, Cylinder{Pos: p, Cat: Category(1 + rng.Intn(3))})
		}
	}
	return out
}

// segmentDist is the distance from p to the closed segment [a, b].
func segmentDist(p, a, b Point) float64 {
	dx, dy := b.X-a.X, b.Y-a.Y
	l2 := dx*dx + dy*dy
	if l2 == 0 {
		return p.Dist(a)
	}
	u := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / l2
	u = math.Max(0, math.Min(1, u))
	return p.Dist(Point{X: a.X + u*dx, Y: a.Y + u*dy})
}

func samePoint(a, b Point, eps float64) bool {
	return math.Abs(a.X-b.X) <= eps && math.Abs(a.Y-b.Y) <= eps
}
