package opt

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouteStraightWhenClear(t *testing.T) {
	cyls := []Cylinder{cyl(0, 10, Category1), cyl(10, 10, Category2)}
	r := NewRouter(cyls, BlockerNearest)

	got := r.Route(Point{0, 0}, Point{10, 0}, NewExclusion(len(cyls)))
	assert.Equal(t, Path{{0, 0}, {10, 0}}, got)
	assert.Equal(t, 1, r.Calls())
}

func TestRouteDetoursAroundObstacleOnTheLine(t *testing.T) {
	cyls := []Cylinder{cyl(5, 0, Category1)}
	r := NewRouter(cyls, BlockerNearest)

	got := r.Route(Point{0, 0}, Point{10, 0}, NewExclusion(1))
	require.Len(t, got, 3)
	assert.Equal(t, Point{0, 0}, got[0])
	assert.Equal(t, Point{10, 0}, got[2])
	assert.GreaterOrEqual(t, got[1].Dist(cyls[0].Pos), AvoidDistance-1e-9)
	for i := 1; i < len(got); i++ {
		assert.Greater(t, segmentDist(cyls[0].Pos, got[i-1], got[i]), TooCloseRadius,
			"segment %d still touches the obstacle", i)
	}
}

func TestRouteIgnoresExcludedObstacle(t *testing.T) {
	cyls := []Cylinder{cyl(5, 0, Category1)}
	r := NewRouter(cyls, BlockerNearest)

	got := r.Route(Point{0, 0}, Point{10, 0}, NewExclusion(1, 0))
	assert.Equal(t, Path{{0, 0}, {10, 0}}, got)
}

func TestRouteOffsetObstacleDetoursAwayFromCentre(t *testing.T) {
	cyls := []Cylinder{cyl(5, -0.5, Category3)}
	r := NewRouter(cyls, BlockerNearest)

	got := r.Route(Point{0, 0}, Point{10, 0}, NewExclusion(1))
	require.Len(t, got, 3)
	// foot (5,0) lies above the centre, the detour continues upwards
	assert.InDelta(t, 5.0, got[1].X, 1e-9)
	assert.InDelta(t, -0.5+AvoidDistance, got[1].Y, 1e-9)
}

func TestRouteDegenerateSegment(t *testing.T) {
	cyls := []Cylinder{cyl(1, 1, Category1)}
	r := NewRouter(cyls, BlockerNearest)

	got := r.Route(Point{1, 1}, Point{1, 1}, NewExclusion(1))
	assert.Equal(t, Path{{1, 1}}, got)
	assert.Equal(t, 0.0, r.Distance(Point{1, 1}, Point{1, 1}, NewExclusion(1)))
}

func TestRouteBlockerPolicy(t *testing.T) {
	cyls := []Cylinder{cyl(8, 0.5, Category1), cyl(3, -0.5, Category1)}
	begin, end := Point{0, 0}, Point{10, 0}

	nearest := NewRouter(cyls, BlockerNearest).Route(begin, end, NewExclusion(2))
	require.GreaterOrEqual(t, len(nearest), 3)
	assert.True(t, samePoint(nearest[1], Point{3, 1.25}, 1e-9), "nearest detour: %v", nearest[1])

	first := NewRouter(cyls, BlockerFirst).Route(begin, end, NewExclusion(2))
	found := false
	for _, p := range first {
		if samePoint(p, Point{8, -1.25}, 1e-9) {
			found = true
		}
	}
	assert.True(t, found, "first-blocker path should detour around cylinder 0: %v", first)
	assert.Equal(t, begin, first[0])
	assert.Equal(t, end, first[len(first)-1])
}

func TestRouteEndpointsOnRandomFields(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 50; trial++ {
		cyls := randomField(t, rng, 15, 30, 4)
		r := NewRouter(cyls, BlockerPolicy(trial%2))
		begin := Point{X: rng.Float64() * 30, Y: rng.Float64() * 30}
		end := Point{X: rng.Float64() * 30, Y: rng.Float64() * 30}

		got := r.Route(begin, end, NewExclusion(len(cyls)))
		require.GreaterOrEqual(t, len(got), 2)
		assert.Equal(t, begin, got[0])
		assert.Equal(t, end, got[len(got)-1])
		assert.GreaterOrEqual(t, got.Length(), begin.Dist(end)-1e-9)
		// recursion never goes deeper than one split per cylinder
		assert.LessOrEqual(t, r.Calls(), 1<<uint(len(cyls)+1))
	}
}

// detoured returns the cylinders the route stepped around: those with an
// interior vertex at exactly AvoidDistance from their centre.
func detoured(path Path, cyls []Cylinder) map[int]bool {
	out := map[int]bool{}
	for k := 1; k < len(path)-1; k++ {
		for i, c := range cyls {
			if math.Abs(path[k].Dist(c.Pos)-AvoidDistance) < 1e-9 {
				out[i] = true
			}
		}
	}
	return out
}

func TestRouteClearsOtherCylindersOnRandomFields(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	detours := 0
	for trial := 0; trial < 200; trial++ {
		cyls := randomField(t, rng, 15, 30, 4)
		r := NewRouter(cyls, BlockerPolicy(trial%2))
		begin := Point{X: rng.Float64() * 30, Y: rng.Float64() * 30}
		end := Point{X: rng.Float64() * 30, Y: rng.Float64() * 30}
		excluded := NewExclusion(len(cyls), rng.Intn(len(cyls)))

		got := r.Route(begin, end, excluded)
		around := detoured(got, cyls)
		detours += len(around)
		for i, c := range cyls {
			if excluded.Has(i) || around[i] {
				continue
			}
			for k := 1; k < len(got); k++ {
				d := segmentDist(c.Pos, got[k-1], got[k])
				require.GreaterOrEqual(t, d, TooCloseRadius,
					"trial %d: segment %d passes %.3f from cylinder %d", trial, k, d, i)
			}
		}
		for i := range around {
			assert.False(t, excluded.Has(i), "trial %d: detoured around excluded cylinder %d", trial, i)
		}
	}
	assert.Positive(t, detours)
}

func TestExclusionWithDoesNotMutate(t *testing.T) {
	e := NewExclusion(3, 0)
	f := e.With(2)
	assert.True(t, f.Has(0))
	assert.True(t, f.Has(2))
	assert.False(t, e.Has(2))
	assert.False(t, e.Has(10))
}

func TestParseBlockerPolicy(t *testing.T) {
	p, ok := ParseBlockerPolicy("")
	assert.True(t, ok)
	assert.Equal(t, BlockerNearest, p)
	p, ok = ParseBlockerPolicy("first")
	assert.True(t, ok)
	assert.Equal(t, "first", p.String())
	_, ok = ParseBlockerPolicy("closest")
	assert.False(t, ok)
}
