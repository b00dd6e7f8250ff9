package opt

import (
	"math"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanEmpty(t *testing.T) {
	res, err := NewPlanner().Plan(nil, Point{X: 2, Y: 3})
	require.NoError(t, err)
	assert.Empty(t, res.Order)
	assert.Equal(t, Path{{2, 3}}, res.Path)
	assert.Equal(t, []Command{{Kind: Finish}}, res.Commands)
	assert.Equal(t, 0.0, res.Cost)
}

func TestPlanRejectsBadInput(t *testing.T) {
	p := NewPlanner()

	_, err := p.Plan([]Cylinder{{Pos: Point{1, 1}, Cat: 7}}, Point{})
	assert.ErrorIs(t, err, ErrUnknownCategory)

	_, err = p.Plan([]Cylinder{cyl(math.NaN(), 1, Category1)}, Point{})
	assert.ErrorIs(t, err, ErrNonFinite)

	_, err = p.Plan(nil, Point{X: math.Inf(1)})
	assert.ErrorIs(t, err, ErrNonFinite)

	bad := p
	bad.Weights.Fuel = -1
	_, err = bad.Plan([]Cylinder{cyl(1, 1, Category1)}, Point{})
	assert.ErrorIs(t, err, ErrInvalidWeights)

	bad = p
	bad.Profile.V0 = 0
	_, err = bad.Plan([]Cylinder{cyl(1, 1, Category1)}, Point{})
	assert.ErrorIs(t, err, ErrInvalidProfile)
}

func TestPlanCollinear(t *testing.T) {
	cyls := []Cylinder{cyl(0, 0, Category1), cyl(5, 0, Category1), cyl(10, 0, Category1)}
	res, err := NewPlanner().Plan(cyls, Point{})
	require.NoError(t, err)
	assert.Equal(t, Order{0, 1, 2}, res.Order)
	assert.Equal(t, Point{0, 0}, res.Path[0])
	assert.Equal(t, Point{10, 0}, res.Path[len(res.Path)-1])
	assert.Equal(t, 3.0, res.Score)
}

func TestPlanEndToEnd(t *testing.T) {
	rng := rand.New(rand.NewSource(21))
	p := NewPlanner()
	for trial := 0; trial < 10; trial++ {
		cyls := randomField(t, rng, 5+rng.Intn(8), 40, 4)
		origin := Point{X: -3, Y: -3}

		res, err := p.Plan(cyls, origin)
		require.NoError(t, err)
		require.NoError(t, ValidateOrder(res.Order, len(cyls)))
		assert.Equal(t, origin, res.Path[0])
		assert.Equal(t, cyls[res.Order[len(res.Order)-1]].Pos, res.Path[len(res.Path)-1])
		assert.LessOrEqual(t, res.Cost, res.Stats.SeedCost+1e-9)
		assert.Greater(t, res.Stats.RouteCalls, 0)
		assert.Len(t, res.Steps, len(res.Path))

		replayed := ReplayCommands(res.Commands, origin, p.Profile.InitialHeadingDeg)
		require.Len(t, replayed, len(res.Path))
		assert.True(t, samePoint(replayed[len(replayed)-1], res.Path[len(res.Path)-1], 1e-6))
	}
}

func TestPlanConcurrentCallsAgree(t *testing.T) {
	rng := rand.New(rand.NewSource(8))
	cyls := randomField(t, rng, 10, 40, 4)
	p := NewPlanner()
	want, err := p.Plan(cyls, Point{})
	require.NoError(t, err)

	var wg sync.WaitGroup
	orders := make([]Order, 8)
	for i := range orders {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := p.Plan(cyls, Point{})
			if err == nil {
				orders[i] = res.Order
			}
		}(i)
	}
	wg.Wait()
	for i, o := range orders {
		assert.Equal(t, want.Order, o, "goroutine %d", i)
	}
}
