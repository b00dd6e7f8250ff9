package opt

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func squareField() []Cylinder {
	return []Cylinder{
		cyl(10, 0, Category1),  // A
		cyl(20, 0, Category1),  // B
		cyl(20, 20, Category1), // C
		cyl(10, 20, Category1), // D
	}
}

func TestRefineUncrossesSquare(t *testing.T) {
	cyls := squareField()
	r := NewRouter(cyls, BlockerNearest)
	w, prof := DefaultWeights(), DefaultProfile()

	order := Order{0, 2, 1, 3}
	got, st := Refine(cyls, Point{}, order, w, prof, r, RefineOptions{})
	assert.Equal(t, Order{0, 1, 2, 3}, got)
	assert.Equal(t, 1, st.Improvements)
	assert.Less(t, st.FinalCost, st.InitialCost)
	assert.InDelta(t, OrderCost(cyls, Point{}, got, w, prof, r), st.FinalCost, 1e-9)
}

func TestRefineShortOrdersUntouched(t *testing.T) {
	cyls := squareField()[:3]
	r := NewRouter(cyls, BlockerNearest)
	order := Order{2, 0, 1}
	got, st := Refine(cyls, Point{}, order, DefaultWeights(), DefaultProfile(), r, RefineOptions{})
	assert.Equal(t, Order{2, 0, 1}, got)
	assert.Equal(t, 0, st.Passes)
	assert.Equal(t, st.InitialCost, st.FinalCost)
}

func TestRefineMaxPasses(t *testing.T) {
	cyls := squareField()
	r := NewRouter(cyls, BlockerNearest)
	_, st := Refine(cyls, Point{}, Order{0, 2, 1, 3}, DefaultWeights(), DefaultProfile(), r, RefineOptions{MaxPasses: 1})
	assert.Equal(t, 1, st.Passes)
}

func TestRefineMonotoneAndIdempotent(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	prof := DefaultProfile()
	for trial := 0; trial < 15; trial++ {
		cyls := randomField(t, rng, 6+rng.Intn(6), 40, 4)
		w := Weights{Fuel: rng.Float64(), Time: rng.Float64(), Value: rng.Float64()}
		r := NewRouter(cyls, BlockerNearest)

		// shuffled start so there is something to improve
		order := make(Order, len(cyls))
		for i, p := range rng.Perm(len(cyls)) {
			order[i] = p
		}
		before := OrderCost(cyls, Point{}, order, w, prof, r)

		got, st := Refine(cyls, Point{}, order, w, prof, r, RefineOptions{})
		require.NoError(t, ValidateOrder(got, len(cyls)))
		assert.InDelta(t, before, st.InitialCost, 1e-9)
		assert.LessOrEqual(t, st.FinalCost, st.InitialCost+1e-9)
		assert.InDelta(t, OrderCost(cyls, Point{}, got, w, prof, r), st.FinalCost, 1e-9)

		again := append(Order(nil), got...)
		again, st2 := Refine(cyls, Point{}, again, w, prof, r, RefineOptions{})
		assert.Equal(t, got, again)
		assert.Equal(t, 0, st2.Improvements)
		assert.Equal(t, 1, st2.Passes)
	}
}
