package opt

import "math"

// Sequence builds a visiting order greedily: from the current position it
// always heads for the cylinder with the lowest routed travel cost, discounted
// by value^w.Value. Ties keep the lowest index.
func Sequence(cyls []Cylinder, origin Point, w Weights, prof Profile, r *Router) Order {
	n := len(cyls)
	order := make(Order, 0, n)
	used := make([]bool, n)
	placed := NewExclusion(n)
	cur := origin
	mass := 0.0
	for len(order) < n {
		bestIdx, bestCost := -1, math.MaxFloat64
		for i := 0; i < n; i++ {
			if used[i] {
				continue
			}
			d := r.Distance(cur, cyls[i].Pos, placed.With(i))
			c := math.Max(prof.TravelCost(d, mass, w), 0) / math.Pow(cyls[i].Value(), w.Value)
			if bestIdx < 0 || c < bestCost {
				bestCost = c
				bestIdx = i
			}
		}
		order = append(order, bestIdx)
		used[bestIdx] = true
		placed = placed.With(bestIdx)
		mass += cyls[bestIdx].Mass()
		cur = cyls[bestIdx].Pos
	}
	return order
}
