package opt

// improvementEps is the minimum cost drop for a move to count as an improvement.
const improvementEps = 1e-6

// RefineOptions bounds the 2-opt search. MaxPasses <= 0 means run to a local optimum.
type RefineOptions struct {
	MaxPasses int
}

// RefineStats summarises a Refine run.
type RefineStats struct {
	Passes       int     `json:"passes"`
	Improvements int     `json:"improvements"`
	InitialCost  float64 `json:"initialCost"`
	FinalCost    float64 `json:"finalCost"`
}

// OrderCost is the total routed travel cost of visiting order from origin,
// carrying the mass collected so far on every leg.
func OrderCost(cyls []Cylinder, origin Point, order Order, w Weights, prof Profile, r *Router) float64 {
	total := 0.0
	cur := origin
	mass := 0.0
	visited := NewExclusion(len(cyls))
	for _, idx := range order {
		d := r.Distance(cur, cyls[idx].Pos, visited.With(idx))
		total += prof.TravelCost(d, mass, w)
		visited = visited.With(idx)
		mass += cyls[idx].Mass()
		cur = cyls[idx].Pos
	}
	return total
}

// Refine improves order in place with 2-opt over routed cost and returns it.
// Edges (o[i]→o[i+1]) and (o[j]→o[j+1]) are swapped for (o[i]→o[j]) and
// (o[i+1]→o[j+1]) by reversing o[i+1..j]. A swap is kept only when the total
// order cost drops, so every pass is monotone and the search terminates.
func Refine(cyls []Cylinder, origin Point, order Order, w Weights, prof Profile, r *Router, opts RefineOptions) (Order, RefineStats) {
	n := len(order)
	cur := OrderCost(cyls, origin, order, w, prof, r)
	st := RefineStats{InitialCost: cur, FinalCost: cur}
	if n < 4 {
		return order, st
	}
	edge := func(from, to int, mass float64, visited Exclusion) float64 {
		d := r.Distance(cyls[from].Pos, cyls[to].Pos, visited.With(to))
		return prof.TravelCost(d, mass, w)
	}
	cand := make(Order, n)
	for {
		masses, visited := prefixState(cyls, order)
		improved := false
		for i := 0; i <= n-4; i++ {
			for j := i + 2; j <= n-2; j++ {
				a, b, c, d := order[i], order[i+1], order[j], order[j+1]
				before := edge(a, b, masses[i], visited[i]) + edge(c, d, masses[j], visited[j])
				after := edge(a, c, masses[i], visited[i]) + edge(b, d, masses[j], visited[j])
				if after+improvementEps >= before {
					continue
				}
				copy(cand, order)
				reverse(cand[i+1 : j+1])
				cc := OrderCost(cyls, origin, cand, w, prof, r)
				if cc+improvementEps >= cur {
					continue
				}
				copy(order, cand)
				cur = cc
				st.Improvements++
				improved = true
				masses, visited = prefixState(cyls, order)
			}
		}
		st.Passes++
		if !improved || (opts.MaxPasses > 0 && st.Passes >= opts.MaxPasses) {
			break
		}
	}
	st.FinalCost = cur
	return order, st
}

// prefixState returns, for every position k, the mass on board after
// collecting order[0..k] and the set of those cylinders.
func prefixState(cyls []Cylinder, order Order) ([]float64, []Exclusion) {
	masses := make([]float64, len(order))
	visited := make([]Exclusion, len(order))
	ex := NewExclusion(len(cyls))
	mass := 0.0
	for k, idx := range order {
		ex = ex.With(idx)
		mass += cyls[idx].Mass()
		masses[k] = mass
		visited[k] = ex
	}
	return masses, visited
}

func reverse(s Order) {
	for a, b := 0, len(s)-1; a < b; a, b = a+1, b-1 {
		s[a], s[b] = s[b], s[a]
	}
}
