package opt

// Step is the robot state after reaching one vertex of a path.
type Step struct {
	Index     int     `json:"index"`
	Point     Point   `json:"point"`
	Collected []int   `json:"collected,omitempty"` // cylinders picked up at this vertex
	Mass      float64 `json:"mass"`
	Value     float64 `json:"value"`
	Distance  float64 `json:"distance"`
	Fuel      float64 `json:"fuel"`
	Time      float64 `json:"time"`
	// InBudget is false once fuel or time exceeded the profile's limits.
	InBudget bool `json:"inBudget"`
}

// Replay walks path and reports, vertex by vertex, what has been collected
// and what it cost. A cylinder is collected the first time a vertex lies
// within TooCloseRadius of its centre.
func Replay(cyls []Cylinder, path Path, prof Profile) []Step {
	steps := make([]Step, 0, len(path))
	taken := make([]bool, len(cyls))
	var st Step
	st.InBudget = true
	for k, p := range path {
		if k > 0 {
			d := path[k-1].Dist(p)
			st.Distance += d
			st.Fuel += prof.FuelCost(d, st.Mass)
			st.Time += prof.TimeCost(d, st.Mass)
		}
		st.Index = k
		st.Point = p
		st.Collected = nil
		if (prof.FuelCapacity > 0 && st.Fuel > prof.FuelCapacity) || (prof.TimeLimit > 0 && st.Time > prof.TimeLimit) {
			st.InBudget = false
		}
		if st.InBudget {
			for i, c := range cyls {
				if taken[i] || p.Dist(c.Pos) >= TooCloseRadius {
					continue
				}
				taken[i] = true
				st.Collected = append(st.Collected, i)
				st.Mass += c.Mass()
				st.Value += c.Value()
			}
		}
		steps = append(steps, st)
	}
	return steps
}

// Score is the value collected before the budget ran out.
func Score(steps []Step) float64 {
	if len(steps) == 0 {
		return 0
	}
	return steps[len(steps)-1].Value
}
