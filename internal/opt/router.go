package opt

import "math"

// BlockerPolicy decides which obstacle the router detours around when
// several of them block the same segment.
type BlockerPolicy int

const (
	// BlockerNearest picks the blocking cylinder whose foot on the segment is
	// closest to the segment's start.
	BlockerNearest BlockerPolicy = iota
	// BlockerFirst picks the lowest-index blocking cylinder. Older traces were
	// produced with this rule.
	BlockerFirst
)

// ParseBlockerPolicy accepts "nearest" (or empty) and "first".
func ParseBlockerPolicy(s string) (BlockerPolicy, bool) {
	switch s {
	case "", "nearest":
		return BlockerNearest, true
	case "first":
		return BlockerFirst, true
	}
	return BlockerNearest, false
}

func (p BlockerPolicy) String() string {
	if p == BlockerFirst {
		return "first"
	}
	return "nearest"
}

// Exclusion is a set of cylinder indices the router must not avoid, either
// because they are collected already or because they are the target.
// Extending it never mutates the receiver.
type Exclusion struct {
	set []bool
}

// NewExclusion builds a set sized for n cylinders.
func NewExclusion(n int, ids ...int) Exclusion {
	e := Exclusion{set: make([]bool, n)}
	for _, id := range ids {
		e.set[id] = true
	}
	return e
}

// With returns a copy of e that also holds ids.
func (e Exclusion) With(ids ...int) Exclusion {
	out := Exclusion{set: append([]bool(nil), e.set...)}
	for _, id := range ids {
		out.set[id] = true
	}
	return out
}

func (e Exclusion) Has(id int) bool {
	return id < len(e.set) && e.set[id]
}

// Router computes obstacle-avoiding polylines between two points.
// A Router is not safe for concurrent use; it counts its calls.
type Router struct {
	Cylinders []Cylinder
	Policy    BlockerPolicy

	calls int
}

// NewRouter returns a router over cyls.
func NewRouter(cyls []Cylinder, policy BlockerPolicy) *Router {
	return &Router{Cylinders: cyls, Policy: policy}
}

// Calls reports how many Route invocations (recursive ones included) were made.
func (r *Router) Calls() int { return r.calls }

// Route returns a polyline from begin to end. Each segment keeps
// TooCloseRadius away from every cylinder not in excluded, except the
// blockers it detours around: a blocker is excluded from its own sub-legs,
// so only its detour vertex is guaranteed AvoidDistance away. The result
// starts with begin and ends with end; when begin == end it is [begin].
func (r *Router) Route(begin, end Point, excluded Exclusion) Path {
	r.calls++
	bird := begin.Dist(end)
	if bird == 0 {
		return Path{begin}
	}
	mid := Point{X: (begin.X + end.X) / 2, Y: (begin.Y + end.Y) / 2}

	// line a*x + b*y + c = 0 through begin and end
	a := end.Y - begin.Y
	b := begin.X - end.X
	c := end.X*begin.Y - begin.X*end.Y
	den := a*a + b*b

	blocker := -1
	var foot Point
	var footDist float64
	bestAlong := math.Inf(1)
	for i, cyl := range r.Cylinders {
		if excluded.Has(i) {
			continue
		}
		// cheap bounding circle around the segment
		if mid.Dist(cyl.Pos) > bird/2+TooCloseRadius {
			continue
		}
		px, py := cyl.Pos.X, cyl.Pos.Y
		f := Point{
			X: (b*(b*px-a*py) - a*c) / den,
			Y: (a*(-b*px+a*py) - b*c) / den,
		}
		d := cyl.Pos.Dist(f)
		if d >= TooCloseRadius {
			continue
		}
		if r.Policy == BlockerFirst {
			blocker, foot, footDist = i, f, d
			break
		}
		along := ((f.X-begin.X)*(end.X-begin.X) + (f.Y-begin.Y)*(end.Y-begin.Y)) / bird
		if along < bestAlong {
			bestAlong = along
			blocker, foot, footDist = i, f, d
		}
	}
	if blocker < 0 {
		return Path{begin, end}
	}

	centre := r.Cylinders[blocker].Pos
	var detour Point
	if footDist < 1e-9 {
		// centre on the line: step out along the left-hand normal
		detour = Point{
			X: centre.X - (end.Y-begin.Y)/bird*AvoidDistance,
			Y: centre.Y + (end.X-begin.X)/bird*AvoidDistance,
		}
	} else {
		factor := AvoidDistance / footDist
		detour = Point{
			X: centre.X + factor*(foot.X-centre.X),
			Y: centre.Y + factor*(foot.Y-centre.Y),
		}
	}

	next := excluded.With(blocker)
	first := r.Route(begin, detour, next)
	second := r.Route(detour, end, next)
	return append(first, second[1:]...)
}

// Distance is the length of the routed polyline from begin to end.
func (r *Router) Distance(begin, end Point, excluded Exclusion) float64 {
	return r.Route(begin, end, excluded).Length()
}
