package opt

import (
	"fmt"
	"time"
)

// Planner runs the whole pipeline: sequence, 2-opt, path, commands.
// It holds configuration only and can be shared between goroutines.
type Planner struct {
	Profile   Profile
	Weights   Weights
	Policy    BlockerPolicy
	MaxPasses int
}

// NewPlanner returns a planner with the default profile and weights.
func NewPlanner() Planner {
	return Planner{Profile: DefaultProfile(), Weights: DefaultWeights()}
}

// Stats are the counters of one Plan call.
type Stats struct {
	RouteCalls   int           `json:"routeCalls"`
	RefinePasses int           `json:"refinePasses"`
	Improvements int           `json:"improvements"`
	SeedCost     float64       `json:"seedCost"`
	SequenceDur  time.Duration `json:"sequenceNs"`
	RefineDur    time.Duration `json:"refineNs"`
	TotalDur     time.Duration `json:"totalNs"`
}

// Result is a complete plan.
type Result struct {
	Order    Order     `json:"order"`
	Path     Path      `json:"path"`
	Commands []Command `json:"-"`
	Cost     float64   `json:"cost"`
	Score    float64   `json:"score"`
	Steps    []Step    `json:"steps,omitempty"`
	Stats    Stats     `json:"stats"`
}

// Plan validates its input and computes an order, the avoiding path and the
// motion commands for it. An empty cylinder set yields an empty order, the
// single-point path [origin] and just FINISH.
func (p Planner) Plan(cyls []Cylinder, origin Point) (Result, error) {
	start := time.Now()
	if err := ValidateCylinders(cyls); err != nil {
		return Result{}, err
	}
	if !origin.finite() {
		return Result{}, fmt.Errorf("origin: %w", ErrNonFinite)
	}
	if err := p.Weights.Validate(); err != nil {
		return Result{}, err
	}
	if err := p.Profile.Validate(); err != nil {
		return Result{}, err
	}

	r := NewRouter(cyls, p.Policy)
	order := Sequence(cyls, origin, p.Weights, p.Profile, r)
	seqDone := time.Now()
	order, rs := Refine(cyls, origin, order, p.Weights, p.Profile, r, RefineOptions{MaxPasses: p.MaxPasses})
	refDone := time.Now()
	if err := ValidateOrder(order, len(cyls)); err != nil {
		return Result{}, err
	}
	path := BuildPath(cyls, order, origin, r)
	steps := Replay(cyls, path, p.Profile)
	return Result{
		Order:    order,
		Path:     path,
		Commands: BuildCommands(path, p.Profile.InitialHeadingDeg),
		Cost:     rs.FinalCost,
		Score:    Score(steps),
		Steps:    steps,
		Stats: Stats{
			RouteCalls:   r.Calls(),
			RefinePasses: rs.Passes,
			Improvements: rs.Improvements,
			SeedCost:     rs.InitialCost,
			SequenceDur:  seqDone.Sub(start),
			RefineDur:    refDone.Sub(seqDone),
			TotalDur:     time.Since(start),
		},
	}, nil
}
