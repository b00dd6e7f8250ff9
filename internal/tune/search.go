// Package tune searches the cost weights that maximise the average score of
// the planner over a set of maps.
package tune

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"golang.org/x/sync/errgroup"

	"cylroute/internal/opt"
)

var ErrNoMaps = errors.New("tune: no maps to evaluate")

// PlanFunc plans one map. It exists so callers can wrap the planner.
type PlanFunc func(ctx context.Context, p opt.Planner, cyls []opt.Cylinder, origin opt.Point) (opt.Result, error)

// Options configure a search. Zero values fall back to sensible defaults.
type Options struct {
	Trials    int
	Workers   int
	Seed      int64
	Origin    opt.Point
	Profile   opt.Profile
	Policy    opt.BlockerPolicy
	MaxPasses int
	// Plan defaults to opt.Planner.Plan.
	Plan PlanFunc
	// OnTrial is called from the worker goroutines once a trial ends,
	// successfully or not. It must be safe for concurrent use.
	OnTrial func(Trial)
}

func (o *Options) defaults() {
	if o.Trials <= 0 {
		o.Trials = 100
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.Profile == (opt.Profile{}) {
		o.Profile = opt.DefaultProfile()
	}
	if o.Plan == nil {
		o.Plan = func(_ context.Context, p opt.Planner, cyls []opt.Cylinder, origin opt.Point) (opt.Result, error) {
			return p.Plan(cyls, origin)
		}
	}
}

// Trial is the outcome of one weight sample.
type Trial struct {
	Index    int           `json:"index"`
	Weights  opt.Weights   `json:"weights"`
	Scores   []float64     `json:"scores,omitempty"`
	AvgScore float64       `json:"avgScore"`
	Duration time.Duration `json:"durationNs"`
	Err      error         `json:"-"`
}

// OK reports whether every map of the trial was planned.
func (t Trial) OK() bool { return t.Err == nil }

// Result holds the trials that were scheduled, indexed by trial number.
type Result struct {
	Trials   []Trial
	Canceled bool
}

// Best returns the successful trial with the highest average score; ties
// keep the lowest index.
func (r Result) Best() (Trial, bool) {
	var best Trial
	found := false
	for _, t := range r.Trials {
		if !t.OK() {
			continue
		}
		if !found || t.AvgScore > best.AvgScore {
			best, found = t, true
		}
	}
	return best, found
}

// Failed counts trials that ended with an error.
func (r Result) Failed() int {
	n := 0
	for _, t := range r.Trials {
		if !t.OK() {
			n++
		}
	}
	return n
}

// DrawWeights samples time uniformly in [0,1), gives fuel the complement and
// samples the value exponent uniformly in [0,1).
func DrawWeights(rng *rand.Rand) opt.Weights {
	t := rng.Float64()
	return opt.Weights{Fuel: 1 - t, Time: t, Value: rng.Float64()}
}

// Search runs opts.Trials independent trials on at most opts.Workers
// goroutines. A trial that fails or panics is recorded and logged; it never
// stops its siblings. Cancelling ctx stops scheduling new trials.
func Search(ctx context.Context, maps [][]opt.Cylinder, opts Options) (Result, error) {
	if len(maps) == 0 {
		return Result{}, ErrNoMaps
	}
	opts.defaults()

	trials := make([]Trial, opts.Trials)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	scheduled := 0
	for i := 0; i < opts.Trials; i++ {
		if gctx.Err() != nil {
			break
		}
		scheduled++
		g.Go(func() error {
			t := runTrial(gctx, i, maps, opts)
			if t.Err != nil {
				log.Printf("tune: trial %d/%d failed: %v", i+1, opts.Trials, t.Err)
			}
			trials[i] = t
			if opts.OnTrial != nil {
				opts.OnTrial(t)
			}
			return nil
		})
	}
	_ = g.Wait()
	return Result{Trials: trials[:scheduled], Canceled: ctx.Err() != nil}, nil
}

func runTrial(ctx context.Context, i int, maps [][]opt.Cylinder, opts Options) (t Trial) {
	start := time.Now()
	rng := rand.New(rand.NewSource(opts.Seed + int64(i)))
	t = Trial{Index: i, Weights: DrawWeights(rng)}
	defer func() {
		if r := recover(); r != nil {
			t.Err = fmt.Errorf("trial %d panicked: %v", i, r)
			t.Scores, t.AvgScore = nil, 0
		}
		t.Duration = time.Since(start)
	}()

	p := opt.Planner{Profile: opts.Profile, Weights: t.Weights, Policy: opts.Policy, MaxPasses: opts.MaxPasses}
	total := 0.0
	for m, cyls := range maps {
		if err := ctx.Err(); err != nil {
			t.Err = err
			return t
		}
		res, err := opts.Plan(ctx, p, cyls, opts.Origin)
		if err != nil {
			t.Err = fmt.Errorf("map %d: %w", m, err)
			t.Scores = nil
			return t
		}
		t.Scores = append(t.Scores, res.Score)
		total += res.Score
	}
	t.AvgScore = total / float64(len(maps))
	return t
}
