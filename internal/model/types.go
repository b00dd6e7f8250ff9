package model

import (
	"time"

	"cylroute/internal/opt"
)

// Wire and storage types for plans and tuning runs.

type CylinderIn struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Category int     `json:"category"`
}

type PlanRequest struct {
	Name      string       `json:"name,omitempty"`
	Cylinders []CylinderIn `json:"cylinders"`
	Origin    *opt.Point   `json:"origin,omitempty"`
	Weights   *opt.Weights `json:"weights,omitempty"`
	Policy    string       `json:"policy,omitempty"` // nearest | first
	MaxPasses int          `json:"maxPasses,omitempty"`
}

type Plan struct {
	ID        string       `json:"id"`
	Name      string       `json:"name,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
	Policy    string       `json:"policy"`
	Weights   opt.Weights  `json:"weights"`
	Origin    opt.Point    `json:"origin"`
	Cylinders []CylinderIn `json:"cylinders"`
	Order     []int        `json:"order"`
	Path      []opt.Point  `json:"path"`
	Commands  []string     `json:"commands"`
	Cost      float64      `json:"cost"`
	Score     float64      `json:"score"`
	Stats     opt.Stats    `json:"stats"`
}

// PlanSummary is the list view of a plan.
type PlanSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	Cylinders int       `json:"cylinders"`
	Cost      float64   `json:"cost"`
	Score     float64   `json:"score"`
}

func (p Plan) Summary() PlanSummary {
	return PlanSummary{ID: p.ID, Name: p.Name, CreatedAt: p.CreatedAt, Cylinders: len(p.Cylinders), Cost: p.Cost, Score: p.Score}
}

type TuneRequest struct {
	Maps      [][]CylinderIn `json:"maps"`
	Trials    int            `json:"trials,omitempty"`
	Workers   int            `json:"workers,omitempty"`
	Seed      int64          `json:"seed,omitempty"`
	Policy    string         `json:"policy,omitempty"`
	MaxPasses int            `json:"maxPasses,omitempty"`
}

type TuneTrial struct {
	Index    int         `json:"index"`
	Weights  opt.Weights `json:"weights"`
	AvgScore float64     `json:"avgScore"`
	Error    string      `json:"error,omitempty"`
}

const (
	TuneRunning   = "running"
	TuneCompleted = "completed"
	TuneCanceled  = "canceled"
)

type TuneRun struct {
	ID         string      `json:"id"`
	Status     string      `json:"status"`
	CreatedAt  time.Time   `json:"createdAt"`
	FinishedAt *time.Time  `json:"finishedAt,omitempty"`
	Seed       int64       `json:"seed"`
	Trials     int         `json:"trials"`
	Completed  int         `json:"completed"`
	Failed     int         `json:"failed"`
	Best       *TuneTrial  `json:"best,omitempty"`
	Results    []TuneTrial `json:"results,omitempty"`
}

// ReplayFrame is one message of the replay stream.
type ReplayFrame struct {
	Type string    `json:"type"` // step | complete
	Step *opt.Step `json:"step,omitempty"`
}
