package opt

import (
	"fmt"
	"math"
)

// Profile describes the robot: how fuel and speed depend on carried mass,
// the budgets it runs under and the heading it starts with.
type Profile struct {
	V0                float64 `yaml:"v0" json:"v0"`                               // speed with no load, m/s
	Alpha             float64 `yaml:"alpha" json:"alpha"`                         // speed decay per kg
	B                 float64 `yaml:"b" json:"b"`                                 // fuel per metre per kg
	B0                float64 `yaml:"b0" json:"b0"`                               // fuel per metre, unloaded
	FuelCapacity      float64 `yaml:"fuelCapacity" json:"fuelCapacity"`           // 0 means unlimited
	TimeLimit         float64 `yaml:"timeLimit" json:"timeLimit"`                 // seconds, 0 means unlimited
	InitialHeadingDeg float64 `yaml:"initialHeadingDeg" json:"initialHeadingDeg"` // degrees, counter-clockwise from +x
}

// DefaultProfile is the reference robot used when no configuration is given.
func DefaultProfile() Profile {
	return Profile{
		V0:           1.0,
		Alpha:        0.0698,
		B:            0.3,
		B0:           0.3,
		FuelCapacity: 10000,
		TimeLimit:    600,
	}
}

// field is a named parameter; slices of them keep validation order stable.
type field struct {
	name string
	v    float64
}

// Validate rejects profiles that would make the cost model undefined.
func (p Profile) Validate() error {
	for _, f := range []field{
		{"v0", p.V0}, {"alpha", p.Alpha}, {"b", p.B}, {"b0", p.B0},
		{"fuelCapacity", p.FuelCapacity}, {"timeLimit", p.TimeLimit}, {"initialHeadingDeg", p.InitialHeadingDeg},
	} {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return fmt.Errorf("%w: %s is not finite", ErrInvalidProfile, f.name)
		}
	}
	if p.V0 <= 0 {
		return fmt.Errorf("%w: v0 must be > 0", ErrInvalidProfile)
	}
	if p.B < 0 || p.B0 < 0 || p.FuelCapacity < 0 || p.TimeLimit < 0 {
		return fmt.Errorf("%w: b, b0 and budgets must be >= 0", ErrInvalidProfile)
	}
	return nil
}

// FuelCost is the fuel burnt travelling distance d while carrying mass m.
func (p Profile) FuelCost(d, m float64) float64 {
	return (p.B*m + p.B0) * d
}

// Speed decays exponentially with the carried mass.
func (p Profile) Speed(m float64) float64 {
	return p.V0 * math.Exp(-p.Alpha*m)
}

// TimeCost is the time needed to travel distance d while carrying mass m.
func (p Profile) TimeCost(d, m float64) float64 {
	return d / p.Speed(m)
}

// Weights balance the terms of the cost model. They are passed by value
// through every call; nothing in the engine keeps them.
type Weights struct {
	Fuel  float64 `yaml:"fuel" json:"fuel"`
	Time  float64 `yaml:"time" json:"time"`
	Value float64 `yaml:"value" json:"value"`
}

// DefaultWeights weighs fuel and time equally and ignores value.
func DefaultWeights() Weights {
	return Weights{Fuel: 0.5, Time: 0.5, Value: 0}
}

func (w Weights) Validate() error {
	for _, f := range []field{{"fuel", w.Fuel}, {"time", w.Time}, {"value", w.Value}} {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) || f.v < 0 {
			return fmt.Errorf("%w: %s=%v", ErrInvalidWeights, f.name, f.v)
		}
	}
	return nil
}

// TravelCost combines fuel and time for a move of distance d with mass m on board.
func (p Profile) TravelCost(d, m float64, w Weights) float64 {
	return w.Fuel*p.FuelCost(d, m) + w.Time*p.TimeCost(d, m)
}
