package opt

import (
	"errors"
	"fmt"
	"math"
)

// Geometry of a cylinder, in metres.
const (
	CylinderRadius = 0.5
	TouchingRadius = 1.6
	// TooCloseRadius is the clearance a straight segment must keep from any
	// cylinder that is not excluded from avoidance.
	TooCloseRadius = TouchingRadius + 0.05
	// AvoidDistance is how far from a blocking cylinder's centre a detour point is placed.
	AvoidDistance = TouchingRadius + 0.15
)

var (
	ErrUnknownCategory = errors.New("opt: unknown cylinder category")
	ErrNonFinite       = errors.New("opt: non-finite coordinate")
	ErrInvalidWeights  = errors.New("opt: invalid cost weights")
	ErrInvalidOrder    = errors.New("opt: order is not a permutation")
	ErrInvalidProfile  = errors.New("opt: invalid robot profile")
)

// Point is a position on the plane.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

func (p Point) finite() bool {
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y) && !math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0)
}

// Dist returns the euclidean distance between p and q.
func (p Point) Dist(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Category is the kind of a cylinder; it fixes its mass and value.
type Category int

const (
	Category1 Category = 1
	Category2 Category = 2
	Category3 Category = 3
)

type categoryInfo struct{ mass, value float64 }

var categories = map[Category]categoryInfo{
	Category1: {mass: 1.0, value: 1.0},
	Category2: {mass: 2.0, value: 2.0},
	Category3: {mass: 2.0, value: 3.0},
}

// ParseCategory maps the numeric category found in map files.
func ParseCategory(v int) (Category, error) {
	c := Category(v)
	if _, ok := categories[c]; !ok {
		return 0, fmt.Errorf("%w: %d", ErrUnknownCategory, v)
	}
	return c, nil
}

// Mass of a cylinder of this category, in kg.
func (c Category) Mass() float64 { return categories[c].mass }

// Value of a cylinder of this category.
func (c Category) Value() float64 { return categories[c].value }

// Cylinder is an obstacle that can also be collected. Its index in the slice
// handed to the engine is its identity.
type Cylinder struct {
	Pos Point
	Cat Category
}

// NewCylinder validates the raw fields of a cylinder.
func NewCylinder(x, y float64, cat int) (Cylinder, error) {
	p := Point{X: x, Y: y}
	if !p.finite() {
		return Cylinder{}, fmt.Errorf("%w: (%v, %v)", ErrNonFinite, x, y)
	}
	c, err := ParseCategory(cat)
	if err != nil {
		return Cylinder{}, err
	}
	return Cylinder{Pos: p, Cat: c}, nil
}

func (c Cylinder) Mass() float64  { return c.Cat.Mass() }
func (c Cylinder) Value() float64 { return c.Cat.Value() }

// ValidateCylinders checks cylinders that were built without NewCylinder.
func ValidateCylinders(cyls []Cylinder) error {
	for i, c := range cyls {
		if !c.Pos.finite() {
			return fmt.Errorf("cylinder %d: %w", i, ErrNonFinite)
		}
		if _, ok := categories[c.Cat]; !ok {
			return fmt.Errorf("cylinder %d: %w: %d", i, ErrUnknownCategory, int(c.Cat))
		}
	}
	return nil
}

// Order is a visiting sequence: a permutation of cylinder indices.
type Order []int

// ValidateOrder reports whether order is exactly a permutation of 0..n-1.
func ValidateOrder(order Order, n int) error {
	if len(order) != n {
		return fmt.Errorf("%w: length %d, want %d", ErrInvalidOrder, len(order), n)
	}
	seen := make([]bool, n)
	for pos, idx := range order {
		if idx < 0 || idx >= n {
			return fmt.Errorf("%w: index %d out of range at position %d", ErrInvalidOrder, idx, pos)
		}
		if seen[idx] {
			return fmt.Errorf("%w: index %d repeated at position %d", ErrInvalidOrder, idx, pos)
		}
		seen[idx] = true
	}
	return nil
}

// Path is a polyline; every consecutive pair is a straight traversable segment.
type Path []Point

// Length sums the segment lengths of the path.
func (p Path) Length() float64 {
	total := 0.0
	for i := 1; i < len(p); i++ {
		total += p[i-1].Dist(p[i])
	}
	return total
}
