// Package viz animates a plan in the terminal: cylinders, the path walked so
// far, the robot and a status line with the replayed budget.
package viz

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/gdamore/tcell/v2"

	"cylroute/internal/opt"
)

const robotGlyph = '@'

var (
	styleDefault   = tcell.StyleDefault
	stylePath      = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleRobot     = tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true)
	styleCollected = tcell.StyleDefault.Foreground(tcell.ColorDarkGray)
	styleStatus    = tcell.StyleDefault.Foreground(tcell.ColorWhite).Reverse(true)
	styleOver      = tcell.StyleDefault.Foreground(tcell.ColorYellow).Reverse(true)
)

var categoryStyles = map[opt.Category]tcell.Style{
	opt.Category1: tcell.StyleDefault.Foreground(tcell.ColorGreen),
	opt.Category2: tcell.StyleDefault.Foreground(tcell.ColorBlue),
	opt.Category3: tcell.StyleDefault.Foreground(tcell.ColorPurple),
}

// Projection maps world coordinates onto a grid of cells with y pointing up.
type Projection struct {
	minX, minY float64
	scaleX     float64
	scaleY     float64
	cols, rows int
}

// NewProjection fits every point into cols x rows cells.
func NewProjection(pts []opt.Point, cols, rows int) Projection {
	pr := Projection{cols: cols, rows: rows, scaleX: 1, scaleY: 1}
	if len(pts) == 0 || cols < 1 || rows < 1 {
		return pr
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range pts {
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}
	pr.minX, pr.minY = minX, minY
	if w := maxX - minX; w > 0 && cols > 1 {
		pr.scaleX = float64(cols-1) / w
	}
	if h := maxY - minY; h > 0 && rows > 1 {
		pr.scaleY = float64(rows-1) / h
	}
	return pr
}

// Cell returns the column and row of p, clamped to the grid.
func (pr Projection) Cell(p opt.Point) (int, int) {
	x := int(math.Round((p.X - pr.minX) * pr.scaleX))
	y := pr.rows - 1 - int(math.Round((p.Y-pr.minY)*pr.scaleY))
	return clamp(x, 0, pr.cols-1), clamp(y, 0, pr.rows-1)
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	return min(max(v, lo), hi)
}

// Animator draws one frame per path vertex.
type Animator struct {
	Screen tcell.Screen
	Cyls   []opt.Cylinder
	Path   opt.Path
	Steps  []opt.Step
	Delay  time.Duration
	// Hold keeps the last frame on screen until a key is pressed.
	Hold bool

	proj  Projection
	taken []bool
}

// NewAnimator replays path against prof so frames can show what is collected.
func NewAnimator(screen tcell.Screen, cyls []opt.Cylinder, path opt.Path, prof opt.Profile) *Animator {
	return &Animator{
		Screen: screen,
		Cyls:   cyls,
		Path:   path,
		Steps:  opt.Replay(cyls, path, prof),
		Delay:  300 * time.Millisecond,
	}
}

func (a *Animator) layout() {
	cols, rows := a.Screen.Size()
	pts := make([]opt.Point, 0, len(a.Cyls)+len(a.Path))
	for _, c := range a.Cyls {
		pts = append(pts, c.Pos)
	}
	pts = append(pts, a.Path...)
	// last row is the status line
	a.proj = NewProjection(pts, cols, max(rows-1, 1))
}

// Draw renders the state after reaching path vertex frame.
func (a *Animator) Draw(frame int) {
	if a.proj.cols == 0 {
		a.layout()
	}
	frame = clamp(frame, 0, len(a.Path)-1)
	a.taken = make([]bool, len(a.Cyls))
	for k := 0; k <= frame && k < len(a.Steps); k++ {
		for _, i := range a.Steps[k].Collected {
			a.taken[i] = true
		}
	}

	s := a.Screen
	s.Clear()
	for k := 1; k <= frame; k++ {
		a.line(a.Path[k-1], a.Path[k])
	}
	for i, c := range a.Cyls {
		x, y := a.proj.Cell(c.Pos)
		glyph, st := rune('0'+int(c.Cat)), categoryStyles[c.Cat]
		if a.taken[i] {
			glyph, st = '.', styleCollected
		}
		s.SetContent(x, y, glyph, nil, st)
	}
	if frame >= 0 && len(a.Path) > 0 {
		x, y := a.proj.Cell(a.Path[frame])
		s.SetContent(x, y, robotGlyph, nil, styleRobot)
	}
	a.status(frame)
	s.Show()
}

// line plots the segment between two world points with Bresenham's algorithm.
func (a *Animator) line(p, q opt.Point) {
	x0, y0 := a.proj.Cell(p)
	x1, y1 := a.proj.Cell(q)
	dx, dy := abs(x1-x0), -abs(y1-y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy
	for {
		a.Screen.SetContent(x0, y0, '*', nil, stylePath)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func (a *Animator) status(frame int) {
	cols, rows := a.Screen.Size()
	var text string
	st := styleStatus
	if frame < len(a.Steps) {
		s := a.Steps[frame]
		text = fmt.Sprintf(" step %d/%d  value %.0f  mass %.1f  dist %.1f  fuel %.1f  time %.1f ",
			frame+1, len(a.Steps), s.Value, s.Mass, s.Distance, s.Fuel, s.Time)
		if !s.InBudget {
			text += " OVER BUDGET "
			st = styleOver
		}
	}
	for x := 0; x < cols; x++ {
		r := ' '
		if x < len(text) {
			r = rune(text[x])
		}
		a.Screen.SetContent(x, rows-1, r, nil, st)
	}
}

// Run plays the animation. It returns when the last frame was shown (or a
// key was pressed, with Hold), on Esc, q or Ctrl-C, or when ctx ends.
func (a *Animator) Run(ctx context.Context) error {
	if len(a.Path) == 0 {
		return nil
	}
	events := make(chan tcell.Event, 16)
	go func() {
		for {
			ev := a.Screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	ticker := time.NewTicker(max(a.Delay, time.Millisecond))
	defer ticker.Stop()
	frame := 0
	a.Draw(frame)
	for {
		if frame == len(a.Path)-1 && !a.Hold {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-events:
			switch ev := ev.(type) {
			case *tcell.EventKey:
				if quitKey(ev) || frame == len(a.Path)-1 {
					return nil
				}
			case *tcell.EventResize:
				a.Screen.Sync()
				a.layout()
				a.Draw(frame)
			}
		case <-ticker.C:
			if frame < len(a.Path)-1 {
				frame++
				a.Draw(frame)
			}
		}
	}
}

func quitKey(ev *tcell.EventKey) bool {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return true
	case tcell.KeyRune:
		return ev.Rune() == 'q'
	}
	return false
}
