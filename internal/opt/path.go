package opt

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// BuildPath expands order into a full polyline starting at origin. Cylinders
// already visited never block later legs; the target of each leg is excluded
// too so the robot can reach it.
func BuildPath(cyls []Cylinder, order Order, origin Point, r *Router) Path {
	path := Path{origin}
	cur := origin
	visited := NewExclusion(len(cyls))
	for _, idx := range order {
		visited = visited.With(idx)
		leg := r.Route(cur, cyls[idx].Pos, visited)
		path = append(path, leg[1:]...)
		cur = cyls[idx].Pos
	}
	return path
}

// CommandKind enumerates the motion commands understood by the robot.
type CommandKind int

const (
	Turn CommandKind = iota
	Go
	Finish
)

// turnEps is the smallest heading change, in degrees, worth a TURN.
const turnEps = 1e-6

// Command is one discrete motion instruction. Value is degrees for Turn
// (counter-clockwise positive) and metres for Go.
type Command struct {
	Kind  CommandKind
	Value float64
}

func (c Command) String() string {
	switch c.Kind {
	case Turn:
		return "TURN " + strconv.FormatFloat(c.Value, 'f', -1, 64)
	case Go:
		return "GO " + strconv.FormatFloat(c.Value, 'f', -1, 64)
	default:
		return "FINISH"
	}
}

// ParseCommand reads back the textual form produced by Command.String.
func ParseCommand(s string) (Command, error) {
	fields := strings.Fields(s)
	if len(fields) == 1 && fields[0] == "FINISH" {
		return Command{Kind: Finish}, nil
	}
	if len(fields) != 2 {
		return Command{}, fmt.Errorf("opt: malformed command %q", s)
	}
	v, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return Command{}, fmt.Errorf("opt: malformed command %q: %w", s, err)
	}
	switch fields[0] {
	case "TURN":
		return Command{Kind: Turn, Value: v}, nil
	case "GO":
		if v < 0 {
			return Command{}, fmt.Errorf("opt: negative distance in %q", s)
		}
		return Command{Kind: Go, Value: v}, nil
	}
	return Command{}, fmt.Errorf("opt: unknown command %q", s)
}

// BuildCommands compiles path into TURN/GO commands for a robot starting at
// path[0] facing headingDeg, terminated by a single FINISH.
func BuildCommands(path Path, headingDeg float64) []Command {
	cmds := make([]Command, 0, 2*len(path)+1)
	heading := headingDeg
	for i := 1; i < len(path); i++ {
		dx := path[i].X - path[i-1].X
		dy := path[i].Y - path[i-1].Y
		target := math.Atan2(dy, dx) * 180 / math.Pi
		turn := normalizeTurn(target - heading)
		if math.Abs(turn) > turnEps {
			cmds = append(cmds, Command{Kind: Turn, Value: turn})
		}
		cmds = append(cmds, Command{Kind: Go, Value: math.Hypot(dx, dy)})
		heading = target
	}
	return append(cmds, Command{Kind: Finish})
}

// normalizeTurn maps an angle in degrees to (-180, 180].
func normalizeTurn(deg float64) float64 {
	t := math.Mod(deg+180, 360)
	if t < 0 {
		t += 360
	}
	t -= 180
	if t == -180 {
		t = 180
	}
	return t
}

// ReplayCommands executes cmds from start facing headingDeg and returns the
// visited points. It stops at FINISH.
func ReplayCommands(cmds []Command, start Point, headingDeg float64) Path {
	path := Path{start}
	cur := start
	heading := headingDeg
	for _, c := range cmds {
		switch c.Kind {
		case Turn:
			heading += c.Value
		case Go:
			rad := heading * math.Pi / 180
			cur = Point{X: cur.X + c.Value*math.Cos(rad), Y: cur.Y + c.Value*math.Sin(rad)}
			path = append(path, cur)
		case Finish:
			return path
		}
	}
	return path
}

// CommandLines renders cmds one per element.
func CommandLines(cmds []Command) []string {
	out := make([]string, len(cmds))
	for i, c := range cmds {
		out[i] = c.String()
	}
	return out
}
