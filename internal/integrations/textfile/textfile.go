// Package textfile reads cylinder maps from whitespace separated text and
// writes motion scripts next to them.
package textfile

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"cylroute/internal/opt"
)

var ErrMalformedRow = errors.New("textfile: malformed row")

// Source is a map file with one "x y category" row per cylinder. Blank lines
// and lines starting with # are ignored.
type Source struct {
	Path string
}

func (s Source) Name() string { return filepath.Base(s.Path) }

func (s Source) Load(ctx context.Context) ([]opt.Cylinder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	cyls, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.Path, err)
	}
	return cyls, nil
}

// Parse reads map rows from r.
func Parse(r io.Reader) ([]opt.Cylinder, error) {
	var out []opt.Cylinder
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) != 3 {
			return nil, fmt.Errorf("line %d: %w: want 3 fields, got %d", line, ErrMalformedRow, len(fields))
		}
		var v [3]float64
		for i, f := range fields {
			x, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w: %q", line, ErrMalformedRow, f)
			}
			v[i] = x
		}
		// numpy writes categories as floats
		if v[2] != math.Trunc(v[2]) {
			return nil, fmt.Errorf("line %d: %w: category %v", line, opt.ErrUnknownCategory, v[2])
		}
		c, err := opt.NewCylinder(v[0], v[1], int(v[2]))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, c)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Sink appends scripts to files under Dir, creating it when needed.
type Sink struct {
	Dir string
}

func (s Sink) Write(ctx context.Context, name string, cmds []opt.Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Join(s.Dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(f, strings.Join(opt.CommandLines(cmds), "\n")+"\n"); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
