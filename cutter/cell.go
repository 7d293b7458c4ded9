package cutter

import (
	"fmt"
	"image"
	"math/rand"
	"strings"
)

const (
	// MaxCells is the number of hardware sprites a frame can use
	MaxCells = 16
	// MaxCellSize is the largest width or height of a cell in pixels
	MaxCellSize = 32

	step = 8
)

// OptimizationType selects what the cutter tries to minimize
type OptimizationType int

// Optimization types
const (
	Balanced OptimizationType = iota
	MinSprite
	MinTile
	NoOptimization
)

var optimizationTypes = map[string]OptimizationType{
	"":         Balanced,
	"BALANCED": Balanced,
	"SPRITE":   MinSprite,
	"TILE":     MinTile,
	"NONE":     NoOptimization,
}

// ParseOptimizationType parses BALANCED, SPRITE, TILE or NONE
func ParseOptimizationType(s string) (OptimizationType, error) {
	if t, ok := optimizationTypes[strings.ToUpper(s)]; ok {
		return t, nil
	}
	return Balanced, fmt.Errorf("cutter: unrecognized optimization type '%s'", s)
}

func (t OptimizationType) String() string {
	switch t {
	case MinSprite:
		return "SPRITE"
	case MinTile:
		return "TILE"
	case NoOptimization:
		return "NONE"
	default:
		return "BALANCED"
	}
}

// Level selects how much effort is spent cutting a frame
type Level int

// Optimization levels
const (
	Fast Level = iota
	Medium
	Slow
	Max
)

var levels = map[string]Level{
	"":       Fast,
	"FAST":   Fast,
	"MEDIUM": Medium,
	"SLOW":   Slow,
	"MAX":    Max,
}

// ParseLevel parses FAST, MEDIUM, SLOW or MAX
func ParseLevel(s string) (Level, error) {
	if l, ok := levels[strings.ToUpper(s)]; ok {
		return l, nil
	}
	return Fast, fmt.Errorf("cutter: unrecognized optimization level '%s'", s)
}

func (l Level) String() string {
	switch l {
	case Medium:
		return "MEDIUM"
	case Slow:
		return "SLOW"
	case Max:
		return "MAX"
	default:
		return "FAST"
	}
}

// Cell is a hardware sprite placed over the frame. Position and size are in
// pixels; the size is always a multiple of 8 up to 32.
type Cell struct {
	X, Y, W, H int

	// covered is the number of opaque pixels this cell was first to cover
	// in its solution, -1 if unknown
	covered int
}

func newCell(x, y, w, h int) Cell {
	return Cell{X: x, Y: y, W: w, H: h, covered: -1}
}

func cellFromRect(r image.Rectangle) Cell {
	return newCell(r.Min.X, r.Min.Y, r.Dx(), r.Dy())
}

// Rect returns the area covered by the cell
func (c Cell) Rect() image.Rectangle {
	return image.Rect(c.X, c.Y, c.X+c.W, c.Y+c.H)
}

// Tiles returns the number of tiles in the cell
func (c Cell) Tiles() int {
	return c.W * c.H / (step * step)
}

func (c Cell) String() string {
	return fmt.Sprintf("[%d,%d-%d,%d]", c.X, c.Y, c.W, c.H)
}

func (c Cell) singleTile() bool {
	return c.W == step && c.H == step
}

func (c Cell) coverage() float64 {
	if c.covered < 0 {
		return 0
	}
	return float64(c.covered) / float64(c.Tiles()*step*step)
}

func (c Cell) baseScore(t OptimizationType) float64 {
	n := float64(c.Tiles())
	w := float64(c.W) / 32
	switch t {
	case MinSprite:
		return 12 + n + w
	case MinTile:
		return 6 + n*4 + w
	default:
		return 8 + n*2.5 + w
	}
}

func (c Cell) score(t OptimizationType) float64 {
	return c.baseScore(t) + (1-c.coverage())/10
}

func (c Cell) mutate(r *rand.Rand) []Cell {
	switch r.Int() & 7 {
	case 1:
		return []Cell{c.move(r, 4)}
	case 2:
		return []Cell{c.resize(r, false)}
	case 3:
		return []Cell{c.resize(r, true)}
	case 4:
		return []Cell{c.move(r, 1).resize(r, false)}
	case 5:
		return []Cell{c.move(r, 4).resize(r, true)}
	case 6:
		return c.split(r)
	case 7:
		return c.move(r, 1).split(r)
	default:
		return []Cell{c.move(r, 1)}
	}
}

func (c Cell) move(r *rand.Rand, n int) Cell {
	switch r.Int() & 3 {
	case 1:
		c.X -= n
	case 2:
		c.Y += n
	case 3:
		c.Y -= n
	default:
		c.X += n
	}
	c.covered = -1
	return c
}

func (c Cell) resize(r *rand.Rand, multi bool) Cell {
	n := 1
	if multi {
		n += r.Int() & 3
	}

	for n > 0 {
		switch r.Int() & 3 {
		case 1:
			if c.W > step {
				c.W -= step
				n--
			}
		case 2:
			if c.H < MaxCellSize {
				c.H += step
				n--
			}
		case 3:
			if c.H > step {
				c.H -= step
				n--
			}
		default:
			if c.W < MaxCellSize {
				c.W += step
				n--
			}
		}
	}
	c.covered = -1
	return c
}

func (c Cell) split(r *rand.Rand) []Cell {
	sw := r.Intn(c.W/step) * step
	sh := r.Intn(c.H/step) * step

	cells := make([]Cell, 0, 4)
	for _, rect := range []image.Rectangle{
		image.Rect(c.X, c.Y, c.X+sw, c.Y+sh),
		image.Rect(c.X+sw, c.Y, c.X+c.W, c.Y+sh),
		image.Rect(c.X, c.Y+sh, c.X+sw, c.Y+c.H),
		image.Rect(c.X+sw, c.Y+sh, c.X+c.W, c.Y+c.H),
	} {
		if !rect.Empty() {
			cells = append(cells, cellFromRect(rect))
		}
	}
	return cells
}

// bySizeAndCoverage orders the largest and best covered cells first
type bySizeAndCoverage []Cell

func (s bySizeAndCoverage) Len() int {
	return len(s)
}

func (s bySizeAndCoverage) Less(i, j int) bool {
	if s[i].Tiles() != s[j].Tiles() {
		return s[i].Tiles() > s[j].Tiles()
	}
	return s[i].coverage() > s[j].coverage()
}

func (s bySizeAndCoverage) Swap(i, j int) {
	s[i], s[j] = s[j], s[i]
}
