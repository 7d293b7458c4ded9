package cutter

import (
	"math"
	"sort"
)

// Solution is a set of cells covering the opaque pixels of a frame
type Solution struct {
	m   *mask
	opt OptimizationType

	cells     []Cell
	coverage  []byte
	remaining int
	tiles     int
	score     float64
}

func newSolution(m *mask, opt OptimizationType, coverage []byte) *Solution {
	s := &Solution{
		m:        m,
		opt:      opt,
		coverage: coverage,
	}
	s.reset()
	return s
}

func (s *Solution) reset() {
	if len(s.coverage) != len(s.m.pix) {
		s.coverage = make([]byte, len(s.m.pix))
	}
	copy(s.coverage, s.m.pix)
	s.cells = s.cells[:0:0]
	s.remaining = s.m.count(s.m.bounds)
	s.tiles = 0
	s.score = -1
}

// add places c, keeping it only if it covers at least one opaque pixel not
// already covered
func (s *Solution) add(c Cell) bool {
	r := c.Rect().Intersect(s.m.bounds)
	n := 0
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			o := s.m.offset(x, y)
			if s.coverage[o] != 0 {
				s.coverage[o] = 0
				n++
			}
		}
	}

	if n == 0 {
		return false
	}

	c.covered = n
	s.remaining -= n
	s.tiles += c.Tiles()
	s.cells = append(s.cells, c)
	s.score = -1
	return true
}

func (s *Solution) rebuild(cells []Cell) bool {
	s.reset()
	for _, c := range cells {
		s.add(c)
	}
	return s.Complete()
}

// Complete returns true if every opaque pixel is covered
func (s *Solution) Complete() bool {
	return s.remaining <= 0
}

// Cells returns the cells of the solution
func (s *Solution) Cells() []Cell {
	return s.cells
}

// Tiles returns the total number of tiles used by the cells
func (s *Solution) Tiles() int {
	return s.tiles
}

// Score rates the solution, lower is better. Incomplete solutions score
// math.MaxFloat64.
func (s *Solution) Score() float64 {
	if !s.Complete() {
		return math.MaxFloat64
	}
	if s.score < 0 {
		total := 0.0
		for _, c := range s.cells {
			total += c.score(s.opt)
		}
		s.score = math.Round(total*100000) / 100000
	}
	return s.score
}

func (s *Solution) sort() {
	sort.Stable(bySizeAndCoverage(s.cells))
}

func (s *Solution) snapshot() []Cell {
	return append([]Cell(nil), s.cells...)
}

func (s *Solution) baseScore(cells []Cell) float64 {
	total := 0.0
	for _, c := range cells {
		total += c.baseScore(s.opt)
	}
	return total
}

// inside returns the cells lying entirely within c
func (s *Solution) inside(c Cell) []Cell {
	r := c.Rect()
	cells := make([]Cell, 0)
	for _, o := range s.cells {
		if o.Rect().In(r) {
			cells = append(cells, o)
		}
	}
	return cells
}

// mergeCell looks for a larger cell anchored at either corner of c that
// replaces the cells it contains at a lower cost
func (s *Solution) mergeCell(c Cell) {
	var (
		gain float64
		best *Cell
	)

	try := func(x, y, w, h int) {
		n := newCell(x, y, w, h)
		covered := s.baseScore(s.inside(n))
		if covered <= 0 {
			return
		}
		if g := covered - n.baseScore(s.opt); g > gain {
			gain = g
			best = &n
		}
	}

	const maxTiles = MaxCellSize / step

	for h, w := c.H/step, c.W/step; h < maxTiles; h, w = h+1, 1 {
		for ; w < maxTiles; w++ {
			try(c.X, c.Y, w*step, h*step)
		}
	}

	x, y := c.X+c.W, c.Y+c.H
	for h, w := c.H/step, c.W/step; h < maxTiles; h, w = h+1, 1 {
		for ; w < maxTiles; w++ {
			try(x-w*step, y-h*step, w*step, h*step)
		}
	}

	if best == nil {
		return
	}

	r := best.Rect()
	cells := s.cells[:0]
	for _, o := range s.cells {
		if !o.Rect().In(r) {
			cells = append(cells, o)
		}
	}
	s.cells = append(cells, *best)
	s.score = -1
}

func (s *Solution) optimizeMerge() {
	s.sort()
	for _, c := range s.snapshot() {
		s.mergeCell(c)
	}
}

func (s *Solution) optimizePosition() {
	s.sort()
	cells := s.snapshot()
	s.reset()
	for _, c := range cells {
		s.add(s.m.position(c))
	}
}

func (s *Solution) optimizeCellSize(c Cell) {
	cells := s.snapshot()
	for i, o := range cells {
		if o.Rect() == c.Rect() {
			cells = append(cells[:i], cells[i+1:]...)
			break
		}
	}
	s.rebuild(cells)

	if n, ok := s.m.shrink(c); ok {
		s.add(n)
	}
}

func (s *Solution) optimizeSize() {
	var score float64
	next := s.Score()
	conv := 1.0

	for {
		score = next

		s.sort()
		for i := len(s.cells) - 1; i >= 0; i-- {
			if i >= len(s.cells) {
				continue
			}
			s.optimizeCellSize(s.cells[i])
		}

		next = s.Score()

		// Damped accumulator so an oscillating score still terminates
		conv /= 2
		conv += score - next

		if next == score || math.Abs(conv) <= 0.0005 {
			break
		}
	}
}

func (s *Solution) fixPositions() {
	cells := s.snapshot()
	s.reset()
	for _, c := range cells {
		s.add(s.m.fix(c))
	}
}

func (s *Solution) optimize() {
	s.optimizeMerge()
	s.optimizePosition()
	s.optimizeSize()
}
