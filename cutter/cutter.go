/*
Package cutter splits a sprite frame into hardware sprites.

The VDP draws sprites of 1 to 4 tiles in each direction and only 16 of them
may make up one frame, so the opaque pixels of a frame have to be covered by
as few, and as small, rectangles as possible. A fast deterministic pass lays
grids of each cell size over the frame and refines the best of them; an
optional genetic search then mutates and recombines those solutions
concurrently until an iteration budget runs out.
*/
package cutter

import (
	"context"
	"runtime"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
)

// Cutter holds a frame mask and the settings for the slow search
type Cutter struct {
	m      *mask
	logger logrus.FieldLogger

	// Workers is the number of goroutines used by Slow
	Workers int
	// Seed makes the slow search repeatable
	Seed int64
}

// New returns a Cutter for an 8 bits per pixel frame of w by h pixels. A
// pixel is transparent when its color index within the palette is 0.
func New(pix []byte, w, h int, logger logrus.FieldLogger) *Cutter {
	m := make([]byte, w*h)
	for i := range m {
		if pix[i]&0x0f != 0 {
			m[i] = 1
		}
	}

	return &Cutter{
		m:       newMask(m, w, h),
		logger:  logger,
		Workers: runtime.NumCPU(),
		Seed:    time.Now().UnixNano(),
	}
}

func (c *Cutter) empty(opt OptimizationType) *Solution {
	return newSolution(c.m, opt, nil)
}

// whole covers the frame with 32 by 32 cells, the last row and column being
// cut down to fit
func (c *Cutter) whole() *Solution {
	wt, ht := c.m.bounds.Dx()/step, c.m.bounds.Dy()/step
	cw, ch := (wt+3)/4, (ht+3)/4

	lw, lh := wt&3, ht&3
	if lw == 0 {
		lw = 4
	}
	if lh == 0 {
		lh = 4
	}

	s := c.empty(NoOptimization)
	for i := 0; i < cw; i++ {
		for j := 0; j < ch; j++ {
			w, h := MaxCellSize, MaxCellSize
			if i == cw-1 {
				w = lw * step
			}
			if j == ch-1 {
				h = lh * step
			}
			s.add(newCell(i*MaxCellSize, j*MaxCellSize, w, h))
		}
	}
	return s
}

func (c *Cutter) solutions(opt OptimizationType) []*Solution {
	if opt == NoOptimization {
		if s := c.whole(); len(s.cells) > 0 {
			return []*Solution{s}
		}
		return nil
	}

	solutions := make([]*Solution, 0, MaxCellSize/step)
	for size := step; size <= MaxCellSize; size += step {
		g := c.m.bestGrid(size)
		if size == step {
			g.merge()
		}

		s := c.empty(opt)
		for _, cell := range g.list() {
			s.add(cell)
		}
		s.optimize()
		s.fixPositions()

		if len(s.cells) > 0 {
			solutions = append(solutions, s)
		}
	}
	return solutions
}

// Fast returns the best solution of the deterministic pass. The lowest
// scoring solution with at most MaxCells cells wins; failing that the one
// with the fewest cells is returned. A fully transparent frame gives a
// solution with no cells.
func (c *Cutter) Fast(opt OptimizationType) *Solution {
	solutions := c.solutions(opt)
	if len(solutions) == 0 {
		return c.empty(opt)
	}

	sort.SliceStable(solutions, func(i, j int) bool {
		return solutions[i].Score() < solutions[j].Score()
	})

	var best *Solution
	for _, s := range solutions {
		if len(s.cells) <= MaxCells {
			return s
		}
		if best == nil || len(s.cells) < len(best.cells) {
			best = s
		}
	}
	return best
}

// Slow seeds the genetic search with every deterministic solution and runs
// it for iterations tasks, or until ctx is cancelled. With iterations below 1
// only ctx stops the search.
func (c *Cutter) Slow(ctx context.Context, opt OptimizationType, iterations int64) *Solution {
	seeds := c.solutions(opt)
	if len(seeds) == 0 {
		return c.empty(opt)
	}

	workers := c.Workers
	if workers < 1 {
		workers = 1
	}

	start := time.Now()
	o := newOptimizer(c.m, opt, workers, c.Seed, seeds)
	cells := o.run(ctx, iterations)

	elapsed := time.Since(start)
	c.logger.WithFields(logrus.Fields{
		"iterations": o.iterations(),
		"elapsed":    elapsed,
	}).Debug("Sprite cutter search finished")

	s := c.empty(opt)
	s.rebuild(cells)
	s.fixPositions()
	return s
}
