package cutter

import "math"

// grid lays uniform cells over a frame
type grid struct {
	x, y  int
	cells [][]*Cell
}

func newGrid(x, y, w, h int) *grid {
	g := &grid{
		x:     x,
		y:     y,
		cells: make([][]*Cell, h),
	}
	for j := range g.cells {
		g.cells[j] = make([]*Cell, w)
	}
	return g
}

func (g *grid) used(i, j int, merged bool) bool {
	if i < 0 || j < 0 || j >= len(g.cells) || i >= len(g.cells[j]) {
		return false
	}
	c := g.cells[j][i]
	return c != nil && (merged || c.singleTile())
}

func (g *grid) count() int {
	n := 0
	for _, row := range g.cells {
		for _, c := range row {
			if c != nil {
				n++
			}
		}
	}
	return n
}

// merge fuses runs of single tile cells into cells of up to 4 by 4 tiles
func (g *grid) merge() {
	for j, row := range g.cells {
		for i, c := range row {
			if c != nil && c.singleTile() {
				g.mergeAt(i, j)
			}
		}
	}
}

func (g *grid) mergeAt(i, j int) {
	const maxTiles = MaxCellSize / step

	w := 1
	for w < maxTiles && g.used(i+w, j, false) {
		w++
	}

	h := 1
rows:
	for h < maxTiles {
		for k := 0; k < w; k++ {
			if !g.used(i+k, j+h, false) {
				break rows
			}
		}

		// Leave the row alone if the neighbouring cells could use it
		if w != maxTiles && (g.used(i-1, j+h, false) || g.used(i+w, j+h, false)) {
			break
		}

		h++
	}

	if w == 1 && h == 1 {
		return
	}

	c := newCell(g.x+i*step, g.y+j*step, w*step, h*step)
	for y := j; y < j+h; y++ {
		for x := i; x < i+w; x++ {
			g.cells[y][x] = &c
		}
	}
}

// list returns each distinct cell once in raster order
func (g *grid) list() []Cell {
	seen := make(map[*Cell]struct{})
	cells := make([]Cell, 0)
	for _, row := range g.cells {
		for _, c := range row {
			if c == nil {
				continue
			}
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			cells = append(cells, *c)
		}
	}
	return cells
}

// bestGrid tries every offset of a grid of size pixel cells and returns the
// one using the fewest cells
func (m *mask) bestGrid(size int) *grid {
	var (
		best  *grid
		score = math.MaxInt32
	)

	w, h := m.bounds.Dx(), m.bounds.Dy()

	for ox := -(size - 1); ox <= 0; ox++ {
		for oy := -(size - 1); oy <= 0; oy++ {
			gw := (w + size - ox + size - 1) / size
			gh := (h + size - oy + size - 1) / size
			g := newGrid(ox, oy, gw, gh)

			for i, x := 0, ox; x < w+size; i, x = i+1, x+size {
				for j, y := 0, oy; y < h+size; j, y = j+1, y+size {
					c := newCell(x, y, size, size)
					if !m.transparent(c.Rect()) {
						g.cells[j][i] = &c
					}
				}
			}

			if n := g.count(); n < score {
				score = n
				best = g
			}
		}
	}

	return best
}
