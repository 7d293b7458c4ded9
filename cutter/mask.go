package cutter

import "image"

// mask is a frame where any non-zero pixel is opaque
type mask struct {
	pix    []byte
	bounds image.Rectangle
}

func newMask(pix []byte, w, h int) *mask {
	return &mask{
		pix:    pix,
		bounds: image.Rect(0, 0, w, h),
	}
}

func (m *mask) offset(x, y int) int {
	return y*m.bounds.Dx() + x
}

func (m *mask) count(r image.Rectangle) int {
	r = r.Intersect(m.bounds)
	n := 0
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if m.pix[m.offset(x, y)] != 0 {
				n++
			}
		}
	}
	return n
}

func (m *mask) transparent(r image.Rectangle) bool {
	r = r.Intersect(m.bounds)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if m.pix[m.offset(x, y)] != 0 {
				return false
			}
		}
	}
	return true
}

type edge int

const (
	left edge = iota
	top
	right
	bottom
)

// opaqueEdge returns true if the visible part of r has an opaque pixel
// along edge e
func (m *mask) opaqueEdge(r image.Rectangle, e edge) bool {
	r = r.Intersect(m.bounds)
	if r.Empty() {
		return false
	}
	switch e {
	case left, right:
		x := r.Min.X
		if e == right {
			x = r.Max.X - 1
		}
		for y := r.Min.Y; y < r.Max.Y; y++ {
			if m.pix[m.offset(x, y)] != 0 {
				return true
			}
		}
	case top, bottom:
		y := r.Min.Y
		if e == bottom {
			y = r.Max.Y - 1
		}
		for x := r.Min.X; x < r.Max.X; x++ {
			if m.pix[m.offset(x, y)] != 0 {
				return true
			}
		}
	}
	return false
}

// position slides c so its edges rest against opaque pixels
func (m *mask) position(c Cell) Cell {
	r := c.Rect()
	for _, s := range []struct {
		e     edge
		delta image.Point
	}{
		{right, image.Pt(-1, 0)},
		{bottom, image.Pt(0, -1)},
		{left, image.Pt(1, 0)},
		{top, image.Pt(0, 1)},
	} {
		for !m.opaqueEdge(r, s.e) && r.Overlaps(m.bounds) {
			r = r.Add(s.delta)
		}
	}
	return cellFromRect(r)
}

// shrink removes whole tile rows and columns from c that cover nothing. It
// returns false if c covers nothing at all.
func (m *mask) shrink(c Cell) (Cell, bool) {
	x, y, w, h := c.X, c.Y, c.W, c.H
	covered := m.count(c.Rect())
	if covered == 0 {
		return c, false
	}

	same := func() bool {
		return m.count(image.Rect(x, y, x+w, y+h)) == covered
	}

	for {
		x += step
		w -= step
		if w <= 0 || !same() {
			break
		}
	}
	x -= step
	w += step

	for {
		y += step
		h -= step
		if h <= 0 || !same() {
			break
		}
	}
	y -= step
	h += step

	for {
		w -= step
		if w <= 0 || !same() {
			break
		}
	}
	w += step

	for {
		h -= step
		if h <= 0 || !same() {
			break
		}
	}
	h += step

	return newCell(x, y, w, h), true
}

// fix moves c back inside the frame
func (m *mask) fix(c Cell) Cell {
	if d := c.X + c.W - m.bounds.Dx(); d > 0 {
		c.X -= d
	}
	if d := c.Y + c.H - m.bounds.Dy(); d > 0 {
		c.Y -= d
	}
	if c.X < 0 {
		c.X = 0
	}
	if c.Y < 0 {
		c.Y = 0
	}
	c.covered = -1
	return c
}
