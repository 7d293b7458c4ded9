package tile

import (
	"errors"
	"fmt"
	"strings"
)

var errUnknownOptimization = errors.New("tile: unknown optimization")
var errUnknownOrdering = errors.New("tile: unknown ordering")

// Optimization controls how tiles are reused within a Set
type Optimization int

// Optimization values
const (
	// OptimizeNone never reuses a tile
	OptimizeNone Optimization = iota
	// OptimizeAll reuses identical and mirrored tiles
	OptimizeAll
	// OptimizeDuplicate reuses identical tiles only
	OptimizeDuplicate
)

// ParseOptimization parses the textual form of an Optimization. An empty
// string selects OptimizeAll.
func ParseOptimization(s string) (Optimization, error) {
	switch strings.ToUpper(s) {
	case "", "ALL", "1":
		return OptimizeAll, nil
	case "NONE", "0":
		return OptimizeNone, nil
	case "DUPLICATE", "2":
		return OptimizeDuplicate, nil
	default:
		return OptimizeNone, fmt.Errorf("%w: %q", errUnknownOptimization, s)
	}
}

// Ordering is the order tiles are scanned from an image
type Ordering int

// Ordering values
const (
	Row Ordering = iota
	Column
)

// ParseOrdering parses the textual form of an Ordering. An empty string
// selects Row.
func ParseOrdering(s string) (Ordering, error) {
	switch strings.ToUpper(s) {
	case "", "ROW":
		return Row, nil
	case "COLUMN":
		return Column, nil
	default:
		return Row, fmt.Errorf("%w: %q", errUnknownOrdering, s)
	}
}

// Set is an ordered collection of tiles. Tiles are indexed by their
// flip-invariant hash so lookups only compare candidates that could match.
type Set struct {
	tiles []*Tile
	index map[uint64][]int
}

// NewSet returns an empty Set
func NewSet() *Set {
	return &Set{
		index: make(map[uint64][]int),
	}
}

// Len returns the number of tiles in the set
func (s *Set) Len() int {
	return len(s.tiles)
}

// Tile returns the tile at index i
func (s *Set) Tile(i int) *Tile {
	return s.tiles[i]
}

// Tiles returns all tiles in insertion order
func (s *Set) Tiles() []*Tile {
	return s.tiles
}

// Add appends t to the set regardless of whether it is already present and
// returns its index
func (s *Set) Add(t *Tile) int {
	i := len(s.tiles)
	s.tiles = append(s.tiles, t)
	s.index[t.hash] = append(s.index[t.hash], i)
	return i
}

// Index returns the index of the first tile matching t under opt, or -1.
// OptimizeNone never matches.
func (s *Set) Index(t *Tile, opt Optimization) int {
	if opt == OptimizeNone {
		return -1
	}

	candidates := s.index[t.hash]

	// Exact matches win over mirrored ones
	for _, i := range candidates {
		if s.tiles[i].data == t.data {
			return i
		}
	}

	if opt == OptimizeAll {
		for _, i := range candidates {
			if s.tiles[i].Equality(t) != None {
				return i
			}
		}
	}

	return -1
}

// Equal returns true if both sets hold the same tile data in the same order
func (s *Set) Equal(o *Set) bool {
	if len(s.tiles) != len(o.tiles) {
		return false
	}
	for i := range s.tiles {
		if s.tiles[i].data != o.tiles[i].data {
			return false
		}
	}
	return true
}

// BuildFromImage scans the wt by ht tiles of an 8 bits per pixel image of w
// by h pixels in the given order, adding each tile not already matched under
// opt. If addBlank is set and no blank tile was seen, one is appended.
func BuildFromImage(pix []byte, w, h, wt, ht int, opt Optimization, order Ordering, addBlank bool) *Set {
	s := NewSet()
	hasBlank := false

	add := func(i, j int) {
		t := FromImage(pix, w, h, i*Width, j*Height)
		hasBlank = hasBlank || t.IsBlank()
		if s.Index(t, opt) == -1 {
			s.Add(t)
		}
	}

	switch order {
	case Column:
		for i := 0; i < wt; i++ {
			for j := 0; j < ht; j++ {
				add(i, j)
			}
		}
	default:
		for j := 0; j < ht; j++ {
			for i := 0; i < wt; i++ {
				add(i, j)
			}
		}
	}

	if addBlank && !hasBlank {
		s.Add(Blank())
	}

	return s
}

// Rect is a rectangle in pixels
type Rect struct {
	X, Y, W, H int
}

// BuildFromSprites adds every tile covered by each rectangle without any
// reuse. Tiles within a rectangle are scanned column by column which is the
// order the VDP expects for sprites.
func BuildFromSprites(pix []byte, w, h int, cells []Rect) *Set {
	s := NewSet()
	for _, r := range cells {
		for i := 0; i < r.W/Width; i++ {
			for j := 0; j < r.H/Height; j++ {
				s.Add(FromImage(pix, w, h, r.X+i*Width, r.Y+j*Height))
			}
		}
	}
	return s
}
