/*
Package tilemap builds VDP tilemaps, grids of attribute words referencing the
tiles of a tile.Set.
*/
package tilemap

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/bodgit/rescomp/tile"
)

var (
	// ErrTileNotFound is returned when a tile of the image is missing from
	// the tileset
	ErrTileNotFound = errors.New("tilemap: tile not found in tileset")
	// ErrTooManyTiles is returned when a tile index, base included, needs
	// more than 11 bits
	ErrTooManyTiles = errors.New("tilemap: tile index past 2047")
)

// Base holds the palette, priority and tile index added to every cell
type Base struct {
	Palette  int
	Priority bool
	Index    int
}

// ParseBase splits a map base attribute word into its fields
func ParseBase(a tile.Attr) Base {
	return Base{
		Palette:  a.Palette(),
		Priority: a.Priority(),
		Index:    a.Index(),
	}
}

// SystemTiles returns true when a base tile index is set. The VDP then has
// plain tiles of each color at indexes 0-15 which can stand in for plain
// tiles of the image.
func (b Base) SystemTiles() bool {
	return b.Index != 0
}

// Tilemap is a grid of attribute words
type Tilemap struct {
	W, H  int
	Cells []tile.Attr
}

// Resolve returns the attribute word for t using set. A plain tile is mapped
// straight to its color when system tiles are available.
func Resolve(set *tile.Set, t *tile.Tile, base Base, opt tile.Optimization) (tile.Attr, error) {
	var (
		index int
		eq    = tile.None
	)

	if v, ok := t.Plain(); ok && base.SystemTiles() {
		index = v
	} else {
		i := set.Index(t, opt)
		if i == -1 {
			return 0, ErrTileNotFound
		}
		eq = t.Equality(set.Tile(i))
		index = i + base.Index
		if index >= tile.MaxTiles {
			return 0, fmt.Errorf("%w: %d", ErrTooManyTiles, index)
		}
	}

	return tile.NewAttr(base.Palette+t.Palette, base.Priority || t.Priority, eq.VFlipped(), eq.HFlipped(), index), nil
}

// Build returns the tilemap of the wt by ht tiles of an 8 bits per pixel
// image of w by h pixels. With tile.OptimizeNone every cell gets the next
// sequential index in the given order rather than being looked up.
func Build(set *tile.Set, pix []byte, w, h, wt, ht int, base Base, opt tile.Optimization, order tile.Ordering) (*Tilemap, error) {
	m := &Tilemap{
		W:     wt,
		H:     ht,
		Cells: make([]tile.Attr, 0, wt*ht),
	}

	for j := 0; j < ht; j++ {
		for i := 0; i < wt; i++ {
			t := tile.FromImage(pix, w, h, i*tile.Width, j*tile.Height)

			if opt == tile.OptimizeNone {
				index := j*wt + i
				if order == tile.Column {
					index = i*ht + j
				}
				if index += base.Index; index >= tile.MaxTiles {
					return nil, fmt.Errorf("tile [%d,%d]: %w: %d", i, j, ErrTooManyTiles, index)
				}
				m.Cells = append(m.Cells, tile.NewAttr(base.Palette+t.Palette, base.Priority || t.Priority, false, false, index))
				continue
			}

			a, err := Resolve(set, t, base, opt)
			if err != nil {
				return nil, fmt.Errorf("tile [%d,%d]: %w", i, j, err)
			}
			m.Cells = append(m.Cells, a)
		}
	}

	return m, nil
}

// MarshalBinary encodes the cells as big-endian words
func (m *Tilemap) MarshalBinary() ([]byte, error) {
	b := new(bytes.Buffer)
	if err := binary.Write(b, binary.BigEndian, m.Cells); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}
