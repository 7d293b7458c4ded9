/*
Package tile implements the Mega Drive VDP tile model.

A tile is 8 by 8 pixels where each pixel is a 4-bit index into one of four 16
color palettes. Tiles are compared against their horizontally and vertically
mirrored forms so that a single stored tile can be reused through the flip
bits of a tilemap attribute word.
*/
package tile

import (
	"encoding/binary"
	"errors"

	"github.com/cespare/xxhash/v2"
)

const (
	// Width is the width of a tile in pixels
	Width = 8
	// Height is the height of a tile in pixels
	Height = Width
	// Pixels is the number of pixels in a tile
	Pixels = Width * Height
	// Bytes is the size of a tile when packed at 4 bits per pixel
	Bytes = Pixels >> 1

	maxPalettes = 4
)

var errBadLength = errors.New("tile: wrong number of pixels")

// Equality describes how one tile matches another
type Equality int

// Equality values returned by Tile.Equality
const (
	None Equality = iota
	Equal
	HFlip
	VFlip
	HVFlip
)

// HFlipped returns true if the match requires a horizontal flip
func (e Equality) HFlipped() bool {
	return e == HFlip || e == HVFlip
}

// VFlipped returns true if the match requires a vertical flip
func (e Equality) VFlipped() bool {
	return e == VFlip || e == HVFlip
}

func (e Equality) String() string {
	switch e {
	case Equal:
		return "EQUAL"
	case HFlip:
		return "HFLIP"
	case VFlip:
		return "VFLIP"
	case HVFlip:
		return "HVFLIP"
	default:
		return "NONE"
	}
}

type rows [Height]uint32

// Tile is a single 8 by 8 tile. Each row is stored as eight nibbles with the
// leftmost pixel in the most significant nibble.
type Tile struct {
	Palette  int
	Priority bool

	data   rows
	hflip  rows
	vflip  rows
	hvflip rows
	plain  int
	hash   uint64
}

// New returns a tile built from 64 color indexes in row-major order. Only the
// lower nibble of each index is used.
func New(pix []byte, palette int, priority bool) (*Tile, error) {
	if len(pix) != Pixels {
		return nil, errBadLength
	}

	t := &Tile{
		Palette:  palette & (maxPalettes - 1),
		Priority: priority,
		plain:    int(pix[0] & 0x0f),
	}

	for y := 0; y < Height; y++ {
		var row uint32
		for x := 0; x < Width; x++ {
			c := pix[y*Width+x] & 0x0f
			if int(c) != t.plain {
				t.plain = -1
			}
			row = row<<4 | uint32(c)
		}
		t.data[y] = row
	}

	t.hflip = t.data.flip(true, false)
	t.vflip = t.data.flip(false, true)
	t.hvflip = t.data.flip(true, true)

	// Summing the hash of every variant gives the same value for a tile
	// and any of its mirrored forms
	t.hash = t.data.sum() + t.hflip.sum() + t.vflip.sum() + t.hvflip.sum()

	return t, nil
}

// Blank returns a tile where every pixel is color index 0
func Blank() *Tile {
	t, _ := New(make([]byte, Pixels), 0, false)
	return t
}

// FromImage extracts the tile at pixel position (x, y) from an 8 bits per
// pixel image of w by h pixels. Bits 0-3 of each pixel are the color index,
// bits 4-5 the palette and bit 7 the priority. Pixels outside the image are
// treated as transparent.
func FromImage(pix []byte, w, h, x, y int) *Tile {
	var data [Pixels]byte

	// Attributes come from the first opaque pixel, falling back to the
	// first transparent one
	palette, prio := -1, -1
	tPalette, tPrio := -1, -1

	for j := 0; j < Height; j++ {
		for i := 0; i < Width; i++ {
			px, py := x+i, y+j
			if px < 0 || py < 0 || px >= w || py >= h {
				continue
			}
			p := pix[py*w+px]
			c := p & 0x0f
			pal := int(p>>4) & 0x03
			pr := int(p>>7) & 0x01

			if c == 0 {
				if tPalette == -1 {
					tPalette, tPrio = pal, pr
				}
			} else if palette == -1 {
				palette, prio = pal, pr
			}

			data[j*Width+i] = c
		}
	}

	if palette == -1 {
		palette, prio = tPalette, tPrio
		if palette == -1 {
			palette, prio = 0, 0
		}
	}

	t, _ := New(data[:], palette, prio != 0)
	return t
}

// Hash returns a hash that is identical for a tile and all of its mirrored
// forms
func (t *Tile) Hash() uint64 {
	return t.hash
}

// Plain returns the single color index used by every pixel of the tile
func (t *Tile) Plain() (int, bool) {
	return t.plain, t.plain != -1
}

// IsBlank returns true if every pixel is color index 0
func (t *Tile) IsBlank() bool {
	return t.plain == 0
}

// Pixel returns the color index at (x, y)
func (t *Tile) Pixel(x, y int) byte {
	return byte(t.data[y] >> uint(4*(Width-1-x)) & 0x0f)
}

// Equality returns how o matches t, trying the exact form first and then
// each mirrored form of t in turn
func (t *Tile) Equality(o *Tile) Equality {
	switch o.data {
	case t.data:
		return Equal
	case t.hflip:
		return HFlip
	case t.vflip:
		return VFlip
	case t.hvflip:
		return HVFlip
	default:
		return None
	}
}

// Flip returns a copy of t mirrored in the requested directions
func (t *Tile) Flip(h, v bool) *Tile {
	var pix [Pixels]byte
	d := t.data.flip(h, v)
	for y := 0; y < Height; y++ {
		for x := 0; x < Width; x++ {
			pix[y*Width+x] = byte(d[y] >> uint(4*(Width-1-x)) & 0x0f)
		}
	}
	n, _ := New(pix[:], t.Palette, t.Priority)
	return n
}

func (r rows) flip(h, v bool) rows {
	var out rows
	for y := 0; y < Height; y++ {
		src := y
		if v {
			src = Height - 1 - y
		}
		out[y] = r[src]
		if h {
			out[y] = swapNibbles(out[y])
		}
	}
	return out
}

func (r rows) bytes() []byte {
	b := make([]byte, Bytes)
	for i, row := range r {
		binary.BigEndian.PutUint32(b[i*4:], row)
	}
	return b
}

func (r rows) sum() uint64 {
	return xxhash.Sum64(r.bytes())
}

func swapNibbles(v uint32) uint32 {
	return v&0x0000000f<<28 |
		v&0x000000f0<<20 |
		v&0x00000f00<<12 |
		v&0x0000f000<<4 |
		v&0x000f0000>>4 |
		v&0x00f00000>>12 |
		v&0x0f000000>>20 |
		v&0xf0000000>>28
}
