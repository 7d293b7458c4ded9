package tile

// MaxTiles is the number of tiles addressable by the 11-bit index of an
// attribute word
const MaxTiles = 1 << 11

// Attr is a VDP tilemap attribute word laid out as PCCVHIIIIIIIIIII, that is
// priority, palette, vertical flip, horizontal flip and tile index.
type Attr uint16

// Attribute word fields
const (
	IndexMask    Attr = MaxTiles - 1
	HFlipFlag    Attr = 1 << 11
	VFlipFlag    Attr = 1 << 12
	PaletteMask  Attr = 3 << paletteShift
	PriorityFlag Attr = 1 << 15

	paletteShift = 13
)

// NewAttr packs the fields into an attribute word
func NewAttr(palette int, priority, vflip, hflip bool, index int) Attr {
	a := Attr(palette&3)<<paletteShift | Attr(index)&IndexMask
	if hflip {
		a |= HFlipFlag
	}
	if vflip {
		a |= VFlipFlag
	}
	if priority {
		a |= PriorityFlag
	}
	return a
}

// Index returns the tile index
func (a Attr) Index() int {
	return int(a & IndexMask)
}

// Palette returns the palette number
func (a Attr) Palette() int {
	return int(a&PaletteMask) >> paletteShift
}

// Priority returns the priority bit
func (a Attr) Priority() bool {
	return a&PriorityFlag != 0
}

// HFlip returns the horizontal flip bit
func (a Attr) HFlip() bool {
	return a&HFlipFlag != 0
}

// VFlip returns the vertical flip bit
func (a Attr) VFlip() bool {
	return a&VFlipFlag != 0
}
