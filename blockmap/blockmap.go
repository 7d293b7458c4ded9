/*
Package blockmap compresses large tile maps into a two level structure.

Tiles are grouped into 2 by 2 metatiles and metatiles into 8 by 8 blocks, so
a block covers 16 by 16 tiles. Identical metatiles and blocks are stored once.
The map itself is a list of rows of block indexes where a row identical to an
earlier one is not stored again; a per row offset table points each map row
at its stored row.
*/
package blockmap

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/bodgit/rescomp/tile"
	"github.com/bodgit/rescomp/tilemap"
)

const (
	// MetatileSize is the width and height of a metatile in tiles
	MetatileSize = 2
	// BlockSize is the width and height of a block in metatiles
	BlockSize = 8
	// BlockTiles is the width and height of a block in tiles
	BlockTiles = MetatileSize * BlockSize

	byteLimit = 256
)

var (
	// ErrColorRange is returned when a pixel uses a color index in the
	// range 64 to 127
	ErrColorRange = errors.New("blockmap: color index in [64..127] range")
	// ErrTooBig is returned when the unpacked tables exceed the hard limit
	ErrTooBig = errors.New("blockmap: unpacked size exceeds limit")
)

// Metatile is a square of tile attribute words
type Metatile [MetatileSize * MetatileSize]tile.Attr

// Block is a square of metatile indexes
type Block [BlockSize * BlockSize]int

// Map is the compressed form of a tile map
type Map struct {
	// WB and HB are the size in blocks
	WB, HB int

	Metatiles []Metatile
	Blocks    []Block
	// Rows holds the unique rows of block indexes, each WB long
	Rows [][]int
	// RowOffsets holds the index of the first block index of the stored
	// row for each map row
	RowOffsets []int
}

// Build compresses the map in an 8 bits per pixel image of w by h pixels
// using the tiles of set
func Build(set *tile.Set, pix []byte, w, h int, base tilemap.Base) (*Map, error) {
	for _, p := range pix {
		if p&0x40 != 0 {
			return nil, ErrColorRange
		}
	}

	wt, ht := w/tile.Width, h/tile.Height
	m := &Map{
		WB:         (wt + BlockTiles - 1) / BlockTiles,
		HB:         (ht + BlockTiles - 1) / BlockTiles,
		RowOffsets: make([]int, 0),
	}

	metatiles := make(map[Metatile]int)
	blocks := make(map[Block]int)

	for j := 0; j < m.HB; j++ {
		row := make([]int, m.WB)

		for i := 0; i < m.WB; i++ {
			var b Block
			for bj := 0; bj < BlockSize; bj++ {
				for bi := 0; bi < BlockSize; bi++ {
					var mt Metatile
					for mj := 0; mj < MetatileSize; mj++ {
						for mi := 0; mi < MetatileSize; mi++ {
							ti := i*BlockTiles + bi*MetatileSize + mi
							tj := j*BlockTiles + bj*MetatileSize + mj

							// Anything past the edge of the
							// image is tile 0
							if ti >= wt || tj >= ht {
								mt[mj*MetatileSize+mi] = tile.NewAttr(base.Palette, base.Priority, false, false, 0)
								continue
							}

							t := tile.FromImage(pix, w, h, ti*tile.Width, tj*tile.Height)
							a, err := tilemap.Resolve(set, t, base, tile.OptimizeAll)
							if err != nil {
								return nil, fmt.Errorf("tile [%d,%d]: %w", ti, tj, err)
							}
							mt[mj*MetatileSize+mi] = a
						}
					}

					index, ok := metatiles[mt]
					if !ok {
						index = len(m.Metatiles)
						metatiles[mt] = index
						m.Metatiles = append(m.Metatiles, mt)
					}
					b[bj*BlockSize+bi] = index
				}
			}

			index, ok := blocks[b]
			if !ok {
				index = len(m.Blocks)
				blocks[b] = index
				m.Blocks = append(m.Blocks, b)
			}
			row[i] = index
		}

		m.RowOffsets = append(m.RowOffsets, m.addRow(row)*m.WB)
	}

	return m, nil
}

// addRow returns the index of an identical stored row, storing row if there
// is none
func (m *Map) addRow(row []int) int {
	for i, r := range m.Rows {
		if equalRows(r, row) {
			return i
		}
	}
	m.Rows = append(m.Rows, row)
	return len(m.Rows) - 1
}

func equalRows(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func writeIndexes(b *bytes.Buffer, indexes []int, wide bool) error {
	for _, i := range indexes {
		if wide {
			if err := binary.Write(b, binary.BigEndian, uint16(i)); err != nil {
				return err
			}
			continue
		}
		if err := b.WriteByte(byte(i)); err != nil {
			return err
		}
	}
	return nil
}

// WideBlocks returns true if blocks need 16-bit metatile indexes
func (m *Map) WideBlocks() bool {
	return len(m.Metatiles) > byteLimit
}

// WideIndexes returns true if rows need 16-bit block indexes
func (m *Map) WideIndexes() bool {
	return len(m.Blocks) > byteLimit
}

// MetatileData encodes the metatiles as big-endian attribute words
func (m *Map) MetatileData() ([]byte, error) {
	b := new(bytes.Buffer)
	if err := binary.Write(b, binary.BigEndian, m.Metatiles); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// BlockData encodes the blocks as 8 or 16-bit metatile indexes
func (m *Map) BlockData() ([]byte, error) {
	b := new(bytes.Buffer)
	for _, block := range m.Blocks {
		if err := writeIndexes(b, block[:], m.WideBlocks()); err != nil {
			return nil, err
		}
	}
	return b.Bytes(), nil
}

// BlockIndexData encodes the stored rows as 8 or 16-bit block indexes
func (m *Map) BlockIndexData() ([]byte, error) {
	b := new(bytes.Buffer)
	for _, row := range m.Rows {
		if err := writeIndexes(b, row, m.WideIndexes()); err != nil {
			return nil, err
		}
	}
	return b.Bytes(), nil
}

// RowOffsetData encodes the row offsets as big-endian words
func (m *Map) RowOffsetData() ([]byte, error) {
	b := new(bytes.Buffer)
	if err := writeIndexes(b, m.RowOffsets, true); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// Limits bounds the memory needed to unpack a map at runtime
type Limits struct {
	Hard int
	Soft int
}

// DefaultLimits is the default unpack budget
var DefaultLimits = Limits{
	Hard: 64 << 10,
	Soft: 32 << 10,
}

// Tables selects the tables that will be unpacked into memory
type Tables struct {
	Metatiles, Blocks, BlockIndexes bool
}

// UnpackedSize returns the bytes needed in memory to hold the selected
// tables. Only compressed tables should be selected: a table stored without
// compression is read in place from ROM and is not counted, so a map with
// no compressed tables always fits.
func (m *Map) UnpackedSize(t Tables) int {
	size := 0
	if t.Metatiles {
		size += len(m.Metatiles) * MetatileSize * MetatileSize * 2
	}
	if t.Blocks {
		n := len(m.Blocks) * BlockSize * BlockSize
		if m.WideBlocks() {
			n *= 2
		}
		size += n
	}
	if t.BlockIndexes {
		n := len(m.Rows) * m.WB
		if m.WideIndexes() {
			n *= 2
		}
		size += n
	}
	return size
}

// Check validates the unpacked size against l. It returns an error wrapping
// ErrTooBig when over the hard limit and true when over the soft limit.
func (m *Map) Check(t Tables, l Limits) (bool, error) {
	size := m.UnpackedSize(t)
	if size > l.Hard {
		return false, fmt.Errorf("%w: %d > %d bytes", ErrTooBig, size, l.Hard)
	}
	return size > l.Soft, nil
}
