package tile

import (
	"bytes"
	"io"
)

type encoder struct {
	w io.Writer
}

func (e *encoder) encode(t *Tile) error {
	for y := 0; y < Height; y++ {
		for x := 0; x < Width>>1; x++ {
			dx := x << 1
			if _, err := e.w.Write([]byte{(t.Pixel(dx, y) & 0x0f << 4) | t.Pixel(dx+1, y)&0x0f}); err != nil {
				return err
			}
		}
	}
	return nil
}

// MarshalBinary encodes the tile at 4 bits per pixel, 32 bytes in total
func (t *Tile) MarshalBinary() ([]byte, error) {
	b := new(bytes.Buffer)
	e := encoder{w: b}
	if err := e.encode(t); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// MarshalBinary encodes every tile of the set in order
func (s *Set) MarshalBinary() ([]byte, error) {
	b := new(bytes.Buffer)
	b.Grow(len(s.tiles) * Bytes)
	e := encoder{w: b}
	for _, t := range s.tiles {
		if err := e.encode(t); err != nil {
			return nil, err
		}
	}
	return b.Bytes(), nil
}
