/*
Package image loads source images as the 8 bits per pixel indexed buffers
used by every resource builder.

Each byte of an indexed buffer holds a color index within a 16 color
palette in bits 0-3, the palette number in bits 4-5 and the priority flag in
bit 7. Bit 6 is kept as found so callers can reject out of range indexes.

Paletted PNG and GIF images are used as is. BMP, grayscale and true color
images are converted: colors are reduced to the precision of the VDP, each
8 by 8 tile is given at most 15 opaque colors and the per tile palettes are
packed into no more than four 16 color palettes, quantizing first if there
are too many colors to fit.
*/
package image

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif" // GIF decoder
	_ "image/png" // PNG decoder
	"io"
	"os"

	_ "golang.org/x/image/bmp" // BMP decoder
)

const (
	tileWidth        = 8
	tileHeight       = tileWidth
	colorsPerPalette = 16
	maxPalettes      = 4
	maxColors        = colorsPerPalette * maxPalettes
)

var (
	// ErrAlignment is returned when the image size is not a multiple of
	// the tile size
	ErrAlignment = errors.New("image: size is not a multiple of 8")
	// ErrTooManyColors is returned when an image cannot be reduced to
	// four palettes
	ErrTooManyColors = errors.New("image: cannot fit colors in 4 palettes")
)

// Indexed is an 8 bits per pixel image
type Indexed struct {
	W, H    int
	Pix     []byte
	Palette color.Palette
}

// At returns the pixel at x, y or 0 outside of the image
func (m *Indexed) At(x, y int) byte {
	if x < 0 || y < 0 || x >= m.W || y >= m.H {
		return 0
	}
	return m.Pix[y*m.W+x]
}

// Sub returns a copy of the w by h pixels at x, y. Pixels outside of the
// image are 0.
func (m *Indexed) Sub(x, y, w, h int) []byte {
	pix := make([]byte, w*h)
	for j := 0; j < h; j++ {
		for i := 0; i < w; i++ {
			pix[j*w+i] = m.At(x+i, y+j)
		}
	}
	return pix
}

// CheckAlignment returns ErrAlignment unless both dimensions are multiples
// of 8
func (m *Indexed) CheckAlignment() error {
	if m.W%tileWidth != 0 || m.H%tileHeight != 0 {
		return fmt.Errorf("%w: %dx%d", ErrAlignment, m.W, m.H)
	}
	return nil
}

// MaxIndex returns the highest color index used, ignoring the priority bit
func (m *Indexed) MaxIndex() int {
	max := 0
	for _, p := range m.Pix {
		if i := int(p & 0x7f); i > max {
			max = i
		}
	}
	return max
}

// Decode reads a PNG, GIF or BMP image from r
func Decode(r io.Reader) (*Indexed, error) {
	m, _, err := image.Decode(r)
	if err != nil {
		return nil, err
	}
	return FromImage(m)
}

// Load decodes the image in file
func Load(file string) (*Indexed, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	return m, nil
}

// FromImage converts m to an indexed image
func FromImage(m image.Image) (*Indexed, error) {
	b := m.Bounds()

	switch pm := m.(type) {
	case *image.Paletted:
		out := &Indexed{
			W:   b.Dx(),
			H:   b.Dy(),
			Pix: make([]byte, 0, b.Dx()*b.Dy()),
		}
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				out.Pix = append(out.Pix, pm.ColorIndexAt(x, y))
			}
		}
		out.Palette = pm.Palette
		if len(out.Palette) > maxColors {
			out.Palette = out.Palette[:maxColors]
		}
		return out, nil
	case *image.Gray:
		out := &Indexed{
			W:   b.Dx(),
			H:   b.Dy(),
			Pix: make([]byte, 0, b.Dx()*b.Dy()),
		}
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				out.Pix = append(out.Pix, pm.GrayAt(x, y).Y)
			}
		}
		return out, nil
	default:
		return convert(m)
	}
}
