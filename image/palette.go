package image

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const jascHeader = "JASC-PAL"

var errBadPalette = errors.New("image: invalid palette file")

func upperNibble(b byte) byte {
	return b & 0xf0
}

func lowerNibble(b byte) byte {
	return b & 0x0f
}

// packColor returns c packed as 0000BBB0GGG0RRR0
func packColor(c color.Color) uint16 {
	r, g, b, _ := c.RGBA()
	return uint16(b>>12&0x0e)<<8 | uint16(g>>8&0xe0|r>>12&0x0e)
}

// unpackColor is the inverse of packColor
func unpackColor(v uint16) color.RGBA {
	hi, lo := byte(v>>8), byte(v)
	return color.RGBA{
		lowerNibble(lo) << 4,
		upperNibble(lo),
		lowerNibble(hi) << 4,
		0xff,
	}
}

// VDPColor returns c in the format of the VDP color RAM
func VDPColor(c color.Color) uint16 {
	return packColor(c)
}

// MarshalPalette returns p as big-endian VDP color words
func MarshalPalette(p color.Palette) []byte {
	b := make([]byte, 2*len(p))
	for i, c := range p {
		binary.BigEndian.PutUint16(b[2*i:], packColor(c))
	}
	return b
}

// LoadPalette reads the palette of file. A .pal file is either a JASC text
// palette, 3 byte RGB triplets or big-endian VDP color words; anything else
// is decoded as an image. At most 64 colors are returned.
func LoadPalette(file string) (color.Palette, error) {
	var (
		p   color.Palette
		err error
	)

	if strings.EqualFold(filepath.Ext(file), ".pal") {
		var b []byte
		if b, err = os.ReadFile(file); err != nil {
			return nil, err
		}
		p, err = decodePalette(b)
	} else {
		var m *Indexed
		if m, err = Load(file); err == nil {
			p = m.Palette
		}
	}

	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	if len(p) == 0 {
		return nil, fmt.Errorf("%s: %w", file, errBadPalette)
	}
	if len(p) > maxColors {
		p = p[:maxColors]
	}
	return p, nil
}

func decodePalette(b []byte) (color.Palette, error) {
	switch {
	case bytes.HasPrefix(b, []byte(jascHeader)):
		return decodeJASC(bytes.NewReader(b))
	case len(b) >= 6 && len(b)%3 == 0 && len(b)%2 != 0:
		p := make(color.Palette, 0, len(b)/3)
		for i := 0; i+2 < len(b); i += 3 {
			p = append(p, vdp(color.RGBA{b[i], b[i+1], b[i+2], 0xff}))
		}
		return p, nil
	default:
		p := make(color.Palette, 0, len(b)/2)
		for i := 0; i+1 < len(b); i += 2 {
			p = append(p, unpackColor(binary.BigEndian.Uint16(b[i:])))
		}
		return p, nil
	}
}

func decodeJASC(r io.Reader) (color.Palette, error) {
	s := bufio.NewScanner(r)

	lines := make([]string, 0)
	for s.Scan() {
		if line := strings.TrimSpace(s.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := s.Err(); err != nil {
		return nil, err
	}

	if len(lines) < 3 || lines[0] != jascHeader {
		return nil, errBadPalette
	}

	n, err := strconv.Atoi(lines[2])
	if err != nil || n < 0 || len(lines)-3 < n {
		return nil, errBadPalette
	}

	p := make(color.Palette, 0, n)
	for _, line := range lines[3 : 3+n] {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			return nil, errBadPalette
		}
		var rgb [3]byte
		for i := range rgb {
			v, err := strconv.ParseUint(fields[i], 10, 8)
			if err != nil {
				return nil, errBadPalette
			}
			rgb[i] = byte(v)
		}
		p = append(p, vdp(color.RGBA{rgb[0], rgb[1], rgb[2], 0xff}))
	}

	return p, nil
}
