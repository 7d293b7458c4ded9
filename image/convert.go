package image

import (
	"image"
	"image/color"
	"sort"

	"github.com/ericpauley/go-quantize/quantize"
)

// Slot 0 of every palette is transparent
const opaquePerPalette = colorsPerPalette - 1

var transparent = color.RGBA{}

type paletteMap struct {
	palette color.Palette
	tiles   []int
}

type byPaletteSize []paletteMap

func (p byPaletteSize) Len() int {
	return len(p)
}

func (p byPaletteSize) Swap(i, j int) {
	p[i], p[j] = p[j], p[i]
}

func (p byPaletteSize) Less(i, j int) bool {
	return len(p[i].palette) < len(p[j].palette)
}

func opaque(c color.Color) bool {
	_, _, _, a := c.RGBA()
	return a >= 0x8000
}

// vdp truncates c to the 3 bits per channel the VDP can display
func vdp(c color.Color) color.RGBA {
	r, g, b, _ := c.RGBA()
	return color.RGBA{
		R: byte(r>>8) & 0xe0,
		G: byte(g>>8) & 0xe0,
		B: byte(b>>8) & 0xe0,
		A: 0xff,
	}
}

func tileRect(tx, ty int, b image.Rectangle) image.Rectangle {
	return image.Rect(tx*tileWidth, ty*tileHeight, (tx+1)*tileWidth, (ty+1)*tileHeight).Intersect(b)
}

func countColors(m *image.Paletted, r image.Rectangle) map[color.Color]int {
	colors := make(map[color.Color]int)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if m.ColorIndexAt(x, y) != 0 {
				colors[m.At(x, y)]++
			}
		}
	}
	return colors
}

func uniqueColors(m *image.Paletted, r image.Rectangle) color.Palette {
	h := countColors(m, r)
	p := make(color.Palette, 0, len(h))
	for c := range h {
		p = append(p, c)
	}
	sort.Slice(p, func(i, j int) bool {
		return packColor(p[i]) < packColor(p[j])
	})
	return p
}

// Copied from color.sqDiff
func sqDiff(x, y uint32) uint32 {
	d := x - y
	return (d * d) >> 2
}

// Return the two closest colors in a given palette
func closestColors(p color.Palette) (color.Color, color.Color) {
	var rc1, rc2 color.Color
	bestSum := uint32(1<<32 - 1)
	for i, c1 := range p {
		r1, g1, b1, a1 := c1.RGBA()
		for j, c2 := range p {
			r2, g2, b2, a2 := c2.RGBA()
			if i != j {
				sum := sqDiff(r1, r2) + sqDiff(g1, g2) + sqDiff(b1, b2) + sqDiff(a1, a2)
				if sum < bestSum {
					bestSum, rc1, rc2 = sum, c1, c2
				}
			}
		}
	}
	return rc1, rc2
}

// Replace all occurrences of one opaque color in an image with another
func replaceColor(m *image.Paletted, o, n color.Color) {
	ni := uint8(m.Palette.Index(n))
	for y := m.Bounds().Min.Y; y < m.Bounds().Max.Y; y++ {
		for x := m.Bounds().Min.X; x < m.Bounds().Max.X; x++ {
			if m.ColorIndexAt(x, y) != 0 && m.At(x, y) == o {
				m.SetColorIndex(x, y, ni)
			}
		}
	}
}

// Colors in p2 but not in p1
func paletteDifference(p1, p2 color.Palette) (d color.Palette) {
	m := make(map[color.Color]struct{})
	for _, c := range p1 {
		m[c] = struct{}{}
	}
	for _, c := range p2 {
		if _, ok := m[c]; !ok {
			d = append(d, c)
		}
	}
	return
}

// First Fit Decreasing bin packing of the tile palettes into palettes of
// opaquePerPalette colors; relies on the incoming palettes being sorted in
// decreasing size
func packPalette(in []paletteMap) ([]paletteMap, bool) {
	out := make([]paletteMap, 0, maxPalettes)
next:
	for _, p := range in {
		for i := range out {
			d := paletteDifference(out[i].palette, p.palette)
			if len(d)+len(out[i].palette) <= opaquePerPalette {
				out[i].palette = append(out[i].palette, d...)
				out[i].tiles = append(out[i].tiles, p.tiles...)
				continue next
			}
		}
		if len(out) == maxPalettes {
			return nil, false
		}
		out = append(out, paletteMap{
			palette: append(color.Palette(nil), p.palette...),
			tiles:   append([]int(nil), p.tiles...),
		})
	}
	return out, true
}

func padPalette(p color.Palette) color.Palette {
	// Pad palette to multiple of colorsPerPalette
	if mod := len(p) % colorsPerPalette; mod > 0 {
		for i := 0; i < colorsPerPalette-mod; i++ {
			p = append(p, transparent)
		}
	}
	return p
}

// reducePalette merges the closest colors of any tile using too many and
// then packs the tile palettes
func reducePalette(m *image.Paletted) (*image.Paletted, []paletteMap, bool) {
	b := m.Bounds()
	tw, th := (b.Dx()+tileWidth-1)/tileWidth, (b.Dy()+tileHeight-1)/tileHeight

	// Create a copy of the image
	dup := image.NewPaletted(b, m.Palette)
	copy(dup.Pix, m.Pix)

	// Map of colors to frequency of occurrence
	global := countColors(dup, b)

	for ty := 0; ty < th; ty++ {
		for tx := 0; tx < tw; tx++ {
			p := uniqueColors(dup, tileRect(tx, ty, b))
			for len(p) > opaquePerPalette {
				c1, c2 := closestColors(p)

				// Keep whichever color appears more frequently
				// in the image
				var c color.Color
				if global[c1] > global[c2] {
					replaceColor(dup, c2, c1)
					c = c2
				} else {
					replaceColor(dup, c1, c2)
					c = c1
				}

				i := p.Index(c)
				p = append(p[:i], p[i+1:]...)
				delete(global, c)
			}
		}
	}

	// Tiles with identical colors share a palette entry
	byColors := make(map[string]int)
	var palettes []paletteMap
	for ty := 0; ty < th; ty++ {
		for tx := 0; tx < tw; tx++ {
			p := uniqueColors(dup, tileRect(tx, ty, b))
			if len(p) == 0 {
				continue
			}
			key := string(MarshalPalette(p))
			if i, ok := byColors[key]; ok {
				palettes[i].tiles = append(palettes[i].tiles, ty*tw+tx)
				continue
			}
			byColors[key] = len(palettes)
			palettes = append(palettes, paletteMap{
				palette: p,
				tiles:   []int{ty*tw + tx},
			})
		}
	}

	// Sort with biggest palettes first
	sort.Stable(sort.Reverse(byPaletteSize(palettes)))

	packed, ok := packPalette(palettes)
	return dup, packed, ok
}

// exactPaletted maps m onto its own colors if there are few enough of them
func exactPaletted(m image.Image) *image.Paletted {
	b := m.Bounds()
	palette := color.Palette{transparent}
	index := make(map[color.RGBA]uint8)
	pm := image.NewPaletted(image.Rect(0, 0, b.Dx(), b.Dy()), nil)

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := m.At(x, y)
			if !opaque(c) {
				continue
			}
			v := vdp(c)
			i, ok := index[v]
			if !ok {
				if len(palette) == maxColors-maxPalettes+1 {
					return nil
				}
				i = uint8(len(palette))
				index[v] = i
				palette = append(palette, v)
			}
			pm.SetColorIndex(x-b.Min.X, y-b.Min.Y, i)
		}
	}

	pm.Palette = palette
	return pm
}

// quantized maps m onto a median cut palette of at most n colors
func quantized(m image.Image, n int) *image.Paletted {
	b := m.Bounds()
	q := quantize.MedianCutQuantizer{}

	palette := color.Palette{transparent}
	seen := make(map[color.RGBA]struct{})
	for _, c := range q.Quantize(make(color.Palette, 0, n), m) {
		if !opaque(c) {
			continue
		}
		v := vdp(c)
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		palette = append(palette, v)
	}

	pm := image.NewPaletted(image.Rect(0, 0, b.Dx(), b.Dy()), palette)
	if len(palette) == 1 {
		return pm
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := m.At(x, y)
			if !opaque(c) {
				continue
			}
			pm.SetColorIndex(x-b.Min.X, y-b.Min.Y, uint8(palette[1:].Index(vdp(c))+1))
		}
	}
	return pm
}

func convert(m image.Image) (*Indexed, error) {
	var (
		pm     *image.Paletted
		packed []paletteMap
		ok     bool
	)

	if exact := exactPaletted(m); exact != nil {
		pm, packed, ok = reducePalette(exact)
	}

	// Keep reducing the colors until the palette can be packed
	for n := maxColors - maxPalettes; !ok && n >= opaquePerPalette; n-- {
		pm, packed, ok = reducePalette(quantized(m, n))
	}

	if !ok {
		return nil, ErrTooManyColors
	}

	return fromPacked(pm, packed), nil
}

func fromPacked(m *image.Paletted, packed []paletteMap) *Indexed {
	b := m.Bounds()
	tw := (b.Dx() + tileWidth - 1) / tileWidth

	tiles := make(map[int]int)
	for i, p := range packed {
		for _, t := range p.tiles {
			tiles[t] = i
		}
	}

	out := &Indexed{
		W:   b.Dx(),
		H:   b.Dy(),
		Pix: make([]byte, b.Dx()*b.Dy()),
	}

	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			// Tiles with no opaque pixels fall back to palette 0
			i := tiles[(y/tileHeight)*tw+x/tileWidth]
			p := byte(i) << 4
			if ci := m.ColorIndexAt(x, y); ci != 0 {
				p |= byte(packed[i].palette.Index(m.Palette[ci]) + 1)
			}
			out.Pix[y*out.W+x] = p
		}
	}

	for _, p := range packed {
		out.Palette = append(out.Palette, padPalette(append(color.Palette{transparent}, p.palette...))...)
	}
	if len(out.Palette) == 0 {
		out.Palette = padPalette(color.Palette{transparent})
	}

	return out
}
