package rescomp

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"strconv"
	"strings"

	"github.com/bodgit/rescomp/cutter"
	"github.com/bodgit/rescomp/resource"
	"github.com/bodgit/rescomp/tile"
)

// ErrTooManySprites is returned when a frame cannot be drawn with 16
// hardware sprites
var ErrTooManySprites = errors.New("rescomp: too many VDP sprites in frame")

var errPalettes = errors.New("rescomp: sprite uses more than one palette")

const (
	maxFrameTiles = 32

	// A frame this big is worth the slow search if the fast one used
	// more sprites than one per 8 tiles
	bigFrameTiles   = 64
	tilesPerSprite  = 8
	frameIDTemplate = "%s_animation%d_frame%d"
)

// parseFrameDimension returns a frame dimension in tiles. The value is
// either in tiles, in pixels with a p suffix, or a number of frames across
// the image with an f suffix.
func parseFrameDimension(s string, total int) (int, error) {
	upper := strings.ToUpper(s)
	switch {
	case strings.HasSuffix(upper, "P"):
		n, err := strconv.Atoi(upper[:len(upper)-1])
		if err != nil {
			return 0, fmt.Errorf("%w: %s", errBadDimension, s)
		}
		if n%tile.Width != 0 {
			return 0, fmt.Errorf("%w: %d pixels is not a multiple of 8", errBadDimension, n)
		}
		return n / tile.Width, nil
	case strings.HasSuffix(upper, "F"):
		n, err := strconv.Atoi(upper[:len(upper)-1])
		if err != nil || n < 1 {
			return 0, fmt.Errorf("%w: %s", errBadDimension, s)
		}
		if total%n != 0 {
			return 0, fmt.Errorf("%w: %d pixels is not a multiple of %d frames", errBadDimension, total, n)
		}
		return total / n / tile.Width, nil
	default:
		n, err := strconv.Atoi(s)
		if err != nil {
			return 0, fmt.Errorf("%w: %s", errBadDimension, s)
		}
		return n, nil
	}
}

// parseTimeArray parses the frame timers, either a single value for every
// frame or one list per animation such as [[3,3,3][4,5,5]]. Values within a
// bracketed list may be separated by commas or spaces. Without brackets the
// lists are separated by spaces. The last value of a list, and the last
// list, repeat as needed.
func parseTimeArray(s string) [][]int {
	s = strings.TrimSpace(s)
	if v, err := strconv.Atoi(s); err == nil {
		return [][]int{{v}}
	}

	var parts []string
	if strings.Contains(s, "]") {
		parts = strings.Split(strings.ReplaceAll(s, "[", ""), "]")
	} else {
		parts = strings.Fields(s)
	}

	var out [][]int
	for _, part := range parts {
		var anim []int
		for _, v := range strings.FieldsFunc(part, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t'
		}) {
			if n, err := strconv.Atoi(v); err == nil {
				anim = append(anim, n)
			}
		}
		if len(anim) > 0 {
			out = append(out, anim)
		}
	}

	if len(out) == 0 {
		return [][]int{{0}}
	}
	return out
}

// spritePalette returns the palette number used by every opaque pixel
func spritePalette(pix []byte) (int, error) {
	pal := -1
	for _, p := range pix {
		if p&0x0f == 0 {
			continue
		}
		switch n := int(p>>4) & 3; {
		case pal == -1:
			pal = n
		case pal != n:
			return 0, fmt.Errorf("%w: palettes %d and %d", errPalettes, pal, n)
		}
	}
	if pal == -1 {
		pal = 0
	}
	return pal, nil
}

func clamp(n, max int) int {
	if n > max {
		return max
	}
	return n
}

func opaque(pix []byte) bool {
	for _, p := range pix {
		if p&0x0f != 0 {
			return true
		}
	}
	return false
}

// better reports if a is a better cut than b
func better(a, b *cutter.Solution) bool {
	na, nb := len(a.Cells()), len(b.Cells())
	switch {
	case na <= cutter.MaxCells && nb > cutter.MaxCells:
		return true
	case na > cutter.MaxCells && nb > cutter.MaxCells:
		return na < nb
	case na > cutter.MaxCells:
		return false
	default:
		return a.Score() < b.Score()
	}
}

// cut splits a frame into hardware sprites, spending more effort when the
// first result needs too many sprites
func (u *unit) cut(id string, pix []byte, w, h int, opt cutter.OptimizationType, level cutter.Level) (*cutter.Solution, error) {
	c := cutter.New(pix, w, h, u.logger.WithField("id", id))
	c.Workers = u.config.SpriteWorkers

	var s *cutter.Solution
	if level == cutter.Fast {
		s = c.Fast(opt)
	} else {
		s = c.Slow(u.ctx, opt, u.config.Iterations[level])
	}

	n, tiles := len(s.Cells()), s.Tiles()
	if n > cutter.MaxCells || (tiles > bigFrameTiles && n > tiles/tilesPerSprite) {
		budget := u.config.Iterations[level]
		if slow := u.config.Iterations[cutter.Slow]; budget < slow {
			budget = slow
		}
		// The same search with the same budget would find the same cut
		if level == cutter.Fast || budget != u.config.Iterations[level] {
			if retry := c.Slow(u.ctx, opt, budget); better(retry, s) {
				s = retry
			}
		}

		if len(s.Cells()) > cutter.MaxCells && opt != cutter.MinSprite {
			if retry := c.Slow(u.ctx, cutter.MinSprite, budget); better(retry, s) {
				s = retry
			}
		}
	}

	if n := len(s.Cells()); n > cutter.MaxCells {
		return nil, fmt.Errorf("%w: sprite frame '%s' uses %d VDP sprites (max %d)", ErrTooManySprites, id, n, cutter.MaxCells)
	}

	u.logger.WithField("id", id).Infof("Sprite frame '%s' - %d VDP sprites and %d tiles", id, len(s.Cells()), s.Tiles())

	return s, nil
}

type frame struct {
	pix   []byte
	timer int
}

// frames returns the frames of an animation up to the last one with an
// opaque pixel. With dedup, consecutive identical frames are folded into
// one that lasts as long as all of them.
func frames(pix [][]byte, timers []int, dedup bool) []frame {
	last := len(pix) - 1
	for last >= 0 && !opaque(pix[last]) {
		last--
	}

	var out []frame
	for i := 0; i <= last; i++ {
		timer := timers[clamp(i, len(timers)-1)]
		if dedup && len(out) > 0 && bytes.Equal(out[len(out)-1].pix, pix[i]) {
			out[len(out)-1].timer += timer
			continue
		}
		out = append(out, frame{pix: pix[i], timer: timer})
	}
	return out
}

// whole reports if a single hardware sprite covers the frame
func whole(cells []cutter.Cell, w, h int) bool {
	return len(cells) == 1 && cells[0].Rect() == image.Rect(0, 0, w, h)
}

func collisionShape(t resource.CollisionType, w, h int) *resource.Shape {
	switch t {
	case resource.CollisionBox:
		return resource.BoxShape(w, h)
	case resource.CollisionCircle:
		return resource.CircleShape(w, h)
	default:
		return nil
	}
}

func (u *unit) sprite(d Declaration) (*resource.Entry, error) {
	c, err := compression(d, 5)
	if err != nil {
		return nil, err
	}
	times := [][]int{{0}}
	if d.Len() > 6 {
		times = parseTimeArray(d.Arg(6))
	}
	collision, err := resource.ParseCollision(d.Arg(7))
	if err != nil {
		return nil, err
	}
	opt, err := cutter.ParseOptimizationType(d.Arg(8))
	if err != nil {
		return nil, err
	}
	level, err := cutter.ParseLevel(d.Arg(9))
	if err != nil {
		return nil, err
	}
	dedup := parseBool(d.Arg(10), false)

	m, err := u.load(d.Arg(2))
	if err != nil {
		return nil, err
	}
	if err := m.CheckAlignment(); err != nil {
		return nil, err
	}

	wf, err := parseFrameDimension(d.Arg(3), m.W)
	if err != nil {
		return nil, err
	}
	hf, err := parseFrameDimension(d.Arg(4), m.H)
	if err != nil {
		return nil, err
	}
	if wf < 1 || hf < 1 {
		return nil, fmt.Errorf("%w: width and height should be > 0", errBadDimension)
	}
	if wf >= maxFrameTiles || hf >= maxFrameTiles {
		return nil, fmt.Errorf("%w: width and height should be < %d tiles", errBadDimension, maxFrameTiles)
	}
	if err := checkBit6(m); err != nil {
		return nil, err
	}
	sub, err := spritePalette(m.Pix)
	if err != nil {
		return nil, err
	}
	colors := m.Palette
	if len(colors) > sub*maxSubPalette {
		colors = colors[sub*maxSubPalette:]
	}

	// Nothing is added to the registry until every frame is cut
	type cutFrame struct {
		frame
		cells []cutter.Cell
	}

	w, h := wf*tile.Width, hf*tile.Height
	anims := make([][]cutFrame, 0, m.H/h)
	for a := 0; a < m.H/h; a++ {
		pix := make([][]byte, 0, m.W/w)
		for f := 0; f < m.W/w; f++ {
			pix = append(pix, m.Sub(f*w, a*h, w, h))
		}

		var cuts []cutFrame
		for f, fr := range frames(pix, times[clamp(a, len(times)-1)], dedup) {
			s, err := u.cut(fmt.Sprintf(frameIDTemplate, d.ID(), a, f), fr.pix, w, h, opt, level)
			if err != nil {
				return nil, err
			}
			cuts = append(cuts, cutFrame{frame: fr, cells: s.Cells()})
		}
		anims = append(anims, cuts)
	}

	pal := u.addPalette(d.ID()+"_palette", colors, maxSubPalette, true)

	sprite := &resource.Sprite{W: wf, H: hf, Palette: pal}
	for a, cuts := range anims {
		// Fully transparent animations are dropped
		if len(cuts) == 0 {
			continue
		}

		anim := &resource.SpriteAnimation{}
		for f, cf := range cuts {
			id := fmt.Sprintf(frameIDTemplate, d.ID(), a, f)

			fr := &resource.SpriteFrame{
				Timer:       cf.timer,
				Optimisable: whole(cf.cells, w, h),
			}

			rects := make([]tile.Rect, 0, len(cf.cells))
			for i, cell := range cf.cells {
				rects = append(rects, tile.Rect{X: cell.X, Y: cell.Y, W: cell.W, H: cell.H})
				vdp := resource.NewVDPSprite(cell.X, cell.Y, cell.W/tile.Width, cell.H/tile.Height, wf, hf)
				fr.Sprites = append(fr.Sprites, u.reg.Add(fmt.Sprintf("%s_sprite%d", id, i), vdp, true))
			}

			set := tile.BuildFromSprites(cf.pix, w, h, rects)
			if fr.Tileset, err = u.addTileset(id+"_tileset", set, c, true); err != nil {
				return nil, err
			}

			if shape := collisionShape(collision, w, h); shape != nil {
				fr.Collision = u.reg.Add(id+"_collision", &resource.Collision{Hit: shape}, true)
			}

			if n := fr.Tiles(); n > sprite.MaxTiles {
				sprite.MaxTiles = n
			}
			if n := len(fr.Sprites); n > sprite.MaxSprites {
				sprite.MaxSprites = n
			}

			anim.Frames = append(anim.Frames, u.reg.Add(id, fr, true))
		}

		sprite.Animations = append(sprite.Animations, u.reg.Add(fmt.Sprintf("%s_animation%d", d.ID(), a), anim, true))
	}

	return u.reg.Add(d.ID(), sprite, false), nil
}
