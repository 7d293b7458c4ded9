package resource

import (
	"errors"
	"fmt"
	"strings"
)

var errUnknownCollision = errors.New("resource: unknown collision")

// Sprite is a sheet of equally sized frames, one animation per row of
// frames. W and H are the frame size in tiles.
type Sprite struct {
	W, H       int
	Animations []*Entry
	MaxTiles   int
	MaxSprites int
	Palette    *Entry
}

// Kind implements Resource
func (*Sprite) Kind() Kind { return KindSprite }

func (s *Sprite) hash(h *hasher) {
	h.int(s.W)
	h.int(s.H)
	h.int(s.MaxTiles)
	h.int(s.MaxSprites)
	for _, e := range s.Animations {
		h.entry(e)
	}
	h.entry(s.Palette)
}

func (s *Sprite) equal(o Resource) bool {
	other := o.(*Sprite)
	return s.W == other.W && s.H == other.H && s.MaxTiles == other.MaxTiles && s.MaxSprites == other.MaxSprites &&
		sameAll(s.Animations, other.Animations) && same(s.Palette, other.Palette)
}

func (s *Sprite) size() int { return 4*len(s.Animations) + 2 + 2 + 4 + 2 + 4 + 2 + 2 }

func (*Sprite) bins() []*Entry { return nil }

func (s *Sprite) export(w *Writer, e *Entry) error {
	w.stream.Reset()

	table := e.ID + "_animations"
	w.decl("", table, 2, false)
	for _, a := range s.Animations {
		w.ref(a)
	}
	w.blank()

	w.decl("SpriteDefinition", e.ID, 2, e.Global)
	w.dcw(s.W * 8)
	w.dcw(s.H * 8)
	w.ref(s.Palette)
	w.dcw(len(s.Animations))
	w.dcl(table)
	w.dcw(s.MaxTiles)
	w.dcw(s.MaxSprites)
	w.blank()

	return nil
}

// SpriteAnimation is a sequence of frames
type SpriteAnimation struct {
	Frames []*Entry
	Loop   int
}

// Kind implements Resource
func (*SpriteAnimation) Kind() Kind { return KindSpriteAnimation }

func (a *SpriteAnimation) hash(h *hasher) {
	h.int(a.Loop)
	for _, e := range a.Frames {
		h.entry(e)
	}
}

func (a *SpriteAnimation) equal(o Resource) bool {
	oa := o.(*SpriteAnimation)
	return a.Loop == oa.Loop && sameAll(a.Frames, oa.Frames)
}

func (a *SpriteAnimation) size() int { return 4*len(a.Frames) + 1 + 1 + 4 }

func (*SpriteAnimation) bins() []*Entry { return nil }

func (a *SpriteAnimation) export(w *Writer, e *Entry) error {
	w.stream.Reset()

	table := e.ID + "_frames"
	w.decl("", table, 2, false)
	for _, f := range a.Frames {
		w.ref(f)
	}
	w.blank()

	w.decl("Animation", e.ID, 2, e.Global)
	w.dcw(len(a.Frames)<<8 | a.Loop&0xff)
	w.dcl(table)
	w.blank()

	return nil
}

// optimisableFrame is the sprite count written for a frame drawn with a
// single hardware sprite covering the whole frame
const optimisableFrame = 0x81

// SpriteFrame is one frame of an animation: the hardware sprites composing
// it, their tiles and an optional collision
type SpriteFrame struct {
	Sprites     []*Entry
	Tileset     *Entry
	Collision   *Entry
	Timer       int
	Optimisable bool
}

// Kind implements Resource
func (*SpriteFrame) Kind() Kind { return KindSpriteFrame }

func (f *SpriteFrame) hash(h *hasher) {
	h.int(f.Timer)
	h.bool(f.Optimisable)
	h.entry(f.Tileset)
	h.entry(f.Collision)
	for _, e := range f.Sprites {
		h.entry(e)
	}
}

func (f *SpriteFrame) equal(o Resource) bool {
	of := o.(*SpriteFrame)
	return f.Timer == of.Timer && f.Optimisable == of.Optimisable &&
		same(f.Tileset, of.Tileset) && same(f.Collision, of.Collision) &&
		sameAll(f.Sprites, of.Sprites)
}

func (f *SpriteFrame) size() int { return 6*len(f.Sprites) + 1 + 1 + 4 + 4 }

func (*SpriteFrame) bins() []*Entry { return nil }

// Tiles returns the number of tiles used by the frame
func (f *SpriteFrame) Tiles() int {
	if ts, ok := f.Tileset.Resource.(*Tileset); ok {
		return ts.Tiles()
	}
	return 0
}

func (f *SpriteFrame) export(w *Writer, e *Entry) error {
	w.stream.Reset()

	n := len(f.Sprites)
	if f.Optimisable {
		n = optimisableFrame
	}

	w.decl("AnimationFrame", e.ID, 2, e.Global)
	w.dcw(n<<8&0xff00 | f.Timer&0xff)
	w.ref(f.Tileset)
	w.ref(f.Collision)
	for _, s := range f.Sprites {
		for _, v := range s.Resource.(*VDPSprite).words() {
			w.dcw(v)
		}
	}
	w.blank()

	return nil
}

// VDPSprite is one hardware sprite of a frame. X and Y are the offset in
// pixels from the top left of the frame, W and H the size in tiles. FlipX
// and FlipY are the offsets to use when the frame is mirrored.
type VDPSprite struct {
	X, Y  int
	W, H  int
	FlipX int
	FlipY int
}

// NewVDPSprite returns the hardware sprite at x, y of w by h tiles within
// a frame of fw by fh tiles
func NewVDPSprite(x, y, w, h, fw, fh int) *VDPSprite {
	return &VDPSprite{
		X:     x,
		Y:     y,
		W:     w,
		H:     h,
		FlipX: fw*8 - (x + w*8),
		FlipY: fh*8 - (y + h*8),
	}
}

// Kind implements Resource
func (*VDPSprite) Kind() Kind { return KindVDPSprite }

func (s *VDPSprite) hash(h *hasher) {
	for _, v := range []int{s.X, s.Y, s.W, s.H, s.FlipX, s.FlipY} {
		h.int(v)
	}
}

func (s *VDPSprite) equal(o Resource) bool {
	return *s == *o.(*VDPSprite)
}

func (*VDPSprite) size() int { return 6 }

func (*VDPSprite) bins() []*Entry { return nil }

// SizeCode returns the size in the format of the sprite attribute table
func (s *VDPSprite) SizeCode() int {
	return (s.W-1)<<2 | (s.H - 1)
}

func (s *VDPSprite) bytes() []byte {
	return []byte{byte(s.Y), byte(s.FlipY), byte(s.SizeCode()), byte(s.X), byte(s.FlipX), byte(s.W * s.H)}
}

func (s *VDPSprite) words() [3]int {
	b := s.bytes()
	return [3]int{
		s.Y<<8 | int(b[1]),
		s.SizeCode()<<8 | int(b[3]),
		s.FlipX<<8 | int(b[5]),
	}
}

func (s *VDPSprite) export(w *Writer, e *Entry) error {
	w.decl("FrameVDPSprite", e.ID, 2, e.Global)
	for _, v := range s.words() {
		w.dcw(v)
	}
	w.blank()
	_, _ = w.stream.Write(s.bytes())
	return nil
}

// CollisionType is the shape of a collision
type CollisionType int

// Collision types
const (
	CollisionNone CollisionType = iota
	CollisionCircle
	CollisionBox
)

// ParseCollision parses the textual form of a CollisionType. An empty
// string selects CollisionNone.
func ParseCollision(s string) (CollisionType, error) {
	switch strings.ToUpper(s) {
	case "", "NONE":
		return CollisionNone, nil
	case "CIRCLE":
		return CollisionCircle, nil
	case "BOX":
		return CollisionBox, nil
	default:
		return CollisionNone, fmt.Errorf("%w: %q", errUnknownCollision, s)
	}
}

// Shape is a collision box or circle in pixels. Ray is only used by a circle
// and W and H only by a box.
type Shape struct {
	Type       CollisionType
	X, Y, W, H int
	Ray        int
}

// BoxShape returns the default collision box of a frame w by h pixels
func BoxShape(w, h int) *Shape {
	return &Shape{Type: CollisionBox, X: w / 4, Y: h / 4, W: w * 3 / 4, H: h * 3 / 4}
}

// CircleShape returns the default collision circle of a frame w by h pixels
func CircleShape(w, h int) *Shape {
	return &Shape{Type: CollisionCircle, X: w / 2, Y: h / 2, Ray: w * 3 / 8}
}

func (s *Shape) words() [2]int {
	if s.Type == CollisionCircle {
		return [2]int{s.X<<8 | s.Y&0xff, s.Ray}
	}
	return [2]int{s.X<<8 | s.Y&0xff, s.W<<8 | s.H&0xff}
}

func (s *Shape) bytes() []byte {
	if s.Type == CollisionCircle {
		return []byte{byte(s.X), byte(s.Y), byte(s.Ray >> 8), byte(s.Ray)}
	}
	return []byte{byte(s.X), byte(s.Y), byte(s.W), byte(s.H)}
}

// Collision holds the hit and attack shapes of a frame
type Collision struct {
	Hit    *Shape
	Attack *Shape
}

// Kind implements Resource
func (*Collision) Kind() Kind { return KindCollision }

func shapeType(s *Shape) CollisionType {
	if s == nil {
		return CollisionNone
	}
	return s.Type
}

func (c *Collision) hash(h *hasher) {
	for _, s := range []*Shape{c.Hit, c.Attack} {
		if s == nil {
			h.int(-1)
			continue
		}
		for _, v := range []int{int(s.Type), s.X, s.Y, s.W, s.H, s.Ray} {
			h.int(v)
		}
	}
}

func sameShape(a, b *Shape) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func (c *Collision) equal(o Resource) bool {
	oc := o.(*Collision)
	return sameShape(c.Hit, oc.Hit) && sameShape(c.Attack, oc.Attack)
}

func (c *Collision) size() int {
	s := 2 + 1 + 1
	switch {
	case c.Attack != nil:
		s += 8
	case c.Hit != nil:
		s += 4
	}
	return s
}

func (*Collision) bins() []*Entry { return nil }

func (c *Collision) export(w *Writer, e *Entry) error {
	w.decl("Collision", e.ID, 2, e.Global)

	hit, attack := shapeType(c.Hit), shapeType(c.Attack)
	w.dcw(int(hit)<<8 | int(attack)&0xff)
	_, _ = w.stream.Write([]byte{byte(hit), byte(attack)})

	switch {
	case c.Hit != nil:
		for _, v := range c.Hit.words() {
			w.dcw(v)
		}
		_, _ = w.stream.Write(c.Hit.bytes())
	case c.Attack != nil:
		// The attack shape is always the second
		w.dcw(0)
		w.dcw(0)
		_, _ = w.stream.Write(make([]byte, 4))
	}

	if c.Attack != nil {
		for _, v := range c.Attack.words() {
			w.dcw(v)
		}
		_, _ = w.stream.Write(c.Attack.bytes())
	}

	w.blank()

	return nil
}
