package resource

import (
	"bytes"
	"math"

	"github.com/bodgit/rescomp/pack"
	"github.com/bodgit/rescomp/tile"
)

// Bin is raw binary data. Packed is set once the bin has been exported.
type Bin struct {
	Data        []byte
	Align       int
	Compression pack.Compression
	Far         bool

	Packed *pack.Packed
}

// Kind implements Resource
func (*Bin) Kind() Kind { return KindBin }

func (b *Bin) hash(h *hasher) {
	h.bytes(b.Data)
	h.int(b.Align)
	h.int(int(b.Compression))
}

func (b *Bin) equal(o Resource) bool {
	ob := o.(*Bin)
	return b.Align == ob.Align && b.Compression == ob.Compression && bytes.Equal(b.Data, ob.Data)
}

func (b *Bin) size() int {
	if b.Packed != nil {
		return len(b.Packed.Data)
	}
	return len(b.Data)
}

func (*Bin) bins() []*Entry { return nil }

// Scheme returns the compression used once exported
func (b *Bin) Scheme() pack.Compression {
	if b.Packed == nil {
		return pack.None
	}
	return b.Packed.Scheme
}

func (b *Bin) export(w *Writer, e *Entry) error {
	w.stream.Align(b.Align)

	packed, err := w.packer.Pack(b.Data, b.Compression, w.stream.Bytes())
	if err != nil {
		return err
	}
	b.Packed = &packed

	if b.Compression != pack.None {
		logger := w.logger.WithField("id", e.ID)
		if packed.Scheme == pack.None {
			logger.Infof("'%s' not packed (size = %d)", e.ID, len(b.Data))
		} else {
			logger.Infof("'%s' packed with %s, size = %d (%d%% - origin size = %d)", e.ID, packed.Scheme, len(packed.Data), int(math.Round(float64(len(packed.Data))*100/float64(len(b.Data)))), len(b.Data))
		}
	}

	_, _ = w.stream.Write(packed.Data)
	if err := w.payload(e.ID, b.Align, packed); err != nil {
		return err
	}

	w.declArray("u8", e.ID, len(packed.Data), b.Align, e.Global)
	w.dcb(packed.Data)
	w.declArrayEnd(e.ID, e.Global)
	w.blank()

	return nil
}

func binOf(e *Entry) *Bin {
	if e == nil {
		return nil
	}
	b, _ := e.Resource.(*Bin)
	return b
}

func schemeOf(e *Entry) int {
	if b := binOf(e); b != nil {
		return b.Scheme().Tag()
	}
	return 0
}

// Palette is a list of VDP colors held in Bin
type Palette struct {
	Bin *Entry
}

// Kind implements Resource
func (*Palette) Kind() Kind { return KindPalette }

func (p *Palette) hash(h *hasher) {
	h.entry(p.Bin)
}

func (p *Palette) equal(o Resource) bool {
	return same(p.Bin, o.(*Palette).Bin)
}

func (*Palette) size() int { return 2 + 4 }

func (p *Palette) bins() []*Entry { return []*Entry{p.Bin} }

func (p *Palette) export(w *Writer, e *Entry) error {
	w.stream.Reset()
	w.decl("Palette", e.ID, 2, e.Global)
	w.dcw(len(binOf(p.Bin).Data) / 2)
	w.ref(p.Bin)
	w.blank()
	return nil
}

// Bitmap is a 4 bits per pixel image that is not split into tiles
type Bitmap struct {
	W, H    int
	Bin     *Entry
	Palette *Entry
}

// Kind implements Resource
func (*Bitmap) Kind() Kind { return KindBitmap }

func (b *Bitmap) hash(h *hasher) {
	h.int(b.W)
	h.int(b.H)
	h.entry(b.Bin)
	h.entry(b.Palette)
}

func (b *Bitmap) equal(o Resource) bool {
	ob := o.(*Bitmap)
	return b.W == ob.W && b.H == ob.H && same(b.Bin, ob.Bin) && same(b.Palette, ob.Palette)
}

func (*Bitmap) size() int { return 2 + 2 + 2 + 4 + 4 }

func (b *Bitmap) bins() []*Entry { return []*Entry{b.Bin} }

func (b *Bitmap) export(w *Writer, e *Entry) error {
	w.stream.Reset()
	w.decl("Bitmap", e.ID, 2, e.Global)
	w.dcw(schemeOf(b.Bin))
	w.dcw(b.W, b.H)
	w.ref(b.Palette)
	w.ref(b.Bin)
	w.blank()
	return nil
}

// Image is a tileset, tilemap and palette built from a single image
type Image struct {
	Tileset *Entry
	Tilemap *Entry
	Palette *Entry
}

// Kind implements Resource
func (*Image) Kind() Kind { return KindImage }

func (i *Image) hash(h *hasher) {
	h.entry(i.Tileset)
	h.entry(i.Tilemap)
	h.entry(i.Palette)
}

func (i *Image) equal(o Resource) bool {
	oi := o.(*Image)
	return same(i.Tileset, oi.Tileset) && same(i.Tilemap, oi.Tilemap) && same(i.Palette, oi.Palette)
}

func (*Image) size() int { return 4 + 4 + 4 }

func (*Image) bins() []*Entry { return nil }

func (i *Image) export(w *Writer, e *Entry) error {
	w.stream.Reset()
	w.decl("Image", e.ID, 2, e.Global)
	w.ref(i.Palette)
	w.ref(i.Tileset)
	w.ref(i.Tilemap)
	w.blank()
	return nil
}

// Tileset is a set of tiles stored in Bin at 4 bits per pixel. Set is kept
// for building tilemaps and maps against the tileset.
type Tileset struct {
	Set *tile.Set
	Bin *Entry
}

// Kind implements Resource
func (*Tileset) Kind() Kind { return KindTileset }

func (t *Tileset) hash(h *hasher) {
	h.entry(t.Bin)
}

func (t *Tileset) equal(o Resource) bool {
	return same(t.Bin, o.(*Tileset).Bin)
}

func (*Tileset) size() int { return 2 + 2 + 4 }

func (t *Tileset) bins() []*Entry { return []*Entry{t.Bin} }

// Tiles returns the number of tiles in the set
func (t *Tileset) Tiles() int {
	return t.Set.Len()
}

func (t *Tileset) export(w *Writer, e *Entry) error {
	w.stream.Reset()
	w.decl("TileSet", e.ID, 2, e.Global)
	w.dcw(schemeOf(t.Bin))
	w.dcw(t.Tiles())
	w.ref(t.Bin)
	w.blank()
	return nil
}

// Tilemap is a W by H grid of attribute words stored in Bin
type Tilemap struct {
	W, H int
	Bin  *Entry
}

// Kind implements Resource
func (*Tilemap) Kind() Kind { return KindTilemap }

func (t *Tilemap) hash(h *hasher) {
	h.int(t.W)
	h.int(t.H)
	h.entry(t.Bin)
}

func (t *Tilemap) equal(o Resource) bool {
	ot := o.(*Tilemap)
	return t.W == ot.W && t.H == ot.H && same(t.Bin, ot.Bin)
}

func (*Tilemap) size() int { return 2 + 2 + 2 + 4 }

func (t *Tilemap) bins() []*Entry { return []*Entry{t.Bin} }

func (t *Tilemap) export(w *Writer, e *Entry) error {
	w.stream.Reset()
	w.decl("TileMap", e.ID, 2, e.Global)
	w.dcw(schemeOf(t.Bin))
	w.dcw(t.W, t.H)
	w.ref(t.Bin)
	w.blank()
	return nil
}

// Map is a large map stored as metatiles, blocks of metatiles and rows of
// block indexes
type Map struct {
	WB, HB    int
	Rows      int
	Metatiles int
	Blocks    int
	Tilesets  []*Entry

	MetatileBin  *Entry
	BlockBin     *Entry
	BlockIndexes *Entry
	RowOffsets   *Entry
}

// Kind implements Resource
func (*Map) Kind() Kind { return KindMap }

func (m *Map) hash(h *hasher) {
	h.int(m.WB)
	h.int(m.HB)
	h.int(m.Rows)
	h.int(m.Metatiles)
	h.int(m.Blocks)
	for _, e := range m.Tilesets {
		h.entry(e)
	}
	for _, e := range m.bins() {
		h.entry(e)
	}
}

func (m *Map) equal(o Resource) bool {
	om := o.(*Map)
	return m.WB == om.WB && m.HB == om.HB && m.Rows == om.Rows &&
		m.Metatiles == om.Metatiles && m.Blocks == om.Blocks &&
		sameAll(m.Tilesets, om.Tilesets) && sameAll(m.bins(), om.bins())
}

func (*Map) size() int { return 2*6 + 4*4 }

// bins are in the order they are grouped in the output
func (m *Map) bins() []*Entry {
	return []*Entry{m.MetatileBin, m.BlockIndexes, m.RowOffsets, m.BlockBin}
}

func (m *Map) export(w *Writer, e *Entry) error {
	w.stream.Reset()
	w.decl("MapDefinition", e.ID, 2, e.Global)
	w.dcw(m.WB, m.HB)
	w.dcw(m.Rows)
	w.dcw(schemeOf(m.BlockIndexes)<<8 | schemeOf(m.BlockBin)<<4 | schemeOf(m.MetatileBin))
	w.dcw(m.Metatiles)
	w.dcw(m.Blocks)
	w.ref(m.MetatileBin)
	w.ref(m.BlockBin)
	w.ref(m.BlockIndexes)
	w.ref(m.RowOffsets)
	w.blank()
	return nil
}

// Align forces the following far bins onto an Align byte boundary
type Align struct {
	Align int
}

// Kind implements Resource
func (*Align) Kind() Kind { return KindAlign }

func (a *Align) hash(h *hasher) { h.int(a.Align) }

func (a *Align) equal(o Resource) bool { return a.Align == o.(*Align).Align }

func (*Align) size() int { return 0 }

func (*Align) bins() []*Entry { return nil }

func (a *Align) export(w *Writer, _ *Entry) error {
	w.align(a.Align)
	for a.Align > 1 && w.bin.Len()%a.Align != 0 {
		w.bin.WriteByte(0)
	}
	return nil
}

// Near keeps far bins in the near binary section
type Near struct{}

// Kind implements Resource
func (Near) Kind() Kind { return KindNear }

func (Near) hash(*hasher) {}

func (Near) equal(Resource) bool { return true }

func (Near) size() int { return 0 }

func (Near) bins() []*Entry { return nil }

func (Near) export(*Writer, *Entry) error { return nil }

// Ungroup disables grouping bins by the kind of resource owning them
type Ungroup struct{}

// Kind implements Resource
func (Ungroup) Kind() Kind { return KindUngroup }

func (Ungroup) hash(*hasher) {}

func (Ungroup) equal(Resource) bool { return true }

func (Ungroup) size() int { return 0 }

func (Ungroup) bins() []*Entry { return nil }

func (Ungroup) export(*Writer, *Entry) error { return nil }
