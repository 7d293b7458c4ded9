package rescomp

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strings"

	"github.com/bodgit/rescomp/blockmap"
	"github.com/bodgit/rescomp/image"
	"github.com/bodgit/rescomp/pack"
	"github.com/bodgit/rescomp/resource"
	"github.com/bodgit/rescomp/tile"
	"github.com/bodgit/rescomp/tilemap"
	"github.com/sirupsen/logrus"
)

var (
	errUnknownType  = errors.New("rescomp: unknown resource type")
	errDefinition   = errors.New("rescomp: wrong definition")
	errAutoBin      = errors.New("rescomp: cannot use AUTO compression on BIN resource")
	errOddWidth     = errors.New("rescomp: even width required")
	errColorIndex   = errors.New("rescomp: color index out of range")
	errNotFound     = errors.New("rescomp: resource not found")
	errNotTileset   = errors.New("rescomp: resource is not a tileset")
	errUnsupported  = errors.New("rescomp: unsupported input")
	errBadDimension = errors.New("rescomp: invalid sprite dimension")
)

const (
	maxPaletteColors = 64
	maxSubPalette    = 16
)

// unit is the state of compiling one resource file
type unit struct {
	ctx    context.Context
	config Config
	dir    string
	reg    *resource.Registry
	files  []string
	logger logrus.FieldLogger
}

func newUnit(ctx context.Context, c *Compiler, dir string) *unit {
	return &unit{
		ctx:    ctx,
		config: c.config,
		dir:    dir,
		reg:    resource.NewRegistry(c.logger),
		logger: c.logger,
	}
}

type builder struct {
	usage string
	min   int
	build func(*unit, Declaration) (*resource.Entry, error)
}

var builders = map[string]builder{
	"ALIGN":   {"ALIGN [alignment]", 1, (*unit).align},
	"UNGROUP": {"UNGROUP", 1, (*unit).ungroup},
	"NEAR":    {"NEAR", 1, (*unit).near},
	"BIN":     {"BIN name file [align [size_align [fill [compression [far]]]]]", 3, (*unit).bin},
	"PALETTE": {"PALETTE name file", 3, (*unit).palette},
	"BITMAP":  {"BITMAP name file [compression]", 3, (*unit).bitmap},
	"TILESET": {"TILESET name file [compression [opt [ordering]]]", 3, (*unit).tileset},
	"TILEMAP": {"TILEMAP name file tileset_id [compression [opt [map_base [ordering]]]]", 4, (*unit).tilemap},
	"IMAGE":   {"IMAGE name file [compression [opt [map_base]]]", 3, (*unit).image},
	"MAP":     {"MAP name file tileset_id [compression [map_base]]", 4, (*unit).mapping},
	"OBJECTS": {"OBJECTS name tmx_file layer field_defs [sortby:field] [decl_type [type_filter]]", 5, (*unit).objects},
	"SPRITE":  {"SPRITE name file width height [compression [time [collision [opt_type [opt_level [opt_duplicate]]]]]]", 5, (*unit).sprite},
}

// execute builds the resources of d. Nothing is added to the registry if
// it fails.
func (u *unit) execute(d Declaration) error {
	b, ok := builders[d.Type()]
	if !ok {
		return fmt.Errorf("%s:%d: %w '%s'", d.File, d.Line, errUnknownType, d.Arg(0))
	}

	wrap := func(err error) error {
		return fmt.Errorf("%s:%d: %s '%s': %w", d.File, d.Line, d.Type(), d.ID(), err)
	}

	if d.Len() < b.min {
		return wrap(fmt.Errorf("%w: %s", errDefinition, b.usage))
	}

	e, err := b.build(u, d)
	if err != nil {
		return wrap(err)
	}

	u.logger.WithFields(logrus.Fields{
		"file": d.File,
		"line": d.Line,
	}).Infof("'%s' raw size: %d bytes", e.ID, e.Size())

	return nil
}

// path resolves file against the directory of the resource file and
// records it as a dependency
func (u *unit) path(file string) string {
	file = filepath.FromSlash(strings.ReplaceAll(file, "\\", "/"))
	if !filepath.IsAbs(file) {
		file = filepath.Join(u.dir, file)
	}
	u.files = append(u.files, file)
	return file
}

func (u *unit) load(file string) (*image.Indexed, error) {
	return image.Load(u.path(file))
}

func compression(d Declaration, i int) (pack.Compression, error) {
	return pack.ParseCompression(d.Arg(i))
}

func mapBase(d Declaration, i int) (tilemap.Base, error) {
	v, err := parseInt(d.Arg(i), 0)
	if err != nil {
		return tilemap.Base{}, fmt.Errorf("map base: %w", err)
	}
	return tilemap.ParseBase(tile.Attr(v)), nil
}

func checkBit6(m *image.Indexed) error {
	for _, p := range m.Pix {
		if p&0x40 != 0 {
			return fmt.Errorf("%w: color index in [64..127] range, max 64 colors", errColorIndex)
		}
	}
	return nil
}

// addBin adds an internal bin holding data
func (u *unit) addBin(id string, data []byte, c pack.Compression, far bool) *resource.Entry {
	return u.reg.Add(id, &resource.Bin{
		Data:        data,
		Align:       2,
		Compression: c,
		Far:         far,
	}, true)
}

// addPalette adds a palette of at most max colors. Palettes always live in
// the near binary section.
func (u *unit) addPalette(id string, p color.Palette, max int, internal bool) *resource.Entry {
	max = (max + 15) &^ 15
	if len(p) > max {
		p = p[:max]
	}
	bin := u.addBin(id+"_data", image.MarshalPalette(p), pack.None, false)
	return u.reg.Add(id, &resource.Palette{Bin: bin}, internal)
}

// addTileset adds the tileset set stored in an internal bin
func (u *unit) addTileset(id string, set *tile.Set, c pack.Compression, internal bool) (*resource.Entry, error) {
	if set.Len() > tile.MaxTiles {
		return nil, fmt.Errorf("%w: %d tiles", tilemap.ErrTooManyTiles, set.Len())
	}
	data, err := set.MarshalBinary()
	if err != nil {
		return nil, err
	}
	bin := u.addBin(id+"_data", data, c, true)
	return u.reg.Add(id, &resource.Tileset{Set: set, Bin: bin}, internal), nil
}

// addTilemap adds the tilemap m stored in an internal bin
func (u *unit) addTilemap(id string, m *tilemap.Tilemap, c pack.Compression, internal bool) (*resource.Entry, error) {
	data, err := m.MarshalBinary()
	if err != nil {
		return nil, err
	}
	bin := u.addBin(id+"_data", data, c, true)
	return u.reg.Add(id, &resource.Tilemap{W: m.W, H: m.H, Bin: bin}, internal), nil
}

// lookupTileset finds the declared tileset id
func (u *unit) lookupTileset(id string) (*resource.Entry, *resource.Tileset, error) {
	e := u.reg.Lookup(id)
	if e == nil {
		return nil, nil, fmt.Errorf("%w: tileset '%s'", errNotFound, id)
	}
	ts, ok := e.Resource.(*resource.Tileset)
	if !ok {
		return nil, nil, fmt.Errorf("%w: '%s' is %s", errNotTileset, id, e.Kind())
	}
	return e, ts, nil
}

// withoutPlain returns the tiles of s that are not a single color. Those
// are drawn with the plain tiles the VDP is set up with when a base tile
// index is in use.
func withoutPlain(s *tile.Set) *tile.Set {
	out := tile.NewSet()
	for _, t := range s.Tiles() {
		if _, ok := t.Plain(); !ok {
			out.Add(t)
		}
	}
	return out
}

func (u *unit) align(d Declaration) (*resource.Entry, error) {
	n, err := parseInt(d.Arg(1), u.config.DefaultAlign)
	if err != nil {
		return nil, err
	}
	return u.reg.Add("align", &resource.Align{Align: n}, false), nil
}

func (u *unit) ungroup(Declaration) (*resource.Entry, error) {
	return u.reg.Add("ungroup", resource.Ungroup{}, false), nil
}

func (u *unit) near(Declaration) (*resource.Entry, error) {
	return u.reg.Add("near", resource.Near{}, false), nil
}

func (u *unit) bin(d Declaration) (*resource.Entry, error) {
	align, err := parseInt(d.Arg(3), 2)
	if err != nil {
		return nil, fmt.Errorf("align: %w", err)
	}
	sizeAlign, err := parseInt(d.Arg(4), 2)
	if err != nil {
		return nil, fmt.Errorf("size align: %w", err)
	}
	fill, err := parseInt(d.Arg(5), 0)
	if err != nil {
		return nil, fmt.Errorf("fill: %w", err)
	}
	c, err := compression(d, 6)
	if err != nil {
		return nil, err
	}
	if c == pack.Auto {
		return nil, errAutoBin
	}
	far := parseBool(d.Arg(7), true)

	data, err := os.ReadFile(u.path(d.Arg(2)))
	if err != nil {
		return nil, err
	}

	return u.reg.Add(d.ID(), &resource.Bin{
		Data:        pack.SizeAlign(data, sizeAlign, byte(fill)),
		Align:       align,
		Compression: c,
		Far:         far,
	}, false), nil
}

func (u *unit) palette(d Declaration) (*resource.Entry, error) {
	p, err := image.LoadPalette(u.path(d.Arg(2)))
	if err != nil {
		return nil, err
	}
	return u.addPalette(d.ID(), p, maxPaletteColors, false), nil
}

// pack4bpp packs pairs of pixels into bytes, leftmost pixel in the high
// nibble
func pack4bpp(pix []byte) []byte {
	out := make([]byte, (len(pix)+1)/2)
	for i, p := range pix {
		if i&1 == 0 {
			out[i/2] = (p & 0x0f) << 4
		} else {
			out[i/2] |= p & 0x0f
		}
	}
	return out
}

func (u *unit) bitmap(d Declaration) (*resource.Entry, error) {
	c, err := compression(d, 3)
	if err != nil {
		return nil, err
	}

	m, err := u.load(d.Arg(2))
	if err != nil {
		return nil, err
	}
	if m.W&1 != 0 {
		return nil, fmt.Errorf("%w: width is %d", errOddWidth, m.W)
	}
	if m.MaxIndex() >= maxSubPalette {
		return nil, fmt.Errorf("%w: BITMAP requires max 16 colors", errColorIndex)
	}

	bin := u.addBin(d.ID()+"_data", pack4bpp(m.Pix), c, true)
	pal := u.addPalette(d.ID()+"_palette", m.Palette, maxSubPalette, true)

	return u.reg.Add(d.ID(), &resource.Bitmap{W: m.W, H: m.H, Bin: bin, Palette: pal}, false), nil
}

func (u *unit) tileset(d Declaration) (*resource.Entry, error) {
	c, err := compression(d, 3)
	if err != nil {
		return nil, err
	}
	opt, err := tile.ParseOptimization(d.Arg(4))
	if err != nil {
		return nil, err
	}
	order, err := tile.ParseOrdering(d.Arg(5))
	if err != nil {
		return nil, err
	}

	if strings.EqualFold(filepath.Ext(d.Arg(2)), ".tsx") {
		return nil, fmt.Errorf("%w: Tiled tilesets", errUnsupported)
	}

	m, err := u.load(d.Arg(2))
	if err != nil {
		return nil, err
	}
	if err := m.CheckAlignment(); err != nil {
		return nil, err
	}

	set := tile.BuildFromImage(m.Pix, m.W, m.H, m.W/tile.Width, m.H/tile.Height, opt, order, true)

	return u.addTileset(d.ID(), set, c, false)
}

func (u *unit) tilemap(d Declaration) (*resource.Entry, error) {
	if strings.EqualFold(filepath.Ext(d.Arg(2)), ".tmx") {
		return nil, fmt.Errorf("%w: Tiled tile layers", errUnsupported)
	}

	c, err := compression(d, 4)
	if err != nil {
		return nil, err
	}
	opt, err := tile.ParseOptimization(d.Arg(5))
	if err != nil {
		return nil, err
	}
	base, err := mapBase(d, 6)
	if err != nil {
		return nil, err
	}
	order, err := tile.ParseOrdering(d.Arg(7))
	if err != nil {
		return nil, err
	}

	_, ts, err := u.lookupTileset(d.Arg(3))
	if err != nil {
		return nil, err
	}

	m, err := u.load(d.Arg(2))
	if err != nil {
		return nil, err
	}
	if err := m.CheckAlignment(); err != nil {
		return nil, err
	}

	tm, err := tilemap.Build(ts.Set, m.Pix, m.W, m.H, m.W/tile.Width, m.H/tile.Height, base, opt, order)
	if err != nil {
		return nil, err
	}

	return u.addTilemap(d.ID(), tm, c, false)
}

func (u *unit) image(d Declaration) (*resource.Entry, error) {
	c, err := compression(d, 3)
	if err != nil {
		return nil, err
	}
	opt, err := tile.ParseOptimization(d.Arg(4))
	if err != nil {
		return nil, err
	}
	base, err := mapBase(d, 5)
	if err != nil {
		return nil, err
	}

	m, err := u.load(d.Arg(2))
	if err != nil {
		return nil, err
	}
	if err := m.CheckAlignment(); err != nil {
		return nil, err
	}
	if err := checkBit6(m); err != nil {
		return nil, err
	}

	wt, ht := m.W/tile.Width, m.H/tile.Height
	set := tile.BuildFromImage(m.Pix, m.W, m.H, wt, ht, opt, tile.Row, false)
	if base.SystemTiles() && opt != tile.OptimizeNone {
		set = withoutPlain(set)
	}

	ts, err := u.addTileset(d.ID()+"_tileset", set, c, true)
	if err != nil {
		return nil, err
	}

	tm, err := tilemap.Build(set, m.Pix, m.W, m.H, wt, ht, base, opt, tile.Row)
	if err != nil {
		return nil, err
	}
	tmap, err := u.addTilemap(d.ID()+"_tilemap", tm, c, true)
	if err != nil {
		return nil, err
	}

	pal := u.addPalette(d.ID()+"_palette", m.Palette, maxPaletteColors, true)

	return u.reg.Add(d.ID(), &resource.Image{Tileset: ts, Tilemap: tmap, Palette: pal}, false), nil
}

func (u *unit) mapping(d Declaration) (*resource.Entry, error) {
	if strings.EqualFold(filepath.Ext(d.Arg(2)), ".tmx") {
		return nil, fmt.Errorf("%w: Tiled tile layers", errUnsupported)
	}

	c, err := compression(d, 4)
	if err != nil {
		return nil, err
	}
	base, err := mapBase(d, 5)
	if err != nil {
		return nil, err
	}

	// Several tilesets are loaded back to back in VRAM so the map indexes
	// against all of their tiles in the order given, duplicates included
	var (
		tilesets []*resource.Entry
		set      *tile.Set
	)
	for _, id := range strings.Split(d.Arg(3), ",") {
		e, ts, err := u.lookupTileset(id)
		if err != nil {
			return nil, err
		}
		tilesets = append(tilesets, e)
		if set == nil {
			set = ts.Set
			continue
		}
		if len(tilesets) == 2 {
			// Copy so the first tileset keeps its own tiles
			all := tile.NewSet()
			for _, t := range set.Tiles() {
				all.Add(t)
			}
			set = all
		}
		for _, t := range ts.Set.Tiles() {
			set.Add(t)
		}
	}

	m, err := u.load(d.Arg(2))
	if err != nil {
		return nil, err
	}
	if err := m.CheckAlignment(); err != nil {
		return nil, err
	}

	bm, err := blockmap.Build(set, m.Pix, m.W, m.H, base)
	if err != nil {
		return nil, err
	}

	packed := c != pack.None
	tables := blockmap.Tables{Metatiles: packed, Blocks: packed, BlockIndexes: packed}
	soft, err := bm.Check(tables, u.config.MapLimits)
	if err != nil {
		return nil, err
	}
	if soft {
		u.logger.WithField("id", d.ID()).Warnf("'%s' needs %d bytes of memory to unpack, more than %d bytes", d.ID(), bm.UnpackedSize(tables), u.config.MapLimits.Soft)
	}

	metatiles, err := bm.MetatileData()
	if err != nil {
		return nil, err
	}
	blocks, err := bm.BlockData()
	if err != nil {
		return nil, err
	}
	indexes, err := bm.BlockIndexData()
	if err != nil {
		return nil, err
	}
	offsets, err := bm.RowOffsetData()
	if err != nil {
		return nil, err
	}

	return u.reg.Add(d.ID(), &resource.Map{
		WB:           bm.WB,
		HB:           bm.HB,
		Rows:         len(bm.Rows),
		Metatiles:    len(bm.Metatiles),
		Blocks:       len(bm.Blocks),
		Tilesets:     tilesets,
		MetatileBin:  u.addBin(d.ID()+"_metatiles", metatiles, c, true),
		BlockBin:     u.addBin(d.ID()+"_mapBlocks", blocks, c, true),
		BlockIndexes: u.addBin(d.ID()+"_mapBlockIndexes", indexes, c, true),
		RowOffsets:   u.addBin(d.ID()+"_mapBlockRowOffsets", offsets, pack.None, true),
	}, false), nil
}

func (u *unit) objects(d Declaration) (*resource.Entry, error) {
	defs, err := resource.ParseFieldDefs(d.Arg(4))
	if err != nil {
		return nil, err
	}

	q := resource.ObjectQuery{
		Layer:  d.Arg(3),
		Fields: defs,
	}
	i := 5
	if strings.HasPrefix(strings.ToLower(d.Arg(i)), "sortby:") {
		q.SortBy = d.Arg(i)[len("sortby:"):]
		i++
	}
	typ := d.Arg(i)
	q.Type = d.Arg(i + 1)

	file := u.path(d.Arg(2))
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	objects, err := resource.LoadObjects(f, file, d.ID(), q)
	if err != nil {
		return nil, err
	}

	return u.reg.Add(d.ID(), &resource.Objects{Type: typ, Objects: objects}, false), nil
}
