package rescomp

import (
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/bodgit/rescomp/blockmap"
	"github.com/bodgit/rescomp/pack"
	"github.com/bodgit/rescomp/resource"
	"github.com/bodgit/rescomp/tile"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runUnit(t *testing.T, dir, res string) (*unit, *test.Hook, error) {
	t.Helper()
	return runUnitConfig(t, dir, res, DefaultConfig())
}

func runUnitConfig(t *testing.T, dir, res string, config Config) (*unit, *test.Hook, error) {
	t.Helper()

	c, hook := newTestCompiler()
	c.config = config
	u := newUnit(context.Background(), c, dir)

	decls, err := Parse(strings.NewReader(res), filepath.Join(dir, "test.res"))
	require.NoError(t, err)

	for _, d := range decls {
		if err := u.execute(d); err != nil {
			return u, hook, err
		}
	}
	return u, hook, nil
}

func TestExecuteErrors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "d.bin", []byte{1, 2, 3})

	tables := []struct {
		name string
		res  string
		err  error
		msg  string
	}{
		{
			"auto",
			`BIN data "d.bin" 2 2 0 AUTO`,
			errAutoBin,
			"test.res:1: BIN 'data':",
		},
		{
			"unknown",
			"\n\nFOO thing",
			errUnknownType,
			"test.res:3:",
		},
		{
			"short",
			"BIN data",
			errDefinition,
			"BIN name file",
		},
		{
			"missing",
			`BIN data "nope.bin"`,
			os.ErrNotExist,
			"test.res:1: BIN 'data':",
		},
		{
			"tileset",
			`TILEMAP tm "x.png" nothing`,
			errNotFound,
			"tileset 'nothing'",
		},
		{
			"tiled",
			`MAP m "level.tmx" ts`,
			errUnsupported,
			"Tiled",
		},
	}

	for _, table := range tables {
		t.Run(table.name, func(t *testing.T) {
			u, _, err := runUnit(t, dir, table.res)
			require.Error(t, err)
			assert.True(t, errors.Is(err, table.err), err.Error())
			assert.Contains(t, err.Error(), table.msg)
			assert.Equal(t, 0, u.reg.Len())
		})
	}
}

func TestBin(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "d.bin", []byte{1, 2, 3})

	u, hook, err := runUnit(t, dir, `
// Comments and blank lines are skipped
BIN data "d.bin" 16 4 0xff NONE FALSE
BIN copy "d.bin" 16 4 0xff
`)
	require.NoError(t, err)
	require.Equal(t, 2, u.reg.Len())

	b := u.reg.Lookup("data").Resource.(*resource.Bin)
	assert.Equal(t, []byte{1, 2, 3, 0xff}, b.Data)
	assert.Equal(t, 16, b.Align)
	assert.Equal(t, pack.None, b.Compression)
	assert.False(t, b.Far)
	assert.True(t, u.reg.Lookup("copy").Resource.(*resource.Bin).Far)

	assert.True(t, hasMessage(hook, "'data' raw size: 4 bytes"))
	assert.Equal(t, 3, hook.AllEntries()[0].Data["line"])
	assert.Equal(t, []string{filepath.Join(dir, "d.bin"), filepath.Join(dir, "d.bin")}, u.files)
}

func TestImageSystemTiles(t *testing.T) {
	dir := t.TempDir()
	// A plain tile of color 3 then a tile with two colors
	writePNG(t, dir, "i.png", 16, 8, func(x, y int) uint8 {
		if x < 8 || y < 4 {
			return 3
		}
		return 5
	})

	tables := []struct {
		name    string
		base    string
		tiles   int
		indexes []int
	}{
		{"plain", "0", 2, []int{0, 1}},
		{"system", "0x0100", 1, []int{3, 0x100}},
	}

	for _, table := range tables {
		t.Run(table.name, func(t *testing.T) {
			u, _, err := runUnit(t, dir, `IMAGE img "i.png" NONE ALL `+table.base)
			require.NoError(t, err)

			img := u.reg.Lookup("img").Resource.(*resource.Image)
			ts := img.Tileset.Resource.(*resource.Tileset)
			assert.Equal(t, table.tiles, ts.Set.Len())
			for _, tl := range ts.Set.Tiles() {
				_, plain := tl.Plain()
				assert.False(t, plain && table.base != "0")
			}

			data := img.Tilemap.Resource.(*resource.Tilemap).Bin.Resource.(*resource.Bin).Data
			require.Len(t, data, 4)
			for i, want := range table.indexes {
				a := tile.Attr(binary.BigEndian.Uint16(data[i*2:]))
				assert.Equal(t, want, a.Index())
			}

			// Internal parts are not public
			assert.False(t, img.Tileset.Global)
			assert.True(t, u.reg.Lookup("img").Global)
		})
	}
}

func TestImageSharedTileset(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, dir, "i.png", 16, 16, checker)

	u, hook, err := runUnit(t, dir, `
IMAGE a "i.png" NONE
IMAGE b "i.png" NONE
`)
	require.NoError(t, err)

	a := u.reg.Lookup("a").Resource.(*resource.Image)
	b := u.reg.Lookup("b").Resource.(*resource.Image)
	assert.Same(t, a.Tileset, b.Tileset)
	assert.Same(t, a.Palette, b.Palette)
	assert.True(t, hasMessage(hook, "'b_tileset' has same content as 'a_tileset'"))
}

func TestBitmap(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, dir, "b.png", 4, 2, func(x, y int) uint8 { return uint8(x + y*4) })
	writePNG(t, dir, "odd.png", 3, 2, solid(1))

	u, _, err := runUnit(t, dir, `BITMAP bmp "b.png"`)
	require.NoError(t, err)

	bmp := u.reg.Lookup("bmp").Resource.(*resource.Bitmap)
	assert.Equal(t, 4, bmp.W)
	assert.Equal(t, 2, bmp.H)
	assert.Equal(t, []byte{0x01, 0x23, 0x45, 0x67}, bmp.Bin.Resource.(*resource.Bin).Data)

	_, _, err = runUnit(t, dir, `BITMAP bmp "odd.png"`)
	assert.True(t, errors.Is(err, errOddWidth))
}

func TestTilesetAndTilemap(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, dir, "ts.png", 16, 8, func(x, y int) uint8 {
		if x < 8 {
			return 1
		}
		return uint8(y%2 + 2)
	})
	writePNG(t, dir, "tm.png", 8, 16, func(x, y int) uint8 {
		if y < 8 {
			return uint8(y%2 + 2)
		}
		return 1
	})

	u, _, err := runUnit(t, dir, `
TILESET ts "ts.png" NONE
TILEMAP tm "tm.png" ts NONE ALL 0x0010
`)
	require.NoError(t, err)

	// A blank tile is appended to a declared tileset
	ts := u.reg.Lookup("ts").Resource.(*resource.Tileset)
	assert.Equal(t, 3, ts.Set.Len())

	tm := u.reg.Lookup("tm").Resource.(*resource.Tilemap)
	assert.Equal(t, 1, tm.W)
	assert.Equal(t, 2, tm.H)
	data := tm.Bin.Resource.(*resource.Bin).Data
	require.Len(t, data, 4)
	assert.Equal(t, 1+0x10, tile.Attr(binary.BigEndian.Uint16(data)).Index())
	assert.Equal(t, 1, tile.Attr(binary.BigEndian.Uint16(data[2:])).Index())
}

func TestMap(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, dir, "m.png", 256, 256, checker)

	u, _, err := runUnit(t, dir, `
TILESET ts "m.png" NONE
MAP lvl "m.png" ts LZ4
`)
	require.NoError(t, err)

	m := u.reg.Lookup("lvl").Resource.(*resource.Map)
	assert.Equal(t, 2, m.WB)
	assert.Equal(t, 2, m.HB)
	require.Len(t, m.Tilesets, 1)
	assert.Equal(t, "ts", m.Tilesets[0].ID)
	assert.Equal(t, pack.LZ4, m.MetatileBin.Resource.(*resource.Bin).Compression)
	assert.Equal(t, pack.None, m.RowOffsets.Resource.(*resource.Bin).Compression)
	assert.Equal(t, "lvl_mapBlockRowOffsets", m.RowOffsets.ID)
}

func TestMapLimits(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, dir, "m.png", 256, 256, checker)

	tables := []struct {
		name        string
		compression string
		limits      blockmap.Limits
		err         error
		warning     bool
	}{
		{
			"hard",
			"LZ4",
			blockmap.Limits{Hard: 64, Soft: 32},
			blockmap.ErrTooBig,
			false,
		},
		{
			"soft",
			"LZ4",
			blockmap.Limits{Hard: 1 << 20, Soft: 64},
			nil,
			true,
		},
		{
			"uncompressed",
			"NONE",
			blockmap.Limits{Hard: 64, Soft: 32},
			nil,
			false,
		},
	}

	for _, table := range tables {
		t.Run(table.name, func(t *testing.T) {
			config := DefaultConfig()
			config.MapLimits = table.limits

			u, hook, err := runUnitConfig(t, dir, `
TILESET ts "m.png" NONE
MAP lvl "m.png" ts `+table.compression, config)
			if table.err != nil {
				assert.True(t, errors.Is(err, table.err))
				assert.Nil(t, u.reg.Lookup("lvl"))
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, u.reg.Lookup("lvl"))

			warned := false
			for _, e := range hook.AllEntries() {
				if e.Level == logrus.WarnLevel && strings.Contains(e.Message, "bytes of memory to unpack") {
					warned = true
				}
			}
			assert.Equal(t, table.warning, warned)
		})
	}
}

func TestMapTilesets(t *testing.T) {
	dir := t.TempDir()
	a := func(x, y int) uint8 { return uint8(x%8 + 1) }
	b := func(x, y int) uint8 { return uint8(y%8 + 1) }
	c := func(x, y int) uint8 { return uint8((x%8+y%8)%15 + 1) }
	strip := func(tiles ...func(int, int) uint8) func(int, int) uint8 {
		return func(x, y int) uint8 { return tiles[x/8](x, y) }
	}
	writePNG(t, dir, "a.png", 16, 8, strip(a, b))
	writePNG(t, dir, "b.png", 16, 8, strip(a, c))
	writePNG(t, dir, "m.png", 24, 8, strip(a, b, c))

	u, _, err := runUnit(t, dir, `
TILESET first "a.png" NONE
TILESET second "b.png" NONE
MAP lvl "m.png" first,second NONE
`)
	require.NoError(t, err)

	m := u.reg.Lookup("lvl").Resource.(*resource.Map)
	require.Len(t, m.Tilesets, 2)

	// Both tilesets end with a blank tile and share a, so c follows the
	// three tiles of the first one
	data := m.MetatileBin.Resource.(*resource.Bin).Data
	require.GreaterOrEqual(t, len(data), 2*blockmap.MetatileSize*blockmap.MetatileSize*2)
	assert.Equal(t, uint16(0), binary.BigEndian.Uint16(data[0:]))
	assert.Equal(t, uint16(1), binary.BigEndian.Uint16(data[2:]))
	assert.Equal(t, uint16(4), binary.BigEndian.Uint16(data[8:]))

	// The first tileset is left untouched
	assert.Equal(t, 3, u.reg.Lookup("first").Resource.(*resource.Tileset).Set.Len())
}

func TestSprite(t *testing.T) {
	dir := t.TempDir()
	// Three opaque frames, two of them identical, then a transparent one
	writePNG(t, dir, "s.png", 128, 32, func(x, y int) uint8 {
		switch {
		case x >= 96:
			return 0
		case x >= 64 && y < 8:
			return 2
		default:
			return 1
		}
	})

	tables := []struct {
		name   string
		dedup  string
		timers []int
	}{
		{"all", "FALSE", []int{3, 5, 5}},
		{"dedup", "TRUE", []int{8, 5}},
	}

	for _, table := range tables {
		t.Run(table.name, func(t *testing.T) {
			u, hook, err := runUnit(t, dir, `SPRITE spr "s.png" 4 32p NONE "[[3,5]]" BOX BALANCED FAST `+table.dedup)
			require.NoError(t, err)

			spr := u.reg.Lookup("spr").Resource.(*resource.Sprite)
			assert.Equal(t, 4, spr.W)
			assert.Equal(t, 4, spr.H)
			assert.Equal(t, 16, spr.MaxTiles)
			assert.Equal(t, 1, spr.MaxSprites)
			require.Len(t, spr.Animations, 1)

			anim := spr.Animations[0].Resource.(*resource.SpriteAnimation)
			require.Len(t, anim.Frames, len(table.timers))
			for i, e := range anim.Frames {
				f := e.Resource.(*resource.SpriteFrame)
				assert.Equal(t, table.timers[i], f.Timer)
				assert.True(t, f.Optimisable)
				require.Len(t, f.Sprites, 1)
				require.NotNil(t, f.Collision)
			}

			assert.True(t, hasMessage(hook, "Sprite frame 'spr_animation0_frame0' - 1 VDP sprites and 16 tiles"))
		})
	}
}

func TestSpriteErrors(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, dir, "s.png", 32, 32, solid(1))
	writePNG(t, dir, "wide.png", 264, 8, solid(1))

	for _, res := range []string{
		`SPRITE spr "s.png" 0 4`,
		`SPRITE spr "s.png" 12p 4`,
		`SPRITE spr "s.png" 3f 4`,
		`SPRITE spr "wide.png" 33 1`,
	} {
		_, _, err := runUnit(t, dir, res)
		assert.True(t, errors.Is(err, errBadDimension), res)
	}
}

func TestCompileFile(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, dir, "i.png", 16, 16, checker)
	writeFile(t, dir, "d.bin", []byte(strings.Repeat("rescomp ", 256)))
	in := writeFile(t, dir, "test.res", []byte(`
IMAGE img "i.png" NONE
BIN data "d.bin" 2 2 0 LZ4
`))

	c, hook := newTestCompiler()
	out, err := c.CompileFile(context.Background(), in)
	require.NoError(t, err)

	assert.Contains(t, out.Header, "extern const Image img;\n")
	assert.Contains(t, out.Header, "extern const u8 data[")
	assert.Contains(t, out.Asm, ".global img\n")
	assert.NotContains(t, out.Asm, ".global img_tileset\n")
	assert.Equal(t, []string{in, filepath.Join(dir, "i.png"), filepath.Join(dir, "d.bin")}, out.Files)

	assert.True(t, out.Symbols.Verify(out.Binary))
	e, ok := out.Symbols.Lookup("data")
	require.True(t, ok)
	assert.Equal(t, int8(pack.LZ4.Tag()), e.Scheme)
	assert.Less(t, int(e.Size), 2048)

	assert.Greater(t, out.Summary.Packed, 0)
	assert.Equal(t, 2048, out.Summary.Origin)
	assert.True(t, hasMessage(hook, "Binary data: "+strconv.Itoa(out.Summary.Binary())+" bytes"))
}

func TestCompileCancelled(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "d.bin", []byte{1, 2})
	in := writeFile(t, dir, "test.res", []byte(`BIN data "d.bin"`))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c, _ := newTestCompiler()
	_, err := c.CompileFile(ctx, in)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestSpriteTransparentAnimation(t *testing.T) {
	dir := t.TempDir()
	// The second row of frames is fully transparent
	writePNG(t, dir, "s.png", 32, 32, func(x, y int) uint8 {
		if y < 16 {
			return 1
		}
		return 0
	})

	u, _, err := runUnit(t, dir, `SPRITE spr "s.png" 2 2`)
	require.NoError(t, err)

	spr := u.reg.Lookup("spr").Resource.(*resource.Sprite)
	require.Len(t, spr.Animations, 1)
	assert.Equal(t, "spr_animation0", spr.Animations[0].ID)
	assert.Len(t, spr.Animations[0].Resource.(*resource.SpriteAnimation).Frames, 2)
	assert.Nil(t, u.reg.Lookup("spr_animation1"))
}
