package tile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mirrored builds a 32x8 image holding a tile, its horizontal flip, a copy of
// the tile and a plain tile
func mirrored(t *testing.T) ([]byte, int, int) {
	a, err := New(gradient(), 0, false)
	require.NoError(t, err)
	b := a.Flip(true, false)

	w, h := 32, 8
	pix := make([]byte, w*h)
	for y := 0; y < Height; y++ {
		for x := 0; x < Width; x++ {
			pix[y*w+x] = a.Pixel(x, y)
			pix[y*w+8+x] = b.Pixel(x, y)
			pix[y*w+16+x] = a.Pixel(x, y)
			pix[y*w+24+x] = 4
		}
	}
	return pix, w, h
}

func TestParseOptimization(t *testing.T) {
	tables := []struct {
		in   string
		want Optimization
		err  bool
	}{
		{"", OptimizeAll, false},
		{"all", OptimizeAll, false},
		{"NONE", OptimizeNone, false},
		{"duplicate", OptimizeDuplicate, false},
		{"bogus", OptimizeNone, true},
	}

	for _, table := range tables {
		got, err := ParseOptimization(table.in)
		if table.err {
			assert.Error(t, err)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, table.want, got)
	}
}

func TestParseOrdering(t *testing.T) {
	o, err := ParseOrdering("column")
	require.NoError(t, err)
	assert.Equal(t, Column, o)

	_, err = ParseOrdering("diagonal")
	assert.Error(t, err)
}

func TestBuildFromImage(t *testing.T) {
	pix, w, h := mirrored(t)

	tables := []struct {
		opt      Optimization
		addBlank bool
		want     int
	}{
		{OptimizeAll, false, 2},
		{OptimizeDuplicate, false, 3},
		{OptimizeNone, false, 4},
		{OptimizeAll, true, 3},
	}

	for _, table := range tables {
		s := BuildFromImage(pix, w, h, w/Width, h/Height, table.opt, Row, table.addBlank)
		assert.Equal(t, table.want, s.Len())
	}
}

func TestBuildFromImageIdempotent(t *testing.T) {
	pix, w, h := mirrored(t)

	// The same grid twice, stacked vertically
	double := append(append([]byte{}, pix...), pix...)

	once := BuildFromImage(pix, w, h, w/Width, h/Height, OptimizeAll, Row, false)
	twice := BuildFromImage(double, w, h*2, w/Width, h*2/Height, OptimizeAll, Row, false)
	assert.Equal(t, once.Len(), twice.Len())
	assert.True(t, once.Equal(twice))
}

func TestIndex(t *testing.T) {
	a, err := New(gradient(), 0, false)
	require.NoError(t, err)

	s := NewSet()
	s.Add(a)

	assert.Equal(t, 0, s.Index(a, OptimizeAll))
	assert.Equal(t, 0, s.Index(a.Flip(true, true), OptimizeAll))
	assert.Equal(t, -1, s.Index(a.Flip(true, true), OptimizeDuplicate))
	assert.Equal(t, -1, s.Index(a, OptimizeNone))
	assert.Equal(t, -1, s.Index(Blank(), OptimizeAll))
}

func TestBuildFromSprites(t *testing.T) {
	pix, w, h := mirrored(t)
	s := BuildFromSprites(pix, w, h, []Rect{{X: 0, Y: 0, W: 16, H: 8}, {X: 16, Y: 0, W: 8, H: 8}})
	assert.Equal(t, 3, s.Len())

	b, err := s.MarshalBinary()
	require.NoError(t, err)
	assert.Len(t, b, 3*Bytes)
}
