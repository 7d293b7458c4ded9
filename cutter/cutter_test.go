package cutter

import (
	"context"
	"io"
	"math/rand"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func filled(w, h int) []byte {
	pix := make([]byte, w*h)
	for i := range pix {
		pix[i] = 3
	}
	return pix
}

// blob returns a frame with a few random opaque ellipses
func blob(w, h int, seed int64) []byte {
	r := rand.New(rand.NewSource(seed))
	pix := make([]byte, w*h)
	for n := 0; n < 4; n++ {
		cx, cy := r.Intn(w), r.Intn(h)
		rx, ry := 4+r.Intn(w/3), 4+r.Intn(h/3)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				dx, dy := float64(x-cx)/float64(rx), float64(y-cy)/float64(ry)
				if dx*dx+dy*dy <= 1 {
					pix[y*w+x] = byte(1 + n)
				}
			}
		}
	}
	return pix
}

// covers checks every opaque pixel lies within a cell and every cell is a
// legal hardware sprite
func covers(t *testing.T, pix []byte, w, h int, s *Solution) {
	t.Helper()

	require.True(t, s.Complete())
	for _, c := range s.Cells() {
		assert.Contains(t, []int{8, 16, 24, 32}, c.W, c.String())
		assert.Contains(t, []int{8, 16, 24, 32}, c.H, c.String())
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if pix[y*w+x]&0x0f == 0 {
				continue
			}
			found := false
			for _, c := range s.Cells() {
				if x >= c.X && x < c.X+c.W && y >= c.Y && y < c.Y+c.H {
					found = true
					break
				}
			}
			if !found {
				t.Fatalf("pixel %d,%d not covered", x, y)
			}
		}
	}
}

func TestParse(t *testing.T) {
	opt, err := ParseOptimizationType("sprite")
	require.NoError(t, err)
	assert.Equal(t, MinSprite, opt)

	_, err = ParseOptimizationType("everything")
	assert.Error(t, err)

	level, err := ParseLevel("MAX")
	require.NoError(t, err)
	assert.Equal(t, Max, level)

	level, err = ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, Fast, level)
}

func TestFastOpaque(t *testing.T) {
	pix := filled(32, 32)
	s := New(pix, 32, 32, discard()).Fast(Balanced)

	require.Len(t, s.Cells(), 1)
	c := s.Cells()[0]
	assert.Equal(t, 0, c.X)
	assert.Equal(t, 0, c.Y)
	assert.Equal(t, 32, c.W)
	assert.Equal(t, 32, c.H)
	assert.Equal(t, 16, s.Tiles())
}

func TestFastTransparent(t *testing.T) {
	pix := make([]byte, 16*16)
	// Other palettes still have a transparent color 0
	pix[17] = 0x20

	s := New(pix, 16, 16, discard()).Fast(Balanced)
	assert.Empty(t, s.Cells())
	assert.True(t, s.Complete())
}

func TestFastCoverage(t *testing.T) {
	for _, opt := range []OptimizationType{Balanced, MinSprite, MinTile, NoOptimization} {
		for seed := int64(1); seed <= 5; seed++ {
			pix := blob(64, 48, seed)
			s := New(pix, 64, 48, discard()).Fast(opt)
			covers(t, pix, 64, 48, s)
		}
	}
}

func TestFastNoOptimization(t *testing.T) {
	pix := filled(48, 40)
	s := New(pix, 48, 40, discard()).Fast(NoOptimization)

	// 32+16 wide and 32+8 high
	require.Len(t, s.Cells(), 4)
	sizes := make([][2]int, 0, 4)
	for _, c := range s.Cells() {
		sizes = append(sizes, [2]int{c.W, c.H})
	}
	assert.ElementsMatch(t, [][2]int{{32, 32}, {32, 8}, {16, 32}, {16, 8}}, sizes)
}

func TestFastSingleTile(t *testing.T) {
	pix := make([]byte, 40*40)
	pix[21*40+13] = 1

	s := New(pix, 40, 40, discard()).Fast(Balanced)
	covers(t, pix, 40, 40, s)
	require.Len(t, s.Cells(), 1)
	assert.Equal(t, 1, s.Tiles())
}

func TestSlow(t *testing.T) {
	pix := blob(64, 64, 7)
	c := New(pix, 64, 64, discard())
	c.Workers = 2
	c.Seed = 42

	slow := c.Slow(context.Background(), Balanced, 2000)
	covers(t, pix, 64, 64, slow)
	assert.NotEmpty(t, slow.Cells())
}

func TestSlowCancelled(t *testing.T) {
	pix := blob(48, 48, 3)
	c := New(pix, 48, 48, discard())
	c.Workers = 2

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// No budget, only the cancellation stops it
	s := c.Slow(ctx, MinSprite, 0)
	covers(t, pix, 48, 48, s)
}

func TestSlowTransparent(t *testing.T) {
	c := New(make([]byte, 32*32), 32, 32, discard())
	s := c.Slow(context.Background(), Balanced, 100)
	assert.Empty(t, s.Cells())
}

func TestGridMerge(t *testing.T) {
	// A 5 by 2 tile bar merges into a 4 by 2 cell and a 1 by 2 cell
	w, h := 40, 16
	pix := filled(w, h)
	m := newMask(pix, w, h)

	g := m.bestGrid(8)
	assert.Equal(t, 10, g.count())
	g.merge()

	cells := g.list()
	require.Len(t, cells, 2)
	assert.Equal(t, Cell{X: 0, Y: 0, W: 32, H: 16, covered: -1}, cells[0])
	assert.Equal(t, Cell{X: 32, Y: 0, W: 8, H: 16, covered: -1}, cells[1])
}

func TestShrink(t *testing.T) {
	w, h := 32, 32
	pix := make([]byte, w*h)
	pix[9*w+10] = 1
	m := newMask(pix, w, h)

	c, ok := m.shrink(newCell(0, 0, 32, 32))
	require.True(t, ok)
	assert.Equal(t, 8, c.X)
	assert.Equal(t, 8, c.Y)
	assert.Equal(t, 8, c.W)
	assert.Equal(t, 8, c.H)

	_, ok = m.shrink(newCell(16, 16, 16, 16))
	assert.False(t, ok)
}

func TestFix(t *testing.T) {
	m := newMask(make([]byte, 24*24), 24, 24)
	c := m.fix(newCell(-5, 20, 16, 16))
	assert.Equal(t, 0, c.X)
	assert.Equal(t, 8, c.Y)

	c = m.fix(newCell(-3, -3, 32, 32))
	assert.Equal(t, 0, c.X)
	assert.Equal(t, 0, c.Y)
}

func TestCellScore(t *testing.T) {
	c := newCell(0, 0, 32, 32)
	assert.InDelta(t, 49.1, c.score(Balanced), 1e-9)
	assert.Equal(t, 12+16+1.0, c.baseScore(MinSprite))
	assert.Equal(t, 6+16*4+1.0, c.baseScore(MinTile))

	c.covered = 1024
	assert.Equal(t, 1.0, c.coverage())
}

func TestMutateStaysLegal(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	c := newCell(8, 8, 24, 16)
	for i := 0; i < 1000; i++ {
		for _, m := range c.mutate(r) {
			assert.True(t, m.W >= 8 && m.W <= 32 && m.W%8 == 0, m.String())
			assert.True(t, m.H >= 8 && m.H <= 32 && m.H%8 == 0, m.String())
		}
	}
}
