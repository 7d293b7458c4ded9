package rescomp

import (
	"testing"

	"github.com/bodgit/rescomp/cutter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFrameDimension(t *testing.T) {
	tables := []struct {
		in    string
		total int
		want  int
	}{
		{"4", 64, 4},
		{"32p", 64, 4},
		{"16P", 64, 2},
		{"2f", 64, 4},
		{"4F", 64, 2},
	}

	for _, table := range tables {
		v, err := parseFrameDimension(table.in, table.total)
		require.NoError(t, err, table.in)
		assert.Equal(t, table.want, v, table.in)
	}

	for _, in := range []string{"12p", "3f", "0f", "x", "p"} {
		_, err := parseFrameDimension(in, 64)
		assert.ErrorIs(t, err, errBadDimension, in)
	}
}

func TestParseTimeArray(t *testing.T) {
	assert.Equal(t, [][]int{{5}}, parseTimeArray("5"))
	assert.Equal(t, [][]int{{3, 3, 3}, {4, 5, 5}}, parseTimeArray("[[3,3,3][4,5,5]]"))
	assert.Equal(t, [][]int{{1, 2}}, parseTimeArray("[1, 2]"))
	assert.Equal(t, [][]int{{3, 3}, {4, 6}}, parseTimeArray("[[3, 3],[4, 6]]"))
	assert.Equal(t, [][]int{{1, 2}, {3}}, parseTimeArray("1,2 3"))
	assert.Equal(t, [][]int{{0}}, parseTimeArray(""))
}

func TestFrames(t *testing.T) {
	a, b, empty := []byte{1, 0}, []byte{0, 2}, []byte{0, 0x10}
	pix := [][]byte{a, a, b, empty, a, empty, empty}

	out := frames(pix, []int{2, 3}, false)
	require.Len(t, out, 5)
	assert.Equal(t, 2, out[0].timer)
	assert.Equal(t, 3, out[4].timer)

	out = frames(pix, []int{2, 3}, true)
	require.Len(t, out, 4)
	assert.Equal(t, frame{pix: a, timer: 5}, out[0])
	assert.Equal(t, b, out[1].pix)
	assert.Equal(t, empty, out[2].pix)

	assert.Empty(t, frames([][]byte{empty}, []int{1}, false))
}

func TestWhole(t *testing.T) {
	full := []cutter.Cell{{X: 0, Y: 0, W: 16, H: 16}}
	assert.True(t, whole(full, 16, 16))
	assert.False(t, whole(full, 24, 16))
	assert.False(t, whole(append(full, cutter.Cell{X: 0, Y: 16, W: 8, H: 8}), 16, 16))
}

func TestSpritePalette(t *testing.T) {
	n, err := spritePalette([]byte{0, 0x21, 0x20, 0x2f})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = spritePalette([]byte{0, 0x10})
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, err = spritePalette([]byte{0x01, 0x11})
	assert.ErrorIs(t, err, errPalettes)
}
