package pack

import (
	"bytes"
	"io"
	"math/rand"
	"sync"
	"testing"

	"github.com/klauspost/compress/flate"
	"github.com/pierrec/lz4/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func random(n int) []byte {
	b := make([]byte, n)
	rand.New(rand.NewSource(1)).Read(b)
	return b
}

func repetitive(n int) []byte {
	return bytes.Repeat([]byte("megadrive tiles "), n/16)
}

func TestParseCompression(t *testing.T) {
	tables := []struct {
		in   string
		want Compression
	}{
		{"", None},
		{"none", None},
		{"0", None},
		{"AUTO", Auto},
		{"best", Auto},
		{"-1", Auto},
		{"lz4", LZ4},
		{"1", LZ4},
		{"flate", Flate},
		{"2", Flate},
	}

	for _, table := range tables {
		got, err := ParseCompression(table.in)
		require.NoError(t, err)
		assert.Equal(t, table.want, got, table.in)
	}

	_, err := ParseCompression("zip")
	assert.Error(t, err)
}

func TestPackNone(t *testing.T) {
	data := repetitive(4096)
	p, err := Default().Pack(data, None, nil)
	require.NoError(t, err)
	assert.Equal(t, None, p.Scheme)
	assert.Equal(t, data, p.Data)
}

func TestPackAutoRandom(t *testing.T) {
	data := random(4096)
	p, err := Default().Pack(data, Auto, nil)
	require.NoError(t, err)
	assert.Equal(t, None, p.Scheme)
	assert.Equal(t, data, p.Data)
}

func TestPackNeverExpands(t *testing.T) {
	packer := Default()
	for _, n := range []int{1, 2, 16, 100, 1000, 10000} {
		for _, data := range [][]byte{random(n), repetitive(n), make([]byte, n)} {
			p, err := packer.Pack(data, Auto, nil)
			require.NoError(t, err)
			assert.LessOrEqual(t, len(p.Data), len(data))
		}
	}
}

func TestPackAutoPicksSmallest(t *testing.T) {
	data := repetitive(8192)
	packer := Default()

	auto, err := packer.Pack(data, Auto, nil)
	require.NoError(t, err)
	require.NotEqual(t, None, auto.Scheme)

	for _, c := range packer.Schemes() {
		p, err := packer.Pack(data, c, nil)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(auto.Data), len(p.Data))
	}
}

func TestPackLZ4RoundTrip(t *testing.T) {
	data := repetitive(8192)
	p, err := Default().Pack(data, LZ4, nil)
	require.NoError(t, err)
	require.Equal(t, LZ4, p.Scheme)

	out := make([]byte, len(data))
	n, err := lz4.UncompressBlock(p.Data, out)
	require.NoError(t, err)
	assert.Equal(t, data, out[:n])
}

func TestPackFlateDictionary(t *testing.T) {
	// Random data only compresses when the dictionary already holds it
	data := random(2048)
	prev := append(random(4096)[2048:], data...)

	packer := Default()
	with, err := packer.Pack(data, Flate, prev)
	require.NoError(t, err)
	require.Equal(t, Flate, with.Scheme)

	without, err := packer.Pack(data, Flate, nil)
	require.NoError(t, err)
	assert.Equal(t, None, without.Scheme)
	assert.Less(t, len(with.Data), len(without.Data))

	r := flate.NewReaderDict(bytes.NewReader(with.Data), prev)
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, data, out)
}

func TestPackUnavailable(t *testing.T) {
	_, err := New(NewLZ4()).Pack(repetitive(1024), Flate, nil)
	assert.Error(t, err)
}

type memoryCache struct {
	sync.Mutex
	m    map[Key]Packed
	hits int
}

func (c *memoryCache) Get(k Key) (Packed, bool, error) {
	c.Lock()
	defer c.Unlock()
	p, ok := c.m[k]
	if ok {
		c.hits++
	}
	return p, ok, nil
}

func (c *memoryCache) Put(k Key, p Packed) error {
	c.Lock()
	defer c.Unlock()
	c.m[k] = p
	return nil
}

func TestPackCache(t *testing.T) {
	cache := &memoryCache{m: make(map[Key]Packed)}
	packer := Default().WithCache(cache)
	data := repetitive(4096)

	first, err := packer.Pack(data, Auto, nil)
	require.NoError(t, err)
	second, err := packer.Pack(data, Auto, nil)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, cache.hits)
}

func TestValuable(t *testing.T) {
	assert.False(t, NewLZ4().Valuable(100, 100))
	assert.False(t, NewLZ4().Valuable(950, 1000))
	assert.True(t, NewLZ4().Valuable(900, 1000))
	assert.False(t, NewFlate().Valuable(900, 1000))
	assert.True(t, NewFlate().Valuable(800, 1000))
}

func TestSizeAlign(t *testing.T) {
	assert.Equal(t, []byte{1, 2, 3}, SizeAlign([]byte{1, 2, 3}, 1, 0xff))
	assert.Equal(t, []byte{1, 2, 3, 0xff}, SizeAlign([]byte{1, 2, 3}, 4, 0xff))
	assert.Equal(t, []byte{1, 2, 3, 4}, SizeAlign([]byte{1, 2, 3, 4}, 4, 0xff))
}

func TestStreamAlign(t *testing.T) {
	var s Stream
	s.Write([]byte{1, 2, 3})
	assert.True(t, s.Align(2))
	assert.Equal(t, 4, s.Len())
	assert.True(t, s.Align(1))
	assert.Equal(t, 4, s.Len())
	assert.False(t, s.Align(256))
	assert.Equal(t, 0, s.Len())
}
