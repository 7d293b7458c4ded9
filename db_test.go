package rescomp

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/bodgit/rescomp/pack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLCache(t *testing.T) {
	cache, err := NewSQLCache(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer cache.Close()

	k := pack.Key{Data: 0xdeadbeef, Dict: 1, Scheme: pack.Auto}
	_, ok, err := cache.Get(k)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Put(k, pack.Packed{Data: []byte{1, 2, 3}, Scheme: pack.LZ4}))
	p, ok, err := cache.Get(k)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, pack.Packed{Data: []byte{1, 2, 3}, Scheme: pack.LZ4}, p)

	// Uncompressed results keep no data
	k.Scheme = pack.Flate
	require.NoError(t, cache.Put(k, pack.Packed{Data: []byte{4, 5, 6}, Scheme: pack.None}))
	p, ok, err = cache.Get(k)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, pack.None, p.Scheme)
	assert.Empty(t, p.Data)

	n, err := cache.Len()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestSQLCachePacker(t *testing.T) {
	file := filepath.Join(t.TempDir(), "cache.db")
	data := bytes.Repeat([]byte("rescomp "), 512)

	cache, err := NewSQLCache(file)
	require.NoError(t, err)
	first, err := pack.Default().WithCache(cache).Pack(data, pack.Auto, nil)
	require.NoError(t, err)
	require.NoError(t, cache.Close())

	// A new process reuses the stored result
	cache, err = NewSQLCache(file)
	require.NoError(t, err)
	defer cache.Close()

	n, err := cache.Len()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	second, err := pack.Default().WithCache(cache).Pack(data, pack.Auto, nil)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.NotEqual(t, pack.None, second.Scheme)

	random := []byte{0x9e, 0x37, 0x79, 0xb9}
	third, err := pack.Default().WithCache(cache).Pack(random, pack.LZ4, nil)
	require.NoError(t, err)
	assert.Equal(t, pack.Packed{Data: random, Scheme: pack.None}, third)
}
