package symtab

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecksum(t *testing.T) {
	tables := []struct {
		in   string
		want uint32
	}{
		{"", 0x00000000},
		{"123456789", 0xfc891918},
	}

	for _, table := range tables {
		assert.Equal(t, table.want, Checksum([]byte(table.in)))

		h := NewHash()
		_, err := h.Write([]byte(table.in))
		require.NoError(t, err)
		assert.Equal(t, table.want, h.Sum32())
	}
}

func TestTable(t *testing.T) {
	bin := []byte("some packed data")

	table := New()
	table.Sum(bin)
	require.NoError(t, table.Add(Entry{ID: "level1_tileset_data", Offset: 0, Size: 96, Scheme: 1}))
	require.NoError(t, table.Add(Entry{ID: "music", Offset: 96, Size: 4000, Scheme: 0}))
	assert.True(t, errors.Is(table.Add(Entry{ID: "music"}), ErrDuplicate))
	assert.Equal(t, 2, table.Len())

	b, err := table.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, []byte(Magic), b[:4])

	got := New()
	require.NoError(t, got.UnmarshalBinary(b))
	assert.Equal(t, table.Entries(), got.Entries())
	assert.True(t, got.Verify(bin))
	assert.False(t, got.Verify([]byte("other data")))

	e, ok := got.Lookup("music")
	require.True(t, ok)
	assert.Equal(t, uint32(4000), e.Size)

	_, ok = got.Lookup("missing")
	assert.False(t, ok)
}

func TestUnmarshalBad(t *testing.T) {
	table := New()
	assert.True(t, errors.Is(table.UnmarshalBinary([]byte("XSYM\x00\x01\x00\x00\x00\x00\x00\x00\x00\x00")), errBadMagic))
	assert.True(t, errors.Is(table.UnmarshalBinary([]byte("RSYM\x00\x02\x00\x00\x00\x00\x00\x00\x00\x00")), errBadVersion))
	assert.Error(t, table.UnmarshalBinary([]byte("RSYM\x00\x01\x00\x00\x00\x01\x00\x00\x00\x00\x00\x05ab")))
}
