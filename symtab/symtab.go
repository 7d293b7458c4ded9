/*
Package symtab implements the symbol table written next to the binary section
of a compiled resource file.

Each entry maps a resource id to the offset and size of its payload within
the binary section and the compression scheme used to pack it. The table
also carries the checksum of the binary section it describes so a stale pair
of files can be detected.
*/
package symtab

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

const (
	// Magic is the signature at the start of every symbol table
	Magic = "RSYM"
	// Version is the current format version
	Version uint16 = 1

	// Ext is the expected filename extension used when writing to disk
	Ext = ".sym"
)

var (
	errBadMagic   = errors.New("symtab: bad magic")
	errBadVersion = errors.New("symtab: unsupported version")
	// ErrDuplicate is returned when adding an id already in the table
	ErrDuplicate = errors.New("symtab: duplicate id")
)

// Entry locates one payload within the binary section
type Entry struct {
	ID     string
	Offset uint32
	Size   uint32
	Scheme int8
}

// Table is the symbol table. It implements the encoding.BinaryMarshaler and
// encoding.BinaryUnmarshaler interfaces.
type Table struct {
	Checksum uint32

	entries []Entry
	index   map[string]int
}

// New returns an empty symbol table
func New() *Table {
	return &Table{
		index: make(map[string]int),
	}
}

// Len returns the number of entries in the table
func (t *Table) Len() int {
	return len(t.entries)
}

// Add appends an entry
func (t *Table) Add(e Entry) error {
	if len(e.ID) > math.MaxUint16 {
		return fmt.Errorf("symtab: id longer than %d bytes", math.MaxUint16)
	}
	if _, ok := t.index[e.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, e.ID)
	}
	t.index[e.ID] = len(t.entries)
	t.entries = append(t.entries, e)
	return nil
}

// Lookup returns the entry for id
func (t *Table) Lookup(id string) (Entry, bool) {
	i, ok := t.index[id]
	if !ok {
		return Entry{}, false
	}
	return t.entries[i], true
}

// Entries returns every entry in the order they were added
func (t *Table) Entries() []Entry {
	return t.entries
}

// Sum sets the checksum from the binary section
func (t *Table) Sum(bin []byte) {
	t.Checksum = Checksum(bin)
}

// Verify returns true if bin matches the checksum
func (t *Table) Verify(bin []byte) bool {
	return Checksum(bin) == t.Checksum
}

type header struct {
	Magic    [4]byte
	Version  uint16
	Count    uint32
	Checksum uint32
}

// MarshalBinary encodes the table into binary form and returns the result
func (t *Table) MarshalBinary() ([]byte, error) {
	if uint64(len(t.entries)) > math.MaxUint32 {
		return nil, fmt.Errorf("symtab: more than %d entries", uint32(math.MaxUint32))
	}

	h := header{
		Version:  Version,
		Count:    uint32(len(t.entries)),
		Checksum: t.Checksum,
	}
	copy(h.Magic[:], Magic)

	b := new(bytes.Buffer)

	if err := binary.Write(b, binary.BigEndian, &h); err != nil {
		return nil, err
	}

	for _, e := range t.entries {
		if err := binary.Write(b, binary.BigEndian, uint16(len(e.ID))); err != nil {
			return nil, err
		}
		if _, err := b.WriteString(e.ID); err != nil {
			return nil, err
		}
		for _, v := range []interface{}{e.Offset, e.Size, e.Scheme} {
			if err := binary.Write(b, binary.BigEndian, v); err != nil {
				return nil, err
			}
		}
	}

	return b.Bytes(), nil
}

// UnmarshalBinary decodes the table from binary form
func (t *Table) UnmarshalBinary(b []byte) error {
	r := bytes.NewReader(b)

	t.entries = nil
	t.index = make(map[string]int)

	var h header
	if err := binary.Read(r, binary.BigEndian, &h); err != nil {
		return err
	}
	if string(h.Magic[:]) != Magic {
		return errBadMagic
	}
	if h.Version != Version {
		return fmt.Errorf("%w: %d", errBadVersion, h.Version)
	}
	t.Checksum = h.Checksum

	for i := uint32(0); i < h.Count; i++ {
		var n uint16
		if err := binary.Read(r, binary.BigEndian, &n); err != nil {
			return err
		}
		id := make([]byte, n)
		if _, err := io.ReadFull(r, id); err != nil {
			return errors.New("symtab: insufficient data")
		}
		e := Entry{ID: string(id)}
		for _, v := range []interface{}{&e.Offset, &e.Size, &e.Scheme} {
			if err := binary.Read(r, binary.BigEndian, v); err != nil {
				return err
			}
		}
		if err := t.Add(e); err != nil {
			return err
		}
	}

	return nil
}
