/*
Package resource implements the content addressed resource graph.

Every resource built from a declaration is added to a Registry. Internal
resources, the tilesets, bins and palettes that a declared resource is made
of, are merged with any existing resource holding the same content so the
data is only exported once. Declared resources are always kept as they are
exported as public symbols.

Resources reference each other through the *Entry returned by Registry.Add,
which is always the canonical instance.
*/
package resource

import (
	"encoding/binary"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/sirupsen/logrus"
)

// Kind identifies the type of a resource
type Kind int

// Resource kinds
const (
	KindBin Kind = iota
	KindPalette
	KindBitmap
	KindImage
	KindTileset
	KindTilemap
	KindMap
	KindObjects
	KindSprite
	KindSpriteAnimation
	KindSpriteFrame
	KindVDPSprite
	KindCollision
	KindAlign
	KindNear
	KindUngroup
)

var kindNames = [...]string{
	KindBin:             "BIN",
	KindPalette:         "PALETTE",
	KindBitmap:          "BITMAP",
	KindImage:           "IMAGE",
	KindTileset:         "TILESET",
	KindTilemap:         "TILEMAP",
	KindMap:             "MAP",
	KindObjects:         "OBJECTS",
	KindSprite:          "SPRITE",
	KindSpriteAnimation: "ANIMATION",
	KindSpriteFrame:     "FRAME",
	KindVDPSprite:       "VDPSPRITE",
	KindCollision:       "COLLISION",
	KindAlign:           "ALIGN",
	KindNear:            "NEAR",
	KindUngroup:         "UNGROUP",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "UNKNOWN"
	}
	return kindNames[k]
}

// Resource is one of the resource kinds of this package. The set of kinds
// is closed.
type Resource interface {
	// Kind returns the type of resource
	Kind() Kind

	// hash writes every field that equal compares
	hash(h *hasher)
	// equal compares the content of two resources of the same kind
	equal(o Resource) bool
	// size returns the number of bytes the resource occupies in the
	// output, not counting anything it references
	size() int
	// bins returns the bins the resource owns
	bins() []*Entry
	// export writes the resource
	export(w *Writer, e *Entry) error
}

// Entry is a resource stored in a Registry
type Entry struct {
	ID       string
	Global   bool
	Resource Resource

	sum uint64
}

// Kind returns the kind of the stored resource
func (e *Entry) Kind() Kind {
	return e.Resource.Kind()
}

// Hash returns the content identity of the stored resource
func (e *Entry) Hash() uint64 {
	return e.sum
}

// Size returns the number of bytes the resource occupies in the output
func (e *Entry) Size() int {
	return e.Resource.size()
}

// same reports if two references hold the same content. Nil references are
// only the same as each other.
func same(a, b *Entry) bool {
	switch {
	case a == b:
		return true
	case a == nil || b == nil:
		return false
	default:
		return a.sum == b.sum && a.Kind() == b.Kind() && a.Resource.equal(b.Resource)
	}
}

func sameAll(a, b []*Entry) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !same(a[i], b[i]) {
			return false
		}
	}
	return true
}

type hasher struct {
	d   *xxhash.Digest
	buf [8]byte
}

func (h *hasher) int(v int) {
	binary.LittleEndian.PutUint64(h.buf[:], uint64(v))
	_, _ = h.d.Write(h.buf[:])
}

func (h *hasher) bool(v bool) {
	if v {
		h.int(1)
	} else {
		h.int(0)
	}
}

func (h *hasher) bytes(b []byte) {
	h.int(len(b))
	_, _ = h.d.Write(b)
}

func (h *hasher) string(s string) {
	h.int(len(s))
	_, _ = h.d.WriteString(s)
}

func (h *hasher) entry(e *Entry) {
	if e == nil {
		h.int(0)
		return
	}
	binary.LittleEndian.PutUint64(h.buf[:], e.sum)
	_, _ = h.d.Write(h.buf[:])
}

// Hash returns the content identity of r
func Hash(r Resource) uint64 {
	h := &hasher{d: xxhash.New()}
	h.int(int(r.Kind()))
	r.hash(h)
	return h.d.Sum64()
}

// Registry is the store of every resource of one compilation
type Registry struct {
	entries []*Entry
	byHash  map[uint64][]*Entry
	logger  logrus.FieldLogger
}

// NewRegistry returns an empty Registry
func NewRegistry(logger logrus.FieldLogger) *Registry {
	return &Registry{
		byHash: make(map[uint64][]*Entry),
		logger: logger,
	}
}

// Add stores res under id. An internal resource is not exported as a
// public symbol and is replaced by any existing resource with the same
// content, in which case the existing entry is returned and res is
// discarded. A declared resource is always stored.
func (r *Registry) Add(id string, res Resource, internal bool) *Entry {
	sum := Hash(res)

	if internal {
		for _, e := range r.byHash[sum] {
			if e.Kind() == res.Kind() && e.Resource.equal(res) {
				r.logger.WithField("id", id).Infof("'%s' has same content as '%s'", id, e.ID)
				return e
			}
		}
	}

	e := &Entry{
		ID:       id,
		Global:   !internal,
		Resource: res,
		sum:      sum,
	}
	r.entries = append(r.entries, e)
	r.byHash[sum] = append(r.byHash[sum], e)

	return e
}

// Lookup returns the first resource stored under id. NULL never matches.
func (r *Registry) Lookup(id string) *Entry {
	if strings.EqualFold(id, "NULL") {
		return nil
	}
	for _, e := range r.entries {
		if e.ID == id {
			return e
		}
	}
	return nil
}

// Entries returns every stored resource in insertion order
func (r *Registry) Entries() []*Entry {
	return r.entries
}

// Len returns the number of stored resources
func (r *Registry) Len() int {
	return len(r.entries)
}

func (r *Registry) ofKind(k Kind) []*Entry {
	var out []*Entry
	for _, e := range r.entries {
		if e.Kind() == k {
			out = append(out, e)
		}
	}
	return out
}
