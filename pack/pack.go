/*
Package pack wraps raw resource bytes with alignment rules and selects the
compression scheme for them.

A Packer holds a set of Compressors. Requesting a specific scheme runs that
compressor once and keeps the result only if it is worth it, otherwise the
data is stored as is. Requesting Auto runs every compressor and keeps the
smallest worthwhile result, with ties going to the uncompressed data.
*/
package pack

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/cespare/xxhash/v2"
)

var errUnknownCompression = errors.New("pack: unknown compression")

// Compression identifies a compression scheme. The numeric value is the tag
// written alongside packed data.
type Compression int

// Compression schemes
const (
	Auto  Compression = -1
	None  Compression = 0
	LZ4   Compression = 1
	Flate Compression = 2
)

func (c Compression) String() string {
	switch c {
	case Auto:
		return "AUTO"
	case None:
		return "NONE"
	case LZ4:
		return "LZ4"
	case Flate:
		return "FLATE"
	default:
		return fmt.Sprintf("Compression(%d)", int(c))
	}
}

// Tag returns the value stored in resource headers for the scheme
func (c Compression) Tag() int {
	return int(c)
}

// ParseCompression parses the textual form of a Compression. An empty string
// selects None.
func ParseCompression(s string) (Compression, error) {
	switch strings.ToUpper(s) {
	case "AUTO", "BEST", "-1":
		return Auto, nil
	case "", "NONE", "0":
		return None, nil
	case "LZ4", "FAST", "1":
		return LZ4, nil
	case "FLATE", "2":
		return Flate, nil
	default:
		return None, fmt.Errorf("%w: %q", errUnknownCompression, s)
	}
}

// Packed is the result of packing some data
type Packed struct {
	Data   []byte
	Scheme Compression
}

// Compressor is a single compression scheme
type Compressor interface {
	// Scheme returns the scheme implemented
	Scheme() Compression
	// Compress compresses data, optionally priming the compressor with
	// the bytes that precede data in the output. It returns nil if the
	// data cannot be compressed.
	Compress(data, dict []byte) ([]byte, error)
	// Valuable reports if a packed size is enough of a gain over the
	// unpacked size to be worth decompressing at runtime
	Valuable(packed, unpacked int) bool
}

// Key identifies a packing request in a Cache
type Key struct {
	Data   uint64
	Dict   uint64
	Scheme Compression
}

// Cache stores the results of previous packing requests
type Cache interface {
	Get(Key) (Packed, bool, error)
	Put(Key, Packed) error
}

// Packer selects between compression schemes
type Packer struct {
	compressors []Compressor
	cache       Cache
}

// New returns a Packer using the given compressors, in order of preference
func New(compressors ...Compressor) *Packer {
	return &Packer{
		compressors: compressors,
	}
}

// Default returns a Packer with the LZ4 and Flate compressors
func Default() *Packer {
	return New(NewFlate(), NewLZ4())
}

// WithCache sets the cache consulted before compressing
func (p *Packer) WithCache(c Cache) *Packer {
	p.cache = c
	return p
}

// Schemes returns the schemes available for Auto
func (p *Packer) Schemes() []Compression {
	s := make([]Compression, 0, len(p.compressors))
	for _, c := range p.compressors {
		s = append(s, c.Scheme())
	}
	return s
}

func (p *Packer) compressor(c Compression) (Compressor, error) {
	for _, cc := range p.compressors {
		if cc.Scheme() == c {
			return cc, nil
		}
	}
	return nil, fmt.Errorf("%w: %s not available", errUnknownCompression, c)
}

// Pack compresses data with the requested scheme. prev holds the bytes
// already emitted before data and is used as a dictionary by schemes that
// support one. The returned data is never larger than the input.
func (p *Packer) Pack(data []byte, c Compression, prev []byte) (Packed, error) {
	if c == None || len(data) == 0 {
		return Packed{Data: data, Scheme: None}, nil
	}

	var key Key
	if p.cache != nil {
		key = Key{Data: xxhash.Sum64(data), Dict: xxhash.Sum64(dictionary(prev)), Scheme: c}
		switch packed, ok, err := p.cache.Get(key); {
		case err != nil:
			return Packed{}, err
		case ok && packed.Scheme == None:
			// Caches need not hold on to data that was not worth packing
			return Packed{Data: data, Scheme: None}, nil
		case ok:
			return packed, nil
		}
	}

	var candidates []Compressor
	if c == Auto {
		candidates = p.compressors
	} else {
		cc, err := p.compressor(c)
		if err != nil {
			return Packed{}, err
		}
		candidates = []Compressor{cc}
	}

	best := Packed{Data: data, Scheme: None}
	for _, cc := range candidates {
		out, err := cc.Compress(data, dictionary(prev))
		if err != nil {
			return Packed{}, err
		}
		if out == nil || !cc.Valuable(len(out), len(data)) {
			continue
		}
		if len(out) < len(best.Data) {
			best = Packed{Data: out, Scheme: cc.Scheme()}
		}
	}

	if p.cache != nil {
		if err := p.cache.Put(key, best); err != nil {
			return Packed{}, err
		}
	}

	return best, nil
}

// valuable is shared by the compressors: the gain must exceed minDiff bytes
// and the packed size must be at most maxPercent of the original
func valuable(packed, unpacked, minDiff int, maxPercent float64) bool {
	if packed >= unpacked || unpacked-packed <= minDiff {
		return false
	}
	pct := float64(packed) * 100 / float64(unpacked)
	return math.Round(pct) <= maxPercent
}
