package symtab

import (
	"hash"
	crc "hash/crc32"
)

// The binary section is read by a big-endian CPU so the checksum is the
// MSB first form of CRC-32, processing each byte from bit 7 down
func makeTable(poly uint32) *crc.Table {
	t := new(crc.Table)
	for i := 0; i < 256; i++ {
		crc := uint32(i << 24)
		for j := 0; j < 8; j++ {
			if crc&0x80000000 != 0 {
				crc = crc<<1 ^ poly
			} else {
				crc <<= 1
			}
		}
		t[i] = crc
	}
	return t
}

const polynomial = 0x04c11db7

var table = makeTable(polynomial)

type digest struct {
	crc uint32
}

// NewHash creates a new hash.Hash32 computing the checksum. Its Sum method
// will lay the value out in big-endian byte order.
func NewHash() hash.Hash32 {
	d := new(digest)
	d.Reset()
	return d
}

func (d *digest) Size() int { return crc.Size }

func (d *digest) BlockSize() int { return 1 }

func (d *digest) Reset() { d.crc = 0xffffffff }

func update(crc uint32, p []byte) uint32 {
	for _, b := range p {
		crc = crc<<8 ^ table[byte(crc>>24)^b]
	}
	return crc
}

func (d *digest) Write(p []byte) (n int, err error) {
	d.crc = update(d.crc, p)
	return len(p), nil
}

func (d *digest) Sum32() uint32 { return ^d.crc }

func (d *digest) Sum(in []byte) []byte {
	s := d.Sum32()
	return append(in, byte(s>>24), byte(s>>16), byte(s>>8), byte(s))
}

// Checksum returns the checksum of data
func Checksum(data []byte) uint32 {
	return ^update(0xffffffff, data)
}
