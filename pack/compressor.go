package pack

import (
	"bytes"

	"github.com/klauspost/compress/flate"
	"github.com/pierrec/lz4/v4"
)

// dictSize is the flate window, the most of the preceding bytes that can be
// referenced
const dictSize = 32 << 10

func dictionary(prev []byte) []byte {
	if len(prev) > dictSize {
		return prev[len(prev)-dictSize:]
	}
	return prev
}

type lz4Compressor struct{}

// NewLZ4 returns a Compressor producing raw LZ4 blocks. LZ4 is fast to
// unpack so smaller gains are accepted.
func NewLZ4() Compressor {
	return lz4Compressor{}
}

func (lz4Compressor) Scheme() Compression {
	return LZ4
}

func (lz4Compressor) Compress(data, _ []byte) ([]byte, error) {
	var c lz4.Compressor
	dst := make([]byte, lz4.CompressBlockBound(len(data)))
	n, err := c.CompressBlock(data, dst)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	return dst[:n], nil
}

func (lz4Compressor) Valuable(packed, unpacked int) bool {
	return valuable(packed, unpacked, 60, 95)
}

type flateCompressor struct {
	level int
}

// NewFlate returns a Compressor producing raw deflate streams primed with
// the preceding bytes as a dictionary. Deflate is slower to unpack so it
// needs a bigger gain to be chosen.
func NewFlate() Compressor {
	return flateCompressor{level: flate.BestCompression}
}

func (flateCompressor) Scheme() Compression {
	return Flate
}

func (f flateCompressor) Compress(data, dict []byte) ([]byte, error) {
	b := new(bytes.Buffer)
	w, err := flate.NewWriterDict(b, f.level, dict)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func (flateCompressor) Valuable(packed, unpacked int) bool {
	return valuable(packed, unpacked, 120, 85)
}
