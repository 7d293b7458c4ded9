package pack

// SizeAlign pads data with fill up to a multiple of align bytes
func SizeAlign(data []byte, align int, fill byte) []byte {
	if align <= 1 || len(data)%align == 0 {
		return data
	}
	out := make([]byte, (len(data)+align-1)/align*align)
	copy(out, data)
	for i := len(data); i < len(out); i++ {
		out[i] = fill
	}
	return out
}

// Stream accumulates the bytes emitted into one output section. Its
// contents are the dictionary offered to compressors for the next payload.
type Stream struct {
	buf []byte
}

// Align prepares the stream for a payload needing align bytes alignment.
// Anything beyond word alignment cannot be tracked so the stream is reset
// and false is returned.
func (s *Stream) Align(align int) bool {
	if align > 2 {
		s.Reset()
		return false
	}
	if align == 2 && len(s.buf)&1 != 0 {
		s.buf = append(s.buf, 0)
	}
	return true
}

// Write appends p to the stream
func (s *Stream) Write(p []byte) (int, error) {
	s.buf = append(s.buf, p...)
	return len(p), nil
}

// Bytes returns the stream contents
func (s *Stream) Bytes() []byte {
	return s.buf
}

// Len returns the number of bytes in the stream
func (s *Stream) Len() int {
	return len(s.buf)
}

// Reset empties the stream
func (s *Stream) Reset() {
	s.buf = s.buf[:0]
}
