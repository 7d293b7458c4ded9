package cutter

// arena hands out reusable coverage buffers. A buffer taken with get is
// owned by the caller until it is handed back with put.
type arena struct {
	size int
	free chan []byte
}

func newArena(size, n int) *arena {
	a := &arena{
		size: size,
		free: make(chan []byte, n),
	}
	for i := 0; i < n; i++ {
		a.free <- make([]byte, size)
	}
	return a
}

func (a *arena) get() []byte {
	select {
	case b := <-a.free:
		return b
	default:
		return make([]byte, a.size)
	}
}

func (a *arena) put(b []byte) {
	if len(b) != a.size {
		return
	}
	select {
	case a.free <- b:
	default:
	}
}
