package capture

import "sync"

// Receive buffer pools by size class. Only buffers obtained from getBuf may
// be returned with putBuf; others are ignored by capacity.

const (
	bufSmall = 2048
	bufLarge = 16384
	bufMax   = 65536
)

var (
	poolSmall = sync.Pool{New: func() any { b := make([]byte, bufSmall); return &b }}
	poolLarge = sync.Pool{New: func() any { b := make([]byte, bufLarge); return &b }}
	poolMax   = sync.Pool{New: func() any { b := make([]byte, bufMax); return &b }}
)

func getBuf(n int) []byte {
	switch {
	case n <= bufSmall:
		p := poolSmall.Get().(*[]byte)
		return (*p)[:n]
	case n <= bufLarge:
		p := poolLarge.Get().(*[]byte)
		return (*p)[:n]
	case n <= bufMax:
		p := poolMax.Get().(*[]byte)
		return (*p)[:n]
	default:
		return make([]byte, n)
	}
}

func putBuf(b []byte) {
	switch cap(b) {
	case bufSmall:
		bb := b[:bufSmall]
		poolSmall.Put(&bb)
	case bufLarge:
		bb := b[:bufLarge]
		poolLarge.Put(&bb)
	case bufMax:
		bb := b[:bufMax]
		poolMax.Put(&bb)
	}
}
