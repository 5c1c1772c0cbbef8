package util

import "sync"

// DefaultBufSize is the read chunk size for burst collection (32 KiB).
const DefaultBufSize = 32 * 1024

// bufPool provides reusable read buffers, reducing GC pressure on the
// collector's read loop.
var bufPool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, DefaultBufSize)
		return &buf
	},
}

// GetBuf retrieves a buffer from the pool.  Callers must return it
// with [PutBuf] when finished and must not retain slices of it.
func GetBuf() *[]byte {
	return bufPool.Get().(*[]byte)
}

// PutBuf returns a buffer to the pool for reuse.
func PutBuf(buf *[]byte) {
	if buf == nil {
		return
	}
	bufPool.Put(buf)
}
