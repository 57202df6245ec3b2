package server

import (
	"bytes"
	"sync"
)

// Receive buffer tiers. A connection starts small and grows through the
// tiers; anything past the largest tier is allocated directly.
const (
	smallBufferSize  = 4096
	mediumBufferSize = 32768
	largeBufferSize  = 131072
)

// BufferPool manages reusable byte buffers
type BufferPool struct {
	small  sync.Pool
	medium sync.Pool
	large  sync.Pool
	output sync.Pool // *bytes.Buffer for serialized responses
}

var globalBufferPool = &BufferPool{
	small: sync.Pool{
		New: func() interface{} {
			buf := make([]byte, smallBufferSize)
			return &buf
		},
	},
	medium: sync.Pool{
		New: func() interface{} {
			buf := make([]byte, mediumBufferSize)
			return &buf
		},
	},
	large: sync.Pool{
		New: func() interface{} {
			buf := make([]byte, largeBufferSize)
			return &buf
		},
	},
	output: sync.Pool{
		New: func() interface{} {
			return new(bytes.Buffer)
		},
	},
}

// GetBuffer returns a zero-length buffer with capacity of at least size
func GetBuffer(size int) []byte {
	switch {
	case size <= smallBufferSize:
		buf := globalBufferPool.small.Get().(*[]byte)
		return (*buf)[:0]
	case size <= mediumBufferSize:
		buf := globalBufferPool.medium.Get().(*[]byte)
		return (*buf)[:0]
	case size <= largeBufferSize:
		buf := globalBufferPool.large.Get().(*[]byte)
		return (*buf)[:0]
	default:
		return make([]byte, 0, size)
	}
}

// PutBuffer zeroes buf and returns it to the pool
func PutBuffer(buf []byte) {
	full := buf[:cap(buf)]
	clear(full)

	switch cap(buf) {
	case smallBufferSize:
		globalBufferPool.small.Put(&full)
	case mediumBufferSize:
		globalBufferPool.medium.Put(&full)
	case largeBufferSize:
		globalBufferPool.large.Put(&full)
	}
	// Else: buffer is non-standard size, let GC handle it
}

// boundedBuffer returns a pooled buffer of at least size bytes whose
// capacity never exceeds limit.
func boundedBuffer(size, limit int) []byte {
	buf := GetBuffer(size)
	if cap(buf) > limit {
		buf = buf[:0:limit]
	}
	return buf
}

// growBuffer returns a buffer holding buf's contents with room for at least
// one more byte, never exceeding limit. The old buffer goes back to the pool.
func growBuffer(buf []byte, limit int) []byte {
	size := cap(buf) * 2
	if size == 0 {
		size = smallBufferSize
	}
	if size > limit {
		size = limit
	}

	grown := append(boundedBuffer(size, limit), buf...)
	PutBuffer(buf)
	return grown
}

func getOutputBuffer() *bytes.Buffer {
	buf := globalBufferPool.output.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// putOutputBuffer drops oversized buffers instead of pinning them in the pool
func putOutputBuffer(buf *bytes.Buffer) {
	if buf.Cap() > 4*largeBufferSize {
		return
	}
	buf.Reset()
	globalBufferPool.output.Put(buf)
}
