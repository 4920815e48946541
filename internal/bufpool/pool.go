// Package bufpool provides size-bucketed buffer reuse for message
// reassembly, avoiding an allocation per received frame payload.
package bufpool

import "sync"

var bucketSizes = [...]int{64, 256, 1024}

var pools = [...]*sync.Pool{
	{New: func() any { b := make([]byte, 0, bucketSizes[0]); return &b }},
	{New: func() any { b := make([]byte, 0, bucketSizes[1]); return &b }},
	{New: func() any { b := make([]byte, 0, bucketSizes[2]); return &b }},
}

// Get returns a zero-length slice with at least the requested capacity.
// Sizes larger than the biggest bucket are allocated directly and not
// pooled on Put.
func Get(size int) []byte {
	for i, bucket := range bucketSizes {
		if size <= bucket {
			buf := pools[i].Get().(*[]byte)
			return (*buf)[:0]
		}
	}
	return make([]byte, 0, size)
}

// Put returns a buffer to its bucket pool. Buffers whose capacity doesn't
// match a bucket exactly are dropped rather than pooled.
func Put(buf []byte) {
	c := cap(buf)
	for i, bucket := range bucketSizes {
		if c == bucket {
			b := buf[:0]
			pools[i].Put(&b)
			return
		}
	}
}
