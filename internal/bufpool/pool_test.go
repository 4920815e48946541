package bufpool

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetReturnsZeroLengthWithRequestedCapacity(t *testing.T) {
	buf := Get(60)
	assert.Len(t, buf, 0)
	assert.GreaterOrEqual(t, cap(buf), 60)
}

func TestGetAboveLargestBucketAllocatesDirectly(t *testing.T) {
	buf := Get(2048)
	assert.Equal(t, 2048, cap(buf))
}

func TestPutThenGetReusesBuffer(t *testing.T) {
	buf := Get(64)
	buf = append(buf, make([]byte, 64)...)
	Put(buf)

	reused := Get(60)
	assert.Len(t, reused, 0)
	assert.GreaterOrEqual(t, cap(reused), 60)
}

func TestPutIgnoresNonBucketCapacity(t *testing.T) {
	// Must not panic even though cap(buf) doesn't match any bucket.
	Put(make([]byte, 0, 37))
}
