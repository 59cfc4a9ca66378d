package dispatch

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCaptureSmallOutputKeptWhole(t *testing.T) {
	c := NewCapture(32, 16)
	_, err := c.Write([]byte("hello world"))
	require.NoError(t, err)

	assert.False(t, c.Truncated())
	assert.Equal(t, "hello world", c.String())
	assert.Equal(t, int64(11), c.Total())
}

func TestCaptureSpillsIntoTailWithoutLoss(t *testing.T) {
	c := NewCapture(4, 8)
	c.Write([]byte("0123456789"))

	// 10 bytes fit in 4+8; nothing dropped, no marker.
	assert.False(t, c.Truncated())
	assert.Equal(t, "0123456789", c.String())
}

func TestCaptureTruncatesMiddle(t *testing.T) {
	c := NewCapture(8, 4)
	c.Write([]byte("0123456789ABCDEF"))

	assert.True(t, c.Truncated())
	got := c.String()
	assert.True(t, strings.HasPrefix(got, "01234567"))
	assert.True(t, strings.HasSuffix(got, "CDEF"))
	assert.Contains(t, got, "[... 4 bytes truncated ...]")
}

func TestCaptureManySmallWrites(t *testing.T) {
	c := NewCapture(10, 10)
	for i := 0; i < 100; i++ {
		c.Write([]byte("ab"))
	}

	assert.Equal(t, int64(200), c.Total())
	assert.True(t, c.Truncated())
	got := c.String()
	assert.True(t, strings.HasPrefix(got, "ababababab"))
	assert.True(t, strings.HasSuffix(got, "ababababab"))
	assert.Contains(t, got, "180 bytes truncated")
}

func TestCaptureWriteNeverErrors(t *testing.T) {
	c := NewCapture(1, 1)
	n, err := c.Write(make([]byte, 1<<20))
	require.NoError(t, err)
	assert.Equal(t, 1<<20, n)
}
