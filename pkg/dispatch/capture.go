package dispatch

import "fmt"

// Default capture caps. Fuzzers can emit hundreds of megabytes of
// progress lines; the interesting content is at the edges.
const (
	DefaultHeadBytes = 256 << 10
	DefaultTailBytes = 64 << 10
)

// Capture is an io.Writer that retains the first headCap bytes and a
// rolling window of the last tailCap bytes. Everything between is
// counted and dropped.
type Capture struct {
	headCap int
	tailCap int
	head    []byte
	ring    []byte
	pos     int
	wrapped bool
	total   int64
}

func NewCapture(headCap, tailCap int) *Capture {
	if headCap <= 0 {
		headCap = DefaultHeadBytes
	}
	if tailCap <= 0 {
		tailCap = DefaultTailBytes
	}
	return &Capture{headCap: headCap, tailCap: tailCap}
}

// Write never fails; a tool's output volume must not be able to break
// its own execution record.
func (c *Capture) Write(p []byte) (int, error) {
	n := len(p)
	c.total += int64(n)

	if room := c.headCap - len(c.head); room > 0 {
		take := room
		if take > len(p) {
			take = len(p)
		}
		c.head = append(c.head, p[:take]...)
		p = p[take:]
	}

	for len(p) > 0 {
		if c.ring == nil {
			c.ring = make([]byte, c.tailCap)
		}
		take := c.tailCap - c.pos
		if take > len(p) {
			take = len(p)
		}
		copy(c.ring[c.pos:], p[:take])
		c.pos += take
		if c.pos == c.tailCap {
			c.pos = 0
			c.wrapped = true
		}
		p = p[take:]
	}
	return n, nil
}

// Total is the number of bytes written, retained or not.
func (c *Capture) Total() int64 { return c.total }

// Truncated reports whether any bytes were dropped.
func (c *Capture) Truncated() bool {
	return c.total > int64(c.headCap+c.tailCap)
}

// Bytes assembles the retained output. When bytes were dropped, a
// marker between head and tail records how many.
func (c *Capture) Bytes() []byte {
	out := append([]byte(nil), c.head...)

	var tail []byte
	if c.wrapped {
		tail = append(tail, c.ring[c.pos:]...)
		tail = append(tail, c.ring[:c.pos]...)
	} else if c.pos > 0 {
		tail = append(tail, c.ring[:c.pos]...)
	}

	if c.Truncated() {
		dropped := c.total - int64(len(c.head)) - int64(len(tail))
		out = append(out, []byte(fmt.Sprintf("\n[... %d bytes truncated ...]\n", dropped))...)
	}
	return append(out, tail...)
}

func (c *Capture) String() string { return string(c.Bytes()) }
