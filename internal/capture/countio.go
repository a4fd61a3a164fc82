package capture

import "io"

// countingReader wraps a reader and counts the bytes returned by successful
// reads. The counter is owned by the goroutine driving the reads; no
// synchronization is needed.
type countingReader struct {
	r     io.Reader
	total int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.total += int64(n)
	return n, err
}

// Total returns the number of bytes read so far.
func (c *countingReader) Total() int64 { return c.total }

// countingWriter wraps a writer and counts the bytes accepted by successful
// writes.
type countingWriter struct {
	w     io.Writer
	total int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.total += int64(n)
	return n, err
}

// Total returns the number of bytes written so far.
func (c *countingWriter) Total() int64 { return c.total }
