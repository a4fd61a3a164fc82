package capture

import (
	"io"
	"sync"
)

// Tee splits one live byte stream in two. Reads on the Tee behave exactly
// like reads on the wrapped reader; additionally, every byte returned is
// copied, in order, onto an unbounded FIFO queue that the paired SideReader
// consumes. The primary path never blocks on or fails because of the side
// consumer: once the SideReader is closed, forwarded chunks are silently
// discarded.
type Tee struct {
	r io.Reader
	q *chunkQueue
}

// NewTee wraps r and returns the pass-through reader together with its
// derived SideReader. The SideReader observes the same byte sequence that
// callers of Tee.Read receive, with no gaps and no reordering.
func NewTee(r io.Reader) (*Tee, *SideReader) {
	q := newChunkQueue()
	return &Tee{r: r, q: q}, &SideReader{q: q}
}

// Read reads from the underlying stream and forwards a copy of the returned
// bytes to the side queue. The queue is closed on the first error from the
// underlying reader (including io.EOF) so the side consumer observes
// end-of-stream.
func (t *Tee) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if n > 0 {
		chunk := make([]byte, n)
		copy(chunk, p[:n])
		t.q.push(chunk)
	}
	if err != nil {
		t.q.close()
	}
	return n, err
}

// SideReader yields the copy of every byte that passed through the paired
// Tee. Reads block until a chunk is available or the stream ends, at which
// point io.EOF is returned. Close detaches the reader; after that the Tee
// discards forwarded chunks instead of queueing them.
type SideReader struct {
	q    *chunkQueue
	rest []byte
}

// Read returns queued bytes, blocking while the queue is empty and the
// stream is still live.
func (s *SideReader) Read(p []byte) (int, error) {
	if len(s.rest) == 0 {
		chunk, ok := s.q.pop()
		if !ok {
			return 0, io.EOF
		}
		s.rest = chunk
	}
	n := copy(p, s.rest)
	s.rest = s.rest[n:]
	return n, nil
}

// Close detaches the side reader from the queue. It never fails.
func (s *SideReader) Close() error {
	s.q.detach()
	return nil
}

// chunkQueue is an unbounded single-producer/single-consumer FIFO of byte
// chunks. push never blocks; pop blocks until a chunk arrives or the queue
// is closed. After detach, pushed chunks are dropped.
type chunkQueue struct {
	mu       sync.Mutex
	cond     *sync.Cond
	chunks   [][]byte
	closed   bool
	detached bool
}

func newChunkQueue() *chunkQueue {
	q := &chunkQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *chunkQueue) push(chunk []byte) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed || q.detached {
		return
	}
	q.chunks = append(q.chunks, chunk)
	q.cond.Signal()
}

func (q *chunkQueue) pop() ([]byte, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.chunks) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.chunks) == 0 {
		return nil, false
	}
	chunk := q.chunks[0]
	q.chunks = q.chunks[1:]
	return chunk, true
}

func (q *chunkQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}

func (q *chunkQueue) detach() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.detached = true
	q.chunks = nil
	q.cond.Broadcast()
}
