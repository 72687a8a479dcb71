package videosource

import (
	"errors"
	"fmt"
	"image"
	"io"
	"sync"
	"sync/atomic"
)

// frameDecoder produces frames in stream order.
type frameDecoder interface {
	// Next returns the next frame, or io.EOF after the last one.
	Next() (*image.RGBA, error)
	// Rewind moves back to the first frame.
	Rewind() error
	Close() error
}

var errMailboxClosed = errors.New("videosource: source closed")

// mailbox holds the latest decoded frame. The decoder goroutine publishes into it and never runs
// ahead of the index the consumer asked for. When the consumer jumps forward, the frames in
// between overwrite each other and count as drops.
type mailbox struct {
	mu   sync.Mutex
	cond *sync.Cond

	frame *image.RGBA
	index int // index of frame, -1 when empty
	read  bool
	want  int // highest index requested by the consumer

	rewind bool
	eof    bool
	count  int // frame count once eof is reached
	err    error
	closed bool

	drops uint64
}

func newMailbox() *mailbox {
	m := &mailbox{index: -1}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// run decodes until the mailbox closes. It is the only goroutine touching dec.
func (m *mailbox) run(dec frameDecoder) {
	next := 0
	for {
		m.mu.Lock()
		for !m.closed && !m.rewind && (next > m.want || m.eof) && m.err == nil {
			m.cond.Wait()
		}
		if m.closed || m.err != nil {
			m.mu.Unlock()
			return
		}
		if m.rewind {
			m.mu.Unlock()
			err := dec.Rewind()
			m.mu.Lock()
			m.rewind = false
			m.eof = false
			m.err = err
			m.frame, m.index = nil, -1
			next = 0
			m.cond.Broadcast()
			m.mu.Unlock()
			continue
		}
		m.mu.Unlock()

		img, err := dec.Next()

		m.mu.Lock()
		switch {
		case errors.Is(err, io.EOF):
			m.eof = true
			m.count = next
		case err != nil:
			m.err = err
		case m.rewind:
			// A rewind arrived while decoding; the frame belongs to the old pass.
		default:
			if m.frame != nil && !m.read {
				atomic.AddUint64(&m.drops, 1)
			}
			m.frame, m.index, m.read = img, next, false
			next++
		}
		m.cond.Broadcast()
		m.mu.Unlock()
	}
}

// get blocks until the frame at index is published.
func (m *mailbox) get(index int) (*image.RGBA, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err == nil && index < m.index {
		m.rewind = true
	}
	m.want = index
	m.cond.Broadcast()

	for {
		switch {
		case m.closed:
			return nil, errMailboxClosed
		case m.err != nil:
			return nil, m.err
		case m.rewind:
		case m.index == index:
			m.read = true
			return m.frame, nil
		case m.eof && index >= m.count:
			return nil, fmt.Errorf("%w: frame %d of %d", ErrEndOfStream, index, m.count)
		}
		m.cond.Wait()
	}
}

// Drops returns how many decoded frames were overwritten before being read.
func (m *mailbox) Drops() uint64 {
	return atomic.LoadUint64(&m.drops)
}

func (m *mailbox) close() {
	m.mu.Lock()
	m.closed = true
	m.cond.Broadcast()
	m.mu.Unlock()
}
