package transport

import (
	"bytes"
	"sync"
)

// MemoryPort is a scripted in-memory Port. Reads drain bytes queued with Feed
// (or produced by Refill once the queue runs dry); writes are captured and
// optionally forwarded to OnWrite. Reads never block: an empty queue is an
// immediate ErrReadTimeout.
type MemoryPort struct {
	mu      sync.Mutex
	in      []byte
	out     bytes.Buffer
	writes  int
	flushes int
	closes  int
	closed  bool

	// Refill is consulted whenever the read queue is empty.
	Refill func() []byte
	// OnWrite sees every write after it is captured.
	OnWrite func(p []byte)
}

func NewMemoryPort(initial ...[]byte) *MemoryPort {
	m := &MemoryPort{}
	m.Feed(initial...)
	return m
}

// Feed appends bytes to the read queue.
func (m *MemoryPort) Feed(chunks ...[]byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range chunks {
		m.in = append(m.in, c...)
	}
}

func (m *MemoryPort) refillLocked() {
	if len(m.in) == 0 && m.Refill != nil {
		m.in = append(m.in, m.Refill()...)
	}
}

func (m *MemoryPort) Read(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrClosed
	}
	m.refillLocked()
	if len(m.in) == 0 {
		return 0, ErrReadTimeout
	}
	n := copy(p, m.in)
	m.in = m.in[n:]
	return n, nil
}

func (m *MemoryPort) Write(p []byte) (int, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return 0, ErrClosed
	}
	m.out.Write(p)
	m.writes++
	hook := m.OnWrite
	m.mu.Unlock()
	if hook != nil {
		hook(append([]byte(nil), p...))
	}
	return len(p), nil
}

func (m *MemoryPort) Available() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrClosed
	}
	m.refillLocked()
	return len(m.in), nil
}

func (m *MemoryPort) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.flushes++
	return nil
}

func (m *MemoryPort) ResetInputBuffer() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.in = m.in[:0]
	return nil
}

func (m *MemoryPort) ResetOutputBuffer() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	return nil
}

func (m *MemoryPort) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closes++
	m.closed = true
	return nil
}

// Written returns a copy of every byte written so far.
func (m *MemoryPort) Written() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.out.Bytes()...)
}

// Pending returns the number of unread queued bytes.
func (m *MemoryPort) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.in)
}

func (m *MemoryPort) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

func (m *MemoryPort) Flushes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flushes
}

func (m *MemoryPort) Closes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closes
}
