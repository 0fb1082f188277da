package terminal

import "sync"

// Scrollback is a fixed-size ring of the most recent terminal output.
type Scrollback struct {
	mu   sync.RWMutex
	data []byte
	head int // oldest byte
	n    int // bytes held
}

// NewScrollback creates a ring holding up to size bytes.
func NewScrollback(size int) *Scrollback {
	if size < 0 {
		size = 0
	}
	return &Scrollback{data: make([]byte, size)}
}

// Write appends p, dropping the oldest bytes once the ring is full.
func (s *Scrollback) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	size := len(s.data)
	if size == 0 {
		return len(p), nil
	}

	in := p
	if len(in) >= size {
		// Only the tail survives.
		copy(s.data, in[len(in)-size:])
		s.head, s.n = 0, size
		return len(p), nil
	}

	tail := (s.head + s.n) % size
	k := copy(s.data[tail:], in)
	copy(s.data, in[k:])

	s.n += len(in)
	if s.n > size {
		s.head = (s.head + s.n - size) % size
		s.n = size
	}
	return len(p), nil
}

// Bytes returns a copy of the held output, oldest first.
func (s *Scrollback) Bytes() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]byte, s.n)
	if s.n == 0 {
		return out
	}
	k := copy(out, s.data[s.head:min(s.head+s.n, len(s.data))])
	copy(out[k:], s.data[:s.n-k])
	return out
}

// Len returns the number of bytes held.
func (s *Scrollback) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.n
}

// Reset drops all held output.
func (s *Scrollback) Reset() {
	s.mu.Lock()
	s.head, s.n = 0, 0
	s.mu.Unlock()
}
