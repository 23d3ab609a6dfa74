package motion

import "sync"

// Counter hands out clip ids. Implementations must return strictly increasing values.
type Counter interface {
	Next() int
}

// Sequence is a Counter returning consecutive integers.
type Sequence struct {
	mu   sync.Mutex
	next int
}

// NewSequence returns a Sequence whose first id is start.
func NewSequence(start int) *Sequence {
	return &Sequence{next: start}
}

// Next returns the next id.
func (s *Sequence) Next() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.next
	s.next++
	return id
}
