package engine

import "sync/atomic"

// Sequence numbers questions in the order the engine receives them.
// Log lines of one session sort by it even when question IDs are fixed.
type Sequence struct {
	n atomic.Int64
}

// Next returns the next number, starting at 1.
func (s *Sequence) Next() int64 {
	return s.n.Add(1)
}

// Current returns the last number handed out.
func (s *Sequence) Current() int64 {
	return s.n.Load()
}
