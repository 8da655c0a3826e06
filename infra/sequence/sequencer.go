package sequence

import "sync/atomic"

// Sequencer generates strictly monotonic identifiers. It is
// deterministic and replay-safe: recovery resets it past the highest
// persisted value before any new submission is sequenced.
type Sequencer struct {
	next atomic.Uint64
}

// New creates a sequencer that will issue start+1 first.
func New(start uint64) *Sequencer {
	s := &Sequencer{}
	s.next.Store(start)
	return s
}

// Next returns the next value.
func (s *Sequencer) Next() uint64 {
	return s.next.Add(1)
}

// Current returns the last issued value.
func (s *Sequencer) Current() uint64 {
	return s.next.Load()
}

// Reset sets the counter. Only used after recovery.
func (s *Sequencer) Reset(v uint64) {
	s.next.Store(v)
}
