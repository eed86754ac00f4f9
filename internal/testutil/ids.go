package testutil

import (
	"strconv"
	"sync"
)

// IDSequence hands out deterministic message ids: "m1", "m2", ...
//
// The same sequence of writes against a fresh MemSurface always produces the
// same ids, which keeps golden transcripts byte-identical across runs.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type IDSequence struct {
	mu     sync.Mutex
	prefix string
	seq    int64
}

// NewIDSequence creates a sequence whose first id is prefix+"1".
func NewIDSequence(prefix string) *IDSequence {
	return &IDSequence{prefix: prefix}
}

// Next increments and returns the next id.
func (s *IDSequence) Next() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.prefix + strconv.FormatInt(s.seq, 10)
}

// Current returns how many ids have been handed out.
func (s *IDSequence) Current() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// Reset restarts the sequence. The next call to Next returns prefix+"1".
func (s *IDSequence) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq = 0
}

// FixedPassIDGenerator returns the same pass id every time.
//
// Unlike engine.FixedGenerator which returns ids in sequence, this generator
// never runs out, so scenarios can run any number of passes.
//
// Thread-safety: FixedPassIDGenerator is stateless and safe for concurrent use.
type FixedPassIDGenerator struct {
	id string
}

// NewFixedPassIDGenerator creates a fixed generator.
// If id is empty, Generate returns "test-pass".
func NewFixedPassIDGenerator(id string) *FixedPassIDGenerator {
	if id == "" {
		id = "test-pass"
	}
	return &FixedPassIDGenerator{id: id}
}

// Generate returns the fixed pass id.
//
// Implements engine.PassIDGenerator.
func (g *FixedPassIDGenerator) Generate() string {
	return g.id
}
