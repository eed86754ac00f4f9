package engine

// PassState is the explicit state of one reconciliation pass.
//
// The cursor is a position in the current window. It never decreases and is
// never reused across passes: every pass starts from NewPassState.
type PassState struct {
	cursor    int
	remaining []RenderBlock
	stats     Stats
}

// Stats counts what a pass did.
type Stats struct {
	Blocks        int
	Placed        int
	Created       int
	Edited        int
	Kept          int
	Deleted       int
	SkippedSystem int
}

// Writes returns the number of remote writes issued.
func (s Stats) Writes() int {
	return s.Created + s.Edited + s.Deleted
}

// NewPassState creates the state for a pass over the given blocks.
// The blocks slice is copied so callers cannot mutate the queue.
func NewPassState(blocks []RenderBlock) *PassState {
	queue := make([]RenderBlock, len(blocks))
	copy(queue, blocks)
	return &PassState{
		remaining: queue,
		stats:     Stats{Blocks: len(blocks)},
	}
}

// Cursor returns the current position.
func (s *PassState) Cursor() int {
	return s.cursor
}

// Pending reports whether blocks remain to be placed.
func (s *PassState) Pending() bool {
	return len(s.remaining) > 0
}

// Next returns the block to place next. Callers must check Pending first.
func (s *PassState) Next() RenderBlock {
	return s.remaining[0]
}

// Remaining returns the number of blocks left to place.
func (s *PassState) Remaining() int {
	return len(s.remaining)
}

// Stats returns a copy of the pass counters.
func (s *PassState) Stats() Stats {
	return s.stats
}

// advance moves the cursor one position forward.
func (s *PassState) advance() {
	s.cursor++
}

// place consumes the next block and moves past the slot it now occupies.
func (s *PassState) place() {
	s.remaining = s.remaining[1:]
	s.stats.Placed++
	s.advance()
}
