// Package engine implements the rollcall display reconciliation engine.
//
// The engine keeps one chat channel (the display surface) synchronized with
// the roster. Each pass plans an ordered list of render blocks from a fresh
// roster snapshot, then converges the channel's message log onto it with the
// fewest sends, edits and deletes.
//
// ARCHITECTURE:
//
// Pass flow:
// 1. Settings lookup; no display surface configured means no pass
// 2. Per-destination lock (one pass per surface at a time)
// 3. Planner turns the snapshot into render blocks
// 4. Reconciler places blocks one at a time, advancing a cursor
// 5. Cleanup deletes everything past the cursor except system messages
//
// The window is re-read before every position check: each write shifts the
// remote log, so no decision is made against a stale read.
//
// OWNERSHIP:
//
// A message is owned when its author is the surface's own identity and its
// type is standard. Owned messages are edited in place. Foreign standard
// messages in the controlled region are deleted. System messages are stepped
// over and never written to.
//
// ORDERING:
//
// Writes for a surface are issued strictly in cursor order, one at a time.
// Later decisions depend on the post-write state of the window, so nothing
// is batched or issued concurrently.
//
// FAILURE:
//
// A pass aborts on the first failed read or write. There are no retries
// inside a pass; the algorithm is idempotent and the next trigger
// re-converges from whatever state the surface was left in.
package engine
