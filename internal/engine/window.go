package engine

import (
	"context"
	"fmt"
)

// DefaultHistoryLimit is the number of most recent messages inspected per read.
const DefaultHistoryLimit = 500

// WindowReader reads the current message window of a surface.
// It never caches: every call goes to the surface.
type WindowReader struct {
	surface Surface
	limit   int
}

// NewWindowReader creates a reader capped at limit messages.
// A non-positive limit uses DefaultHistoryLimit.
func NewWindowReader(surface Surface, limit int) *WindowReader {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &WindowReader{surface: surface, limit: limit}
}

// Limit returns the window cap.
func (r *WindowReader) Limit() int {
	return r.limit
}

// Read returns the most recent messages, oldest first, with positions
// renumbered 0..n-1. Surfaces returning more than the cap are trimmed to the
// newest entries.
func (r *WindowReader) Read(ctx context.Context, surfaceID string) ([]Message, error) {
	msgs, err := r.surface.History(ctx, surfaceID, r.limit)
	if err != nil {
		return nil, fmt.Errorf("read window %s: %w", surfaceID, err)
	}

	if len(msgs) > r.limit {
		msgs = msgs[len(msgs)-r.limit:]
	}

	window := make([]Message, len(msgs))
	for i, m := range msgs {
		m.Position = i
		window[i] = m
	}
	return window, nil
}
