package engine

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Pacer spaces out writes per surface.
type Pacer struct {
	mu    sync.Mutex
	m     map[string]*rate.Limiter
	rps   float64
	burst int
}

// NewPacer creates a pacer allowing rps writes per second per surface.
// Returns nil when rps <= 0 (unpaced); a nil *Pacer never waits.
func NewPacer(rps float64, burst int) *Pacer {
	if rps <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &Pacer{m: make(map[string]*rate.Limiter), rps: rps, burst: burst}
}

func (p *Pacer) get(surfaceID string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	if l, ok := p.m[surfaceID]; ok {
		return l
	}
	l := rate.NewLimiter(rate.Limit(p.rps), p.burst)
	p.m[surfaceID] = l
	return l
}

// Wait blocks until a write to surfaceID is allowed or ctx is done.
func (p *Pacer) Wait(ctx context.Context, surfaceID string) error {
	if p == nil {
		return nil
	}
	return p.get(surfaceID).Wait(ctx)
}
