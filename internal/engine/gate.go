package engine

import (
	"context"
	"sync"
)

// gate blocks workers while the run is paused. Pausing never interrupts an
// in-progress checkpoint; workers check the gate before pulling a new item
// and before starting their next checkpoint.
type gate struct {
	mu     sync.Mutex
	resume chan struct{}
}

func newGate() *gate {
	return &gate{}
}

// Pause closes the gate. Idempotent.
func (g *gate) Pause() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.resume == nil {
		g.resume = make(chan struct{})
	}
}

// Resume opens the gate and releases every waiting worker. Idempotent.
func (g *gate) Resume() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.resume != nil {
		close(g.resume)
		g.resume = nil
	}
}

// Paused reports whether the gate is currently closed.
func (g *gate) Paused() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.resume != nil
}

// Wait blocks until the gate is open or the context is done.
func (g *gate) Wait(ctx context.Context) error {
	for {
		g.mu.Lock()
		ch := g.resume
		g.mu.Unlock()
		if ch == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}
	}
}
