package core

// gate.go implements the busy flag that serializes submissions.
//
// A Gate is a semaphore with a fixed number of slots. A batch uses a single
// slot: SubmitAll and SubmitOne both TryAcquire it, so neither can start while
// the other runs. The Service uses a wider gate to bound how many sessions
// submit at once. WaitForDrain blocks shutdown until in-flight work settles.

import (
	"context"
	"sync"
	"time"
)

// Gate limits concurrent submissions using a semaphore pattern.
type Gate struct {
	semaphore chan struct{}

	mu     sync.RWMutex
	active int
}

// NewGate creates a gate with the given number of slots (minimum 1).
func NewGate(slots int) *Gate {
	if slots <= 0 {
		slots = 1
	}
	return &Gate{semaphore: make(chan struct{}, slots)}
}

// TryAcquire takes a slot without blocking.
// Returns true if a slot was acquired, false otherwise.
func (g *Gate) TryAcquire() bool {
	select {
	case g.semaphore <- struct{}{}:
		g.mu.Lock()
		g.active++
		g.mu.Unlock()
		return true
	default:
		return false
	}
}

// Release frees a slot.
// Must be called exactly once for each successful TryAcquire.
func (g *Gate) Release() {
	g.mu.Lock()
	g.active--
	g.mu.Unlock()

	<-g.semaphore
}

// Busy reports whether every slot is taken.
func (g *Gate) Busy() bool {
	return len(g.semaphore) == cap(g.semaphore)
}

// ActiveCount returns the number of held slots.
func (g *Gate) ActiveCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.active
}

// WaitForDrain blocks until no slot is held or ctx is done.
func (g *Gate) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if g.ActiveCount() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// GateStatus is a snapshot of a gate.
type GateStatus struct {
	Active    int `json:"active"`
	Available int `json:"available"`
	Slots     int `json:"slots"`
}

// Status returns the current gate state for monitoring.
func (g *Gate) Status() GateStatus {
	g.mu.RLock()
	active := g.active
	g.mu.RUnlock()

	return GateStatus{
		Active:    active,
		Available: cap(g.semaphore) - len(g.semaphore),
		Slots:     cap(g.semaphore),
	}
}
