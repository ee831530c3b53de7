// Package health gives the core a liveness surface an operator's supervisor
// can poll directly, without the core depending on an HTTP router.
package health

import "sync/atomic"

// Probe tracks whether the provider tree has finished its initial build
// (including the Remote Settings providers' first sync) and is safe to
// route traffic to.
type Probe struct {
	ready atomic.Bool
}

// NewProbe returns a Probe that starts out not ready.
func NewProbe() *Probe {
	return &Probe{}
}

// MarkReady flips the probe ready. Idempotent.
func (p *Probe) MarkReady() {
	p.ready.Store(true)
}

// MarkNotReady flips the probe back to not ready, e.g. during a failed
// reconfigure that left the tree in a known-bad state.
func (p *Probe) MarkNotReady() {
	p.ready.Store(false)
}

// IsReady reports whether MarkReady has been called more recently than
// MarkNotReady.
func (p *Probe) IsReady() bool {
	return p.ready.Load()
}
