// Package acquisition decouples the hardware grab loop from frame
// publication. One producer goroutine per camera grabs frames and places them
// in a single-slot mailbox; the consumer always takes the most recent frame.
package acquisition

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/labvisio/is-spinnaker-gateway/internal/camera"
)

// Slot is a single-frame mailbox with drop-oldest semantics.
//
// Semantics:
//   - Put never blocks: a new frame replaces an unconsumed one
//   - Take blocks until a frame is available or ctx ends
//   - Each frame is delivered at most once
//
// Thread-safety:
//   - Put is serialised by mu, so the drain-then-send pair cannot race with
//     another Put and the send never blocks
//   - Take and TryTake may run concurrently with Put
type Slot struct {
	mu sync.Mutex
	ch chan camera.Frame

	puts  atomic.Uint64
	drops atomic.Uint64
}

// NewSlot returns an empty slot.
func NewSlot() *Slot {
	return &Slot{ch: make(chan camera.Frame, 1)}
}

// Put stores f, discarding the previous frame if it was never taken.
// Reports whether a frame was dropped.
func (s *Slot) Put(f camera.Frame) (dropped bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-s.ch:
		s.drops.Add(1)
		dropped = true
	default:
	}
	s.ch <- f
	s.puts.Add(1)
	return dropped
}

// Take waits for the next frame.
func (s *Slot) Take(ctx context.Context) (camera.Frame, error) {
	select {
	case f := <-s.ch:
		return f, nil
	case <-ctx.Done():
		return camera.Frame{}, ctx.Err()
	}
}

// TryTake returns the pending frame, if any, without waiting.
func (s *Slot) TryTake() (camera.Frame, bool) {
	select {
	case f := <-s.ch:
		return f, true
	default:
		return camera.Frame{}, false
	}
}

// Drain discards a pending frame without counting it as a drop.
func (s *Slot) Drain() {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.ch:
	default:
	}
}

// Drops is the number of frames overwritten before being taken.
func (s *Slot) Drops() uint64 { return s.drops.Load() }

// Puts is the number of frames stored.
func (s *Slot) Puts() uint64 { return s.puts.Load() }
