package acquisition

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labvisio/is-spinnaker-gateway/internal/camera"
)

// TestSlotDropOldest validates mailbox overwrite semantics.
//
// Contract:
//   - A new frame replaces an unconsumed one (not queued)
//   - Drops counts every overwritten frame
//
// Scenario:
//  1. Put F1, F2, F3 without consuming
//  2. Take returns F3
//  3. Drops = 2 and the slot is empty afterwards
func TestSlotDropOldest(t *testing.T) {
	s := NewSlot()

	assert.False(t, s.Put(camera.Frame{Seq: 1}))
	assert.True(t, s.Put(camera.Frame{Seq: 2}))
	assert.True(t, s.Put(camera.Frame{Seq: 3}))

	f, err := s.Take(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(3), f.Seq)
	assert.Equal(t, uint64(2), s.Drops())
	assert.Equal(t, uint64(3), s.Puts())

	_, ok := s.TryTake()
	assert.False(t, ok, "frame delivered at most once")
}

func TestSlotTakeHonoursContext(t *testing.T) {
	s := NewSlot()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := s.Take(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestSlotTakeWakesOnPut(t *testing.T) {
	s := NewSlot()
	got := make(chan uint64, 1)
	go func() {
		f, err := s.Take(context.Background())
		if err == nil {
			got <- f.Seq
		}
	}()

	time.Sleep(10 * time.Millisecond)
	s.Put(camera.Frame{Seq: 42})

	select {
	case seq := <-got:
		assert.Equal(t, uint64(42), seq)
	case <-time.After(time.Second):
		t.Fatal("Take did not wake on Put")
	}
}

func TestSlotDrain(t *testing.T) {
	s := NewSlot()
	s.Put(camera.Frame{Seq: 1})
	s.Drain()

	_, ok := s.TryTake()
	assert.False(t, ok)
	assert.Zero(t, s.Drops())
}

// TestSlotConcurrentAtMostOnce validates that under a fast producer and a
// slow consumer no frame is delivered twice and every put is either taken
// or counted as a drop.
func TestSlotConcurrentAtMostOnce(t *testing.T) {
	s := NewSlot()
	const n = 5000

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= n; i++ {
			s.Put(camera.Frame{Seq: uint64(i)})
		}
	}()

	seen := make(map[uint64]bool)
	var last uint64
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	taken := 0
	for {
		f, ok := s.TryTake()
		if ok {
			require.False(t, seen[f.Seq], "frame %d delivered twice", f.Seq)
			require.Greater(t, f.Seq, last, "frames delivered in order")
			seen[f.Seq] = true
			last = f.Seq
			taken++
			continue
		}
		select {
		case <-done:
			if f, ok := s.TryTake(); ok {
				seen[f.Seq] = true
				taken++
			}
			assert.Equal(t, uint64(n), uint64(taken)+s.Drops())
			return
		default:
		}
	}
}
