package bus

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultInboxSize bounds the messages buffered between the transport and
// Consume.
const DefaultInboxSize = 64

// inbox buffers received messages. Delivery never blocks the transport; a
// full inbox drops the message with a warning.
type inbox struct {
	ch     chan Message
	done   chan struct{}
	once   sync.Once
	drops  atomic.Uint64
	logger *slog.Logger
}

func newInbox(size int, logger *slog.Logger) *inbox {
	if size <= 0 {
		size = DefaultInboxSize
	}
	return &inbox{
		ch:     make(chan Message, size),
		done:   make(chan struct{}),
		logger: logger,
	}
}

func (b *inbox) deliver(m Message) {
	select {
	case <-b.done:
		return
	default:
	}
	select {
	case b.ch <- m:
	default:
		n := b.drops.Add(1)
		b.logger.Warn("inbox full, dropping message", "topic", m.Topic, "id", m.ID, "total_drops", n)
	}
}

func (b *inbox) consume(timeout time.Duration) (Message, error) {
	// Pending messages are still handed out before reporting closure.
	select {
	case m := <-b.ch:
		return m, nil
	default:
	}
	if timeout == 0 {
		select {
		case <-b.done:
			return Message{}, ErrClosed
		default:
			return Message{}, ErrTimeout
		}
	}

	var expire <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expire = t.C
	}
	select {
	case m := <-b.ch:
		return m, nil
	case <-b.done:
		return Message{}, ErrClosed
	case <-expire:
		return Message{}, ErrTimeout
	}
}

func (b *inbox) close() {
	b.once.Do(func() { close(b.done) })
}

func (b *inbox) closed() bool {
	select {
	case <-b.done:
		return true
	default:
		return false
	}
}
