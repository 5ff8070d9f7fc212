package bus

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Broker routes messages between Local channels in the same process.
type Broker struct {
	mu    sync.RWMutex
	conns map[*Local]struct{}
}

// NewBroker returns an empty in-memory broker.
func NewBroker() *Broker {
	return &Broker{conns: make(map[*Local]struct{})}
}

// NewLocal attaches a new channel to b.
func NewLocal(b *Broker) *Local {
	l := &Local{
		broker: b,
		inbox:  newInbox(DefaultInboxSize, slog.Default().With("component", "bus", "broker", "local")),
		topics: make(map[string]struct{}),
	}
	b.mu.Lock()
	b.conns[l] = struct{}{}
	b.mu.Unlock()
	return l
}

func (b *Broker) route(topic string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for l := range b.conns {
		if !l.subscribed(topic) {
			continue
		}
		// decode per receiver so no two channels share a message value
		msg, err := decode(payload, topic)
		if err != nil {
			return err
		}
		l.inbox.deliver(msg)
	}
	return nil
}

func (b *Broker) detach(l *Local) {
	b.mu.Lock()
	delete(b.conns, l)
	b.mu.Unlock()
}

// Local is an in-memory Channel. Messages go through the same msgpack
// encoding as on MQTT.
type Local struct {
	broker *Broker
	inbox  *inbox

	mu     sync.RWMutex
	topics map[string]struct{}
}

var _ Channel = (*Local)(nil)

func (l *Local) subscribed(topic string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for filter := range l.topics {
		if Match(filter, topic) {
			return true
		}
	}
	return false
}

func (l *Local) Publish(ctx context.Context, topic string, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if l.inbox.closed() {
		return ErrClosed
	}
	payload, err := encode(msg)
	if err != nil {
		return err
	}
	return l.broker.route(topic, payload)
}

func (l *Local) Subscribe(_ context.Context, topic string) error {
	if l.inbox.closed() {
		return ErrClosed
	}
	l.mu.Lock()
	l.topics[topic] = struct{}{}
	l.mu.Unlock()
	return nil
}

func (l *Local) Unsubscribe(_ context.Context, topic string) error {
	l.mu.Lock()
	delete(l.topics, topic)
	l.mu.Unlock()
	return nil
}

func (l *Local) Consume(timeout time.Duration) (Message, error) {
	return l.inbox.consume(timeout)
}

func (l *Local) Connected() bool { return !l.inbox.closed() }

func (l *Local) Close() error {
	l.inbox.close()
	l.broker.detach(l)
	return nil
}

// Match reports whether topic matches an MQTT topic filter, with '+'
// matching one level and a trailing '#' matching any remainder.
func Match(filter, topic string) bool {
	if filter == topic {
		return true
	}
	fs := strings.Split(filter, "/")
	ts := strings.Split(topic, "/")
	for i, f := range fs {
		if f == "#" {
			return i == len(fs)-1
		}
		if i >= len(ts) {
			return false
		}
		if f != "+" && f != ts[i] {
			return false
		}
	}
	return len(fs) == len(ts)
}
