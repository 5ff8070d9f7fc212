// Package bus is the pub/sub channel the gateway talks through: a msgpack
// message envelope, an MQTT implementation and an in-memory one for tests.
package bus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/labvisio/is-spinnaker-gateway/internal/status"
)

var (
	// ErrTimeout is returned by Consume when no message arrived in time.
	ErrTimeout = errors.New("bus: consume timeout")
	// ErrClosed is returned once the channel is closed.
	ErrClosed = errors.New("bus: channel closed")
)

// Message is the envelope of everything sent on the bus.
//
// Requests carry ReplyTo; replies carry CorrelationID (the request ID) and
// Status. Metadata holds propagated trace context.
type Message struct {
	ID            string            `msgpack:"id"`
	CorrelationID string            `msgpack:"correlation_id,omitempty"`
	ReplyTo       string            `msgpack:"reply_to,omitempty"`
	Status        *status.Status    `msgpack:"status,omitempty"`
	Body          []byte            `msgpack:"body,omitempty"`
	Metadata      map[string]string `msgpack:"metadata,omitempty"`
	CreatedAt     int64             `msgpack:"created_at"`

	// Topic is set on receipt.
	Topic string `msgpack:"-"`
}

// NewMessage returns a message with a fresh ID.
func NewMessage() Message {
	return Message{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UnixMilli(),
	}
}

// Pack msgpack-encodes v into the body.
func (m *Message) Pack(v any) error {
	b, err := msgpack.Marshal(v)
	if err != nil {
		return fmt.Errorf("bus: pack body: %w", err)
	}
	m.Body = b
	return nil
}

// Unpack decodes the body into v. An empty body leaves v untouched.
func (m Message) Unpack(v any) error {
	if len(m.Body) == 0 {
		return nil
	}
	if err := msgpack.Unmarshal(m.Body, v); err != nil {
		return fmt.Errorf("bus: unpack body: %w", err)
	}
	return nil
}

// Reply builds the reply to m with st.
func (m Message) Reply(st status.Status) Message {
	r := NewMessage()
	r.CorrelationID = m.ID
	r.Status = &st
	return r
}

// Err returns the remote error carried by a reply, if any.
func (m Message) Err() error {
	if m.Status == nil {
		return nil
	}
	return m.Status.Err()
}

func encode(m Message) ([]byte, error) {
	b, err := msgpack.Marshal(&m)
	if err != nil {
		return nil, fmt.Errorf("bus: encode message: %w", err)
	}
	return b, nil
}

func decode(b []byte, topic string) (Message, error) {
	var m Message
	if err := msgpack.Unmarshal(b, &m); err != nil {
		return Message{}, fmt.Errorf("bus: decode message on %s: %w", topic, err)
	}
	m.Topic = topic
	return m, nil
}

// Channel is a pub/sub connection with a single inbox.
//
// Consume semantics:
//   - timeout == 0 returns immediately (ErrTimeout when empty)
//   - timeout < 0 waits until a message arrives or the channel closes
//   - otherwise waits up to timeout
type Channel interface {
	Publish(ctx context.Context, topic string, msg Message) error
	Subscribe(ctx context.Context, topic string) error
	Unsubscribe(ctx context.Context, topic string) error
	Consume(timeout time.Duration) (Message, error)
	Connected() bool
	Close() error
}
