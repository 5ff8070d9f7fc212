package bus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTOptions configures an MQTT channel.
type MQTTOptions struct {
	Broker         string // tcp://host:port
	ClientID       string
	ConnectTimeout time.Duration
	PublishTimeout time.Duration
	InboxSize      int
	Logger         *slog.Logger
}

// MQTT is a Channel over an MQTT broker. Subscriptions are restored after
// every automatic reconnect.
type MQTT struct {
	opts   MQTTOptions
	client mqtt.Client
	inbox  *inbox
	logger *slog.Logger

	connected atomic.Bool

	mu     sync.Mutex
	topics map[string]struct{}
}

var _ Channel = (*MQTT)(nil)

// DialMQTT connects to the broker.
func DialMQTT(ctx context.Context, opts MQTTOptions) (*MQTT, error) {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 5 * time.Second
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = 2 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	logger := opts.Logger.With("component", "bus", "broker", opts.Broker)

	m := &MQTT{
		opts:   opts,
		logger: logger,
		inbox:  newInbox(opts.InboxSize, logger),
		topics: make(map[string]struct{}),
	}

	co := mqtt.NewClientOptions()
	co.AddBroker(opts.Broker)
	co.SetClientID(opts.ClientID)
	co.SetAutoReconnect(true)
	co.SetConnectRetry(true)
	co.SetConnectRetryInterval(2 * time.Second)
	co.SetMaxReconnectInterval(30 * time.Second)
	co.SetOrderMatters(false)
	co.OnConnect = m.onConnect
	co.OnConnectionLost = func(_ mqtt.Client, err error) {
		m.connected.Store(false)
		logger.Warn("mqtt connection lost, will auto-reconnect", "error", err)
	}
	m.client = mqtt.NewClient(co)

	logger.Info("connecting to mqtt broker", "client_id", opts.ClientID)
	if err := wait(ctx, m.client.Connect(), opts.ConnectTimeout); err != nil {
		m.client.Disconnect(0)
		return nil, fmt.Errorf("bus: connect %s: %w", opts.Broker, err)
	}
	return m, nil
}

func (m *MQTT) onConnect(c mqtt.Client) {
	m.connected.Store(true)
	m.logger.Info("mqtt connection established")

	m.mu.Lock()
	topics := make([]string, 0, len(m.topics))
	for t := range m.topics {
		topics = append(topics, t)
	}
	m.mu.Unlock()

	for _, t := range topics {
		tok := c.Subscribe(t, 0, m.handle)
		go func(topic string) {
			if !tok.WaitTimeout(m.opts.ConnectTimeout) || tok.Error() != nil {
				m.logger.Error("resubscribe failed", "topic", topic, "error", tok.Error())
			}
		}(t)
	}
}

func (m *MQTT) handle(_ mqtt.Client, raw mqtt.Message) {
	msg, err := decode(raw.Payload(), raw.Topic())
	if err != nil {
		m.logger.Warn("dropping undecodable message", "topic", raw.Topic(), "error", err)
		return
	}
	m.inbox.deliver(msg)
}

// wait blocks on tok for at most timeout or until ctx ends.
func wait(ctx context.Context, tok mqtt.Token, timeout time.Duration) error {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-tok.Done():
		return tok.Error()
	case <-t.C:
		return fmt.Errorf("timeout after %s", timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *MQTT) Publish(ctx context.Context, topic string, msg Message) error {
	if m.inbox.closed() {
		return ErrClosed
	}
	payload, err := encode(msg)
	if err != nil {
		return err
	}
	if err := wait(ctx, m.client.Publish(topic, 0, false, payload), m.opts.PublishTimeout); err != nil {
		return fmt.Errorf("bus: publish %s: %w", topic, err)
	}
	m.logger.Debug("message published", "topic", topic, "size", len(payload))
	return nil
}

func (m *MQTT) Subscribe(ctx context.Context, topic string) error {
	if m.inbox.closed() {
		return ErrClosed
	}
	if err := wait(ctx, m.client.Subscribe(topic, 0, m.handle), m.opts.ConnectTimeout); err != nil {
		return fmt.Errorf("bus: subscribe %s: %w", topic, err)
	}
	m.mu.Lock()
	m.topics[topic] = struct{}{}
	m.mu.Unlock()
	m.logger.Info("subscribed", "topic", topic)
	return nil
}

func (m *MQTT) Unsubscribe(ctx context.Context, topic string) error {
	m.mu.Lock()
	delete(m.topics, topic)
	m.mu.Unlock()
	if err := wait(ctx, m.client.Unsubscribe(topic), m.opts.ConnectTimeout); err != nil {
		return fmt.Errorf("bus: unsubscribe %s: %w", topic, err)
	}
	return nil
}

func (m *MQTT) Consume(timeout time.Duration) (Message, error) {
	return m.inbox.consume(timeout)
}

// Connected reports the broker connection state.
func (m *MQTT) Connected() bool {
	return m.connected.Load() && m.client.IsConnectionOpen()
}

// Drops is the number of inbound messages dropped on a full inbox.
func (m *MQTT) Drops() uint64 { return m.inbox.drops.Load() }

func (m *MQTT) Close() error {
	m.inbox.close()
	if m.client.IsConnected() {
		m.client.Disconnect(250)
		m.logger.Info("mqtt disconnected")
	}
	m.connected.Store(false)
	return nil
}
