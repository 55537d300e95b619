// Package transport wraps the MQTT connection used by every daemon.
// Publish and Subscribe surface narrow interfaces so the router, the
// propagator and the kiosk flows can be tested without a broker.
package transport

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	connectTimeout   = 5 * time.Second
	publishTimeout   = 2 * time.Second
	subscribeTimeout = 5 * time.Second
	disconnectGrace  = 250 // milliseconds
)

// Publisher is the outbound half of the bus.
type Publisher interface {
	Publish(topic string, qos byte, payload []byte) error
}

// Handler receives inbound payloads for a subscribed topic.
type Handler func(topic string, payload []byte)

// Subscriber is the inbound half of the bus.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler Handler) error
}

// Stats contains connection counters.
type Stats struct {
	Connected bool
	Published map[string]uint64
	Errors    uint64
}

// Conn is a single logical bus connection. One Conn per client role; it is
// not shared across unrelated concurrent flows.
type Conn struct {
	broker   string
	clientID string
	client   mqtt.Client

	mu        sync.RWMutex
	connected bool
	published map[string]uint64
	errors    uint64
}

// New creates an unconnected Conn.
func New(broker, clientID string) *Conn {
	return &Conn{
		broker:    broker,
		clientID:  clientID,
		published: make(map[string]uint64),
	}
}

// Connect establishes the broker connection with auto-reconnect enabled.
func (c *Conn) Connect(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", c.broker))
	opts.SetClientID(c.clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(mqtt.Client) {
		c.mu.Lock()
		c.connected = true
		c.mu.Unlock()
		slog.Info("mqtt connection established",
			"broker", c.broker,
			"client_id", c.clientID,
		)
	}

	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()
		slog.Warn("mqtt connection lost, will auto-reconnect",
			"error", err,
			"broker", c.broker,
		)
	}

	c.client = mqtt.NewClient(opts)

	slog.Info("connecting to mqtt broker", "broker", c.broker, "client_id", c.clientID)

	token := c.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}

	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()

	_ = ctx // connection retry is delegated to the paho client
	return nil
}

// Publish sends one message and waits for broker acknowledgement.
func (c *Conn) Publish(topic string, qos byte, payload []byte) error {
	if !c.IsConnected() {
		c.countError()
		return fmt.Errorf("mqtt not connected")
	}

	token := c.client.Publish(topic, qos, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		c.countError()
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		c.countError()
		return fmt.Errorf("publish failed: %w", err)
	}

	c.mu.Lock()
	c.published[topic]++
	c.mu.Unlock()

	slog.Debug("message published", "topic", topic, "qos", qos, "size", len(payload))
	return nil
}

// PublishRetry publishes with one reconnect-and-retry attempt, for
// broadcasts that should survive a dropped connection. A second failure is
// returned to the caller.
func (c *Conn) PublishRetry(topic string, qos byte, payload []byte) error {
	err := c.Publish(topic, qos, payload)
	if err == nil {
		return nil
	}

	slog.Warn("publish failed, reconnecting for retry", "topic", topic, "error", err)
	if c.client != nil && !c.client.IsConnected() {
		token := c.client.Connect()
		if !token.WaitTimeout(connectTimeout) || token.Error() != nil {
			return fmt.Errorf("reconnect failed: %w", err)
		}
		c.mu.Lock()
		c.connected = true
		c.mu.Unlock()
	}

	return c.Publish(topic, qos, payload)
}

// Subscribe registers a handler for a topic.
func (c *Conn) Subscribe(topic string, qos byte, handler Handler) error {
	token := c.client.Subscribe(topic, qos, func(_ mqtt.Client, msg mqtt.Message) {
		handler(msg.Topic(), msg.Payload())
	})
	if !token.WaitTimeout(subscribeTimeout) {
		return fmt.Errorf("subscribe timeout for %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe failed for %s: %w", topic, err)
	}

	slog.Info("subscribed", "topic", topic, "qos", qos)
	return nil
}

// Disconnect closes the connection with a short grace period.
func (c *Conn) Disconnect() {
	if c.client != nil && c.client.IsConnected() {
		c.client.Disconnect(disconnectGrace)
		slog.Info("mqtt disconnected", "client_id", c.clientID)
	}

	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
}

// IsConnected reports connection status.
func (c *Conn) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Stats returns connection counters.
func (c *Conn) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	published := make(map[string]uint64, len(c.published))
	for k, v := range c.published {
		published[k] = v
	}
	return Stats{Connected: c.connected, Published: published, Errors: c.errors}
}

func (c *Conn) countError() {
	c.mu.Lock()
	c.errors++
	c.mu.Unlock()
}
