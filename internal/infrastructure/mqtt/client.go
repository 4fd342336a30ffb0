package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/gray-logic-onewire/internal/infrastructure/config"
)

// Logger is the subset of logging.Logger the client writes to.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// MessageHandler receives one inbound message. It runs on a paho goroutine,
// so it must return quickly. A returned error is logged and otherwise ignored.
type MessageHandler func(topic string, payload []byte) error

// Status describes the broker link of one bridge node.
type Status struct {
	Connected bool      `json:"connected"`
	Since     time.Time `json:"since"`
	// Reconnects counts connects after the first one.
	Reconnects int    `json:"reconnects"`
	LastLoss   string `json:"last_loss,omitempty"`
}

// Client is the bridge node's MQTT session.
//
// The node's availability topic belongs to the client: it is set as the
// Last Will, published "online" (retained) after every connect and
// "offline" on Close. Subscriptions survive reconnects.
type Client struct {
	client pahomqtt.Client
	cfg    config.MQTTConfig
	topics Topics
	now    func() time.Time

	mu     sync.RWMutex
	status Status
	subs   map[string]subscription

	hookMu       sync.RWMutex
	logger       Logger
	onConnect    func()
	onDisconnect func(err error)
}

type subscription struct {
	qos     byte
	handler MessageHandler
}

// newClient returns a client that is not yet attached to a broker.
func newClient(cfg config.MQTTConfig, topics Topics) *Client {
	return &Client{
		cfg:    cfg,
		topics: topics,
		now:    time.Now,
		subs:   make(map[string]subscription),
	}
}

// Connect dials the broker described by cfg and announces the node online.
//
// paho keeps retrying in the background with the configured backoff; when
// the first attempt does not complete within the connect timeout the retry
// loop is stopped and ErrConnectionFailed is returned.
func Connect(cfg config.MQTTConfig, topics Topics) (*Client, error) {
	c := newClient(cfg, topics)

	opts := buildClientOptions(cfg)
	configureLWT(opts, topics)
	opts.SetOnConnectHandler(func(pahomqtt.Client) { c.linkUp() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.linkDown(err) })
	opts.SetReconnectingHandler(func(pahomqtt.Client, *pahomqtt.ClientOptions) {
		if l := c.log(); l != nil {
			l.Warn("reconnecting to MQTT broker", "broker", brokerURL(cfg))
		}
	})

	c.client = pahomqtt.NewClient(opts)
	tok := c.client.Connect()
	if !tok.WaitTimeout(defaultConnectTimeout) {
		c.client.Disconnect(0)
		return nil, fmt.Errorf("%w: %s did not answer within %v", ErrConnectionFailed, brokerURL(cfg), defaultConnectTimeout)
	}
	if err := tok.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// linkUp runs asynchronously; make the state visible to the caller now.
	c.markConnected(false)
	return c, nil
}

// markConnected flips the link to connected and reports whether it was a
// reconnect. A repeated call for the same session is a no-op.
func (c *Client) markConnected(reconnect bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status.Connected {
		return
	}
	if reconnect && !c.status.Since.IsZero() {
		c.status.Reconnects++
	}
	c.status.Connected = true
	c.status.Since = c.now()
}

// linkUp runs on every (re)connect: it restores subscriptions, republishes
// availability and then notifies the owner.
func (c *Client) linkUp() {
	c.markConnected(true)

	c.mu.RLock()
	if l := c.log(); l != nil && c.status.Reconnects > 0 {
		l.Info("MQTT link restored", "reconnects", c.status.Reconnects, "subscriptions", len(c.subs))
	}
	for topic, sub := range c.subs {
		c.client.Subscribe(topic, sub.qos, c.wrapHandler(sub.handler))
	}
	c.mu.RUnlock()

	c.client.Publish(c.topics.Availability(), availabilityQoS, true, PayloadOnline)

	c.hookMu.RLock()
	fn := c.onConnect
	c.hookMu.RUnlock()
	if fn != nil {
		fn()
	}
}

// linkDown records a lost connection and notifies the owner.
func (c *Client) linkDown(err error) {
	c.mu.Lock()
	c.status.Connected = false
	c.status.Since = c.now()
	if err != nil {
		c.status.LastLoss = err.Error()
	}
	c.mu.Unlock()

	c.hookMu.RLock()
	fn := c.onDisconnect
	c.hookMu.RUnlock()
	if fn != nil {
		fn(err)
	}
}

// Close marks the node offline and disconnects. It is safe on a client
// that never connected.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}
	if c.IsConnected() {
		c.client.Publish(c.topics.Availability(), availabilityQoS, true, PayloadOffline).
			WaitTimeout(defaultPublishTimeout)
	}
	c.client.Disconnect(defaultDisconnectQuiesce)

	c.mu.Lock()
	c.status.Connected = false
	c.status.Since = c.now()
	c.mu.Unlock()
	return nil
}

// Status returns a snapshot of the broker link.
func (c *Client) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := c.status
	s.Connected = s.Connected && c.client != nil && c.client.IsConnected()
	return s
}

// IsConnected reports whether the broker link is currently up.
func (c *Client) IsConnected() bool {
	return c.Status().Connected
}

// HealthCheck fails while the broker link is down. The error says for how
// long and why the last session ended.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}

	s := c.Status()
	if s.Connected {
		return nil
	}
	if s.Since.IsZero() {
		return ErrNotConnected
	}
	down := c.now().Sub(s.Since).Round(time.Second)
	if s.LastLoss != "" {
		return fmt.Errorf("%w for %v: %s", ErrNotConnected, down, s.LastLoss)
	}
	return fmt.Errorf("%w for %v", ErrNotConnected, down)
}

// SetOnConnect registers fn to run after every connect, including the
// reconnects paho performs on its own.
func (c *Client) SetOnConnect(fn func()) {
	c.hookMu.Lock()
	c.onConnect = fn
	c.hookMu.Unlock()
}

// SetOnDisconnect registers fn to run when the broker link is lost.
func (c *Client) SetOnDisconnect(fn func(err error)) {
	c.hookMu.Lock()
	c.onDisconnect = fn
	c.hookMu.Unlock()
}

// SetLogger sets the logger used for handler failures and reconnects.
func (c *Client) SetLogger(logger Logger) {
	c.hookMu.Lock()
	c.logger = logger
	c.hookMu.Unlock()
}

// Topics returns the topic layout of this node.
func (c *Client) Topics() Topics {
	return c.topics
}

func (c *Client) log() Logger {
	c.hookMu.RLock()
	defer c.hookMu.RUnlock()
	return c.logger
}

// await waits for a paho token and maps the outcome onto ErrTimeout or
// ErrRejected. op names the request in the error.
func await(tok pahomqtt.Token, op string) error {
	if !tok.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%s: %w after %v", op, ErrTimeout, defaultPublishTimeout)
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("%s: %w: %w", op, ErrRejected, err)
	}
	return nil
}

// wrapHandler adapts h to paho, logging returned errors and recovering
// panics so one bad handler cannot take down the paho router.
func (c *Client) wrapHandler(h MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				if l := c.log(); l != nil {
					l.Error("panic in MQTT handler", "topic", msg.Topic(), "panic", r)
				}
			}
		}()

		if err := h(msg.Topic(), msg.Payload()); err != nil {
			if l := c.log(); l != nil {
				l.Warn("MQTT handler failed", "topic", msg.Topic(), "error", err)
			}
		}
	}
}
