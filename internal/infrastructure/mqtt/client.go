package mqtt

import (
	"sync"
	"sync/atomic"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/scene-rotator/internal/infrastructure/config"
)

// Logger is the logging interface used by the client.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// MessageHandler handles one received message. Handlers run on paho's
// goroutines and should return quickly. A returned error is logged.
type MessageHandler func(topic string, payload []byte) error

// Client is a paho client that remembers its subscriptions across
// reconnects and keeps a retained presence message up to date.
//
// Thread Safety: all methods are safe for concurrent use.
type Client struct {
	paho     pahomqtt.Client
	clientID string
	qos      byte
	topics   Topics

	connected atomic.Bool

	mu        sync.RWMutex
	handlers  map[string]route
	onConnect func()
	logger    Logger
}

// route is a tracked subscription.
type route struct {
	qos     byte
	handler MessageHandler
}

// Connect dials the broker and waits for the first session.
// After that paho reconnects on its own; each new session restores every
// tracked subscription, republishes presence and runs the SetOnConnect hook.
func Connect(cfg config.MQTTConfig) (*Client, error) {
	c := newClient(cfg)

	opts := sessionOptions(cfg, c.topics)
	opts.SetOnConnectHandler(func(pahomqtt.Client) { c.sessionUp() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.sessionDown(err) })
	opts.SetReconnectingHandler(func(pahomqtt.Client, *pahomqtt.ClientOptions) {
		c.log(func(l Logger) { l.Info("mqtt reconnecting") })
	})

	c.paho = pahomqtt.NewClient(opts)
	if err := await(c.paho.Connect(), defaultConnectTimeout, ErrConnectionFailed); err != nil {
		return nil, err
	}

	// OnConnect fires on a paho goroutine; callers may publish before it runs.
	c.connected.Store(true)
	return c, nil
}

func newClient(cfg config.MQTTConfig) *Client {
	return &Client{
		clientID: cfg.Broker.ClientID,
		qos:      byte(cfg.QoS),
		topics:   NewTopics(cfg.TopicPrefix),
		handlers: make(map[string]route),
	}
}

// Topics returns the topic builder for the configured prefix.
func (c *Client) Topics() Topics {
	return c.topics
}

// QoS returns the configured default QoS.
func (c *Client) QoS() byte {
	return c.qos
}

// IsConnected returns the last known connection state.
func (c *Client) IsConnected() bool {
	return c.paho != nil && c.connected.Load() && c.paho.IsConnected()
}

// SetOnConnect sets a callback run after every (re)connect.
func (c *Client) SetOnConnect(fn func()) {
	c.mu.Lock()
	c.onConnect = fn
	c.mu.Unlock()
}

// SetLogger sets the logger for connection and handler problems.
func (c *Client) SetLogger(logger Logger) {
	c.mu.Lock()
	c.logger = logger
	c.mu.Unlock()
}

// Close publishes an offline presence and disconnects.
func (c *Client) Close() error {
	if c == nil || c.paho == nil {
		return nil
	}
	if c.IsConnected() {
		c.paho.Publish(c.topics.Presence(), c.qos, true,
			presence(c.clientID, presenceOffline, "graceful_shutdown")).WaitTimeout(defaultPublishTimeout)
	}
	c.paho.Disconnect(defaultDisconnectQuiesce)
	c.connected.Store(false)
	return nil
}

func (c *Client) sessionUp() {
	c.connected.Store(true)

	c.mu.RLock()
	routes := make(map[string]route, len(c.handlers))
	for topic, r := range c.handlers {
		routes[topic] = r
	}
	hook := c.onConnect
	c.mu.RUnlock()

	for topic, r := range routes {
		c.paho.Subscribe(topic, r.qos, c.dispatch(r.handler))
	}
	c.paho.Publish(c.topics.Presence(), c.qos, true, presence(c.clientID, presenceOnline, ""))

	if hook != nil {
		hook()
	}
}

func (c *Client) sessionDown(err error) {
	c.connected.Store(false)
	c.log(func(l Logger) { l.Warn("mqtt connection lost", "error", err) })
}

// dispatch adapts a MessageHandler to paho, containing panics and logging errors.
func (c *Client) dispatch(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		topic := msg.Topic()
		defer func() {
			if r := recover(); r != nil {
				c.log(func(l Logger) { l.Error("mqtt handler panic recovered", "topic", topic, "panic", r) })
			}
		}()
		if err := handler(topic, msg.Payload()); err != nil {
			c.log(func(l Logger) { l.Warn("mqtt handler failed", "topic", topic, "error", err) })
		}
	}
}

func (c *Client) log(fn func(Logger)) {
	c.mu.RLock()
	l := c.logger
	c.mu.RUnlock()
	if l != nil {
		fn(l)
	}
}
