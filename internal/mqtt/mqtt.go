// Package mqtt wraps the paho client with the publish and subscribe
// operations mudra needs.
package mqtt

import (
	"errors"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"github.com/ayusman/mudra/internal/config"
)

const (
	connectTimeout = 5 * time.Second
	publishTimeout = 2 * time.Second
	qos            = byte(1)
)

// ErrNotConnected is returned when publishing while the broker is
// unreachable.
var ErrNotConnected = errors.New("mqtt not connected")

// Handler receives the payload of a subscribed topic.
type Handler func(topic string, payload []byte)

// Transport is the publish/subscribe surface used by the rest of mudra.
type Transport interface {
	Publish(topic string, retain bool, payload []byte) error
	Subscribe(topic string, handler Handler) error
}

// Will is published by the broker on our behalf if the connection drops.
type Will struct {
	Topic   string
	Payload string
}

// Client is a paho-backed Transport. Subscriptions are restored after a
// reconnect.
type Client struct {
	cfg            config.MQTTConfig
	client         paho.Client
	connectTimeout time.Duration

	mu            sync.RWMutex
	connected     bool
	subscriptions map[string]Handler
	onConnected   func()
}

// NewClient creates a client for the configured broker. will may be nil.
func NewClient(cfg config.MQTTConfig, will *Will) *Client {
	c := &Client{
		cfg:            cfg,
		connectTimeout: connectTimeout,
		subscriptions:  make(map[string]Handler),
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(cfg.Broker())
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	if will != nil {
		opts.SetWill(will.Topic, will.Payload, qos, true)
	}

	opts.OnConnect = c.onConnect
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		c.setConnected(false)
		log.WithFields(log.Fields{
			"broker": cfg.Broker(),
			"error":  err,
		}).Warn("mqtt connection lost, will auto-reconnect")
	}

	c.client = paho.NewClient(opts)
	return c
}

// Connect establishes the broker connection. An unreachable broker is not an
// error: paho keeps retrying in the background and onConnect restores the
// subscriptions once it succeeds.
func (c *Client) Connect() error {
	log.WithField("broker", c.cfg.Broker()).Info("connecting to mqtt broker")

	token := c.client.Connect()
	if !token.WaitTimeout(c.connectTimeout) {
		log.WithField("broker", c.cfg.Broker()).Warn("mqtt broker unreachable, retrying in background")
		return nil
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}

	c.setConnected(true)
	return nil
}

func (c *Client) onConnect(client paho.Client) {
	c.setConnected(true)
	log.WithFields(log.Fields{
		"broker":    c.cfg.Broker(),
		"client_id": c.cfg.ClientID,
	}).Info("mqtt connection established")

	c.mu.RLock()
	defer c.mu.RUnlock()
	for topic, handler := range c.subscriptions {
		client.Subscribe(topic, qos, wrap(handler))
	}
	if c.onConnected != nil {
		go c.onConnected()
	}
}

// OnConnected registers fn to run after every successful (re)connect.
func (c *Client) OnConnected(fn func()) {
	c.mu.Lock()
	c.onConnected = fn
	c.mu.Unlock()
}

// Publish sends payload to topic and waits for the broker acknowledgement.
func (c *Client) Publish(topic string, retain bool, payload []byte) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, retain, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish to %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}

	log.WithFields(log.Fields{
		"topic":  topic,
		"retain": retain,
		"size":   len(payload),
	}).Debug("mqtt message published")

	return nil
}

// Subscribe registers handler for topic. The subscription is remembered and
// renewed on every reconnect.
func (c *Client) Subscribe(topic string, handler Handler) error {
	c.mu.Lock()
	c.subscriptions[topic] = handler
	c.mu.Unlock()

	if !c.IsConnected() {
		return nil
	}

	token := c.client.Subscribe(topic, qos, wrap(handler))
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("subscribe to %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe to %s: %w", topic, err)
	}
	return nil
}

// Disconnect closes the connection with a 250ms grace period.
func (c *Client) Disconnect() {
	if c.client != nil {
		// also stops a connect retry still in flight
		c.client.Disconnect(250)
		log.Info("mqtt disconnected")
	}
	c.setConnected(false)
}

// IsConnected reports the last known connection state.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

func (c *Client) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}

func wrap(h Handler) paho.MessageHandler {
	return func(_ paho.Client, msg paho.Message) {
		h(msg.Topic(), msg.Payload())
	}
}
