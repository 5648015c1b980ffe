package mqtt

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"rover-bridge/config"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// Handler receives messages for a subscription.
type Handler func(topic string, payload []byte)

// Client wraps the PAHO MQTT client, re-subscribing after reconnects.
type Client struct {
	client  paho.Client
	topics  Topics
	qos     byte
	timeout time.Duration
	logger  *slog.Logger

	announce bool

	mu   sync.RWMutex
	subs map[string]Handler
}

// Options select the role of the connection.
type Options struct {
	// Announce publishes Online on connect and registers Offline as the will.
	// Only the on-device service should announce.
	Announce bool
	Timeout  time.Duration
}

// NewClient creates and connects a new MQTT client.
func NewClient(cfg *config.Config, opts Options, logger *slog.Logger) (*Client, error) {
	topics := Topics{Prefix: cfg.MQTTPrefix, RobotID: cfg.RobotID}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}

	c := &Client{
		topics:   topics,
		qos:      1,
		timeout:  opts.Timeout,
		logger:   logger.With("component", "mqtt_client"),
		announce: opts.Announce,
		subs:     make(map[string]Handler),
	}

	// Client ids must be unique per broker; a relay and a device may share
	// one configured base id.
	clientID := fmt.Sprintf("%s-%s", cfg.MQTTClientID, uuid.NewString()[:8])

	pahoOpts := paho.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(clientID).
		SetUsername(cfg.MQTTUsername).
		SetPassword(cfg.MQTTPassword).
		SetKeepAlive(60 * time.Second).
		SetPingTimeout(10 * time.Second).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetMaxReconnectInterval(10 * time.Second).
		SetCleanSession(true).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(c.onConnectionLost)
	if opts.Announce {
		pahoOpts.SetWill(topics.Availability(), Offline, c.qos, true)
	}

	c.client = paho.NewClient(pahoOpts)
	token := c.client.Connect()
	if !token.WaitTimeout(c.timeout) {
		// ConnectRetry keeps trying in the background.
		c.logger.Warn("MQTT broker not reachable yet, retrying in background", "broker", cfg.MQTTBroker)
	} else if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}
	return c, nil
}

// Topics returns the topic layout of this connection.
func (c *Client) Topics() Topics {
	return c.topics
}

// IsConnected reports whether the broker connection is currently up.
func (c *Client) IsConnected() bool {
	return c.client.IsConnected()
}

func (c *Client) onConnect(client paho.Client) {
	c.logger.Info("Successfully connected to MQTT broker")
	if c.announce {
		client.Publish(c.topics.Availability(), c.qos, true, Online)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	for topic, h := range c.subs {
		c.subscribe(topic, h)
	}
}

func (c *Client) onConnectionLost(_ paho.Client, err error) {
	c.logger.Error("Connection lost. Reconnecting...", slog.Any("error", err))
}

// Subscribe registers handler for topic and keeps it across reconnects.
func (c *Client) Subscribe(topic string, handler Handler) error {
	c.mu.Lock()
	c.subs[topic] = handler
	c.mu.Unlock()

	if !c.client.IsConnected() {
		// onConnect subscribes once the connection is up.
		return nil
	}
	return c.subscribe(topic, handler)
}

func (c *Client) subscribe(topic string, handler Handler) error {
	token := c.client.Subscribe(topic, c.qos, func(_ paho.Client, msg paho.Message) {
		handler(msg.Topic(), msg.Payload())
	})
	if !token.WaitTimeout(c.timeout) {
		return fmt.Errorf("subscribe to %s timed out after %v", topic, c.timeout)
	}
	if err := token.Error(); err != nil {
		c.logger.Error("Failed to subscribe to topic", "topic", topic, slog.Any("error", err))
		return fmt.Errorf("subscribe to %s: %w", topic, err)
	}
	c.logger.Info("Successfully subscribed to topic", "topic", topic)
	return nil
}

// Publish sends payload on topic and waits for the broker acknowledgement,
// bounded by ctx and the client timeout.
func (c *Client) Publish(ctx context.Context, topic string, payload []byte, retained bool) error {
	if !c.client.IsConnected() {
		return fmt.Errorf("MQTT client is not connected")
	}

	logger := c.logger.With("topic", topic)
	logger.Debug("Publishing message", "payload_size", len(payload), "qos", c.qos, "retained", retained)

	token := c.client.Publish(topic, c.qos, retained, payload)
	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("MQTT publish cancelled by context: %w", ctx.Err())
	case <-timer.C:
		return fmt.Errorf("MQTT publish timed out after %v", c.timeout)
	case <-token.Done():
		if err := token.Error(); err != nil {
			logger.Error("MQTT publish failed", slog.Any("error", err))
			return fmt.Errorf("MQTT publish failed: %w", err)
		}
	}
	return nil
}

// Disconnect announces Offline when this connection announces availability,
// then disconnects.
func (c *Client) Disconnect() {
	if !c.client.IsConnected() {
		return
	}
	if c.announce {
		c.client.Publish(c.topics.Availability(), c.qos, true, Offline).WaitTimeout(time.Second)
	}
	c.client.Disconnect(250)
	c.logger.Info("MQTT Client disconnected")
}
