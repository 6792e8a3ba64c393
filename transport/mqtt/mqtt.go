// Package mqtt provides an MQTT push channel for room messages.
//
// Messages are published as JSON on topics in the format
// "{prefix}/{roomID}". The channel connects to any standard MQTT broker,
// resubscribes to all joined rooms after a reconnect, and surfaces
// broker connectivity through the transport state handler.
package mqtt

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/anonroom/anonroom-go/core"
	"github.com/anonroom/anonroom-go/transport"
)

// Compile-time interface check.
var _ transport.Channel = (*Channel)(nil)

const (
	// DefaultTopicPrefix is the default MQTT topic prefix for room messages.
	DefaultTopicPrefix = "anonroom"
)

// Config holds the configuration for an MQTT channel.
type Config struct {
	// Broker is the MQTT broker URL (e.g., "tcp://broker.example.com:1883").
	Broker string
	// Username for MQTT authentication. Leave empty if not required.
	Username string
	// Password for MQTT authentication. Leave empty if not required.
	Password string
	// UseTLS enables TLS for the MQTT connection.
	UseTLS bool
	// ClientID is the MQTT client identifier. If empty, a random one is generated.
	ClientID string
	// TopicPrefix is the MQTT topic prefix (default: "anonroom").
	TopicPrefix string
	// Logger is the logger to use. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Channel implements transport.Channel over MQTT.
type Channel struct {
	cfg            Config
	client         paho.Client
	log            *slog.Logger
	mu             sync.RWMutex
	connected      bool
	subscriptions  map[string]struct{} // room ids, resubscribed on reconnect
	messageHandler transport.MessageHandler
	stateHandler   transport.StateHandler
}

// New creates a new MQTT channel with the given configuration.
func New(cfg Config) *Channel {
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = DefaultTopicPrefix
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Channel{
		cfg:           cfg,
		log:           cfg.Logger.WithGroup("mqtt"),
		subscriptions: make(map[string]struct{}),
	}
}

// Start connects to the MQTT broker and begins listening for messages.
func (c *Channel) Start(ctx context.Context) error {
	if c.cfg.Broker == "" {
		return errors.New("broker URL is required")
	}

	clientID := c.cfg.ClientID
	if clientID == "" {
		clientID = "anonroom-" + randomString(16)
	}

	opts := paho.NewClientOptions().
		AddBroker(c.cfg.Broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetMaxReconnectInterval(2 * time.Minute).
		SetKeepAlive(60 * time.Second).
		SetPingTimeout(10 * time.Second).
		SetCleanSession(true).
		SetOrderMatters(false).
		SetOnConnectHandler(c.onConnected).
		SetConnectionLostHandler(c.onConnectionLost).
		SetReconnectingHandler(c.onReconnecting)

	if c.cfg.Username != "" {
		opts.SetUsername(c.cfg.Username)
	}
	if c.cfg.Password != "" {
		opts.SetPassword(c.cfg.Password)
	}
	if c.cfg.UseTLS {
		opts.SetTLSConfig(&tls.Config{
			MinVersion: tls.VersionTLS12,
		})
	}

	c.client = paho.NewClient(opts)

	token := c.client.Connect()
	if !token.WaitTimeout(30 * time.Second) {
		return errors.New("connection timeout")
	}
	if token.Error() != nil {
		return fmt.Errorf("connecting to broker: %w", token.Error())
	}

	return nil
}

// Stop gracefully disconnects from the MQTT broker.
func (c *Channel) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		c.client.Disconnect(1000)
		c.connected = false
	}
	return nil
}

// IsConnected returns true if the channel is connected to the broker.
func (c *Channel) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected && c.client != nil && c.client.IsConnected()
}

// SetMessageHandler sets the callback for inbound room messages.
func (c *Channel) SetMessageHandler(fn transport.MessageHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messageHandler = fn
}

// SetStateHandler sets the callback for channel state changes.
func (c *Channel) SetStateHandler(fn transport.StateHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stateHandler = fn
}

// Subscribe begins delivering the room's messages. The subscription is
// remembered and re-established after a reconnect.
func (c *Channel) Subscribe(roomID string) error {
	if roomID == "" {
		return errors.New("room id is required")
	}

	c.mu.Lock()
	c.subscriptions[roomID] = struct{}{}
	client := c.client
	c.mu.Unlock()

	if client == nil || !client.IsConnected() {
		// Remembered; subscribed for real once the broker connects.
		return nil
	}
	return c.subscribeTopic(roomID)
}

// Unsubscribe stops delivery for the room.
func (c *Channel) Unsubscribe(roomID string) error {
	c.mu.Lock()
	delete(c.subscriptions, roomID)
	client := c.client
	c.mu.Unlock()

	if client == nil || !client.IsConnected() {
		return nil
	}
	token := client.Unsubscribe(c.topic(roomID))
	if !token.WaitTimeout(10 * time.Second) {
		return errors.New("timeout unsubscribing")
	}
	return token.Error()
}

// Publish broadcasts a message on the room's topic.
func (c *Channel) Publish(roomID string, m *core.Message) error {
	if !c.IsConnected() {
		return errors.New("not connected")
	}

	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encoding message: %w", err)
	}

	token := c.client.Publish(c.topic(roomID), 0, false, payload)
	if !token.WaitTimeout(10 * time.Second) {
		return errors.New("timeout publishing to MQTT")
	}
	return token.Error()
}

func (c *Channel) topic(roomID string) string {
	return c.cfg.TopicPrefix + "/" + roomID
}

// roomFromTopic extracts the room id from "{prefix}/{roomID}".
func (c *Channel) roomFromTopic(topic string) string {
	prefix := c.cfg.TopicPrefix + "/"
	if len(topic) <= len(prefix) || topic[:len(prefix)] != prefix {
		return ""
	}
	return topic[len(prefix):]
}

func (c *Channel) subscribeTopic(roomID string) error {
	topic := c.topic(roomID)
	token := c.client.Subscribe(topic, 0, c.handleMessage)
	if !token.WaitTimeout(10 * time.Second) {
		return errors.New("timeout subscribing")
	}
	c.log.Debug("subscribed to room topic", "topic", topic)
	return token.Error()
}

func (c *Channel) handleMessage(_ paho.Client, message paho.Message) {
	c.mu.RLock()
	handler := c.messageHandler
	c.mu.RUnlock()

	if handler == nil {
		return
	}

	roomID := c.roomFromTopic(message.Topic())
	if roomID == "" {
		return
	}

	var m core.Message
	if err := json.Unmarshal(message.Payload(), &m); err != nil {
		c.log.Debug("failed to decode room message", "topic", message.Topic(), "error", err)
		return
	}

	handler(roomID, &m)
}

func (c *Channel) onConnected(_ paho.Client) {
	c.mu.Lock()
	c.connected = true
	handler := c.stateHandler
	rooms := make([]string, 0, len(c.subscriptions))
	for roomID := range c.subscriptions {
		rooms = append(rooms, roomID)
	}
	c.mu.Unlock()

	for _, roomID := range rooms {
		if err := c.subscribeTopic(roomID); err != nil {
			c.log.Warn("resubscribe failed", "room", roomID, "error", err)
		}
	}
	c.log.Info("connected to MQTT broker", "broker", c.cfg.Broker)

	if handler != nil {
		handler(c, transport.EventConnected)
	}
}

func (c *Channel) onConnectionLost(_ paho.Client, err error) {
	c.mu.Lock()
	c.connected = false
	handler := c.stateHandler
	c.mu.Unlock()

	c.log.Error("MQTT connection lost", "error", err)

	if handler != nil {
		handler(c, transport.EventDisconnected)
	}
}

func (c *Channel) onReconnecting(_ paho.Client, _ *paho.ClientOptions) {
	c.mu.RLock()
	handler := c.stateHandler
	c.mu.RUnlock()

	c.log.Info("reconnecting to MQTT broker")

	if handler != nil {
		handler(c, transport.EventReconnecting)
	}
}

func randomString(n int) string {
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	b := make([]byte, n)
	for i := range b {
		b[i] = alphabet[rand.Intn(len(alphabet))]
	}
	return string(b)
}
