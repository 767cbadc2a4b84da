package mqtt

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/saaga0h/teferi-timeline/pkg/config"
)

// mqttClient implements the Client interface using the Paho MQTT client.
// Sessions are clean, so the broker forgets subscriptions on reconnect;
// the client keeps them and subscribes again whenever it connects.
type mqttClient struct {
	client pahomqtt.Client
	cfg    *config.Config
	logger *slog.Logger
	subs   *subscriptions
}

// NewClient creates a new MQTT client with the given configuration
func NewClient(cfg *config.Config, logger *slog.Logger) Client {
	m := &mqttClient{
		cfg:    cfg,
		logger: logger,
		subs:   newSubscriptions(),
	}

	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(cfg.MQTTAddress())
	opts.SetClientID(clientID(cfg, time.Now()))

	// Set credentials if provided
	if cfg.MQTTUser != "" {
		opts.SetUsername(cfg.MQTTUser)
	}
	if cfg.MQTTPassword != "" {
		opts.SetPassword(cfg.MQTTPassword)
	}

	// Connection settings
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c pahomqtt.Client) {
		logger.Info("Connected to MQTT broker", "broker", cfg.MQTTAddress())
		m.restoreSubscriptions()
	}

	opts.OnConnectionLost = func(c pahomqtt.Client, err error) {
		logger.Warn("MQTT connection lost", "error", err, "subscriptions", m.subs.len())
	}

	opts.OnReconnecting = func(c pahomqtt.Client, opts *pahomqtt.ClientOptions) {
		logger.Info("MQTT reconnecting...")
	}

	m.client = pahomqtt.NewClient(opts)
	return m
}

// clientID returns the configured client ID, or one derived from the
// service and device so several collectors can share a broker
func clientID(cfg *config.Config, now time.Time) string {
	if cfg.MQTTClientID != "" {
		return cfg.MQTTClientID
	}
	if cfg.DeviceID != "" {
		return fmt.Sprintf("%s-%s-%d", cfg.ServiceName, cfg.DeviceID, now.Unix())
	}
	return fmt.Sprintf("%s-%d", cfg.ServiceName, now.Unix())
}

// restoreSubscriptions subscribes again to every remembered topic. It runs
// on paho's connect callback, so it must not wait on tokens.
func (m *mqttClient) restoreSubscriptions() {
	for _, sub := range m.subs.list() {
		token := m.client.Subscribe(sub.topic, sub.qos, m.pahoHandler(sub.handler))
		go func(topic string) {
			if token.WaitTimeout(10*time.Second) && token.Error() == nil {
				m.logger.Info("Restored subscription", "topic", topic)
				return
			}
			m.logger.Warn("Failed to restore subscription", "topic", topic, "error", token.Error())
		}(sub.topic)
	}
}

func (m *mqttClient) pahoHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(client pahomqtt.Client, msg pahomqtt.Message) {
		handler(&mqttMessage{msg: msg})
	}
}

// Connect establishes a connection to the MQTT broker
func (m *mqttClient) Connect(ctx context.Context) error {
	m.logger.Info("Connecting to MQTT broker", "broker", m.cfg.MQTTAddress())

	token := m.client.Connect()

	// Wait for connection with context timeout
	select {
	case <-token.Done():
		if token.Error() != nil {
			return fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("connection timeout: %w", ctx.Err())
	}
}

// Disconnect closes the connection to the MQTT broker
func (m *mqttClient) Disconnect() {
	m.logger.Info("Disconnecting from MQTT broker")
	m.client.Disconnect(250) // 250ms grace period
}

// Subscribe subscribes to a topic with the given QoS and handler
func (m *mqttClient) Subscribe(topic string, qos byte, handler MessageHandler) error {
	m.logger.Info("Subscribing to MQTT topic", "topic", topic, "qos", qos)

	token := m.client.Subscribe(topic, qos, m.pahoHandler(handler))
	token.Wait()

	if token.Error() != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", topic, token.Error())
	}

	m.subs.add(topic, qos, handler)
	m.logger.Info("Successfully subscribed to topic", "topic", topic)
	return nil
}

// Publish publishes a message to a topic
func (m *mqttClient) Publish(topic string, qos byte, retained bool, payload []byte) error {
	token := m.client.Publish(topic, qos, retained, payload)
	token.Wait()

	if token.Error() != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", topic, token.Error())
	}

	m.logger.Debug("Published message", "topic", topic, "size", len(payload))
	return nil
}

// PublishAsync publishes a message without waiting for the broker.
// Delivery failures are logged once the token completes.
func (m *mqttClient) PublishAsync(topic string, qos byte, payload []byte) {
	token := m.client.Publish(topic, qos, false, payload)
	go func() {
		if !token.WaitTimeout(10 * time.Second) {
			m.logger.Warn("Publish not acknowledged", "topic", topic)
			return
		}
		if token.Error() != nil {
			m.logger.Warn("Failed to publish message", "topic", topic, "error", token.Error())
		}
	}()
}

// IsConnected returns whether the client is currently connected
func (m *mqttClient) IsConnected() bool {
	return m.client.IsConnected()
}

// mqttMessage wraps a Paho MQTT message to implement our Message interface
type mqttMessage struct {
	msg pahomqtt.Message
}

func (m *mqttMessage) Topic() string {
	return m.msg.Topic()
}

func (m *mqttMessage) Payload() []byte {
	return m.msg.Payload()
}

func (m *mqttMessage) Ack() {
	m.msg.Ack()
}
