package mqtt

import (
	"context"
	"strings"
	"sync"
)

// PublishedMessage is a message recorded by MemoryClient
type PublishedMessage struct {
	Topic    string
	QoS      byte
	Retained bool
	Payload  []byte
}

// MemoryClient is an in-process Client for tests. Published messages are
// recorded and delivered synchronously to matching subscriptions.
type MemoryClient struct {
	mu            sync.Mutex
	connected     bool
	subscriptions map[string]MessageHandler
	published     []PublishedMessage
}

// NewMemoryClient creates a disconnected in-memory client
func NewMemoryClient() *MemoryClient {
	return &MemoryClient{subscriptions: make(map[string]MessageHandler)}
}

func (m *MemoryClient) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = true
	return nil
}

func (m *MemoryClient) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
}

func (m *MemoryClient) Subscribe(topic string, qos byte, handler MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions[topic] = handler
	return nil
}

func (m *MemoryClient) Publish(topic string, qos byte, retained bool, payload []byte) error {
	m.mu.Lock()
	m.published = append(m.published, PublishedMessage{Topic: topic, QoS: qos, Retained: retained, Payload: payload})
	var handlers []MessageHandler
	for filter, handler := range m.subscriptions {
		if TopicMatches(filter, topic) {
			handlers = append(handlers, handler)
		}
	}
	m.mu.Unlock()

	msg := &memoryMessage{topic: topic, payload: payload}
	for _, handler := range handlers {
		handler(msg)
	}
	return nil
}

func (m *MemoryClient) PublishAsync(topic string, qos byte, payload []byte) {
	_ = m.Publish(topic, qos, false, payload)
}

func (m *MemoryClient) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// Published returns the messages published on topics matching filter
func (m *MemoryClient) Published(filter string) []PublishedMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []PublishedMessage
	for _, msg := range m.published {
		if TopicMatches(filter, msg.Topic) {
			out = append(out, msg)
		}
	}
	return out
}

// Subscribed reports whether a handler is registered for filter
func (m *MemoryClient) Subscribed(filter string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.subscriptions[filter]
	return ok
}

type memoryMessage struct {
	topic   string
	payload []byte
}

func (m *memoryMessage) Topic() string   { return m.topic }
func (m *memoryMessage) Payload() []byte { return m.payload }
func (m *memoryMessage) Ack()            {}

// TopicMatches reports whether topic matches an MQTT filter with + and #
// wildcards
func TopicMatches(filter, topic string) bool {
	f := strings.Split(filter, "/")
	t := strings.Split(topic, "/")
	for i, part := range f {
		if part == "#" {
			return true
		}
		if i >= len(t) {
			return false
		}
		if part != "+" && part != t[i] {
			return false
		}
	}
	return len(f) == len(t)
}
