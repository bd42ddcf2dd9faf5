package mqttutil

import (
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Message is a published MQTT message captured by MockClient.
type Message struct {
	Topic    string
	Payload  []byte
	Retained bool
}

// MockClient is an in-memory mqtt.Client. Only the methods used by this
// module are implemented; the embedded interface panics for the rest.
type MockClient struct {
	mqtt.Client

	mu        sync.Mutex
	handlers  map[string]mqtt.MessageHandler
	published []Message

	// PublishErr and SubscribeErr, when set, are returned by the tokens.
	PublishErr   error
	SubscribeErr error
}

// NewMockClient creates a connected MockClient.
func NewMockClient() *MockClient {
	return &MockClient{handlers: make(map[string]mqtt.MessageHandler)}
}

func (c *MockClient) IsConnected() bool { return true }

func (c *MockClient) Disconnect(uint) {}

func (c *MockClient) Subscribe(topic string, _ byte, callback mqtt.MessageHandler) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.SubscribeErr == nil {
		c.handlers[topic] = callback
	}
	return &token{err: c.SubscribeErr}
}

func (c *MockClient) Unsubscribe(topics ...string) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range topics {
		delete(c.handlers, t)
	}
	return &token{}
}

func (c *MockClient) Publish(topic string, _ byte, retained bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.PublishErr != nil {
		return &token{err: c.PublishErr}
	}
	var b []byte
	switch p := payload.(type) {
	case []byte:
		b = append([]byte(nil), p...)
	case string:
		b = []byte(p)
	}
	c.published = append(c.published, Message{Topic: topic, Payload: b, Retained: retained})
	return &token{}
}

// Deliver invokes the handler subscribed to topic. It reports whether one
// was registered.
func (c *MockClient) Deliver(topic string, payload []byte) bool {
	c.mu.Lock()
	h := c.handlers[topic]
	c.mu.Unlock()
	if h == nil {
		return false
	}
	h(c, &message{topic: topic, payload: payload})
	return true
}

// Subscribed reports whether a handler is registered for topic.
func (c *MockClient) Subscribed(topic string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.handlers[topic]
	return ok
}

// Published returns a copy of all published messages.
func (c *MockClient) Published() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message(nil), c.published...)
}

type token struct {
	err error
}

func (t *token) Wait() bool                     { return true }
func (t *token) WaitTimeout(time.Duration) bool { return true }
func (t *token) Error() error                   { return t.err }

func (t *token) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type message struct {
	topic   string
	payload []byte
}

func (m *message) Duplicate() bool   { return false }
func (m *message) Qos() byte         { return 0 }
func (m *message) Retained() bool    { return false }
func (m *message) Topic() string     { return m.topic }
func (m *message) MessageID() uint16 { return 0 }
func (m *message) Payload() []byte   { return m.payload }
func (m *message) Ack()              {}
