package mqtt

import (
	"sync"
)

// Message is a publish recorded by Fake.
type Message struct {
	Topic   string
	Retain  bool
	Payload []byte
}

// Fake is an in-memory Transport for tests. Deliver feeds messages to
// subscribed handlers.
type Fake struct {
	mu       sync.Mutex
	messages []Message
	handlers map[string]Handler
	err      error
}

func NewFake() *Fake {
	return &Fake{handlers: make(map[string]Handler)}
}

// SetError makes subsequent publishes fail with err. nil restores success.
func (f *Fake) SetError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *Fake) Publish(topic string, retain bool, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, Message{Topic: topic, Retain: retain, Payload: append([]byte(nil), payload...)})
	return nil
}

func (f *Fake) Subscribe(topic string, handler Handler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[topic] = handler
	return nil
}

// Deliver calls the handler subscribed to topic, if any, and reports whether
// one was found.
func (f *Fake) Deliver(topic string, payload []byte) bool {
	f.mu.Lock()
	h, ok := f.handlers[topic]
	f.mu.Unlock()

	if ok {
		h(topic, payload)
	}
	return ok
}

// Messages returns a copy of every successful publish.
func (f *Fake) Messages() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Message(nil), f.messages...)
}

// Topics returns the subscribed topics.
func (f *Fake) Topics() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	topics := make([]string, 0, len(f.handlers))
	for t := range f.handlers {
		topics = append(topics, t)
	}
	return topics
}
