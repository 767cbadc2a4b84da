package mqtt

import "sync"

type subscription struct {
	topic   string
	qos     byte
	handler MessageHandler
}

// subscriptions remembers topic handlers in subscription order. A topic
// subscribed again replaces its earlier handler, as the broker does.
type subscriptions struct {
	mu    sync.Mutex
	order []string
	byKey map[string]subscription
}

func newSubscriptions() *subscriptions {
	return &subscriptions{byKey: make(map[string]subscription)}
}

func (s *subscriptions) add(topic string, qos byte, handler MessageHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byKey[topic]; !ok {
		s.order = append(s.order, topic)
	}
	s.byKey[topic] = subscription{topic: topic, qos: qos, handler: handler}
}

func (s *subscriptions) list() []subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]subscription, 0, len(s.order))
	for _, topic := range s.order {
		out = append(out, s.byKey[topic])
	}
	return out
}

func (s *subscriptions) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}
