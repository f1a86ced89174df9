package navauth

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Handler receives a bus payload. Returned errors and panics are logged and
// do not stop delivery to the remaining handlers.
type Handler[T any] func(payload T) error

// Bus is an in-process, topic keyed publish/subscribe registry. Delivery is
// synchronous, in registration order, at most once. Nothing is buffered:
// a handler registered after an Emit never sees that payload.
type Bus[T any] struct {
	mu     sync.RWMutex
	topics map[string][]busSubscription[T]
	logger Logger
}

type busSubscription[T any] struct {
	id      uuid.UUID
	handler Handler[T]
}

// BusOption customizes a Bus.
type BusOption func(*busOptions)

type busOptions struct {
	logger Logger
}

// WithBusLogger sets the logger used to report handler failures.
func WithBusLogger(logger Logger) BusOption {
	return func(o *busOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewBus returns an empty bus.
func NewBus[T any](opts ...BusOption) *Bus[T] {
	options := &busOptions{logger: defLogger{}}
	for _, opt := range opts {
		if opt != nil {
			opt(options)
		}
	}
	return &Bus[T]{
		topics: make(map[string][]busSubscription[T]),
		logger: options.logger,
	}
}

// On registers handler for topic. The returned function removes it and is
// safe to call more than once.
func (b *Bus[T]) On(topic string, handler Handler[T]) (unsubscribe func()) {
	if handler == nil {
		return func() {}
	}

	id := uuid.New()
	b.mu.Lock()
	b.topics[topic] = append(b.topics[topic], busSubscription[T]{id: id, handler: handler})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.off(topic, id) })
	}
}

// Emit delivers payload to the handlers of topic and returns how many
// handlers completed without error.
func (b *Bus[T]) Emit(topic string, payload T) int {
	b.mu.RLock()
	subs := make([]busSubscription[T], len(b.topics[topic]))
	copy(subs, b.topics[topic])
	b.mu.RUnlock()

	delivered := 0
	for _, sub := range subs {
		if err := b.call(sub, payload); err != nil {
			b.logger.Warn("event bus handler failed", "topic", topic, "subscription", sub.id.String(), "error", err)
			continue
		}
		delivered++
	}
	return delivered
}

// Subscribers returns the number of handlers registered for topic.
func (b *Bus[T]) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}

// Clear drops every subscription. Used on application teardown.
func (b *Bus[T]) Clear() {
	b.mu.Lock()
	b.topics = make(map[string][]busSubscription[T])
	b.mu.Unlock()
}

func (b *Bus[T]) call(sub busSubscription[T], payload T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return sub.handler(payload)
}

func (b *Bus[T]) off(topic string, id uuid.UUID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.topics[topic]
	for i, sub := range subs {
		if sub.id != id {
			continue
		}
		next := make([]busSubscription[T], 0, len(subs)-1)
		next = append(next, subs[:i]...)
		next = append(next, subs[i+1:]...)
		if len(next) == 0 {
			delete(b.topics, topic)
		} else {
			b.topics[topic] = next
		}
		return
	}
}

// AuthBus is the bus type carrying auth transitions.
type AuthBus = Bus[AuthEventPayload]

// NewAuthBus returns the bus the holder publishes on.
func NewAuthBus(opts ...BusOption) *AuthBus {
	return NewBus[AuthEventPayload](opts...)
}
