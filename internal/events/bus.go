package events

import (
	"fmt"
	"sync"

	eventbus "github.com/asaskevich/EventBus"
	"go.uber.org/zap"
)

// Bus defines publishing and subscribing to in-process events.
type Bus interface {
	Publish(topic string, data interface{}) error
	Subscribe(topic string, handler interface{}) error
	Unsubscribe(topic string, handler interface{}) error
	Close() error
}

type bus struct {
	bus    eventbus.Bus
	logger *zap.Logger
	mu     sync.RWMutex
	closed bool
}

// NewBus creates a synchronous event bus; handlers run on the publisher's goroutine.
func NewBus(logger *zap.Logger) Bus {
	return &bus{
		bus:    eventbus.New(),
		logger: logger,
	}
}

// Publish publishes an event to the specified topic. A panicking handler is
// reported as an error; handlers after it on the topic are skipped.
func (b *bus) Publish(topic string, data interface{}) (err error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("event bus is closed")
	}

	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked", zap.String("topic", topic), zap.Any("panic", r))
			err = fmt.Errorf("handler for %s panicked: %v", topic, r)
		}
	}()
	b.logger.Debug("publishing event", zap.String("topic", topic), zap.Any("data", data))
	b.bus.Publish(topic, data)
	return nil
}

// Subscribe subscribes to events on the specified topic
func (b *bus) Subscribe(topic string, handler interface{}) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("event bus is closed")
	}
	return b.bus.Subscribe(topic, handler)
}

// Unsubscribe unsubscribes from events on the specified topic
func (b *bus) Unsubscribe(topic string, handler interface{}) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("event bus is closed")
	}
	return b.bus.Unsubscribe(topic, handler)
}

// Close rejects further use. Async handlers are awaited.
func (b *bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	b.bus.WaitAsync()
	return nil
}
