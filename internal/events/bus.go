package events

import (
	evbus "github.com/asaskevich/EventBus"
)

// Topics published by the state containers. Views subscribe on mount and
// unsubscribe on unmount; handlers run synchronously on the publisher's
// goroutine.
const (
	TopicSessionChanged      = "session.changed"
	TopicProductsChanged     = "products.changed"
	TopicPricingChanged      = "pricing.changed"
	TopicNotificationChanged = "notification.changed"
)

// Bus is the process-wide change bus shared by the state containers.
type Bus struct {
	bus evbus.Bus
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{bus: evbus.New()}
}

// Publish notifies all subscribers of topic.
func (b *Bus) Publish(topic string) {
	b.bus.Publish(topic)
}

// Subscribe registers fn for topic.
func (b *Bus) Subscribe(topic string, fn func()) error {
	return b.bus.Subscribe(topic, fn)
}

// Unsubscribe removes a previously registered fn.
func (b *Bus) Unsubscribe(topic string, fn func()) error {
	return b.bus.Unsubscribe(topic, fn)
}
