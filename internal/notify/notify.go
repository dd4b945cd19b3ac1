package notify

import (
	"sync"

	"priceoptool/internal/events"
)

// Notification is the single pending transient message. Open reports
// whether anything is waiting to be shown.
type Notification struct {
	Open    bool
	Message string
}

// Sink holds at most one pending notification. Publishing replaces
// whatever was pending; a burst of failures only surfaces the last one.
type Sink struct {
	mu      sync.Mutex
	current Notification
	bus     *events.Bus
}

// NewSink creates an empty sink. bus may be nil when no one observes.
func NewSink(bus *events.Bus) *Sink {
	return &Sink{bus: bus}
}

// Publish replaces the pending notification with message.
func (s *Sink) Publish(message string) {
	s.mu.Lock()
	s.current = Notification{Open: true, Message: message}
	s.mu.Unlock()
	if s.bus != nil {
		s.bus.Publish(events.TopicNotificationChanged)
	}
}

// Close clears the pending notification after the view displayed it.
func (s *Sink) Close() {
	s.mu.Lock()
	s.current = Notification{}
	s.mu.Unlock()
	if s.bus != nil {
		s.bus.Publish(events.TopicNotificationChanged)
	}
}

// Current returns the pending notification, if any.
func (s *Sink) Current() Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}
