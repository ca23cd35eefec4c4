package events

import (
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scriptor/internal/interfaces"
)

// Service is the in-process pub/sub bus used for progress streaming.
// Handlers run on the publisher's goroutine; slow consumers should hand off
// to their own channels.
type Service struct {
	mu       sync.RWMutex
	handlers map[int]interfaces.EventHandler
	nextID   int
	logger   arbor.ILogger
}

func NewService(logger arbor.ILogger) *Service {
	return &Service{
		handlers: make(map[int]interfaces.EventHandler),
		logger:   logger,
	}
}

// Publish delivers the event to every subscriber. A panicking handler is
// unsubscribed rather than taking the publisher down.
func (s *Service) Publish(event interfaces.Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	s.mu.RLock()
	ids := make([]int, 0, len(s.handlers))
	handlers := make([]interfaces.EventHandler, 0, len(s.handlers))
	for id, h := range s.handlers {
		ids = append(ids, id)
		handlers = append(handlers, h)
	}
	s.mu.RUnlock()

	for i, handler := range handlers {
		s.deliver(ids[i], handler, event)
	}
}

func (s *Service) deliver(id int, handler interfaces.EventHandler, event interfaces.Event) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn().Str("event_type", event.Type).Msg("Event handler panicked, unsubscribing")
			s.mu.Lock()
			delete(s.handlers, id)
			s.mu.Unlock()
		}
	}()
	handler(event)
}

// Subscribe registers a handler and returns its unsubscribe func
func (s *Service) Subscribe(handler interfaces.EventHandler) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.handlers[id] = handler
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.handlers, id)
		s.mu.Unlock()
	}
}
