package events

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ternarybob/scriptor/internal/common"
	"github.com/ternarybob/scriptor/internal/interfaces"
)

func TestPublishSubscribe(t *testing.T) {
	s := NewService(common.GetLogger())

	var received []interfaces.Event
	unsubscribe := s.Subscribe(func(e interfaces.Event) {
		received = append(received, e)
	})

	s.Publish(interfaces.Event{Type: "job.progress", JobID: "abc"})
	assert.Len(t, received, 1)
	assert.Equal(t, "job.progress", received[0].Type)
	assert.False(t, received[0].Timestamp.IsZero())

	unsubscribe()
	s.Publish(interfaces.Event{Type: "job.completed"})
	assert.Len(t, received, 1, "no delivery after unsubscribe")
}

func TestPanickingHandlerIsRemoved(t *testing.T) {
	s := NewService(common.GetLogger())

	calls := 0
	s.Subscribe(func(interfaces.Event) {
		calls++
		panic("boom")
	})

	s.Publish(interfaces.Event{Type: "a"})
	s.Publish(interfaces.Event{Type: "b"})
	assert.Equal(t, 1, calls, "handler removed after first panic")
}

func TestMultipleSubscribers(t *testing.T) {
	s := NewService(common.GetLogger())

	first, second := 0, 0
	s.Subscribe(func(interfaces.Event) { first++ })
	s.Subscribe(func(interfaces.Event) { second++ })

	s.Publish(interfaces.Event{Type: "x"})
	assert.Equal(t, 1, first)
	assert.Equal(t, 1, second)
}
