package eventbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_PublishSubscribe(t *testing.T) {
	bus := New()
	id, ch := bus.Subscribe(4)
	defer bus.Unsubscribe(id)

	bus.PublishNew(EventTypeOperationSuccess, "user-1", "create", "", nil)

	event := <-ch
	assert.Equal(t, EventTypeOperationSuccess, event.Type)
	assert.Equal(t, "user-1", event.UserID)
	assert.Equal(t, "create", event.Operation)
	assert.NotEmpty(t, event.ID)
	assert.False(t, event.CreatedAt.IsZero())
}

func TestBus_FanOut(t *testing.T) {
	bus := New()
	id1, ch1 := bus.Subscribe(1)
	id2, ch2 := bus.Subscribe(1)
	defer bus.Unsubscribe(id1)
	defer bus.Unsubscribe(id2)

	bus.PublishNew(EventTypeOperationBlocked, "user-1", "edit", "nope", nil)

	assert.Equal(t, EventTypeOperationBlocked, (<-ch1).Type)
	assert.Equal(t, EventTypeOperationBlocked, (<-ch2).Type)
}

func TestBus_FullBufferDropsEvent(t *testing.T) {
	bus := New()
	id, ch := bus.Subscribe(1)
	defer bus.Unsubscribe(id)

	bus.PublishNew(EventTypeOperationSuccess, "user-1", "create", "", nil)
	// Buffer is full: this one is dropped rather than blocking the publisher.
	bus.PublishNew(EventTypeOperationFailure, "user-1", "create", "", nil)

	event := <-ch
	assert.Equal(t, EventTypeOperationSuccess, event.Type)
	require.Empty(t, ch)
}

func TestBus_UnsubscribeClosesChannel(t *testing.T) {
	bus := New()
	id, ch := bus.Subscribe(1)
	bus.Unsubscribe(id)

	_, open := <-ch
	assert.False(t, open)

	// Publishing after unsubscribe is a no-op.
	bus.PublishNew(EventTypeOperationSuccess, "user-1", "create", "", nil)
}
