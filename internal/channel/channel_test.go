package channel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuffered_TrySend(t *testing.T) {
	ch := NewBuffered[int](1)

	assert.True(t, ch.TrySend(1))
	assert.False(t, ch.TrySend(2), "full buffer must not block")
	assert.Equal(t, 1, ch.Len())
	assert.Equal(t, 1, <-ch.Receive())
}

func TestBuffered_SendContext(t *testing.T) {
	ch := NewBuffered[string](1)
	assert.True(t, ch.SendContext(context.Background(), "a"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, ch.SendContext(ctx, "b"))
	assert.Equal(t, 1, ch.Len())
}

func TestNew_MinimumOneSlot(t *testing.T) {
	ch := New[int](0)
	assert.True(t, ch.TrySend(1))
	assert.Equal(t, 1, ch.Len())
}
