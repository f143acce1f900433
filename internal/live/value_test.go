package live

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recv[T any](t *testing.T, s *Subscription[T]) T {
	t.Helper()
	select {
	case v, ok := <-s.C():
		require.True(t, ok, "subscription closed")
		return v
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for emission")
	}
	var zero T
	return zero
}

func TestSubscribeReceivesCurrentThenUpdates(t *testing.T) {
	v := Of(1)
	sub := v.Subscribe()
	defer sub.Cancel()

	assert.Equal(t, 1, recv(t, sub))
	v.Set(2)
	v.Set(3)
	assert.Equal(t, 2, recv(t, sub))
	assert.Equal(t, 3, recv(t, sub))
}

func TestSubscribeBeforeFirstSet(t *testing.T) {
	v := New[string]()
	_, ok := v.Get()
	assert.False(t, ok)

	sub := v.Subscribe()
	defer sub.Cancel()

	select {
	case <-sub.C():
		t.Fatal("nothing was published yet")
	case <-time.After(20 * time.Millisecond):
	}

	v.Set("hello")
	assert.Equal(t, "hello", recv(t, sub))
}

func TestOrderPreservedForSlowConsumer(t *testing.T) {
	v := New[int]()
	sub := v.Subscribe()
	defer sub.Cancel()

	for i := 0; i < 100; i++ {
		v.Set(i)
	}
	for i := 0; i < 100; i++ {
		assert.Equal(t, i, recv(t, sub))
	}
}

func TestNilSliceIsDelivered(t *testing.T) {
	v := Of([]string{"a"})
	sub := v.Subscribe()
	defer sub.Cancel()

	assert.Equal(t, []string{"a"}, recv(t, sub))
	v.Set(nil)
	assert.Nil(t, recv(t, sub))
}

func TestCancelClosesAndDetaches(t *testing.T) {
	v := Of(1)
	sub := v.Subscribe()
	assert.Equal(t, 1, v.Subscribers())

	sub.Cancel()
	sub.Cancel()
	assert.Equal(t, 0, v.Subscribers())

	// Pending emissions may or may not be drained; the channel must close.
	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-sub.C():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("channel not closed after Cancel")
		}
	}
}

func TestIndependentSubscribers(t *testing.T) {
	v := New[int]()
	a := v.Subscribe()
	b := v.Subscribe()
	defer b.Cancel()

	v.Set(1)
	assert.Equal(t, 1, recv(t, a))
	a.Cancel()

	v.Set(2)
	assert.Equal(t, 1, recv(t, b))
	assert.Equal(t, 2, recv(t, b))
}

func TestSetIfUnsetKeepsEarlierValue(t *testing.T) {
	v := New[bool]()
	sub := v.Subscribe()
	defer sub.Cancel()

	assert.True(t, v.SetIfUnset(false))
	assert.False(t, recv(t, sub))

	v.Set(true)
	assert.True(t, recv(t, sub))
	assert.False(t, v.SetIfUnset(false))

	got, _ := v.Get()
	assert.True(t, got)
}
