package bus

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_DropsWhenFull(t *testing.T) {
	q := newQueue(2, false)

	q.push("a")
	q.push("b")
	q.push("c")

	assert.Equal(t, uint64(1), q.Dropped())

	got, ok := q.pop()
	require.True(t, ok)
	assert.Equal(t, "a", got)

	got, ok = q.pop()
	require.True(t, ok)
	assert.Equal(t, "b", got)

	_, ok = q.pop()
	assert.False(t, ok)
}

func TestQueue_Conflate(t *testing.T) {
	q := newQueue(2, true)

	q.push("a")
	q.push("b")
	q.push("c")

	got, ok := q.pop()
	require.True(t, ok)
	assert.Equal(t, "c", got, "conflate returns the newest message")

	_, ok = q.pop()
	assert.False(t, ok)
}

func TestQueue_DefaultSize(t *testing.T) {
	q := newQueue(0, false)
	assert.Equal(t, DefaultQueueSize, cap(q.ch))
}

func TestLoopback(t *testing.T) {
	ctx := context.Background()
	lb := NewLoopback()

	t.Run("messages before subscribe are lost", func(t *testing.T) {
		require.NoError(t, lb.Publish(ctx, "early"))

		sub := lb.Subscribe(4, false)
		defer sub.Close()

		_, ok, err := sub.TryReceive()
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("every subscriber receives", func(t *testing.T) {
		a := lb.Subscribe(4, false)
		defer a.Close()
		b := lb.Subscribe(4, false)
		defer b.Close()

		require.NoError(t, lb.Publish(ctx, "1.0,2.0,3.0"))

		for _, sub := range []*LoopbackSubscriber{a, b} {
			got, ok, err := sub.TryReceive()
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "1.0,2.0,3.0", got)
		}
	})

	t.Run("closed subscriber", func(t *testing.T) {
		sub := lb.Subscribe(4, false)
		require.NoError(t, sub.Close())

		_, _, err := sub.TryReceive()
		assert.ErrorIs(t, err, ErrClosed)
	})

	t.Run("closed publisher", func(t *testing.T) {
		require.NoError(t, lb.Close())
		assert.ErrorIs(t, lb.Publish(ctx, "x"), ErrClosed)
	})
}

func TestLoopback_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewLoopback().Publish(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestZMQ_PublishSubscribe(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping network test in short mode")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	port := freePort(t)
	log := zerolog.Nop()

	pub, err := NewPublisher(ctx, fmt.Sprintf("tcp://127.0.0.1:%d", port), log)
	require.NoError(t, err)
	defer pub.Close()

	sub := NewSubscriber(ctx, SubscriberOptions{
		Endpoint:  fmt.Sprintf("tcp://127.0.0.1:%d", port),
		DialRetry: 20 * time.Millisecond,
	}, log)
	defer sub.Close()

	// No message yet: not an error.
	_, ok, err := sub.TryReceive()
	require.NoError(t, err)
	assert.False(t, ok)

	// The subscription takes a moment to reach the publisher; anything sent
	// before that is lost, so keep publishing until one arrives.
	var got string
	require.Eventually(t, func() bool {
		if err := pub.Publish(ctx, "45.0,90.0,5.0"); err != nil {
			return false
		}
		payload, ok, err := sub.TryReceive()
		if err != nil || !ok {
			return false
		}
		got = payload
		return true
	}, 5*time.Second, 20*time.Millisecond)

	assert.Equal(t, "45.0,90.0,5.0", got)
}

func TestZMQ_SubscriberBeforePublisher(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping network test in short mode")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	port := freePort(t)
	endpoint := fmt.Sprintf("tcp://127.0.0.1:%d", port)
	log := zerolog.Nop()

	sub := NewSubscriber(ctx, SubscriberOptions{Endpoint: endpoint, DialRetry: 20 * time.Millisecond}, log)
	defer sub.Close()

	time.Sleep(50 * time.Millisecond)

	pub, err := NewPublisher(ctx, endpoint, log)
	require.NoError(t, err)
	defer pub.Close()

	require.Eventually(t, func() bool {
		_ = pub.Publish(ctx, "1.0,1.0,1.0")
		_, ok, _ := sub.TryReceive()
		return ok
	}, 5*time.Second, 20*time.Millisecond)
}

func TestZMQ_BindConflict(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping network test in short mode")
	}

	ctx := context.Background()
	endpoint := fmt.Sprintf("tcp://127.0.0.1:%d", freePort(t))

	first, err := NewPublisher(ctx, endpoint, zerolog.Nop())
	require.NoError(t, err)
	defer first.Close()

	_, err = NewPublisher(ctx, endpoint, zerolog.Nop())
	assert.Error(t, err)
}

func TestZMQ_CloseIsIdempotent(t *testing.T) {
	ctx := context.Background()

	sub := NewSubscriber(ctx, SubscriberOptions{Endpoint: "tcp://127.0.0.1:1", DialRetry: 10 * time.Millisecond}, zerolog.Nop())
	_ = sub.Close()
	require.NoError(t, sub.Close(), "second Close is a no-op")

	_, _, err := sub.TryReceive()
	assert.ErrorIs(t, err, ErrClosed)
}
