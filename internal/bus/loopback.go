package bus

import (
	"context"
	"sync"
)

// Loopback is an in-process Publisher with the same loss semantics as the
// network channel: only subscribers attached at publish time receive a payload.
type Loopback struct {
	mu     sync.Mutex
	subs   map[*LoopbackSubscriber]struct{}
	closed bool
}

// NewLoopback creates an empty in-process channel.
func NewLoopback() *Loopback {
	return &Loopback{subs: make(map[*LoopbackSubscriber]struct{})}
}

// Publish implements Publisher.
func (l *Loopback) Publish(ctx context.Context, payload string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrClosed
	}
	for sub := range l.subs {
		sub.queue.push(payload)
	}
	return nil
}

// Close implements Publisher. Attached subscribers stay readable.
func (l *Loopback) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

// Subscribe attaches a new subscriber.
func (l *Loopback) Subscribe(queueSize int, conflate bool) *LoopbackSubscriber {
	sub := &LoopbackSubscriber{
		owner: l,
		queue: newQueue(queueSize, conflate),
	}

	l.mu.Lock()
	l.subs[sub] = struct{}{}
	l.mu.Unlock()

	return sub
}

// LoopbackSubscriber is a Subscriber attached to a Loopback.
type LoopbackSubscriber struct {
	owner  *Loopback
	queue  *queue
	mu     sync.Mutex
	closed bool
}

// TryReceive implements Subscriber.
func (s *LoopbackSubscriber) TryReceive() (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", false, ErrClosed
	}
	payload, ok := s.queue.pop()
	return payload, ok, nil
}

// Dropped reports how many messages overflowed the queue.
func (s *LoopbackSubscriber) Dropped() uint64 {
	return s.queue.Dropped()
}

// Close detaches the subscriber.
func (s *LoopbackSubscriber) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.owner.mu.Lock()
	delete(s.owner.subs, s)
	s.owner.mu.Unlock()
	return nil
}
