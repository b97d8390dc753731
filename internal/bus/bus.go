// Package bus is the one-way broadcast channel between the tracker and the
// renderer. Delivery is fire-and-forget: messages published before a
// subscriber connects, or while its queue is full, are lost.
package bus

import (
	"context"
	"errors"
	"sync/atomic"
)

// ErrClosed is returned by operations on a closed publisher or subscriber.
var ErrClosed = errors.New("bus: closed")

// DefaultQueueSize matches ZeroMQ's default receive high-water mark.
const DefaultQueueSize = 1000

// Publisher broadcasts text payloads to every connected subscriber.
type Publisher interface {
	Publish(ctx context.Context, payload string) error
	Close() error
}

// Subscriber receives broadcast payloads without blocking.
type Subscriber interface {
	// TryReceive returns the next buffered payload. ok is false when nothing is
	// buffered; that is the common case, not an error.
	TryReceive() (payload string, ok bool, err error)
	Close() error
}

// queue is the subscriber-side receive buffer.
type queue struct {
	ch       chan string
	conflate bool
	dropped  atomic.Uint64
}

func newQueue(size int, conflate bool) *queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &queue{ch: make(chan string, size), conflate: conflate}
}

// push buffers s. A full queue drops s, or in conflate mode evicts the oldest entry.
func (q *queue) push(s string) {
	for {
		select {
		case q.ch <- s:
			return
		default:
		}

		if !q.conflate {
			q.dropped.Add(1)
			return
		}

		select {
		case <-q.ch:
			q.dropped.Add(1)
		default:
		}
	}
}

// pop returns the next entry, or the newest one in conflate mode.
func (q *queue) pop() (string, bool) {
	select {
	case s := <-q.ch:
		if !q.conflate {
			return s, true
		}
		for {
			select {
			case newer := <-q.ch:
				s = newer
			default:
				return s, true
			}
		}
	default:
		return "", false
	}
}

// Dropped reports how many messages were discarded by the queue.
func (q *queue) Dropped() uint64 {
	return q.dropped.Load()
}
