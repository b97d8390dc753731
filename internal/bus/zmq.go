package bus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-zeromq/zmq4"
	"github.com/rs/zerolog"
)

// ZMQPublisher is a ZeroMQ PUB socket bound to a local endpoint.
type ZMQPublisher struct {
	sock     zmq4.Socket
	endpoint string
	log      zerolog.Logger
	mu       sync.Mutex
	closed   bool
}

// NewPublisher binds a PUB socket on endpoint, e.g. "tcp://*:5555".
func NewPublisher(ctx context.Context, endpoint string, log zerolog.Logger) (*ZMQPublisher, error) {
	sock := zmq4.NewPub(ctx)
	if err := sock.Listen(endpoint); err != nil {
		sock.Close()
		return nil, fmt.Errorf("bind %s: %w", endpoint, err)
	}

	log.Info().Str("endpoint", endpoint).Msg("publisher bound")

	return &ZMQPublisher{
		sock:     sock,
		endpoint: endpoint,
		log:      log,
	}, nil
}

// Publish sends payload to every connected subscriber. With no subscribers
// the payload is discarded.
func (p *ZMQPublisher) Publish(ctx context.Context, payload string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}
	if err := p.sock.Send(zmq4.NewMsgString(payload)); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// Close unbinds the socket. It is safe to call more than once.
func (p *ZMQPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	p.log.Info().Str("endpoint", p.endpoint).Msg("publisher closed")
	return p.sock.Close()
}

// SubscriberOptions configures a ZMQSubscriber.
type SubscriberOptions struct {
	// Endpoint to connect to, e.g. "tcp://localhost:5555".
	Endpoint string
	// QueueSize bounds the receive buffer. Zero means DefaultQueueSize.
	QueueSize int
	// Conflate keeps only the newest message.
	Conflate bool
	// DialRetry is the delay between connection attempts. Zero means 250ms.
	DialRetry time.Duration
}

// ZMQSubscriber is a ZeroMQ SUB socket subscribed to every topic. A background
// goroutine connects (retrying until the publisher appears) and moves
// received messages into a bounded queue that TryReceive drains.
type ZMQSubscriber struct {
	opts   SubscriberOptions
	sock   zmq4.Socket
	queue  *queue
	log    zerolog.Logger
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	closed bool
}

// NewSubscriber starts connecting to opts.Endpoint and returns immediately.
func NewSubscriber(ctx context.Context, opts SubscriberOptions, log zerolog.Logger) *ZMQSubscriber {
	if opts.DialRetry <= 0 {
		opts.DialRetry = 250 * time.Millisecond
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &ZMQSubscriber{
		opts:   opts,
		sock:   zmq4.NewSub(ctx, zmq4.WithDialerRetry(opts.DialRetry)),
		queue:  newQueue(opts.QueueSize, opts.Conflate),
		log:    log,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go s.run(ctx)
	return s
}

func (s *ZMQSubscriber) run(ctx context.Context) {
	defer close(s.done)

	if !s.connect(ctx) {
		return
	}

	for {
		msg, err := s.sock.Recv()
		if err != nil {
			if ctx.Err() == nil {
				s.log.Warn().Err(err).Msg("receive stopped")
			}
			return
		}
		if len(msg.Frames) == 0 {
			continue
		}
		s.queue.push(string(msg.Frames[0]))
	}
}

// connect dials until it succeeds or ctx is done, then subscribes to everything.
func (s *ZMQSubscriber) connect(ctx context.Context) bool {
	for {
		err := s.sock.Dial(s.opts.Endpoint)
		if err == nil {
			break
		}
		s.log.Debug().Err(err).Str("endpoint", s.opts.Endpoint).Msg("publisher not reachable, retrying")

		select {
		case <-ctx.Done():
			return false
		case <-time.After(s.opts.DialRetry):
		}
	}

	if err := s.sock.SetOption(zmq4.OptionSubscribe, ""); err != nil {
		s.log.Error().Err(err).Msg("subscribe failed")
		return false
	}

	s.log.Info().Str("endpoint", s.opts.Endpoint).Msg("subscriber connected")
	return true
}

// TryReceive implements Subscriber.
func (s *ZMQSubscriber) TryReceive() (string, bool, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()

	if closed {
		return "", false, ErrClosed
	}

	payload, ok := s.queue.pop()
	return payload, ok, nil
}

// Dropped reports how many messages overflowed the receive queue.
func (s *ZMQSubscriber) Dropped() uint64 {
	return s.queue.Dropped()
}

// Close disconnects and waits for the receive goroutine to exit.
func (s *ZMQSubscriber) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	err := s.sock.Close()
	<-s.done
	return err
}
