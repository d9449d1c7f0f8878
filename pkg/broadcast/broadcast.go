package broadcast

import (
	"context"
	"sync"
)

// Message carries one value of T to every subscriber.
type Message[T any] struct {
	Data T
}

// Subscriber is one receiving end of a Broadcaster. It is safe for
// concurrent use.
type Subscriber[T any] interface {
	// Receive returns the delivery channel. It is closed when the
	// subscription ends.
	Receive(ctx context.Context) <-chan Message[T]

	// Close ends the subscription. It is idempotent.
	Close() error
}

// Broadcaster fans messages out to subscribers without blocking on slow
// consumers.
type Broadcaster[T any] interface {
	// Subscribe registers a subscriber that lives until ctx is done or it is
	// closed.
	Subscribe(ctx context.Context) Subscriber[T]

	Broadcast(ctx context.Context, msg Message[T]) error

	// Close ends every subscription.
	Close() error
}

type subscriber[T any] struct {
	mu     sync.RWMutex
	ch     chan Message[T]
	closed bool
}

func newSubscriber[T any](size int) *subscriber[T] {
	return &subscriber[T]{ch: make(chan Message[T], size)}
}

func (s *subscriber[T]) Receive(context.Context) <-chan Message[T] {
	return s.ch
}

func (s *subscriber[T]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
	return nil
}

// send reports false when the subscriber is closed or its buffer is full.
func (s *subscriber[T]) send(msg Message[T]) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false
	}
	select {
	case s.ch <- msg:
		return true
	default:
		return false
	}
}

func (s *subscriber[T]) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}
