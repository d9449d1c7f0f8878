package broadcast

import (
	"context"
	"sync"
)

// MemoryBroadcaster delivers messages in-process. A subscriber whose buffer
// is full misses the message but stays subscribed.
type MemoryBroadcaster[T any] struct {
	mu          sync.RWMutex
	subscribers map[*subscriber[T]]struct{}
	bufferSize  int
	closed      bool
}

// NewMemoryBroadcaster gives each subscriber a buffer of bufferSize (at least 1).
func NewMemoryBroadcaster[T any](bufferSize int) *MemoryBroadcaster[T] {
	return &MemoryBroadcaster[T]{
		subscribers: make(map[*subscriber[T]]struct{}),
		bufferSize:  max(bufferSize, 1),
	}
}

// Subscribe returns an already closed subscriber after Close.
func (b *MemoryBroadcaster[T]) Subscribe(ctx context.Context) Subscriber[T] {
	sub := newSubscriber[T](b.bufferSize)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		_ = sub.Close()
		return sub
	}
	b.subscribers[sub] = struct{}{}

	if ctx.Done() != nil {
		go func() {
			<-ctx.Done()
			b.unsubscribe(sub)
		}()
	}
	return sub
}

// Broadcast never blocks. Subscribers closed by their owner are dropped.
func (b *MemoryBroadcaster[T]) Broadcast(_ context.Context, msg Message[T]) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrClosed
	}
	var gone []*subscriber[T]
	for sub := range b.subscribers {
		if !sub.send(msg) && sub.isClosed() {
			gone = append(gone, sub)
		}
	}
	b.mu.RUnlock()

	for _, sub := range gone {
		b.unsubscribe(sub)
	}
	return nil
}

// Len reports the number of live subscribers.
func (b *MemoryBroadcaster[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Close is idempotent.
func (b *MemoryBroadcaster[T]) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	for sub := range b.subscribers {
		_ = sub.Close()
	}
	clear(b.subscribers)
	b.mu.Unlock()

	return nil
}

func (b *MemoryBroadcaster[T]) unsubscribe(sub *subscriber[T]) {
	b.mu.Lock()
	delete(b.subscribers, sub)
	b.mu.Unlock()
	_ = sub.Close()
}
