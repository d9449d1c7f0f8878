package session

import (
	"context"
	"sync"

	"github.com/dmitrymomot/authkit/pkg/async"
)

// coordinator collapses concurrent renewal requests into one network call.
// The first caller starts the renewal and parks its future in pending; every
// caller arriving before the future settles waits on the same future. The
// slot is emptied by the renewal itself before the future settles, so a
// caller arriving after settlement always starts a new attempt.
type coordinator struct {
	renew  func(ctx context.Context) (*Session, error)
	onJoin func()

	mu      sync.Mutex
	pending *async.Future[*Session]
}

func (c *coordinator) obtain(ctx context.Context) (*Session, error) {
	c.mu.Lock()
	f := c.pending
	if f == nil {
		var started *async.Future[*Session]
		// Detached from the caller: one caller giving up must not fail the others.
		started = async.Async(context.WithoutCancel(ctx), struct{}{},
			func(ctx context.Context, _ struct{}) (*Session, error) {
				defer func() {
					// mu is held by obtain until started is assigned
					c.mu.Lock()
					if c.pending == started {
						c.pending = nil
					}
					c.mu.Unlock()
				}()
				return c.renew(ctx)
			})
		c.pending = started
		f = started
	} else if c.onJoin != nil {
		c.onJoin()
	}
	c.mu.Unlock()

	return f.AwaitContext(ctx)
}

func (c *coordinator) inFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending != nil
}
