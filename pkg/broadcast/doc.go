// Package broadcast fans typed messages out to any number of subscribers.
//
// MemoryBroadcaster is the in-process implementation. Broadcast never blocks:
// a subscriber with a full buffer misses that message. Subscriptions end when
// their context is done, when Close is called on them, or when the
// broadcaster itself is closed.
//
//	b := broadcast.NewMemoryBroadcaster[session.Event](16)
//	defer b.Close()
//
//	sub := b.Subscribe(ctx)
//	for msg := range sub.Receive(ctx) {
//		handle(msg.Data)
//	}
package broadcast
