// Package async provides a small generic Future for running a computation in
// its own goroutine and letting any number of goroutines wait for the same
// result.
//
// Async starts the function and returns a *Future immediately. Await blocks
// until the function returns; AwaitContext additionally gives up when the
// waiter's context is done, without cancelling the computation itself, which
// keeps running for the remaining waiters. Done exposes the completion
// channel for select statements and Waiters reports how many waits were
// started, which is handy for metrics and tests.
//
// # Usage
//
//	future := async.Async(ctx, req, func(ctx context.Context, r Request) (Result, error) {
//		return client.Do(ctx, r)
//	})
//
//	res, err := future.AwaitContext(ctx)
//
// # Error Handling
//
// The package defines no errors of its own: waiters receive the error
// returned by the function, or the context error of the Async context (when
// cancelled before the goroutine starts) or of the waiter's context.
package async
