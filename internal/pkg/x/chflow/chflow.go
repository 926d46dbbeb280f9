// Package chflow provides context-aware helpers for channel operations,
// so sends and receives always honor cancellation and deadlines carried
// by a context.Context.
package chflow

import "context"

// Receive blocks until a value arrives on ch or ctx is canceled.
// The boolean result is false when the context ended first or the
// channel was closed; in both cases the zero value is returned.
func Receive[T any](ctx context.Context, ch <-chan T) (T, bool) {
	var data T
	select {
	case <-ctx.Done():
		return data, false
	case data, ok := <-ch:
		return data, ok
	}
}

// Send blocks until data is written to ch or ctx is canceled.
// It reports whether the value was actually delivered.
func Send[T any](ctx context.Context, ch chan<- T, data T) bool {
	select {
	case <-ctx.Done():
		return false
	case ch <- data:
		return true
	}
}

// TrySend writes data to ch only if a buffer slot or receiver is
// immediately available. It never blocks and reports whether the value
// was delivered. Useful for best-effort notification fan-out where a
// slow subscriber must not stall the producer.
func TrySend[T any](ch chan<- T, data T) bool {
	select {
	case ch <- data:
		return true
	default:
		return false
	}
}
