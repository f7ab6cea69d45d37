// Package streams provides a generic, pull-based, cancellable iterator over a
// sequence of items.
//
// A Stream wraps the common select-on-context-and-channel pattern behind a
// single NextContext call, which makes consumer loops shorter and keeps the
// cancellation behavior composable through transformations like Map. No
// goroutines or intermediate channels are created for transformation steps;
// items are pulled through the pipeline on demand, inside the consumer's
// goroutine.
package streams

import (
	"context"
)

// Stream represents a lazy, pull-based, cancellable iterator over a sequence
// of items of type T.
//
// The zero value of a Stream is not useful and panics on use.
type Stream[T any] struct {
	// next produces the next item, a boolean indicating whether the item is
	// valid, and an error if the context was canceled while waiting.
	next func(ctx context.Context) (T, bool, error)
}

// New creates a Stream from a read-only channel. The stream produces items
// until the channel is closed and drained, or the context is canceled.
func New[T any](source <-chan T) *Stream[T] {
	return &Stream[T]{
		next: func(ctx context.Context) (T, bool, error) {
			select {
			case <-ctx.Done():
				var zero T
				return zero, false, ctx.Err()
			case val, ok := <-source:
				return val, ok, nil
			}
		},
	}
}

// Map returns a Stream that applies conv to each item of the source stream.
// The conversion is lazy; it runs when the returned stream is pulled from.
func Map[T, U any](source *Stream[T], conv func(T) U) *Stream[U] {
	return &Stream[U]{
		next: func(ctx context.Context) (U, bool, error) {
			var zero U

			val, ok, err := source.next(ctx)
			if err != nil || !ok {
				return zero, false, err
			}

			return conv(val), true, nil
		},
	}
}

// Next produces the next item using a background context. It is not
// cancellable; for cancellable iteration use NextContext.
func (s *Stream[T]) Next() (T, bool) {
	val, ok, _ := s.next(context.Background())
	return val, ok
}

// NextContext produces the next item, respecting context cancellation.
//
// It returns the item, a boolean `ok` which is false once the stream is
// exhausted, and an error if the context was canceled while waiting.
func (s *Stream[T]) NextContext(ctx context.Context) (T, bool, error) {
	return s.next(ctx)
}

// Exhaust collects all remaining items into a slice, or returns early with an
// error if the context is canceled.
func (s *Stream[T]) Exhaust(ctx context.Context) ([]T, error) {
	items := make([]T, 0, 100)

	for {
		item, ok, err := s.next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return items, nil
		}
		items = append(items, item)
	}
}
