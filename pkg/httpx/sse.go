// Package httpx contains HTTP-level helpers for the benchmark, most notably a
// reader for Server-Sent Event response bodies that stamps every event with
// its local arrival time. The arrival timestamps are what the benchmark's
// token-latency measurements are derived from.
package httpx

import (
	"bufio"
	"context"
	"io"
	"strings"
	"sync"
	"time"
)

// doneMarker is the payload servers send to signal the end of the stream.
const doneMarker = "[DONE]"

// maxEventSize bounds a single SSE line; chat-completion deltas are tiny, but
// a server may batch a large chunk into one event.
const maxEventSize = 1 << 20

// ServerSentEvent is a single event read from an SSE response body.
type ServerSentEvent struct {
	// Index is the zero-based position of the event within the stream.
	Index int
	// Data is the event payload with the "data:" prefix stripped.
	Data string
	// Err is set when reading the stream failed. An event with Err set is
	// always the last one produced.
	Err error
	// Timestamp is the local reception time of the event.
	Timestamp time.Time
}

// ReadServerSentEvents consumes the given response body as a stream of
// Server-Sent Events and returns a channel of parsed events.
//
// It takes ownership of the body and guarantees it is closed, both on normal
// termination and on context cancellation. A "[DONE]" payload terminates the
// stream without being emitted; empty keep-alive lines are skipped.
func ReadServerSentEvents(ctx context.Context, body io.ReadCloser) <-chan ServerSentEvent {
	events := make(chan ServerSentEvent, 100)

	// Closing the body is the only way to unblock a read that is parked on
	// the network, so cancellation is wired straight to Close. OnceFunc
	// makes the two close sites below safe against each other.
	closeBody := sync.OnceFunc(func() { _ = body.Close() })
	stopAfterFunc := context.AfterFunc(ctx, closeBody)

	go func() {
		defer close(events)
		defer stopAfterFunc()
		defer closeBody()

		scanner := bufio.NewScanner(body)
		scanner.Buffer(make([]byte, 0, 4096), maxEventSize)

		index := 0
		for scanner.Scan() {
			// Stamp right after the read so the timestamp reflects network
			// arrival, not parsing.
			arrival := time.Now()

			data, ok := eventPayload(scanner.Text())
			if !ok {
				continue // Keep-alive or separator line.
			}
			if data == doneMarker {
				return
			}

			events <- ServerSentEvent{Index: index, Data: data, Timestamp: arrival}
			index++
		}

		// A clean EOF leaves the scanner error-free; anything else ends the
		// stream with a final error event. After cancellation the read fails
		// with a close-induced error, which the context error supersedes.
		if err := scanner.Err(); err != nil {
			if ctx.Err() != nil {
				err = ctx.Err()
			}
			events <- ServerSentEvent{Index: index, Err: err, Timestamp: time.Now()}
		}
	}()

	return events
}

// eventPayload extracts the payload from a raw SSE line, reporting false for
// lines that carry none. It must stay cheap, as it runs between the read and
// the consumer seeing the event's timestamp.
func eventPayload(line string) (string, bool) {
	line = strings.TrimSpace(line)
	line = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
	return line, line != ""
}
