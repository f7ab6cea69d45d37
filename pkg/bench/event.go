package bench

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Event is a benchmark lifecycle or progress notification fanned out to
// subscribers (console renderer, report writer, ...).
type Event interface {
	// lossy reports whether the event may be dropped for a subscriber that
	// is not keeping up. Progress and log-style messages are lossy;
	// lifecycle events are delivered reliably.
	lossy() bool
}

// MessageEvent is a log-style message for display.
type MessageEvent struct {
	Level     logrus.Level
	Message   string
	Timestamp time.Time
}

// NewMessageEvent builds a MessageEvent stamped with the current time.
func NewMessageEvent(level logrus.Level, message string) MessageEvent {
	return MessageEvent{Level: level, Message: message, Timestamp: time.Now()}
}

// BenchmarkStartEvent signals that a sub-benchmark began.
type BenchmarkStartEvent struct {
	ID string
}

// BenchmarkProgressEvent carries a progress snapshot of the running
// sub-benchmark.
type BenchmarkProgressEvent struct {
	ID       string
	Progress SchedulerProgress
}

// BenchmarkEndEvent signals that a sub-benchmark completed, carrying its
// results snapshot.
type BenchmarkEndEvent struct {
	ID      string
	Results *BenchmarkResults
}

// BenchmarkReportEndEvent signals that the whole benchmark finished and the
// report is final. It is the last event a subscriber receives on a normal
// run; consumers use it as their termination signal.
type BenchmarkReportEndEvent struct{}

// BenchmarkErrorEvent signals a fatal benchmark error.
type BenchmarkErrorEvent struct {
	Error string
}

func (MessageEvent) lossy() bool            { return true }
func (BenchmarkProgressEvent) lossy() bool  { return true }
func (BenchmarkStartEvent) lossy() bool     { return false }
func (BenchmarkEndEvent) lossy() bool       { return false }
func (BenchmarkReportEndEvent) lossy() bool { return false }
func (BenchmarkErrorEvent) lossy() bool     { return false }

// Bus fans events out to any number of subscribers.
//
// Lossy events are dropped for subscribers whose buffers are full, so a slow
// consumer never blocks the benchmark. Non-lossy events are delivered with a
// blocking send: a subscriber must keep draining its channel until it sees
// BenchmarkReportEndEvent (or unsubscribes).
type Bus struct {
	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

// Subscription is one subscriber's receiving end. The channel is never
// closed; termination is signaled by BenchmarkReportEndEvent.
type Subscription struct {
	// C delivers the events.
	C   <-chan Event
	ch  chan Event
	bus *Bus
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[*Subscription]struct{})}
}

// Subscribe registers a new subscriber with the given channel buffer.
func (b *Bus) Subscribe(buffer int) *Subscription {
	ch := make(chan Event, buffer)
	sub := &Subscription{C: ch, ch: ch, bus: b}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[sub] = struct{}{}
	return sub
}

// Unsubscribe removes the subscriber; no further events are delivered to it.
func (s *Subscription) Unsubscribe() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	delete(s.bus.subs, s)
}

// Publish delivers the event to all current subscribers.
func (b *Bus) Publish(event Event) {
	// Snapshot the subscriber set so reliable (blocking) sends happen
	// outside the lock and cannot stall Subscribe/Unsubscribe.
	b.mu.Lock()
	subs := make([]*Subscription, 0, len(b.subs))
	for sub := range b.subs {
		subs = append(subs, sub)
	}
	b.mu.Unlock()

	for _, sub := range subs {
		if event.lossy() {
			select {
			case sub.ch <- event:
			default:
				// Subscriber is behind; progress updates are disposable.
			}
			continue
		}
		sub.ch <- event
	}
}
