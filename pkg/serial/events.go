package serial

import (
	"sync"
)

// EventKind identifies what a channel is reporting
type EventKind int

const (
	// EventData carries one received chunk. Chunk boundaries follow poll
	// timing and do not delimit messages.
	EventData EventKind = iota
	EventError
	EventStatus
)

// String returns the string representation of EventKind
func (k EventKind) String() string {
	switch k {
	case EventData:
		return "data"
	case EventError:
		return "error"
	case EventStatus:
		return "status"
	default:
		return "unknown"
	}
}

// Event is one DataReceived, ErrorOccurred or StatusChanged notification
type Event struct {
	Kind EventKind
	Data []byte
	Err  error
	Open bool
}

// Message returns the human readable error text of an EventError
func (e Event) Message() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func dataEvent(data []byte) Event { return Event{Kind: EventData, Data: data} }

func errorEvent(err error) Event { return Event{Kind: EventError, Err: err} }

func statusEvent(open bool) Event { return Event{Kind: EventStatus, Open: open} }

// eventQueue decouples the producer from the consumer: push never blocks, and
// a pump goroutine forwards events in order to out, closing it after the
// last event once the queue has been closed.
type eventQueue struct {
	mu     sync.Mutex
	items  []Event
	closed bool
	notify chan struct{}
	out    chan Event
}

func newEventQueue() *eventQueue {
	q := &eventQueue{
		notify: make(chan struct{}, 1),
		out:    make(chan Event),
	}
	go q.pump()
	return q
}

// push appends ev. It reports false once the queue is closed.
func (q *eventQueue) push(ev Event) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, ev)
	q.mu.Unlock()

	q.wake()
	return true
}

func (q *eventQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	q.wake()
}

func (q *eventQueue) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *eventQueue) pump() {
	defer close(q.out)

	for {
		q.mu.Lock()
		if len(q.items) == 0 {
			closed := q.closed
			q.mu.Unlock()
			if closed {
				return
			}
			<-q.notify
			continue
		}
		ev := q.items[0]
		q.items[0] = Event{}
		q.items = q.items[1:]
		q.mu.Unlock()

		q.out <- ev
	}
}
