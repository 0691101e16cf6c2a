package csa

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Event is one classified server line.
type Event struct {
	Flag    Flag
	Line    string
	Summary *GameSummary
}

// eventQueue is the FIFO between the receiver and the dispatcher. push never
// blocks; there is a single waiter.
type eventQueue struct {
	mu     sync.Mutex
	events []Event
	closed bool
	notify chan struct{}
	logger *zap.Logger
}

func newEventQueue(logger *zap.Logger) *eventQueue {
	return &eventQueue{notify: make(chan struct{}, 1), logger: logger}
}

func (q *eventQueue) push(ev Event) {
	q.mu.Lock()
	q.events = append(q.events, ev)
	if ev.Flag&FlagClosed != 0 {
		q.closed = true
	}
	q.mu.Unlock()
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// waitReceive blocks until an event intersecting mask arrives and returns it
// with Flag reduced to the intersection. A terminal event (logout or closed
// stream) that is not asked for ends the wait with Flag == 0. Any other event
// is dropped. Once the stream is closed and drained every call returns at
// once.
func (q *eventQueue) waitReceive(ctx context.Context, mask Flag) Event {
	for {
		q.mu.Lock()
		if len(q.events) > 0 {
			ev := q.events[0]
			q.events[0] = Event{}
			q.events = q.events[1:]
			q.mu.Unlock()

			if ev.Flag&mask != 0 {
				ev.Flag &= mask
				return ev
			}
			if ev.Flag&terminalMask != 0 {
				return Event{Line: ev.Line}
			}
			q.logger.Debug("event discarded", zap.Stringer("flag", ev.Flag), zap.Stringer("want", mask), zap.String("line", ev.Line))
			continue
		}
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return Event{}
		}

		select {
		case <-q.notify:
		case <-ctx.Done():
			return Event{}
		}
	}
}
