package agent

import (
	"context"
	"io"
	"sync"
)

// EventStream is the live, ordered sequence of events for one turn. It is
// finite but unbounded in length, and not restartable: once consumed it
// cannot be replayed.
type EventStream struct {
	ch     chan Event
	cancel context.CancelFunc

	// err is written by the producer before ch is closed; the channel
	// close provides the happens-before edge for readers.
	err error

	closeOnce sync.Once
}

func newEventStream(cancel context.CancelFunc) *EventStream {
	return &EventStream{ch: make(chan Event, 16), cancel: cancel}
}

// Recv returns the next event. It returns io.EOF after a cleanly completed
// turn, or a *StreamInterruptedError when the stream failed mid-flight.
func (s *EventStream) Recv() (Event, error) {
	ev, ok := <-s.ch
	if !ok {
		if s.err != nil {
			return nil, s.err
		}
		return nil, io.EOF
	}
	return ev, nil
}

// Close releases the stream: the producer stops promptly and no further
// events are delivered. Safe to call multiple times and concurrently with
// Recv.
func (s *EventStream) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		// Drain so a producer blocked on send can observe cancellation.
		go func() {
			for range s.ch {
			}
		}()
	})
}

// emit delivers an event unless the turn was cancelled.
func (s *EventStream) emit(ctx context.Context, ev Event) bool {
	select {
	case s.ch <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// finish terminates the stream; a nil err marks clean completion.
func (s *EventStream) finish(err error) {
	s.err = err
	close(s.ch)
}
