package agentbridge

import (
	"sync"
	"time"
)

// Sink receives events published by the engine. Implementations decide the
// transport (a UI bridge, a channel, a log). Publish may be called from
// several goroutines concurrently.
type Sink interface {
	Publish(ev Event) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ev Event) error

// Publish calls f(ev).
func (f SinkFunc) Publish(ev Event) error { return f(ev) }

// ChanSink is a Sink backed by a buffered channel.
//
// Publish blocks while the buffer is full, so the consumer must drain
// Events concurrently. After Close, Publish returns ErrTerminated and the
// channel is closed.
type ChanSink struct {
	mu     sync.Mutex // guards ch close
	closed bool
	ch     chan Event

	done     chan struct{}
	doneOnce sync.Once
}

// NewChanSink creates a ChanSink with the given buffer size.
func NewChanSink(buffer int) *ChanSink {
	if buffer < 0 {
		buffer = 0
	}
	return &ChanSink{
		ch:   make(chan Event, buffer),
		done: make(chan struct{}),
	}
}

// Events returns the channel events are delivered on.
func (s *ChanSink) Events() <-chan Event {
	return s.ch
}

// Publish delivers ev, stamping the timestamp if unset.
//
// Holds mu for the whole check+send so Close cannot close the channel under
// a pending send. Close signals done before taking mu, which unblocks a
// Publish stuck on a full buffer.
func (s *ChanSink) Publish(ev Event) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrTerminated
	}
	select {
	case s.ch <- ev:
		return nil
	case <-s.done:
		return ErrTerminated
	}
}

// Close closes the event channel. Safe to call multiple times.
func (s *ChanSink) Close() {
	s.doneOnce.Do(func() { close(s.done) })

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}
