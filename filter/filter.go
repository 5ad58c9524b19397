// Package filter provides composable channel middleware over agentbridge
// event streams. Consumers wrap ChanSink.Events() with these functions to
// select the events they need.
package filter

import (
	"context"

	"github.com/dmora/agentbridge"
)

// Kinds returns a channel that only passes events of the given kinds.
// Spawns a goroutine that exits when ctx is cancelled or ch is closed.
// The returned channel is closed when the goroutine exits.
func Kinds(ctx context.Context, ch <-chan agentbridge.Event, kinds ...agentbridge.EventKind) <-chan agentbridge.Event {
	allowed := make(map[agentbridge.EventKind]struct{}, len(kinds))
	for _, k := range kinds {
		allowed[k] = struct{}{}
	}
	return pipe(ctx, ch, func(ev agentbridge.Event) bool {
		_, ok := allowed[ev.Kind]
		return ok
	})
}

// Session returns a channel that passes only events of the named session.
func Session(ctx context.Context, ch <-chan agentbridge.Event, name string) <-chan agentbridge.Event {
	return pipe(ctx, ch, func(ev agentbridge.Event) bool {
		return ev.Session == name
	})
}

// Statuses returns a channel that passes only status events.
func Statuses(ctx context.Context, ch <-chan agentbridge.Event) <-chan agentbridge.Event {
	return pipe(ctx, ch, func(ev agentbridge.Event) bool {
		return ev.Kind == agentbridge.EventStatus
	})
}

// UntilTerminal passes events through and closes the returned channel
// right after forwarding the first StatusStopped or StatusError event.
func UntilTerminal(ctx context.Context, ch <-chan agentbridge.Event) <-chan agentbridge.Event {
	out := make(chan agentbridge.Event)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-ch:
				if !ok || !trySend(ctx, out, ev) {
					return
				}
				if IsTerminal(ev) {
					return
				}
			}
		}
	}()
	return out
}

// IsTerminal reports whether ev ends a session's usable life: Stopped, or
// Error (the session stays registered but cannot serve prompts).
func IsTerminal(ev agentbridge.Event) bool {
	return ev.Kind == agentbridge.EventStatus &&
		(ev.Status == agentbridge.StatusStopped || ev.Status == agentbridge.StatusError)
}

// pipe spawns a goroutine that reads from ch, passes events matching
// the predicate to the returned channel, and closes it when ch closes
// or ctx is cancelled. Callers must either drain the returned channel
// or cancel ctx to avoid goroutine leaks. Events accepted by the
// predicate may be silently dropped if ctx is cancelled mid-send.
func pipe(ctx context.Context, ch <-chan agentbridge.Event, accept func(agentbridge.Event) bool) <-chan agentbridge.Event {
	out := make(chan agentbridge.Event)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-ch:
				if !ok {
					return
				}
				if accept(ev) && !trySend(ctx, out, ev) {
					return
				}
			}
		}
	}()
	return out
}

// trySend sends ev on out, returning true on success.
// Returns false if ctx is cancelled before the send completes.
func trySend(ctx context.Context, out chan<- agentbridge.Event, ev agentbridge.Event) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
