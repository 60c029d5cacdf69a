// Package ingress implements the Event Ingress component (C1): it accepts
// hook events from a Unix socket, a WebSocket listener, and an in-process
// keyboard channel, normalizes them, and funnels them onto one bounded
// channel for the engine's single actor to consume.
package ingress

import (
	"github.com/rehoboam-dev/rehoboam/internal/event"
)

// channelCapacity bounds the merged ingress FIFO.
const channelCapacity = 100

// Ingress owns the merged event channel every transport feeds.
type Ingress struct {
	Events chan *event.HookEvent
}

// New creates an Ingress with the standard bounded channel capacity.
func New() *Ingress {
	return &Ingress{Events: make(chan *event.HookEvent, channelCapacity)}
}

// SubmitKeyboardEvent lets the in-process keyboard channel (driven by the
// out-of-scope TUI's raw input loop) push a synthesized event — e.g. a
// manual status override or bulk signal dispatch — onto the same merged
// channel ingress events arrive on. It never blocks indefinitely: a full
// channel drops the event and reports false, matching the backpressure
// policy used by the other two transports.
func (i *Ingress) SubmitKeyboardEvent(e *event.HookEvent) bool {
	e.Source = event.LocalSource()
	select {
	case i.Events <- e:
		return true
	default:
		return false
	}
}
