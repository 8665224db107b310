package internal

import (
	"context"
	"fmt"
)

// SubscribeChannelBackups is the daemon stream that fires whenever the
// channel backup changes.
const SubscribeChannelBackups = "subscribeChannelBackups"

type EventKind int

const (
	// EventData means a new backup exists; its payload is not used.
	EventData EventKind = iota
	EventError
	// EventStatus ends a stream session.
	EventStatus
)

func (k EventKind) String() string {
	switch k {
	case EventData:
		return "data"
	case EventError:
		return "error"
	case EventStatus:
		return "status"
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

type Event struct {
	Kind    EventKind
	Session string
	Err     error
	Status  string
}

// Transport opens daemon push streams. The returned channel is closed
// once ctx is done; reconnecting is up to the transport.
type Transport interface {
	Subscribe(ctx context.Context, eventName string) (<-chan Event, error)
}

// send delivers ev unless ctx ends first.
func send(ctx context.Context, ch chan<- Event, ev Event) bool {
	select {
	case ch <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// sendFinal is used for the closing status, when ctx is usually done already.
func sendFinal(ch chan<- Event, ev Event) {
	select {
	case ch <- ev:
	default:
	}
}
