package reconcile

import (
	"time"

	"github.com/MarcoPoloResearchLab/notebook/internal/pubsub"
)

// EventType names what happened to the engine state.
type EventType string

const (
	// EventLoaded fires once when the engine becomes ready.
	EventLoaded EventType = "loaded"
	// EventChanged fires after a local mutation or an adopted push.
	EventChanged EventType = "changed"
	// EventSynchronized fires after a poll reloaded the collections.
	EventSynchronized EventType = "synchronized"
)

// Origin tells whether a change was made by this context or adopted from another.
type Origin string

const (
	OriginLocal    Origin = "local"
	OriginExternal Origin = "external"
)

// Event announces a state change.
type Event struct {
	Type      EventType
	Origin    Origin
	Timestamp time.Time
}

const eventBuffer = 16

func newEventDispatcher() *pubsub.Dispatcher[Event] {
	return pubsub.NewDispatcher[Event](eventBuffer)
}
