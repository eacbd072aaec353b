package bus

import "time"

// Event represents a domain event published on the bus.
// Conversation scopes the event to one conversation; empty means global.
type Event struct {
	Kind         string
	Conversation string
	Timestamp    time.Time
	Payload      any
}
