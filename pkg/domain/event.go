package domain

import "time"

// Event is a fact that already happened and may be observed by any number of handlers.
type Event[T any] interface {
	EventName() string
	Payload() T
	OccurredAt() time.Time
}
