package domain

// Command is a request to change state. The name routes it to a single handler.
type Command[T any] interface {
	CommandName() string
	Payload() T
}
