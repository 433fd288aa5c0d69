package domain

// Query reads state without changing it.
type Query[T any] interface {
	QueryName() string
	Payload() T
}
