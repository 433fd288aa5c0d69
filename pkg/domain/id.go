package domain

// IDGenerator produces identifiers for messages and correlation ids.
type IDGenerator[T comparable] func() T
