package application

import (
	"context"

	"github.com/mateusmacedo/parkit/pkg/domain"
)

type EventHandler[E domain.Event[T], T any] interface {
	Handle(ctx context.Context, event E) error
}

// EventPublisher is the narrow side of an EventBus that producers depend on.
type EventPublisher[E domain.Event[D], D any] interface {
	Publish(ctx context.Context, event E) error
}

type EventBus[E domain.Event[D], D any] interface {
	EventPublisher[E, D]
	RegisterHandler(eventName string, handler EventHandler[E, D])
}
