package adapter

import (
	"context"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/mateusmacedo/parkit/pkg/application"
	"github.com/mateusmacedo/parkit/pkg/domain"
)

const (
	MetadataEventName     = "event_name"
	MetadataOccurredAt    = "occurred_at"
	MetadataTransactionID = "transaction_id"
)

// EventBus publishes every event to the topic named after it, then runs the locally
// registered handlers. It works with any message.Publisher (GoChannel, Kafka, Redis Streams).
type EventBus[E domain.Event[D], D any] struct {
	publisher message.Publisher
	handlers  map[string][]application.EventHandler[E, D]
	mu        sync.RWMutex
	logger    application.AppLogger
}

func NewEventBus[E domain.Event[D], D any](publisher message.Publisher, logger application.AppLogger) *EventBus[E, D] {
	return &EventBus[E, D]{
		publisher: publisher,
		handlers:  make(map[string][]application.EventHandler[E, D]),
		logger:    logger,
	}
}

func (bus *EventBus[E, D]) RegisterHandler(eventName string, handler application.EventHandler[E, D]) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	bus.handlers[eventName] = append(bus.handlers[eventName], handler)
}

func (bus *EventBus[E, D]) Publish(ctx context.Context, event E) error {
	eventName := event.EventName()

	payload, err := application.MarshalPayload(event.Payload())
	if err != nil {
		application.LogError(ctx, bus.logger, "error marshalling event payload", err, map[string]interface{}{
			"event_name": eventName,
		})
		return err
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	msg.Metadata.Set(MetadataEventName, eventName)
	msg.Metadata.Set(MetadataOccurredAt, event.OccurredAt().UTC().Format(time.RFC3339Nano))
	if txID, ok := application.TransactionID(ctx); ok {
		msg.Metadata.Set(MetadataTransactionID, txID)
	}

	if err := bus.publisher.Publish(eventName, msg); err != nil {
		application.LogError(ctx, bus.logger, "error publishing event", err, map[string]interface{}{
			"event_name": eventName,
			"message_id": msg.UUID,
		})
		return err
	}

	bus.mu.RLock()
	handlers := bus.handlers[eventName]
	bus.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler.Handle(ctx, event); err != nil {
			application.LogError(ctx, bus.logger, "error handling event", err, map[string]interface{}{
				"event_name": eventName,
			})
			return err
		}
	}

	application.LogDebug(ctx, bus.logger, "event published", map[string]interface{}{
		"event_name": eventName,
		"message_id": msg.UUID,
	})
	return nil
}
