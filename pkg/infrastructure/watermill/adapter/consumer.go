package adapter

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/mateusmacedo/parkit/pkg/application"
	"github.com/mateusmacedo/parkit/pkg/domain"
)

type receivedEvent[D any] struct {
	name       string
	payload    D
	occurredAt time.Time
}

func (e receivedEvent[D]) EventName() string     { return e.name }
func (e receivedEvent[D]) Payload() D            { return e.payload }
func (e receivedEvent[D]) OccurredAt() time.Time { return e.occurredAt }

// Consume subscribes to topic and hands every message, decoded into D, to handler until
// ctx is done. A message is acked when the handler succeeds and nacked otherwise; payloads
// that cannot be decoded are acked and dropped so they are not redelivered forever.
func Consume[D any](
	ctx context.Context,
	subscriber message.Subscriber,
	topic string,
	handler application.EventHandler[domain.Event[D], D],
	logger application.AppLogger,
) error {
	messages, err := subscriber.Subscribe(ctx, topic)
	if err != nil {
		application.LogError(ctx, logger, "error subscribing to event", err, map[string]interface{}{
			"event_name": topic,
		})
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			handleMessage(ctx, msg, topic, handler, logger)
		}
	}
}

func handleMessage[D any](
	ctx context.Context,
	msg *message.Message,
	topic string,
	handler application.EventHandler[domain.Event[D], D],
	logger application.AppLogger,
) {
	msgCtx := ctx
	if txID := msg.Metadata.Get(MetadataTransactionID); txID != "" {
		msgCtx = application.WithTransactionID(ctx, txID)
	}

	payload, err := application.UnmarshalPayload[D](msg.Payload)
	if err != nil {
		application.LogError(msgCtx, logger, "error unmarshalling event payload", err, map[string]interface{}{
			"event_name": topic,
			"message_id": msg.UUID,
		})
		msg.Ack()
		return
	}

	name := msg.Metadata.Get(MetadataEventName)
	if name == "" {
		name = topic
	}
	occurredAt, err := time.Parse(time.RFC3339Nano, msg.Metadata.Get(MetadataOccurredAt))
	if err != nil {
		occurredAt = time.Now().UTC()
	}

	event := receivedEvent[D]{name: name, payload: payload, occurredAt: occurredAt}
	if err := handler.Handle(msgCtx, event); err != nil {
		application.LogError(msgCtx, logger, "error handling event", err, map[string]interface{}{
			"event_name": name,
			"message_id": msg.UUID,
		})
		msg.Nack()
		return
	}
	msg.Ack()
}
