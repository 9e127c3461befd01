package events

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/commitlog/internal/runtime/logging"
)

// Watch subscribes to topic and decodes every message into an Event.
// Messages that are not job events are acked, logged and skipped. The
// returned channel closes when the subscription ends or ctx is done.
func Watch(ctx context.Context, sub message.Subscriber, topic string, logger logging.ServiceLogger) (<-chan Event, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	msgs, err := sub.Subscribe(ctx, topic)
	if err != nil {
		return nil, err
	}

	out := make(chan Event)
	go func() {
		defer close(out)
		for {
			var msg *message.Message
			var ok bool
			select {
			case <-ctx.Done():
				return
			case msg, ok = <-msgs:
				if !ok {
					return
				}
			}

			ev, err := Decode(msg.Payload)
			msg.Ack()
			if err != nil {
				logger.Error("Skipping undecodable event", err, logging.LogFields{
					"message_uuid": msg.UUID,
					"topic":        topic,
				})
				continue
			}

			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
