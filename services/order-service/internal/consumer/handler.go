package consumer

import (
	"context"
	"log/slog"

	"github.com/avdupont/shopmesh/libs/events"
	"github.com/avdupont/shopmesh/services/order-service/internal/replica"
	"github.com/segmentio/kafka-go"
)

// UserCreatedHandler decodes user.created events and applies them to the
// replica cache. Malformed payloads are reported and skipped; they must not
// be retried and must not stop the loop.
func UserCreatedHandler(logger *slog.Logger, cache *replica.Cache) Handler {
	return func(_ context.Context, msg kafka.Message) error {
		evt, err := events.DecodeUserCreated(msg.Value)
		if err != nil {
			logger.Error("malformed event skipped", "topic", msg.Topic, "offset", msg.Offset, "err", err)
			return nil
		}

		if cache.UpsertIfAbsent(replica.User{ID: evt.ID, Name: evt.Name, Email: evt.Email}) {
			logger.Info("user replicated", "user_id", evt.ID, "cache_size", cache.Len())
		} else {
			logger.Debug("user already replicated", "user_id", evt.ID)
		}
		return nil
	}
}
