package messaging

import (
	"context"
	"time"

	"mesa-table-service/internal/queue"

	"go.uber.org/zap"
)

// AMQPMessenger hands outbound messages to the bot transport via the
// mesa.outbound queue. When the broker is not configured (local dev) sends
// are logged and dropped.
type AMQPMessenger struct {
	Queue  *queue.Client
	Logger *zap.Logger
}

func (m *AMQPMessenger) SendMessage(ctx context.Context, channelID string, text string, buttons []Button) error {
	if m.Queue == nil {
		m.Logger.Warn("outbound messenger disabled; dropping message",
			zap.String("channelId", channelID))
		return nil
	}

	payload := map[string]any{
		"channelId": channelID,
		"text":      text,
		"buttons":   buttons,
		"queuedAt":  time.Now().UTC().Format(time.RFC3339),
	}

	if err := m.Queue.PublishJSON(ctx, queue.OutboundExchange, queue.OutboundRK, payload); err != nil {
		m.Logger.Error("outbound message publish failed",
			zap.String("channelId", channelID),
			zap.Error(err))
		return err
	}
	return nil
}
