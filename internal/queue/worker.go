package queue

import (
	"context"
	"errors"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

type HandlerFunc func(ctx context.Context, body []byte) error

// ConsumeWithRetry runs handler for each message on queue. Failed messages are
// republished with an incremented x-retry-count header after retryDelay; once
// the count reaches maxRetries they are nacked without requeue, which routes
// them to the queue's dead-letter exchange. Returns when ctx is cancelled or
// the delivery channel closes.
func (c *Client) ConsumeWithRetry(ctx context.Context, queue string, handler HandlerFunc, maxRetries int, retryDelay time.Duration) error {
	msgs, err := c.ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	for {
		var msg amqp.Delivery
		var open bool
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, open = <-msgs:
			if !open {
				return errors.New("consumer channel closed")
			}
		}

		if err := handler(ctx, msg.Body); err == nil {
			if ackErr := msg.Ack(false); ackErr != nil {
				c.logger.Warn("message ack failed",
					zap.String("queue", queue), zap.Error(ackErr))
			}
			continue
		} else {
			retryCount := getRetryCount(msg.Headers)
			if retryCount >= maxRetries {
				c.logger.Warn("message retries exhausted, dead-lettering",
					zap.String("queue", queue), zap.Int("retries", retryCount), zap.Error(err))
				if nackErr := msg.Nack(false, false); nackErr != nil {
					c.logger.Warn("message nack failed",
						zap.String("queue", queue), zap.Error(nackErr))
				}
				continue
			}

			retryCount++
			headers := msg.Headers
			if headers == nil {
				headers = amqp.Table{}
			}
			headers["x-retry-count"] = retryCount

			c.logger.Debug("message handler failed, requeueing",
				zap.String("queue", queue), zap.Int("attempt", retryCount), zap.Error(err))

			select {
			case <-ctx.Done():
				// Leave the message unacked; the broker redelivers it.
				return ctx.Err()
			case <-time.After(retryDelay):
			}

			pubErr := c.ch.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
				ContentType: msg.ContentType,
				Body:        msg.Body,
				Headers:     headers,
				Timestamp:   time.Now(),
			})
			if pubErr != nil {
				c.logger.Error("message republish failed, dead-lettering",
					zap.String("queue", queue), zap.Error(pubErr))
				if nackErr := msg.Nack(false, false); nackErr != nil {
					c.logger.Warn("message nack failed",
						zap.String("queue", queue), zap.Error(nackErr))
				}
				continue
			}
			if ackErr := msg.Ack(false); ackErr != nil {
				c.logger.Warn("message ack failed",
					zap.String("queue", queue), zap.Error(ackErr))
			}
		}
	}
}

func getRetryCount(headers amqp.Table) int {
	if headers == nil {
		return 0
	}
	if v, ok := headers["x-retry-count"]; ok {
		switch t := v.(type) {
		case int32:
			return int(t)
		case int64:
			return int(t)
		case int:
			return t
		}
	}
	return 0
}
