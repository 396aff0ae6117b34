package queue

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	// Domain events (topic). Order status changes fan out here for any
	// downstream consumer (analytics, delivery-platform sync, ...).
	EventsExchange = "mesa.events"

	// Inbound bot callbacks: button clicks collected by the bot transport
	// are pushed onto this queue and drained by the callback worker.
	CallbacksExchange = "mesa.callbacks"
	CallbacksQueue    = "mesa.callbacks.process"
	CallbacksDLQ      = "mesa.callbacks.dlq"
	CallbacksRK       = "process"
	CallbacksDeadRK   = "dead"

	// Outbound human-readable messages for the bot transport to deliver.
	OutboundExchange = "mesa.outbound"
	OutboundQueue    = "mesa.outbound.send"
	OutboundDLQ      = "mesa.outbound.dlq"
	OutboundRK       = "send"
	OutboundDeadRK   = "dead"
)

func EnsureCallbackTopology(ctx context.Context, qc *Client) error {
	if qc == nil {
		return nil
	}
	return ensureDirectWithDLQ(qc, CallbacksExchange, CallbacksQueue, CallbacksDLQ, CallbacksRK, CallbacksDeadRK)
}

func EnsureOutboundTopology(ctx context.Context, qc *Client) error {
	if qc == nil {
		return nil
	}
	return ensureDirectWithDLQ(qc, OutboundExchange, OutboundQueue, OutboundDLQ, OutboundRK, OutboundDeadRK)
}

func ensureDirectWithDLQ(qc *Client, exchange, queue, dlq, rk, deadRK string) error {
	if err := qc.EnsureExchangeKind(exchange, "direct"); err != nil {
		return err
	}

	if _, err := qc.EnsureQueue(dlq); err != nil {
		return err
	}
	if err := qc.BindQueue(dlq, exchange, deadRK); err != nil {
		return err
	}

	_, err := qc.EnsureQueueWithArgs(queue, amqp.Table{
		"x-dead-letter-exchange":    exchange,
		"x-dead-letter-routing-key": deadRK,
	})
	if err != nil {
		return err
	}
	return qc.BindQueue(queue, exchange, rk)
}
