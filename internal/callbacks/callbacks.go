package callbacks

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"mesa-table-service/internal/apperr"
	"mesa-table-service/internal/dispatch"
	"mesa-table-service/internal/orders"
	"mesa-table-service/internal/payments"

	"go.uber.org/zap"
)

// Dispatcher turns inbound bot button clicks into core operations. Malformed
// payloads and NOT_FOUND results are acked and dropped (double clicks are
// routine); only dependency failures are surfaced so the queue retries them.
type Dispatcher struct {
	Coordinator *orders.Coordinator
	Settlement  *payments.Settlement
	Logger      *zap.Logger
}

type inboundCallback struct {
	Command   string `json:"command"`
	ChannelID string `json:"channelId"`
}

func (d *Dispatcher) Handle(ctx context.Context, body []byte) error {
	var callback inboundCallback
	if err := json.Unmarshal(body, &callback); err != nil {
		d.Logger.Warn("callback payload unreadable", zap.Error(err))
		return nil
	}

	cmd, ok := dispatch.ParseCommand(callback.Command)
	if !ok {
		d.Logger.Warn("callback command unreadable", zap.String("command", callback.Command))
		return nil
	}

	// Bot clicks are authenticated by channel upstream, so the tenant scope
	// passed to the core operations is 0 (unscoped).
	switch {
	case cmd.Verb == dispatch.VerbApprove && cmd.Entity == dispatch.EntityOrder:
		id, err := parseID(cmd.ID)
		if err != nil {
			return d.drop(cmd, err)
		}
		_, appErr := d.Coordinator.Approve(ctx, 0, id)
		return d.finish(cmd, appErr)

	case cmd.Verb == dispatch.VerbReject && cmd.Entity == dispatch.EntityOrder:
		id, err := parseID(cmd.ID)
		if err != nil {
			return d.drop(cmd, err)
		}
		return d.finish(cmd, d.Coordinator.Reject(ctx, 0, id))

	case cmd.Verb == dispatch.VerbApprove && cmd.Entity == dispatch.EntityPayment:
		id, err := parseID(cmd.ID)
		if err != nil {
			return d.drop(cmd, err)
		}
		return d.finish(cmd, d.Settlement.Resolve(ctx, 0, id, payments.DecisionApproved))

	case cmd.Verb == dispatch.VerbReject && cmd.Entity == dispatch.EntityPayment:
		id, err := parseID(cmd.ID)
		if err != nil {
			return d.drop(cmd, err)
		}
		return d.finish(cmd, d.Settlement.Resolve(ctx, 0, id, payments.DecisionRejected))

	case cmd.Verb == dispatch.VerbReady:
		// ready_<departmentId>_<orderId>
		id, err := parseID(cmd.ID)
		if err != nil {
			return d.drop(cmd, err)
		}
		return d.finish(cmd, d.Coordinator.UpdateStatus(ctx, 0, id, orders.StatusReady))

	case cmd.Verb == dispatch.VerbDelivered:
		id, err := parseID(cmd.ID)
		if err != nil {
			return d.drop(cmd, err)
		}
		return d.finish(cmd, d.Coordinator.UpdateStatus(ctx, 0, id, orders.StatusDelivered))

	default:
		d.Logger.Warn("callback command unhandled",
			zap.String("verb", cmd.Verb), zap.String("entity", cmd.Entity))
		return nil
	}
}

func (d *Dispatcher) finish(cmd dispatch.Command, appErr *apperr.Error) error {
	if appErr == nil {
		return nil
	}
	switch appErr.Code {
	case apperr.CodeNotFound:
		// Already processed; double clicks land here.
		d.Logger.Debug("callback target already processed",
			zap.String("command", cmd.Encode()))
		return nil
	case apperr.CodeValidation:
		d.Logger.Warn("callback rejected",
			zap.String("command", cmd.Encode()), zap.String("reason", appErr.Message))
		return nil
	default:
		return errors.New(appErr.Message)
	}
}

func (d *Dispatcher) drop(cmd dispatch.Command, err error) error {
	d.Logger.Warn("callback id unreadable",
		zap.String("command", cmd.Encode()), zap.Error(err))
	return nil
}

func parseID(raw string) (int64, error) {
	return strconv.ParseInt(raw, 10, 64)
}
