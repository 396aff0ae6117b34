package orders

import (
	"context"
	"time"

	"mesa-table-service/internal/apperr"
	"mesa-table-service/internal/billing"
	"mesa-table-service/internal/dispatch"
	"mesa-table-service/internal/queue"
	"mesa-table-service/internal/utils"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"go.uber.org/zap"
)

type dbconn interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type dispatcher interface {
	Route(ctx context.Context, order dispatch.RoutedOrder)
}

// Coordinator drives the pending -> approved/rejected transition. Approve
// creates the confirmed Order, merges the bill and deletes the PendingOrder
// in one transaction under the table lock, so a crash never leaves an order
// that was billed but still pending (or the reverse). Department dispatch
// runs after commit and is fire-and-forget.
//
// Every operation takes the caller's tenant scope: a staff request passes its
// authenticated tenant id and cannot touch another tenant's rows. Bot
// callbacks are channel-authenticated upstream and pass 0, which skips the
// check.
type Coordinator struct {
	DB     dbconn
	Ledger *billing.Ledger
	Router dispatcher
	Queue  *queue.Client
	Logger *zap.Logger
}

func (c *Coordinator) Approve(ctx context.Context, tenantScope int64, pendingOrderID int64) (*Order, *apperr.Error) {
	// Peek tenant/table first so the table lock is held before the
	// transaction opens. Lock order is always lock -> tx.
	var (
		tenantID    int64
		tableNumber string
	)
	err := c.DB.QueryRow(ctx, `
		select tenant_id, table_number from pending_orders where id = $1
	`, pendingOrderID).Scan(&tenantID, &tableNumber)
	if err == pgx.ErrNoRows {
		return nil, apperr.NotFound("Pending order not found or already processed")
	}
	if err != nil {
		return nil, apperr.Dependency("Failed to load pending order", err)
	}
	if tenantScope != 0 && tenantScope != tenantID {
		return nil, apperr.NotFound("Pending order not found or already processed")
	}

	unlock := c.Ledger.LockTable(tenantID, tableNumber)
	defer unlock()

	tx, err := c.DB.Begin(ctx)
	if err != nil {
		return nil, apperr.Dependency("Failed to open transaction", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	pending := PendingOrder{ID: pendingOrderID}
	var pendingTotal pgtype.Numeric
	err = tx.QueryRow(ctx, `
		select tenant_id, table_number, items, total_amount, created_at
		from pending_orders
		where id = $1
		for update
	`, pendingOrderID).Scan(&pending.TenantID, &pending.TableNumber, &pending.Items, &pendingTotal, &pending.CreatedAt)
	if err == pgx.ErrNoRows {
		// Raced with another approval or a rejection. Expected under
		// double clicks, nothing to alarm on.
		return nil, apperr.NotFound("Pending order not found or already processed")
	}
	if err != nil {
		return nil, apperr.Dependency("Failed to load pending order", err)
	}
	pending.TotalAmount = utils.NumericToFloat64(pendingTotal)

	order := &Order{
		TenantID:      pending.TenantID,
		TableNumber:   pending.TableNumber,
		Items:         pending.Items,
		TotalAmount:   pending.TotalAmount,
		Status:        StatusConfirmed,
		PaymentStatus: PaymentPending,
	}
	err = tx.QueryRow(ctx, `
		insert into orders (tenant_id, table_number, items, total_amount, status, payment_status)
		values ($1, $2, $3, $4, 'CONFIRMED', 'PENDING')
		returning id, placed_at, updated_at
	`, order.TenantID, order.TableNumber, order.Items, order.TotalAmount).Scan(&order.ID, &order.PlacedAt, &order.UpdatedAt)
	if err != nil {
		return nil, apperr.Dependency("Failed to create order", err)
	}

	if _, appErr := c.Ledger.MergeOrCreateTx(ctx, tx, order.TenantID, order.TableNumber, order.Items); appErr != nil {
		return nil, appErr
	}

	if _, err := tx.Exec(ctx, `delete from pending_orders where id = $1`, pendingOrderID); err != nil {
		return nil, apperr.Dependency("Failed to consume pending order", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, apperr.Dependency("Failed to commit approval", err)
	}

	c.Router.Route(ctx, dispatch.RoutedOrder{
		ID:          order.ID,
		TenantID:    order.TenantID,
		TableNumber: order.TableNumber,
		Items:       order.Items,
	})
	c.publishStatusEvent(ctx, order.ID, order.TenantID, order.Status)

	return order, nil
}

func (c *Coordinator) Reject(ctx context.Context, tenantScope int64, pendingOrderID int64) *apperr.Error {
	tag, err := c.DB.Exec(ctx, `
		delete from pending_orders where id = $1 and ($2 = 0 or tenant_id = $2)
	`, pendingOrderID, tenantScope)
	if err != nil {
		return apperr.Dependency("Failed to reject pending order", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("Pending order not found or already processed")
	}
	return nil
}

var allowedStatuses = map[string]struct{}{
	StatusPreparing: {},
	StatusReady:     {},
	StatusDelivered: {},
	StatusCancelled: {},
}

// UpdateStatus moves a confirmed order through the kitchen lifecycle. Driven
// by department bot buttons and the staff dashboard.
func (c *Coordinator) UpdateStatus(ctx context.Context, tenantScope int64, orderID int64, status string) *apperr.Error {
	if _, ok := allowedStatuses[status]; !ok {
		return apperr.Validation("Invalid order status", map[string]any{"status": status})
	}

	var tenantID int64
	err := c.DB.QueryRow(ctx, `
		update orders set status = $2, updated_at = now()
		where id = $1 and ($3 = 0 or tenant_id = $3)
		returning tenant_id
	`, orderID, status, tenantScope).Scan(&tenantID)
	if err == pgx.ErrNoRows {
		return apperr.NotFound("Order not found")
	}
	if err != nil {
		return apperr.Dependency("Failed to update order status", err)
	}

	c.publishStatusEvent(ctx, orderID, tenantID, status)
	return nil
}

func (c *Coordinator) publishStatusEvent(ctx context.Context, orderID int64, tenantID int64, status string) {
	if c.Queue == nil {
		return
	}
	event := map[string]any{
		"type":      "order.status.updated",
		"orderId":   orderID,
		"tenantId":  tenantID,
		"status":    status,
		"updatedAt": time.Now().UTC().Format(time.RFC3339),
	}
	if err := c.Queue.PublishJSON(ctx, queue.EventsExchange, "order.status.updated", event); err != nil {
		c.Logger.Error("order status event publish failed",
			zap.Int64("orderId", orderID), zap.Error(err))
	}
}
