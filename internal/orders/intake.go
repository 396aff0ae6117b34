package orders

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"mesa-table-service/internal/apperr"
	"mesa-table-service/internal/billing"
	"mesa-table-service/internal/catalog"
	"mesa-table-service/internal/dispatch"
	"mesa-table-service/internal/messaging"
	"mesa-table-service/internal/utils"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type CartItem struct {
	ItemID   int64 `json:"itemId"`
	Quantity int   `json:"quantity"`
}

// Intake validates a customer's raw cart against the menu and stores it as a
// PendingOrder for staff to approve. Prices come from the catalog, never from
// the client.
type Intake struct {
	DB        *pgxpool.Pool
	Catalog   *catalog.Catalog
	Messenger messaging.Messenger
	Logger    *zap.Logger
}

func (s *Intake) Submit(ctx context.Context, tenantID int64, tableNumber string, cart []CartItem) (*PendingOrder, *apperr.Error) {
	tableNumber = strings.TrimSpace(tableNumber)
	if tableNumber == "" {
		return nil, apperr.Validation("Table number is required", nil)
	}
	if len(cart) == 0 {
		return nil, apperr.Validation("Cart is empty", nil)
	}

	itemIDs := make([]int64, 0, len(cart))
	for _, entry := range cart {
		if entry.Quantity <= 0 {
			return nil, apperr.Validation("Item quantity must be positive", map[string]any{"itemId": entry.ItemID})
		}
		itemIDs = append(itemIDs, entry.ItemID)
	}

	menuItems, appErr := s.Catalog.Items(ctx, tenantID, itemIDs)
	if appErr != nil {
		return nil, appErr
	}

	pending := &PendingOrder{
		TenantID:    tenantID,
		TableNumber: tableNumber,
		Items:       make([]billing.LineItem, 0, len(cart)),
	}
	for _, entry := range cart {
		menuItem, ok := menuItems[entry.ItemID]
		if !ok {
			return nil, apperr.Validation("Unknown menu item", map[string]any{"itemId": entry.ItemID})
		}
		line := billing.LineItem{
			ItemID:    menuItem.ID,
			Name:      menuItem.Name,
			Quantity:  entry.Quantity,
			UnitPrice: menuItem.Price,
			Total:     utils.RoundCurrency(float64(entry.Quantity) * menuItem.Price),
		}
		pending.Items = append(pending.Items, line)
		pending.TotalAmount += line.Total
	}
	pending.TotalAmount = utils.RoundCurrency(pending.TotalAmount)

	err := s.DB.QueryRow(ctx, `
		insert into pending_orders (tenant_id, table_number, items, total_amount)
		values ($1, $2, $3, $4)
		returning id, created_at
	`, tenantID, tableNumber, pending.Items, pending.TotalAmount).Scan(&pending.ID, &pending.CreatedAt)
	if err != nil {
		return nil, apperr.Dependency("Failed to store pending order", err)
	}

	s.notifyStaff(ctx, pending)
	return pending, nil
}

func (s *Intake) Pending(ctx context.Context, tenantID int64) ([]PendingOrder, *apperr.Error) {
	rows, err := s.DB.Query(ctx, `
		select id, tenant_id, table_number, items, total_amount, created_at
		from pending_orders
		where tenant_id = $1
		order by created_at
	`, tenantID)
	if err != nil {
		return nil, apperr.Dependency("Failed to load pending orders", err)
	}
	defer rows.Close()

	out := make([]PendingOrder, 0)
	for rows.Next() {
		var pending PendingOrder
		if err := scanPendingOrder(rows, &pending); err != nil {
			return nil, apperr.Dependency("Failed to load pending orders", err)
		}
		out = append(out, pending)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Dependency("Failed to load pending orders", err)
	}
	return out, nil
}

func scanPendingOrder(row pgx.Row, pending *PendingOrder) error {
	var total pgtype.Numeric
	if err := row.Scan(&pending.ID, &pending.TenantID, &pending.TableNumber, &pending.Items, &total, &pending.CreatedAt); err != nil {
		return err
	}
	pending.TotalAmount = utils.NumericToFloat64(total)
	return nil
}

// Staff approval happens either on the dashboard or straight from the bot
// message buttons; both resolve to the same coordinator operations.
func (s *Intake) notifyStaff(ctx context.Context, pending *PendingOrder) {
	var channelID string
	if err := s.DB.QueryRow(ctx, `select staff_channel_id from tenants where id = $1`, pending.TenantID).Scan(&channelID); err != nil {
		s.Logger.Error("pending order staff lookup failed",
			zap.Int64("pendingOrderId", pending.ID), zap.Error(err))
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "New order request - table %s\n", pending.TableNumber)
	for _, item := range pending.Items {
		fmt.Fprintf(&b, "• %dx %s\n", item.Quantity, item.Name)
	}
	fmt.Fprintf(&b, "Total: %.2f", pending.TotalAmount)

	id := strconv.FormatInt(pending.ID, 10)
	buttons := []messaging.Button{
		{Text: "Approve", Command: dispatch.Command{Verb: dispatch.VerbApprove, Entity: dispatch.EntityOrder, ID: id}.Encode()},
		{Text: "Reject", Command: dispatch.Command{Verb: dispatch.VerbReject, Entity: dispatch.EntityOrder, ID: id}.Encode()},
	}

	if err := s.Messenger.SendMessage(ctx, channelID, b.String(), buttons); err != nil {
		s.Logger.Error("pending order notification failed",
			zap.Int64("pendingOrderId", pending.ID), zap.Error(err))
	}
}
