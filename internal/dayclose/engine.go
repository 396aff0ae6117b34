package dayclose

import (
	"context"
	"fmt"
	"strings"
	"time"

	"mesa-table-service/internal/apperr"
	"mesa-table-service/internal/billing"
	"mesa-table-service/internal/messaging"
	"mesa-table-service/internal/utils"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const StatusClosed = "CLOSED"

type CashierInfo struct {
	Name  string `json:"name"`
	Shift string `json:"shift"`
	Notes string `json:"notes"`
}

type ItemCount struct {
	ItemID   int64  `json:"itemId"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// DayReport is the immutable end-of-shift snapshot. Closing twice in one
// tenant-day appends a second report (two shifts may close the same calendar
// day); reports are never updated after creation.
type DayReport struct {
	ID               int64       `json:"id"`
	TenantID         int64       `json:"tenantId"`
	Date             string      `json:"date"`
	Cashier          CashierInfo `json:"cashier"`
	TotalOrders      int         `json:"totalOrders"`
	TotalRevenue     float64     `json:"totalRevenue"`
	TotalPayments    int         `json:"totalPayments"`
	TotalWaiterCalls int         `json:"totalWaiterCalls"`
	MostOrderedItems []ItemCount `json:"mostOrderedItems"`
	MostActiveTable  string      `json:"mostActiveTable"`
	Status           string      `json:"status"`
	CreatedAt        time.Time   `json:"createdAt"`
}

// Engine folds a tenant's business day into a DayReport. Active table bills
// are deliberately left alone: an unpaid table carries its bill into the next
// day.
type Engine struct {
	DB        *pgxpool.Pool
	Messenger messaging.Messenger
	Logger    *zap.Logger
}

type closedOrder struct {
	TableNumber   string
	Items         []billing.LineItem
	TotalAmount   float64
	PaymentStatus string
}

func (e *Engine) CloseDay(ctx context.Context, tenantID int64, cashier CashierInfo) (*DayReport, *apperr.Error) {
	if appErr := validateCashier(cashier); appErr != nil {
		return nil, appErr
	}

	var (
		timezone       string
		adminChannelID string
	)
	err := e.DB.QueryRow(ctx, `select timezone, admin_channel_id from tenants where id = $1`, tenantID).Scan(&timezone, &adminChannelID)
	if err != nil {
		return nil, apperr.Dependency("Failed to load tenant", err)
	}

	date := utils.CurrentDateInTimezone(timezone)

	dayOrders, appErr := e.loadDayOrders(ctx, tenantID, timezone, date)
	if appErr != nil {
		return nil, appErr
	}

	report := &DayReport{
		TenantID: tenantID,
		Date:     date,
		Cashier:  cashier,
		Status:   StatusClosed,
	}
	report.TotalOrders, report.TotalRevenue, report.TotalPayments, report.MostOrderedItems, report.MostActiveTable = aggregateOrders(dayOrders)

	err = e.DB.QueryRow(ctx, `
		select count(*) from waiter_calls
		where tenant_id = $1 and timezone($2, created_at)::date = $3::date
	`, tenantID, timezone, date).Scan(&report.TotalWaiterCalls)
	if err != nil {
		return nil, apperr.Dependency("Failed to count waiter calls", err)
	}

	err = e.DB.QueryRow(ctx, `
		insert into day_reports (
			tenant_id, report_date, cashier_name, cashier_shift, cashier_notes,
			total_orders, total_revenue, total_payments, total_waiter_calls,
			most_ordered_items, most_active_table, status
		) values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 'CLOSED')
		returning id, created_at
	`, tenantID, date, cashier.Name, cashier.Shift, cashier.Notes,
		report.TotalOrders, report.TotalRevenue, report.TotalPayments, report.TotalWaiterCalls,
		report.MostOrderedItems, report.MostActiveTable).Scan(&report.ID, &report.CreatedAt)
	if err != nil {
		return nil, apperr.Dependency("Failed to store day report", err)
	}

	if sendErr := e.Messenger.SendMessage(ctx, adminChannelID, buildSummary(report), nil); sendErr != nil {
		e.Logger.Error("day report summary notification failed",
			zap.Int64("reportId", report.ID), zap.Error(sendErr))
	}

	return report, nil
}

func validateCashier(cashier CashierInfo) *apperr.Error {
	if strings.TrimSpace(cashier.Name) == "" {
		return apperr.Validation("Cashier name is required", nil)
	}
	return nil
}

func (e *Engine) loadDayOrders(ctx context.Context, tenantID int64, timezone string, date string) ([]closedOrder, *apperr.Error) {
	rows, err := e.DB.Query(ctx, `
		select table_number, items, total_amount, payment_status
		from orders
		where tenant_id = $1 and timezone($2, placed_at)::date = $3::date
	`, tenantID, timezone, date)
	if err != nil {
		return nil, apperr.Dependency("Failed to load day orders", err)
	}
	defer rows.Close()

	out := make([]closedOrder, 0)
	for rows.Next() {
		var (
			order closedOrder
			total pgtype.Numeric
		)
		if err := rows.Scan(&order.TableNumber, &order.Items, &total, &order.PaymentStatus); err != nil {
			return nil, apperr.Dependency("Failed to load day orders", err)
		}
		order.TotalAmount = utils.NumericToFloat64(total)
		out = append(out, order)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Dependency("Failed to load day orders", err)
	}
	return out, nil
}

func buildSummary(report *DayReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Day closed %s by %s", report.Date, report.Cashier.Name)
	if report.Cashier.Shift != "" {
		fmt.Fprintf(&b, " (%s)", report.Cashier.Shift)
	}
	fmt.Fprintf(&b, "\nOrders: %d\nRevenue: %.2f\nPaid orders: %d\nWaiter calls: %d",
		report.TotalOrders, report.TotalRevenue, report.TotalPayments, report.TotalWaiterCalls)
	if report.MostActiveTable != "" {
		fmt.Fprintf(&b, "\nBusiest table: %s", report.MostActiveTable)
	}
	for i, item := range report.MostOrderedItems {
		if i == 0 {
			b.WriteString("\nTop items:")
		}
		fmt.Fprintf(&b, "\n%d. %s x%d", i+1, item.Name, item.Quantity)
	}
	return b.String()
}
