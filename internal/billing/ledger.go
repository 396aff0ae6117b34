package billing

import (
	"context"
	"fmt"

	"mesa-table-service/internal/apperr"
	"mesa-table-service/internal/locks"
	"mesa-table-service/internal/utils"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Ledger owns all mutation of table bills. Merge-or-create is a
// read-modify-write on a single shared row, so every mutation for one
// (tenant, table) pair must hold that table's lock; concurrent approvals
// otherwise read the same bill state and one order's items are silently lost.
// The row is additionally selected FOR UPDATE so a second process cannot
// interleave either.
type Ledger struct {
	DB             *pgxpool.Pool
	Logger         *zap.Logger
	DefaultTaxRate float64

	tableLocks *locks.Keyed
}

func NewLedger(db *pgxpool.Pool, logger *zap.Logger, defaultTaxRate float64) *Ledger {
	return &Ledger{
		DB:             db,
		Logger:         logger,
		DefaultTaxRate: defaultTaxRate,
		tableLocks:     locks.NewKeyed(),
	}
}

type dbtx interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// LockTable serializes bill mutation for one table. Callers that run their
// own transaction around MergeOrCreateTx / MarkPaidTx must hold this for the
// whole transaction.
func (l *Ledger) LockTable(tenantID int64, tableNumber string) (unlock func()) {
	return l.tableLocks.Lock(fmt.Sprintf("%d/%s", tenantID, tableNumber))
}

func (l *Ledger) MergeOrCreate(ctx context.Context, tenantID int64, tableNumber string, newItems []LineItem) (*TableBill, *apperr.Error) {
	unlock := l.LockTable(tenantID, tableNumber)
	defer unlock()

	var bill *TableBill
	appErr := l.withTx(ctx, func(ctx context.Context, tx dbtx) *apperr.Error {
		merged, err := l.MergeOrCreateTx(ctx, tx, tenantID, tableNumber, newItems)
		if err != nil {
			return err
		}
		bill = merged
		return nil
	})
	if appErr != nil {
		return nil, appErr
	}
	return bill, nil
}

// MergeOrCreateTx merges newItems into the table's active bill, creating one
// when the table has none. The caller owns the transaction and must hold the
// table lock.
func (l *Ledger) MergeOrCreateTx(ctx context.Context, tx dbtx, tenantID int64, tableNumber string, newItems []LineItem) (*TableBill, *apperr.Error) {
	if field, ok := validateItems(newItems); !ok {
		return nil, apperr.Validation("Invalid bill items", map[string]any{"field": field})
	}

	taxRate, appErr := l.taxRateTx(ctx, tx, tenantID)
	if appErr != nil {
		return nil, appErr
	}

	bill := &TableBill{
		TenantID:    tenantID,
		TableNumber: tableNumber,
		Status:      StatusActive,
	}

	var (
		subtotal pgtype.Numeric
		tax      pgtype.Numeric
		total    pgtype.Numeric
	)
	err := tx.QueryRow(ctx, `
		select id, items, subtotal, tax_amount, total_amount, created_at, updated_at
		from table_bills
		where tenant_id = $1 and table_number = $2 and status = 'ACTIVE'
		for update
	`, tenantID, tableNumber).Scan(&bill.ID, &bill.Items, &subtotal, &tax, &total, &bill.CreatedAt, &bill.UpdatedAt)

	switch {
	case err == pgx.ErrNoRows:
		bill.Items = mergeLineItems(nil, newItems)
	case err != nil:
		return nil, apperr.Dependency("Failed to load table bill", err)
	default:
		bill.Items = mergeLineItems(bill.Items, newItems)
	}

	bill.Subtotal, bill.TaxAmount, bill.TotalAmount = computeTotals(bill.Items, taxRate)

	if bill.ID == 0 {
		insertErr := tx.QueryRow(ctx, `
			insert into table_bills (tenant_id, table_number, items, subtotal, tax_amount, total_amount, status)
			values ($1, $2, $3, $4, $5, $6, 'ACTIVE')
			returning id, created_at, updated_at
		`, tenantID, tableNumber, bill.Items, bill.Subtotal, bill.TaxAmount, bill.TotalAmount).Scan(&bill.ID, &bill.CreatedAt, &bill.UpdatedAt)
		if insertErr != nil {
			return nil, apperr.Dependency("Failed to create table bill", insertErr)
		}
		return bill, nil
	}

	if _, updateErr := tx.Exec(ctx, `
		update table_bills
		set items = $1, subtotal = $2, tax_amount = $3, total_amount = $4, updated_at = now()
		where id = $5
	`, bill.Items, bill.Subtotal, bill.TaxAmount, bill.TotalAmount, bill.ID); updateErr != nil {
		return nil, apperr.Dependency("Failed to update table bill", updateErr)
	}

	return bill, nil
}

// MarkPaid transitions the table's active bill to PAID. A table with no
// active bill is a no-op, not an error; double settlement races end up here.
func (l *Ledger) MarkPaid(ctx context.Context, tenantID int64, tableNumber string, confirmationID *int64) *apperr.Error {
	unlock := l.LockTable(tenantID, tableNumber)
	defer unlock()

	return l.withTx(ctx, func(ctx context.Context, tx dbtx) *apperr.Error {
		return l.MarkPaidTx(ctx, tx, tenantID, tableNumber, confirmationID)
	})
}

func (l *Ledger) MarkPaidTx(ctx context.Context, tx dbtx, tenantID int64, tableNumber string, confirmationID *int64) *apperr.Error {
	tag, err := tx.Exec(ctx, `
		update table_bills
		set status = 'PAID', payment_confirmation_id = $3, updated_at = now()
		where tenant_id = $1 and table_number = $2 and status = 'ACTIVE'
	`, tenantID, tableNumber, confirmationID)
	if err != nil {
		return apperr.Dependency("Failed to mark bill paid", err)
	}
	if tag.RowsAffected() == 0 {
		l.Logger.Debug("mark paid on table without active bill",
			zap.Int64("tenantId", tenantID),
			zap.String("tableNumber", tableNumber))
	}
	return nil
}

func (l *Ledger) Active(ctx context.Context, tenantID int64, tableNumber string) (*TableBill, *apperr.Error) {
	return l.active(ctx, l.DB, tenantID, tableNumber, false)
}

// ActiveForUpdateTx loads the active bill with a row lock held for the rest
// of the caller's transaction.
func (l *Ledger) ActiveForUpdateTx(ctx context.Context, tx dbtx, tenantID int64, tableNumber string) (*TableBill, *apperr.Error) {
	return l.active(ctx, tx, tenantID, tableNumber, true)
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (l *Ledger) active(ctx context.Context, q rowQuerier, tenantID int64, tableNumber string, forUpdate bool) (*TableBill, *apperr.Error) {
	query := `
		select id, items, subtotal, tax_amount, total_amount, created_at, updated_at
		from table_bills
		where tenant_id = $1 and table_number = $2 and status = 'ACTIVE'
	`
	if forUpdate {
		query += " for update"
	}

	bill := &TableBill{
		TenantID:    tenantID,
		TableNumber: tableNumber,
		Status:      StatusActive,
	}
	var (
		subtotal pgtype.Numeric
		tax      pgtype.Numeric
		total    pgtype.Numeric
	)
	err := q.QueryRow(ctx, query, tenantID, tableNumber).Scan(&bill.ID, &bill.Items, &subtotal, &tax, &total, &bill.CreatedAt, &bill.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, apperr.NotFound("No active bill for this table")
	}
	if err != nil {
		return nil, apperr.Dependency("Failed to load table bill", err)
	}

	bill.Subtotal = utils.NumericToFloat64(subtotal)
	bill.TaxAmount = utils.NumericToFloat64(tax)
	bill.TotalAmount = utils.NumericToFloat64(total)
	return bill, nil
}

func (l *Ledger) taxRateTx(ctx context.Context, tx dbtx, tenantID int64) (float64, *apperr.Error) {
	var rate pgtype.Numeric
	err := tx.QueryRow(ctx, `select tax_rate from tenants where id = $1`, tenantID).Scan(&rate)
	if err == pgx.ErrNoRows || (err == nil && !rate.Valid) {
		return l.DefaultTaxRate, nil
	}
	if err != nil {
		return 0, apperr.Dependency("Failed to load tenant tax rate", err)
	}
	return utils.NumericToFloat64(rate), nil
}

func (l *Ledger) withTx(ctx context.Context, fn func(ctx context.Context, tx dbtx) *apperr.Error) *apperr.Error {
	tx, err := l.DB.Begin(ctx)
	if err != nil {
		return apperr.Dependency("Failed to open transaction", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if appErr := fn(ctx, tx); appErr != nil {
		return appErr
	}

	if err := tx.Commit(ctx); err != nil {
		return apperr.Dependency("Failed to commit transaction", err)
	}
	return nil
}
