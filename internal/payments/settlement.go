package payments

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"mesa-table-service/internal/apperr"
	"mesa-table-service/internal/billing"
	"mesa-table-service/internal/dispatch"
	"mesa-table-service/internal/messaging"
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

// Settlement matches payment proofs to the table's active bill. Approval
// marks the bill paid and archives its snapshot in one transaction; the
// stored confirmation total is re-checked against the bill's current total
// first, since the bill may have grown between proof submission and cashier
// approval.
type Settlement struct {
	DB        dbconn
	Ledger    *billing.Ledger
	Messenger messaging.Messenger
	Logger    *zap.Logger
}

// SubmitProof records a customer's payment claim for the table's active bill
// and pings the cashier channel to resolve it.
func (s *Settlement) SubmitProof(ctx context.Context, tenantID int64, tableNumber string, method string) (*PaymentConfirmation, *apperr.Error) {
	method = strings.TrimSpace(method)
	if method == "" {
		return nil, apperr.Validation("Payment method is required", nil)
	}

	bill, appErr := s.Ledger.Active(ctx, tenantID, tableNumber)
	if appErr != nil {
		return nil, appErr
	}

	confirmation := &PaymentConfirmation{
		TenantID:    tenantID,
		TableNumber: tableNumber,
		Method:      method,
		Total:       bill.TotalAmount,
		Status:      ConfirmationPending,
	}
	err := s.DB.QueryRow(ctx, `
		insert into payment_confirmations (tenant_id, table_number, method, total, status)
		values ($1, $2, $3, $4, 'PENDING')
		returning id, created_at
	`, tenantID, tableNumber, method, confirmation.Total).Scan(&confirmation.ID, &confirmation.CreatedAt)
	if err != nil {
		return nil, apperr.Dependency("Failed to store payment confirmation", err)
	}

	s.notifyCashier(ctx, confirmation)
	return confirmation, nil
}

// Resolve sets the confirmation's terminal status. The transition is one-way:
// a second resolve finds no pending row and fails with NOT_FOUND. tenantScope
// pins the lookup to the caller's tenant; bot callbacks pass 0 (they are
// channel-authenticated upstream).
func (s *Settlement) Resolve(ctx context.Context, tenantScope int64, confirmationID int64, decision string) *apperr.Error {
	if decision != DecisionApproved && decision != DecisionRejected {
		return apperr.Validation("Invalid decision", map[string]any{"decision": decision})
	}

	// Peek tenant/table so the table lock is held before the transaction.
	var (
		tenantID    int64
		tableNumber string
	)
	err := s.DB.QueryRow(ctx, `
		select tenant_id, table_number from payment_confirmations
		where id = $1 and status = 'PENDING'
	`, confirmationID).Scan(&tenantID, &tableNumber)
	if err == pgx.ErrNoRows {
		return apperr.NotFound("Payment confirmation not found or already processed")
	}
	if err != nil {
		return apperr.Dependency("Failed to load payment confirmation", err)
	}
	if tenantScope != 0 && tenantScope != tenantID {
		return apperr.NotFound("Payment confirmation not found or already processed")
	}

	if decision == DecisionRejected {
		tag, err := s.DB.Exec(ctx, `
			update payment_confirmations
			set status = 'REJECTED', processed_at = now()
			where id = $1 and status = 'PENDING'
		`, confirmationID)
		if err != nil {
			return apperr.Dependency("Failed to reject payment confirmation", err)
		}
		if tag.RowsAffected() == 0 {
			return apperr.NotFound("Payment confirmation not found or already processed")
		}
		return nil
	}

	unlock := s.Ledger.LockTable(tenantID, tableNumber)
	defer unlock()

	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return apperr.Dependency("Failed to open transaction", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var storedTotal pgtype.Numeric
	err = tx.QueryRow(ctx, `
		select total from payment_confirmations
		where id = $1 and status = 'PENDING'
		for update
	`, confirmationID).Scan(&storedTotal)
	if err == pgx.ErrNoRows {
		return apperr.NotFound("Payment confirmation not found or already processed")
	}
	if err != nil {
		return apperr.Dependency("Failed to load payment confirmation", err)
	}

	bill, appErr := s.Ledger.ActiveForUpdateTx(ctx, tx, tenantID, tableNumber)
	if appErr != nil {
		return appErr
	}

	confirmedTotal := utils.NumericToFloat64(storedTotal)
	if !totalsMatch(confirmedTotal, bill.TotalAmount) {
		// The bill changed since the proof was submitted (another order was
		// approved for the table). The customer has to resubmit against the
		// current total.
		return apperr.Validation("Bill total changed since confirmation", map[string]any{
			"confirmationTotal": confirmedTotal,
			"billTotal":         bill.TotalAmount,
		})
	}

	if _, err := tx.Exec(ctx, `
		update payment_confirmations
		set status = 'APPROVED', processed_at = now()
		where id = $1
	`, confirmationID); err != nil {
		return apperr.Dependency("Failed to approve payment confirmation", err)
	}

	if appErr := s.Ledger.MarkPaidTx(ctx, tx, tenantID, tableNumber, &confirmationID); appErr != nil {
		return appErr
	}

	if _, err := tx.Exec(ctx, `
		insert into bills (tenant_id, table_number, items, subtotal, tax_amount, total_amount, source_bill_id, paid_at)
		values ($1, $2, $3, $4, $5, $6, $7, now())
	`, tenantID, tableNumber, bill.Items, bill.Subtotal, bill.TaxAmount, bill.TotalAmount, bill.ID); err != nil {
		return apperr.Dependency("Failed to archive bill", err)
	}

	if _, err := tx.Exec(ctx, `
		update orders set payment_status = 'PAID', updated_at = now()
		where tenant_id = $1 and table_number = $2 and payment_status = 'PENDING'
	`, tenantID, tableNumber); err != nil {
		return apperr.Dependency("Failed to mark orders paid", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return apperr.Dependency("Failed to commit settlement", err)
	}
	return nil
}

// totalsMatch compares money values to the cent.
func totalsMatch(a, b float64) bool {
	return utils.RoundCurrency(a) == utils.RoundCurrency(b)
}

func (s *Settlement) notifyCashier(ctx context.Context, confirmation *PaymentConfirmation) {
	var channelID string
	if err := s.DB.QueryRow(ctx, `select cashier_channel_id from tenants where id = $1`, confirmation.TenantID).Scan(&channelID); err != nil {
		s.Logger.Error("payment confirmation cashier lookup failed",
			zap.Int64("confirmationId", confirmation.ID), zap.Error(err))
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Payment claim - table %s\n", confirmation.TableNumber)
	fmt.Fprintf(&b, "Method: %s\n", confirmation.Method)
	fmt.Fprintf(&b, "Amount: %.2f", confirmation.Total)

	id := strconv.FormatInt(confirmation.ID, 10)
	buttons := []messaging.Button{
		{Text: "Approve", Command: dispatch.Command{Verb: dispatch.VerbApprove, Entity: dispatch.EntityPayment, ID: id}.Encode()},
		{Text: "Reject", Command: dispatch.Command{Verb: dispatch.VerbReject, Entity: dispatch.EntityPayment, ID: id}.Encode()},
	}

	if err := s.Messenger.SendMessage(ctx, channelID, b.String(), buttons); err != nil {
		s.Logger.Error("payment confirmation notification failed",
			zap.Int64("confirmationId", confirmation.ID), zap.Error(err))
	}
}
