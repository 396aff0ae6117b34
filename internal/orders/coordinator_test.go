package orders

import (
	"context"
	"errors"
	"math"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"mesa-table-service/internal/apperr"
	"mesa-table-service/internal/billing"
	"mesa-table-service/internal/dispatch"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"go.uber.org/zap"
)

type fakeRow struct {
	scan func(dest ...any) error
}

func (r fakeRow) Scan(dest ...any) error { return r.scan(dest...) }

func cents(c int64) pgtype.Numeric {
	return pgtype.Numeric{Int: big.NewInt(c), Exp: -2, Valid: true}
}

// fakeApprovalStore holds pending orders, confirmed orders and at most one
// active bill in memory, and serves both the coordinator's queries and the
// ledger queries that run inside the approval transaction.
type fakeApprovalStore struct {
	mu       sync.Mutex
	taxRate  pgtype.Numeric
	pendings map[int64]PendingOrder
	orders   map[int64]*Order
	bill     *billing.TableBill
	nextID   int64
	begins   int
}

func newFakeApprovalStore() *fakeApprovalStore {
	return &fakeApprovalStore{
		taxRate:  cents(15),
		pendings: make(map[int64]PendingOrder),
		orders:   make(map[int64]*Order),
	}
}

func (s *fakeApprovalStore) Begin(context.Context) (pgx.Tx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.begins++
	return &fakeApprovalTx{store: s}, nil
}

func (s *fakeApprovalStore) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case strings.Contains(sql, "from pending_orders"):
		pending, ok := s.pendings[args[0].(int64)]
		if !ok {
			return fakeRow{scan: func(dest ...any) error { return pgx.ErrNoRows }}
		}
		return fakeRow{scan: func(dest ...any) error {
			*dest[0].(*int64) = pending.TenantID
			*dest[1].(*string) = pending.TableNumber
			return nil
		}}

	case strings.Contains(sql, "update orders set status"):
		order, ok := s.orders[args[0].(int64)]
		scope := args[2].(int64)
		if !ok || (scope != 0 && order.TenantID != scope) {
			return fakeRow{scan: func(dest ...any) error { return pgx.ErrNoRows }}
		}
		order.Status = args[1].(string)
		order.UpdatedAt = time.Now()
		tenantID := order.TenantID
		return fakeRow{scan: func(dest ...any) error {
			*dest[0].(*int64) = tenantID
			return nil
		}}

	default:
		return fakeRow{scan: func(dest ...any) error {
			return errors.New("unexpected query: " + sql)
		}}
	}
}

func (s *fakeApprovalStore) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.Contains(sql, "delete from pending_orders") {
		id := args[0].(int64)
		scope := args[1].(int64)
		pending, ok := s.pendings[id]
		if !ok || (scope != 0 && pending.TenantID != scope) {
			return pgconn.NewCommandTag("DELETE 0"), nil
		}
		delete(s.pendings, id)
		return pgconn.NewCommandTag("DELETE 1"), nil
	}
	return pgconn.CommandTag{}, errors.New("unexpected exec: " + sql)
}

// fakeApprovalTx applies mutations straight to the store. The approval tests
// exercise whole transactions, never a mid-transaction failure, so rollback
// has nothing to undo.
type fakeApprovalTx struct {
	pgx.Tx
	store *fakeApprovalStore
}

func (t *fakeApprovalTx) Commit(context.Context) error   { return nil }
func (t *fakeApprovalTx) Rollback(context.Context) error { return nil }

func (t *fakeApprovalTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case strings.Contains(sql, "from pending_orders"):
		pending, ok := s.pendings[args[0].(int64)]
		if !ok {
			return fakeRow{scan: func(dest ...any) error { return pgx.ErrNoRows }}
		}
		return fakeRow{scan: func(dest ...any) error {
			*dest[0].(*int64) = pending.TenantID
			*dest[1].(*string) = pending.TableNumber
			*dest[2].(*[]billing.LineItem) = append([]billing.LineItem(nil), pending.Items...)
			*dest[3].(*pgtype.Numeric) = cents(int64(math.Round(pending.TotalAmount * 100)))
			*dest[4].(*time.Time) = pending.CreatedAt
			return nil
		}}

	case strings.Contains(sql, "insert into orders"):
		s.nextID++
		now := time.Now()
		order := &Order{
			ID:            s.nextID,
			TenantID:      args[0].(int64),
			TableNumber:   args[1].(string),
			Items:         args[2].([]billing.LineItem),
			TotalAmount:   args[3].(float64),
			Status:        StatusConfirmed,
			PaymentStatus: PaymentPending,
			PlacedAt:      now,
			UpdatedAt:     now,
		}
		s.orders[order.ID] = order
		return fakeRow{scan: func(dest ...any) error {
			*dest[0].(*int64) = order.ID
			*dest[1].(*time.Time) = order.PlacedAt
			*dest[2].(*time.Time) = order.UpdatedAt
			return nil
		}}

	case strings.Contains(sql, "select tax_rate"):
		rate := s.taxRate
		return fakeRow{scan: func(dest ...any) error {
			*dest[0].(*pgtype.Numeric) = rate
			return nil
		}}

	case strings.Contains(sql, "insert into table_bills"):
		if s.bill != nil && s.bill.Status == billing.StatusActive {
			return fakeRow{scan: func(dest ...any) error {
				return errors.New(`duplicate key value violates unique constraint "table_bills_one_active"`)
			}}
		}
		s.nextID++
		now := time.Now()
		s.bill = &billing.TableBill{
			ID:          s.nextID,
			TenantID:    args[0].(int64),
			TableNumber: args[1].(string),
			Items:       args[2].([]billing.LineItem),
			Subtotal:    args[3].(float64),
			TaxAmount:   args[4].(float64),
			TotalAmount: args[5].(float64),
			Status:      billing.StatusActive,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		id := s.bill.ID
		return fakeRow{scan: func(dest ...any) error {
			*dest[0].(*int64) = id
			*dest[1].(*time.Time) = now
			*dest[2].(*time.Time) = now
			return nil
		}}

	case strings.Contains(sql, "from table_bills"):
		if s.bill == nil || s.bill.Status != billing.StatusActive {
			return fakeRow{scan: func(dest ...any) error { return pgx.ErrNoRows }}
		}
		bill := *s.bill
		items := append([]billing.LineItem(nil), bill.Items...)
		return fakeRow{scan: func(dest ...any) error {
			*dest[0].(*int64) = bill.ID
			*dest[1].(*[]billing.LineItem) = items
			*dest[2].(*pgtype.Numeric) = cents(int64(math.Round(bill.Subtotal * 100)))
			*dest[3].(*pgtype.Numeric) = cents(int64(math.Round(bill.TaxAmount * 100)))
			*dest[4].(*pgtype.Numeric) = cents(int64(math.Round(bill.TotalAmount * 100)))
			*dest[5].(*time.Time) = bill.CreatedAt
			*dest[6].(*time.Time) = bill.UpdatedAt
			return nil
		}}

	default:
		return fakeRow{scan: func(dest ...any) error {
			return errors.New("unexpected tx query: " + sql)
		}}
	}
}

func (t *fakeApprovalTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case strings.Contains(sql, "delete from pending_orders"):
		id := args[0].(int64)
		if _, ok := s.pendings[id]; !ok {
			return pgconn.NewCommandTag("DELETE 0"), nil
		}
		delete(s.pendings, id)
		return pgconn.NewCommandTag("DELETE 1"), nil

	case strings.Contains(sql, "update table_bills"):
		if s.bill == nil || s.bill.ID != args[4].(int64) {
			return pgconn.NewCommandTag("UPDATE 0"), nil
		}
		s.bill.Items = args[0].([]billing.LineItem)
		s.bill.Subtotal = args[1].(float64)
		s.bill.TaxAmount = args[2].(float64)
		s.bill.TotalAmount = args[3].(float64)
		return pgconn.NewCommandTag("UPDATE 1"), nil

	default:
		return pgconn.CommandTag{}, errors.New("unexpected tx exec: " + sql)
	}
}

type routeRecorder struct {
	mu     sync.Mutex
	routed []dispatch.RoutedOrder
}

func (r *routeRecorder) Route(_ context.Context, order dispatch.RoutedOrder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routed = append(r.routed, order)
}

func newTestCoordinator(store *fakeApprovalStore) (*Coordinator, *routeRecorder) {
	recorder := &routeRecorder{}
	return &Coordinator{
		DB:     store,
		Ledger: billing.NewLedger(nil, zap.NewNop(), 0.15),
		Router: recorder,
		Logger: zap.NewNop(),
	}, recorder
}

func seedPending(store *fakeApprovalStore, id int64, tenantID int64) {
	store.pendings[id] = PendingOrder{
		ID:          id,
		TenantID:    tenantID,
		TableNumber: "T3",
		Items: []billing.LineItem{
			{ItemID: 7, Name: "Pizza", Quantity: 1, UnitPrice: 12.00, Total: 12.00},
		},
		TotalAmount: 12.00,
		CreatedAt:   time.Now(),
	}
}

func TestApproveConsumesPendingOrderExactlyOnce(t *testing.T) {
	ctx := context.Background()
	store := newFakeApprovalStore()
	seedPending(store, 11, 7)
	coordinator, recorder := newTestCoordinator(store)

	order, appErr := coordinator.Approve(ctx, 7, 11)
	if appErr != nil {
		t.Fatalf("approve failed: %v", appErr)
	}
	if order.Status != StatusConfirmed || order.PaymentStatus != PaymentPending {
		t.Fatalf("unexpected order state: %+v", order)
	}
	if len(store.pendings) != 0 {
		t.Fatal("pending order was not consumed")
	}
	if store.bill == nil || store.bill.TotalAmount != 13.80 {
		t.Fatalf("expected bill total 13.80, got %+v", store.bill)
	}
	if len(recorder.routed) != 1 || recorder.routed[0].ID != order.ID {
		t.Fatalf("expected one dispatch for order %d, got %+v", order.ID, recorder.routed)
	}

	if _, appErr := coordinator.Approve(ctx, 7, 11); appErr == nil || appErr.Code != apperr.CodeNotFound {
		t.Fatalf("expected NOT_FOUND on second approve, got %v", appErr)
	}
	if len(store.orders) != 1 {
		t.Fatalf("second approve created another order: %d orders", len(store.orders))
	}
	if len(recorder.routed) != 1 {
		t.Fatalf("second approve dispatched again: %d routes", len(recorder.routed))
	}
	if store.begins != 1 {
		t.Fatalf("expected one transaction, got %d", store.begins)
	}
}

func TestApproveScopedToTenant(t *testing.T) {
	ctx := context.Background()
	store := newFakeApprovalStore()
	seedPending(store, 11, 7)
	coordinator, recorder := newTestCoordinator(store)

	if _, appErr := coordinator.Approve(ctx, 8, 11); appErr == nil || appErr.Code != apperr.CodeNotFound {
		t.Fatalf("expected NOT_FOUND for a foreign tenant, got %v", appErr)
	}
	if store.begins != 0 {
		t.Fatalf("foreign tenant opened a transaction: %d", store.begins)
	}
	if len(store.pendings) != 1 {
		t.Fatal("foreign tenant consumed the pending order")
	}
	if len(recorder.routed) != 0 {
		t.Fatal("foreign tenant triggered a dispatch")
	}

	// The owning tenant still can, and so can an unscoped bot callback.
	if _, appErr := coordinator.Approve(ctx, 7, 11); appErr != nil {
		t.Fatalf("owning tenant approve failed: %v", appErr)
	}
}

func TestApproveUnscopedCallback(t *testing.T) {
	ctx := context.Background()
	store := newFakeApprovalStore()
	seedPending(store, 11, 7)
	coordinator, _ := newTestCoordinator(store)

	if _, appErr := coordinator.Approve(ctx, 0, 11); appErr != nil {
		t.Fatalf("unscoped approve failed: %v", appErr)
	}
	if len(store.pendings) != 0 {
		t.Fatal("pending order was not consumed")
	}
}

func TestRejectScopedToTenant(t *testing.T) {
	ctx := context.Background()
	store := newFakeApprovalStore()
	seedPending(store, 11, 7)
	coordinator, _ := newTestCoordinator(store)

	if appErr := coordinator.Reject(ctx, 8, 11); appErr == nil || appErr.Code != apperr.CodeNotFound {
		t.Fatalf("expected NOT_FOUND for a foreign tenant, got %v", appErr)
	}
	if len(store.pendings) != 1 {
		t.Fatal("foreign tenant rejected the pending order")
	}

	if appErr := coordinator.Reject(ctx, 7, 11); appErr != nil {
		t.Fatalf("owning tenant reject failed: %v", appErr)
	}
	if appErr := coordinator.Reject(ctx, 7, 11); appErr == nil || appErr.Code != apperr.CodeNotFound {
		t.Fatalf("expected NOT_FOUND on second reject, got %v", appErr)
	}
}

func TestUpdateStatusScopedToTenant(t *testing.T) {
	ctx := context.Background()
	store := newFakeApprovalStore()
	store.orders[5] = &Order{ID: 5, TenantID: 7, Status: StatusConfirmed}
	coordinator, _ := newTestCoordinator(store)

	if appErr := coordinator.UpdateStatus(ctx, 8, 5, StatusReady); appErr == nil || appErr.Code != apperr.CodeNotFound {
		t.Fatalf("expected NOT_FOUND for a foreign tenant, got %v", appErr)
	}
	if store.orders[5].Status != StatusConfirmed {
		t.Fatalf("foreign tenant changed the status to %s", store.orders[5].Status)
	}

	if appErr := coordinator.UpdateStatus(ctx, 0, 5, StatusReady); appErr != nil {
		t.Fatalf("unscoped update failed: %v", appErr)
	}
	if store.orders[5].Status != StatusReady {
		t.Fatalf("expected READY, got %s", store.orders[5].Status)
	}

	if appErr := coordinator.UpdateStatus(ctx, 7, 5, StatusDelivered); appErr != nil {
		t.Fatalf("owning tenant update failed: %v", appErr)
	}
	if store.orders[5].Status != StatusDelivered {
		t.Fatalf("expected DELIVERED, got %s", store.orders[5].Status)
	}
}

func TestUpdateStatusRejectsUnknownStatus(t *testing.T) {
	store := newFakeApprovalStore()
	coordinator, _ := newTestCoordinator(store)

	appErr := coordinator.UpdateStatus(context.Background(), 7, 5, "BURNT")
	if appErr == nil || appErr.Code != apperr.CodeValidation {
		t.Fatalf("expected VALIDATION_ERROR, got %v", appErr)
	}
}
