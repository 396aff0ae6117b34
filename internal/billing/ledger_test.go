package billing

import (
	"context"
	"errors"
	"math"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

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

// fakeBillStore backs the ledger with an in-memory table that holds at most
// one active bill, the same shape the partial unique index enforces: a second
// active insert for the table fails.
type fakeBillStore struct {
	mu      sync.Mutex
	taxRate pgtype.Numeric
	active  *TableBill
	paid    []*TableBill
	nextID  int64
	inserts int
	updates int
}

func newFakeBillStore(taxCents int64) *fakeBillStore {
	return &fakeBillStore{taxRate: cents(taxCents)}
}

func (s *fakeBillStore) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case strings.Contains(sql, "select tax_rate"):
		rate := s.taxRate
		return fakeRow{scan: func(dest ...any) error {
			*dest[0].(*pgtype.Numeric) = rate
			return nil
		}}

	case strings.Contains(sql, "insert into table_bills"):
		if s.active != nil {
			return fakeRow{scan: func(dest ...any) error {
				return errors.New(`duplicate key value violates unique constraint "table_bills_one_active"`)
			}}
		}
		s.nextID++
		now := time.Now()
		s.active = &TableBill{
			ID:          s.nextID,
			TenantID:    args[0].(int64),
			TableNumber: args[1].(string),
			Items:       args[2].([]LineItem),
			Subtotal:    args[3].(float64),
			TaxAmount:   args[4].(float64),
			TotalAmount: args[5].(float64),
			Status:      StatusActive,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		s.inserts++
		id, created, updated := s.active.ID, s.active.CreatedAt, s.active.UpdatedAt
		return fakeRow{scan: func(dest ...any) error {
			*dest[0].(*int64) = id
			*dest[1].(*time.Time) = created
			*dest[2].(*time.Time) = updated
			return nil
		}}

	case strings.Contains(sql, "from table_bills"):
		if s.active == nil {
			return fakeRow{scan: func(dest ...any) error { return pgx.ErrNoRows }}
		}
		bill := *s.active
		items := append([]LineItem(nil), bill.Items...)
		return fakeRow{scan: func(dest ...any) error {
			*dest[0].(*int64) = bill.ID
			*dest[1].(*[]LineItem) = items
			*dest[2].(*pgtype.Numeric) = cents(int64(math.Round(bill.Subtotal * 100)))
			*dest[3].(*pgtype.Numeric) = cents(int64(math.Round(bill.TaxAmount * 100)))
			*dest[4].(*pgtype.Numeric) = cents(int64(math.Round(bill.TotalAmount * 100)))
			*dest[5].(*time.Time) = bill.CreatedAt
			*dest[6].(*time.Time) = bill.UpdatedAt
			return nil
		}}

	default:
		return fakeRow{scan: func(dest ...any) error {
			return errors.New("unexpected query: " + sql)
		}}
	}
}

func (s *fakeBillStore) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case strings.Contains(sql, "set items"):
		if s.active == nil || s.active.ID != args[4].(int64) {
			return pgconn.NewCommandTag("UPDATE 0"), nil
		}
		s.active.Items = args[0].([]LineItem)
		s.active.Subtotal = args[1].(float64)
		s.active.TaxAmount = args[2].(float64)
		s.active.TotalAmount = args[3].(float64)
		s.active.UpdatedAt = time.Now()
		s.updates++
		return pgconn.NewCommandTag("UPDATE 1"), nil

	case strings.Contains(sql, "set status = 'PAID'"):
		if s.active == nil {
			return pgconn.NewCommandTag("UPDATE 0"), nil
		}
		s.active.Status = StatusPaid
		s.paid = append(s.paid, s.active)
		s.active = nil
		return pgconn.NewCommandTag("UPDATE 1"), nil

	default:
		return pgconn.CommandTag{}, errors.New("unexpected exec: " + sql)
	}
}

func testLedger() *Ledger {
	return NewLedger(nil, zap.NewNop(), 0.15)
}

func TestMergeOrCreateTxCreatesThenMerges(t *testing.T) {
	ctx := context.Background()
	store := newFakeBillStore(15)
	ledger := testLedger()
	pizza := []LineItem{{ItemID: 7, Name: "Pizza", Quantity: 1, UnitPrice: 12.00, Total: 12.00}}

	first, appErr := ledger.MergeOrCreateTx(ctx, store, 1, "T1", pizza)
	if appErr != nil {
		t.Fatalf("first merge failed: %v", appErr)
	}
	if first.TotalAmount != 13.80 {
		t.Fatalf("expected first total 13.80, got %.2f", first.TotalAmount)
	}

	second, appErr := ledger.MergeOrCreateTx(ctx, store, 1, "T1", pizza)
	if appErr != nil {
		t.Fatalf("second merge failed: %v", appErr)
	}
	if second.ID != first.ID {
		t.Fatalf("second merge created a new bill: %d vs %d", second.ID, first.ID)
	}
	if second.TotalAmount != 27.60 {
		t.Fatalf("expected merged total 27.60, got %.2f", second.TotalAmount)
	}
	if len(second.Items) != 1 || second.Items[0].Quantity != 2 {
		t.Fatalf("expected pizza accumulated to qty 2, got %+v", second.Items)
	}
	if store.inserts != 1 {
		t.Fatalf("expected exactly one bill insert, got %d", store.inserts)
	}
}

func TestMergeOrCreateTxConcurrentApprovalsKeepOneActiveBill(t *testing.T) {
	ctx := context.Background()
	store := newFakeBillStore(15)
	ledger := testLedger()

	const callers = 8
	errs := make(chan error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := ledger.LockTable(1, "T1")
			defer unlock()
			item := []LineItem{{ItemID: 7, Name: "Pizza", Quantity: 1, UnitPrice: 12.00, Total: 12.00}}
			if _, appErr := ledger.MergeOrCreateTx(ctx, store, 1, "T1", item); appErr != nil {
				errs <- appErr
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent merge failed: %v", err)
	}

	if store.inserts != 1 {
		t.Fatalf("expected one active bill insert across %d approvals, got %d", callers, store.inserts)
	}
	if store.active == nil {
		t.Fatal("expected an active bill")
	}
	if store.active.Items[0].Quantity != callers {
		t.Fatalf("expected quantity %d, got %d", callers, store.active.Items[0].Quantity)
	}
	if store.active.TotalAmount != 110.40 {
		t.Fatalf("expected total 110.40, got %.2f", store.active.TotalAmount)
	}
}

func TestMarkPaidTxRetiresBillAndNextMergeStartsFresh(t *testing.T) {
	ctx := context.Background()
	store := newFakeBillStore(15)
	ledger := testLedger()
	pizza := []LineItem{{ItemID: 7, Name: "Pizza", Quantity: 1, UnitPrice: 12.00, Total: 12.00}}

	first, appErr := ledger.MergeOrCreateTx(ctx, store, 1, "T1", pizza)
	if appErr != nil {
		t.Fatalf("merge failed: %v", appErr)
	}
	if appErr := ledger.MarkPaidTx(ctx, store, 1, "T1", nil); appErr != nil {
		t.Fatalf("mark paid failed: %v", appErr)
	}
	if len(store.paid) != 1 || store.paid[0].Status != StatusPaid {
		t.Fatalf("expected the bill retired as paid, got %+v", store.paid)
	}

	next, appErr := ledger.MergeOrCreateTx(ctx, store, 1, "T1", pizza)
	if appErr != nil {
		t.Fatalf("merge after settlement failed: %v", appErr)
	}
	if next.ID == first.ID {
		t.Fatalf("expected a fresh bill after settlement, got the paid one reused: %d", next.ID)
	}
	if len(next.Items) != 1 || next.Items[0].Quantity != 1 {
		t.Fatalf("expected the fresh bill to start from the new items, got %+v", next.Items)
	}
	if store.inserts != 2 {
		t.Fatalf("expected two bill inserts, got %d", store.inserts)
	}
}

func TestMarkPaidTxWithoutActiveBillIsNoOp(t *testing.T) {
	store := newFakeBillStore(15)
	ledger := testLedger()

	if appErr := ledger.MarkPaidTx(context.Background(), store, 1, "T1", nil); appErr != nil {
		t.Fatalf("expected no-op, got %v", appErr)
	}
}
