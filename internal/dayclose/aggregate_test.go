package dayclose

import (
	"testing"

	"mesa-table-service/internal/billing"
	"mesa-table-service/internal/orders"
)

func TestAggregateOrders(t *testing.T) {
	dayOrders := []closedOrder{
		{
			TableNumber: "T1",
			Items: []billing.LineItem{
				{ItemID: 1, Name: "Pizza", Quantity: 2},
				{ItemID: 2, Name: "Cola", Quantity: 1},
			},
			TotalAmount:   27.60,
			PaymentStatus: orders.PaymentPaid,
		},
		{
			TableNumber: "T2",
			Items: []billing.LineItem{
				{ItemID: 1, Name: "Pizza", Quantity: 1},
				{ItemID: 3, Name: "Soup", Quantity: 3},
			},
			TotalAmount:   31.05,
			PaymentStatus: orders.PaymentPending,
		},
		{
			TableNumber: "T1",
			Items: []billing.LineItem{
				{ItemID: 2, Name: "Cola", Quantity: 2},
			},
			TotalAmount:   6.90,
			PaymentStatus: orders.PaymentPaid,
		},
	}

	totalOrders, totalRevenue, totalPayments, topItems, mostActiveTable := aggregateOrders(dayOrders)

	if totalOrders != 3 {
		t.Fatalf("expected 3 orders, got %d", totalOrders)
	}
	if totalRevenue != 65.55 {
		t.Fatalf("expected revenue 65.55, got %.2f", totalRevenue)
	}
	if totalPayments != 2 {
		t.Fatalf("expected 2 paid orders, got %d", totalPayments)
	}
	if mostActiveTable != "T1" {
		t.Fatalf("expected T1 most active, got %s", mostActiveTable)
	}

	if len(topItems) != 3 {
		t.Fatalf("expected 3 top items, got %d", len(topItems))
	}
	// Pizza and cola and soup all sum to 3; ties break on name.
	wantNames := []string{"Cola", "Pizza", "Soup"}
	for i, name := range wantNames {
		if topItems[i].Name != name || topItems[i].Quantity != 3 {
			t.Fatalf("position %d: expected %s x3, got %s x%d", i, name, topItems[i].Name, topItems[i].Quantity)
		}
	}
}

func TestAggregateOrdersCapsTopItemsAtFive(t *testing.T) {
	dayOrders := []closedOrder{{
		TableNumber: "T1",
		Items: []billing.LineItem{
			{ItemID: 1, Name: "A", Quantity: 7},
			{ItemID: 2, Name: "B", Quantity: 6},
			{ItemID: 3, Name: "C", Quantity: 5},
			{ItemID: 4, Name: "D", Quantity: 4},
			{ItemID: 5, Name: "E", Quantity: 3},
			{ItemID: 6, Name: "F", Quantity: 2},
			{ItemID: 7, Name: "G", Quantity: 1},
		},
	}}

	_, _, _, topItems, _ := aggregateOrders(dayOrders)

	if len(topItems) != 5 {
		t.Fatalf("expected top list capped at 5, got %d", len(topItems))
	}
	if topItems[0].Name != "A" || topItems[4].Name != "E" {
		t.Fatalf("unexpected top items: %+v", topItems)
	}
}

func TestAggregateOrdersEmptyDay(t *testing.T) {
	totalOrders, totalRevenue, totalPayments, topItems, mostActiveTable := aggregateOrders(nil)

	if totalOrders != 0 || totalRevenue != 0 || totalPayments != 0 {
		t.Fatalf("expected zero figures, got %d %.2f %d", totalOrders, totalRevenue, totalPayments)
	}
	if len(topItems) != 0 {
		t.Fatalf("expected no top items, got %+v", topItems)
	}
	if mostActiveTable != "" {
		t.Fatalf("expected no most active table, got %q", mostActiveTable)
	}
}

func TestAggregateOrdersTableTieBreaksLexicographically(t *testing.T) {
	dayOrders := []closedOrder{
		{TableNumber: "T9"},
		{TableNumber: "T2"},
		{TableNumber: "T9"},
		{TableNumber: "T2"},
	}

	_, _, _, _, mostActiveTable := aggregateOrders(dayOrders)

	if mostActiveTable != "T2" {
		t.Fatalf("expected tie to pick T2, got %s", mostActiveTable)
	}
}

func TestAggregateOrdersTableTieIsStringOrderNotNumeric(t *testing.T) {
	dayOrders := []closedOrder{
		{TableNumber: "T9"},
		{TableNumber: "T10"},
	}

	_, _, _, _, mostActiveTable := aggregateOrders(dayOrders)

	// "T10" sorts before "T9" as a string even though 10 > 9.
	if mostActiveTable != "T10" {
		t.Fatalf("expected tie to pick T10, got %s", mostActiveTable)
	}
}

func TestValidateCashier(t *testing.T) {
	if appErr := validateCashier(CashierInfo{Name: "  "}); appErr == nil {
		t.Fatal("expected error for blank cashier name")
	}
	if appErr := validateCashier(CashierInfo{Name: "Dana", Shift: "evening"}); appErr != nil {
		t.Fatalf("expected no error, got %v", appErr)
	}
}
