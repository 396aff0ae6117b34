package billing

import "time"

const (
	StatusActive = "ACTIVE"
	StatusPaid   = "PAID"
)

type LineItem struct {
	ItemID    int64   `json:"itemId"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
	Total     float64 `json:"total"`
}

// TableBill is the single running bill a table accumulates between being
// seated and paying. At most one ACTIVE bill exists per (tenant, table); a
// paid bill is never reopened, the next approved order starts a fresh one.
type TableBill struct {
	ID          int64      `json:"id"`
	TenantID    int64      `json:"tenantId"`
	TableNumber string     `json:"tableNumber"`
	Items       []LineItem `json:"items"`
	Subtotal    float64    `json:"subtotal"`
	TaxAmount   float64    `json:"taxAmount"`
	TotalAmount float64    `json:"totalAmount"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}
