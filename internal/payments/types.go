package payments

import (
	"time"

	"mesa-table-service/internal/billing"
)

const (
	ConfirmationPending  = "PENDING"
	ConfirmationApproved = "APPROVED"
	ConfirmationRejected = "REJECTED"

	DecisionApproved = "approved"
	DecisionRejected = "rejected"
)

// PaymentConfirmation is a customer's claim of payment for a table's active
// bill, snapshotting the bill total at submission time. The cashier resolves
// it exactly once.
type PaymentConfirmation struct {
	ID          int64      `json:"id"`
	TenantID    int64      `json:"tenantId"`
	TableNumber string     `json:"tableNumber"`
	Method      string     `json:"method"`
	Total       float64    `json:"total"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	ProcessedAt *time.Time `json:"processedAt,omitempty"`
}

// Bill is the immutable archive snapshot of a paid TableBill, copied
// verbatim for reporting. Never mutated after creation.
type Bill struct {
	ID           int64              `json:"id"`
	TenantID     int64              `json:"tenantId"`
	TableNumber  string             `json:"tableNumber"`
	Items        []billing.LineItem `json:"items"`
	Subtotal     float64            `json:"subtotal"`
	TaxAmount    float64            `json:"taxAmount"`
	TotalAmount  float64            `json:"totalAmount"`
	SourceBillID int64              `json:"sourceBillId"`
	PaidAt       time.Time          `json:"paidAt"`
}
