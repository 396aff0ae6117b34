package orders

import (
	"time"

	"mesa-table-service/internal/billing"
)

const (
	StatusConfirmed = "CONFIRMED"
	StatusPreparing = "PREPARING"
	StatusReady     = "READY"
	StatusDelivered = "DELIVERED"
	StatusCancelled = "CANCELLED"

	PaymentPending = "PENDING"
	PaymentPaid    = "PAID"
)

// PendingOrder is a raw cart waiting for staff approval. It is consumed
// exactly once: approval turns it into an Order, rejection discards it, and
// either way the record is deleted.
type PendingOrder struct {
	ID          int64              `json:"id"`
	TenantID    int64              `json:"tenantId"`
	TableNumber string             `json:"tableNumber"`
	Items       []billing.LineItem `json:"items"`
	TotalAmount float64            `json:"totalAmount"`
	CreatedAt   time.Time          `json:"createdAt"`
}

type Order struct {
	ID            int64              `json:"id"`
	TenantID      int64              `json:"tenantId"`
	TableNumber   string             `json:"tableNumber"`
	Items         []billing.LineItem `json:"items"`
	TotalAmount   float64            `json:"totalAmount"`
	Status        string             `json:"status"`
	PaymentStatus string             `json:"paymentStatus"`
	PlacedAt      time.Time          `json:"placedAt"`
	UpdatedAt     time.Time          `json:"updatedAt"`
}
