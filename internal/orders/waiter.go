package orders

import (
	"context"
	"fmt"
	"strings"

	"mesa-table-service/internal/apperr"

	"go.uber.org/zap"
)

// CallWaiter records a table's request for service and pings the staff
// channel. Counted by the day close.
func (s *Intake) CallWaiter(ctx context.Context, tenantID int64, tableNumber string, note string) *apperr.Error {
	tableNumber = strings.TrimSpace(tableNumber)
	if tableNumber == "" {
		return apperr.Validation("Table number is required", nil)
	}

	var id int64
	err := s.DB.QueryRow(ctx, `
		insert into waiter_calls (tenant_id, table_number, note)
		values ($1, $2, $3)
		returning id
	`, tenantID, tableNumber, strings.TrimSpace(note)).Scan(&id)
	if err != nil {
		return apperr.Dependency("Failed to store waiter call", err)
	}

	var channelID string
	if err := s.DB.QueryRow(ctx, `select staff_channel_id from tenants where id = $1`, tenantID).Scan(&channelID); err != nil {
		s.Logger.Error("waiter call staff lookup failed", zap.Int64("waiterCallId", id), zap.Error(err))
		return nil
	}

	text := fmt.Sprintf("Table %s is calling a waiter", tableNumber)
	if strings.TrimSpace(note) != "" {
		text += "\n" + strings.TrimSpace(note)
	}
	if err := s.Messenger.SendMessage(ctx, channelID, text, nil); err != nil {
		s.Logger.Error("waiter call notification failed", zap.Int64("waiterCallId", id), zap.Error(err))
	}
	return nil
}
