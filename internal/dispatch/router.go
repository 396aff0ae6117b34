package dispatch

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"mesa-table-service/internal/billing"
	"mesa-table-service/internal/catalog"
	"mesa-table-service/internal/messaging"

	"go.uber.org/zap"
)

// Router fans an approved order's items out to the preparation departments.
// Dispatch is fire-and-forget: by the time an order reaches the router it is
// already committed to the bill, so a failed send is logged and never rolls
// anything back.
type Router struct {
	Catalog   *catalog.Catalog
	Messenger messaging.Messenger
	Logger    *zap.Logger
}

type RoutedOrder struct {
	ID          int64
	TenantID    int64
	TableNumber string
	Items       []billing.LineItem
}

func (r *Router) Route(ctx context.Context, order RoutedOrder) {
	if len(order.Items) == 0 {
		return
	}

	itemIDs := make([]int64, 0, len(order.Items))
	for _, item := range order.Items {
		itemIDs = append(itemIDs, item.ItemID)
	}

	menuItems, appErr := r.Catalog.Items(ctx, order.TenantID, itemIDs)
	if appErr != nil {
		r.Logger.Error("department routing: menu lookup failed",
			zap.Int64("orderId", order.ID), zap.Error(appErr))
		return
	}

	departments, appErr := r.Catalog.Departments(ctx, order.TenantID)
	if appErr != nil {
		r.Logger.Error("department routing: department lookup failed",
			zap.Int64("orderId", order.ID), zap.Error(appErr))
		return
	}

	byID := make(map[int64]catalog.Department, len(departments))
	var kitchenID int64
	for _, dept := range departments {
		byID[dept.ID] = dept
		if dept.Role == catalog.RoleKitchen && kitchenID == 0 {
			kitchenID = dept.ID
		}
	}
	if kitchenID == 0 {
		r.Logger.Error("department routing: tenant has no kitchen department",
			zap.Int64("tenantId", order.TenantID), zap.Int64("orderId", order.ID))
		return
	}

	groups := groupByDepartment(order.Items, func(itemID int64) (int64, bool) {
		item, ok := menuItems[itemID]
		if !ok || item.DepartmentID == nil {
			return 0, false
		}
		if _, known := byID[*item.DepartmentID]; !known {
			return 0, false
		}
		return *item.DepartmentID, true
	}, kitchenID)

	for deptID, items := range groups {
		dept := byID[deptID]
		text := buildDepartmentMessage(dept.Name, order.TableNumber, order.ID, items)
		buttons := []messaging.Button{{
			Text: "Mark ready",
			Command: Command{
				Verb:   VerbReady,
				Entity: strconv.FormatInt(deptID, 10),
				ID:     strconv.FormatInt(order.ID, 10),
			}.Encode(),
		}}

		if err := r.Messenger.SendMessage(ctx, dept.DeliveryChannelID, text, buttons); err != nil {
			r.Logger.Error("department dispatch failed",
				zap.Int64("orderId", order.ID),
				zap.Int64("departmentId", deptID),
				zap.Error(err))
		}
	}
}

// groupByDepartment buckets items by their resolved department, falling back
// to the kitchen department for anything unmapped. Bucket item order follows
// the order's item order.
func groupByDepartment(items []billing.LineItem, resolve func(itemID int64) (int64, bool), fallback int64) map[int64][]billing.LineItem {
	groups := make(map[int64][]billing.LineItem)
	for _, item := range items {
		deptID, ok := resolve(item.ItemID)
		if !ok {
			deptID = fallback
		}
		groups[deptID] = append(groups[deptID], item)
	}
	return groups
}

func buildDepartmentMessage(departmentName string, tableNumber string, orderID int64, items []billing.LineItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "New order #%d - table %s (%s)\n", orderID, tableNumber, departmentName)
	for _, item := range items {
		fmt.Fprintf(&b, "• %dx %s\n", item.Quantity, item.Name)
	}
	return strings.TrimRight(b.String(), "\n")
}
