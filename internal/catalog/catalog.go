package catalog

import (
	"context"

	"mesa-table-service/internal/apperr"
	"mesa-table-service/internal/utils"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RoleKitchen marks the fallback department every tenant is seeded with.
// Items without an explicit department route there.
const RoleKitchen = "KITCHEN"

type Item struct {
	ID           int64
	Name         string
	Price        float64
	DepartmentID *int64
}

type Department struct {
	ID                int64  `json:"id"`
	TenantID          int64  `json:"tenantId"`
	Name              string `json:"name"`
	Role              string `json:"role"`
	DeliveryChannelID string `json:"deliveryChannelId"`
}

// Catalog is the read-only menu lookup the intake and routing paths depend
// on. Menu content itself is managed by the admin surface, not here.
type Catalog struct {
	DB *pgxpool.Pool
}

func (c *Catalog) Items(ctx context.Context, tenantID int64, itemIDs []int64) (map[int64]Item, *apperr.Error) {
	rows, err := c.DB.Query(ctx, `
		select id, name, price, department_id
		from menu_items
		where tenant_id = $1 and id = any($2)
	`, tenantID, itemIDs)
	if err != nil {
		return nil, apperr.Dependency("Failed to load menu items", err)
	}
	defer rows.Close()

	items := make(map[int64]Item, len(itemIDs))
	for rows.Next() {
		var (
			item         Item
			price        pgtype.Numeric
			departmentID pgtype.Int8
		)
		if err := rows.Scan(&item.ID, &item.Name, &price, &departmentID); err != nil {
			return nil, apperr.Dependency("Failed to load menu items", err)
		}
		item.Price = utils.NumericToFloat64(price)
		if departmentID.Valid {
			id := departmentID.Int64
			item.DepartmentID = &id
		}
		items[item.ID] = item
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Dependency("Failed to load menu items", err)
	}
	return items, nil
}

func (c *Catalog) Departments(ctx context.Context, tenantID int64) ([]Department, *apperr.Error) {
	rows, err := c.DB.Query(ctx, `
		select id, tenant_id, name, role, delivery_channel_id
		from departments
		where tenant_id = $1
		order by id
	`, tenantID)
	if err != nil {
		return nil, apperr.Dependency("Failed to load departments", err)
	}
	defer rows.Close()

	departments := make([]Department, 0)
	for rows.Next() {
		var dept Department
		if err := rows.Scan(&dept.ID, &dept.TenantID, &dept.Name, &dept.Role, &dept.DeliveryChannelID); err != nil {
			return nil, apperr.Dependency("Failed to load departments", err)
		}
		departments = append(departments, dept)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Dependency("Failed to load departments", err)
	}
	return departments, nil
}
