package handlers

import (
	"net/http"
	"strings"

	"mesa-table-service/internal/billing"
	"mesa-table-service/internal/middleware"
	"mesa-table-service/pkg/response"

	"go.uber.org/zap"
)

// PublicBillByTable returns the running bill a diner sees when they scan the
// table code again mid-meal.
func (h *Handler) PublicBillByTable(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantQueryParam(r)
	if !ok {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "tenantId is required")
		return
	}
	tableNumber := strings.TrimSpace(r.URL.Query().Get("tableNumber"))
	if tableNumber == "" {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "tableNumber is required")
		return
	}

	bill, appErr := h.Ledger.Active(r.Context(), tenantID, tableNumber)
	if appErr != nil {
		writeErr(w, appErr)
		return
	}

	response.Success(w, bill)
}

func (h *Handler) StaffActiveBills(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := middleware.GetAuthContext(r.Context())
	if !ok {
		response.Error(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	rows, err := h.DB.Query(r.Context(), `
		select id, tenant_id, table_number, items, subtotal, tax_amount, total_amount, status, created_at, updated_at
		from table_bills
		where tenant_id = $1 and status = $2
		order by table_number
	`, authCtx.TenantID, billing.StatusActive)
	if err != nil {
		h.Logger.Error("active bills query failed", zap.Error(err))
		response.Error(w, http.StatusInternalServerError, "DEPENDENCY_FAILURE", "Failed to load active bills")
		return
	}
	defer rows.Close()

	bills := make([]billing.TableBill, 0)
	for rows.Next() {
		var bill billing.TableBill
		if err := rows.Scan(
			&bill.ID, &bill.TenantID, &bill.TableNumber, &bill.Items,
			&bill.Subtotal, &bill.TaxAmount, &bill.TotalAmount, &bill.Status,
			&bill.CreatedAt, &bill.UpdatedAt,
		); err != nil {
			h.Logger.Error("active bill scan failed", zap.Error(err))
			response.Error(w, http.StatusInternalServerError, "DEPENDENCY_FAILURE", "Failed to load active bills")
			return
		}
		bills = append(bills, bill)
	}
	if err := rows.Err(); err != nil {
		h.Logger.Error("active bills query failed", zap.Error(err))
		response.Error(w, http.StatusInternalServerError, "DEPENDENCY_FAILURE", "Failed to load active bills")
		return
	}

	response.Success(w, bills)
}

func (h *Handler) StaffDepartments(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := middleware.GetAuthContext(r.Context())
	if !ok {
		response.Error(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	departments, appErr := h.Catalog.Departments(r.Context(), authCtx.TenantID)
	if appErr != nil {
		writeErr(w, appErr)
		return
	}

	response.Success(w, departments)
}
